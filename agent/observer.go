package agent

import (
	"fmt"
	"io"
	"regexp"
	"sync"

	"github.com/sweetpotato0/miniagent/message"
)

// Observer receives the human-readable side effects of a run.
type Observer interface {
	OnInput(text string)
	OnReasoning(item *message.Reasoning)
	OnMessage(item *message.Message)
	OnFunctionCall(call *message.FunctionCall)
	OnFunctionOutput(call *message.FunctionCall, output string)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) OnInput(string)                                 {}
func (NopObserver) OnReasoning(*message.Reasoning)                 {}
func (NopObserver) OnMessage(*message.Message)                     {}
func (NopObserver) OnFunctionCall(*message.FunctionCall)           {}
func (NopObserver) OnFunctionOutput(*message.FunctionCall, string) {}

const (
	ansiReset = "\033[0m"
	tagWidth  = 16
)

var tagColours = map[string]string{
	"reasoning":       "\033[90m",
	"message":         "\033[36m",
	"endmessage":      "\033[36m",
	"function_call":   "\033[33m",
	"function_output": "\033[32m",
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Tag returns a coloured, fixed-width label such as "[function_call   ] ".
func Tag(kind string) string {
	return fmt.Sprintf("[%s%-*s%s] ", tagColours[kind], tagWidth, kind, ansiReset)
}

// StripANSI removes ANSI colour codes.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// ConsoleObserver prints tagged lines, one per event.
type ConsoleObserver struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleObserver creates an observer writing to w.
func NewConsoleObserver(w io.Writer) *ConsoleObserver {
	return &ConsoleObserver{w: w}
}

func (o *ConsoleObserver) println(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.w, s)
}

func (o *ConsoleObserver) OnInput(text string) {
	o.println("Input: " + text)
}

func (o *ConsoleObserver) OnReasoning(item *message.Reasoning) {
	o.println(Tag("reasoning") + item.Text())
}

func (o *ConsoleObserver) OnMessage(item *message.Message) {
	o.println(Tag("message") + item.Text() + Tag("endmessage"))
}

func (o *ConsoleObserver) OnFunctionCall(call *message.FunctionCall) {
	o.println(Tag("function_call") + fmt.Sprintf("%s(%s)", call.Name, call.Arguments))
}

func (o *ConsoleObserver) OnFunctionOutput(_ *message.FunctionCall, output string) {
	o.println(Tag("function_output") + output)
}
