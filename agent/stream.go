package agent

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	errorspkg "github.com/sweetpotato0/miniagent/errors"
)

// eventStream is a pull-style view of a completion stream whose first
// element has already been read.
type eventStream struct {
	next     func() (*Event, error, bool)
	stop     func()
	buffered bool
	first    *Event
	firstOK  bool
}

// Next returns the next event; ok is false once the stream is exhausted.
func (s *eventStream) Next() (ev *Event, ok bool, err error) {
	if s.buffered {
		s.buffered = false
		return s.first, s.firstOK, nil
	}
	ev, err, ok = s.next()
	return ev, ok, err
}

// Close releases the underlying iterator.
func (s *eventStream) Close() {
	s.stop()
}

// openStream starts a completion call and reads its first event. Transient
// failures before the first event are retried with exponential backoff.
// Failures after it are final.
func (a *Agent) openStream(ctx context.Context, turn int, logger *slog.Logger, req *CompletionRequest) (*eventStream, error) {
	attempt := 0
	operation := func() (*eventStream, error) {
		attempt++
		seq := a.llm.Stream(ctx, req)
		if seq == nil {
			return nil, backoff.Permanent(errors.New("completion client returned no stream"))
		}

		next, stop := iter.Pull2(seq)
		ev, err, ok := next()
		if err != nil {
			stop()
			if errorspkg.IsTransient(err) && ctx.Err() == nil {
				logger.Warn("completion call failed, retrying", "turn", turn, "attempt", attempt, "error", err)
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return &eventStream{next: next, stop: stop, buffered: true, first: ev, firstOK: ok}, nil
	}

	policy := backoff.NewExponentialBackOff()
	if a.retryInterval > 0 {
		policy.InitialInterval = a.retryInterval
	}
	policy.MaxInterval = 10 * time.Second

	stream, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(a.maxRetries+1)),
	)
	if err != nil {
		return nil, a.failure(ctx, turn, err)
	}
	return stream, nil
}
