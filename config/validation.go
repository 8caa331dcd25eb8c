package config

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for field %q: %s", e.Field, e.Message)
}

// Validator collects field errors through chained checks.
type Validator struct {
	errors []ValidationError
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) add(field, format string, args ...any) *Validator {
	v.errors = append(v.errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	return v
}

// RequireNonEmpty fails on an empty string.
func (v *Validator) RequireNonEmpty(field, value string) *Validator {
	if value == "" {
		return v.add(field, "value cannot be empty")
	}
	return v
}

// RequirePositive fails unless value > 0.
func (v *Validator) RequirePositive(field string, value int) *Validator {
	if value <= 0 {
		return v.add(field, "value must be positive, got %d", value)
	}
	return v
}

// ValidateRange checks value is within [min, max].
func (v *Validator) ValidateRange(field string, value, min, max int) *Validator {
	if value < min || value > max {
		return v.add(field, "value must be between %d and %d, got %d", min, max, value)
	}
	return v
}

// ValidateFloatRange checks value is within [min, max].
func (v *Validator) ValidateFloatRange(field string, value, min, max float64) *Validator {
	if value < min || value > max {
		return v.add(field, "value must be between %.2f and %.2f, got %.2f", min, max, value)
	}
	return v
}

// ValidateNonNegativeDuration fails on d < 0. Zero means unset.
func (v *Validator) ValidateNonNegativeDuration(field string, d time.Duration) *Validator {
	if d < 0 {
		return v.add(field, "duration cannot be negative, got %s", d)
	}
	return v
}

// ValidatePort checks 1-65535.
func (v *Validator) ValidatePort(field string, port int) *Validator {
	return v.ValidateRange(field, port, 1, 65535)
}

// ValidateDBNumber checks a Redis database index (0-15).
func (v *Validator) ValidateDBNumber(field string, db int) *Validator {
	return v.ValidateRange(field, db, 0, 15)
}

// ValidateOneOf checks value against the allowed set.
func (v *Validator) ValidateOneOf(field string, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if a == value {
			return v
		}
	}
	return v.add(field, "value must be one of %v, got %q", allowed, value)
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Error joins all failures, or returns nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	errs := make([]error, len(v.errors))
	for i, e := range v.errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Errors returns all validation errors.
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ValidatePostgresConfig validates the PostgreSQL memory store settings.
// The password may be empty for trust or peer authentication.
func ValidatePostgresConfig(host string, port int, user, dbName, sslMode, table string) error {
	v := NewValidator()
	v.RequireNonEmpty("host", host)
	v.ValidatePort("port", port)
	v.RequireNonEmpty("user", user)
	v.RequireNonEmpty("dbName", dbName)
	v.ValidateOneOf("sslMode", sslMode, "disable", "require", "verify-ca", "verify-full")
	v.RequireNonEmpty("table", table)
	return v.Error()
}

// ValidateRedisConfig validates the Redis memory store settings.
func ValidateRedisConfig(addr string, db int, prefix string) error {
	v := NewValidator()
	v.RequireNonEmpty("addr", addr)
	v.ValidateDBNumber("db", db)
	v.RequireNonEmpty("prefix", prefix)
	return v.Error()
}

// ValidateMongoDBConfig validates the MongoDB memory store settings.
func ValidateMongoDBConfig(uri, database, collection string) error {
	v := NewValidator()
	v.RequireNonEmpty("uri", uri)
	v.RequireNonEmpty("database", database)
	v.RequireNonEmpty("collection", collection)
	return v.Error()
}
