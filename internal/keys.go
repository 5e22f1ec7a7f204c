package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNoKeys is returned when a key blob contains no usable key
var ErrNoKeys = errors.New("no API keys provided")

// KeysExhaustedError is returned when every configured key failed
type KeysExhaustedError struct {
	Attempts int
	Last     error
}

func (e *KeysExhaustedError) Error() string {
	if e.Attempts == 1 {
		return e.Last.Error()
	}
	return fmt.Sprintf("all %d API keys failed, last error: %v", e.Attempts, e.Last)
}

func (e *KeysExhaustedError) Unwrap() error {
	return e.Last
}

// ParseKeys splits a key blob on newlines and commas, trimming and dropping empty entries
func ParseKeys(blob string) []string {
	fields := strings.FieldsFunc(blob, func(r rune) bool {
		return r == '\n' || r == ',' || r == '\r'
	})
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		if k := strings.TrimSpace(f); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// KeyObserver is told about each attempt made by WithKeys
type KeyObserver func(attempt int, err error)

// WithKeys runs fn with each key of the blob in order until one succeeds.
// Any failure moves on to the next key; every call starts again from the first key.
func WithKeys[T any](ctx context.Context, blob string, fn func(ctx context.Context, key string) (T, error), observers ...KeyObserver) (T, error) {
	var zero T
	keys := ParseKeys(blob)
	if len(keys) == 0 {
		return zero, ErrNoKeys
	}

	logger := zerolog.Ctx(ctx)
	var lastErr error
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := fn(ctx, key)
		for _, observe := range observers {
			observe(i, err)
		}
		if err == nil {
			return result, nil
		}
		lastErr = err
		logger.Debug().Int("key", i+1).Int("keys", len(keys)).Err(err).Msg("API key failed, trying next")
	}
	return zero, &KeysExhaustedError{Attempts: len(keys), Last: lastErr}
}
