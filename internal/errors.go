package internal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidResponse is returned when a model reply cannot be decoded
var ErrInvalidResponse = errors.New("invalid response format, please retry")

// MissingCredentialError is returned when no API key is configured for a service
type MissingCredentialError struct {
	Service string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no %s API key configured, add one with `ytdash settings set`", e.Service)
}

func (e *MissingCredentialError) Unwrap() error {
	return ErrNoKeys
}

// ItemError is the failure of one item in a bulk operation
type ItemError struct {
	ID  string
	Err error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.ID, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// ItemErrors collects per-item failures so a bulk operation can finish
type ItemErrors []ItemError

func (e ItemErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ie := range e {
		msgs[i] = ie.Error()
	}
	return fmt.Sprintf("%d failed: %s", len(e), strings.Join(msgs, "; "))
}

// ErrOrNil returns nil when nothing failed
func (e ItemErrors) ErrOrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
