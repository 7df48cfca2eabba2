// Package id generates and parses the identifiers of ledger records.
//
// Movements sharing a business date replay in id order. New returns
// UUIDv7 values, so that order is creation order and matches the
// bytewise ordering PostgreSQL applies to uuid columns.
package id

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// ID identifies companies, accounts, journal entries, entry lines and movements.
type ID = uuid.UUID

// New returns a time-ordered id.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse is for fixtures only.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

func Nil() ID { return uuid.Nil }

func IsNil(v ID) bool { return v == uuid.Nil }

// Compare orders ids bytewise, the way uuid columns sort.
func Compare(a, b ID) int {
	return bytes.Compare(a[:], b[:])
}

// ParseError reports the first value of a list that is not an id.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid id %q: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseList parses every value or fails with a *ParseError.
func ParseList(values []string) ([]ID, error) {
	out := make([]ID, 0, len(values))
	for _, s := range values {
		v, err := uuid.Parse(s)
		if err != nil {
			return nil, &ParseError{Value: s, Err: err}
		}
		out = append(out, v)
	}
	return out, nil
}
