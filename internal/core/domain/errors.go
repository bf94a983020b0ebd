package domain

import (
	"errors"
	"fmt"
)

var (
	ErrContractNotFound    = errors.New("contract not found")
	ErrActivityUnavailable = errors.New("activity data unavailable")
	ErrMalformedContract   = errors.New("malformed contract")
	ErrSourceNotFound      = errors.New("source not found")
	ErrRunNotFound         = errors.New("report run not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrLLMUnavailable      = errors.New("llm unavailable")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
