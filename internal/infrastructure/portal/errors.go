package portal

import (
	"errors"
	"fmt"

	"RucFilter/internal/domain"
)

var errWaitExhausted = fmt.Errorf("%w: page did not settle", domain.ErrTransient)

func transient(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrTransient, fmt.Sprintf(format, args...))
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
}

func isWaitExhausted(err error) bool {
	return errors.Is(err, errWaitExhausted)
}
