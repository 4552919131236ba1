package ingestion

import (
	"errors"
	"fmt"
)

var (
	ErrMissingColumn    = errors.New("missing column")
	ErrSourceUnreadable = errors.New("source unreadable")
)

// LoadError is a fatal load failure of a required source.
type LoadError struct {
	Source string
	Path   string
	Column string
	reason error
}

func (e *LoadError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s source %q: %v: %s", e.Source, e.Path, e.reason, e.Column)
	}
	return fmt.Sprintf("%s source %q: %v", e.Source, e.Path, e.reason)
}

func (e *LoadError) Unwrap() error {
	return e.reason
}

func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

func missingColumn(source, path, column string) error {
	return &LoadError{Source: source, Path: path, Column: column, reason: ErrMissingColumn}
}

func unreadable(source, path string, err error) error {
	return &LoadError{Source: source, Path: path, reason: fmt.Errorf("%w: %v", ErrSourceUnreadable, err)}
}
