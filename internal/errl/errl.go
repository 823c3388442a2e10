// Package errl wraps errors with the location where they were produced.
package errl

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
)

// Errorf formats an error like fmt.Errorf (so %w works) and prefixes it with
// the file and line of the caller. A stack trace is attached.
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return errors.WithStack(&located{loc: location(2), err: err})
}

// Error wraps err with the caller location. It returns nil if err is nil.
func Error(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&located{loc: location(2), err: err})
}

type located struct {
	loc string
	err error
}

func (l *located) Error() string {
	return l.loc + ": " + l.err.Error()
}

func (l *located) Unwrap() error {
	return l.err
}

func location(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
