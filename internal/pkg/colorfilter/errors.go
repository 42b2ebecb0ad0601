package colorfilter

import (
	"errors"
	"fmt"
)

// ErrNotLoaded is returned by operations that need a loaded engine
var ErrNotLoaded = errors.New("color filters not loaded")

// ParseError reports a malformed line in a rules file
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// CompileError reports a rule whose filter text does not compile. The
// message always carries the filter text verbatim.
type CompileError struct {
	Name       string
	FilterText string
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("could not compile color filter %q, filter %q: %v", e.Name, e.FilterText, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// LineError attaches a file position to a compile failure found while reading
type LineError struct {
	Path string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
