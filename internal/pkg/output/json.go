// Package output formats machine-readable command output.
package output

import (
	"encoding/json"
	"io"
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether w is a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// WriteJSON writes v followed by a newline. Output to a terminal is indented
// with 2 spaces; piped output is compact, one document per line.
func WriteJSON(w io.Writer, v any) error {
	data, err := MarshalJSON(v, IsTerminal(w))
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// MarshalJSON marshals v, indented when pretty is set
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
