package colorfilter

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/endorses/colorcat/internal/pkg/constants"
)

const (
	fieldDelimiter = '@'
	escapeChar     = '\\'
	disabledMarker = '!'
	commentMarker  = '#'

	fileHeader = "# Color filter rules, written by colorcat. Edit with care.\n" +
		"# [!]name@filter@foreground@background@  (colors are RRRRGGGGBBBB)\n"
)

var (
	// fileLock serializes atomic rule file writes within the process
	fileLock sync.Mutex

	// historic form: both colors in one field, background first
	bracketPair = regexp.MustCompile(`^\s*(\[[^\]]*\])\s*(\[[^\]]*\])\s*$`)
)

// ruleLine is a parsed, not yet compiled, rules file entry
type ruleLine struct {
	lineNo     int
	name       string
	filterText string
	fg, bg     Color
	disabled   bool
}

func (l ruleLine) rule() *ColorRule {
	return NewColorRule(l.name, l.filterText, l.fg, l.bg, l.disabled, nil)
}

// escapeField escapes the delimiter, the escape character and line breaks
func escapeField(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case escapeChar, fieldDelimiter:
			b.WriteByte(escapeChar)
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// escapeName additionally protects characters that would change how the
// line itself is read: any comment marker and a leading disabled marker
func escapeName(name string) string {
	s := escapeField(name)
	s = strings.ReplaceAll(s, string(commentMarker), `\#`)
	if strings.HasPrefix(s, string(disabledMarker)) {
		s = `\` + s
	}
	return s
}

// splitEscaped splits s on unescaped delimiters and resolves escapes
func splitEscaped(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case escapeChar:
			if i+1 >= len(s) {
				return nil, fmt.Errorf("dangling escape character at end of line")
			}
			i++
			switch s[i] {
			case 'n':
				cur.WriteByte('\n')
			case 'r':
				cur.WriteByte('\r')
			default:
				cur.WriteByte(s[i])
			}
		case fieldDelimiter:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())
	return fields, nil
}

// isSkippable reports comment and blank lines
func isSkippable(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || trimmed[0] == commentMarker
}

// parseLine parses one non-comment rules file line:
//
//	[!][@]name@filter@FG@BG@
//	[!]@name@filter@[bg r,g,b][fg r,g,b]
func parseLine(line string) (ruleLine, error) {
	var rl ruleLine
	s := strings.TrimRight(line, "\r\n")

	if strings.HasPrefix(s, string(disabledMarker)) {
		rl.disabled = true
		s = s[1:]
	}
	s = strings.TrimPrefix(s, string(fieldDelimiter))

	fields, err := splitEscaped(s)
	if err != nil {
		return rl, err
	}
	// A trailing delimiter leaves one empty field behind
	if n := len(fields); n > 1 && strings.TrimSpace(fields[n-1]) == "" {
		fields = fields[:n-1]
	}

	var fgText, bgText string
	switch len(fields) {
	case 4:
		fgText, bgText = fields[2], fields[3]
	case 3:
		m := bracketPair.FindStringSubmatch(fields[2])
		if m == nil {
			return rl, fmt.Errorf("expected foreground and background colors, got %q", fields[2])
		}
		bgText, fgText = m[1], m[2]
	default:
		return rl, fmt.Errorf("expected 4 %q separated fields, got %d", string(fieldDelimiter), len(fields))
	}

	rl.name = fields[0]
	rl.filterText = fields[1]
	if rl.name == "" {
		return rl, fmt.Errorf("empty rule name")
	}
	if strings.TrimSpace(rl.filterText) == "" {
		return rl, fmt.Errorf("rule %q has an empty filter", rl.name)
	}
	if rl.fg, err = ParseColor(fgText); err != nil {
		return rl, fmt.Errorf("rule %q foreground: %w", rl.name, err)
	}
	if rl.bg, err = ParseColor(bgText); err != nil {
		return rl, fmt.Errorf("rule %q background: %w", rl.name, err)
	}
	return rl, nil
}

// formatLine renders a rule in the canonical line format, without newline
func formatLine(r *ColorRule) string {
	var b strings.Builder
	if r.Disabled {
		b.WriteByte(disabledMarker)
	}
	b.WriteString(escapeName(r.Name))
	b.WriteByte(fieldDelimiter)
	b.WriteString(escapeField(r.FilterText))
	b.WriteByte(fieldDelimiter)
	b.WriteString(r.Foreground.Hex())
	b.WriteByte(fieldDelimiter)
	b.WriteString(r.Background.Hex())
	b.WriteByte(fieldDelimiter)
	return b.String()
}

// readLines parses every rule of a rules file. With ImportAbort the first
// malformed line aborts the read with a *ParseError. With ImportSkipInvalid
// the good lines are returned together with every *ParseError collected.
func readLines(r io.Reader, path string, policy ImportPolicy) ([]ruleLine, error) {
	var lines []ruleLine
	var errs *multierror.Error
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if isSkippable(text) {
			continue
		}
		rl, err := parseLine(text)
		if err != nil {
			perr := &ParseError{Path: path, Line: lineNo, Msg: err.Error()}
			if policy != ImportSkipInvalid {
				return nil, perr
			}
			errs = multierror.Append(errs, perr)
			continue
		}
		rl.lineNo = lineNo
		lines = append(lines, rl)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read color filters from %s: %w", path, err)
	}
	return lines, errs.ErrorOrNil()
}

// readLinesFile opens path and parses it
func readLinesFile(path string, policy ImportPolicy) ([]ruleLine, error) {
	// #nosec G304 -- Path comes from configuration or an explicit import request
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open color filters file %s: %w", path, err)
	}
	defer f.Close()
	return readLines(f, path, policy)
}

// writeRules serializes rules in order, skipping conversation rules
func writeRules(w io.Writer, rules []*ColorRule) error {
	if _, err := io.WriteString(w, fileHeader); err != nil {
		return err
	}
	for _, r := range rules {
		if r.IsConversation() {
			continue
		}
		if _, err := io.WriteString(w, formatLine(r)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// writeRulesFile writes rules to path with a temp file and rename
func writeRulesFile(path string, rules []*ColorRule) error {
	fileLock.Lock()
	defer fileLock.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.ConfigDirMode); err != nil {
		return fmt.Errorf("failed to create color filters directory %s: %w", dir, err)
	}

	var buf bytes.Buffer
	if err := writeRules(&buf, rules); err != nil {
		return fmt.Errorf("failed to serialize color filters: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, buf.Bytes(), constants.ConfigFileMode); err != nil {
		return fmt.Errorf("failed to write color filters file %s: %w", tempFile, err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename color filters file to %s: %w", path, err)
	}
	return nil
}
