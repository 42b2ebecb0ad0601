package colorfilter

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ImportPolicy decides what Import does with lines that fail to parse or
// compile
type ImportPolicy int

const (
	// ImportAbort streams nothing if any line is bad and returns the first error
	ImportAbort ImportPolicy = iota
	// ImportSkipInvalid streams the good rules and returns every failure
	ImportSkipInvalid
)

func (p ImportPolicy) String() string {
	switch p {
	case ImportAbort:
		return "abort"
	case ImportSkipInvalid:
		return "skip"
	default:
		return fmt.Sprintf("ImportPolicy(%d)", int(p))
	}
}

// ParseImportPolicy parses "abort" or "skip"
func ParseImportPolicy(s string) (ImportPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return ImportAbort, nil
	case "skip", "skip-invalid", "skip_invalid":
		return ImportSkipInvalid, nil
	default:
		return ImportAbort, fmt.Errorf("unknown import policy %q (want abort or skip)", s)
	}
}

// Import reads and compiles the rules of path and hands each one to onRule
// in file order. The rules are owned by the caller, which typically merges
// them into an edited list and calls Apply. Conversation rules are skipped.
func (e *Engine) Import(path string, onRule func(r *ColorRule)) error {
	return e.importFile(path, e.importPolicy, onRule)
}

// ReadGlobals streams the rules of the global file, for restoring defaults.
// Any bad line aborts the read.
func (e *Engine) ReadGlobals(onRule func(r *ColorRule)) error {
	if e.paths.Global == "" {
		return fmt.Errorf("no global color filters file configured")
	}
	return e.importFile(e.paths.Global, ImportAbort, onRule)
}

func (e *Engine) importFile(path string, policy ImportPolicy, onRule func(r *ColorRule)) error {
	lines, err := readLinesFile(path, policy)
	var errs *multierror.Error
	if err != nil {
		me, ok := err.(*multierror.Error)
		if !ok {
			return err
		}
		errs = me
	}

	rules := make([]*ColorRule, 0, len(lines))
	skipped := 0
	for _, l := range lines {
		if IsConversationName(l.name) {
			skipped++
			continue
		}
		r, err := e.compileLenient(l.rule())
		if err != nil {
			lerr := &LineError{Path: path, Line: l.lineNo, Err: err}
			if policy != ImportSkipInvalid {
				DeleteRules(rules)
				return lerr
			}
			errs = multierror.Append(errs, lerr)
			continue
		}
		rules = append(rules, r)
	}

	for _, r := range rules {
		onRule(r)
	}

	e.log.Info("Imported color filters", "path", path, "rules", len(rules), "skipped_conversation", skipped, "errors", errorCount(errs))
	return errs.ErrorOrNil()
}

func errorCount(errs *multierror.Error) int {
	if errs == nil {
		return 0
	}
	return len(errs.Errors)
}
