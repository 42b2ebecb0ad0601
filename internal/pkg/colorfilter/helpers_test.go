package colorfilter

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/endorses/colorcat/internal/pkg/dfilter"
	"github.com/endorses/colorcat/internal/pkg/dissect"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func displayFilterCompiler() Compiler {
	return CompilerFunc(func(text string) (Predicate, error) {
		p, err := dfilter.Compile(text)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// writeFile writes content to dir/name and returns the path
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// newFileEngine creates an engine over a temp dir. Empty content leaves the
// corresponding file absent.
func newFileEngine(t *testing.T, c Compiler, user, global string, opts ...Option) (*Engine, Paths) {
	t.Helper()
	dir := t.TempDir()
	p := Paths{
		User:   filepath.Join(dir, "user", "colorfilters"),
		Global: filepath.Join(dir, "global", "colorfilters"),
	}
	if user != "" {
		writeFile(t, dir, "user/colorfilters", user)
	}
	if global != "" {
		writeFile(t, dir, "global/colorfilters", global)
	}
	opts = append([]Option{WithPaths(p), WithLogger(discardLogger())}, opts...)
	return NewEngine(c, opts...), p
}

// fakePredicate matches packets carrying the protocol or field named by its
// filter text and records whether it was freed
type fakePredicate struct {
	text       string
	freed      atomic.Bool
	violations *atomic.Int64
	entered    chan struct{}
	unblock    chan struct{}
}

func (p *fakePredicate) Match(pkt *dissect.Packet) bool {
	if p.freed.Load() {
		p.violations.Add(1)
	}
	if p.entered != nil {
		p.entered <- struct{}{}
		<-p.unblock
	}
	return pkt.Has(strings.TrimPrefix(p.text, "block:"))
}

func (p *fakePredicate) Fields() []string {
	return []string{strings.TrimPrefix(p.text, "block:")}
}

func (p *fakePredicate) Free() {
	p.freed.Store(true)
}

// fakeCompiler hands out fakePredicates. Filter text starting with "bad"
// fails; "block:" predicates pause inside Match until unblocked.
type fakeCompiler struct {
	// violations counts evaluations of freed predicates
	violations atomic.Int64

	mu      sync.Mutex
	preds   []*fakePredicate
	entered chan struct{}
	unblock chan struct{}
}

func newFakeCompiler() *fakeCompiler {
	return &fakeCompiler{
		entered: make(chan struct{}, 1),
		unblock: make(chan struct{}),
	}
}

func (c *fakeCompiler) Compile(text string) (Predicate, error) {
	if strings.HasPrefix(text, "bad") {
		return nil, errors.New("syntax error")
	}
	p := &fakePredicate{text: text, violations: &c.violations}
	if strings.HasPrefix(text, "block:") {
		p.entered = c.entered
		p.unblock = c.unblock
	}
	c.mu.Lock()
	c.preds = append(c.preds, p)
	c.mu.Unlock()
	return p, nil
}

// predicates returns every predicate compiled from text, oldest first
func (c *fakeCompiler) predicates(text string) []*fakePredicate {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakePredicate
	for _, p := range c.preds {
		if p.text == text {
			out = append(out, p)
		}
	}
	return out
}

func ruleNames(rules []*ColorRule) []string {
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name)
	}
	return names
}

func matchedName(r *ColorRule) string {
	if r == nil {
		return ""
	}
	return r.Name
}
