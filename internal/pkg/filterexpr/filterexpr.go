// Package filterexpr keeps the ordered list of quick filter buttons. The
// expressions are not evaluated against packets; one is compiled only when
// its button is used.
package filterexpr

import (
	"fmt"
	"sync"

	"github.com/endorses/colorcat/internal/pkg/colorfilter"
)

// FilterExpression is one quick filter button
type FilterExpression struct {
	// Number is the insertion position, starting at 0
	Number     int
	Label      string
	Expression string
	Comment    string
	Enabled    bool
}

// Compile compiles the button's expression on demand
func (f *FilterExpression) Compile(c colorfilter.Compiler) (colorfilter.Predicate, error) {
	pred, err := c.Compile(f.Expression)
	if err != nil {
		return nil, fmt.Errorf("filter button %q: %w", f.Label, err)
	}
	return pred, nil
}

// List is an append-only, ordered list of filter expressions
type List struct {
	mu    sync.RWMutex
	exprs []*FilterExpression
}

// NewList creates an empty list
func NewList() *List {
	return &List{}
}

// New appends a filter expression and returns it
func (l *List) New(label, expr, comment string, enabled bool) *FilterExpression {
	l.mu.Lock()
	defer l.mu.Unlock()

	f := &FilterExpression{
		Number:     len(l.exprs),
		Label:      label,
		Expression: expr,
		Comment:    comment,
		Enabled:    enabled,
	}
	l.exprs = append(l.exprs, f)
	return f
}

// Iterate visits every expression in insertion order until fn returns false
func (l *List) Iterate(fn func(f *FilterExpression) bool) {
	l.mu.RLock()
	exprs := l.exprs
	l.mu.RUnlock()

	for _, f := range exprs {
		if !fn(f) {
			return
		}
	}
}

// Len returns the number of expressions
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.exprs)
}

// Free drops every expression
func (l *List) Free() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exprs = nil
}

var defaultList = NewList()

// Default returns the process-wide list
func Default() *List {
	return defaultList
}

// New appends to the process-wide list
func New(label, expr, comment string, enabled bool) *FilterExpression {
	return defaultList.New(label, expr, comment, enabled)
}

// Iterate walks the process-wide list
func Iterate(fn func(f *FilterExpression) bool) {
	defaultList.Iterate(fn)
}

// FreeList empties the process-wide list
func FreeList() {
	defaultList.Free()
}
