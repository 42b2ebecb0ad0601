package colorfilter

import (
	"fmt"
	"strings"

	"github.com/endorses/colorcat/internal/pkg/constants"
	"github.com/endorses/colorcat/internal/pkg/dissect"
)

// Predicate is a compiled filter expression owned by exactly one ColorRule
type Predicate interface {
	// Match evaluates the predicate against a dissected packet
	Match(pkt *dissect.Packet) bool
	// Fields lists the field abbreviations the predicate references
	Fields() []string
	// Free releases the predicate; it is never evaluated afterwards
	Free()
}

// Compiler turns filter text into a Predicate
type Compiler interface {
	Compile(text string) (Predicate, error)
}

// CompilerFunc adapts a function to the Compiler interface
type CompilerFunc func(text string) (Predicate, error)

// Compile calls f(text)
func (f CompilerFunc) Compile(text string) (Predicate, error) {
	return f(text)
}

// ColorRule is a named filter with the colors used to paint matching packets
type ColorRule struct {
	Name       string
	FilterText string
	Foreground Color
	Background Color
	Disabled   bool

	// Selected is editor state consulted by Export; it is never persisted
	Selected bool

	predicate Predicate
}

// NewColorRule creates a rule that takes ownership of pred, which may be nil
// for rules that are not matched (editor copies, empty slots)
func NewColorRule(name, filterText string, fg, bg Color, disabled bool, pred Predicate) *ColorRule {
	return &ColorRule{
		Name:       name,
		FilterText: filterText,
		Foreground: fg,
		Background: bg,
		Disabled:   disabled,
		predicate:  pred,
	}
}

// Compiled reports whether the rule carries a predicate
func (r *ColorRule) Compiled() bool {
	return r.predicate != nil
}

// Active reports whether the rule takes part in classification
func (r *ColorRule) Active() bool {
	return !r.Disabled && r.predicate != nil
}

// IsConversation reports whether the rule is a machine-generated conversation rule
func (r *ColorRule) IsConversation() bool {
	return IsConversationName(r.Name)
}

// IsConversationName reports whether name carries the conversation prefix
func IsConversationName(name string) bool {
	return strings.HasPrefix(name, constants.ConversationColorPrefix)
}

// Match evaluates the rule. Disabled or uncompiled rules never match.
func (r *ColorRule) Match(pkt *dissect.Packet) bool {
	if !r.Active() {
		return false
	}
	return r.predicate.Match(pkt)
}

// Clone returns a copy without the predicate, for editors and display.
// The copy never shares the source rule's predicate.
func (r *ColorRule) Clone() *ColorRule {
	c := *r
	c.predicate = nil
	return &c
}

// Delete frees the rule's predicate
func (r *ColorRule) Delete() {
	if r.predicate != nil {
		r.predicate.Free()
		r.predicate = nil
	}
}

func (r *ColorRule) String() string {
	state := "enabled"
	if r.Disabled {
		state = "disabled"
	}
	return fmt.Sprintf("%s (%s) [%s on %s, %s]", r.Name, r.FilterText, r.Foreground.Hex(), r.Background.Hex(), state)
}

// DeleteRules frees every rule in the list
func DeleteRules(rules []*ColorRule) {
	for _, r := range rules {
		r.Delete()
	}
}

// CompileRule compiles a fresh rule with the same name, text, colors and
// state as r. r itself is not modified.
func CompileRule(c Compiler, r *ColorRule) (*ColorRule, error) {
	pred, err := c.Compile(r.FilterText)
	if err != nil {
		return nil, &CompileError{Name: r.Name, FilterText: r.FilterText, Err: err}
	}
	if pred == nil {
		return nil, &CompileError{Name: r.Name, FilterText: r.FilterText, Err: fmt.Errorf("compiler returned no predicate")}
	}
	return NewColorRule(r.Name, r.FilterText, r.Foreground, r.Background, r.Disabled, pred), nil
}

// tmpName returns the rule name of a temporary slot (1-based)
func tmpName(slot int) string {
	return fmt.Sprintf("%s%02d", constants.ConversationColorPrefix, slot)
}
