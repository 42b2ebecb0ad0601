// Package colorfilter classifies dissected packets against an ordered list of
// color rules.
//
// An Engine owns three groups of rules, matched in this order:
//
//  1. ten temporary slots (session-only, set by "colorize conversation")
//  2. conversation rules found in rules files or applied edits
//  3. the persistent rule list, in file order
//
// The first enabled rule whose predicate matches wins. Every mutation builds a
// complete, compiled generation and publishes it with one atomic swap, so a
// classification never sees a partial update or a freed predicate.
package colorfilter

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/endorses/colorcat/internal/pkg/constants"
	"github.com/endorses/colorcat/internal/pkg/dissect"
	"github.com/endorses/colorcat/internal/pkg/logger"
)

// Option configures an Engine
type Option func(*Engine)

// WithPaths sets the global and user rules file locations
func WithPaths(p Paths) Option {
	return func(e *Engine) { e.paths = p }
}

// WithStat replaces os.Stat for rules file resolution
func WithStat(stat StatFunc) Option {
	return func(e *Engine) { e.stat = stat }
}

// WithTmpColors sets the palette of the temporary slots
func WithTmpColors(fg Color, bg [constants.TmpColorSlots]Color) Option {
	return func(e *Engine) {
		e.tmpFG = fg
		e.tmpBG = bg
	}
}

// WithImportPolicy sets how Import treats invalid lines
func WithImportPolicy(p ImportPolicy) Option {
	return func(e *Engine) { e.importPolicy = p }
}

// WithLogger sets the engine logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine is the color filter engine. The zero value is not usable; create one
// with NewEngine and call Load before classifying.
type Engine struct {
	compiler     Compiler
	paths        Paths
	stat         StatFunc
	tmpFG        Color
	tmpBG        [constants.TmpColorSlots]Color
	importPolicy ImportPolicy
	log          *slog.Logger

	// mu serializes mutations; classification only touches current
	mu         sync.Mutex
	current    atomic.Pointer[ruleSet]
	activePath string
}

// NewEngine creates an unloaded engine
func NewEngine(c Compiler, opts ...Option) *Engine {
	e := &Engine{
		compiler: c,
		tmpFG:    DefaultTmpForeground,
		tmpBG:    DefaultTmpBackgrounds,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.With("component", "colorfilter")
	}
	return e
}

// Loaded reports whether the engine holds a rule set
func (e *Engine) Loaded() bool {
	return e.current.Load() != nil
}

// ActivePath returns the rules file the current list was read from, or ""
func (e *Engine) ActivePath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activePath
}

// Paths returns the configured rules file locations
func (e *Engine) Paths() Paths {
	return e.paths
}

// Load reads the user rules file, or the global one if the user has none,
// and starts with empty temporary slots. Any malformed line or filter that
// fails to compile aborts the load. Neither file existing is not an error.
func (e *Engine) Load() error {
	return e.load(true)
}

// Reload re-reads the active rules file and replaces the persistent and
// conversation lists in one step. Temporary slots are kept. On error the
// previous rules stay in force.
func (e *Engine) Reload() error {
	return e.load(false)
}

func (e *Engine) load(resetTmp bool) error {
	path, ok := ResolveActiveRulesFile(e.paths, e.stat)

	var conversation, rules []*ColorRule
	if ok {
		compiled, err := e.compileFile(path)
		if err != nil {
			e.log.Error("Failed to load color filters", "path", path, "error", err)
			return err
		}
		conversation, rules = splitConversation(compiled)
	} else {
		e.log.Debug("No color filters file found", "user", e.paths.User, "global", e.paths.Global)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tmp := e.emptyTmp()
	if cur := e.current.Load(); cur != nil && !resetTmp {
		tmp = cur.tmp
	}
	e.swap(newRuleSet(tmp, conversation, rules))
	e.activePath = path

	e.log.Info("Loaded color filters", "path", path, "rules", len(rules), "conversation_rules", len(conversation))
	return nil
}

// Cleanup drops every rule. Predicates are freed once no classification
// still holds them. The engine can be loaded again afterwards.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if old := e.current.Swap(nil); old != nil {
		old.retire(nil)
	}
	e.activePath = ""
}

// swap publishes next and retires the previous generation. Caller holds mu.
func (e *Engine) swap(next *ruleSet) {
	next.onFree = func(freed int) {
		if freed > 0 {
			e.log.Debug("Freed retired color filters", "count", freed)
		}
	}
	if old := e.current.Swap(next); old != nil {
		old.retire(next)
	}
}

// acquire returns the current generation with a reference held, or nil
func (e *Engine) acquire() *ruleSet {
	for {
		s := e.current.Load()
		if s == nil {
			return nil
		}
		if s.acquire() {
			return s
		}
		// s was retired and freed between Load and acquire; the new
		// generation is already published
	}
}

// Classify returns the first enabled rule matching pkt, or nil. Temporary
// slots are tried first, then conversation rules, then the persistent list.
func (e *Engine) Classify(pkt *dissect.Packet) *ColorRule {
	s := e.acquire()
	if s == nil {
		return nil
	}
	defer s.release()

	var match *ColorRule
	s.each(func(r *ColorRule) bool {
		if r.Match(pkt) {
			match = r
			return false
		}
		return true
	})
	return match
}

// Prime marks every field referenced by an enabled rule as wanted on pkt.
// Call it before dissect.Dissect; skipping it only costs dissection time.
func (e *Engine) Prime(pkt *dissect.Packet) {
	s := e.current.Load()
	if s == nil {
		return
	}
	for _, f := range s.primeFields {
		pkt.Prime(f)
	}
}

// Used reports whether any enabled rule exists; callers may skip
// classification entirely when it is false
func (e *Engine) Used() bool {
	s := e.current.Load()
	return s != nil && s.anyActive
}

// Clone streams predicate-less copies of the persistent list in order.
// Conversation rules and temporary slots are not included.
func (e *Engine) Clone(onRule func(r *ColorRule)) {
	s := e.acquire()
	if s == nil {
		return
	}
	defer s.release()

	for _, r := range s.rules {
		onRule(r.Clone())
	}
}

// Rules returns predicate-less copies of the persistent list
func (e *Engine) Rules() []*ColorRule {
	var out []*ColorRule
	e.Clone(func(r *ColorRule) { out = append(out, r) })
	return out
}

// Apply replaces the temporary slots and the persistent list with edited
// copies. Every rule is compiled before anything changes; an enabled rule
// that fails to compile rejects the whole apply and leaves the current rules
// in force. Disabled rules that fail to compile are kept uncompiled.
// Conversation rules in edited replace same-named conversation rules.
func (e *Engine) Apply(tmp, edited []*ColorRule) error {
	if len(tmp) > constants.TmpColorSlots {
		return fmt.Errorf("got %d temporary color filters, at most %d are supported", len(tmp), constants.TmpColorSlots)
	}
	if !e.Loaded() {
		return ErrNotLoaded
	}

	var compiled []*ColorRule
	fail := func(err error) error {
		DeleteRules(compiled)
		e.log.Warn("Rejected color filter changes", "error", err)
		return err
	}

	newTmp := e.emptyTmp()
	for i, r := range tmp {
		if r == nil || r.FilterText == "" {
			continue
		}
		src := r.Clone()
		src.Name = tmpName(i + 1)
		cr, err := e.compileLenient(src)
		if err != nil {
			return fail(err)
		}
		compiled = append(compiled, cr)
		newTmp[i] = cr
	}

	newRules := make([]*ColorRule, 0, len(edited))
	var newConversation []*ColorRule
	for _, r := range edited {
		if !r.IsConversation() {
			if err := checkPersistable(r); err != nil {
				return fail(err)
			}
		}
		cr, err := e.compileLenient(r)
		if err != nil {
			return fail(err)
		}
		compiled = append(compiled, cr)
		if cr.IsConversation() {
			newConversation = append(newConversation, cr)
		} else {
			newRules = append(newRules, cr)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current.Load()
	if cur == nil {
		return fail(ErrNotLoaded)
	}
	conversation := mergeConversation(cur.conversation, newConversation)
	e.swap(newRuleSet(newTmp, conversation, newRules))

	e.log.Info("Applied color filters", "rules", len(newRules), "conversation_rules", len(conversation))
	return nil
}

// compileLenient compiles r, tolerating a bad filter on a disabled rule.
// Load, Import and Apply all use it, so whatever Apply keeps and Write saves
// loads again.
func (e *Engine) compileLenient(r *ColorRule) (*ColorRule, error) {
	cr, err := CompileRule(e.compiler, r)
	if err == nil {
		return cr, nil
	}
	if r.Disabled {
		e.log.Warn("Keeping disabled color filter that does not compile", "name", r.Name, "filter", r.FilterText, "error", err)
		return NewColorRule(r.Name, r.FilterText, r.Foreground, r.Background, true, nil), nil
	}
	return nil, err
}

// checkPersistable rejects rules the rules file cannot represent
func checkPersistable(r *ColorRule) error {
	if r.Name == "" {
		return fmt.Errorf("color filter with filter %q has an empty name", r.FilterText)
	}
	if strings.TrimSpace(r.FilterText) == "" {
		return fmt.Errorf("color filter %q has an empty filter", r.Name)
	}
	return nil
}

// mergeConversation replaces same-named entries of cur with upd and appends
// the rest
func mergeConversation(cur, upd []*ColorRule) []*ColorRule {
	if len(upd) == 0 {
		return cur
	}
	byName := make(map[string]*ColorRule, len(upd))
	for _, r := range upd {
		byName[r.Name] = r
	}
	out := make([]*ColorRule, 0, len(cur)+len(upd))
	for _, r := range cur {
		if repl, ok := byName[r.Name]; ok {
			out = append(out, repl)
			delete(byName, r.Name)
			continue
		}
		out = append(out, r)
	}
	for _, r := range upd {
		if _, ok := byName[r.Name]; ok {
			out = append(out, r)
		}
	}
	return out
}

// splitConversation separates conversation rules from the persistent list
func splitConversation(all []*ColorRule) (conversation, rules []*ColorRule) {
	for _, r := range all {
		if r.IsConversation() {
			conversation = append(conversation, r)
		} else {
			rules = append(rules, r)
		}
	}
	return conversation, rules
}

// compileFile strictly reads a rules file and compiles every enabled rule
func (e *Engine) compileFile(path string) ([]*ColorRule, error) {
	lines, err := readLinesFile(path, ImportAbort)
	if err != nil {
		return nil, err
	}
	rules := make([]*ColorRule, 0, len(lines))
	for _, l := range lines {
		r, err := e.compileLenient(l.rule())
		if err != nil {
			DeleteRules(rules)
			return nil, &LineError{Path: path, Line: l.lineNo, Err: err}
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Write saves rules to the user rules file
func (e *Engine) Write(rules []*ColorRule) error {
	if e.paths.User == "" {
		return fmt.Errorf("no user color filters file configured")
	}
	if err := writeRulesFile(e.paths.User, rules); err != nil {
		return err
	}
	e.log.Info("Saved color filters", "path", e.paths.User, "rules", len(rules))
	return nil
}

// Export writes rules to path; with onlySelected, only rules marked Selected
func (e *Engine) Export(path string, rules []*ColorRule, onlySelected bool) error {
	out := rules
	if onlySelected {
		out = make([]*ColorRule, 0, len(rules))
		for _, r := range rules {
			if r.Selected {
				out = append(out, r)
			}
		}
	}
	if err := writeRulesFile(path, out); err != nil {
		return err
	}
	e.log.Info("Exported color filters", "path", path, "rules", len(out))
	return nil
}

// emptyTmp returns ten empty, disabled slots in the configured palette
func (e *Engine) emptyTmp() [constants.TmpColorSlots]*ColorRule {
	var tmp [constants.TmpColorSlots]*ColorRule
	for i := range tmp {
		tmp[i] = NewColorRule(tmpName(i+1), "", e.tmpFG, e.tmpBG[i], true, nil)
	}
	return tmp
}

func checkSlot(slot int) {
	if slot < 1 || slot > constants.TmpColorSlots {
		panic(fmt.Sprintf("colorfilter: temporary slot %d out of range 1..%d", slot, constants.TmpColorSlots))
	}
}

// SetTmp sets temporary slot 1..10. An empty filterText keeps the slot's
// current filter and only changes its state. Enabling a filter disables any
// other slot holding the same filter text. On error the slot is unchanged.
// A slot outside 1..10 panics.
func (e *Engine) SetTmp(slot int, filterText string, disabled bool) error {
	checkSlot(slot)

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current.Load()
	if cur == nil {
		return ErrNotLoaded
	}
	idx := slot - 1
	old := cur.tmp[idx]

	text := filterText
	if text == "" {
		text = old.FilterText
	}
	if text == "" && !disabled {
		return fmt.Errorf("temporary color filter %d has no filter to enable", slot)
	}

	tmp := cur.tmp
	switch {
	case text == "":
		tmp[idx] = NewColorRule(old.Name, "", e.tmpFG, e.tmpBG[idx], true, nil)
	case filterText != "" || !disabled:
		r, err := CompileRule(e.compiler, NewColorRule(tmpName(slot), text, e.tmpFG, e.tmpBG[idx], disabled, nil))
		if err != nil {
			e.log.Warn("Temporary color filter does not compile", "slot", slot, "error", err)
			return err
		}
		tmp[idx] = r
	default:
		// disabling with the current text: the predicate is not needed
		tmp[idx] = NewColorRule(old.Name, text, e.tmpFG, e.tmpBG[idx], true, nil)
	}

	if !disabled {
		for i, r := range tmp {
			if i != idx && r.FilterText == text && !r.Disabled {
				tmp[i] = NewColorRule(r.Name, r.FilterText, r.Foreground, r.Background, true, nil)
			}
		}
	}

	e.swap(newRuleSet(tmp, cur.conversation, cur.rules))
	e.log.Debug("Set temporary color filter", "slot", slot, "filter", text, "disabled", disabled)
	return nil
}

// GetTmp returns a copy of temporary slot 1..10. A slot outside 1..10
// panics; an unloaded engine reports an empty disabled slot.
func (e *Engine) GetTmp(slot int) *ColorRule {
	checkSlot(slot)
	s := e.acquire()
	if s == nil {
		return NewColorRule(tmpName(slot), "", e.tmpFG, e.tmpBG[slot-1], true, nil)
	}
	defer s.release()
	return s.tmp[slot-1].Clone()
}

// CloneTmp returns copies of all ten slots in slot order
func (e *Engine) CloneTmp() []*ColorRule {
	out := make([]*ColorRule, 0, constants.TmpColorSlots)
	for slot := 1; slot <= constants.TmpColorSlots; slot++ {
		out = append(out, e.GetTmp(slot))
	}
	return out
}

// ResetTmp empties and disables every temporary slot
func (e *Engine) ResetTmp() {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current.Load()
	if cur == nil {
		return
	}
	e.swap(newRuleSet(e.emptyTmp(), cur.conversation, cur.rules))
	e.log.Debug("Reset temporary color filters")
}

// TmpUsed reports whether any temporary slot is enabled
func (e *Engine) TmpUsed() bool {
	s := e.current.Load()
	return s != nil && s.tmpActive
}
