package colorfilter

import (
	"sort"
	"sync/atomic"

	"github.com/endorses/colorcat/internal/pkg/constants"
)

// ruleSet is one immutable generation of the engine's rules. Classification
// holds a reference while it evaluates; predicates owned only by a retired
// generation are freed once that generation is no longer referenced.
type ruleSet struct {
	tmp          [constants.TmpColorSlots]*ColorRule
	conversation []*ColorRule
	rules        []*ColorRule

	primeFields []string
	anyActive   bool
	tmpActive   bool

	// refs counts the engine's own reference (while current), every
	// in-flight classification, and the predecessor generation until it is
	// freed. The last rule is what keeps a rule shared by several
	// generations alive until the oldest of them is gone.
	refs      atomic.Int64
	orphans   []*ColorRule
	successor *ruleSet
	onFree    func(freed int)
}

func newRuleSet(tmp [constants.TmpColorSlots]*ColorRule, conversation, rules []*ColorRule) *ruleSet {
	s := &ruleSet{tmp: tmp, conversation: conversation, rules: rules}
	s.refs.Store(1)

	for _, r := range tmp {
		if r.Active() {
			s.tmpActive = true
		}
	}

	fields := make(map[string]struct{})
	s.each(func(r *ColorRule) bool {
		if r.Active() {
			s.anyActive = true
			for _, f := range r.predicate.Fields() {
				fields[f] = struct{}{}
			}
		}
		return true
	})
	s.primeFields = make([]string, 0, len(fields))
	for f := range fields {
		s.primeFields = append(s.primeFields, f)
	}
	sort.Strings(s.primeFields)
	return s
}

// each visits rules in classification order until fn returns false
func (s *ruleSet) each(fn func(r *ColorRule) bool) {
	for _, r := range s.tmp {
		if !fn(r) {
			return
		}
	}
	for _, r := range s.conversation {
		if !fn(r) {
			return
		}
	}
	for _, r := range s.rules {
		if !fn(r) {
			return
		}
	}
}

// acquire takes a reference unless the set has already been freed
func (s *ruleSet) acquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (s *ruleSet) release() {
	if s.refs.Add(-1) == 0 {
		s.free()
	}
}

// retire drops the engine's reference. Rules not carried over into next are
// freed with this generation. next may be nil on cleanup.
func (s *ruleSet) retire(next *ruleSet) {
	keep := make(map[*ColorRule]struct{})
	if next != nil {
		next.refs.Add(1)
		s.successor = next
		next.each(func(r *ColorRule) bool {
			keep[r] = struct{}{}
			return true
		})
	}
	s.each(func(r *ColorRule) bool {
		if _, ok := keep[r]; !ok {
			s.orphans = append(s.orphans, r)
		}
		return true
	})
	s.release()
}

func (s *ruleSet) free() {
	DeleteRules(s.orphans)
	if s.onFree != nil {
		s.onFree(len(s.orphans))
	}
	s.orphans = nil
	if s.successor != nil {
		succ := s.successor
		s.successor = nil
		succ.release()
	}
}
