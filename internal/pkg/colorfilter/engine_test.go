package colorfilter

import (
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/gopacket"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endorses/colorcat/internal/pkg/constants"
	"github.com/endorses/colorcat/internal/pkg/dissect"
	"github.com/endorses/colorcat/internal/pkg/dissect/dissecttest"
)

const twoRules = "A@tcp@FFFF0000@0000FFFF@\nB@udp@00FF0000@FFFF0000@\n"

var (
	tcpPacket  = func() *dissect.Packet { return dissecttest.Dissected(1, dissecttest.TCP("10.0.0.1", "10.0.0.2", 40000, 80, nil)) }
	udpPacket  = func() *dissect.Packet { return dissecttest.Dissected(2, dissecttest.UDP("10.0.0.1", "10.0.0.2", 40000, 7777, []byte("x"))) }
	icmpPacket = func() *dissect.Packet { return dissecttest.Dissected(3, dissecttest.ICMPEcho("10.0.0.1", "10.0.0.2")) }
)

func loadedEngine(t *testing.T, user string, opts ...Option) (*Engine, Paths) {
	t.Helper()
	e, p := newFileEngine(t, displayFilterCompiler(), user, "", opts...)
	require.NoError(t, e.Load())
	return e, p
}

func TestEngine_ExampleScenario(t *testing.T) {
	e, p := loadedEngine(t, twoRules)

	assert.True(t, e.Loaded())
	assert.True(t, e.Used())
	assert.Equal(t, p.User, e.ActivePath())

	a := e.Classify(tcpPacket())
	require.NotNil(t, a)
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, Color{Green: 0xffff}, a.Foreground)
	assert.Equal(t, Color{Blue: 0xffff}, a.Background)

	assert.Equal(t, "B", matchedName(e.Classify(udpPacket())))
	assert.Nil(t, e.Classify(icmpPacket()))
}

func TestEngine_GlobalFallback(t *testing.T) {
	e, p := newFileEngine(t, displayFilterCompiler(), "", "G@ip@000000000000@000000000000@\n")
	require.NoError(t, e.Load())
	assert.Equal(t, p.Global, e.ActivePath())
	assert.Equal(t, "G", matchedName(e.Classify(icmpPacket())))
}

func TestEngine_NoRulesFiles(t *testing.T) {
	e, _ := newFileEngine(t, displayFilterCompiler(), "", "")
	require.NoError(t, e.Load())

	assert.True(t, e.Loaded())
	assert.False(t, e.Used())
	assert.Empty(t, e.ActivePath())
	assert.Empty(t, e.Rules())
	assert.Nil(t, e.Classify(tcpPacket()))
}

func TestEngine_NotLoaded(t *testing.T) {
	e, _ := newFileEngine(t, displayFilterCompiler(), twoRules, "")

	assert.False(t, e.Loaded())
	assert.False(t, e.Used())
	assert.False(t, e.TmpUsed())
	assert.Nil(t, e.Classify(tcpPacket()))
	assert.Empty(t, e.Rules())
	assert.ErrorIs(t, e.SetTmp(1, "tcp", false), ErrNotLoaded)
	assert.ErrorIs(t, e.Apply(nil, nil), ErrNotLoaded)

	slot := e.GetTmp(4)
	assert.True(t, slot.Disabled)
	assert.Empty(t, slot.FilterText)
}

func TestEngine_FirstMatchPriority(t *testing.T) {
	e, _ := loadedEngine(t, "First@ip@000000000000@000000000000@\nSecond@tcp@000000000000@000000000000@\n")
	assert.Equal(t, "First", matchedName(e.Classify(tcpPacket())))
}

func TestEngine_TmpBeforePersistent(t *testing.T) {
	e, _ := loadedEngine(t, twoRules)

	require.NoError(t, e.SetTmp(5, "tcp.port == 80", false))
	got := e.Classify(tcpPacket())
	require.NotNil(t, got)
	assert.Equal(t, tmpName(5), got.Name)
	assert.Equal(t, DefaultTmpBackgrounds[4], got.Background)
	assert.Equal(t, DefaultTmpForeground, got.Foreground)

	assert.Equal(t, "B", matchedName(e.Classify(udpPacket())))
}

func TestEngine_DisabledRulesNeverMatch(t *testing.T) {
	e, _ := loadedEngine(t, "!Everything@frame@000000000000@000000000000@\nTCP@tcp@000000000000@000000000000@\n")

	assert.Equal(t, "TCP", matchedName(e.Classify(tcpPacket())))
	assert.Nil(t, e.Classify(udpPacket()))

	e2, _ := loadedEngine(t, "!Everything@frame@000000000000@000000000000@\n")
	assert.False(t, e2.Used())
	assert.Nil(t, e2.Classify(tcpPacket()))
}

func TestEngine_LoadCompileError(t *testing.T) {
	e, p := newFileEngine(t, displayFilterCompiler(), "A@tcp@000000000000@000000000000@\n# comment\nBad@no.such.field@000000000000@000000000000@\n", "")

	err := e.Load()
	require.Error(t, err)
	assert.False(t, e.Loaded())

	var lerr *LineError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, p.User, lerr.Path)
	assert.Equal(t, 3, lerr.Line)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "Bad", cerr.Name)
	assert.Contains(t, err.Error(), "no.such.field")
}

func TestEngine_LoadParseError(t *testing.T) {
	e, p := newFileEngine(t, displayFilterCompiler(), "A@tcp@000000000000@000000000000@\ngarbage\n", "")

	err := e.Load()
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, p.User, perr.Path)
	assert.Equal(t, 2, perr.Line)
}

func TestEngine_ReloadFailureKeepsRules(t *testing.T) {
	e, p := loadedEngine(t, twoRules)

	require.NoError(t, os.WriteFile(p.User, []byte("A@tcp ==@000000000000@000000000000@\n"), 0o600))
	err := e.Reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tcp ==")

	assert.Equal(t, "A", matchedName(e.Classify(tcpPacket())))
	assert.Equal(t, "B", matchedName(e.Classify(udpPacket())))
}

func TestEngine_ReloadIsIdempotent(t *testing.T) {
	e, _ := loadedEngine(t, twoRules+"I@icmp@000000000000@000000000000@\n")
	packets := []*dissect.Packet{tcpPacket(), udpPacket(), icmpPacket()}

	classifyAll := func() []string {
		var out []string
		for _, pkt := range packets {
			out = append(out, matchedName(e.Classify(pkt)))
		}
		return out
	}

	require.NoError(t, e.Reload())
	first := classifyAll()
	require.NoError(t, e.Reload())
	assert.Equal(t, first, classifyAll())
	assert.Equal(t, []string{"A", "B", "I"}, first)
}

func TestEngine_ReloadKeepsTmpAndLoadResetsThem(t *testing.T) {
	e, p := loadedEngine(t, twoRules)
	require.NoError(t, e.SetTmp(1, "icmp", false))

	require.NoError(t, os.WriteFile(p.User, []byte("Only@ip@000000000000@000000000000@\n"), 0o600))
	require.NoError(t, e.Reload())

	assert.Equal(t, tmpName(1), matchedName(e.Classify(icmpPacket())))
	assert.Equal(t, "Only", matchedName(e.Classify(tcpPacket())))

	require.NoError(t, e.Load())
	assert.False(t, e.TmpUsed())
	assert.Equal(t, "Only", matchedName(e.Classify(icmpPacket())))
}

func TestEngine_TmpSlotIsolation(t *testing.T) {
	e, _ := loadedEngine(t, twoRules)

	require.NoError(t, e.SetTmp(3, "ip.addr==1.2.3.4", false))
	got := e.GetTmp(3)
	assert.Equal(t, "ip.addr==1.2.3.4", got.FilterText)
	assert.False(t, got.Disabled)
	assert.False(t, got.Compiled(), "GetTmp returns a copy without predicate")
	assert.True(t, e.TmpUsed())

	for _, slot := range []int{1, 2, 4, 10} {
		assert.Empty(t, e.GetTmp(slot).FilterText)
	}

	e.ResetTmp()
	got = e.GetTmp(3)
	assert.Empty(t, got.FilterText)
	assert.True(t, got.Disabled)
	assert.False(t, e.TmpUsed())
}

func TestEngine_TmpUsedDuringSwaps(t *testing.T) {
	e, _ := loadedEngine(t, twoRules)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					e.TmpUsed()
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		require.NoError(t, e.SetTmp(1+i%constants.TmpColorSlots, "icmp", i%2 == 0))
		if i%20 == 0 {
			require.NoError(t, e.Reload())
		}
	}
	close(stop)
	wg.Wait()

	e.ResetTmp()
	assert.False(t, e.TmpUsed())
	require.NoError(t, e.SetTmp(4, "icmp", false))
	assert.True(t, e.TmpUsed())
	require.NoError(t, e.SetTmp(4, "", true))
	assert.False(t, e.TmpUsed(), "a disabled slot is not in use")
}

func TestEngine_SetTmp(t *testing.T) {
	e, _ := loadedEngine(t, twoRules)

	t.Run("compile failure leaves slot unchanged", func(t *testing.T) {
		require.NoError(t, e.SetTmp(2, "icmp", false))
		err := e.SetTmp(2, "icmp.type ==", false)
		var cerr *CompileError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "icmp.type ==", cerr.FilterText)
		assert.Equal(t, "icmp", e.GetTmp(2).FilterText)
		assert.Equal(t, tmpName(2), matchedName(e.Classify(icmpPacket())))
	})

	t.Run("empty text keeps the filter", func(t *testing.T) {
		require.NoError(t, e.SetTmp(2, "", true))
		got := e.GetTmp(2)
		assert.Equal(t, "icmp", got.FilterText)
		assert.True(t, got.Disabled)
		assert.Nil(t, e.Classify(icmpPacket()))

		require.NoError(t, e.SetTmp(2, "", false))
		assert.Equal(t, tmpName(2), matchedName(e.Classify(icmpPacket())))
	})

	t.Run("enabling an empty slot without text fails", func(t *testing.T) {
		assert.Error(t, e.SetTmp(7, "", false))
		assert.NoError(t, e.SetTmp(7, "", true))
	})

	t.Run("enabling disables slots with the same filter", func(t *testing.T) {
		require.NoError(t, e.SetTmp(8, "icmp", false))
		assert.True(t, e.GetTmp(2).Disabled)
		assert.Equal(t, "icmp", e.GetTmp(2).FilterText)
		assert.Equal(t, tmpName(8), matchedName(e.Classify(icmpPacket())))
	})

	t.Run("slot out of range panics", func(t *testing.T) {
		assert.Panics(t, func() { _ = e.SetTmp(0, "tcp", false) })
		assert.Panics(t, func() { _ = e.SetTmp(constants.TmpColorSlots+1, "tcp", false) })
		assert.Panics(t, func() { e.GetTmp(11) })
	})
}

func TestEngine_ApplyIsAtomic(t *testing.T) {
	e, _ := loadedEngine(t, twoRules)
	require.NoError(t, e.SetTmp(1, "icmp", false))

	edited := []*ColorRule{
		NewColorRule("New", "ip", Color{}, Color{}, false, nil),
		NewColorRule("Broken", "no.such.field == 1", Color{}, Color{}, false, nil),
	}
	err := e.Apply(nil, edited)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no.such.field == 1")

	assert.Equal(t, "A", matchedName(e.Classify(tcpPacket())))
	assert.Equal(t, "B", matchedName(e.Classify(udpPacket())))
	assert.Equal(t, tmpName(1), matchedName(e.Classify(icmpPacket())))
	assert.Equal(t, []string{"A", "B"}, ruleNames(e.Rules()))
}

func TestEngine_Apply(t *testing.T) {
	e, _ := loadedEngine(t, twoRules)
	require.NoError(t, e.SetTmp(4, "tcp", false))

	tmp := e.CloneTmp()
	require.Len(t, tmp, constants.TmpColorSlots)
	tmp[3] = NewColorRule("ignored", "", Color{}, Color{}, true, nil)
	tmp[0] = NewColorRule("whatever", "icmp", Color{Red: 1}, Color{Blue: 1}, false, nil)

	edited := e.Rules()
	edited = append([]*ColorRule{
		NewColorRule("Kept disabled", "no.such.field", Color{}, Color{}, true, nil),
	}, edited...)
	edited[2].Disabled = true // B

	require.NoError(t, e.Apply(tmp, edited))

	assert.Equal(t, []string{"Kept disabled", "A", "B"}, ruleNames(e.Rules()))
	assert.False(t, e.Rules()[0].Compiled())
	assert.Equal(t, "A", matchedName(e.Classify(tcpPacket())))
	assert.Nil(t, e.Classify(udpPacket()))

	slot1 := e.Classify(icmpPacket())
	require.NotNil(t, slot1)
	assert.Equal(t, tmpName(1), slot1.Name)
	assert.Equal(t, Color{Red: 1}, slot1.Foreground)
	assert.Empty(t, e.GetTmp(4).FilterText)
}

func TestEngine_ApplyWriteLoadKeepsDisabledBadRule(t *testing.T) {
	e, p := loadedEngine(t, twoRules)

	edited := append(e.Rules(), NewColorRule("Bad", "nosuch.field == 1", Color{}, Color{Red: 7}, true, nil))
	require.NoError(t, e.Apply(e.CloneTmp(), edited))
	require.NoError(t, e.Write(e.Rules()))

	fresh := NewEngine(displayFilterCompiler(), WithPaths(p), WithLogger(discardLogger()))
	t.Cleanup(fresh.Cleanup)
	require.NoError(t, fresh.Load())

	rules := fresh.Rules()
	assert.Equal(t, []string{"A", "B", "Bad"}, ruleNames(rules))
	assert.True(t, rules[2].Disabled)
	assert.Equal(t, "nosuch.field == 1", rules[2].FilterText)
	assert.Equal(t, Color{Red: 7}, rules[2].Background)
	assert.Equal(t, "A", matchedName(fresh.Classify(tcpPacket())))

	// The same rule enabled is still a hard error
	require.NoError(t, os.WriteFile(p.User, []byte("A@tcp@0@0@\nBad@nosuch.field == 1@0@0@\n"), 0o600))
	assert.Error(t, fresh.Reload())
	assert.Equal(t, []string{"A", "B", "Bad"}, ruleNames(fresh.Rules()))
}

func TestEngine_ApplyRejectsUnsavableRules(t *testing.T) {
	e, _ := loadedEngine(t, twoRules)

	for _, r := range []*ColorRule{
		NewColorRule("Empty", "", Color{}, Color{}, true, nil),
		NewColorRule("Blank", "   ", Color{}, Color{}, true, nil),
		NewColorRule("", "tcp", Color{}, Color{}, false, nil),
	} {
		err := e.Apply(e.CloneTmp(), append(e.Rules(), r))
		assert.Error(t, err, "rule %q", r.Name)
	}
	assert.Equal(t, []string{"A", "B"}, ruleNames(e.Rules()))
}

func TestEngine_ImportKeepsDisabledBadRule(t *testing.T) {
	e, _ := loadedEngine(t, twoRules)
	path := writeFile(t, t.TempDir(), "incoming", "!Bad@nosuch.field == 1@0@0@\nC@arp@0@0@\n")

	var got []*ColorRule
	require.NoError(t, e.Import(path, func(r *ColorRule) { got = append(got, r) }))
	defer DeleteRules(got)

	require.Len(t, got, 2)
	assert.Equal(t, "Bad", got[0].Name)
	assert.False(t, got[0].Compiled())
	assert.True(t, got[1].Compiled())
}

func TestEngine_ApplyTooManyTmp(t *testing.T) {
	e, _ := loadedEngine(t, twoRules)
	tmp := make([]*ColorRule, constants.TmpColorSlots+1)
	err := e.Apply(tmp, e.Rules())
	assert.Error(t, err)
	assert.Equal(t, "A", matchedName(e.Classify(tcpPacket())))
}

func TestEngine_ConversationRules(t *testing.T) {
	conv := constants.ConversationColorPrefix + "conv"
	e, p := loadedEngine(t, "TCP@tcp@000000000000@000000000000@\n"+conv+"@tcp.port == 80@FFFF00000000@000000000000@\n")

	// Matched ahead of the persistent list, never offered for editing
	assert.Equal(t, conv, matchedName(e.Classify(tcpPacket())))
	assert.Equal(t, []string{"TCP"}, ruleNames(e.Rules()))

	exported := p.User + ".export"
	all := append(e.Rules(), NewColorRule(conv, "ip", Color{}, Color{}, false, nil))
	require.NoError(t, e.Export(exported, all, false))
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.NotContains(t, string(data), constants.ConversationColorPrefix)

	// An applied conversation rule replaces the one with the same name
	edited := append(e.Rules(), NewColorRule(conv, "udp", Color{}, Color{}, false, nil))
	require.NoError(t, e.Apply(nil, edited))
	assert.Equal(t, "TCP", matchedName(e.Classify(tcpPacket())))
	assert.Equal(t, conv, matchedName(e.Classify(udpPacket())))
	assert.Equal(t, []string{"TCP"}, ruleNames(e.Rules()))
}

func TestEngine_WriteRoundTrip(t *testing.T) {
	content := "A@tcp@123456789ABC@000000000001@\n!B@dns.qry.name contains \"\\@\"@00FF0000@FFFF0000@\nC@ip.addr == 10.0.0.0/8@FFFFFFFFFFFF@000000000000@\n"
	e, _ := loadedEngine(t, content)
	before := e.Rules()

	require.NoError(t, e.Write(before))
	require.NoError(t, e.Reload())
	after := e.Rules()

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Name, after[i].Name)
		assert.Equal(t, before[i].FilterText, after[i].FilterText)
		assert.Equal(t, before[i].Foreground, after[i].Foreground)
		assert.Equal(t, before[i].Background, after[i].Background)
		assert.Equal(t, before[i].Disabled, after[i].Disabled)
	}
	assert.Equal(t, `dns.qry.name contains "@"`, after[1].FilterText)
	assert.Equal(t, Color{Red: 0x1234, Green: 0x5678, Blue: 0x9abc}, after[0].Foreground)
}

func TestEngine_ExportSelected(t *testing.T) {
	e, p := loadedEngine(t, twoRules)
	rules := e.Rules()
	rules[1].Selected = true

	out := p.User + ".selected"
	require.NoError(t, e.Export(out, rules, true))

	lines, err := readLinesFile(out, ImportAbort)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "B", lines[0].name)
}

func TestEngine_Import(t *testing.T) {
	content := "Good@tcp@000000000000@000000000000@\n" +
		"not a rule\n" +
		"Uncompilable@tcp.port ==@000000000000@000000000000@\n" +
		constants.ConversationColorPrefix + "x@ip@000000000000@000000000000@\n" +
		"Also good@udp@000000000000@000000000000@\n"

	t.Run("abort by default", func(t *testing.T) {
		e, p := loadedEngine(t, twoRules)
		path := writeFile(t, t.TempDir(), "import", content)

		var got []*ColorRule
		err := e.Import(path, func(r *ColorRule) { got = append(got, r) })
		require.Error(t, err)
		assert.Empty(t, got)
		assert.Contains(t, err.Error(), path+":2:")
		assert.Equal(t, p.User, e.ActivePath())
	})

	t.Run("skip invalid collects every error", func(t *testing.T) {
		e, _ := loadedEngine(t, twoRules, WithImportPolicy(ImportSkipInvalid))
		path := writeFile(t, t.TempDir(), "import", content)

		var got []*ColorRule
		err := e.Import(path, func(r *ColorRule) { got = append(got, r) })
		assert.Equal(t, []string{"Good", "Also good"}, ruleNames(got))
		for _, r := range got {
			assert.True(t, r.Compiled())
		}

		var merr *multierror.Error
		require.ErrorAs(t, err, &merr)
		require.Len(t, merr.Errors, 2)
		var cerr *CompileError
		require.ErrorAs(t, merr.Errors[1], &cerr)
		assert.Equal(t, "tcp.port ==", cerr.FilterText)
	})

	t.Run("clean file", func(t *testing.T) {
		e, _ := loadedEngine(t, twoRules)
		path := writeFile(t, t.TempDir(), "import", "X@icmp@000000000000@000000000000@\n")

		var got []*ColorRule
		require.NoError(t, e.Import(path, func(r *ColorRule) { got = append(got, r) }))
		require.Len(t, got, 1)

		edited := append(got, e.Rules()...)
		require.NoError(t, e.Apply(nil, edited))
		assert.Equal(t, "X", matchedName(e.Classify(icmpPacket())))
	})
}

func TestEngine_ReadGlobals(t *testing.T) {
	e, _ := newFileEngine(t, displayFilterCompiler(), twoRules, "G1@ip@000000000000@000000000000@\nG2@arp@000000000000@000000000000@\n")
	require.NoError(t, e.Load())

	var got []*ColorRule
	require.NoError(t, e.ReadGlobals(func(r *ColorRule) { got = append(got, r) }))
	assert.Equal(t, []string{"G1", "G2"}, ruleNames(got))
	assert.Equal(t, []string{"A", "B"}, ruleNames(e.Rules()))
}

func TestEngine_ReplacedPredicatesAreFreed(t *testing.T) {
	fc := newFakeCompiler()
	e, _ := newFileEngine(t, fc, "Persistent@tcp@000000000000@000000000000@\n", "")
	require.NoError(t, e.Load())

	require.NoError(t, e.SetTmp(1, "udp", false))
	require.NoError(t, e.SetTmp(1, "icmp", false))

	require.Len(t, fc.predicates("udp"), 1)
	assert.True(t, fc.predicates("udp")[0].freed.Load())
	assert.False(t, fc.predicates("icmp")[0].freed.Load())
	assert.False(t, fc.predicates("tcp")[0].freed.Load(), "untouched rules survive slot changes")

	e.Cleanup()
	assert.False(t, e.Loaded())
	assert.True(t, fc.predicates("icmp")[0].freed.Load())
	assert.True(t, fc.predicates("tcp")[0].freed.Load())
}

func TestEngine_FreeWaitsForClassification(t *testing.T) {
	fc := newFakeCompiler()
	e, _ := newFileEngine(t, fc, "Blocker@block:tcp@000000000000@000000000000@\n", "")
	require.NoError(t, e.Load())

	result := make(chan *ColorRule, 1)
	go func() { result <- e.Classify(tcpPacket()) }()
	<-fc.entered

	require.NoError(t, e.Apply(nil, []*ColorRule{NewColorRule("Other", "udp", Color{}, Color{}, false, nil)}))
	old := fc.predicates("block:tcp")[0]
	assert.False(t, old.freed.Load(), "predicate freed while being evaluated")

	close(fc.unblock)
	assert.Equal(t, "Blocker", matchedName(<-result))
	assert.True(t, old.freed.Load())
	assert.Nil(t, e.Classify(tcpPacket()))
	assert.Zero(t, fc.violations.Load())
}

func TestEngine_ConcurrentClassifyAndApply(t *testing.T) {
	fc := newFakeCompiler()
	e, _ := newFileEngine(t, fc, "T@tcp@000000000000@000000000000@\n", "")
	require.NoError(t, e.Load())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pkt := tcpPacket()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if r := e.Classify(pkt); r != nil {
					assert.Contains(t, []string{"T", "U"}, r.Name)
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		name := "T"
		if i%2 == 1 {
			name = "U"
		}
		require.NoError(t, e.Apply(nil, []*ColorRule{NewColorRule(name, "tcp", Color{}, Color{}, false, nil)}))
		require.NoError(t, e.SetTmp(1+i%constants.TmpColorSlots, "udp", i%3 == 0))
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, fc.violations.Load())
}

func TestEngine_PrimeDoesNotChangeResults(t *testing.T) {
	e, _ := loadedEngine(t, strings.Join([]string{
		`DNS name@dns.qry.name contains "example"@000000000000@000000000000@`,
		`Big data@data.len > 5@000000000000@000000000000@`,
		`Protocols@frame.protocols contains "icmp"@000000000000@000000000000@`,
	}, "\n")+"\n")

	packets := []gopacket.Packet{
		dissecttest.DNSQuery("10.0.0.1", "8.8.8.8", "www.example.com"),
		dissecttest.TCP("10.0.0.1", "10.0.0.2", 40000, 7777, []byte("hello world")),
		dissecttest.UDP("10.0.0.1", "10.0.0.2", 40000, 7777, []byte("hi")),
		dissecttest.ICMPEcho("10.0.0.1", "10.0.0.2"),
	}
	want := []string{"DNS name", "Big data", "", "Protocols"}

	for i, gp := range packets {
		full := dissecttest.Dissected(uint64(i+1), gp)

		primed := dissect.NewPacket(uint64(i + 1))
		e.Prime(primed)
		require.True(t, primed.Primed())
		dissect.Dissect(gp, primed)

		assert.Equal(t, want[i], matchedName(e.Classify(full)), "packet %d unprimed", i)
		assert.Equal(t, want[i], matchedName(e.Classify(primed)), "packet %d primed", i)
	}
}

func TestEngine_PrimeKeepsUnwantedProtocolsInFrameProtocols(t *testing.T) {
	e, _ := loadedEngine(t, strings.Join([]string{
		`DNS proto@frame.protocols contains "dns"@000000000000@000000000000@`,
		`Payload@frame.protocols contains "data"@000000000000@000000000000@`,
	}, "\n")+"\n")

	packets := []gopacket.Packet{
		dissecttest.DNSQuery("10.0.0.1", "8.8.8.8", "www.example.com"),
		dissecttest.TCP("10.0.0.1", "10.0.0.2", 40000, 7777, []byte("hello world")),
		dissecttest.TCP("10.0.0.1", "10.0.0.2", 40000, 7777, nil),
	}
	want := []string{"DNS proto", "Payload", ""}

	for i, gp := range packets {
		full := dissecttest.Dissected(uint64(i+1), gp)

		primed := dissect.NewPacket(uint64(i + 1))
		e.Prime(primed)
		dissect.Dissect(gp, primed)

		assert.Equal(t, full.Values("frame.protocols"), primed.Values("frame.protocols"), "packet %d", i)
		assert.Equal(t, want[i], matchedName(e.Classify(full)), "packet %d unprimed", i)
		assert.Equal(t, want[i], matchedName(e.Classify(primed)), "packet %d primed", i)
	}
}

func TestEngine_PrimeSkipsUnwantedFields(t *testing.T) {
	e, _ := loadedEngine(t, twoRules)

	pkt := dissect.NewPacket(1)
	e.Prime(pkt)
	dissect.Dissect(dissecttest.DNSQuery("10.0.0.1", "8.8.8.8", "example.com"), pkt)

	assert.True(t, pkt.Has("udp"))
	assert.False(t, pkt.Has("dns.qry.name"))
	assert.Equal(t, "B", matchedName(e.Classify(pkt)))
}

func TestEngine_CleanupThenLoad(t *testing.T) {
	e, _ := loadedEngine(t, twoRules)
	e.Cleanup()
	assert.Nil(t, e.Classify(tcpPacket()))
	assert.Empty(t, e.ActivePath())

	require.NoError(t, e.Load())
	assert.Equal(t, "A", matchedName(e.Classify(tcpPacket())))
}
