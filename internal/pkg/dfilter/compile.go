package dfilter

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/endorses/colorcat/internal/pkg/dissect"
)

// matchFunc evaluates a compiled expression against a field tree
type matchFunc func(pkt *dissect.Packet) bool

func compileNode(n node) (matchFunc, error) {
	switch n := n.(type) {
	case binaryNode:
		left, err := compileNode(n.left)
		if err != nil {
			return nil, err
		}
		right, err := compileNode(n.right)
		if err != nil {
			return nil, err
		}
		if n.or {
			return func(pkt *dissect.Packet) bool { return left(pkt) || right(pkt) }, nil
		}
		return func(pkt *dissect.Packet) bool { return left(pkt) && right(pkt) }, nil
	case notNode:
		inner, err := compileNode(n.inner)
		if err != nil {
			return nil, err
		}
		return func(pkt *dissect.Packet) bool { return !inner(pkt) }, nil
	case existsNode:
		abbrev := n.field.Abbrev
		return func(pkt *dissect.Packet) bool { return pkt.Has(abbrev) }, nil
	case compareNode:
		return compileCompare(n)
	default:
		return nil, fmt.Errorf("unknown node %T", n)
	}
}

// valueTest reports whether a single occurrence satisfies the comparison
type valueTest func(v dissect.Value) bool

func compileCompare(n compareNode) (matchFunc, error) {
	test, err := compileValueTest(n)
	if err != nil {
		return nil, err
	}
	abbrev := n.field.Abbrev

	if n.op == "!=" {
		// Present, and no occurrence equals the literal
		return func(pkt *dissect.Packet) bool {
			vals := pkt.Values(abbrev)
			if len(vals) == 0 {
				return false
			}
			for _, v := range vals {
				if test(v) {
					return false
				}
			}
			return true
		}, nil
	}

	return func(pkt *dissect.Packet) bool {
		for _, v := range pkt.Values(abbrev) {
			if test(v) {
				return true
			}
		}
		return false
	}, nil
}

// compileValueTest parses the literal for the field's type. For "!=" the
// returned test is the equality test; compileCompare negates it.
func compileValueTest(n compareNode) (valueTest, error) {
	lit := n.raw.text
	bad := func(format string, args ...any) error {
		return &SyntaxError{Offset: n.raw.pos, Msg: fmt.Sprintf(format, args...)}
	}
	unsupported := func() error {
		return bad("%q (%s) cannot be used with %q", n.field.Abbrev, n.field.Type, n.op)
	}

	if n.op == "matches" {
		switch n.field.Type {
		case dissect.FTString, dissect.FTBytes:
		default:
			return nil, unsupported()
		}
		re, err := regexp.Compile(lit)
		if err != nil {
			return nil, bad("invalid regular expression %q: %v", lit, err)
		}
		if n.field.Type == dissect.FTString {
			return func(v dissect.Value) bool { return re.MatchString(v.Str) }, nil
		}
		return func(v dissect.Value) bool { return re.Match(v.Bytes) }, nil
	}

	switch n.field.Type {
	case dissect.FTProtocol:
		return nil, bad("protocol %q cannot be compared, test it for presence instead", n.field.Abbrev)

	case dissect.FTUint, dissect.FTBool:
		want, err := parseUint(lit, n.field.Type == dissect.FTBool)
		if err != nil {
			return nil, bad("%q is not a valid %s", lit, n.field.Type)
		}
		cmp, ok := uintComparators[n.op]
		if !ok || (n.field.Type == dissect.FTBool && n.op != "==" && n.op != "!=") {
			return nil, unsupported()
		}
		return func(v dissect.Value) bool { return cmp(v.Uint, want) }, nil

	case dissect.FTIP:
		if n.op != "==" && n.op != "!=" {
			return nil, unsupported()
		}
		prefix, err := parsePrefix(lit)
		if err != nil {
			return nil, bad("%q is not a valid IP address or network", lit)
		}
		return func(v dissect.Value) bool { return prefix.Contains(v.IP) }, nil

	case dissect.FTEther:
		if n.op != "==" && n.op != "!=" {
			return nil, unsupported()
		}
		mac, err := net.ParseMAC(lit)
		if err != nil || len(mac) != 6 {
			return nil, bad("%q is not a valid Ethernet address", lit)
		}
		return func(v dissect.Value) bool { return bytes.Equal(v.Bytes, mac) }, nil

	case dissect.FTString:
		switch n.op {
		case "contains":
			return func(v dissect.Value) bool { return strings.Contains(v.Str, lit) }, nil
		case "==", "!=":
			return func(v dissect.Value) bool { return v.Str == lit }, nil
		case ">":
			return func(v dissect.Value) bool { return v.Str > lit }, nil
		case "<":
			return func(v dissect.Value) bool { return v.Str < lit }, nil
		case ">=":
			return func(v dissect.Value) bool { return v.Str >= lit }, nil
		case "<=":
			return func(v dissect.Value) bool { return v.Str <= lit }, nil
		}
		return nil, unsupported()

	case dissect.FTBytes:
		want := []byte(lit)
		if n.raw.kind == tokWord {
			b, err := parseByteString(lit)
			if err != nil {
				return nil, bad("%q is not a valid byte string", lit)
			}
			want = b
		}
		switch n.op {
		case "contains":
			return func(v dissect.Value) bool { return bytes.Contains(v.Bytes, want) }, nil
		case "==", "!=":
			return func(v dissect.Value) bool { return bytes.Equal(v.Bytes, want) }, nil
		}
		return nil, unsupported()
	}

	return nil, unsupported()
}

var uintComparators = map[string]func(have, want uint64) bool{
	"==": func(have, want uint64) bool { return have == want },
	"!=": func(have, want uint64) bool { return have == want },
	">":  func(have, want uint64) bool { return have > want },
	"<":  func(have, want uint64) bool { return have < want },
	">=": func(have, want uint64) bool { return have >= want },
	"<=": func(have, want uint64) bool { return have <= want },
}

func parseUint(lit string, boolean bool) (uint64, error) {
	if boolean {
		switch strings.ToLower(lit) {
		case "true", "1":
			return 1, nil
		case "false", "0":
			return 0, nil
		}
		return 0, fmt.Errorf("not a boolean")
	}
	return strconv.ParseUint(lit, 0, 64)
}

func parsePrefix(lit string) (netip.Prefix, error) {
	if strings.Contains(lit, "/") {
		prefix, err := netip.ParsePrefix(lit)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(lit)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// parseByteString accepts "aa:bb:cc", "aa-bb-cc", "aa.bb.cc" or "aabbcc"
func parseByteString(lit string) ([]byte, error) {
	clean := strings.NewReplacer(":", "", "-", "", ".", "").Replace(lit)
	if clean == "" || len(clean)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits")
	}
	return hex.DecodeString(clean)
}
