package colorfilter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/endorses/colorcat/internal/pkg/constants"
)

// Color is an RGB color with 16 bits per channel. Only the top 8 bits are
// significant for display; the full width is kept so rules files round-trip
// bit exact.
type Color struct {
	Red   uint16
	Green uint16
	Blue  uint16
}

// RGB8 builds a Color from 8-bit channels, replicating each byte into both
// halves of the 16-bit channel
func RGB8(r, g, b uint8) Color {
	return Color{Red: uint16(r) * 0x101, Green: uint16(g) * 0x101, Blue: uint16(b) * 0x101}
}

// Hex returns the 12 hex digit rules-file form RRRRGGGGBBBB
func (c Color) Hex() string {
	return fmt.Sprintf("%04X%04X%04X", c.Red, c.Green, c.Blue)
}

// HTML returns the 8-bit "#rrggbb" form used for terminal rendering
func (c Color) HTML() string {
	return fmt.Sprintf("#%02x%02x%02x", c.Red>>8, c.Green>>8, c.Blue>>8)
}

func (c Color) String() string {
	return c.Hex()
}

// ParseColor parses a rules-file color. Accepted forms:
//
//	RRRRGGGGBBBB   12 hex digits, 16 bits per channel
//	RRGGBB         6 hex digits, 8 bits per channel
//	#RRGGBB        same, with a leading '#'
//	[r,g,b]        decimal 16-bit channels
//
// Any other hex string of at most 12 digits is read as one number,
// left-padded to 12 digits.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Color{}, fmt.Errorf("empty color")
	}

	if strings.HasPrefix(s, "[") {
		return parseBracketColor(s)
	}

	hexStr := strings.TrimPrefix(s, "#")
	if hexStr == "" || len(hexStr) > 12 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	for _, r := range hexStr {
		if !isHexDigit(r) {
			return Color{}, fmt.Errorf("invalid color %q: non-hex digit %q", s, r)
		}
	}

	if len(hexStr) == 6 {
		v, _ := strconv.ParseUint(hexStr, 16, 32)
		return RGB8(uint8(v>>16), uint8(v>>8), uint8(v)), nil
	}

	hexStr = strings.Repeat("0", 12-len(hexStr)) + hexStr
	r, _ := strconv.ParseUint(hexStr[0:4], 16, 16)
	g, _ := strconv.ParseUint(hexStr[4:8], 16, 16)
	b, _ := strconv.ParseUint(hexStr[8:12], 16, 16)
	return Color{Red: uint16(r), Green: uint16(g), Blue: uint16(b)}, nil
}

func parseBracketColor(s string) (Color, error) {
	if !strings.HasSuffix(s, "]") {
		return Color{}, fmt.Errorf("invalid color %q: missing ']'", s)
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != 3 {
		return Color{}, fmt.Errorf("invalid color %q: want 3 channels", s)
	}
	var ch [3]uint16
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 16)
		if err != nil {
			return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		ch[i] = uint16(v)
	}
	return Color{Red: ch[0], Green: ch[1], Blue: ch[2]}, nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// DefaultTmpForeground and DefaultTmpBackgrounds are the palette of the
// temporary slots, slot 1 first
var (
	DefaultTmpForeground  = Color{}
	DefaultTmpBackgrounds = [constants.TmpColorSlots]Color{
		RGB8(0xff, 0xc0, 0xc0),
		RGB8(0xff, 0xc0, 0xff),
		RGB8(0xe0, 0xc0, 0xe0),
		RGB8(0xc0, 0xc0, 0xff),
		RGB8(0xc0, 0xe0, 0xe0),
		RGB8(0xc0, 0xff, 0xff),
		RGB8(0xc0, 0xff, 0xc0),
		RGB8(0xff, 0xff, 0xc0),
		RGB8(0xe0, 0xe0, 0xc0),
		RGB8(0xe0, 0xe0, 0xe0),
	}
)
