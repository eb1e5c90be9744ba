// Package colors turns raw cell colors into the two flags the register uses:
// a red font marks a document as excluded from notifications, and a yellow
// background marks it as under inspection.
//
// Only explicitly applied cell colors can be read. Colors coming from
// conditional formatting or theme references are invisible to the data
// source, so those cells classify as neither red nor yellow.
package colors

import (
	"strconv"
	"strings"
)

var redSwatches = map[string]struct{}{
	"#ff0000": {},
	"#cc0000": {},
	"#ea4335": {},
}

var yellowSwatches = map[string]struct{}{
	"#ffff00": {},
	"#fff2cc": {},
	"#ffe599": {},
	"#ffd966": {},
	"#fce8b2": {},
	"#ffffcc": {},
}

// RGB is a decoded color.
type RGB struct {
	R, G, B uint8
}

// Normalize returns raw as a lowercase "#rrggbb" string. It accepts an
// optional leading '#', three-digit shorthand and eight-digit ARGB as written
// by spreadsheet files. The second return is false for anything else.
func Normalize(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	case 8:
		s = s[2:]
	default:
		return "", false
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return "", false
	}
	return "#" + s, true
}

// Decode parses raw into its RGB components.
func Decode(raw string) (RGB, bool) {
	hex, ok := Normalize(raw)
	if !ok {
		return RGB{}, false
	}
	v, _ := strconv.ParseUint(hex[1:], 16, 32)
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

// IsRed reports whether raw is one of the known red swatches or close enough
// to pure red.
func IsRed(raw string) bool {
	hex, ok := Normalize(raw)
	if !ok {
		return false
	}
	if _, ok := redSwatches[hex]; ok {
		return true
	}
	c, _ := Decode(hex)
	return c.R >= 180 && c.G <= 80 && c.B <= 80
}

// IsYellow reports whether raw is one of the known yellow swatches or a warm
// light color with a low blue component.
func IsYellow(raw string) bool {
	hex, ok := Normalize(raw)
	if !ok {
		return false
	}
	if _, ok := yellowSwatches[hex]; ok {
		return true
	}
	c, _ := Decode(hex)
	return c.R >= 200 && c.G >= 200 && c.B <= 160
}

// IsExclusion classifies a font color. Red text excludes the field.
func IsExclusion(font string) bool {
	return IsRed(font)
}

// IsHold classifies a background color. Yellow fill puts the field on hold.
func IsHold(background string) bool {
	return IsYellow(background)
}
