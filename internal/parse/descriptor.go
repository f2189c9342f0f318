package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	sizePNRe = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*MM\s*(?:-|/)?\s*PN\s*(\d+(?:\.\d+)?)$`)
	sizeRe   = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*MM$`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// SizePN is a pipe size together with its pressure rating.
type SizePN struct {
	Size           string // e.g. "20MM"
	PressureRating string // e.g. "16"
}

// String renders the canonical descriptor, e.g. "20MM PN 16".
func (s SizePN) String() string {
	return FormatSizePN(s.Size, s.PressureRating)
}

// FormatSizePN joins a size and pressure rating into the form operators pick from.
func FormatSizePN(size, pressureRating string) string {
	return fmt.Sprintf("%s PN %s", size, pressureRating)
}

// ParseSizePN splits a descriptor such as "20MM PN 16" (also "20 mm pn16", "20MM-PN16").
func ParseSizePN(raw string) (SizePN, error) {
	s := strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
	m := sizePNRe.FindStringSubmatch(s)
	if m == nil {
		return SizePN{}, fmt.Errorf("unable to parse size descriptor: %q", raw)
	}
	return SizePN{Size: m[1] + "MM", PressureRating: m[2]}, nil
}

// NormalizeSize canonicalises a bare size such as "20 mm" to "20MM".
// Input that does not look like a millimetre size is returned trimmed.
func NormalizeSize(raw string) string {
	s := strings.TrimSpace(raw)
	if m := sizeRe.FindStringSubmatch(s); m != nil {
		return m[1] + "MM"
	}
	if p, err := ParseSizePN(s); err == nil {
		return p.String()
	}
	return s
}
