package update

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	maxComponents    = 4
	remoteComponents = 3
)

// Ordering is the result of comparing two versions.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "equal"
	}
}

// Version is a numeric version of up to four components
// (major.minor.patch.build).
type Version struct {
	parts [maxComponents]int
	n     int
	Raw   string
}

// ParseVersion parses a dotted numeric version. A single leading 'v' or 'V'
// is stripped. Between one and four non-negative decimal components are
// accepted; anything else fails with an invalid_format error.
func ParseVersion(s string) (Version, error) {
	raw := s
	s = trimVersionPrefix(s)
	if s == "" {
		return Version{}, invalidFormat(fmt.Sprintf("empty version string %q", raw))
	}

	fields := strings.Split(s, ".")
	if len(fields) > maxComponents {
		return Version{}, invalidFormat(fmt.Sprintf("version %q has more than %d components", raw, maxComponents))
	}

	v := Version{n: len(fields), Raw: raw}
	for i, field := range fields {
		n, err := parseComponent(field)
		if err != nil {
			return Version{}, invalidFormat(fmt.Sprintf("version %q: %v", raw, err))
		}
		v.parts[i] = n
	}
	return v, nil
}

// ParseRemoteVersion parses a version published by the release feed. Remote
// identifiers keep at most three components: anything after the third is
// dropped before parsing, without being validated.
func ParseRemoteVersion(s string) (Version, error) {
	trimmed := trimVersionPrefix(s)
	fields := strings.Split(trimmed, ".")
	if len(fields) > remoteComponents {
		trimmed = strings.Join(fields[:remoteComponents], ".")
	}
	v, err := ParseVersion(trimmed)
	if err != nil {
		return Version{}, err
	}
	v.Raw = s
	return v, nil
}

func trimVersionPrefix(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "v") || strings.HasPrefix(s, "V") {
		s = s[1:]
	}
	return s
}

func parseComponent(field string) (int, error) {
	if field == "" {
		return 0, fmt.Errorf("empty component")
	}
	for _, r := range field {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("component %q is not a non-negative integer", field)
		}
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("component %q out of range", field)
	}
	return n, nil
}

// Components returns the parsed components in order.
func (v Version) Components() []int {
	out := make([]int, v.n)
	copy(out, v.parts[:v.n])
	return out
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return v.n == 0
}

// String returns the dotted form of the parsed components without a prefix.
func (v Version) String() string {
	if v.n == 0 {
		return ""
	}
	parts := make([]string, v.n)
	for i := 0; i < v.n; i++ {
		parts[i] = strconv.Itoa(v.parts[i])
	}
	return strings.Join(parts, ".")
}

// Compare orders v against other. Missing components compare as zero, so
// 1.2 and 1.2.0.0 are equal.
func (v Version) Compare(other Version) Ordering {
	for i := 0; i < maxComponents; i++ {
		if v.parts[i] < other.parts[i] {
			return Less
		}
		if v.parts[i] > other.parts[i] {
			return Greater
		}
	}
	return Equal
}

// LessThan returns true if v < other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) == Less
}

// GreaterThan returns true if v > other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) == Greater
}

// Equal returns true if v == other.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == Equal
}

// Compare orders a against b.
func Compare(a, b Version) Ordering {
	return a.Compare(b)
}
