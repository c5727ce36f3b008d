package provision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a CPython release number.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Less orders versions numerically.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Patch < o.Patch
}

var versionOutputRe = regexp.MustCompile(`Python\s+(\d+)\.(\d+)(?:\.(\d+))?`)

// ParseVersionOutput extracts the version from `python --version` output,
// e.g. "Python 3.12.4" or "Python 3.13.0rc1".
func ParseVersionOutput(out string) (Version, error) {
	m := versionOutputRe.FindStringSubmatch(out)
	if m == nil {
		return Version{}, fmt.Errorf("unrecognised interpreter version output %q", strings.TrimSpace(out))
	}
	var v Version
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		v.Patch, _ = strconv.Atoi(m[3])
	}
	return v, nil
}

// Selector matches a family of versions. A negative component is a
// wildcard.
type Selector struct {
	raw                 string
	major, minor, patch int
}

func (s Selector) String() string { return s.raw }

// ParseSelector accepts "3.x", "3", "3.12", "3.12.x" and "3.12.4". The
// empty selector means "3.x".
func ParseSelector(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "3.x"
	}
	s := Selector{raw: raw, major: -1, minor: -1, patch: -1}
	parts := strings.Split(raw, ".")
	if len(parts) > 3 {
		return Selector{}, fmt.Errorf("invalid version selector %q", raw)
	}
	dst := []*int{&s.major, &s.minor, &s.patch}
	wild := false
	for i, p := range parts {
		if p == "x" || p == "X" || p == "*" {
			if i == 0 {
				return Selector{}, fmt.Errorf("invalid version selector %q: major version is required", raw)
			}
			wild = true
			continue
		}
		if wild {
			return Selector{}, fmt.Errorf("invalid version selector %q: nothing may follow a wildcard", raw)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Selector{}, fmt.Errorf("invalid version selector %q", raw)
		}
		*dst[i] = n
	}
	return s, nil
}

// Matches reports whether v belongs to the selected family.
func (s Selector) Matches(v Version) bool {
	if s.major >= 0 && v.Major != s.major {
		return false
	}
	if s.minor >= 0 && v.Minor != s.minor {
		return false
	}
	if s.patch >= 0 && v.Patch != s.patch {
		return false
	}
	return true
}

// Exact reports whether the selector pins a full version.
func (s Selector) Exact() bool {
	return s.major >= 0 && s.minor >= 0 && s.patch >= 0
}
