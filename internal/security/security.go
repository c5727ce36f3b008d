// Package security provides guards for user-supplied workflow commands and
// keeps credentials out of tool output.
package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeCommand is wrapped by every rejection from CheckAllowed.
var ErrUnsafeCommand = errors.New("command appears destructive or unsafe")

type rule struct {
	reason string
	re     *regexp.Regexp
}

var rules = []rule{
	{"recursive delete of the filesystem root", regexp.MustCompile(`(?i)\brm\s+-rf\s+/`)},
	{"recursive delete of the home directory", regexp.MustCompile(`(?i)\brm\s+-rf\s+(~|\$HOME)`)},
	{"filesystem creation", regexp.MustCompile(`(?i)\bmkfs\b`)},
	{"raw disk write", regexp.MustCompile(`(?i)\bdd\s+if=`)},
	{"disk signature wipe", regexp.MustCompile(`(?i)\bwipefs\b`)},
	// :(){ :|:& };:
	{"fork bomb", regexp.MustCompile(`:\(\)\s*\{`)},
	{"remote script piped into a shell", regexp.MustCompile(`(?i)\b(curl|wget)\b[^|]*\|\s*(sudo\s+)?(ba|z)?sh\b`)},
	{"world-writable permissions on the filesystem root", regexp.MustCompile(`(?i)\bchmod\s+-R\s+777\s+/`)},
	{"history rewrite on the remote", regexp.MustCompile(`(?i)\bgit\s+push\b.*(\s--force\b|\s-f\b)`)},
}

// CheckAllowed returns nil if the command may run. Rejections wrap
// ErrUnsafeCommand and name the matching rule. Checking is conservative and
// not exhaustive.
func CheckAllowed(command string) error {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return errors.New("empty command")
	}
	for _, r := range rules {
		if r.re.MatchString(cmd) {
			return fmt.Errorf("%w: %s", ErrUnsafeCommand, r.reason)
		}
	}
	return nil
}

// CheckAll checks every command and reports the first rejected one.
func CheckAll(commands []string) error {
	for _, c := range commands {
		if err := CheckAllowed(c); err != nil {
			return fmt.Errorf("%q: %w", c, err)
		}
	}
	return nil
}
