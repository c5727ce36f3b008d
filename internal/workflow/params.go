package workflow

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Parameter names available to workflow commands.
const (
	ParamPython    = "python"
	ParamOutputDir = "output_dir"
	ParamArtifacts = "artifacts"
)

var paramRe = regexp.MustCompile(`{{\s*([a-zA-Z0-9_.-]+)\s*}}`)

// FindParams returns a unique list of parameter names referenced in s in
// order of appearance.
func FindParams(s string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, m := range paramRe.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Expand replaces parameter placeholders in s using values from params.
// Values are inserted verbatim; use Quote for values that need shell
// quoting. If a parameter is missing, an error listing every missing key is
// returned.
func Expand(s string, params map[string]string) (string, error) {
	missing := map[string]bool{}
	result := paramRe.ReplaceAllStringFunc(s, func(match string) string {
		sub := paramRe.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		if v, ok := params[sub[1]]; ok {
			return v
		}
		missing[sub[1]] = true
		return match
	})
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return result, fmt.Errorf("missing parameters: %s", strings.Join(keys, ", "))
	}
	return result, nil
}

// Quote shell-quotes each word and joins them with spaces.
func Quote(words ...string) string {
	return shellquote.Join(words...)
}
