package term

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const sentinelPrefix = "__WCGW_END__"

// newSentinelNonce returns a fresh per-session token with no characters
// that need escaping inside either a shell single-quoted string or a
// regexp.
func newSentinelNonce() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// promptCommand builds the one-shot PROMPT_COMMAND that prints the sentinel
// line, embedding the exit status and cwd (spec.md §4.1), and clears PS1 so
// that the sentinel is the last non-empty line of every prompt.
func promptCommand(nonce string) string {
	return "export PROMPT_COMMAND='printf \"" + sentinelPrefix + nonce +
		"__%d__%s__\\n\" \"$?\" \"$PWD\"'; PS1=''\n"
}

type sentinelMatch struct {
	exitCode int
	pwd      string
}

// findSentinel looks for the sentinel on rendered's last non-blank line,
// per spec.md §4.1's "idle set when the sentinel appears on the last
// non-empty row".
func findSentinel(re *regexp.Regexp, rendered string) (sentinelMatch, bool) {
	lines := strings.Split(rendered, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimRight(lines[i], " \t\r")
		if line == "" {
			continue
		}
		m := re.FindStringSubmatch(line)
		if m == nil {
			return sentinelMatch{}, false
		}
		code, _ := strconv.Atoi(m[1])
		return sentinelMatch{exitCode: code, pwd: m[2]}, true
	}
	return sentinelMatch{}, false
}

func sentinelRegexp(nonce string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(sentinelPrefix+nonce) + `__(\d+)__(.*)__$`)
}
