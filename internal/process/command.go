package process

import (
	"os/exec"
	"strings"
)

const shellMeta = "|&;<>*?`$\"'(){}[]~"

var shellPrefixes = []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "}

// BuildCommand turns a declared command line into an *exec.Cmd. Lines with
// shell metacharacters go through /bin/sh -c, as does an explicit "sh -c"
// prefix (without nesting a second shell). Anything else is split on
// whitespace and executed directly. An empty line runs /bin/true.
func BuildCommand(line string) *exec.Cmd {
	argv := argvFor(strings.TrimSpace(line))
	// #nosec G204
	return exec.Command(argv[0], argv[1:]...)
}

func argvFor(line string) []string {
	switch {
	case line == "":
		return []string{"/bin/true"}
	case hasShellPrefix(line):
		return []string{"/bin/sh", "-c", unquote(line[strings.Index(line, "-c ")+3:])}
	case strings.ContainsAny(line, shellMeta):
		return []string{"/bin/sh", "-c", line}
	default:
		return strings.Fields(line)
	}
}

func hasShellPrefix(line string) bool {
	for _, p := range shellPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// unquote strips one pair of matching outer quotes.
func unquote(s string) string {
	if n := len(s); n >= 2 && (s[0] == '\'' || s[0] == '"') && s[n-1] == s[0] {
		return s[1 : n-1]
	}
	return s
}
