// Package mode implements the policy gate described in spec.md §4.7: a pure
// function from (mode, operation, path|command) to allow/deny, checked on
// every mutating operation and on shell commands in architect mode.
package mode

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Name identifies one of the three modes in spec.md §3.
type Name string

const (
	Unrestricted Name = "unrestricted"
	Architect    Name = "architect"
	CodeWriter   Name = "code_writer"
)

// All is the sentinel meaning "no restriction" for allowed_globs/allowed_commands.
const All = "all"

// WriterConfig is code_writer's policy payload (spec.md §3).
type WriterConfig struct {
	AllowedGlobs    []string `json:"allowed_globs" yaml:"allowed_globs"`
	AllowedCommands []string `json:"allowed_commands" yaml:"allowed_commands"`
	// GlobsAll/CommandsAll mirror the "all" sentinel explicitly so the zero
	// value of WriterConfig (empty slices) means "nothing allowed" rather
	// than accidentally meaning "everything allowed".
	GlobsAll    bool `json:"-" yaml:"-"`
	CommandsAll bool `json:"-" yaml:"-"`
}

// Operation identifies the kind of action being checked.
type Operation string

const (
	OpReadFile  Operation = "read_file"
	OpWriteFile Operation = "write_file"
	OpEditFile  Operation = "edit_file"
	OpShell     Operation = "shell_command"
)

// Policy is the resolved mode for a workspace.
type Policy struct {
	Mode   Name
	Writer WriterConfig
}

// readOnlyShellAllowlist is the fixed set of first-tokens considered safe
// read-only commands, per spec.md §4.7 and SPEC_FULL.md's supplemented list.
var readOnlyShellAllowlist = map[string]bool{
	"ls": true, "cat": true, "head": true, "tail": true, "grep": true,
	"find": true, "pwd": true, "echo": true, "wc": true, "diff": true,
	"file": true, "which": true, "env": true, "date": true, "whoami": true,
	"ps": true, "df": true, "du": true, "uname": true, "go": true,
	"node": true, "npm": true, "python": true, "python3": true, "pytest": true,
}

// gitReadOnlySubcommands restricts "git" to read-only subcommands when
// checked as a read-only shell command.
var gitReadOnlySubcommands = map[string]bool{
	"status": true, "diff": true, "log": true, "show": true,
	"branch": true, "remote": true,
}

// Decision is the result of Check.
type Decision struct {
	Allowed bool
	Rule    string // name of the rule that produced this decision
}

func allow(rule string) Decision { return Decision{Allowed: true, Rule: rule} }
func deny(rule string) Decision  { return Decision{Allowed: false, Rule: rule} }

// Check evaluates whether op against target (a path for file ops, a literal
// command string for OpShell) is permitted under p.
func Check(p Policy, op Operation, target string) Decision {
	switch p.Mode {
	case Unrestricted:
		return allow("unrestricted")
	case Architect:
		return checkArchitect(op, target)
	case CodeWriter:
		return checkCodeWriter(p.Writer, op, target)
	default:
		return deny(fmt.Sprintf("unknown mode %q", p.Mode))
	}
}

func checkArchitect(op Operation, target string) Decision {
	switch op {
	case OpWriteFile, OpEditFile:
		return deny("architect: file mutation forbidden")
	case OpShell:
		if isReadOnlyCommand(target) {
			return allow("architect: read-only command allowed")
		}
		return deny("architect: command not in read-only allowlist")
	default:
		return allow("architect: read allowed")
	}
}

func checkCodeWriter(w WriterConfig, op Operation, target string) Decision {
	switch op {
	case OpWriteFile, OpEditFile:
		if w.GlobsAll {
			return allow("code_writer: allowed_globs=all")
		}
		for _, g := range w.AllowedGlobs {
			if g == All {
				return allow("code_writer: allowed_globs=all")
			}
			if matched, _ := filepath.Match(g, target); matched {
				return allow(fmt.Sprintf("code_writer: matched glob %q", g))
			}
			if matched := matchDoublestarGlob(g, target); matched {
				return allow(fmt.Sprintf("code_writer: matched glob %q", g))
			}
		}
		return deny("code_writer: path does not match any allowed_globs")
	case OpShell:
		if w.CommandsAll {
			return allow("code_writer: allowed_commands=all")
		}
		first := firstToken(target)
		for _, c := range w.AllowedCommands {
			if c == All || c == first {
				return allow(fmt.Sprintf("code_writer: matched command %q", c))
			}
		}
		return deny("code_writer: command not in allowed_commands")
	default:
		return allow("code_writer: read allowed")
	}
}

func isReadOnlyCommand(command string) bool {
	first := firstToken(command)
	if first == "" {
		return false
	}
	if first == "git" {
		sub := secondToken(command)
		if sub == "remote" {
			// only "git remote -v" is read-only; anything else (add/rm/set-url)
			// mutates config.
			fields := strings.Fields(command)
			return len(fields) == 3 && fields[2] == "-v"
		}
		return gitReadOnlySubcommands[sub]
	}
	return readOnlyShellAllowlist[first]
}

func firstToken(command string) string {
	fields := strings.Fields(strings.TrimSpace(command))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func secondToken(command string) string {
	fields := strings.Fields(strings.TrimSpace(command))
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

// matchDoublestarGlob supports "**" recursive segments, mirroring the
// teacher's tools/glob.go matchDoublestar but scoped to this package's
// simpler allow/deny need (single pattern vs single path).
func matchDoublestarGlob(pattern, name string) bool {
	if !strings.Contains(pattern, "**") {
		return false
	}
	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix != "" && !strings.HasPrefix(name, prefix+"/") && name != prefix {
		return false
	}
	rest := name
	if prefix != "" {
		rest = strings.TrimPrefix(name, prefix+"/")
	}
	if suffix == "" {
		return true
	}
	segments := strings.Split(rest, "/")
	for i := range segments {
		subpath := strings.Join(segments[i:], "/")
		if matched, _ := filepath.Match(suffix, subpath); matched {
			return true
		}
	}
	if matched, _ := filepath.Match(suffix, segments[len(segments)-1]); matched {
		return true
	}
	return false
}
