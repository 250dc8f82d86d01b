// Package playercmd builds argument vectors for external player binaries.
//
// This layer is pure command construction: no execution, no I/O. Callers get
// the argv for exec and a shell-quoted string for logging. The stream URL is
// kept out of the logged form because it may embed credentials.
package playercmd

import (
	"strconv"
	"strings"
)

// Builder is a fluent argv builder. It is not safe for concurrent use.
//
// Invariants:
//   - argv[0] is always the binary name.
//   - All With* methods are order-preserving.
//   - BuildArgv returns a defensive copy.
type Builder struct {
	args   []string
	secret map[int]string // argv index -> printable replacement
}

// NewBuilder returns a Builder pre-seeded with the binary name.
func NewBuilder(binary string) *Builder {
	return &Builder{args: []string{binary}}
}

// WithFlag appends a bare flag.
func (b *Builder) WithFlag(flag string) *Builder {
	b.args = append(b.args, flag)
	return b
}

// WithFlagIf appends flag only when cond holds.
func (b *Builder) WithFlagIf(cond bool, flag string) *Builder {
	if cond {
		b.args = append(b.args, flag)
	}
	return b
}

// WithIntFlag appends a flag with a base-10 value (always emitted).
func (b *Builder) WithIntFlag(flag string, val int) *Builder {
	b.args = append(b.args, flag, strconv.Itoa(val))
	return b
}

// WithStringFlag appends a flag with a string value if non-empty.
func (b *Builder) WithStringFlag(flag, val string) *Builder {
	if val != "" {
		b.args = append(b.args, flag, val)
	}
	return b
}

// WithAssign appends flag=val (always emitted). Used by players that only
// accept the joined form.
func (b *Builder) WithAssign(flag string, val string) *Builder {
	b.args = append(b.args, flag+"="+val)
	return b
}

// WithIntAssign appends flag=val with a base-10 value.
func (b *Builder) WithIntAssign(flag string, val int) *Builder {
	return b.WithAssign(flag, strconv.Itoa(val))
}

// WithString appends a positional argument if non-empty.
func (b *Builder) WithString(arg string) *Builder {
	if arg != "" {
		b.args = append(b.args, arg)
	}
	return b
}

// WithSecret appends a positional argument that BuildString replaces with
// printable.
func (b *Builder) WithSecret(arg, printable string) *Builder {
	if arg == "" {
		return b
	}
	if b.secret == nil {
		b.secret = make(map[int]string)
	}
	b.secret[len(b.args)] = printable
	b.args = append(b.args, arg)
	return b
}

// BuildArgv returns a defensive copy of the argument vector.
func (b *Builder) BuildArgv() []string {
	out := make([]string, len(b.args))
	copy(out, b.args)
	return out
}

// BuildString returns a shell-quoted command line with secrets replaced.
func (b *Builder) BuildString() string {
	var sb strings.Builder
	for i, a := range b.args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if p, ok := b.secret[i]; ok {
			a = p
		}
		sb.WriteString(shQuote(a))
	}
	return sb.String()
}

// shQuote wraps s in single quotes, escaping inner quotes as '\''.
func shQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`&|;<>()*?[]{}!#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
