package repl

import (
	"sort"
	"strings"
)

// Completer resolves chat commands from their prefixes.
type Completer struct {
	commands []string
}

// NewCompleter creates a completer for the given commands.
func NewCompleter(commands ...string) *Completer {
	c := &Completer{commands: append([]string(nil), commands...)}
	sort.Strings(c.commands)
	return c
}

// Complete returns the commands that start with prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Resolve returns the command named by an exact match or a unique
// prefix.
func (c *Completer) Resolve(prefix string) (string, bool) {
	matches := c.Complete(prefix)
	for _, m := range matches {
		if m == prefix {
			return m, true
		}
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	return "", false
}
