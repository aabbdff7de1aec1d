package db

import (
	"fmt"

	"github.com/qustavo/dotsql"
)

// Commands holds named SQL commands parsed from a dotsql file, where each
// statement is preceded by a "-- name: <command>" line.
type Commands struct {
	dot *dotsql.DotSql
}

// LoadCommands parses the named commands in path.
func LoadCommands(path string) (*Commands, error) {
	dot, err := dotsql.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load commands from %s: %w", path, err)
	}
	return &Commands{dot: dot}, nil
}

// ParseCommands parses named commands from a string.
func ParseCommands(src string) (*Commands, error) {
	dot, err := dotsql.LoadFromString(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse commands: %w", err)
	}
	return &Commands{dot: dot}, nil
}

// Lookup returns the raw SQL of a named command.
func (c *Commands) Lookup(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	query, err := c.dot.Raw(name)
	if err != nil {
		return "", false
	}
	return query, true
}

// Names lists the loaded command names.
func (c *Commands) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.dot.QueryMap()))
	for name := range c.dot.QueryMap() {
		names = append(names, name)
	}
	return names
}
