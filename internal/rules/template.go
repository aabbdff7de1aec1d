// internal/rules/template.go
package rules

import "strings"

// Tokens understood by the dispatcher. Templates may contain any other
// brace-delimited text; unknown tokens are passed through untouched.
const (
	TokenValue       = "{Value}"
	TokenTimestamp   = "{Timestamp}"
	TokenEventType   = "{EventType}"
	TokenFlow        = "{Flow}"
	TokenDescription = "{Description}"
)

// DefaultCommandTemplate renders the positional parameters of a record.
const DefaultCommandTemplate = "1,{EventType},'{Flow}','','{Description}',''"

// Substitution is one (token, replacement) pair.
type Substitution struct {
	Token string
	Value string
}

// Sub is shorthand for building a Substitution.
func Sub(token, value string) Substitution {
	return Substitution{Token: token, Value: value}
}

// Render replaces every occurrence of each token with its value.
// Replacement is a single left-to-right pass, so a replacement value that
// happens to contain another token is not expanded again. When two tokens
// match at the same position the one listed first wins.
func Render(template string, subs ...Substitution) string {
	if len(subs) == 0 {
		return template
	}
	pairs := make([]string, 0, len(subs)*2)
	for _, s := range subs {
		if s.Token == "" {
			continue
		}
		pairs = append(pairs, s.Token, s.Value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// SplitParameters splits a rendered command template on every comma.
// Commas inside quoted values are not protected: a Flow or Description
// containing a comma fragments the parameter list.
func SplitParameters(rendered string) []string {
	return strings.Split(rendered, ",")
}
