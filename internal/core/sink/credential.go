package sink

import (
	"os"
	"strings"
)

// EnvPrefix marks a credential value as the name of an environment variable.
const EnvPrefix = "$env:"

// ResolveCredential returns the environment value for "$env:NAME" references
// and the literal value otherwise. An unset variable resolves to "", a bare
// prefix with no name is kept literally.
func ResolveCredential(value string) string {
	name, ok := strings.CutPrefix(value, EnvPrefix)
	if !ok || name == "" {
		return value
	}
	return os.Getenv(strings.TrimSpace(name))
}

// IsDefined reports whether a credential resolves to a non-blank value.
func IsDefined(value string) bool {
	return strings.TrimSpace(ResolveCredential(value)) != ""
}
