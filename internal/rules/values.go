// internal/rules/values.go
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

/*
 * Value parsing policy.
 *
 * Applied to raw trap variable text before condition evaluation and again to
 * every positional command parameter before it reaches a sink. The policy is
 * a fixed precedence ladder; the first step that succeeds wins:
 *
 *   1. '...'            -> string with the quotes stripped
 *   2. integer           -> int
 *   3. floating point    -> float64
 *   4. true / false      -> bool (case-insensitive)
 *   5. TimestampLayout   -> time.Time (local)
 *   6. general timestamp -> time.Time (cast.StringToDate layouts)
 *   7. anything else     -> the raw string, unchanged
 *
 * Quoting is the only way to force a numeric-looking value to stay textual,
 * which is why the default command template quotes Flow and Description.
 */

// TimestampLayout is the fixed textual timestamp format used for the
// {Timestamp} token and the first timestamp parsing attempt.
const TimestampLayout = "2006-01-02 15:04:05.000"

// ParseValue converts raw text to the most specific type the policy allows.
func ParseValue(raw string) any {
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		return raw[1 : len(raw)-1]
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}

	if i, err := strconv.Atoi(trimmed); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}

	switch {
	case strings.EqualFold(trimmed, "true"):
		return true
	case strings.EqualFold(trimmed, "false"):
		return false
	}

	if t, err := time.ParseInLocation(TimestampLayout, trimmed, time.Local); err == nil {
		return t
	}
	if t, err := cast.ToTimeE(trimmed); err == nil {
		return t
	}

	return raw
}

// FormatValue renders a parsed value back to text for template tokens.
// Integral floats keep no trailing zeros; timestamps use TimestampLayout.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(TimestampLayout)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseBoolean interprets an expression result as a boolean.
// Accepts true/false, t/f, 1/0 (via cast), yes/no, on/off, and any
// numeric text where non-zero means true.
func ParseBoolean(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if b, err := cast.ToBoolE(s); err == nil {
		return b, nil
	}
	switch strings.ToLower(s) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
