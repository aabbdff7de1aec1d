package rules

import (
	"reflect"
	"testing"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		subs     []Substitution
		want     string
	}{
		{
			name:     "default description",
			template: DefaultDescription,
			subs:     []Substitution{Sub(TokenValue, "42"), Sub(TokenTimestamp, "2020-01-01 00:00:00.000")},
			want:     "42 at 2020-01-01 00:00:00.000",
		},
		{
			name:     "unresolved token passes through",
			template: "{Value} from {Host}",
			subs:     []Substitution{Sub(TokenValue, "7")},
			want:     "7 from {Host}",
		},
		{
			name:     "repeated token",
			template: "{Flow}/{Flow}",
			subs:     []Substitution{Sub(TokenFlow, "a")},
			want:     "a/a",
		},
		{
			name:     "replacement containing token is not expanded",
			template: "{Description}",
			subs:     []Substitution{Sub(TokenDescription, "{Flow}"), Sub(TokenFlow, "x")},
			want:     "{Flow}",
		},
		{
			name:     "no substitutions",
			template: "{Value}",
			want:     "{Value}",
		},
		{
			name:     "empty replacement",
			template: "'{Flow}'",
			subs:     []Substitution{Sub(TokenFlow, "")},
			want:     "''",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, tt.subs...); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitParameters(t *testing.T) {
	got := SplitParameters("1,3,'flowA','','15 at now',''")
	want := []string{"1", "3", "'flowA'", "''", "'15 at now'", "''"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitParameters() = %#v, want %#v", got, want)
	}

	// Commas inside quoted values fragment the list.
	got = SplitParameters("'a,b'")
	if len(got) != 2 {
		t.Errorf("SplitParameters(quoted comma) len = %d, want 2", len(got))
	}
}
