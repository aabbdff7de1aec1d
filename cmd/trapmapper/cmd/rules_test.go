package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.xml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateRules(t *testing.T) {
	path := writeRules(t, `<config>
  <source community="public" authPhrase="a" encryptKey="b">
    <mapping oid="1.3.6.1.4.1.1" flow="ok" condition="value &gt; 1"/>
  </source>
  <source community="PUBLIC" authPhrase="a" encryptKey="b"/>
</config>`)

	var out bytes.Buffer
	if err := validateRules(&out, path); err != nil {
		t.Fatalf("validateRules() error = %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), `community "public" is defined 2 times`) {
		t.Errorf("missing duplicate warning:\n%s", out.String())
	}
	if !strings.HasSuffix(out.String(), "ok\n") {
		t.Errorf("missing ok line:\n%s", out.String())
	}
}

func TestValidateRules_InvalidCondition(t *testing.T) {
	path := writeRules(t, `<config>
  <source community="public" authPhrase="a" encryptKey="b">
    <mapping oid="1.3.6.1.4.1.1" flow="broken" condition="value &gt;"/>
  </source>
</config>`)

	var out bytes.Buffer
	err := validateRules(&out, path)
	if err == nil {
		t.Fatal("expected error for invalid condition")
	}
	if !strings.Contains(out.String(), "1.3.6.1.4.1.1 (broken)") {
		t.Errorf("invalid rule not reported:\n%s", out.String())
	}
}

func TestRulesNormalize(t *testing.T) {
	in := writeRules(t, `<config><source community="public" authPhrase="a" encryptKey="b"><mapping oid="1.3.6.1"/></source></config>`)
	out := filepath.Join(t.TempDir(), "normalized.xml")

	rootCmd.SetArgs([]string{"rules", "normalize", in, out})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, attr := range []string{`state="Success"`, `condition="true"`, `authPhrase="a000000000000000"`} {
		if !bytes.Contains(data, []byte(attr)) {
			t.Errorf("normalized document missing %s:\n%s", attr, data)
		}
	}
}
