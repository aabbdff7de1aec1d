// internal/rules/store.go
package rules

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/solatis/trapmapper/internal/types"
)

/*
 * Rule store: the XML rule document and its derived indices.
 *
 * Document shape:
 *
 *   <config>
 *     <source community="public" authPhrase="..." encryptKey="..." forward="false">
 *       <mapping oid="1.3.6.1.4.1.9.9.1" flow="flowA" description="{Value} at {Timestamp}"
 *                state="Alarm" condition="value > 10"/>
 *     </source>
 *   </config>
 *
 * Load validates every source (community, authPhrase, encryptKey required),
 * pads short secrets to MinSecretLength, resolves each mapping's state to an
 * EventType, and builds the per-source OID index and the case-insensitive
 * community map. The result is immutable; reload requires a restart.
 *
 * A failed load returns no Configuration at all: there is no partially
 * usable rule set.
 */

const (
	// DefaultDescription is used when a mapping omits the description.
	DefaultDescription = TokenValue + " at " + TokenTimestamp

	// DefaultState is used when a mapping omits the state.
	DefaultState = "Success"

	// MinSecretLength is the minimum length of auth phrases and encrypt keys.
	MinSecretLength = 16

	// SecretPadChar right-pads secrets shorter than MinSecretLength.
	SecretPadChar = "0"
)

// Rule is one mapping from an OID to an event.
type Rule struct {
	OID         string `xml:"oid,attr"`
	Flow        string `xml:"flow,attr"`
	Description string `xml:"description,attr"`
	State       string `xml:"state,attr"`
	Condition   string `xml:"condition,attr"`

	// EventType is resolved from State at load; never invalid.
	EventType types.EventType `xml:"-"`

	compileOnce sync.Once
	compiled    *Condition
	compileErr  error

	// mu guards the bound value slot so bind and evaluate are atomic
	// per rule when notifications are handled concurrently.
	mu    sync.Mutex
	bound any
}

// NewRule returns a mapping with every default applied.
func NewRule(oid string) *Rule {
	return &Rule{
		OID:         oid,
		Description: DefaultDescription,
		State:       DefaultState,
		Condition:   DefaultCondition,
		EventType:   types.EventSuccess,
	}
}

// UnmarshalXML applies defaults for attributes absent from the document.
func (r *Rule) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain Rule
	r.Description = DefaultDescription
	r.State = DefaultState
	r.Condition = DefaultCondition
	return d.DecodeElement((*plain)(r), &start)
}

// Compiled returns the rule's condition, compiling it on first use.
// A compile failure is cached as well and returned on every call.
func (r *Rule) Compiled() (*Condition, error) {
	r.compileOnce.Do(func() {
		r.compiled, r.compileErr = Compile(r.Condition)
	})
	return r.compiled, r.compileErr
}

// Match binds value to the rule and evaluates its condition.
func (r *Rule) Match(ctx context.Context, value any) (bool, error) {
	cond, err := r.Compiled()
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.bound = value
	return cond.Evaluate(ctx, r.bound)
}

// Bound returns the value most recently bound by Match.
func (r *Rule) Bound() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound
}

// Source is one community's secrets and mappings.
type Source struct {
	Community  string  `xml:"community,attr"`
	AuthPhrase string  `xml:"authPhrase,attr"`
	EncryptKey string  `xml:"encryptKey,attr"`
	Forward    bool    `xml:"forward,attr"`
	Mappings   []*Rule `xml:"mapping"`

	index map[string][]*Rule
}

// RulesFor returns the rules bound to oid in declaration order.
func (s *Source) RulesFor(oid string) []*Rule {
	return s.index[NormalizeOID(oid)]
}

// OIDs returns the number of distinct OIDs with at least one rule.
func (s *Source) OIDs() int {
	return len(s.index)
}

func (s *Source) prepare(pos int) error {
	if strings.TrimSpace(s.Community) == "" {
		return fmt.Errorf("%w: source %d: community is required", types.ErrConfig, pos)
	}
	if s.AuthPhrase == "" {
		return fmt.Errorf("%w: source %q: authPhrase is required", types.ErrConfig, s.Community)
	}
	if s.EncryptKey == "" {
		return fmt.Errorf("%w: source %q: encryptKey is required", types.ErrConfig, s.Community)
	}

	s.AuthPhrase = PadSecret(s.AuthPhrase)
	s.EncryptKey = PadSecret(s.EncryptKey)

	s.index = make(map[string][]*Rule, len(s.Mappings))
	for i, rule := range s.Mappings {
		if rule == nil {
			continue
		}
		oid := NormalizeOID(rule.OID)
		if oid == "" {
			return fmt.Errorf("%w: source %q: mapping %d: oid is required", types.ErrConfig, s.Community, i)
		}
		rule.EventType, _ = types.ParseEventType(rule.State)
		s.index[oid] = append(s.index[oid], rule)
	}
	return nil
}

// Configuration is the validated rule set.
type Configuration struct {
	XMLName xml.Name  `xml:"config"`
	Sources []*Source `xml:"source"`

	communities map[string]*Source
}

// NewConfiguration validates sources and builds the lookup indices.
func NewConfiguration(sources ...*Source) (*Configuration, error) {
	cfg := &Configuration{Sources: sources}
	if err := cfg.prepare(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Configuration) prepare() error {
	c.communities = make(map[string]*Source, len(c.Sources))
	for i, src := range c.Sources {
		if src == nil {
			return fmt.Errorf("%w: source %d is empty", types.ErrConfig, i)
		}
		if err := src.prepare(i); err != nil {
			return err
		}
		// Later sources replace earlier ones with the same community.
		c.communities[strings.ToLower(src.Community)] = src
	}
	return nil
}

// Source resolves a community case-insensitively.
func (c *Configuration) Source(community string) (*Source, bool) {
	src, ok := c.communities[strings.ToLower(community)]
	return src, ok
}

// Load reads and validates the rule document at path.
func Load(path string) (*Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfig, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads and validates a rule document.
func Parse(r io.Reader) (*Configuration, error) {
	var cfg Configuration
	if err := xml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: malformed document: %v", types.ErrConfig, err)
	}
	if err := cfg.prepare(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path as an XML rule document.
func Save(cfg *Configuration, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(cfg, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode serializes cfg with every attribute, defaults included.
func Encode(cfg *Configuration, w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode rule document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// PadSecret right-pads s with SecretPadChar up to MinSecretLength characters.
func PadSecret(s string) string {
	n := utf8.RuneCountInString(s)
	if n >= MinSecretLength {
		return s
	}
	return s + strings.Repeat(SecretPadChar, MinSecretLength-n)
}

// NormalizeOID strips whitespace and a leading dot so rule files and
// transports that disagree on the leading dot still match.
func NormalizeOID(oid string) string {
	return strings.TrimPrefix(strings.TrimSpace(oid), ".")
}
