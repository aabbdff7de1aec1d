package snmp

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/solatis/trapmapper/internal/core/logging"
	"github.com/solatis/trapmapper/internal/rules"
	"github.com/solatis/trapmapper/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureHandler struct {
	mu   sync.Mutex
	got  []types.Notification
	err  error
	seen chan struct{}
}

func (h *captureHandler) OnNotification(_ context.Context, n types.Notification) (int, error) {
	h.mu.Lock()
	h.got = append(h.got, n)
	h.mu.Unlock()
	if h.seen != nil {
		h.seen <- struct{}{}
	}
	return len(n.Variables), h.err
}

func TestToNotification_V2c(t *testing.T) {
	p := &gosnmp.SnmpPacket{
		Version:   gosnmp.Version2c,
		Community: "public",
		SnmpTrap:  gosnmp.SnmpTrap{Enterprise: ".1.3.6.1.4.1.9999"},
		Variables: []gosnmp.SnmpPDU{
			{Name: ".1.3.6.1.2.1.1.3.0", Type: gosnmp.TimeTicks, Value: uint32(12345)},
			{Name: ".1.3.6.1.6.3.1.1.4.1.0", Type: gosnmp.ObjectIdentifier, Value: ".1.3.6.1.4.1.9999.0.1"},
			{Name: ".1.3.6.1.4.1.9999.1", Type: gosnmp.Integer, Value: 15},
			{Name: ".1.3.6.1.4.1.9999.2", Type: gosnmp.OctetString, Value: []byte("link down")},
		},
	}
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.10"), Port: 50000}

	n := ToNotification(p, addr)
	assert.Equal(t, "2c", n.Version)
	assert.Equal(t, "public", n.Community)
	assert.Equal(t, "1.3.6.1.4.1.9999", n.Enterprise)
	assert.Equal(t, "192.0.2.10:50000", n.Source)
	assert.Equal(t, []types.Variable{
		{OID: "1.3.6.1.2.1.1.3.0", Raw: "12345"},
		{OID: "1.3.6.1.6.3.1.1.4.1.0", Raw: "1.3.6.1.4.1.9999.0.1"},
		{OID: "1.3.6.1.4.1.9999.1", Raw: "15"},
		{OID: "1.3.6.1.4.1.9999.2", Raw: "link down"},
	}, n.Variables)
}

func TestToNotification_V3UsesUserName(t *testing.T) {
	p := &gosnmp.SnmpPacket{
		Version:            gosnmp.Version3,
		SecurityParameters: &gosnmp.UsmSecurityParameters{UserName: "substation"},
	}
	n := ToNotification(p, nil)
	assert.Equal(t, "substation", n.Community)
	assert.Empty(t, n.Source)
	assert.Empty(t, n.Variables)
}

func TestFormatPDU(t *testing.T) {
	tests := []struct {
		name string
		pdu  gosnmp.SnmpPDU
		want string
	}{
		{name: "negative integer", pdu: gosnmp.SnmpPDU{Type: gosnmp.Integer, Value: -7}, want: "-7"},
		{name: "counter64", pdu: gosnmp.SnmpPDU{Type: gosnmp.Counter64, Value: uint64(1 << 40)}, want: "1099511627776"},
		{name: "gauge", pdu: gosnmp.SnmpPDU{Type: gosnmp.Gauge32, Value: uint(42)}, want: "42"},
		{name: "ip address", pdu: gosnmp.SnmpPDU{Type: gosnmp.IPAddress, Value: "10.0.0.1"}, want: "10.0.0.1"},
		{name: "opaque double", pdu: gosnmp.SnmpPDU{Type: gosnmp.OpaqueDouble, Value: 2.5}, want: "2.5"},
		{name: "null", pdu: gosnmp.SnmpPDU{Type: gosnmp.Null}, want: ""},
		{name: "no such object", pdu: gosnmp.SnmpPDU{Type: gosnmp.NoSuchObject}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPDU(tt.pdu))
		})
	}
}

func TestParseProtocols(t *testing.T) {
	auth, err := ParseAuthProtocol("sha256")
	require.NoError(t, err)
	assert.Equal(t, gosnmp.SHA256, auth)

	auth, err = ParseAuthProtocol("")
	require.NoError(t, err)
	assert.Equal(t, gosnmp.SHA, auth)

	_, err = ParseAuthProtocol("ROT13")
	assert.ErrorIs(t, err, types.ErrConfig)

	priv, err := ParsePrivProtocol("des")
	require.NoError(t, err)
	assert.Equal(t, gosnmp.DES, priv)

	_, err = ParsePrivProtocol("blowfish")
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestNewListener(t *testing.T) {
	cfg, err := rules.NewConfiguration(
		&rules.Source{Community: "public", AuthPhrase: "auth", EncryptKey: "key"},
		&rules.Source{Community: "substation", AuthPhrase: "authphrase", EncryptKey: "encryptkey"},
	)
	require.NoError(t, err)

	l, err := NewListener(Config{Listen: "127.0.0.1:0"}, cfg.Sources, &captureHandler{}, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, l.tl.Params.TrapSecurityParametersTable)

	_, err = NewListener(Config{AuthProtocol: "bogus"}, cfg.Sources, &captureHandler{}, nil)
	assert.ErrorIs(t, err, types.ErrConfig)

	_, err = NewListener(Config{}, cfg.Sources, nil, nil)
	assert.Error(t, err)
}

func TestListener_OnTrapForwardsToHandler(t *testing.T) {
	h := &captureHandler{err: types.ErrUnknownSource}
	l, err := NewListener(Config{Listen: "127.0.0.1:0"}, nil, h, logging.Discard())
	require.NoError(t, err)

	l.onTrap(&gosnmp.SnmpPacket{
		Version:   gosnmp.Version1,
		Community: "unknown",
		Variables: []gosnmp.SnmpPDU{{Name: ".1.3.6.1", Type: gosnmp.Integer, Value: 1}},
	}, nil)

	require.Len(t, h.got, 1)
	assert.Equal(t, "unknown", h.got[0].Community)
	assert.Equal(t, "1", h.got[0].Version)
}
