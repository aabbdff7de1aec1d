package snmp

import (
	"fmt"
	"net"
	"strconv"

	"github.com/gosnmp/gosnmp"
	"github.com/solatis/trapmapper/internal/rules"
	"github.com/solatis/trapmapper/internal/types"
)

// ToNotification converts a decoded packet. For SNMPv3 the USM user name
// stands in for the community.
func ToNotification(p *gosnmp.SnmpPacket, addr *net.UDPAddr) types.Notification {
	n := types.Notification{
		Version:    p.Version.String(),
		Community:  p.Community,
		Enterprise: rules.NormalizeOID(p.Enterprise),
	}
	if addr != nil {
		n.Source = addr.String()
	}
	if p.Version == gosnmp.Version3 {
		if usm, ok := p.SecurityParameters.(*gosnmp.UsmSecurityParameters); ok {
			n.Community = usm.UserName
		}
	}

	n.Variables = make([]types.Variable, 0, len(p.Variables))
	for _, pdu := range p.Variables {
		n.Variables = append(n.Variables, types.Variable{
			OID: rules.NormalizeOID(pdu.Name),
			Raw: FormatPDU(pdu),
		})
	}
	return n
}

// FormatPDU renders a variable binding value as text for the value parsing
// policy: octet strings as text, OIDs without the leading dot, numbers in
// decimal.
func FormatPDU(pdu gosnmp.SnmpPDU) string {
	switch pdu.Type {
	case gosnmp.OctetString, gosnmp.BitString:
		if b, ok := pdu.Value.([]byte); ok {
			return string(b)
		}
	case gosnmp.ObjectIdentifier:
		if s, ok := pdu.Value.(string); ok {
			return rules.NormalizeOID(s)
		}
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks,
		gosnmp.Counter64, gosnmp.Uinteger32:
		return gosnmp.ToBigInt(pdu.Value).String()
	case gosnmp.OpaqueFloat:
		if f, ok := pdu.Value.(float32); ok {
			return strconv.FormatFloat(float64(f), 'f', -1, 32)
		}
	case gosnmp.OpaqueDouble:
		if f, ok := pdu.Value.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case gosnmp.Null, gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return ""
	}

	switch v := pdu.Value.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
