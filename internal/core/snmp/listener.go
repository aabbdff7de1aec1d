// Package snmp adapts the gosnmp trap listener to the dispatcher: packets
// are decoded by gosnmp and converted to types.Notification values.
package snmp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/solatis/trapmapper/internal/core/logging"
	"github.com/solatis/trapmapper/internal/rules"
	"github.com/solatis/trapmapper/internal/types"
)

// Handler consumes decoded notifications. dispatch.Dispatcher implements it.
type Handler interface {
	OnNotification(ctx context.Context, n types.Notification) (int, error)
}

// Config configures the trap listener.
type Config struct {
	Listen       string
	AuthProtocol string
	PrivProtocol string
}

// Listener receives traps on a UDP address.
type Listener struct {
	cfg     Config
	tl      *gosnmp.TrapListener
	handler Handler
	logger  *slog.Logger
}

// NewListener builds a listener with one SNMPv3 USM user per source: the
// community is the user name, the auth phrase and encrypt key its secrets.
func NewListener(cfg Config, sources []*rules.Source, handler Handler, logger *slog.Logger) (*Listener, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	authProto, err := ParseAuthProtocol(cfg.AuthProtocol)
	if err != nil {
		return nil, err
	}
	privProto, err := ParsePrivProtocol(cfg.PrivProtocol)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		cfg:     cfg,
		handler: handler,
		logger:  logging.OrDefault(logger).With(logging.Component("snmp")),
	}

	gl := gosnmp.NewLogger(logAdapter{l.logger})
	table := gosnmp.NewSnmpV3SecurityParametersTable(gl)
	for _, src := range sources {
		err := table.Add(src.Community, &gosnmp.UsmSecurityParameters{
			UserName:                 src.Community,
			AuthenticationProtocol:   authProto,
			AuthenticationPassphrase: src.AuthPhrase,
			PrivacyProtocol:          privProto,
			PrivacyPassphrase:        src.EncryptKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register SNMPv3 user %q: %w", src.Community, err)
		}
	}

	tl := gosnmp.NewTrapListener()
	tl.Params = &gosnmp.GoSNMP{
		Version:                     gosnmp.Version3,
		SecurityModel:               gosnmp.UserSecurityModel,
		MsgFlags:                    gosnmp.AuthPriv,
		TrapSecurityParametersTable: table,
		Timeout:                     2 * time.Second,
		Logger:                      gl,
	}
	tl.OnNewTrap = l.onTrap
	l.tl = tl
	return l, nil
}

// ListenAndServe blocks until Close is called or the socket fails.
func (l *Listener) ListenAndServe() error {
	l.logger.Info("listening for SNMP traps", slog.String("addr", l.cfg.Listen))
	err := l.tl.Listen(l.cfg.Listen)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("trap listener on %s: %w", l.cfg.Listen, err)
	}
	return nil
}

// Listening is closed once the socket is bound.
func (l *Listener) Listening() <-chan bool {
	return l.tl.Listening()
}

// Close stops the listener.
func (l *Listener) Close() {
	l.tl.Close()
}

func (l *Listener) onTrap(p *gosnmp.SnmpPacket, addr *net.UDPAddr) {
	n := ToNotification(p, addr)
	if _, err := l.handler.OnNotification(context.Background(), n); err != nil &&
		!errors.Is(err, types.ErrUnknownSource) && !errors.Is(err, types.ErrStopped) {
		l.logger.Error("notification handling failed", logging.Community(n.Community), logging.Error(err))
	}
}

// ParseAuthProtocol maps a configured name to a gosnmp auth protocol.
func ParseAuthProtocol(name string) (gosnmp.SnmpV3AuthProtocol, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "SHA":
		return gosnmp.SHA, nil
	case "MD5":
		return gosnmp.MD5, nil
	case "SHA224":
		return gosnmp.SHA224, nil
	case "SHA256":
		return gosnmp.SHA256, nil
	case "SHA384":
		return gosnmp.SHA384, nil
	case "SHA512":
		return gosnmp.SHA512, nil
	case "NONE":
		return gosnmp.NoAuth, nil
	default:
		return 0, fmt.Errorf("%w: unsupported SNMPv3 auth protocol %q", types.ErrConfig, name)
	}
}

// ParsePrivProtocol maps a configured name to a gosnmp privacy protocol.
func ParsePrivProtocol(name string) (gosnmp.SnmpV3PrivProtocol, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "AES":
		return gosnmp.AES, nil
	case "DES":
		return gosnmp.DES, nil
	case "AES192":
		return gosnmp.AES192, nil
	case "AES256":
		return gosnmp.AES256, nil
	case "AES192C":
		return gosnmp.AES192C, nil
	case "AES256C":
		return gosnmp.AES256C, nil
	case "NONE":
		return gosnmp.NoPriv, nil
	default:
		return 0, fmt.Errorf("%w: unsupported SNMPv3 privacy protocol %q", types.ErrConfig, name)
	}
}

// logAdapter routes gosnmp's printf logging to slog at debug level.
type logAdapter struct {
	l *slog.Logger
}

func (a logAdapter) Print(v ...interface{}) {
	a.l.Debug(strings.TrimSpace(fmt.Sprint(v...)))
}

func (a logAdapter) Printf(format string, v ...interface{}) {
	a.l.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
