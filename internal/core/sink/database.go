package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/trapmapper/internal/core/db"
	"github.com/solatis/trapmapper/internal/core/logging"
)

// KindDatabase names the database sink in errors and logs.
const KindDatabase = "database"

// Command types for DatabaseConfig.CommandType.
const (
	CommandText      = "text"
	CommandProcedure = "procedure"
)

// DatabaseConfig configures a database command sink.
//
// Command is resolved in order: a named command from Commands, a stored
// procedure name when CommandType is "procedure", otherwise literal SQL.
type DatabaseConfig struct {
	Command     string
	CommandType string
	Commands    *db.Commands
	Timeout     time.Duration
}

// DatabaseSink runs one command per record with the parameters as
// positional arguments and returns the first column of the first row.
type DatabaseSink struct {
	conn      *sqlx.DB
	statement string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewDatabaseSink prepares the statement text for conn.
func NewDatabaseSink(conn *sqlx.DB, cfg DatabaseConfig, logger *slog.Logger) (*DatabaseSink, error) {
	if conn == nil {
		return nil, fmt.Errorf("database sink: connection is required")
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("database sink: command is required")
	}

	return &DatabaseSink{
		conn:      conn,
		statement: resolveStatement(conn.DriverName(), cfg),
		timeout:   cfg.Timeout,
		logger:    logging.OrDefault(logger).With(logging.Sink(KindDatabase)),
	}, nil
}

func resolveStatement(driver string, cfg DatabaseConfig) string {
	if query, ok := cfg.Commands.Lookup(cfg.Command); ok {
		return query
	}
	if strings.EqualFold(cfg.CommandType, CommandProcedure) {
		return procedureCall(driver, cfg.Command)
	}
	return cfg.Command
}

// procedureCall builds a call with a placeholder marker that Execute
// expands to one "?" per parameter.
func procedureCall(driver, name string) string {
	if driver == db.DriverPostgres {
		return "SELECT * FROM " + name + "(" + argsMarker + ")"
	}
	return "CALL " + name + "(" + argsMarker + ")"
}

const argsMarker = "{args}"

// Statement returns the SQL executed for n parameters, before rebinding.
func (s *DatabaseSink) Statement(n int) string {
	if !strings.Contains(s.statement, argsMarker) {
		return s.statement
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", n), ",")
	return strings.Replace(s.statement, argsMarker, marks, 1)
}

// Execute runs the command and returns its scalar result, or nil when the
// command produces no rows.
func (s *DatabaseSink) Execute(ctx context.Context, params []any) (any, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	query := s.conn.Rebind(s.Statement(len(params)))
	rows, err := s.conn.QueryxContext(ctx, query, params...)
	if err != nil {
		return nil, &Error{Kind: KindDatabase, Err: err}
	}
	defer rows.Close()

	var result any
	if rows.Next() {
		cols, err := rows.SliceScan()
		if err != nil {
			return nil, &Error{Kind: KindDatabase, Err: err}
		}
		if len(cols) > 0 {
			result = cols[0]
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Kind: KindDatabase, Err: err}
	}

	if b, ok := result.([]byte); ok {
		result = string(b)
	}
	s.logger.Debug("database command executed", slog.Any("result", result))
	return result, nil
}
