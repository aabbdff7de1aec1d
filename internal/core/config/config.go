// Package config provides configuration management for the trapmapper service.
package config

import (
	"time"

	"github.com/solatis/trapmapper/internal/rules"
)

// Sink kinds accepted in sink.type.
const (
	SinkHTTP     = "http"
	SinkDatabase = "database"
)

// Default HTTP action and credentials for the point trigger. Credentials
// are environment references so nothing secret ships in a config file.
const (
	DefaultTriggerAction   = "http://localhost:8089/api/Operations/QueueTasks?taskID=_AllTasksGroup_&priority=Expedited&target=Meter1&target=Meter2&target=Meter3"
	DefaultTriggerUserName = "$env:openMICTriggerUserName"
	DefaultTriggerPassword = "$env:openMICTriggerPassword"
)

// ServiceConfig holds configuration for the trap mapping service.
type ServiceConfig struct {
	Rules    RulesConfig
	SNMP     SNMPConfig
	Queue    QueueConfig
	Sink     SinkConfig
	Database DatabaseConfig
	Server   ServerConfig
	Metrics  MetricsConfig
	Trigger  TriggerConfig
}

// RulesConfig locates the rule document and tunes evaluation.
type RulesConfig struct {
	Path            string
	CommandTemplate string
	EvalTimeout     time.Duration
}

// SNMPConfig configures the trap listener.
type SNMPConfig struct {
	Listen       string
	AuthProtocol string
	PrivProtocol string
}

// QueueConfig throttles flush executions.
type QueueConfig struct {
	MinDelay time.Duration
}

// SinkConfig selects and configures the record actuator.
type SinkConfig struct {
	Type     string
	HTTP     HTTPSinkConfig
	Database DatabaseSinkConfig
}

// HTTPSinkConfig configures the HTTP action sink.
type HTTPSinkConfig struct {
	URL      string
	UserName string
	Password string
	Timeout  time.Duration
}

// DatabaseSinkConfig configures the database command sink. When Driver and
// DSN are empty the connection falls back to Database.URL.
type DatabaseSinkConfig struct {
	Driver       string
	DSN          string
	Command      string
	CommandType  string
	CommandsFile string
	Timeout      time.Duration
}

// DatabaseConfig is the system-wide database connection.
type DatabaseConfig struct {
	URL string
}

// ServerConfig configures the gRPC health endpoint.
type ServerConfig struct {
	Host string
	Port int
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string
}

// TriggerConfig configures the optional point-value trigger. Measurements
// arrive over NATS, MQTT or both; with neither configured NATS is dialed at
// its default URL.
type TriggerConfig struct {
	Enabled          bool
	PointTag         string
	Value            float64
	FromInitialValue bool
	Action           string
	UserName         string
	Password         string
	NATSURL          string
	Subject          string
	MQTTBroker       string
	MQTTTopic        string
	MQTTClientID     string
}

// DefaultServiceConfig returns configuration with default values.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Rules: RulesConfig{
			Path:            "rules.xml",
			CommandTemplate: rules.DefaultCommandTemplate,
			EvalTimeout:     250 * time.Millisecond,
		},
		SNMP: SNMPConfig{
			Listen:       "0.0.0.0:162",
			AuthProtocol: "SHA",
			PrivProtocol: "AES",
		},
		Sink: SinkConfig{
			Type: SinkHTTP,
			HTTP: HTTPSinkConfig{
				Timeout: 30 * time.Second,
			},
			Database: DatabaseSinkConfig{
				CommandType: "text",
				Timeout:     30 * time.Second,
			},
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 50051,
		},
		Metrics: MetricsConfig{
			Addr: ":9162",
		},
		Trigger: TriggerConfig{
			FromInitialValue: true,
			Action:           DefaultTriggerAction,
			UserName:         DefaultTriggerUserName,
			Password:         DefaultTriggerPassword,
			Subject:          "measurements",
			MQTTTopic:        "trapmapper/measurements",
			MQTTClientID:     "trapmapper-trigger",
		},
	}
}
