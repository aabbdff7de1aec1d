package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	v := viper.New()

	def := DefaultServiceConfig()
	v.SetDefault("rules.path", def.Rules.Path)
	v.SetDefault("rules.command_template", def.Rules.CommandTemplate)
	v.SetDefault("rules.eval_timeout", def.Rules.EvalTimeout.String())
	v.SetDefault("snmp.listen", def.SNMP.Listen)
	v.SetDefault("snmp.auth_protocol", def.SNMP.AuthProtocol)
	v.SetDefault("snmp.priv_protocol", def.SNMP.PrivProtocol)
	v.SetDefault("queue.min_delay", "0s")
	v.SetDefault("sink.type", def.Sink.Type)
	v.SetDefault("sink.http.url", "")
	v.SetDefault("sink.http.username", "")
	v.SetDefault("sink.http.password", "")
	v.SetDefault("sink.http.timeout", def.Sink.HTTP.Timeout.String())
	v.SetDefault("sink.database.driver", "")
	v.SetDefault("sink.database.dsn", "")
	v.SetDefault("sink.database.command", "")
	v.SetDefault("sink.database.command_type", def.Sink.Database.CommandType)
	v.SetDefault("sink.database.commands_file", "")
	v.SetDefault("sink.database.timeout", def.Sink.Database.Timeout.String())
	v.SetDefault("database.url", "")
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("metrics.addr", def.Metrics.Addr)
	v.SetDefault("trigger.enabled", false)
	v.SetDefault("trigger.point_tag", "")
	v.SetDefault("trigger.value", 0.0)
	v.SetDefault("trigger.from_initial_value", def.Trigger.FromInitialValue)
	v.SetDefault("trigger.action", def.Trigger.Action)
	v.SetDefault("trigger.username", def.Trigger.UserName)
	v.SetDefault("trigger.password", def.Trigger.Password)
	v.SetDefault("trigger.nats_url", "")
	v.SetDefault("trigger.subject", def.Trigger.Subject)
	v.SetDefault("trigger.mqtt_broker", "")
	v.SetDefault("trigger.mqtt_topic", def.Trigger.MQTTTopic)
	v.SetDefault("trigger.mqtt_client_id", def.Trigger.MQTTClientID)

	// Bind environment variables with TM_ prefix
	v.SetEnvPrefix("TM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoLiteralPasswords(v); err != nil {
		return nil, err
	}

	cfg := &ServiceConfig{
		Rules: RulesConfig{
			Path:            v.GetString("rules.path"),
			CommandTemplate: v.GetString("rules.command_template"),
			EvalTimeout:     v.GetDuration("rules.eval_timeout"),
		},
		SNMP: SNMPConfig{
			Listen:       v.GetString("snmp.listen"),
			AuthProtocol: strings.ToUpper(v.GetString("snmp.auth_protocol")),
			PrivProtocol: strings.ToUpper(v.GetString("snmp.priv_protocol")),
		},
		Queue: QueueConfig{
			MinDelay: v.GetDuration("queue.min_delay"),
		},
		Sink: SinkConfig{
			Type: strings.ToLower(v.GetString("sink.type")),
			HTTP: HTTPSinkConfig{
				URL:      v.GetString("sink.http.url"),
				UserName: v.GetString("sink.http.username"),
				Password: v.GetString("sink.http.password"),
				Timeout:  v.GetDuration("sink.http.timeout"),
			},
			Database: DatabaseSinkConfig{
				Driver:       v.GetString("sink.database.driver"),
				DSN:          v.GetString("sink.database.dsn"),
				Command:      v.GetString("sink.database.command"),
				CommandType:  strings.ToLower(v.GetString("sink.database.command_type")),
				CommandsFile: v.GetString("sink.database.commands_file"),
				Timeout:      v.GetDuration("sink.database.timeout"),
			},
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
		Trigger: TriggerConfig{
			Enabled:          v.GetBool("trigger.enabled"),
			PointTag:         v.GetString("trigger.point_tag"),
			Value:            v.GetFloat64("trigger.value"),
			FromInitialValue: v.GetBool("trigger.from_initial_value"),
			Action:           v.GetString("trigger.action"),
			UserName:         v.GetString("trigger.username"),
			Password:         v.GetString("trigger.password"),
			NATSURL:          v.GetString("trigger.nats_url"),
			Subject:          v.GetString("trigger.subject"),
			MQTTBroker:       v.GetString("trigger.mqtt_broker"),
			MQTTTopic:        v.GetString("trigger.mqtt_topic"),
			MQTTClientID:     v.GetString("trigger.mqtt_client_id"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks ranges and required fields.
func validateConfig(cfg *ServiceConfig) error {
	if cfg.Rules.Path == "" {
		return fmt.Errorf("rules.path is required")
	}
	if cfg.Rules.CommandTemplate == "" {
		return fmt.Errorf("rules.command_template must not be empty")
	}
	if cfg.Rules.EvalTimeout < 0 {
		return fmt.Errorf("rules.eval_timeout must not be negative, got %v", cfg.Rules.EvalTimeout)
	}
	if cfg.Queue.MinDelay < 0 {
		return fmt.Errorf("queue.min_delay must not be negative, got %v", cfg.Queue.MinDelay)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Trigger.Enabled {
		if cfg.Trigger.PointTag == "" {
			return fmt.Errorf("trigger.point_tag is required when the trigger is enabled")
		}
		if cfg.Trigger.Action == "" {
			return fmt.Errorf("trigger.action is required when the trigger is enabled")
		}
		if cfg.Trigger.MQTTBroker != "" && cfg.Trigger.MQTTTopic == "" {
			return fmt.Errorf("trigger.mqtt_topic is required with trigger.mqtt_broker")
		}
	}
	return nil
}

// ValidateSink checks the sink selection. It is separate from LoadConfig so
// commands that never deliver records (rules validate) need no sink config.
func (c *ServiceConfig) ValidateSink() error {
	switch c.Sink.Type {
	case SinkHTTP:
		if c.Sink.HTTP.URL == "" {
			return fmt.Errorf("sink.http.url is required for sink type %q", SinkHTTP)
		}
		if c.Sink.HTTP.Timeout <= 0 {
			return fmt.Errorf("sink.http.timeout must be positive, got %v", c.Sink.HTTP.Timeout)
		}
	case SinkDatabase:
		db := c.Sink.Database
		if db.Command == "" {
			return fmt.Errorf("sink.database.command is required for sink type %q", SinkDatabase)
		}
		if (db.Driver == "") != (db.DSN == "") {
			return fmt.Errorf("sink.database.driver and sink.database.dsn must be set together")
		}
		if db.Driver == "" && c.Database.URL == "" {
			return fmt.Errorf("sink.database needs driver/dsn or database.url")
		}
		switch db.CommandType {
		case "text", "procedure":
		default:
			return fmt.Errorf("sink.database.command_type must be text or procedure, got %q", db.CommandType)
		}
	default:
		return fmt.Errorf("sink.type must be %q or %q, got %q", SinkHTTP, SinkDatabase, c.Sink.Type)
	}

	return nil
}

// validateNoLiteralPasswords enforces environment-only secrets for sink
// passwords: a configured password must use the $env: indirection.
func validateNoLiteralPasswords(v *viper.Viper) error {
	for _, key := range []string{"sink.http.password", "trigger.password"} {
		if v.InConfig(key) {
			if val := v.GetString(key); val != "" && !strings.HasPrefix(val, "$env:") {
				return fmt.Errorf("%s must reference an environment variable ($env:NAME), not a literal secret", key)
			}
		}
	}
	return nil
}
