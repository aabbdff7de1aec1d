package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/trapmapper/internal/core/config"
	"github.com/solatis/trapmapper/internal/core/db"
	"github.com/solatis/trapmapper/internal/core/delivery"
	"github.com/solatis/trapmapper/internal/core/dispatch"
	"github.com/solatis/trapmapper/internal/core/logging"
	"github.com/solatis/trapmapper/internal/core/server"
	"github.com/solatis/trapmapper/internal/core/sink"
	"github.com/solatis/trapmapper/internal/core/snmp"
	"github.com/solatis/trapmapper/internal/core/trigger"
	"github.com/solatis/trapmapper/internal/rules"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for SNMP traps and deliver mapped events",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("rules", "", "rule document path (overrides rules.path)")
	serveCmd.Flags().String("listen", "", "SNMP trap listen address (overrides snmp.listen)")
	serveCmd.Flags().Duration("min-delay", 0, "minimum delay between queue flushes (overrides queue.min_delay)")
	serveCmd.Flags().String("host", "", "gRPC health server host (overrides server.host)")
	serveCmd.Flags().Int("port", 0, "gRPC health server port (overrides server.port)")
}

// applyServeFlags copies explicitly set flags over the loaded configuration.
func applyServeFlags(cmd *cobra.Command, cfg *config.ServiceConfig) {
	flags := cmd.Flags()
	if flags.Changed("rules") {
		cfg.Rules.Path, _ = flags.GetString("rules")
	}
	if flags.Changed("listen") {
		cfg.SNMP.Listen, _ = flags.GetString("listen")
	}
	if flags.Changed("min-delay") {
		cfg.Queue.MinDelay, _ = flags.GetDuration("min-delay")
	}
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyServeFlags(cmd, cfg)
	if err := cfg.ValidateSink(); err != nil {
		return fmt.Errorf("invalid sink configuration: %w", err)
	}

	ruleCfg, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	actuator, closeSink, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	queue := delivery.NewQueue(actuator,
		delivery.WithMinDelay(cfg.Queue.MinDelay),
		delivery.WithLogger(logger))

	dispatcher, err := dispatch.New(ruleCfg, queue,
		dispatch.WithCommandTemplate(cfg.Rules.CommandTemplate),
		dispatch.WithEvalTimeout(cfg.Rules.EvalTimeout),
		dispatch.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	listener, err := snmp.NewListener(snmp.Config{
		Listen:       cfg.SNMP.Listen,
		AuthProtocol: cfg.SNMP.AuthProtocol,
		PrivProtocol: cfg.SNMP.PrivProtocol,
	}, ruleCfg.Sources, dispatcher, logger)
	if err != nil {
		return fmt.Errorf("failed to create trap listener: %w", err)
	}

	var (
		point *trigger.PointTrigger
		feeds []io.Closer
	)
	if cfg.Trigger.Enabled {
		point, err = trigger.New(trigger.Config{
			Tag:              cfg.Trigger.PointTag,
			Value:            cfg.Trigger.Value,
			FromInitialValue: cfg.Trigger.FromInitialValue,
			Action:           cfg.Trigger.Action,
			UserName:         cfg.Trigger.UserName,
			Password:         cfg.Trigger.Password,
			Timeout:          cfg.Sink.HTTP.Timeout,
		}, trigger.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("cannot initialize trigger: %w", err)
		}
		feeds, err = connectFeeds(cfg.Trigger, point, logger)
		if err != nil {
			return err
		}
		logger.Info("point trigger armed", slog.String("status", point.ShortStatus()))
	}

	grpcServer, err := server.NewGRPCServer(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}

	var httpServer *server.HTTPServer
	if cfg.Metrics.Addr != "" {
		httpServer = server.NewHTTPServer(cfg.Metrics.Addr,
			server.NewRouter(statusFunc(dispatcher, queue, point), dispatcher.Running),
			logger)
	}

	errChan := make(chan error, 3)
	go func() {
		if err := grpcServer.Start(context.Background()); err != nil {
			errChan <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	if httpServer != nil {
		go func() {
			if err := httpServer.Start(); err != nil {
				errChan <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	dispatcher.Start()
	go func() {
		if err := listener.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()
	grpcServer.SetServing(true)

	logger.Info("trapmapper started",
		slog.String("version", Version),
		slog.String("rules", cfg.Rules.Path),
		slog.String("snmp", cfg.SNMP.Listen),
		logging.Sink(cfg.Sink.Type))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case runErr = <-errChan:
		logger.Error("component failed, shutting down", logging.Error(runErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	grpcServer.SetServing(false)
	listener.Close()
	if err := dispatcher.Stop(ctx); err != nil {
		logger.Warn("delivery queue did not stop cleanly", logging.Error(err))
	}
	for _, feed := range feeds {
		_ = feed.Close()
	}
	if point != nil {
		_ = point.Close(ctx)
	}
	if httpServer != nil {
		_ = httpServer.Shutdown(ctx)
	}
	if err := grpcServer.Shutdown(ctx); err != nil {
		logger.Warn("grpc shutdown", logging.Error(err))
	}

	return runErr
}

// buildSink constructs the configured actuator and a cleanup function.
func buildSink(cfg *config.ServiceConfig, logger *slog.Logger) (sink.Sink, func(), error) {
	switch cfg.Sink.Type {
	case config.SinkDatabase:
		conn, err := openSinkDB(cfg)
		if err != nil {
			return nil, nil, err
		}

		var cmds *db.Commands
		if cfg.Sink.Database.CommandsFile != "" {
			cmds, err = db.LoadCommands(cfg.Sink.Database.CommandsFile)
			if err != nil {
				conn.Close()
				return nil, nil, err
			}
		}

		s, err := sink.NewDatabaseSink(conn, sink.DatabaseConfig{
			Command:     cfg.Sink.Database.Command,
			CommandType: cfg.Sink.Database.CommandType,
			Commands:    cmds,
			Timeout:     cfg.Sink.Database.Timeout,
		}, logger)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return s, func() { conn.Close() }, nil

	default:
		s, err := sink.NewHTTPSink(sink.HTTPConfig{
			URL:      cfg.Sink.HTTP.URL,
			UserName: cfg.Sink.HTTP.UserName,
			Password: cfg.Sink.HTTP.Password,
			Timeout:  cfg.Sink.HTTP.Timeout,
		}, sink.WithHTTPLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func openSinkDB(cfg *config.ServiceConfig) (*sqlx.DB, error) {
	if cfg.Sink.Database.Driver != "" {
		conn, err := db.OpenDriver(cfg.Sink.Database.Driver, cfg.Sink.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sink database: %w", err)
		}
		return conn, nil
	}
	conn, err := db.Open(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return conn, nil
}

// serviceStatus is the /status document.
type serviceStatus struct {
	Dispatch dispatch.Stats `json:"dispatch"`
	Queue    queueStatus    `json:"queue"`
	Trigger  string         `json:"trigger,omitempty"`
}

type queueStatus struct {
	Pending   int    `json:"pending"`
	Delivered int64  `json:"delivered"`
	Failed    int64  `json:"failed"`
	Discarded int64  `json:"discarded"`
	Runs      int64  `json:"runs"`
	LastError string `json:"last_error,omitempty"`
}

func statusFunc(d *dispatch.Dispatcher, q *delivery.Queue, p *trigger.PointTrigger) server.StatusFunc {
	return func() any {
		qs := q.Stats()
		st := serviceStatus{
			Dispatch: d.Stats(),
			Queue: queueStatus{
				Pending:   qs.Pending,
				Delivered: qs.Delivered,
				Failed:    qs.Failed,
				Discarded: qs.Discarded,
				Runs:      qs.Runs,
			},
		}
		if qs.LastError != nil {
			st.Queue.LastError = qs.LastError.Error()
		}
		if p != nil {
			st.Trigger = p.Status()
		}
		return st
	}
}

// connectFeeds subscribes the trigger to every configured measurement feed.
func connectFeeds(cfg config.TriggerConfig, point *trigger.PointTrigger, logger *slog.Logger) ([]io.Closer, error) {
	var feeds []io.Closer
	closeAll := func() {
		for _, f := range feeds {
			_ = f.Close()
		}
	}

	if cfg.NATSURL != "" || cfg.MQTTBroker == "" {
		feed := trigger.NewNATSFeed(point, logger)
		if err := feed.Connect(trigger.NATSConfig{URL: cfg.NATSURL, Subject: cfg.Subject}); err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}

	if cfg.MQTTBroker != "" {
		feed := trigger.NewMQTTFeed(point, logger)
		if err := feed.Connect(trigger.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID,
		}); err != nil {
			closeAll()
			return nil, err
		}
		feeds = append(feeds, feed)
	}

	return feeds, nil
}
