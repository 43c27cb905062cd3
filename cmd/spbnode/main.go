// spbnode is a Sparkplug B edge node.
//
// It connects to an MQTT broker with an NDEATH last will, publishes its
// NBIRTH certificate, sends periodic NDATA messages and disconnects with an
// NDEATH on shutdown. Every published message can be journaled to SQLite
// and mirrored into InfluxDB, and a read-only HTTP status server reports
// the session state.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/spbnode/internal/api"
	"github.com/nerrad567/spbnode/internal/credentials"
	"github.com/nerrad567/spbnode/internal/infrastructure/config"
	"github.com/nerrad567/spbnode/internal/infrastructure/database"
	"github.com/nerrad567/spbnode/internal/infrastructure/influxdb"
	"github.com/nerrad567/spbnode/internal/infrastructure/logging"
	"github.com/nerrad567/spbnode/internal/infrastructure/mqtt"
	"github.com/nerrad567/spbnode/internal/journal"
	"github.com/nerrad567/spbnode/internal/publisher"
	"github.com/nerrad567/spbnode/internal/session"
	"github.com/nerrad567/spbnode/internal/sparkplug"
	"github.com/nerrad567/spbnode/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// disconnectTimeout bounds the NDEATH publish during shutdown.
const disconnectTimeout = 5 * time.Second

// errConnectionLost is returned by run when the broker connection drops
// while the session is live. The broker has published the last will.
var errConnectionLost = errors.New("mqtt connection lost")

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting spbnode",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	schema, birth, err := buildSchema(cfg.Metrics)
	if err != nil {
		return fmt.Errorf("building metric schema: %w", err)
	}

	opts := []session.Option{
		session.WithLogger(log.With("component", "session")),
		session.WithBirthValues(birth),
	}

	if cfg.Credentials.SecretsFile != "" {
		creds, loadErr := credentials.Load(cfg.Credentials.SecretsFile)
		if loadErr != nil {
			return fmt.Errorf("loading credentials: %w", loadErr)
		}
		log.Info("credentials loaded", "credentials", creds)
		opts = append(opts, session.WithCredentials(creds))
	}

	checks := make(map[string]api.HealthChecker)

	// Message journal (optional)
	var (
		db          *database.DB
		journalRepo journal.Repository
	)
	if cfg.Journal.Enabled {
		db, err = openJournal(ctx, cfg.Journal)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing journal database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing journal database", "error", closeErr)
			}
		}()
		log.Info("journal database ready", "path", db.Path())

		journalRepo = journal.NewSQLiteRepository(db.DB)
		opts = append(opts, session.WithObserver(journal.NewObserver(journalRepo)))
		checks["database"] = db
	} else {
		log.Info("journal disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		opts = append(opts, session.WithObserver(influxClient))
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// MQTT transport
	transport := mqtt.New(cfg.MQTT)
	transport.SetLogger(log.With("component", "mqtt"))
	lost := make(chan error, 1)
	transport.SetOnConnectionLost(func(err error) {
		select {
		case lost <- err:
		default:
		}
	})
	checks["mqtt"] = transport

	topics := sparkplug.Topics{
		Namespace: cfg.Sparkplug.Namespace,
		Group:     cfg.Sparkplug.Group,
		Node:      cfg.Sparkplug.Node,
	}
	sess, err := session.New(transport, sparkplug.NewCodec(schema), topics, opts...)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	if err := sess.Connect(ctx); err != nil {
		return fmt.Errorf("connecting session: %w", err)
	}
	log.Info("session live",
		"session_id", sess.ID(),
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", transport.ClientID(),
		"birth_topic", topics.NBirth(),
	)

	// Status server (optional)
	if cfg.Status.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:  cfg.Status,
			Logger:  log.With("component", "api"),
			Session: sess,
			Journal: journalRepo,
			DB:      dbStatter(db),
			Checks:  checks,
			Version: version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating status server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			disconnect(sess, log)
			return fmt.Errorf("starting status server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	}

	loop, err := publisher.New(sess, publisher.CounterGenerator(schema), cfg.Publisher,
		publisher.WithLogger(log.With("component", "publisher")))
	if err != nil {
		disconnect(sess, log)
		return fmt.Errorf("creating publisher: %w", err)
	}

	runErr := publish(ctx, loop, lost)

	// After a lost connection the broker has already delivered the will.
	if sess.State() == session.StateLive && !errors.Is(runErr, errConnectionLost) {
		disconnect(sess, log)
	}

	if runErr != nil {
		return runErr
	}
	log.Info("spbnode stopped")
	return nil
}

// publish runs the publisher loop until it finishes, ctx is cancelled or the
// broker connection drops.
func publish(ctx context.Context, loop *publisher.Loop, lost <-chan error) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stop()
		return loop.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-lost:
			return fmt.Errorf("%w: %w", errConnectionLost, err)
		}
	})
	return g.Wait()
}

// disconnect publishes the NDEATH and closes the connection.
func disconnect(sess *session.Session, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()

	if err := sess.Disconnect(ctx); err != nil {
		log.Error("error disconnecting session", "error", err)
		return
	}
	log.Info("session disconnected", "session_id", sess.ID())
}

// openJournal opens the journal database and applies migrations.
func openJournal(ctx context.Context, cfg config.JournalConfig) (*database.DB, error) {
	db, err := database.Open(database.ConfigFromJournal(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Already returning the migration error
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// dbStatter avoids storing a typed nil in the api.DBStatter interface.
func dbStatter(db *database.DB) api.DBStatter {
	if db == nil {
		return nil
	}
	return db
}

// buildSchema converts the metric config into a schema and birth values.
//
// Metrics without an initial value are left out of the birth values and
// receive their datatype default.
//
// Returns:
//   - *sparkplug.Schema: Metrics in config order
//   - sparkplug.Values: Initial values declared in config
//   - error: sparkplug.ErrSchema for unknown datatypes or bad names
func buildSchema(metrics []config.MetricConfig) (*sparkplug.Schema, sparkplug.Values, error) {
	defs := make([]sparkplug.MetricDef, 0, len(metrics))
	birth := make(sparkplug.Values)
	for _, m := range metrics {
		dt, err := sparkplug.ParseDataType(m.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("metric %q: %w", m.Name, err)
		}
		defs = append(defs, sparkplug.MetricDef{Name: m.Name, Type: dt})
		if m.Initial != nil {
			birth[m.Name] = m.Initial
		}
	}

	schema, err := sparkplug.NewSchema(defs)
	if err != nil {
		return nil, nil, err
	}
	return schema, birth, nil
}

// getConfigPath returns the configuration file path.
// Uses SPBNODE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SPBNODE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
