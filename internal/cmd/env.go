package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/c2h5oh/datasize"
	"github.com/caarlos0/env/v7"
	"github.com/getsentry/sentry-go"
	"github.com/redron/dispatch/internal/errcoll"
	"github.com/redron/dispatch/internal/version"
)

// nodeEnvDevelopment is the NODE_ENV value that enables stack traces in the
// API error responses.
const nodeEnvDevelopment = "development"

// environment represents the configuration that is kept in the environment.
type environment struct {
	RedisURL *urlutil.URL `env:"REDIS_URL"`

	CORSOrigin  string `env:"CORS_ORIGIN" envDefault:"*"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`

	// MongoDBURL is the legacy alias for DATABASE_URL, recognized only when
	// that is empty.
	MongoDBURL   string `env:"MONGODB_URL"`
	NodeEnv      string `env:"NODE_ENV" envDefault:"production"`
	RegistryPath string `env:"REGISTRY_PATH"`
	SentryDSN    string `env:"SENTRY_DSN" envDefault:"stderr"`

	DebugListenAddr net.IP `env:"DEBUG_LISTEN_ADDR" envDefault:"127.0.0.1"`

	MaxHeaderSize datasize.ByteSize `env:"HTTP_MAX_HEADER_SIZE" envDefault:"64KB"`

	RedisIdleTimeout timeutil.Duration `env:"REDIS_IDLE_TIMEOUT" envDefault:"30s"`

	DBMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	RedisMaxActive int `env:"REDIS_MAX_ACTIVE" envDefault:"10"`
	WorkerCount    int `env:"WORKER_COUNT" envDefault:"0"`
	WorkerID       int `env:"WORKER_ID" envDefault:"1"`

	DebugListenPort uint16 `env:"DEBUG_LISTEN_PORT" envDefault:"6062"`
	ListenPort      uint16 `env:"PORT" envDefault:"3000"`

	Verbosity uint8 `env:"VERBOSE" envDefault:"0"`

	ClusterEnabled strictBool `env:"CLUSTER_ENABLED" envDefault:"1"`
	LogTimestamp   strictBool `env:"LOG_TIMESTAMP" envDefault:"1"`
}

// parseEnvironment reads the configuration.
func parseEnvironment() (envs *environment, err error) {
	envs = &environment{}
	err = env.Parse(envs)
	if err != nil {
		return nil, fmt.Errorf("parsing environments: %w", err)
	}

	return envs, nil
}

// type check
var _ validate.Interface = (*environment)(nil)

// Validate implements the [validate.Interface] interface for *environment.
func (envs *environment) Validate() (err error) {
	errs := []error{
		validate.Positive("DB_MAX_OPEN_CONNS", envs.DBMaxOpenConns),
		validate.Positive("REDIS_MAX_ACTIVE", envs.RedisMaxActive),
		validate.Positive("WORKER_ID", envs.WorkerID),
		validate.NotNegative("WORKER_COUNT", envs.WorkerCount),
		validate.Positive("PORT", envs.ListenPort),
		validate.Positive("HTTP_MAX_HEADER_SIZE", envs.MaxHeaderSize),
	}

	_, err = slogutil.NewFormat(envs.LogFormat)
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %w", err))
	}

	_, err = slogutil.VerbosityToLevel(envs.Verbosity)
	if err != nil {
		errs = append(errs, fmt.Errorf("VERBOSE: %w", err))
	}

	return errors.Join(errs...)
}

// databaseDSN returns the Postgres DSN, falling back to the legacy variable.
// It is empty when the database has not been configured at all.
func (envs *environment) databaseDSN() (dsn string) {
	if envs.DatabaseURL != "" {
		return envs.DatabaseURL
	}

	return envs.MongoDBURL
}

// isPrimary returns true when this replica is the one that runs the ranking
// refresh worker.
func (envs *environment) isPrimary() (ok bool) {
	return !bool(envs.ClusterEnabled) || envs.WorkerID == 1
}

// buildErrColl builds and returns an error collector from environment.
// baseLogger must not be nil.
func (envs *environment) buildErrColl(
	baseLogger *slog.Logger,
) (errColl errcoll.Interface, err error) {
	dsn := envs.SentryDSN
	if dsn == "stderr" {
		return errcoll.NewWriterErrorCollector(os.Stderr), nil
	}

	cli, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          version.Version(),
	})
	if err != nil {
		return nil, err
	}

	l := baseLogger.With(slogutil.KeyPrefix, "sentry_errcoll")

	return errcoll.NewSentryErrorCollector(cli, l), nil
}

// strictBool is a type for booleans that are parsed from the environment more
// strictly than the usual bool.  It only accepts "0" and "1" as valid values.
type strictBool bool

// UnmarshalText implements the encoding.TextUnmarshaler interface for
// *strictBool.
func (sb *strictBool) UnmarshalText(b []byte) (err error) {
	if len(b) == 1 {
		switch b[0] {
		case '0':
			*sb = false

			return nil
		case '1':
			*sb = true

			return nil
		default:
			// Go on and return an error.
		}
	}

	return fmt.Errorf("invalid value %q, supported: %q, %q", b, "0", "1")
}
