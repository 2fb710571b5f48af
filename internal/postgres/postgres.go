package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	pgxslog "github.com/mcosta74/pgx-slog"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
)

const (
	DefaultMaxConns       = 16
	DefaultMinConns       = 0
	DefaultLogLevel       = tracelog.LogLevelError
	DefaultConnectTimeout = 10 * time.Second
)

type Config struct {
	Host     string `mapstructure:"host"`     // Default is 127.0.0.1
	Port     string `mapstructure:"port"`     // Default is 5432
	User     string `mapstructure:"user"`     // Default is empty
	Password string `mapstructure:"password"` // Default is empty
	DBName   string `mapstructure:"db_name"`  // Default is postgres
	SSLMode  string `mapstructure:"ssl_mode"` // Default is prefer
	URL      string `mapstructure:"url"`      // If URL is provided, other fields are ignored

	MaxConns int32 `mapstructure:"max_conns"` // Default is 16
	MinConns int32 `mapstructure:"min_conns"` // Default is 0

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"` // Default is 10s

	Debug bool `mapstructure:"debug"`
}

// NewPool creates a new connection pool to the database
func NewPool(ctx context.Context, conf Config) (*pgxpool.Pool, error) {
	// Prepare connection pool configuration
	connConfig, err := pgxpool.ParseConfig(conf.String())
	if err != nil {
		return nil, errors.Wrap(errors.Mark(err, errs.InvalidArgument), "failed to parse config to create a new connection pool")
	}
	connConfig.MaxConns = utils.Default(conf.MaxConns, DefaultMaxConns)
	connConfig.MinConns = utils.Default(conf.MinConns, DefaultMinConns)
	connConfig.ConnConfig.ConnectTimeout = utils.Default(conf.ConnectTimeout, DefaultConnectTimeout)
	connConfig.ConnConfig.Tracer = conf.QueryTracer()

	// Create a new connection pool
	connPool, err := pgxpool.NewWithConfig(ctx, connConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create a new connection pool")
	}

	// Test the connection
	if err := connPool.Ping(ctx); err != nil {
		connPool.Close()
		return nil, errors.Wrap(errors.Mark(err, errs.Unavailable), "failed to connect to the database")
	}

	return connPool, nil
}

// String returns the connection string (DSN format or URL format)
func (conf Config) String() string {
	// Prefer URL over DSN format
	if conf.URL != "" {
		return conf.URL
	}

	conf.Host = utils.Default(conf.Host, "127.0.0.1")
	conf.Port = utils.Default(conf.Port, "5432")
	conf.SSLMode = utils.Default(conf.SSLMode, "prefer")
	conf.DBName = utils.Default(conf.DBName, "postgres")

	// Construct DSN
	connString := fmt.Sprintf("host=%s dbname=%s port=%s sslmode=%s", conf.Host, conf.DBName, conf.Port, conf.SSLMode)
	if conf.User != "" {
		connString = fmt.Sprintf("%s user=%s", connString, conf.User)
	}
	if conf.Password != "" {
		connString = fmt.Sprintf("%s password=%s", connString, conf.Password)
	}
	return connString
}

// URLString returns the connection string in URL format, as required by migration tools.
func (conf Config) URLString() string {
	if conf.URL != "" {
		return conf.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(utils.Default(conf.Host, "127.0.0.1"), utils.Default(conf.Port, "5432")),
		Path:     "/" + utils.Default(conf.DBName, "postgres"),
		RawQuery: url.Values{"sslmode": {utils.Default(conf.SSLMode, "prefer")}}.Encode(),
	}
	if conf.User != "" {
		u.User = url.UserPassword(conf.User, conf.Password)
	}
	return u.String()
}

func (conf Config) QueryTracer() pgx.QueryTracer {
	loglevel := DefaultLogLevel
	if conf.Debug {
		loglevel = tracelog.LogLevelTrace
	}
	return &tracelog.TraceLog{
		Logger:   pgxslog.NewLogger(logger.With("package", "postgres")),
		LogLevel: loglevel,
	}
}
