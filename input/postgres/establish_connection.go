package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/pgtelemetry/collector/config"
	"github.com/pgtelemetry/collector/util"
	"github.com/pgtelemetry/collector/util/awsutil"
)

// instanceConnector opens connections for one configured instance. A fresh
// connection string is built per connection so IAM tokens never go stale.
type instanceConnector struct {
	server            config.ServerConfig
	driver            driver.DriverContext
	sslModePreferFail atomic.Bool
}

func newInstanceConnector(server config.ServerConfig) (*instanceConnector, error) {
	var drv driver.Driver
	switch server.DbDriver {
	case "", "postgres":
		drv = &pq.Driver{}
	case "pgx":
		drv = stdlib.GetDefaultDriver()
	default:
		return nil, fmt.Errorf("unknown database driver %q", server.DbDriver)
	}

	driverContext, ok := drv.(driver.DriverContext)
	if !ok {
		return nil, fmt.Errorf("database driver %q does not support connectors", server.DbDriver)
	}

	return &instanceConnector{server: server, driver: driverContext}, nil
}

func (c *instanceConnector) connectString() (string, error) {
	var passwordOverride string

	server := c.server
	server.DbSslModePreferFailed = c.sslModePreferFail.Load()

	if server.DbUseIamAuth {
		token, err := awsutil.BuildIamAuthToken(server)
		if err != nil {
			return "", errors.Wrap(err, "failed to build IAM auth token")
		}
		passwordOverride = token
	}

	// Unknown keywords are sent as run-time parameters by both lib/pq and pgx
	return fmt.Sprintf("%s statement_timeout=%d", server.GetConnectString(passwordOverride), server.StatementTimeoutMs), nil
}

func (c *instanceConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.connect(ctx)
	if err != nil && isSslNotEnabled(err) && (c.server.DbSslMode == "prefer" || c.server.DbSslMode == "") && !c.sslModePreferFail.Load() {
		c.sslModePreferFail.Store(true)
		conn, err = c.connect(ctx)
	}
	return conn, err
}

func (c *instanceConnector) connect(ctx context.Context) (driver.Conn, error) {
	connectString, err := c.connectString()
	if err != nil {
		return nil, err
	}

	connector, err := c.driver.OpenConnector(connectString)
	if err != nil {
		return nil, err
	}

	return connector.Connect(ctx)
}

func (c *instanceConnector) Driver() driver.Driver {
	return c.driver.(driver.Driver)
}

func isSslNotEnabled(err error) bool {
	return strings.Contains(err.Error(), "SSL is not enabled on the server") ||
		strings.Contains(err.Error(), "server refused TLS connection")
}

// EstablishConnection - Sets up the connection pool for one instance.
//
// The pool is created even if the server can't be reached right now, so the
// instance recovers on a later cycle; the initial failure is only logged.
func EstablishConnection(ctx context.Context, logger *util.Logger, server config.ServerConfig) (*sql.DB, error) {
	connector, err := newInstanceConnector(server)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(server.MaxConnections)
	db.SetMaxIdleConns(server.MaxConnections)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(server.ConnectTimeoutSeconds)*time.Second)
	defer cancel()

	err = db.PingContext(pingCtx)
	if err != nil {
		logger.PrintWarning("Could not connect to %s:%d, will retry on the next cycle: %s", server.GetDbHost(), server.GetDbPortOrDefault(), err)
	} else {
		logger.PrintVerbose("Connected to %s:%d (driver: %s, pool size: %d)", server.GetDbHost(), server.GetDbPortOrDefault(), server.DbDriver, server.MaxConnections)
	}

	return db, nil
}
