package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nfrund/chorus/internal/config"
	"github.com/surrealdb/surrealdb.go"
)

// DBConnection defines the interface for a managed database connection.
// Stores depend on it rather than on *Connection.
type DBConnection interface {
	DB() (*surrealdb.DB, error)
	WithConnection(ctx context.Context, fn func(*surrealdb.DB) error) error
	Close(ctx context.Context) error
	IsHealthy() bool
	GetDBNs() string
	GetDBDb() string
	GetDBQueryTimeout() time.Duration
	GetDBExecuteTimeout() time.Duration
}

// ExponentialBackoffRetryer retries with exponential backoff and jitter.
type ExponentialBackoffRetryer struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	multiplier float64
	jitter     bool
}

// NewExponentialBackoffRetryer creates a new retryer with sensible defaults
func NewExponentialBackoffRetryer() *ExponentialBackoffRetryer {
	return &ExponentialBackoffRetryer{
		maxRetries: 5,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   30 * time.Second,
		multiplier: 2.0,
		jitter:     true,
	}
}

// Retry executes a function with exponential backoff retry logic
func (r *ExponentialBackoffRetryer) Retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt == r.maxRetries {
			break
		}

		delay := r.calculateDelay(attempt)
		slog.DebugContext(ctx, "Retry attempt failed, waiting before next attempt",
			"event", "retry_attempt",
			"attempt", attempt+1, "max_attempts", r.maxRetries+1,
			"delay_ms", delay.Milliseconds(), "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

func (r *ExponentialBackoffRetryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.baseDelay) * math.Pow(r.multiplier, float64(attempt))
	if delay > float64(r.maxDelay) {
		delay = float64(r.maxDelay)
	}

	if r.jitter {
		// up to 25% extra
		delay += rand.Float64() * delay * 0.25
	}

	return time.Duration(delay)
}

// authMode selects how a Connection identifies itself after connecting.
type authMode int

const (
	authRoot authMode = iota
	authToken
	authNone
)

// ConnectionOption configures a Connection.
type ConnectionOption func(*Connection)

// WithToken authenticates with a record-access token instead of root
// credentials. Row permissions then apply to every statement.
func WithToken(token string) ConnectionOption {
	return func(c *Connection) {
		c.mode = authToken
		c.token = token
	}
}

// WithAnonymous connects without signing in. Only sign-in and sign-up work
// on such a connection.
func WithAnonymous() ConnectionOption {
	return func(c *Connection) {
		c.mode = authNone
	}
}

// WithConnectionLogger sets the logger.
func WithConnectionLogger(logger *slog.Logger) ConnectionOption {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithHealthInterval overrides how often the monitor pings the server.
func WithHealthInterval(d time.Duration) ConnectionOption {
	return func(c *Connection) {
		c.healthInterval = d
	}
}

// Connection manages a SurrealDB connection with health monitoring and
// reconnect-with-backoff.
type Connection struct {
	cfg            config.Provider
	conn           *surrealdb.DB
	retryer        *ExponentialBackoffRetryer
	logger         *slog.Logger
	mode           authMode
	token          string
	healthInterval time.Duration
	mu             sync.RWMutex
	healthy        bool
	done           chan struct{}
	closeOnce      sync.Once
}

var _ DBConnection = (*Connection)(nil)

// NewConnection creates a new managed database connection. Call Connect
// before use.
func NewConnection(cfg config.Provider, opts ...ConnectionOption) *Connection {
	c := &Connection{
		cfg:            cfg,
		retryer:        NewExponentialBackoffRetryer(),
		logger:         slog.Default().With("service", "database"),
		healthInterval: 30 * time.Second,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the initial database connection
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	return c.reconnect(ctx)
}

// WithConnection executes fn with the live connection. When fn fails with a
// connection error it reconnects with backoff and runs fn again.
func (c *Connection) WithConnection(ctx context.Context, fn func(*surrealdb.DB) error) error {
	conn := c.getConnection()
	if conn == nil {
		return NewDBError(ErrNotConnected, "database not connected")
	}

	err := fn(conn)
	if err == nil {
		return nil
	}

	if !isConnectionError(err) {
		return err
	}

	c.logger.WarnContext(ctx, "Database operation failed, attempting to reconnect with backoff",
		"event", "db_reconnect_triggered", "error", err, "db_url", redactDBURL(c.cfg.GetDBURL()))

	return c.retryer.Retry(ctx, func() error {
		if reconnectErr := c.forceReconnect(ctx); reconnectErr != nil {
			return fmt.Errorf("reconnection failed: %w (original error: %v)", reconnectErr, err)
		}
		return fn(c.getConnection())
	})
}

// StartMonitoring begins health checks and automatic reconnection
func (c *Connection) StartMonitoring() {
	go c.monitorConnection()
}

// Close shuts down the connection and monitoring. It is safe to call twice.
func (c *Connection) Close(ctx context.Context) error {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy = false
	if c.conn != nil {
		err := c.conn.Close(ctx)
		c.conn = nil
		return err
	}
	return nil
}

// DB returns the underlying database connection if it's healthy.
func (c *Connection) DB() (*surrealdb.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil || !c.healthy {
		return nil, NewDBError(ErrNotConnected, "database not connected or unhealthy")
	}
	return c.conn, nil
}

// IsHealthy returns the current connection status
func (c *Connection) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

func (c *Connection) getConnection() *surrealdb.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// reconnect must be called with c.mu held.
func (c *Connection) reconnect(ctx context.Context) error {
	if c.conn != nil {
		_ = c.conn.Close(ctx)
		c.conn = nil
	}

	dbURL := c.cfg.GetDBURL()
	c.logger.DebugContext(ctx, "Attempting to connect to database", "event", "db_connect_attempt", "db_url", redactDBURL(dbURL))

	conn, err := surrealdb.FromEndpointURLString(ctx, dbURL)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to create database connection", "event", "db_connect_failure",
			"db_url", redactDBURL(dbURL),
			"error", err,
		)
		c.healthy = false
		return fmt.Errorf("failed to connect to database at %s: %w", redactDBURL(dbURL), err)
	}

	if err := c.authenticate(ctx, conn); err != nil {
		_ = conn.Close(ctx)
		c.logger.ErrorContext(ctx, "Failed to authenticate to database", "event", "db_auth_failure",
			"db_url", redactDBURL(dbURL),
			"mode", c.mode,
			"error", err,
		)
		c.healthy = false
		return err
	}

	if err = conn.Use(ctx, c.cfg.GetDBNs(), c.cfg.GetDBDb()); err != nil {
		_ = conn.Close(ctx)
		c.logger.ErrorContext(ctx, "Failed to use namespace/database", "event", "db_namespace_failure",
			"db_url", redactDBURL(dbURL),
			"namespace", c.cfg.GetDBNs(),
			"database", c.cfg.GetDBDb(),
			"error", err,
		)
		c.healthy = false
		return fmt.Errorf("failed to use namespace/db: %w", err)
	}

	c.conn = conn
	c.healthy = true
	c.logger.DebugContext(ctx, "Database connection established", "event", "db_connect_success",
		"db_url", redactDBURL(dbURL),
		"namespace", c.cfg.GetDBNs(),
		"database", c.cfg.GetDBDb(),
	)
	return nil
}

func (c *Connection) authenticate(ctx context.Context, conn *surrealdb.DB) error {
	switch c.mode {
	case authToken:
		if err := conn.Authenticate(ctx, c.token); err != nil {
			return fmt.Errorf("failed to authenticate token: %w", err)
		}
	case authNone:
	default:
		authData := &surrealdb.Auth{
			Username: c.cfg.GetDBUser(),
			Password: c.cfg.GetDBPass(),
		}
		if _, err := conn.SignIn(ctx, authData); err != nil {
			return fmt.Errorf("failed to sign in: %w", err)
		}
	}
	return nil
}

func (c *Connection) forceReconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return NewDBError(ErrNotConnected, "connection closed")
	default:
	}
	return c.reconnect(ctx)
}

func (c *Connection) monitorConnection() {
	ticker := time.NewTicker(c.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.checkHealth(ctx); err != nil {
				c.logger.WarnContext(ctx, "Database health check failed, attempting reconnection with backoff",
					"event", "db_health_check_failure", "error", err, "db_url", redactDBURL(c.cfg.GetDBURL()))
				if reconnectErr := c.retryer.Retry(ctx, func() error {
					return c.forceReconnect(ctx)
				}); reconnectErr != nil {
					c.logger.ErrorContext(ctx, "Failed to reconnect to database after health check failure",
						"event", "db_reconnect_failure", "error", reconnectErr, "db_url", redactDBURL(c.cfg.GetDBURL()))
				}
			}
			cancel()
		case <-c.done:
			return
		}
	}
}

func (c *Connection) checkHealth(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		c.setHealthy(false)
		return errors.New("no active database connection")
	}

	if _, err := conn.Version(ctx); err != nil {
		c.setHealthy(false)
		return fmt.Errorf("database health check failed for %s: %w", redactDBURL(c.cfg.GetDBURL()), err)
	}

	// Sampled to keep debug logs quiet.
	if rand.Float32() < 0.1 {
		c.logger.DebugContext(ctx, "Database health check successful", "event", "db_health_check_success")
	}
	c.setHealthy(true)
	return nil
}

func (c *Connection) setHealthy(v bool) {
	c.mu.Lock()
	c.healthy = v
	c.mu.Unlock()
}

// isConnectionError checks if an error is likely due to a lost or failed connection.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "broken pipe") ||
		strings.Contains(errMsg, "unexpected eof") ||
		strings.Contains(errMsg, "use of closed network connection")
}

// redactDBURL returns dbURL with any password replaced by "xxxxx".
func redactDBURL(dbURL string) string {
	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	return parsedURL.Redacted()
}

// GetDBNs returns the database namespace from the config provider.
func (c *Connection) GetDBNs() string {
	return c.cfg.GetDBNs()
}

// GetDBDb returns the database name from the config provider.
func (c *Connection) GetDBDb() string {
	return c.cfg.GetDBDb()
}

// GetDBQueryTimeout returns the query timeout from the config provider.
func (c *Connection) GetDBQueryTimeout() time.Duration {
	return c.cfg.GetDBQueryTimeout()
}

// GetDBExecuteTimeout returns the execute timeout from the config provider.
func (c *Connection) GetDBExecuteTimeout() time.Duration {
	return c.cfg.GetDBExecuteTimeout()
}

// GetDBAccess returns the record access method name used for sign-in.
func (c *Connection) GetDBAccess() string {
	return c.cfg.GetDBAccess()
}
