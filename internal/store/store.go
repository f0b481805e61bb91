package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/criteria/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is len(migrations).
//
//	0: saved_criteria table
//	1: index on saved_criteria.hash
const currentSchemaVersion = 1

// TracerName is the instrumentation scope of store spans.
const TracerName = "github.com/roach88/criteria/internal/store"

// Store keeps saved criteria and runs projected criteria against SQLite
// tables. Every operation is traced.
type Store struct {
	db       *sql.DB
	compiler *querysql.SQLCompiler
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTracerProvider sets the provider store spans are taken from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) {
		s.tracer = tp.Tracer(TracerName)
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open creates or opens a SQLite database at path, applies the connection
// pragmas and brings the saved criteria schema up to date. Opening an
// existing database again is safe.
func Open(path string, opts ...Option) (*Store, error) {
	dialect, err := querysql.LookupDialect("sqlite")
	if err != nil {
		return nil, err
	}

	s := &Store{
		compiler: querysql.NewSQLCompiler(dialect),
		tracer:   otel.Tracer(TracerName),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, span := s.startSpan(context.Background(), "store.open",
		trace.WithAttributes(attribute.String("db.system", "sqlite")))
	defer span.End()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to open database: %w", err))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fail(span, fmt.Errorf("failed to connect to database: %w", err))
	}

	// One writer at a time; pragmas are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	if err := s.setup(ctx); err != nil {
		db.Close()
		return nil, fail(span, err)
	}
	s.logger.DebugContext(ctx, "store opened", "path", path, "schema_version", currentSchemaVersion)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect filters are projected with.
func (s *Store) Dialect() querysql.Dialect {
	return s.compiler.Dialect
}

// startSpan opens a span for a store operation.
func (s *Store) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, opts...)
}

// fail records err on span and returns it unchanged.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// pragmas configure every connection: WAL for reads during writes,
// NORMAL sync, a 5s busy timeout and foreign key enforcement.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// migrations[i] upgrades a database from user_version i to i+1.
var migrations = []func(ctx context.Context, db *sql.DB) error{
	migrateToV1,
}

// setup applies pragmas, the base schema and pending migrations.
func (s *Store) setup(ctx context.Context) error {
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to apply pragmas: %q: %w", pragma, err)
		}
	}

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to run migrations: get user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if err := migrations[v](ctx, s.db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		s.logger.DebugContext(ctx, "migrated schema", "from", v, "to", v+1)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("failed to run migrations: set user_version: %w", err)
	}
	return nil
}

// migrateToV1 indexes saved criteria by structural hash.
func migrateToV1(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_saved_criteria_hash
		ON saved_criteria(hash)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma reports whether pragma name reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
