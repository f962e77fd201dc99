package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	dbTracer = otel.Tracer("finsync.db")
	dbMeter  = otel.Meter("finsync.db")
)

// DB wraps *sql.DB so every statement gets a span and a duration sample.
type DB struct {
	*sql.DB
	duration metric.Float64Histogram
}

func New(connStr string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	duration, err := dbMeter.Float64Histogram("db.query.duration",
		metric.WithDescription("Statement latency by SQL verb"),
		metric.WithUnit("s"),
	)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create db metrics: %w", err)
	}

	return &DB{DB: sqlDB, duration: duration}, nil
}

// statement is one traced call; finish must be called exactly once.
type statement struct {
	ctx   context.Context
	span  trace.Span
	verb  string
	start time.Time
	hist  metric.Float64Histogram
}

func (db *DB) begin(ctx context.Context, name, query string) (context.Context, *statement) {
	verb := extractSQLVerb(query)
	ctx, span := dbTracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", verb),
		attribute.String("db.statement", sanitizeQuery(query)),
	))
	return ctx, &statement{ctx: ctx, span: span, verb: verb, start: time.Now(), hist: db.duration}
}

func (s *statement) finish(err error) {
	status := "ok"
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		status = "error"
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	if s.hist != nil {
		s.hist.Record(s.ctx, time.Since(s.start).Seconds(), metric.WithAttributes(
			attribute.String("db.operation", s.verb),
			attribute.String("status", status),
		))
	}
	s.span.End()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, st := db.begin(ctx, "db.Query", query)
	rows, err := db.DB.QueryContext(ctx, query, args...)
	st.finish(err)
	return rows, err
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, st := db.begin(ctx, "db.Exec", query)
	result, err := db.DB.ExecContext(ctx, query, args...)
	st.finish(err)
	return result, err
}

// QueryRowContext defers finishing the span to Scan, where sql.Row reports
// its errors.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	ctx, st := db.begin(ctx, "db.QueryRow", query)
	return &Row{row: db.DB.QueryRowContext(ctx, query, args...), st: st}
}

type Row struct {
	row *sql.Row
	st  *statement
}

func (r *Row) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if r.st != nil {
		r.st.finish(err)
		r.st = nil
	}
	return err
}

// Tx is the handle WithTx callbacks write through.
type Tx struct {
	db *DB
	tx *sql.Tx
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, st := t.db.begin(ctx, "db.Tx.Exec", query)
	result, err := t.tx.ExecContext(ctx, query, args...)
	st.finish(err)
	return result, err
}

// WithTx commits when fn returns nil and rolls back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	ctx, span := dbTracer.Start(ctx, "db.Tx", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sqlTx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Tx{db: db, tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var (
	quotedLiteral  = regexp.MustCompile(`'(?:[^']|'')*'`)
	numericLiteral = regexp.MustCompile(`(^|[^\w$])\d+(?:\.\d+)?`)
)

const maxStatementLen = 256

// sanitizeQuery masks literals so tokens and cursors never reach a trace.
// $N placeholders carry no data and are kept.
func sanitizeQuery(q string) string {
	s := quotedLiteral.ReplaceAllString(q, "'?'")
	s = numericLiteral.ReplaceAllString(s, "${1}?")
	if len(s) > maxStatementLen {
		return s[:maxStatementLen] + "..."
	}
	return s
}

func extractSQLVerb(q string) string {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
