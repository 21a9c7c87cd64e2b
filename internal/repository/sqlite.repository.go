package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"maxtrade/internal/domain"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol    TEXT    NOT NULL,
	ts        INTEGER NOT NULL,
	open      REAL    NOT NULL,
	high      REAL    NOT NULL,
	low       REAL    NOT NULL,
	close     REAL    NOT NULL,
	volume    REAL    NOT NULL,
	PRIMARY KEY (symbol, ts)
);
CREATE TABLE IF NOT EXISTS fundamentals (
	symbol   TEXT    NOT NULL,
	as_of    INTEGER NOT NULL,
	pe_ratio REAL,
	pb_ratio REAL,
	roe      REAL,
	PRIMARY KEY (symbol, as_of)
);
CREATE TABLE IF NOT EXISTS backtest_result (
	backtest_result_id TEXT    PRIMARY KEY,
	strategy_id        TEXT    NOT NULL,
	status             TEXT    NOT NULL,
	created_at         INTEGER NOT NULL,
	result_json        BLOB    NOT NULL
);
`

// OpenSqlite opens (or creates) the database at path and ensures the
// schema. ":memory:" is accepted for tests
func OpenSqlite(path string) (*sql.DB, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// every connection to :memory: is its own database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return db, nil
}

type SqliteBarRepository interface {
	BarRepository
	BarWriter
}

type sqliteBarRepositoryHandler struct {
	Db *sql.DB
}

func NewSqliteBarRepository(db *sql.DB) SqliteBarRepository {
	return &sqliteBarRepositoryHandler{Db: db}
}

func (h sqliteBarRepositoryHandler) Add(ctx context.Context, bars []domain.Bar) error {
	grouped, err := groupBars(bars)
	if err != nil {
		return err
	}

	tx, err := h.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, ts) DO UPDATE SET
			open=excluded.open,
			high=excluded.high,
			low=excluded.low,
			close=excluded.close,
			volume=excluded.volume`)
	if err != nil {
		return fmt.Errorf("failed to prepare bar insert: %w", err)
	}
	defer stmt.Close()

	symbols := make([]string, 0, len(grouped))
	for symbol := range grouped {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		for _, b := range grouped[symbol] {
			_, err := stmt.ExecContext(ctx, b.Symbol, b.Timestamp.UnixMilli(), b.Open, b.High, b.Low, b.Close, b.Volume)
			if err != nil {
				return fmt.Errorf("failed to insert bar %s: %w", b.Symbol, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bars: %w", err)
	}
	return nil
}

func (h sqliteBarRepositoryHandler) List(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	rows, err := h.Db.QueryContext(ctx, `
		SELECT symbol, ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC`,
		normalizeSymbol(symbol), start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	out := []domain.Bar{}
	for rows.Next() {
		var (
			b  domain.Bar
			ts int64
		)
		if err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		b.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bars: %w", err)
	}
	return out, nil
}

func (h sqliteBarRepositoryHandler) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := h.Db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type SqliteFundamentalsRepository interface {
	FundamentalsRepository
	Add(ctx context.Context, snapshots []domain.Fundamentals) error
}

type sqliteFundamentalsRepositoryHandler struct {
	Db *sql.DB
}

func NewSqliteFundamentalsRepository(db *sql.DB) SqliteFundamentalsRepository {
	return &sqliteFundamentalsRepositoryHandler{Db: db}
}

func (h sqliteFundamentalsRepositoryHandler) Add(ctx context.Context, snapshots []domain.Fundamentals) error {
	tx, err := h.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, f := range snapshots {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fundamentals (symbol, as_of, pe_ratio, pb_ratio, roe)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(symbol, as_of) DO UPDATE SET
				pe_ratio=excluded.pe_ratio,
				pb_ratio=excluded.pb_ratio,
				roe=excluded.roe`,
			normalizeSymbol(f.Symbol), f.AsOf.UnixMilli(), nullFloat(f.PeRatio), nullFloat(f.PbRatio), nullFloat(f.Roe),
		)
		if err != nil {
			return fmt.Errorf("failed to insert fundamentals for %s: %w", f.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fundamentals: %w", err)
	}
	return nil
}

func (h sqliteFundamentalsRepositoryHandler) Get(ctx context.Context, symbol string, asOf time.Time) (*domain.Fundamentals, error) {
	row := h.Db.QueryRowContext(ctx, `
		SELECT symbol, as_of, pe_ratio, pb_ratio, roe
		FROM fundamentals
		WHERE symbol = ? AND as_of <= ?
		ORDER BY as_of DESC
		LIMIT 1`,
		normalizeSymbol(symbol), asOf.UnixMilli(),
	)

	var (
		f           domain.Fundamentals
		ts          int64
		pe, pb, roe sql.NullFloat64
	)
	err := row.Scan(&f.Symbol, &ts, &pe, &pb, &roe)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fundamentals for %s: %w", symbol, err)
	}
	f.AsOf = time.UnixMilli(ts).UTC()
	f.PeRatio = floatFromNull(pe)
	f.PbRatio = floatFromNull(pb)
	f.Roe = floatFromNull(roe)
	return &f, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatFromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
