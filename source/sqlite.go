package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/archelon/pricesim/market"
)

const candleSchema = `
CREATE TABLE IF NOT EXISTS candles (
	symbol     TEXT    NOT NULL,
	interval   TEXT    NOT NULL,
	open_time  INTEGER NOT NULL,
	close_time INTEGER NOT NULL,
	open       REAL    NOT NULL,
	high       REAL    NOT NULL,
	low        REAL    NOT NULL,
	close      REAL    NOT NULL,
	volume     REAL    NOT NULL,
	PRIMARY KEY (symbol, interval, open_time)
);

CREATE INDEX IF NOT EXISTS idx_candles_key
	ON candles (symbol, interval, open_time);
`

// SQLite is a CandleSource backed by a SQLite database. The recorder and the
// archive importer write through Insert; the simulation core only reads.
// Index order is open_time ascending, so indices are stable as long as only
// newer candles are appended.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(candleSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init candle schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Candle(ctx context.Context, symbol string, interval market.Interval, index int) (market.Candle, error) {
	if index < 0 {
		return market.Candle{}, fmt.Errorf("%s %s index %d: %w", symbol, interval, index, ErrOutOfRange)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT open_time, close_time, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval = ?
		ORDER BY open_time
		LIMIT 1 OFFSET ?`,
		symbol, string(interval), index,
	)

	var openMs, closeMs int64
	c := market.Candle{Symbol: symbol, Interval: interval}
	err := row.Scan(&openMs, &closeMs, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume)
	if err == sql.ErrNoRows {
		// Distinguish an empty key from running off the end of history.
		n, cntErr := s.Count(ctx, symbol, interval)
		if cntErr != nil {
			return market.Candle{}, cntErr
		}
		return market.Candle{}, fmt.Errorf("%s %s index %d of %d: %w", symbol, interval, index, n, ErrOutOfRange)
	}
	if err != nil {
		return market.Candle{}, fmt.Errorf("query candle %s %s [%d]: %w", symbol, interval, index, err)
	}

	c.OpenTime = time.UnixMilli(openMs).UTC()
	c.CloseTime = time.UnixMilli(closeMs).UTC()
	return c, nil
}

func (s *SQLite) Count(ctx context.Context, symbol string, interval market.Interval) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM candles WHERE symbol = ? AND interval = ?`,
		symbol, string(interval),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count candles %s %s: %w", symbol, interval, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%s %s: %w", symbol, interval, ErrUnknownKey)
	}
	return n, nil
}

// Insert stores candles, silently skipping bars already present for their
// (symbol, interval, open_time). Returns the number of rows actually written.
func (s *SQLite) Insert(ctx context.Context, candles []market.Candle) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO candles
		(symbol, interval, open_time, close_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range candles {
		res, err := stmt.ExecContext(ctx,
			c.Symbol, string(c.Interval),
			c.OpenTime.UnixMilli(), c.End().UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert candle %s %s @%s: %w",
				c.Symbol, c.Interval, c.OpenTime.Format(time.RFC3339), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
