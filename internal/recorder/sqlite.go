package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/logger"
	"nse-paper-trader/internal/types"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists closed trades and lifecycle events to a SQLite
// database for offline analysis. It subscribes as a notifier, so recording
// never sits on the trading path: a failed insert is logged and dropped.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

var _ interfaces.Notifier = (*SQLiteRecorder)(nil)

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so analysis queries can read while the trader writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id             TEXT PRIMARY KEY,
			portfolio      TEXT NOT NULL,
			symbol         TEXT NOT NULL,
			strategy_class TEXT,
			signal_type    TEXT,
			entry_price    REAL,
			exit_price     REAL,
			shares         INTEGER,
			pnl            REAL,
			pnl_pct        REAL,
			reason         TEXT,
			entry_time     INTEGER,
			exit_time      INTEGER,
			holding_days   INTEGER,
			quality_score  REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_exit ON trades(exit_time)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,

		`CREATE TABLE IF NOT EXISTS events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			kind      TEXT,
			portfolio TEXT,
			symbol    TEXT,
			reason    TEXT,
			shares    INTEGER,
			price     REAL,
			pnl       REAL,
			score     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Publish records the event, and the full trade row when one is attached.
func (r *SQLiteRecorder) Publish(ctx context.Context, ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec(`INSERT INTO events
		(timestamp, kind, portfolio, symbol, reason, shares, price, pnl, score)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		ev.Time.Unix(), string(ev.Kind), ev.Portfolio, ev.Symbol,
		string(ev.Reason), ev.Shares, ev.Price, ev.PnL, ev.Score,
	); err != nil {
		logger.ErrorWithErr(ctx, "recorder event insert failed", err, "symbol", ev.Symbol)
	}

	if ev.Trade == nil {
		return
	}
	t := ev.Trade
	if _, err := r.db.Exec(`INSERT OR IGNORE INTO trades
		(id, portfolio, symbol, strategy_class, signal_type, entry_price, exit_price,
		 shares, pnl, pnl_pct, reason, entry_time, exit_time, holding_days, quality_score)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Portfolio, t.Symbol, string(t.StrategyClass), string(t.SignalType),
		t.EntryPrice, t.ExitPrice, t.Shares, t.PnL, t.PnLPct, string(t.Reason),
		t.EntryTime.Unix(), t.ExitTime.Unix(), t.HoldingDays, t.QualityScore,
	); err != nil {
		logger.ErrorWithErr(ctx, "recorder trade insert failed", err, "symbol", t.Symbol)
	}
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
