package sqlite

import (
	"context"
	"database/sql"
	"time"

	"signal_trader/internal/models"
	"signal_trader/internal/storage"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv_markers (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    expires_at INTEGER NULL
);
CREATE TABLE IF NOT EXISTS open_positions (
    contract_id TEXT PRIMARY KEY,
    data        TEXT NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS trade_stats (
    id     INTEGER PRIMARY KEY,
    wins   INTEGER NOT NULL DEFAULT 0,
    losses INTEGER NOT NULL DEFAULT 0,
    pnl    REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS trade_history (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    entry      TEXT NOT NULL,
    created_at INTEGER NOT NULL
);`

// Store keeps everything in one sqlite file. A single connection serializes
// writers, which makes each statement and each transaction atomic per key.
type Store struct {
	db           *sql.DB
	now          func() time.Time
	historyLimit int
}

// Open opens (or creates) the database at dsn, e.g. "file:trader.db" or
// "file::memory:?cache=shared", and applies the schema.
func Open(ctx context.Context, dsn string, historyLimit int) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite open")
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now, historyLimit: historyLimit}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlite migrate")
	}
	return s, nil
}

func (s *Store) nowMs() int64 { return s.now().UnixMilli() }

func (s *Store) expiry(ttl time.Duration) sql.NullInt64 {
	if ttl <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: s.now().Add(ttl).UnixMilli(), Valid: true}
}

func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO kv_markers (key, value, expires_at) VALUES (?, ?, ?)
        ON CONFLICT (key) DO UPDATE SET
            value      = excluded.value,
            expires_at = excluded.expires_at
        WHERE kv_markers.expires_at IS NOT NULL AND kv_markers.expires_at <= ?`,
		key, value, s.expiry(ttl), s.nowMs())
	if err != nil {
		return false, errors.Wrap(err, "sqlite setnx")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "sqlite setnx")
	}
	return n == 1, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `
        SELECT value FROM kv_markers
        WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`, key, s.nowMs()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "sqlite get")
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO kv_markers (key, value, expires_at) VALUES (?, ?, ?)
        ON CONFLICT (key) DO UPDATE SET
            value      = excluded.value,
            expires_at = excluded.expires_at`, key, value, s.expiry(ttl))
	return errors.Wrap(err, "sqlite set")
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_markers WHERE key = ?`, key)
	return errors.Wrap(err, "sqlite delete")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(row scanner) (models.Position, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Position{}, storage.ErrNotFound
		}
		return models.Position{}, err
	}
	var p models.Position
	if err := sonic.UnmarshalString(data, &p); err != nil {
		return models.Position{}, errors.Wrap(err, "unmarshal position")
	}
	return p, nil
}

func (s *Store) SavePosition(ctx context.Context, p models.Position) error {
	data, err := sonic.MarshalString(p)
	if err != nil {
		return errors.Wrap(err, "marshal position")
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO open_positions (contract_id, data, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (contract_id) DO UPDATE SET
            data       = excluded.data,
            updated_at = excluded.updated_at`, p.ContractID, data, s.nowMs())
	return errors.Wrap(err, "sqlite save position")
}

func (s *Store) GetPosition(ctx context.Context, contractID string) (models.Position, error) {
	return scanPosition(s.db.QueryRowContext(ctx,
		`SELECT data FROM open_positions WHERE contract_id = ?`, contractID))
}

func (s *Store) ListPositions(ctx context.Context) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM open_positions ORDER BY contract_id`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite list positions")
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite begin")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return fn(tx)
}

func (s *Store) UpdatePosition(ctx context.Context, contractID string, fn storage.UpdateFunc) (models.Position, error) {
	var out models.Position
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		p, err := scanPosition(tx.QueryRowContext(ctx,
			`SELECT data FROM open_positions WHERE contract_id = ?`, contractID))
		if err != nil {
			return err
		}
		changed, err := fn(&p)
		if err != nil {
			return err
		}
		out = p
		if !changed {
			return nil
		}
		data, err := sonic.MarshalString(p)
		if err != nil {
			return errors.Wrap(err, "marshal position")
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE open_positions SET data = ?, updated_at = ? WHERE contract_id = ?`, data, s.nowMs(), contractID)
		return err
	})
	if err != nil {
		return models.Position{}, err
	}
	return out, nil
}

func (s *Store) RecordTrade(ctx context.Context, entry string, pnl float64) error {
	win, loss := 0, 1
	if models.IsWin(pnl) {
		win, loss = 1, 0
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO trade_stats (id, wins, losses, pnl) VALUES (1, ?, ?, ?)
            ON CONFLICT (id) DO UPDATE SET
                wins   = trade_stats.wins + excluded.wins,
                losses = trade_stats.losses + excluded.losses,
                pnl    = trade_stats.pnl + excluded.pnl`, win, loss, pnl); err != nil {
			return errors.Wrap(err, "update counters")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trade_history (entry, created_at) VALUES (?, ?)`, entry, s.nowMs()); err != nil {
			return errors.Wrap(err, "append history")
		}
		if s.historyLimit > 0 {
			if _, err := tx.ExecContext(ctx, `
                DELETE FROM trade_history WHERE id NOT IN (
                    SELECT id FROM trade_history ORDER BY id DESC LIMIT ?
                )`, s.historyLimit); err != nil {
				return errors.Wrap(err, "trim history")
			}
		}
		return nil
	})
}

func (s *Store) Stats(ctx context.Context, limit int) (models.StatsSnapshot, error) {
	var out models.StatsSnapshot
	err := s.db.QueryRowContext(ctx, `SELECT wins, losses, pnl FROM trade_stats WHERE id = 1`).
		Scan(&out.Wins, &out.Losses, &out.CumulativePnL)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return out, errors.Wrap(err, "sqlite stats")
	}

	if limit <= 0 {
		limit = s.historyLimit
	}
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT entry FROM trade_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return out, errors.Wrap(err, "sqlite history")
	}
	defer rows.Close()
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return out, err
		}
		out.History = append(out.History, e)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ storage.Store = (*Store)(nil)
