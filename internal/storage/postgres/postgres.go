package postgres

import (
	"context"
	"time"

	"signal_trader/internal/models"
	"signal_trader/internal/storage"
	"signal_trader/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv_markers (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    expires_at TIMESTAMPTZ NULL
);
CREATE TABLE IF NOT EXISTS open_positions (
    contract_id TEXT PRIMARY KEY,
    data        JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS trade_stats (
    id     SMALLINT PRIMARY KEY,
    wins   BIGINT NOT NULL DEFAULT 0,
    losses BIGINT NOT NULL DEFAULT 0,
    pnl    DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS trade_history (
    id         BIGSERIAL PRIMARY KEY,
    entry      TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type Store struct {
	db           db.TxManager
	historyLimit int
}

func New(tx db.TxManager, historyLimit int) *Store {
	return &Store{db: tx, historyLimit: historyLimit}
}

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := s.db.Conn().Exec(ctx, schemaSQL)
	return errors.Wrap(err, "postgres migrate")
}

func ttlSeconds(ttl time.Duration) *float64 {
	if ttl <= 0 {
		return nil
	}
	v := ttl.Seconds()
	return &v
}

func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	const q = `
        INSERT INTO kv_markers (key, value, expires_at)
        VALUES ($1, $2, CASE WHEN $3::float8 IS NULL THEN NULL ELSE now() + make_interval(secs => $3::float8) END)
        ON CONFLICT (key) DO UPDATE SET
            value      = EXCLUDED.value,
            expires_at = EXCLUDED.expires_at
        WHERE kv_markers.expires_at IS NOT NULL AND kv_markers.expires_at <= now()`
	tag, err := s.db.Conn().Exec(ctx, q, key, value, ttlSeconds(ttl))
	if err != nil {
		return false, errors.Wrap(err, "postgres setnx")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var v string
	err := s.db.Conn().QueryRow(ctx, `
        SELECT value FROM kv_markers
        WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "postgres get")
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	const q = `
        INSERT INTO kv_markers (key, value, expires_at)
        VALUES ($1, $2, CASE WHEN $3::float8 IS NULL THEN NULL ELSE now() + make_interval(secs => $3::float8) END)
        ON CONFLICT (key) DO UPDATE SET
            value      = EXCLUDED.value,
            expires_at = EXCLUDED.expires_at`
	_, err := s.db.Conn().Exec(ctx, q, key, value, ttlSeconds(ttl))
	return errors.Wrap(err, "postgres set")
}

func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := s.db.Conn().Exec(ctx, `DELETE FROM kv_markers WHERE key = $1`, key)
	return errors.Wrap(err, "postgres delete")
}

func (s *Store) SavePosition(ctx context.Context, p models.Position) error {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	data, err := sonic.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshal position")
	}
	_, err = s.db.Conn().Exec(ctx, `
        INSERT INTO open_positions (contract_id, data, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (contract_id) DO UPDATE SET
            data       = EXCLUDED.data,
            updated_at = EXCLUDED.updated_at`, p.ContractID, data)
	return errors.Wrap(err, "postgres save position")
}

func scanPosition(row pgx.Row) (models.Position, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Position{}, storage.ErrNotFound
		}
		return models.Position{}, err
	}
	var p models.Position
	if err := sonic.Unmarshal(data, &p); err != nil {
		return models.Position{}, errors.Wrap(err, "unmarshal position")
	}
	return p, nil
}

func (s *Store) GetPosition(ctx context.Context, contractID string) (models.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return scanPosition(s.db.Conn().QueryRow(ctx,
		`SELECT data FROM open_positions WHERE contract_id = $1`, contractID))
}

func (s *Store) ListPositions(ctx context.Context) ([]models.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	rows, err := s.db.Conn().Query(ctx, `SELECT data FROM open_positions ORDER BY contract_id`)
	if err != nil {
		return nil, errors.Wrap(err, "postgres list positions")
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

// UpdatePosition locks the row with SELECT ... FOR UPDATE for the duration of fn.
func (s *Store) UpdatePosition(ctx context.Context, contractID string, fn storage.UpdateFunc) (models.Position, error) {
	var out models.Position
	err := s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		p, err := scanPosition(tx.QueryRow(ctxTx,
			`SELECT data FROM open_positions WHERE contract_id = $1 FOR UPDATE`, contractID))
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
		data, err := sonic.Marshal(p)
		if err != nil {
			return errors.Wrap(err, "marshal position")
		}
		_, err = tx.Exec(ctxTx,
			`UPDATE open_positions SET data = $2, updated_at = now() WHERE contract_id = $1`, contractID, data)
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
	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctxTx, `
            INSERT INTO trade_stats (id, wins, losses, pnl) VALUES (1, $1, $2, $3)
            ON CONFLICT (id) DO UPDATE SET
                wins   = trade_stats.wins + EXCLUDED.wins,
                losses = trade_stats.losses + EXCLUDED.losses,
                pnl    = trade_stats.pnl + EXCLUDED.pnl`, win, loss, pnl); err != nil {
			return errors.Wrap(err, "update counters")
		}
		if _, err := tx.Exec(ctxTx, `INSERT INTO trade_history (entry) VALUES ($1)`, entry); err != nil {
			return errors.Wrap(err, "append history")
		}
		if s.historyLimit > 0 {
			if _, err := tx.Exec(ctxTx, `
                DELETE FROM trade_history WHERE id <= (
                    SELECT id FROM trade_history ORDER BY id DESC OFFSET $1 LIMIT 1
                )`, s.historyLimit); err != nil {
				return errors.Wrap(err, "trim history")
			}
		}
		return nil
	})
}

func (s *Store) Stats(ctx context.Context, limit int) (models.StatsSnapshot, error) {
	var out models.StatsSnapshot
	err := s.db.RunRepeatableRead(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctxTx, `SELECT wins, losses, pnl FROM trade_stats WHERE id = 1`).
			Scan(&out.Wins, &out.Losses, &out.CumulativePnL)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		var lim *int // NULL = no limit
		if limit <= 0 {
			limit = s.historyLimit
		}
		if limit > 0 {
			lim = &limit
		}
		rows, err := tx.Query(ctxTx, `SELECT entry FROM trade_history ORDER BY id DESC LIMIT $1`, lim)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e string
			if err := rows.Scan(&e); err != nil {
				return err
			}
			out.History = append(out.History, e)
		}
		return rows.Err()
	})
	return out, errors.Wrap(err, "postgres stats")
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

var _ storage.Store = (*Store)(nil)
