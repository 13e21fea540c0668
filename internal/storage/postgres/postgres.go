// Package postgres is the pgx-backed adapter for paper.OrderRepository
// (spec §6): persistence of paper positions and the account wallet.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cryptosignal-engine/internal/paper"
)

// Config mirrors the teacher's connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DB wraps a pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// Connect opens a pool and verifies connectivity, matching the
// teacher's NewDB shape (tuned pool limits, ping-on-connect).
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	poolCfg.MaxConns = 25
	poolCfg.MinConns = 5
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Migrate creates the positions/account tables if absent.
func (db *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS paper_positions (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity DECIMAL(20,8) NOT NULL,
			entry_price DECIMAL(20,8) NOT NULL,
			stop_loss DECIMAL(20,8) NOT NULL,
			take_profit JSONB NOT NULL,
			margin DECIMAL(20,8) NOT NULL,
			leverage DECIMAL(10,2) NOT NULL,
			maintenance_rate DECIMAL(10,4) NOT NULL,
			has_liquidation BOOLEAN NOT NULL,
			liquidation_price DECIMAL(20,8) NOT NULL,
			state TEXT NOT NULL,
			open_time TIMESTAMPTZ,
			close_time TIMESTAMPTZ,
			realized_pnl DECIMAL(20,8),
			exit_reason TEXT NOT NULL DEFAULT '',
			confidence DECIMAL(6,4) NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS paper_account (
			id SMALLINT PRIMARY KEY DEFAULT 1,
			wallet_balance DECIMAL(20,8) NOT NULL,
			CHECK (id = 1)
		)`,
		`INSERT INTO paper_account (id, wallet_balance) VALUES (1, 0)
			ON CONFLICT (id) DO NOTHING`,
	}
	for _, s := range stmts {
		if _, err := db.Pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}

// Repository implements paper.OrderRepository over a postgres pool.
type Repository struct {
	db *DB
}

var _ paper.OrderRepository = (*Repository)(nil)

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Save(ctx context.Context, p *paper.Position) error {
	tp, err := encodeTP(p.TakeProfit)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO paper_positions
			(id, symbol, side, quantity, entry_price, stop_loss, take_profit,
			 margin, leverage, maintenance_rate, has_liquidation, liquidation_price, state, confidence)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.Symbol, string(p.Side), p.Quantity, p.EntryPrice, p.StopLoss, tp,
		p.Margin, p.Leverage, p.MaintenanceRate, p.HasLiquidation, p.LiquidationPrice, string(p.State), p.Confidence)
	return err
}

func (r *Repository) Update(ctx context.Context, p *paper.Position) error {
	tp, err := encodeTP(p.TakeProfit)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `
		UPDATE paper_positions
		SET quantity=$2, take_profit=$3, state=$4, open_time=$5, close_time=$6,
		    realized_pnl=$7, exit_reason=$8
		WHERE id=$1
	`, p.ID, p.Quantity, tp, string(p.State), nullableTime(p.OpenTime), p.CloseTime,
		p.RealizedPnL, string(p.ExitReason))
	return err
}

func (r *Repository) GetPending(ctx context.Context) ([]*paper.Position, error) {
	return r.query(ctx, `WHERE state = 'PENDING'`)
}

func (r *Repository) GetActive(ctx context.Context) ([]*paper.Position, error) {
	return r.query(ctx, `WHERE state = 'OPEN'`)
}

func (r *Repository) GetClosed(ctx context.Context, limit int) ([]*paper.Position, error) {
	return r.query(ctx, `WHERE state = 'CLOSED' ORDER BY close_time DESC LIMIT $1`, limit)
}

func (r *Repository) query(ctx context.Context, whereAndArgs string, args ...any) ([]*paper.Position, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, symbol, side, quantity, entry_price, stop_loss, take_profit,
		       margin, leverage, maintenance_rate, has_liquidation, liquidation_price,
		       state, open_time, close_time, realized_pnl, exit_reason, confidence
		FROM paper_positions `+whereAndArgs, args...)
	if err != nil {
		return nil, fmt.Errorf("querying paper positions: %w", err)
	}
	defer rows.Close()

	var out []*paper.Position
	for rows.Next() {
		p := &paper.Position{}
		var side, state, exitReason string
		var tpRaw []byte
		var openTime, closeTime *time.Time
		if err := rows.Scan(&p.ID, &p.Symbol, &side, &p.Quantity, &p.EntryPrice, &p.StopLoss,
			&tpRaw, &p.Margin, &p.Leverage, &p.MaintenanceRate, &p.HasLiquidation, &p.LiquidationPrice,
			&state, &openTime, &closeTime, &p.RealizedPnL, &exitReason, &p.Confidence); err != nil {
			return nil, fmt.Errorf("scanning paper position: %w", err)
		}
		p.Side = paper.Side(side)
		p.State = paper.State(state)
		p.ExitReason = paper.ExitReason(exitReason)
		if openTime != nil {
			p.OpenTime = *openTime
		}
		p.CloseTime = closeTime
		tp, err := decodeTP(tpRaw)
		if err != nil {
			return nil, err
		}
		p.TakeProfit = tp
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) AccountBalance(ctx context.Context) (float64, error) {
	var bal float64
	err := r.db.Pool.QueryRow(ctx, `SELECT wallet_balance FROM paper_account WHERE id = 1`).Scan(&bal)
	return bal, err
}

func (r *Repository) Deposit(ctx context.Context, amount float64) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE paper_account SET wallet_balance = wallet_balance + $1 WHERE id = 1`, amount)
	return err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
