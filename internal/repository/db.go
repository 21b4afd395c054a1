package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// querier pgx 连接池和事务的公共子集
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// WithinTx 在单个事务中执行 fn，fn 内通过同一 ctx 取到事务句柄
// 预约准入的 车位置位+扣费+流水+台账 四笔写入靠它保持原子
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// q 取当前执行器：ctx 内有事务用事务，否则用连接池
func (db *DB) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db.Pool
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateParkingLots,
		migrationCreateFloors,
		migrationCreateEntrances,
		migrationCreateParkingSpaces,
		migrationCreateReservations,
		migrationCreateSettings,
		migrationCreateAccounts,
		migrationCreateWalletTransactions,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateParkingLots = `
CREATE TABLE IF NOT EXISTS parking_lots (
    id BIGINT PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    rotation DOUBLE PRECISION NOT NULL DEFAULT 0,
    corners JSONB NOT NULL,
    dimension JSONB,
    picture_url TEXT,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

const migrationCreateFloors = `
CREATE TABLE IF NOT EXISTS floors (
    id BIGINT PRIMARY KEY,
    lot_id BIGINT NOT NULL REFERENCES parking_lots(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    level INT NOT NULL,
    level_height DOUBLE PRECISION NOT NULL DEFAULT 0,
    map_id VARCHAR(255) NOT NULL DEFAULT '',
    map_url TEXT NOT NULL DEFAULT '',
    map_scale DOUBLE PRECISION NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_floors_lot_id ON floors(lot_id);
`

const migrationCreateEntrances = `
CREATE TABLE IF NOT EXISTS entrances (
    id BIGINT PRIMARY KEY,
    floor_id BIGINT NOT NULL REFERENCES floors(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    category VARCHAR(50) NOT NULL DEFAULT '',
    pos_x DOUBLE PRECISION NOT NULL,
    pos_y DOUBLE PRECISION NOT NULL,
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_entrances_floor_id ON entrances(floor_id);
`

const migrationCreateParkingSpaces = `
CREATE TABLE IF NOT EXISTS parking_spaces (
    id BIGINT PRIMARY KEY,
    floor_id BIGINT NOT NULL REFERENCES floors(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    category VARCHAR(50) NOT NULL DEFAULT '',
    pos_x DOUBLE PRECISION NOT NULL,
    pos_y DOUBLE PRECISION NOT NULL,
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    cost DOUBLE PRECISION NOT NULL DEFAULT 0,
    state VARCHAR(20) NOT NULL DEFAULT 'empty',
    is_accessible BOOLEAN NOT NULL DEFAULT false,
    reservation JSONB,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_parking_spaces_floor_id ON parking_spaces(floor_id);
CREATE INDEX IF NOT EXISTS idx_parking_spaces_state ON parking_spaces(state);
`

const migrationCreateReservations = `
CREATE TABLE IF NOT EXISTS reservations (
    id UUID PRIMARY KEY,
    parking_space_id BIGINT NOT NULL,
    parking_space_name VARCHAR(255) NOT NULL DEFAULT '',
    user_id UUID NOT NULL,
    start_time TIMESTAMP WITH TIME ZONE NOT NULL,
    duration_hours INT NOT NULL,
    cost DOUBLE PRECISION NOT NULL,
    status VARCHAR(20) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_reservations_user_id ON reservations(user_id);
CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status);
`

const migrationCreateSettings = `
CREATE TABLE IF NOT EXISTS settings (
    id INT PRIMARY KEY CHECK (id = 1),
    operating_hours JSONB NOT NULL,
    reservation_fee_per_hour DOUBLE PRECISION NOT NULL,
    max_reservation_duration INT NOT NULL,
    is_reservation_enable BOOLEAN NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

const migrationCreateAccounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id UUID PRIMARY KEY,
    username VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL,
    contact_num VARCHAR(50) NOT NULL DEFAULT '',
    credits DOUBLE PRECISION NOT NULL DEFAULT 0
);
`

const migrationCreateWalletTransactions = `
CREATE TABLE IF NOT EXISTS wallet_transactions (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES accounts(id),
    credit DOUBLE PRECISION NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_wallet_transactions_user_id ON wallet_transactions(user_id);
`
