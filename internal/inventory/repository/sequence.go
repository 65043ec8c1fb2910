package repository

import (
	"context"
	"time"

	"github.com/herbstock/herbstock-backend/pkg/database"
	"github.com/redis/go-redis/v9"
)

// OrderSequence hands out the per-day counter behind PO-YYYYMMDD-NNNN.
// Values for one day are unique and increasing across all instances.
type OrderSequence interface {
	Next(ctx context.Context, day time.Time) (int64, error)
}

// PostgresOrderSequence keeps one counter row per business day. Inside a
// transaction the row stays locked until commit, so numbers are handed out
// in commit order and a rolled back order releases its number.
type PostgresOrderSequence struct {
	db *database.DB
}

// NewPostgresOrderSequence creates a table-backed sequence
func NewPostgresOrderSequence(db *database.DB) *PostgresOrderSequence {
	return &PostgresOrderSequence{db: db}
}

// Next increments and returns the counter for day
func (s *PostgresOrderSequence) Next(ctx context.Context, day time.Time) (int64, error) {
	query := `
		INSERT INTO purchase_order_sequences (day, last_value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = purchase_order_sequences.last_value + 1
		RETURNING last_value
	`

	var value int64
	if err := s.db.Conn(ctx).GetContext(ctx, &value, query, day.Format(time.DateOnly)); err != nil {
		return 0, err
	}
	return value, nil
}

const (
	orderSeqKeyPrefix = "herbstock:po-seq:"
	orderSeqKeyTTL    = 48 * time.Hour
)

var nextOrderSeqScript = redis.NewScript(`
local value = redis.call('INCR', KEYS[1])
if value == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return value
`)

// RedisOrderSequence keeps the daily counter in Redis. Keys expire two days
// after first use. Numbers taken by orders that fail to insert are skipped.
type RedisOrderSequence struct {
	client redis.Scripter
}

// NewRedisOrderSequence creates a Redis-backed sequence
func NewRedisOrderSequence(client redis.Scripter) *RedisOrderSequence {
	return &RedisOrderSequence{client: client}
}

// Next increments and returns the counter for day
func (s *RedisOrderSequence) Next(ctx context.Context, day time.Time) (int64, error) {
	key := orderSeqKeyPrefix + day.Format("20060102")
	return nextOrderSeqScript.Run(ctx, s.client, []string{key}, int(orderSeqKeyTTL.Seconds())).Int64()
}
