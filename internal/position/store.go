// Package position persists the bot's view of its open position and
// reconciles that view against the venue before every decision. The JSON
// state file is the durable copy; absence of the file means flat. Redis
// holds a best-effort mirror for the status API and is never read back as
// truth.
package position

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Record is the locally persisted position state for one market instance.
type Record struct {
	Side       string    `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   float64   `json:"quantity"`
	StopLoss   float64   `json:"sl_target"`
	TakeProfit float64   `json:"tp_target"`
	EntryTime  time.Time `json:"entry_time"`
	OrderID    int64     `json:"order_id,omitempty"`
}

// Store reads and writes one market's position record.
type Store struct {
	path   string
	market string
	rdb    *redis.Client
	log    zerolog.Logger
}

// NewStore creates a store backed by the given state file. rdb may be nil
// when the Redis mirror is disabled.
func NewStore(path, market string, rdb *redis.Client, log zerolog.Logger) *Store {
	return &Store{path: path, market: market, rdb: rdb, log: log}
}

// Load returns the persisted record, or nil when the state file does not
// exist. A corrupt file is an error; the caller skips the cycle rather than
// trade on a guessed state.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading position state: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("error parsing position state %s: %w", s.path, err)
	}
	return &rec, nil
}

// Save writes the record to the state file and mirrors it to Redis.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("error writing position state: %w", err)
	}
	s.mirror(ctx, rec)
	return nil
}

// Delete removes the state file, returning the instance to flat. A missing
// file is not an error.
func (s *Store) Delete(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error removing position state: %w", err)
	}
	s.mirrorDelete(ctx)
	return nil
}

func (s *Store) redisKey() string {
	return "bot:position:" + s.market
}

// mirror is best-effort; a Redis outage must never block trading.
func (s *Store) mirror(ctx context.Context, rec *Record) {
	if s.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, s.redisKey(), data, 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", s.redisKey()).Msg("redis position mirror failed")
	}
}

func (s *Store) mirrorDelete(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.rdb.Del(ctx, s.redisKey()).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", s.redisKey()).Msg("redis position mirror delete failed")
	}
}
