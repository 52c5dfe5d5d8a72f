package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// NewPool opens a pgx pool and keeps pinging until the database answers or
// the retry window closes. Containers often start before Postgres is ready.
func NewPool(ctx context.Context, databaseURL string, log zerolog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database pool init failed: %w", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	attempt := 0
	for {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			log.Info().Int("attempts", attempt).Msg("database reachable")
			return pool, nil
		}
		if time.Now().After(deadline) {
			pool.Close()
			return nil, fmt.Errorf("database ping failed after retries: %w", err)
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("database not ready, retrying")
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(1500 * time.Millisecond):
		}
	}
}
