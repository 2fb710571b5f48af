package locker

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mutual-network/escrow-indexer/modules/escrow/repository/postgres/gen"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
	"golang.org/x/sync/semaphore"
)

// Postgres is a session level advisory lock, for deployments running more than one instance.
// Each held lock pins one pooled connection, so at most half of the pool is handed out to locks
// and the work done under a lock always finds a free connection.
type Postgres struct {
	pool  *pgxpool.Pool
	slots *semaphore.Weighted
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		pool:  pool,
		slots: semaphore.NewWeighted(lockSlots(pool.Config().MaxConns)),
	}
}

// lockSlots is the number of locks that may be held at once with a pool of maxConns connections.
func lockSlots(maxConns int32) int64 {
	return int64(max(maxConns/2, 1))
}

func (p *Postgres) Lock(ctx context.Context, key string) (func(), error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "failed to wait for a lock slot")
	}
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		p.slots.Release(1)
		return nil, errors.Wrap(err, "failed to acquire connection")
	}
	queries := gen.New(conn)
	if err := queries.AdvisoryLock(ctx, key); err != nil {
		conn.Release()
		p.slots.Release(1)
		return nil, errors.Wrapf(err, "failed to acquire advisory lock %s", key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			defer p.slots.Release(1)
			defer conn.Release()
			// unlock must run even when the caller context is already canceled
			unlocked, err := queries.AdvisoryUnlock(context.Background(), key)
			if err != nil || !unlocked {
				logger.Warn("Failed to release advisory lock, closing connection",
					slogx.String("key", key),
					slogx.Error(err),
				)
				_ = conn.Conn().Close(context.Background())
			}
		})
	}, nil
}
