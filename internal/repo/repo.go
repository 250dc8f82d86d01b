// Package repo keeps the window statuses of a running wall in Redis, so that
// other tools on the host can read them without talking to the process.
package repo

import "go.uber.org/zap"

type Repository struct {
	log    *zap.Logger
	client *RedisClient

	Windows *WindowRepository
}

func NewRepository(log *zap.Logger, addr string, db int) *Repository {
	log = log.Named("repo")
	client := newRedisClient(addr, db, log)

	return &Repository{
		log:     log,
		client:  client,
		Windows: newWindowRepository(log, client),
	}
}

// Client exposes the connection for diagnostics.
func (r *Repository) Client() *RedisClient { return r.client }

// Close closes the Redis connection.
func (r *Repository) Close() error {
	return r.client.Close()
}
