// Package distlock provides the per-campaign dispatch lease. A lease is a
// short-lived exclusive lock identifying which dispatcher instance owns a
// campaign's current dispatch; it expires on its own if the holder crashes.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lease is an exclusive, expiring claim on one campaign's dispatch.
// A Lease instance belongs to a single goroutine.
type Lease interface {
	// Acquire makes a single non-blocking attempt. False means another
	// holder currently owns the campaign; that is contention, not an error.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lease up early if this instance still owns it.
	// Releasing a lease that already expired or changed hands is a no-op.
	Release(ctx context.Context) error
}

// Manager hands out campaign leases using the best available backend:
// Redis when a client is configured, otherwise PostgreSQL advisory locks.
// The advisory fallback is session-scoped, so a crashed holder's lock
// vanishes with its connection much like a Redis TTL expiry.
type Manager struct {
	redis *redis.Client
	db    *sql.DB
	ttl   time.Duration
}

// NewManager creates a lease manager. ttl bounds how long a crashed
// dispatcher can block a campaign on the Redis backend.
func NewManager(redisClient *redis.Client, db *sql.DB, ttl time.Duration) *Manager {
	return &Manager{redis: redisClient, db: db, ttl: ttl}
}

// CampaignLease returns a fresh lease for the given campaign. Each dispatch
// attempt gets its own lease so the ownership token is never reused.
func (m *Manager) CampaignLease(campaignID string) Lease {
	if m.redis != nil {
		return newRedisLease(m.redis, "campaign:dispatch:"+campaignID, m.ttl)
	}
	return newAdvisoryLease(m.db, campaignID)
}

// advisoryLease implements Lease on pg_try_advisory_lock. The lock ID is a
// stable hash of the campaign ID so every instance maps the same campaign
// to the same lock. Advisory locks are session-scoped, so the lease pins
// one connection from the pool for its whole lifetime: lock and unlock must
// run on the same session, and two leases in one process must not share one.
type advisoryLease struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

func newAdvisoryLease(db *sql.DB, campaignID string) *advisoryLease {
	h := fnv.New64a()
	h.Write([]byte("campaign:dispatch:" + campaignID))
	return &advisoryLease{db: db, lockID: int64(h.Sum64())}
}

func (l *advisoryLease) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *advisoryLease) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	cerr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return err
	}
	return cerr
}
