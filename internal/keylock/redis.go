package keylock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"

	"github.com/roach88/vaultledger/internal/fault"
)

// RedisOptions tunes the distributed lock.
type RedisOptions struct {
	// Prefix namespaces lock keys in Redis.
	Prefix string

	// Expiry bounds how long a crashed holder can block a key.
	Expiry time.Duration

	// Tries is the number of acquisition attempts before giving up.
	Tries int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	// Logger receives acquisition and release failures. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// DefaultRedisOptions returns options suited to ledger mutations, which hold
// the lock for a single local database transaction.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Prefix:     "vaultledger:",
		Expiry:     10 * time.Second,
		Tries:      32,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Redis is a RedLock-based Locker shared by every process using the same
// Redis deployment.
type Redis struct {
	rs     *redsync.Redsync
	opts   RedisOptions
	logger *slog.Logger
}

// NewRedis creates a Redis locker over client.
func NewRedis(client goredislib.UniversalClient, opts RedisOptions) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis locker: nil client")
	}
	if opts.Expiry <= 0 {
		return nil, fmt.Errorf("redis locker: expiry must be positive")
	}
	if opts.Tries < 1 {
		return nil, fmt.Errorf("redis locker: tries must be at least 1")
	}
	if opts.RetryDelay < 0 {
		return nil, fmt.Errorf("redis locker: retry delay cannot be negative")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{rs: redsync.New(goredis.NewPool(client)), opts: opts, logger: logger}, nil
}

// WithLock implements Locker.
func (r *Redis) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	name := r.opts.Prefix + key
	mutex := r.rs.NewMutex(name,
		redsync.WithExpiry(r.opts.Expiry),
		redsync.WithTries(r.opts.Tries),
		redsync.WithRetryDelay(r.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		r.logger.Warn("failed to acquire lock", "lock_key", name, "error", err)
		return fault.Transient("acquire lock "+key, err)
	}

	defer func() {
		// Release even if ctx was cancelled while fn ran.
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			r.logger.Error("failed to release lock", "lock_key", name, "unlock_ok", ok, "error", err)
		}
	}()

	return fn(ctx)
}
