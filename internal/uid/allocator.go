// Package uid allocates the short opaque identifiers that double as account
// keys and bearer-style lookup credentials. Candidates are drawn from a
// cryptographically strong random source; predictable identifiers would be a
// security failure, not just a collision risk.
package uid

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sharefund/backend/internal/ledger"
)

const issuedSetKey = "uid:issued"

// Store is the authoritative record of every identifier ever issued.
// The allocator's caches can be stale; the store never is.
type Store interface {
	IdentifierExists(ctx context.Context, uid string) (bool, error)
}

type Allocator struct {
	store       Store
	redis       *redis.Client
	alphabet    string
	length      int
	maxAttempts int
	// timestampTail appends a truncated base-36 timestamp to lower the
	// collision probability. The candidate is still checked for uniqueness,
	// never assumed unique by construction.
	timestampTail bool

	mu       sync.Mutex
	reserved map[string]struct{}
}

type Options struct {
	Alphabet      string
	Length        int
	MaxAttempts   int
	TimestampTail bool
}

func NewAllocator(store Store, redisClient *redis.Client, opts Options) *Allocator {
	if opts.Alphabet == "" {
		opts.Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$&_"
	}
	if opts.Length <= 0 {
		opts.Length = 6
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10000
	}
	return &Allocator{
		store:         store,
		redis:         redisClient,
		alphabet:      opts.Alphabet,
		length:        opts.Length,
		maxAttempts:   opts.MaxAttempts,
		timestampTail: opts.TimestampTail,
		reserved:      make(map[string]struct{}),
	}
}

// Allocate returns an identifier not seen by the store, the process-local
// reservation set, or the shared Redis set. Attempts are bounded: a fully
// saturated identifier space surfaces ErrAllocationExhausted instead of
// looping forever.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		candidate, err := a.generate()
		if err != nil {
			return "", fmt.Errorf("generating identifier: %w", err)
		}

		if !a.reserve(candidate) {
			continue
		}

		taken, err := a.isTaken(ctx, candidate)
		if err != nil {
			a.release(candidate)
			return "", err
		}
		if taken {
			continue // keep the reservation; it is taken either way
		}

		if a.redis != nil {
			if err := a.redis.SAdd(ctx, issuedSetKey, candidate).Err(); err != nil {
				log.Printf("[ALLOC] Failed to record identifier in shared set: %v", err)
			}
		}
		return candidate, nil
	}
	return "", ledger.ErrAllocationExhausted
}

func (a *Allocator) generate() (string, error) {
	buf := make([]byte, a.length)
	max := big.NewInt(int64(len(a.alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = a.alphabet[n.Int64()]
	}
	id := string(buf)
	if a.timestampTail {
		tail := strconv.FormatInt(time.Now().Unix(), 36)
		if len(tail) > 2 {
			tail = tail[len(tail)-2:]
		}
		id += tail
	}
	return id, nil
}

// reserve claims the candidate process-wide. Returns false if another
// in-flight allocation already holds it.
func (a *Allocator) reserve(candidate string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.reserved[candidate]; ok {
		return false
	}
	a.reserved[candidate] = struct{}{}
	return true
}

func (a *Allocator) release(candidate string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, candidate)
}

func (a *Allocator) isTaken(ctx context.Context, candidate string) (bool, error) {
	// Shared-set pre-check saves a database round-trip for known ids. A miss
	// proves nothing: another allocator instance may have issued the id
	// before this process started.
	if a.redis != nil {
		if member, err := a.redis.SIsMember(ctx, issuedSetKey, candidate).Result(); err == nil && member {
			return true, nil
		}
	}
	return a.store.IdentifierExists(ctx, candidate)
}
