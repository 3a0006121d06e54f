package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeGenerator builds operation codes of the shape
// PREFIX-STORE-YYYYMMDD-CAT-TERMINAL-NNNN. The random suffix only seeks
// uniqueness; collisions are caught by the database unique constraint and
// retried by the commit path.
type CodeGenerator struct {
	prefix string

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewCodeGenerator constructs a generator with the given code prefix.
func NewCodeGenerator(prefix string) *CodeGenerator {
	if prefix == "" {
		prefix = "OP"
	}
	return &CodeGenerator{
		prefix: prefix,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// Next produces one candidate operation code.
func (g *CodeGenerator) Next(store Store, spec KindSpec) string {
	g.mu.Lock()
	suffix := g.rng.Intn(10000)
	g.mu.Unlock()
	terminal := store.Terminal
	if terminal == "" {
		terminal = "T1"
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s-%04d",
		g.prefix, store.Code, g.now().UTC().Format("20060102"), spec.CategoryToken, terminal, suffix)
}

// TripSource issues trip identifiers from a monotonically advancing per-store
// counter. The engine only asks for one when the caller opts in.
type TripSource interface {
	NextTrip(ctx context.Context, storeCode string) (int64, error)
}

// RedisTripSource backs TripSource with a Redis INCR counter per store.
type RedisTripSource struct {
	client *redis.Client
	prefix string
}

// NewRedisTripSource constructs a RedisTripSource.
func NewRedisTripSource(client *redis.Client) *RedisTripSource {
	return &RedisTripSource{client: client, prefix: "meridian:trip"}
}

// NextTrip advances and returns the store's trip counter.
func (s *RedisTripSource) NextTrip(ctx context.Context, storeCode string) (int64, error) {
	if s == nil || s.client == nil {
		return 0, errors.New("ledger: trip source not configured")
	}
	if storeCode == "" {
		return 0, errors.New("ledger: store code required for trip id")
	}
	return s.client.Incr(ctx, fmt.Sprintf("%s:%s", s.prefix, storeCode)).Result()
}
