package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCodeNotFound is returned when no live code exists for an email.
var ErrCodeNotFound = errors.New("no active code")

// CodeStore holds at most one hashed one-time code per email.
type CodeStore interface {
	// Put stores hash for email, replacing any previous code.
	Put(ctx context.Context, email, hash string, ttl time.Duration) error
	// Get returns ErrCodeNotFound when the code is absent or expired.
	Get(ctx context.Context, email string) (string, error)
	// Consume deletes the code only if it still holds hash, reporting whether it did.
	Consume(ctx context.Context, email, hash string) (bool, error)
}

const codeKeyPrefix = "otp:"

// consumeScript deletes KEYS[1] only while it still holds ARGV[1], so a code
// verified twice in parallel or superseded mid-verify is consumed at most once.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCodeStore keeps codes in Redis with native key expiry.
type RedisCodeStore struct {
	client *redis.Client
}

// NewRedisCodeStore creates a Redis-backed code store.
func NewRedisCodeStore(client *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func (s *RedisCodeStore) Put(ctx context.Context, email, hash string, ttl time.Duration) error {
	if err := s.client.Set(ctx, codeKeyPrefix+email, hash, ttl).Err(); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	return nil
}

func (s *RedisCodeStore) Get(ctx context.Context, email string) (string, error) {
	v, err := s.client.Get(ctx, codeKeyPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load code: %w", err)
	}
	return v, nil
}

func (s *RedisCodeStore) Consume(ctx context.Context, email, hash string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{codeKeyPrefix + email}, hash).Int()
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return n == 1, nil
}

type memoryCode struct {
	hash    string
	expires time.Time
}

// MemoryCodeStore keeps codes in process memory. Expired entries are invisible
// immediately and reclaimed by Sweep.
type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]memoryCode
	now   func() time.Time
}

// NewMemoryCodeStore creates an empty in-memory code store.
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{codes: make(map[string]memoryCode), now: time.Now}
}

func (s *MemoryCodeStore) Put(_ context.Context, email, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = memoryCode{hash: hash, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryCodeStore) Get(_ context.Context, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[email]
	if !ok || !s.now().Before(c.expires) {
		return "", ErrCodeNotFound
	}
	return c.hash, nil
}

func (s *MemoryCodeStore) Consume(_ context.Context, email, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[email]
	if !ok || c.hash != hash || !s.now().Before(c.expires) {
		return false, nil
	}
	delete(s.codes, email)
	return true, nil
}

// Sweep drops expired codes and returns how many.
func (s *MemoryCodeStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for email, c := range s.codes {
		if !now.Before(c.expires) {
			delete(s.codes, email)
			n++
		}
	}
	return n
}
