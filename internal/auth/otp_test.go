package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func memoryOTP(t *testing.T) (*OTP, *MemoryCodeStore, *clock) {
	clk := &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryCodeStore()
	store.now = clk.now
	o := NewOTP(store, 10*time.Minute, zaptest.NewLogger(t))
	o.now = clk.now
	return o, store, clk
}

func TestIssueProducesSixDigits(t *testing.T) {
	o, _, _ := memoryOTP(t)
	code, exp, err := o.Issue(context.Background(), "a@b.co")
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.True(t, wellFormed(code))
	assert.Equal(t, time.Date(2024, 5, 1, 9, 10, 0, 0, time.UTC), exp)
}

func TestVerifyExactMatchConsumes(t *testing.T) {
	o, _, _ := memoryOTP(t)
	ctx := context.Background()
	code, _, err := o.Issue(ctx, "A@B.co ")
	require.NoError(t, err)

	ok, err := o.Verify(ctx, "a@b.co", "000000")
	require.NoError(t, err)
	if code != "000000" {
		assert.False(t, ok)
	}

	ok, err = o.Verify(ctx, "a@b.co", code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = o.Verify(ctx, "a@b.co", code)
	require.NoError(t, err)
	assert.False(t, ok, "a code verifies once")
}

func TestVerifyRejectsExpired(t *testing.T) {
	o, store, clk := memoryOTP(t)
	ctx := context.Background()
	code, _, err := o.Issue(ctx, "a@b.co")
	require.NoError(t, err)

	clk.advance(10*time.Minute + time.Second)
	ok, err := o.Verify(ctx, "a@b.co", code)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Sweep())
}

func TestReissueSupersedes(t *testing.T) {
	o, _, _ := memoryOTP(t)
	ctx := context.Background()
	first, _, err := o.Issue(ctx, "a@b.co")
	require.NoError(t, err)
	second, _, err := o.Issue(ctx, "a@b.co")
	require.NoError(t, err)

	if first != second {
		ok, err := o.Verify(ctx, "a@b.co", first)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	ok, err := o.Verify(ctx, "a@b.co", second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	o, _, _ := memoryOTP(t)
	for _, code := range []string{"", "12345", "1234567", "12a456", " 12345"} {
		ok, err := o.Verify(context.Background(), "a@b.co", code)
		require.NoError(t, err)
		assert.False(t, ok, code)
	}
}

func TestRedisCodeStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	o := NewOTP(NewRedisCodeStore(client), 10*time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	code, _, err := o.Issue(ctx, "a@b.co")
	require.NoError(t, err)
	assert.True(t, mr.Exists(codeKeyPrefix+"a@b.co"))
	stored, err := mr.Get(codeKeyPrefix + "a@b.co")
	require.NoError(t, err)
	assert.NotEqual(t, code, stored, "codes are hashed at rest")

	ok, err := o.Verify(ctx, "a@b.co", code)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists(codeKeyPrefix+"a@b.co"))

	code, _, err = o.Issue(ctx, "a@b.co")
	require.NoError(t, err)
	mr.FastForward(11 * time.Minute)
	ok, err = o.Verify(ctx, "a@b.co", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisConsumeIsCompareAndDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedisCodeStore(client)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a@b.co", "h2", time.Minute))
	ok, err := s.Consume(ctx, "a@b.co", "h1")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.Consume(ctx, "a@b.co", "h2")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Get(ctx, "a@b.co")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}
