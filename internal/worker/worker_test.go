package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reathuta/lms/pkg/queue"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	fail error
}

func (s *recordingSender) Send(_ context.Context, to, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, to)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newTestQueue(t *testing.T) (*queue.Queue, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return queue.NewQueue(client, zaptest.NewLogger(t)), mr
}

func TestRunDeliversLoginCode(t *testing.T) {
	q, _ := newTestQueue(t)
	sender := &recordingSender{}
	p := NewEmailProcessor(sender, q, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.SendLoginCode(ctx, "learner@example.com", "123456", 10*time.Minute))

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool { return sender.count() == 1 }, 5*time.Second, 20*time.Millisecond)
	cancel()
	<-done
}

func TestFailedJobIsRetried(t *testing.T) {
	q, mr := newTestQueue(t)
	sender := &recordingSender{fail: errors.New("smtp down")}
	p := NewEmailProcessor(sender, q, zaptest.NewLogger(t))
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.SendLoginCode(ctx, "learner@example.com", "123456", time.Minute))

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool {
		dlq, _ := mr.List(queue.QueueDLQ)
		return len(dlq) == 1
	}, 5*time.Second, 20*time.Millisecond)
	cancel()
	<-done
}

func TestProcessRejectsUnknownType(t *testing.T) {
	q, _ := newTestQueue(t)
	p := NewEmailProcessor(&recordingSender{}, q, zaptest.NewLogger(t))
	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "analytics"})
	assert.Error(t, err)
}
