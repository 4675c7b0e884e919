package quiz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingLoader struct {
	mu    sync.Mutex
	calls int
	quiz  Quiz
	err   error
}

func (l *countingLoader) GetQuiz(context.Context, string) (Quiz, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return Quiz{}, l.err
	}
	return l.quiz, nil
}

func (l *countingLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func newTestCache(t *testing.T, loader Loader) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, loader, 5*time.Minute), mr
}

func TestCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{quiz: mcqQuiz()}
	cache, _ := newTestCache(t, loader)

	for i := 0; i < 3; i++ {
		q, err := cache.GetQuiz(ctx, "quiz-mcq")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if q.Topic != "Fractions" || len(q.Questions) != 2 {
			t.Fatalf("got %q with %d questions", q.Topic, len(q.Questions))
		}
	}
	if loader.callCount() != 1 {
		t.Fatalf("loader called %d times, want 1", loader.callCount())
	}
}

func TestCachePreservesAnswerKeys(t *testing.T) {
	// The cache stores the full definition; sanitizing is the caller's job.
	ctx := context.Background()
	cache, _ := newTestCache(t, &countingLoader{quiz: mcqQuiz()})

	q, err := cache.GetQuiz(ctx, "quiz-mcq")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Questions[0].Answer == "" {
		t.Fatal("cached quiz lost its answer key")
	}
	q, err = cache.GetQuiz(ctx, "quiz-mcq") // cache hit path
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Questions[0].Answer == "" {
		t.Fatal("cache hit lost the answer key")
	}
}

func TestCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{quiz: mcqQuiz()}
	cache, _ := newTestCache(t, loader)

	if _, err := cache.GetQuiz(ctx, "quiz-mcq"); err != nil {
		t.Fatalf("get: %v", err)
	}
	cache.Invalidate(ctx, "quiz-mcq")
	if _, err := cache.GetQuiz(ctx, "quiz-mcq"); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if loader.callCount() != 2 {
		t.Fatalf("loader called %d times, want 2", loader.callCount())
	}
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{quiz: mcqQuiz()}
	cache, mr := newTestCache(t, loader)

	if _, err := cache.GetQuiz(ctx, "quiz-mcq"); err != nil {
		t.Fatalf("get: %v", err)
	}
	mr.FastForward(10 * time.Minute)
	if _, err := cache.GetQuiz(ctx, "quiz-mcq"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if loader.callCount() != 2 {
		t.Fatalf("loader called %d times, want 2", loader.callCount())
	}
}

func TestCacheMissError(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{err: ErrQuizNotFound}
	cache, _ := newTestCache(t, loader)

	if _, err := cache.GetQuiz(ctx, "ghost"); err != ErrQuizNotFound {
		t.Fatalf("err = %v, want ErrQuizNotFound", err)
	}
	// Errors are not cached.
	if _, err := cache.GetQuiz(ctx, "ghost"); err != ErrQuizNotFound {
		t.Fatalf("err = %v, want ErrQuizNotFound", err)
	}
	if loader.callCount() != 2 {
		t.Fatalf("loader called %d times, want 2", loader.callCount())
	}
}
