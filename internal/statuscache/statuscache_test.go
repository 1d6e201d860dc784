package statuscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"treadmill/internal/common/cache"
	"treadmill/internal/model"
	"treadmill/internal/statuscache"
)

func newTestCache(t *testing.T) *statuscache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("NewRedisCacheWithClient() error = %v", err)
	}
	return statuscache.New(backend, time.Minute)
}

func TestCache_GetMissReturnsNotOK(t *testing.T) {
	c := newTestCache(t)
	_, ok, err := c.Get(context.Background(), 404)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("expected a miss for an unseen request id")
	}
}

func TestCache_PutThenGetRoundTrips(t *testing.T) {
	c := newTestCache(t)
	want := model.JudgeResult{Status: model.StatusPassed, Score: 100}

	if err := c.Put(context.Background(), 1, want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok, err := c.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := newTestCache(t)
	if err := c.Put(context.Background(), 2, model.JudgeResult{Status: model.StatusFailed}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Invalidate(context.Background(), 2); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	_, ok, err := c.Get(context.Background(), 2)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("expected a miss after Invalidate")
	}
}

func TestCache_PutOverwritesPriorEntry(t *testing.T) {
	c := newTestCache(t)
	if err := c.Put(context.Background(), 3, model.JudgeResult{Status: model.StatusInProgress}); err != nil {
		t.Fatal(err)
	}
	want := model.JudgeResult{Status: model.StatusPassed, Score: 100}
	if err := c.Put(context.Background(), 3, want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.Get(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != want {
		t.Errorf("Get() = %+v, %v, want %+v, true", got, ok, want)
	}
}
