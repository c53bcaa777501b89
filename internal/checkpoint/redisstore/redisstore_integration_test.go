package redisstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/questor-ai/questor/internal/checkpoint"
	"github.com/questor-ai/questor/internal/checkpoint/redisstore"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	store := redisstore.NewStore(client)

	if _, err := store.Load(ctx, "s1"); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Fatalf("load before save: got %v, want ErrNotFound", err)
	}

	if err := store.Save(ctx, "s1", []byte(`{"n":1}`), "judge"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "s1", []byte(`{"n":2}`), "answer"); err != nil {
		t.Fatalf("save: %v", err)
	}

	rec, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.NextNode != "answer" || string(rec.State) != `{"n":2}` {
		t.Errorf("latest checkpoint: got %q next=%q", rec.State, rec.NextNode)
	}

	recs, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("history length: got %d, want 2", len(recs))
	}
	if recs[0].NextNode != "judge" {
		t.Errorf("oldest first: got %q", recs[0].NextNode)
	}

	// Sessions are isolated by key.
	if _, err := store.Load(ctx, "s2"); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Errorf("other session: got %v, want ErrNotFound", err)
	}
}
