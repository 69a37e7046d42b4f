package locks

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewRedisLockerRequiresClient(t *testing.T) {
	if _, err := NewRedisLocker(nil); err == nil {
		t.Fatalf("expected error when client missing")
	}
}

func TestAcquireRejectsEmptyKey(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	locker, err := NewRedisLocker(client)
	if err != nil {
		t.Fatalf("NewRedisLocker: %v", err)
	}
	if _, _, err := locker.Acquire(context.Background(), "  ", time.Second); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestAcquireReportsUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	locker, err := NewRedisLocker(client)
	if err != nil {
		t.Fatalf("NewRedisLocker: %v", err)
	}

	_, ok, err := locker.Acquire(context.Background(), "k", time.Second)
	if err == nil || ok {
		t.Fatalf("expected acquire error, got ok=%v err=%v", ok, err)
	}
}
