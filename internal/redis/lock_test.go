package redisclient

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNormalizeKeys(t *testing.T) {
	got := normalizeKeys([]string{RoomKey(3), ProfessionalKey(9), "", RoomKey(3)})
	want := []string{"lock:professional:9", "lock:room:3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeKeys = %v, want %v", got, want)
	}
}

func TestWithResourceLocks_BackendDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	called := false
	err := NewRedisResourceLocker(client, time.Second).WithResourceLocks(context.Background(), []string{RoomKey(1)}, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrLockUnavailable) {
		t.Fatalf("err = %v, want ErrLockUnavailable", err)
	}
	if errors.Is(err, ErrLockNotAcquired) {
		t.Error("a backend failure must not look like a held lock")
	}
	if called {
		t.Error("fn ran without the lock")
	}
}
