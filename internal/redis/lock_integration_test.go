//go:build integration

package redisclient

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestIntegration_WithResourceLocks(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, addr, os.Getenv("REDIS_USERNAME"), os.Getenv("REDIS_PASSWORD"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()

	locker := NewRedisResourceLocker(rdb, 2*time.Second)
	keys := []string{ProfessionalKey(900001), RoomKey(900001)}

	err = locker.WithResourceLocks(ctx, keys, func(ctx context.Context) error {
		inner := locker.WithResourceLocks(ctx, []string{RoomKey(900001)}, func(context.Context) error { return nil })
		if !errors.Is(inner, ErrLockNotAcquired) {
			t.Errorf("nested acquisition of a held key: got %v, want ErrLockNotAcquired", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithResourceLocks: %v", err)
	}

	// Released after fn returns.
	if err := locker.WithResourceLocks(ctx, keys, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("locks were not released: %v", err)
	}
}
