package lock_test

import (
	"errors"
	"path/filepath"
	"testing"

	"loreforge/internal/lock"
)

func TestAcquireIsExclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "locks")
	first, err := lock.Acquire(dir, "2024-04-02", true)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if first.Path() != filepath.Join(dir, "2024-04-02.lock") {
		t.Fatalf("unexpected path %q", first.Path())
	}

	if _, err := lock.Acquire(dir, "2024-04-02", true); !errors.Is(err, lock.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	other, err := lock.Acquire(dir, lock.GateName, true)
	if err != nil {
		t.Fatalf("independent lock should succeed: %v", err)
	}
	defer other.Release()

	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := lock.Acquire(dir, "2024-04-02", true)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	if err := again.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestDisabledLockIsNoop(t *testing.T) {
	l, err := lock.Acquire(t.TempDir(), "2024-04-02", false)
	if err != nil || l != nil {
		t.Fatalf("expected nil lock, got %v, %v", l, err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("nil release: %v", err)
	}
	if l.Path() != "" {
		t.Fatal("nil lock has no path")
	}
}
