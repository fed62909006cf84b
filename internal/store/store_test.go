package store

import (
	"context"
	"testing"
	"time"
)

type memoryStorage struct {
	values map[string]any
}

func (s *memoryStorage) Get(ctx context.Context, key string, val any) error {
	stored, ok := s.values[key]
	if !ok {
		return ErrNotFound
	}
	*(val.(*testEntry)) = *(stored.(*testEntry))
	return nil
}

func (s *memoryStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	entry := val.(testEntry)
	s.values[key] = &entry
	return nil
}

func (s *memoryStorage) Delete(ctx context.Context, key string) error {
	delete(s.values, key)
	return nil
}

type testEntry struct {
	Name  string
	Count int
}

func TestStorePrefixesKeys(t *testing.T) {
	backend := &memoryStorage{values: map[string]any{}}
	entries := New[testEntry](backend, "sc:")
	ctx := context.Background()

	want := testEntry{Name: "acme", Count: 3}
	if err := entries.Set(ctx, "42", want, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := backend.values["sc:42"]; !ok {
		t.Fatalf("stored keys = %v, want sc:42", backend.values)
	}

	got, err := entries.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}

	if err := entries.Delete(ctx, "42"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := entries.Get(ctx, "42"); err != ErrNotFound {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
}
