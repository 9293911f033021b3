package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scrapegate/scrapegate/internal/clock"
	"github.com/scrapegate/scrapegate/internal/domain"
	"github.com/scrapegate/scrapegate/internal/places"
	"github.com/scrapegate/scrapegate/internal/storage"
)

// memStorage records Put calls in memory.
type memStorage struct {
	objects map[string][]byte
	putErr  error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) Put(ctx context.Context, key string, data io.Reader, opts storage.PutOptions) error {
	if s.putErr != nil {
		return s.putErr
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(data); err != nil {
		return err
	}
	s.objects[key] = buf.Bytes()
	return nil
}

func (s *memStorage) Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (s *memStorage) Delete(ctx context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *memStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := s.objects[key]
	return ok, nil
}

func TestSnapshotArchive(t *testing.T) {
	store := newMemStorage()
	svc := NewSnapshotService(store, clock.At(2025, time.March, 10), testLogger())

	userID := uuid.New()
	result := &places.SearchResult{
		Location: "Berlin",
		Kinds:    []string{"cafe"},
		RadiusM:  5000,
		Places:   []places.Place{{Name: "Kaffeehaus", Kind: "cafe"}},
	}

	key, err := svc.Archive(context.Background(), userID, result)
	if err != nil {
		t.Fatalf("Archive() error: %v", err)
	}

	wantPrefix := "snapshots/" + userID.String() + "/2025-03-10/"
	if !strings.HasPrefix(key, wantPrefix) {
		t.Errorf("key %q missing prefix %q", key, wantPrefix)
	}
	if !strings.HasSuffix(key, ".json") {
		t.Errorf("key %q missing .json suffix", key)
	}

	var stored places.SearchResult
	if err := json.Unmarshal(store.objects[key], &stored); err != nil {
		t.Fatalf("stored payload is not valid JSON: %v", err)
	}
	if stored.Location != "Berlin" || len(stored.Places) != 1 {
		t.Errorf("stored payload does not round-trip: %+v", stored)
	}
}

func TestSnapshotArchive_StorageFailure(t *testing.T) {
	store := newMemStorage()
	store.putErr = errors.New("bucket gone")
	svc := NewSnapshotService(store, clock.At(2025, time.March, 10), testLogger())

	_, err := svc.Archive(context.Background(), uuid.New(), &places.SearchResult{})

	if err == nil {
		t.Fatal("expected error when storage fails")
	}
	if domain.ErrorCode(err) != domain.EUNAVAILABLE {
		t.Errorf("expected EUNAVAILABLE, got %s", domain.ErrorCode(err))
	}
}

func TestSnapshotArchive_KeysAreUnique(t *testing.T) {
	store := newMemStorage()
	svc := NewSnapshotService(store, clock.At(2025, time.March, 10), testLogger())

	userID := uuid.New()
	k1, _ := svc.Archive(context.Background(), userID, &places.SearchResult{})
	k2, _ := svc.Archive(context.Background(), userID, &places.SearchResult{})

	if k1 == k2 {
		t.Error("two archives on the same day must get distinct keys")
	}
}
