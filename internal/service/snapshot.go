package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/scrapegate/scrapegate/internal/clock"
	"github.com/scrapegate/scrapegate/internal/domain"
	"github.com/scrapegate/scrapegate/internal/metrics"
	"github.com/scrapegate/scrapegate/internal/places"
	"github.com/scrapegate/scrapegate/internal/storage"
)

// MaxSnapshotBytes caps an archived result payload. Overpass responses for
// a bounded search stay well under this.
const MaxSnapshotBytes = 1 << 20 // 1 MiB

// SnapshotService archives fetch results to object storage. Archiving is
// best effort: callers log failures and continue serving the response.
type SnapshotService interface {
	// Archive stores one search result under the calling user. Returns
	// the storage key on success.
	Archive(ctx context.Context, userID uuid.UUID, result *places.SearchResult) (string, error)
}

type snapshotService struct {
	store  storage.Storage
	clock  clock.Clock
	logger *slog.Logger
}

// NewSnapshotService creates a SnapshotService backed by the given store.
func NewSnapshotService(store storage.Storage, clk clock.Clock, logger *slog.Logger) SnapshotService {
	return &snapshotService{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

func (s *snapshotService) Archive(ctx context.Context, userID uuid.UUID, result *places.SearchResult) (string, error) {
	const op = "snapshot.Archive"

	payload, err := json.Marshal(result)
	if err != nil {
		metrics.SnapshotWrites.WithLabelValues("error").Inc()
		return "", domain.Internal(err, op, "failed to encode snapshot")
	}

	date := s.clock.Now().Format(domain.DateLayout)
	key := storage.SnapshotKey(userID, date)

	err = s.store.Put(ctx, key, bytes.NewReader(payload), storage.PutOptions{
		ContentType: storage.DefaultContentType,
		MaxSize:     MaxSnapshotBytes,
	})
	if err != nil {
		metrics.SnapshotWrites.WithLabelValues("error").Inc()
		return "", domain.Unavailable(err, op, "failed to archive snapshot")
	}

	metrics.SnapshotWrites.WithLabelValues("ok").Inc()
	s.logger.Debug("archived fetch snapshot",
		"user_id", userID,
		"key", key,
		"size", len(payload))
	return key, nil
}
