package upload

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imageupload/service/internal/storage"
)

// cleanupTimeout bounds the compensating blob delete after a failed metadata write.
const cleanupTimeout = 10 * time.Second

// Repository persists upload records.
type Repository interface {
	// Create inserts rec and fills in its ID and UploadedAt as stored.
	Create(ctx context.Context, rec *Record) error
	// ListByUser returns the user's records, most recent first.
	ListByUser(ctx context.Context, userID string) ([]Record, error)
}

// Service contains the business logic for image uploads.
type Service struct {
	repo      Repository
	store     storage.Storage
	validator *Validator
	now       func() time.Time
}

// NewService creates a new upload Service.
func NewService(repo Repository, store storage.Storage, validator *Validator) *Service {
	return &Service{repo: repo, store: store, validator: validator, now: time.Now}
}

// Upload validates data, stores it under a fresh unique name and records its metadata.
// Callers must have authenticated userID already.
//
// If the metadata write fails the stored blob is deleted again (best effort),
// so a failed upload leaves neither a record nor, normally, an object behind.
func (s *Service) Upload(ctx context.Context, userID, filename, contentType string, data []byte) (*Record, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if err := s.validator.Validate(contentType, filename, data); err != nil {
		return nil, err
	}

	storedName := uuid.NewString() + "." + Extension(filename)
	size := int64(len(data))

	url, err := s.store.Upload(ctx, storedName, bytes.NewReader(data), size, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	rec := &Record{
		UserID:           userID,
		OriginalFilename: filename,
		StoredFilename:   storedName,
		FileURL:          url,
		FileSize:         size,
		ContentType:      contentType,
		UploadedAt:       s.now().UTC(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		s.discardBlob(ctx, storedName)
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	log.Printf("upload: stored user=%s id=%d key=%s size=%d", userID, rec.ID, storedName, size)
	return rec, nil
}

// ListFiles returns every record owned by userID, most recent first.
func (s *Service) ListFiles(ctx context.Context, userID string) ([]Record, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (s *Service) discardBlob(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.store.Delete(ctx, key); err != nil {
		log.Printf("upload: orphaned blob key=%s: %v", key, err)
		return
	}
	log.Printf("upload: removed blob key=%s after failed metadata write", key)
}
