// Package upload validates user images, stores them in blob storage and
// keeps one metadata row per stored file.
package upload

import (
	"errors"
	"time"
)

// Record is the metadata of one successful upload. Records are never updated.
type Record struct {
	ID               int64
	UserID           string
	OriginalFilename string
	StoredFilename   string
	FileURL          string
	FileSize         int64
	ContentType      string
	UploadedAt       time.Time
}

// ErrStorage is returned when the blob store rejects the bytes.
var ErrStorage = errors.New("blob storage failure")

// ErrPersist is returned when the metadata store cannot be read or written.
var ErrPersist = errors.New("metadata storage failure")

// ValidationError describes why an upload was rejected. Reason is safe to show to clients.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
