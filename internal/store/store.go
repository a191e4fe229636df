// Package store persists uploaded documents, their images and transcripts.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Status is the processing state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "ocr_failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusComplete, StatusFailed:
		return true
	}
	return false
}

// Document is one uploaded image and, once processed, its transcript.
type Document struct {
	ID         uuid.UUID       `json:"id"`
	Filename   string          `json:"filename"`
	Language   script.Language `json:"language"`
	Status     Status          `json:"processing_status"`
	ImageKey   string          `json:"-"`
	UploadedAt time.Time       `json:"uploaded_at"`
	// Text is nil until OCR finished. An empty string means no text was found.
	Text        *string    `json:"text,omitempty"`
	ExtractedAt *time.Time `json:"extracted_at,omitempty"`
}

// ListOptions pages through documents, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

// Repository is the document persistence collaborator.
type Repository interface {
	// Create stores doc, filling in ID, UploadedAt and a pending Status
	// when they are unset.
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id uuid.UUID) (*Document, error)
	List(ctx context.Context, opts ListOptions) ([]*Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	// SaveTranscript records the OCR text and sets the final status.
	SaveTranscript(ctx context.Context, id uuid.UUID, text string, status Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	Close() error
}

// prepare fills the defaults Create promises.
func prepare(doc *Document, now time.Time) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now.UTC()
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	if !doc.Status.Valid() {
		return fmt.Errorf("invalid status %q", doc.Status)
	}
	return nil
}

// ParseID parses a document id.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrNotFound, s)
	}
	return id, nil
}
