package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a catalog entry or document does not exist.
var ErrNotFound = errors.New("not found")

// Document is the persisted form of a submitted record.
type Document struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	Attachments map[string]string `json:"attachments,omitempty"`
	PDFURL      string            `json:"pdfUrl,omitempty"`
	HandoffURL  string            `json:"handoffUrl,omitempty"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}
