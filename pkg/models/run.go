package models

import (
	"encoding/json"
	"time"
)

// Failure records an image skipped by a fault-isolated batch.
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// BatchRun is a completed batch as persisted by the results repository.
// Only derived statistics are kept, never pixel data.
type BatchRun struct {
	ID        string          `json:"id"`
	Folder    string          `json:"folder"`
	CreatedAt time.Time       `json:"created_at"`
	Decode    json.RawMessage `json:"decode,omitempty"`
	Images    int             `json:"images"`
	Table     Table           `json:"table"`
	Failures  []Failure       `json:"failures,omitempty"`
}

// RunSummary is a BatchRun without its rows, as returned by listings.
type RunSummary struct {
	ID        string    `json:"id"`
	Folder    string    `json:"folder"`
	CreatedAt time.Time `json:"created_at"`
	Images    int       `json:"images"`
	Rows      int       `json:"rows"`
	Failures  int       `json:"failures"`
}
