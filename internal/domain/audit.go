package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Search bounds. A negative limit falls back to the default, anything above
// the maximum is clamped. An offset outside [0, MaxSearchOffset] resets to 0.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
	MaxSearchOffset    = 100
)

var (
	ErrAuditExists       = errors.New("audit record already exists")
	ErrMissingAppID      = errors.New("app_id is required")
	ErrMissingEntityType = errors.New("entity_type is required")
	ErrMissingEntityID   = errors.New("entity_id is required")
	ErrMissingUserID     = errors.New("user_id is required")
	ErrMissingCreated    = errors.New("created is required")
)

// AuditRecord is one logged change to an entity, made by a user at a point in
// time. Records are written once by client applications and queried later;
// Received is stamped by the store at insert and never mutated afterwards.
type AuditRecord struct {
	ID         string          `json:"id"`
	AppID      string          `json:"app_id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	UserID     string          `json:"user_id"`
	Change     json.RawMessage `json:"change,omitempty"`
	Created    time.Time       `json:"created"`
	Received   time.Time       `json:"received"`
}

type CreateAuditRequest struct {
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	UserID     string          `json:"user_id"`
	Change     json.RawMessage `json:"change,omitempty"`
	Created    time.Time       `json:"created"`
}

func (r CreateAuditRequest) Validate() error {
	if r.EntityType == "" {
		return ErrMissingEntityType
	}
	if r.EntityID == "" {
		return ErrMissingEntityID
	}
	if r.UserID == "" {
		return ErrMissingUserID
	}
	if r.Created.IsZero() {
		return ErrMissingCreated
	}
	return nil
}

type UpdateAuditRequest struct {
	EntityType *string         `json:"entity_type,omitempty"`
	EntityID   *string         `json:"entity_id,omitempty"`
	UserID     *string         `json:"user_id,omitempty"`
	Change     json.RawMessage `json:"change,omitempty"`
	Created    *time.Time      `json:"created,omitempty"`
}

// SearchQuery selects audit records for one application. The string filters
// participate only when non-empty; an empty string means "not provided".
// CreatedAfter and CreatedBefore bound the caller-supplied event time.
type SearchQuery struct {
	AppID         string
	EntityType    string
	EntityID      string
	UserID        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}
