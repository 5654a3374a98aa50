package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validCreateRequest() CreateAuditRequest {
	return CreateAuditRequest{
		EntityType: "order",
		EntityID:   "o1",
		UserID:     "u1",
		Change:     json.RawMessage(`{"status":"paid"}`),
		Created:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateAuditRequestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validCreateRequest().Validate())
	})

	t.Run("change is optional", func(t *testing.T) {
		req := validCreateRequest()
		req.Change = nil
		assert.NoError(t, req.Validate())
	})

	t.Run("missing entity_type", func(t *testing.T) {
		req := validCreateRequest()
		req.EntityType = ""
		assert.ErrorIs(t, req.Validate(), ErrMissingEntityType)
	})

	t.Run("missing entity_id", func(t *testing.T) {
		req := validCreateRequest()
		req.EntityID = ""
		assert.ErrorIs(t, req.Validate(), ErrMissingEntityID)
	})

	t.Run("missing user_id", func(t *testing.T) {
		req := validCreateRequest()
		req.UserID = ""
		assert.ErrorIs(t, req.Validate(), ErrMissingUserID)
	})

	t.Run("missing created", func(t *testing.T) {
		req := validCreateRequest()
		req.Created = time.Time{}
		assert.ErrorIs(t, req.Validate(), ErrMissingCreated)
	})
}
