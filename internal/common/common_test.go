package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{fmt.Errorf("room 7: %w", ErrNotFound), http.StatusNotFound, "not found"},
		{Invalid("room_id is required"), http.StatusBadRequest, "room_id is required"},
		{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{ErrForbidden, http.StatusForbidden, "forbidden"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "disk on fire"},
	}
	for _, tc := range cases {
		status, msg := StatusFor(tc.err)
		if status != tc.status || msg != tc.message {
			t.Errorf("StatusFor(%v) = %d %q, want %d %q", tc.err, status, msg, tc.status, tc.message)
		}
	}
}

func TestInvalid_IsValidation(t *testing.T) {
	err := fmt.Errorf("create: %w", Invalid("name is %s", "required"))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation in chain")
	}
	if err.Error() != "create: name is required" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	OK(c, gin.H{"room_id": 3})

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["success"] != true || body["room_id"] != float64(3) {
		t.Fatalf("unexpected body: %v", body)
	}

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	Fail(c, http.StatusOK, "room_id is required")
	body = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["success"] != false || body["error"] != "room_id is required" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestNewULID(t *testing.T) {
	a, err := NewULID()
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	b, _ := NewULID()
	if len(a) != 26 || a == b {
		t.Fatalf("unexpected ids: %q %q", a, b)
	}
}
