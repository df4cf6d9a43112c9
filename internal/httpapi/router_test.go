package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/leadtracker/crm/internal/config"
	"github.com/leadtracker/crm/internal/db"
	"github.com/leadtracker/crm/internal/httpapi/handlers"
	"github.com/leadtracker/crm/internal/store/memstore"
	"github.com/leadtracker/crm/internal/users"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	h      *handlers.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.Connect(db.DefaultRegistry(), "sqlite", filepath.Join(t.TempDir(), "api.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	sqlDB, _ := gdb.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		JWTSecret:            "test-secret",
		TokenTTL:             time.Hour,
		PresenceTTL:          5 * time.Minute,
		TypingTTL:            10 * time.Second,
		AnalyticsSnapshotTTL: time.Hour,
		CORSOrigins:          []string{"*"},
	}
	h := handlers.NewHandler(gdb, cfg, memstore.New(), zerolog.Nop())
	return &testServer{t: t, router: NewRouter(h, cfg), h: h}
}

func (s *testServer) user(username string, admin bool) {
	s.t.Helper()
	if _, err := s.h.Users.Create(context.Background(), users.NewUser{Username: username, Password: "password123", IsAdmin: admin}); err != nil {
		s.t.Fatalf("create user: %v", err)
	}
}

func (s *testServer) login(username string) string {
	s.t.Helper()
	code, body := s.do(http.MethodPost, "/login", "", map[string]any{"username": username, "password": "password123"})
	if code != http.StatusOK {
		s.t.Fatalf("login %s: %d %v", username, code, body)
	}
	return body["token"].(string)
}

func (s *testServer) do(method, path, token string, payload any) (int, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			s.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
	}
	return rec.Code, body
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t)

	if code, body := s.do(http.MethodGet, "/health", "", nil); code != http.StatusOK || body["success"] != true {
		t.Fatalf("health: %d %v", code, body)
	}
	if code, body := s.do(http.MethodGet, "/nope", "", nil); code != http.StatusNotFound || body["success"] != false {
		t.Fatalf("no route: %d %v", code, body)
	}
	if code, _ := s.do(http.MethodGet, "/me", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.user("alice", false)

	code, body := s.do(http.MethodPost, "/login", "", map[string]any{"username": "alice", "password": "bad-password"})
	if code != http.StatusUnauthorized || body["success"] != false {
		t.Fatalf("expected 401, got %d %v", code, body)
	}
	code, body = s.do(http.MethodPost, "/login", "", map[string]any{"username": "alice"})
	if code != http.StatusBadRequest || body["error"] != "password is required" {
		t.Fatalf("expected validation error, got %d %v", code, body)
	}

	token := s.login("alice")
	code, body = s.do(http.MethodGet, "/me", token, nil)
	if code != http.StatusOK {
		t.Fatalf("me: %d %v", code, body)
	}
	u := body["user"].(map[string]any)
	if u["username"] != "alice" || u["last_login_at"] == nil {
		t.Fatalf("unexpected user: %v", u)
	}
}

func TestTemplatesAndClients(t *testing.T) {
	s := newTestServer(t)
	s.user("root", true)
	s.user("alice", false)
	s.user("bob", false)
	root, alice, bob := s.login("root"), s.login("alice"), s.login("bob")

	if code, _ := s.do(http.MethodPost, "/field-templates", alice, map[string]any{"name": "Phone"}); code != http.StatusForbidden {
		t.Fatalf("non-admin template create should be 403, got %d", code)
	}
	code, body := s.do(http.MethodPost, "/field-templates", root, map[string]any{"name": "   "})
	if code != http.StatusBadRequest {
		t.Fatalf("blank name should be 400, got %d %v", code, body)
	}

	code, body = s.do(http.MethodPost, "/field-templates", root, map[string]any{"name": "Name"})
	if code != http.StatusOK {
		t.Fatalf("create template: %d %v", code, body)
	}
	nameID := uint64(body["template"].(map[string]any)["id"].(float64))

	code, body = s.do(http.MethodPost, "/clients", alice, map[string]any{
		"fields": map[string]string{fmt.Sprint(nameID): "Ada", "9999": "ignored"},
	})
	if code != http.StatusOK {
		t.Fatalf("create client: %d %v", code, body)
	}
	clientID := uint64(body["client"].(map[string]any)["id"].(float64))

	// template added after the client exists
	code, body = s.do(http.MethodPost, "/field-templates", root, map[string]any{"name": "Phone"})
	if code != http.StatusOK {
		t.Fatalf("create template: %d %v", code, body)
	}

	code, body = s.do(http.MethodGet, fmt.Sprintf("/clients/%d", clientID), alice, nil)
	if code != http.StatusOK {
		t.Fatalf("get client: %d %v", code, body)
	}
	client := body["client"].(map[string]any)
	fields := client["fields"].([]any)
	if len(fields) != 2 || client["created_by"] != "alice" {
		t.Fatalf("unexpected client: %v", client)
	}
	phone := fields[1].(map[string]any)
	if phone["name"] != "Phone" || phone["value"] != "" {
		t.Fatalf("expected empty Phone value, got %v", phone)
	}

	if code, _ := s.do(http.MethodGet, fmt.Sprintf("/clients/%d", clientID), bob, nil); code != http.StatusNotFound {
		t.Fatalf("bob should get 404, got %d", code)
	}

	code, body = s.do(http.MethodGet, "/records?username=alice", root, nil)
	if code != http.StatusOK {
		t.Fatalf("records: %d %v", code, body)
	}
	recs := body["records"].([]any)
	if len(recs) != 1 {
		t.Fatalf("expected one record, got %v", recs)
	}
	rec := recs[0].(map[string]any)
	details := rec["details"].([]any)
	if rec["created_by"] != "alice" || len(details) != 2 || details[0].(map[string]any)["field_value"] != "Ada" {
		t.Fatalf("unexpected record: %v", rec)
	}

	if code, _ := s.do(http.MethodPost, "/clients", alice, map[string]any{"fields": map[string]string{"abc": "x"}}); code != http.StatusBadRequest {
		t.Fatalf("non-numeric template id should be 400, got %d", code)
	}

	code, body = s.do(http.MethodGet, "/analytics/me", alice, nil)
	if code != http.StatusOK {
		t.Fatalf("analytics/me: %d %v", code, body)
	}
	if total := body["analytics"].(map[string]any)["total_records"]; total != float64(1) {
		t.Fatalf("expected one record in analytics, got %v", total)
	}
}

func TestAnalyticsAdmin(t *testing.T) {
	s := newTestServer(t)
	s.user("root", true)
	s.user("alice", false)
	root, alice := s.login("root"), s.login("alice")

	if code, _ := s.do(http.MethodGet, "/analytics", alice, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", code)
	}
	code, body := s.do(http.MethodGet, "/analytics", root, nil)
	if code != http.StatusOK {
		t.Fatalf("analytics: %d %v", code, body)
	}
	if users := body["analytics"].(map[string]any)["users"].([]any); len(users) != 2 {
		t.Fatalf("expected both users in snapshot, got %d", len(users))
	}

	code, body = s.do(http.MethodGet, "/analytics/hourly", root, nil)
	if code != http.StatusOK || len(body["series"].([]any)) != 24 {
		t.Fatalf("hourly: %d %v", code, body)
	}

	// no publisher configured: the job runs inline
	code, body = s.do(http.MethodPost, "/analytics/refresh", root, nil)
	if code != http.StatusOK || body["status"] != "succeeded" {
		t.Fatalf("refresh: %d %v", code, body)
	}
	code, body = s.do(http.MethodGet, "/analytics/jobs/"+body["job_id"].(string), root, nil)
	if code != http.StatusOK {
		t.Fatalf("job: %d %v", code, body)
	}
	if code, _ := s.do(http.MethodGet, "/analytics/jobs/unknown", root, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", code)
	}
}

func TestChatFlow(t *testing.T) {
	s := newTestServer(t)
	s.user("alice", false)
	s.user("bob", false)
	s.user("carol", false)
	alice, bob, carol := s.login("alice"), s.login("bob"), s.login("carol")

	code, body := s.do(http.MethodGet, "/me", bob, nil)
	if code != http.StatusOK {
		t.Fatalf("me: %d", code)
	}
	bobID := body["user"].(map[string]any)["id"].(float64)

	code, body = s.do(http.MethodPost, "/chat/rooms", alice, map[string]any{})
	if code != http.StatusOK || body["success"] != false || body["error"] != "user_id is required" {
		t.Fatalf("missing user_id should be 200 with success=false, got %d %v", code, body)
	}

	code, body = s.do(http.MethodPost, "/chat/rooms", alice, map[string]any{"user_id": bobID})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("create room: %d %v", code, body)
	}
	roomID := body["room_id"].(float64)

	code, body = s.do(http.MethodPost, "/chat/messages", alice, map[string]any{"room_id": roomID, "content": ""})
	if code != http.StatusOK || body["success"] != false {
		t.Fatalf("empty content should fail with 200, got %d %v", code, body)
	}
	for _, text := range []string{"hi", "there"} {
		code, body = s.do(http.MethodPost, "/chat/messages", alice, map[string]any{"room_id": roomID, "content": text})
		if code != http.StatusOK || body["message_id"] == nil {
			t.Fatalf("send: %d %v", code, body)
		}
	}

	code, body = s.do(http.MethodGet, "/chat/users", bob, nil)
	if code != http.StatusOK {
		t.Fatalf("chat users: %d %v", code, body)
	}
	for _, u := range body["users"].([]any) {
		entry := u.(map[string]any)
		if entry["username"] == "alice" && (entry["unread_count"] != float64(2) || entry["is_online"] != true) {
			t.Fatalf("unexpected alice entry: %v", entry)
		}
	}

	code, body = s.do(http.MethodGet, fmt.Sprintf("/chat/rooms/%d/messages?last_id=0", int(roomID)), bob, nil)
	if code != http.StatusOK || len(body["messages"].([]any)) != 2 {
		t.Fatalf("poll: %d %v", code, body)
	}
	if code, _ := s.do(http.MethodGet, fmt.Sprintf("/chat/rooms/%d/messages", int(roomID)), carol, nil); code != http.StatusNotFound {
		t.Fatalf("outsider should get 404, got %d", code)
	}

	path := fmt.Sprintf("/chat/rooms/%d/read", int(roomID))
	if code, body = s.do(http.MethodPost, path, bob, nil); body["updated_count"] != float64(2) {
		t.Fatalf("first mark-room-read: %d %v", code, body)
	}
	if code, body = s.do(http.MethodPost, path, bob, nil); body["updated_count"] != float64(0) {
		t.Fatalf("second mark-room-read: %d %v", code, body)
	}

	code, body = s.do(http.MethodPost, "/chat/typing", bob, map[string]any{"room_id": roomID, "is_typing": true})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("typing: %d %v", code, body)
	}
	code, body = s.do(http.MethodGet, fmt.Sprintf("/chat/typing?room_id=%d", int(roomID)), alice, nil)
	if code != http.StatusOK || body["is_typing"] != true {
		t.Fatalf("typing status: %d %v", code, body)
	}

	// is_typing left out clears the flag
	code, body = s.do(http.MethodPost, "/chat/typing", bob, map[string]any{"room_id": roomID})
	if code != http.StatusOK || body["success"] != true || body["is_typing"] != false {
		t.Fatalf("typing without flag: %d %v", code, body)
	}
	_, body = s.do(http.MethodGet, fmt.Sprintf("/chat/typing?room_id=%d", int(roomID)), alice, nil)
	if body["is_typing"] != false {
		t.Fatalf("typing flag should be cleared: %v", body)
	}

	// online left out marks the caller offline
	code, body = s.do(http.MethodPost, "/chat/presence", bob, map[string]any{})
	if code != http.StatusOK || body["online"] != false {
		t.Fatalf("presence: %d %v", code, body)
	}
	_, body = s.do(http.MethodGet, "/chat/users", carol, nil)
	for _, u := range body["users"].([]any) {
		entry := u.(map[string]any)
		if entry["username"] == "bob" && entry["is_online"] != false {
			t.Fatalf("bob should be offline: %v", entry)
		}
	}
}
