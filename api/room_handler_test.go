package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"meethub/repositories"
	"meethub/services"
)

func newTestRouter(t *testing.T) (*gin.Engine, func()) {
	return newTestRouterWithOrigins(t, []string{"*"})
}

func newTestRouterWithOrigins(t *testing.T, origins []string) (*gin.Engine, func()) {
	gin.SetMode(gin.TestMode)

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repositories.NewRoomRepository(db, log)
	service := services.NewRoomService(repo, log, services.Settings{
		ProviderBaseURL:  "https://sfu.mirotalk.com",
		SessionNamespace: "MeetHub",
		DefaultCapacity:  10,
		DefaultListLimit: 10,
	})
	router := NewRouter(NewRoomHandler(service, log), log, origins)

	return router, func() { db.Close() }
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	w := httptest.NewRecorder()
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, request)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	return w.Code, decoded
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	req := require.New(t)
	router, cleanup := newTestRouter(t)
	defer cleanup()

	// Create a password-protected two-seat room.
	status, created := doJSON(t, router, http.MethodPost, "/meet/room/create", gin.H{
		"host_id":          "host-1",
		"room_title":       "Daily Standup",
		"password":         "abc",
		"max_participants": 2,
	})
	req.Equal(http.StatusOK, status)
	roomID := created["room_id"].(string)
	req.Len(roomID, 8)
	req.Equal(true, created["password_protected"])
	req.Equal("/room/"+roomID, created["join_link"])
	req.Contains(created["embed_url"], "&roomPassword=abc&roomName=Daily+Standup")

	base := "/meet/room/" + roomID

	// Wrong password is rejected before any membership change.
	status, body := doJSON(t, router, http.MethodPost, base+"/join", gin.H{"user_id": "u1", "password": "nope"})
	req.Equal(http.StatusForbidden, status)
	req.Equal("incorrect password", body["error"])

	status, body = doJSON(t, router, http.MethodPost, base+"/join", gin.H{"user_id": "u1", "password": "abc", "display_name": "Alice Smith"})
	req.Equal(http.StatusOK, status)
	req.Equal("joined", body["status"])
	req.Equal(float64(1), body["participant_count"])
	req.Contains(body["embed_url"], "&name=Alice+Smith")

	status, _ = doJSON(t, router, http.MethodPost, base+"/join", gin.H{"user_id": "u2", "password": "abc"})
	req.Equal(http.StatusOK, status)

	// Third distinct user bounces off the capacity limit.
	status, body = doJSON(t, router, http.MethodPost, base+"/join", gin.H{"user_id": "u3", "password": "abc"})
	req.Equal(http.StatusConflict, status)
	req.Equal("room full", body["error"])

	// Rejoin at full capacity stays a success and keeps the count stable.
	status, body = doJSON(t, router, http.MethodPost, base+"/join", gin.H{"user_id": "u1", "password": "abc"})
	req.Equal(http.StatusOK, status)
	req.Equal(float64(2), body["participant_count"])

	// A returning member still has to present the right password.
	status, body = doJSON(t, router, http.MethodPost, base+"/join", gin.H{"user_id": "u1", "password": "nope"})
	req.Equal(http.StatusForbidden, status)
	req.Equal("incorrect password", body["error"])

	// Leave verifies attendance without shrinking the member set.
	status, body = doJSON(t, router, http.MethodPost, base+"/leave", gin.H{"user_id": "ghost"})
	req.Equal(http.StatusConflict, status)
	req.Equal("user not in room", body["error"])

	status, body = doJSON(t, router, http.MethodPost, base+"/leave", gin.H{"user_id": "u1"})
	req.Equal(http.StatusOK, status)
	req.Equal("left", body["status"])
	req.Equal(float64(2), body["participant_count"])

	status, body = doJSON(t, router, http.MethodPost, base+"/verify-password", gin.H{"password": "abc"})
	req.Equal(http.StatusOK, status)
	req.Equal(true, body["valid"])

	status, body = doJSON(t, router, http.MethodGet, base+"/participants", nil)
	req.Equal(http.StatusOK, status)
	req.ElementsMatch([]any{"u1", "u2"}, body["participants"])

	status, body = doJSON(t, router, http.MethodGet, "/meet/rooms/active?host_id=host-1", nil)
	req.Equal(http.StatusOK, status)
	req.Equal(float64(1), body["count"])

	// End is terminal: joins bounce, a second end is a conflict, and the
	// record stays queryable for history.
	status, body = doJSON(t, router, http.MethodPost, base+"/end", nil)
	req.Equal(http.StatusOK, status)
	req.Equal("ended", body["status"])
	req.Equal(float64(2), body["total_participants"])

	status, body = doJSON(t, router, http.MethodPost, base+"/join", gin.H{"user_id": "u4", "password": "abc"})
	req.Equal(http.StatusConflict, status)
	req.Equal("room has ended", body["error"])

	status, body = doJSON(t, router, http.MethodPost, base+"/end", nil)
	req.Equal(http.StatusConflict, status)
	req.Equal("room already ended", body["error"])

	status, body = doJSON(t, router, http.MethodGet, base, nil)
	req.Equal(http.StatusOK, status)
	req.Equal(false, body["is_active"])

	status, body = doJSON(t, router, http.MethodGet, "/meet/rooms/active", nil)
	req.Equal(http.StatusOK, status)
	req.Equal(float64(0), body["count"])
}

func TestRoomHandlerValidation(t *testing.T) {
	req := require.New(t)
	router, cleanup := newTestRouter(t)
	defer cleanup()

	status, _ := doJSON(t, router, http.MethodPost, "/meet/room/create", gin.H{"room_title": "no host"})
	req.Equal(http.StatusBadRequest, status)

	// Limits enforced past gin binding still surface as a 400, not a fault.
	status, body := doJSON(t, router, http.MethodPost, "/meet/room/create", gin.H{
		"host_id":    "host-1",
		"room_title": strings.Repeat("x", 201),
	})
	req.Equal(http.StatusBadRequest, status)
	req.Contains(body["error"], "invalid request")

	status, body = doJSON(t, router, http.MethodGet, "/meet/room/deadbeef", nil)
	req.Equal(http.StatusNotFound, status)
	req.Equal("room not found", body["error"])

	status, _ = doJSON(t, router, http.MethodPost, fmt.Sprintf("/meet/room/%s/join", "deadbeef"), gin.H{})
	req.Equal(http.StatusBadRequest, status)

	status, _ = doJSON(t, router, http.MethodGet, "/meet/rooms/active?limit=-1", nil)
	req.Equal(http.StatusBadRequest, status)
}

func TestCORSOriginMatching(t *testing.T) {
	req := require.New(t)
	router, cleanup := newTestRouterWithOrigins(t, []string{"https://a.example", " https://b.example"})
	defer cleanup()

	// A configured origin matches even when the config value carried spaces.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/meet/rooms/active", nil)
	r.Header.Set("Origin", "https://b.example")
	router.ServeHTTP(w, r)
	req.Equal(http.StatusOK, w.Code)
	req.Equal("https://b.example", w.Header().Get("Access-Control-Allow-Origin"))

	// Unlisted origins get no CORS grant.
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/meet/rooms/active", nil)
	r.Header.Set("Origin", "https://evil.example")
	router.ServeHTTP(w, r)
	req.Empty(w.Header().Get("Access-Control-Allow-Origin"))

	// Preflight short-circuits before any handler runs.
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodOptions, "/meet/room/create", nil)
	r.Header.Set("Origin", "https://a.example")
	router.ServeHTTP(w, r)
	req.Equal(http.StatusNoContent, w.Code)
	req.Equal("https://a.example", w.Header().Get("Access-Control-Allow-Origin"))
}
