package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/app/orch"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/config"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *orch.Orchestrator) {
	t.Helper()
	cfg := &config.Config{
		Mode:       "test",
		Secret:     "test-secret",
		ReadLimit:  1 << 15,
		PingPeriod: time.Minute,
	}
	o := orch.New(orch.Options{MaxCapacity: 12})
	return SetupRouter(t.Context(), cfg, o), o
}

type client struct {
	t     *testing.T
	r     http.Handler
	token string
}

func newClient(t *testing.T, r http.Handler) *client {
	return &client{t: t, r: r, token: uuid.NewString()}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: clientTokenCookie, Value: c.token})
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	return w
}

func (c *client) room(method, path string, body any, wantStatus int) domain.Room {
	c.t.Helper()
	w := c.do(method, path, body)
	if w.Code != wantStatus {
		c.t.Fatalf("%s %s = %d %s, want %d", method, path, w.Code, w.Body.String(), wantStatus)
	}
	var r domain.Room
	if err := json.Unmarshal(w.Body.Bytes(), &r); err != nil {
		c.t.Fatalf("decode room: %v", err)
	}
	return r
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body.Error
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)
	host, alice, bob := newClient(t, r), newClient(t, r), newClient(t, r)

	room := host.room(http.MethodPost, "/api/rooms", map[string]any{
		"title": "mock interview", "stage": "interview", "capacity": 2, "bootcamp": "woowa",
	}, http.StatusCreated)
	if room.HostID != domain.UserID(host.token) || room.Status != domain.StatusRecruiting {
		t.Fatalf("created room = %+v", room)
	}
	base := "/api/rooms/" + string(room.ID)

	alice.room(http.MethodPost, base+"/apply", nil, http.StatusOK)
	bob.room(http.MethodPost, base+"/apply", nil, http.StatusOK)

	if w := alice.do(http.MethodPost, base+"/apply", nil); w.Code != http.StatusConflict || errorCode(t, w) != "already_applied" {
		t.Errorf("second apply = %d %s", w.Code, w.Body.String())
	}
	if w := alice.do(http.MethodPost, base+"/applicants/"+bob.token+"/approve", nil); w.Code != http.StatusForbidden || errorCode(t, w) != "not_host" {
		t.Errorf("approve by non-host = %d %s", w.Code, w.Body.String())
	}

	confirmed := host.room(http.MethodPost, base+"/applicants/"+alice.token+"/approve", nil, http.StatusOK)
	if confirmed.Status != domain.StatusConfirmed {
		t.Errorf("Status = %s, want confirmed", confirmed.Status)
	}
	if w := bob.do(http.MethodDelete, base+"/apply", nil); w.Code != http.StatusConflict || errorCode(t, w) != "room_full" {
		t.Errorf("withdraw after confirmation = %d %s", w.Code, w.Body.String())
	}

	w := alice.do(http.MethodGet, "/api/me/rooms", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), string(room.ID)) {
		t.Errorf("my rooms = %d %s", w.Code, w.Body.String())
	}
	if w := bob.do(http.MethodGet, base+"/session", nil); w.Code != http.StatusForbidden {
		t.Errorf("session snapshot for outsider = %d", w.Code)
	}
	if w := alice.do(http.MethodGet, base+"/session", nil); w.Code != http.StatusOK {
		t.Errorf("session snapshot for member = %d %s", w.Code, w.Body.String())
	}

	closed := host.room(http.MethodPost, base+"/close", nil, http.StatusOK)
	if closed.Status != domain.StatusClosed {
		t.Errorf("Status = %s, want closed", closed.Status)
	}
	host.room(http.MethodPost, base+"/close", nil, http.StatusOK)
}

func TestCreateRoomValidation(t *testing.T) {
	r, _ := newTestRouter(t)
	c := newClient(t, r)
	tests := []struct {
		name     string
		body     map[string]any
		wantCode string
	}{
		{"capacity one", map[string]any{"title": "t", "stage": "interview", "capacity": 1}, "invalid_capacity"},
		{"unknown stage", map[string]any{"title": "t", "stage": "karaoke", "capacity": 3}, "invalid_input"},
		{"missing title", map[string]any{"stage": "interview", "capacity": 3}, "invalid_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := c.do(http.MethodPost, "/api/rooms", tt.body)
			if w.Code != http.StatusBadRequest || errorCode(t, w) != tt.wantCode {
				t.Errorf("POST /api/rooms = %d %s, want 400 %s", w.Code, w.Body.String(), tt.wantCode)
			}
		})
	}
}

func TestListAndGetRooms(t *testing.T) {
	r, _ := newTestRouter(t)
	c := newClient(t, r)
	c.room(http.MethodPost, "/api/rooms", map[string]any{"title": "a", "stage": "interview", "capacity": 2}, http.StatusCreated)
	c.room(http.MethodPost, "/api/rooms", map[string]any{"title": "b", "stage": "coding_test", "capacity": 2}, http.StatusCreated)

	w := c.do(http.MethodGet, "/api/rooms?stage=coding_test", nil)
	var list struct {
		Rooms []domain.Room `json:"rooms"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Rooms) != 1 || list.Rooms[0].Title != "b" {
		t.Errorf("filtered list = %+v", list.Rooms)
	}
	if w := c.do(http.MethodGet, "/api/rooms?stage=nope", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad stage filter = %d", w.Code)
	}
	if w := c.do(http.MethodGet, "/api/rooms/unknown", nil); w.Code != http.StatusNotFound || errorCode(t, w) != "not_found" {
		t.Errorf("unknown room = %d %s", w.Code, w.Body.String())
	}
}

func TestMeAndStages(t *testing.T) {
	r, _ := newTestRouter(t)
	c := newClient(t, r)

	w := c.do(http.MethodPut, "/api/me", map[string]string{"name": "  haneul "})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /api/me = %d %s", w.Code, w.Body.String())
	}
	var me domain.User
	if err := json.Unmarshal(c.do(http.MethodGet, "/api/me", nil).Body.Bytes(), &me); err != nil {
		t.Fatal(err)
	}
	if me.Username != "haneul" || me.ID != domain.UserID(c.token) {
		t.Errorf("me = %+v", me)
	}
	if w := c.do(http.MethodPut, "/api/me", map[string]string{"name": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty rename = %d", w.Code)
	}
	if w := c.do(http.MethodGet, "/api/stages", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "self_introduction") {
		t.Errorf("stages = %d %s", w.Code, w.Body.String())
	}
	if w := c.do(http.MethodGet, "/api/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("healthz = %d", w.Code)
	}
}

func TestNewVisitorGetsToken(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var found bool
	for _, ck := range w.Result().Cookies() {
		if ck.Name == clientTokenCookie {
			found = uuid.Validate(ck.Value) == nil
		}
	}
	if !found {
		t.Errorf("no client token cookie issued")
	}
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	header := http.Header{}
	header.Add("Cookie", clientTokenCookie+"="+token)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads frames until one has the wanted type.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(map[string]any) bool) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		if frame["type"] == typ && (match == nil || match(frame)) {
			return frame
		}
	}
}

func TestSignalSessionOverWebSocket(t *testing.T) {
	r, o := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	host, guest := newClient(t, r), newClient(t, r)
	room := host.room(http.MethodPost, "/api/rooms", map[string]any{"title": "cs", "stage": "interview", "capacity": 2}, http.StatusCreated)
	base := "/api/rooms/" + string(room.ID)
	guest.room(http.MethodPost, base+"/apply", nil, http.StatusOK)
	host.room(http.MethodPost, base+"/applicants/"+guest.token+"/approve", nil, http.StatusOK)

	hc := dialWS(t, srv, host.token)
	gc := dialWS(t, srv, guest.token)
	for _, c := range []*websocket.Conn{hc, gc} {
		if err := c.WriteJSON(map[string]string{"type": "join", "room": string(room.ID)}); err != nil {
			t.Fatal(err)
		}
		joined := readUntil(t, c, "joined", nil)
		if _, ok := joined["ice_servers"]; !ok {
			t.Errorf("joined frame has no ice_servers: %v", joined)
		}
	}

	if err := gc.WriteJSON(map[string]string{"type": "message", "content": "   "}); err != nil {
		t.Fatal(err)
	}
	if e := readUntil(t, gc, "error", nil); e["error"] != "empty_message" {
		t.Errorf("error frame = %v", e)
	}

	if err := gc.WriteJSON(map[string]string{"type": "message", "content": "hello"}); err != nil {
		t.Fatal(err)
	}
	isMessage := func(f map[string]any) bool {
		ev, _ := f["event"].(map[string]any)
		return ev["kind"] == string(domain.EventMessagePosted)
	}
	for _, c := range []*websocket.Conn{hc, gc} {
		f := readUntil(t, c, "event", isMessage)
		msg := f["event"].(map[string]any)["message"].(map[string]any)
		if msg["content"] != "hello" || msg["sender_id"] != guest.token {
			t.Errorf("message = %v", msg)
		}
	}

	if err := gc.WriteJSON(map[string]string{"type": "leave"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, gc, "left", nil)

	snap, err := o.Sessions.Snapshot(context.Background(), room.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range snap.Presence {
		if p.UserID == domain.UserID(guest.token) && p.Connected {
			t.Errorf("guest still connected after leave")
		}
	}
}
