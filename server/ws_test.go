package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/lounge/chat"
)

// wsServer runs the full handler stack over a real listener so the gorilla
// dialer can reach it.
func wsServer(t *testing.T) (*testEnv, *httptest.Server) {
	t.Helper()
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)
	return env, srv
}

// claimIdentity claims a username over HTTP and returns the session cookies.
func claimIdentity(t *testing.T, srv *httptest.Server, name string) []*http.Cookie {
	t.Helper()
	resp, err := srv.Client().PostForm(srv.URL+"/check_username", url.Values{"username": {name}})
	if err != nil {
		t.Fatalf("claim %q: %v", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim %q: status %d", name, resp.StatusCode)
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		t.Fatalf("claim %q: no session cookie", name)
	}
	return cookies
}

func dialWS(t *testing.T, srv *httptest.Server, cookies []*http.Cookie) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{}
	for _, c := range cookies {
		header.Add("Cookie", c.String())
	}
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func sendFrame(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	if err := ws.WriteJSON(map[string]any{"event": event, "data": data}); err != nil {
		t.Fatalf("send %s: %v", event, err)
	}
}

// readEvent reads frames until one matching want arrives, skipping others.
func readEvent(t *testing.T, ws *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := ws.ReadJSON(&frame); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if frame.Event == want {
			return frame.Data
		}
	}
}

func onlineCount(t *testing.T, raw json.RawMessage) int {
	t.Helper()
	var payload chat.OnlineCountPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode online_count: %v", err)
	}
	return payload.Count
}

func TestWSJoinDeliversOnlineCount(t *testing.T) {
	_, srv := wsServer(t)

	ws := dialWS(t, srv, claimIdentity(t, srv, "alice"))
	sendFrame(t, ws, "joinRoom", true)

	if n := onlineCount(t, readEvent(t, ws, chat.EventOnlineCount)); n != 1 {
		t.Fatalf("online count = %d, want 1", n)
	}
}

func TestWSMessageBroadcast(t *testing.T) {
	_, srv := wsServer(t)

	alice := dialWS(t, srv, claimIdentity(t, srv, "alice"))
	bob := dialWS(t, srv, claimIdentity(t, srv, "bob"))
	sendFrame(t, alice, "joinRoom", true)
	readEvent(t, alice, chat.EventOnlineCount)
	sendFrame(t, bob, "joinRoom", true)
	readEvent(t, bob, chat.EventOnlineCount)

	sendFrame(t, alice, "message", map[string]string{"message": "hello room"})

	for name, ws := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		var payload chat.IncomingPayload
		if err := json.Unmarshal(readEvent(t, ws, chat.EventIncoming), &payload); err != nil {
			t.Fatalf("%s: decode incoming: %v", name, err)
		}
		if payload.Username != "alice" || payload.Message != "hello room" || payload.Type != chat.TypeChat {
			t.Fatalf("%s received %+v", name, payload)
		}
	}
}

func TestWSUnauthenticatedJoinCloses(t *testing.T) {
	_, srv := wsServer(t)

	ws := dialWS(t, srv, nil)
	sendFrame(t, ws, "joinRoom", true)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := ws.ReadMessage()
		if err == nil {
			continue
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			t.Fatal("server did not close the connection")
		}
		return
	}
}

func TestWSDisconnectReleasesPresence(t *testing.T) {
	env, srv := wsServer(t)

	alice := dialWS(t, srv, claimIdentity(t, srv, "alice"))
	bob := dialWS(t, srv, claimIdentity(t, srv, "bob"))
	sendFrame(t, alice, "joinRoom", true)
	readEvent(t, alice, chat.EventOnlineCount)
	sendFrame(t, bob, "joinRoom", true)
	if n := onlineCount(t, readEvent(t, bob, chat.EventOnlineCount)); n != 2 {
		t.Fatalf("online count = %d, want 2", n)
	}

	_ = bob.Close()

	// Alice sees the join first, then the departure.
	for {
		n := onlineCount(t, readEvent(t, alice, chat.EventOnlineCount))
		if n == 1 {
			break
		}
		if n != 2 {
			t.Fatalf("online count = %d", n)
		}
	}
	if env.engine.Presence.Online("bob") {
		t.Fatal("departed identity should be released")
	}
}

func TestWSMalformedFramesIgnored(t *testing.T) {
	_, srv := wsServer(t)

	ws := dialWS(t, srv, claimIdentity(t, srv, "alice"))
	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	sendFrame(t, ws, "unknownEvent", map[string]string{"x": "y"})
	sendFrame(t, ws, "joinRoom", true)

	if n := onlineCount(t, readEvent(t, ws, chat.EventOnlineCount)); n != 1 {
		t.Fatalf("online count = %d, want 1", n)
	}
}

func TestWSLogoutClosesConnection(t *testing.T) {
	env, srv := wsServer(t)

	cookies := claimIdentity(t, srv, "alice")
	ws := dialWS(t, srv, cookies)
	sendFrame(t, ws, "joinRoom", true)
	readEvent(t, ws, chat.EventOnlineCount)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/logout", nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := ws.ReadMessage()
		if err == nil {
			continue
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			t.Fatal("logout did not close the live connection")
		}
		break
	}
	if env.engine.Presence.Online("alice") {
		t.Fatal("logout should release the identity")
	}
	claimIdentity(t, srv, "alice")
}
