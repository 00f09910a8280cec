package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newRelayServer(t *testing.T, relay *Relay) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		q := r.URL.Query()
		relay.Serve(conn, q.Get("widgetId"), q.Get("key"), Role(q.Get("role")), r.Header.Get("Origin"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, role Role, origin string, w *Window) *WSPort {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?widgetId=wd-1&key=k1&role=" + string(role)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := DialWSPort(ctx, url, origin, w)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRelayForwardsWithStampedOrigin(t *testing.T) {
	relay := NewRelay(nil)
	srv := newRelayServer(t, relay)

	hostWin := NewWindow("http://localhost:3000")
	defer hostWin.Close()
	frameWin := NewWindow("http://localhost:5173")
	defer frameWin.Close()

	hostRec, frameRec := &recorder{}, &recorder{}
	hostWin.AddMessageListener(hostRec.listen)
	frameWin.AddMessageListener(frameRec.listen)

	// the frame announces itself before the host connects; the relay holds it
	framePort := dial(t, srv, RoleFrame, "http://localhost:5173", frameWin)
	if err := framePort.PostMessage(SignalReady, "*"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return relay.PeerCount("wd-1", "k1") == 1 })

	hostPort := dial(t, srv, RoleHost, "http://localhost:3000", hostWin)
	waitFor(t, func() bool { return len(hostRec.all()) == 1 })
	if ev := hostRec.all()[0]; ev.Data != SignalReady || ev.Origin != "http://localhost:5173" {
		t.Fatalf("host got %+v", ev)
	}

	if err := hostPort.PostMessage(`{"type":"start","data":"null"}`, "http://localhost:5173/"); err != nil {
		t.Fatal(err)
	}
	if err := hostPort.PostMessage("wrong-target", "http://localhost:9999"); err != nil {
		t.Fatal(err)
	}
	if err := hostPort.PostMessage("after", "*"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(frameRec.all()) == 2 })

	got := frameRec.all()
	if got[0].Origin != "http://localhost:3000" || got[1].Data != "after" {
		t.Fatalf("frame got %+v", got)
	}
}

func TestRelayClientCannotForgeOrigin(t *testing.T) {
	relay := NewRelay(nil)
	srv := newRelayServer(t, relay)

	hostWin := NewWindow("http://localhost:3000")
	defer hostWin.Close()
	rec := &recorder{}
	hostWin.AddMessageListener(rec.listen)
	dial(t, srv, RoleHost, "http://localhost:3000", hostWin)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?widgetId=wd-1&key=k1&role=frame"
	header := http.Header{"Origin": {"https://evil.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(Frame{Origin: "http://localhost:5173", TargetOrigin: "*", Data: SignalAck}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(rec.all()) == 1 })
	if ev := rec.all()[0]; ev.Origin != "https://evil.example" {
		t.Fatalf("forged origin passed through: %+v", ev)
	}
}

func TestRelayRejectsDuplicateRole(t *testing.T) {
	relay := NewRelay(nil)
	srv := newRelayServer(t, relay)

	dial(t, srv, RoleHost, "http://localhost:3000", nil)
	waitFor(t, func() bool { return relay.PeerCount("wd-1", "k1") == 1 })

	second := dial(t, srv, RoleHost, "http://localhost:3000", nil)
	select {
	case <-second.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("duplicate host connection was not closed")
	}
	if relay.PeerCount("wd-1", "k1") != 1 {
		t.Fatal("duplicate peer registered")
	}
}

func TestRelayReleasesSilentPeer(t *testing.T) {
	relay := NewRelay(nil)
	relay.setKeepalive(200 * time.Millisecond)
	srv := newRelayServer(t, relay)

	// a raw connection that never reads never answers pings
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?widgetId=wd-1&key=k1&role=" + string(RoleHost)
	header := http.Header{"Origin": []string{"http://localhost:3000"}}
	silent, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatal(err)
	}
	defer silent.Close()

	waitFor(t, func() bool { return relay.PeerCount("wd-1", "k1") == 1 })
	waitFor(t, func() bool { return relay.PeerCount("wd-1", "k1") == 0 })

	// the slot is free again, and a responsive peer outlives several keepalive windows
	live := dial(t, srv, RoleHost, "http://localhost:3000", nil)
	waitFor(t, func() bool { return relay.PeerCount("wd-1", "k1") == 1 })
	select {
	case <-live.Done():
		t.Fatal("responsive peer was dropped")
	case <-time.After(time.Second):
	}
	if relay.PeerCount("wd-1", "k1") != 1 {
		t.Fatal("responsive peer lost its slot")
	}
}
