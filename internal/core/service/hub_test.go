package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/protocol"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

type client struct {
	conn  *fakeConn
	id    string
	token string
}

// join connects and admits a new client.
func join(t *testing.T, h *Hub, name string) *client {
	t.Helper()
	conn := newFakeConn(name)
	res, err := h.Connect(context.Background(), conn)
	if err != nil {
		t.Fatalf("Connect(%s) error = %v", name, err)
	}
	h.Admit(context.Background(), res.Session.ID)
	return &client{conn: conn, id: res.Session.ID, token: res.Token}
}

func roomOf(t *testing.T, c *client) string {
	t.Helper()
	env, ok := c.conn.Last(protocol.TypePaired)
	if !ok {
		t.Fatalf("%s was not paired; frames = %v", c.conn.ID(), c.conn.Types())
	}
	return env.Room
}

func TestHub_PairsInArrivalOrder(t *testing.T) {
	h, metrics := newTestHub(t, DefaultHubConfig())

	a := join(t, h, "a")
	b := join(t, h, "b")
	c := join(t, h, "c")
	d := join(t, h, "d")

	ab, cd := roomOf(t, a), roomOf(t, c)
	if roomOf(t, b) != ab {
		t.Errorf("b room = %s, want %s", roomOf(t, b), ab)
	}
	if roomOf(t, d) != cd {
		t.Errorf("d room = %s, want %s", roomOf(t, d), cd)
	}
	if ab == cd {
		t.Error("both pairs share a room")
	}

	room, ok := h.Rooms.Get(ab)
	if !ok {
		t.Fatalf("Rooms.Get(%s) not found", ab)
	}
	if room.Members != [2]string{a.id, b.id} {
		t.Errorf("members = %v, want [%s %s]", room.Members, a.id, b.id)
	}
	for _, cl := range []*client{a, b, c, d} {
		s, _ := h.Registry.Get(cl.id)
		if s.State != domain.StatePaired {
			t.Errorf("%s state = %s, want paired", cl.conn.ID(), s.State)
		}
	}
	if v := testutil.ToFloat64(metrics.RoomsCreated); v != 2 {
		t.Errorf("RoomsCreated = %v, want 2", v)
	}
	if h.Matchmaker.Len() != 0 {
		t.Errorf("queue depth = %d, want 0", h.Matchmaker.Len())
	}
}

func TestHub_Relay(t *testing.T) {
	h, _ := newTestHub(t, DefaultHubConfig())
	ctx := context.Background()

	a := join(t, h, "a")
	b := join(t, h, "b")

	body := protocol.JSONBody([]byte(`{"sdp":"offer"}`))
	if err := h.Relay(ctx, a.id, protocol.Relay(protocol.TypeSignal, body)); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}

	got, ok := b.conn.Last(protocol.TypeSignal)
	if !ok {
		t.Fatal("b did not receive signal")
	}
	if string(got.Body.Raw) != `{"sdp":"offer"}` {
		t.Errorf("body = %s, want unchanged", got.Body.Raw)
	}
	if a.conn.Count(protocol.TypeSignal) != 0 {
		t.Error("sender received its own signal")
	}
}

func TestHub_RelayRejectsUnportableBody(t *testing.T) {
	h, metrics := newTestHub(t, DefaultHubConfig())
	ctx := context.Background()

	a := join(t, h, "a")
	b := join(t, h, "b")

	// fixmap{bin8("A"): "a"} has no JSON form
	body := protocol.Body{Raw: []byte{0x81, 0xc4, 0x01, 'A', 0xa1, 'a'}, Format: protocol.FormatMsgpack}
	err := h.Relay(ctx, a.id, protocol.Relay(protocol.TypeMessage, body))
	if !errors.Is(err, domain.ErrMalformedMessage) {
		t.Errorf("Relay() error = %v, want ErrMalformedMessage", err)
	}
	if n := b.conn.Count(protocol.TypeMessage); n != 0 {
		t.Errorf("b received %d messages, want 0", n)
	}
	if v := testutil.ToFloat64(metrics.RelayMessages.WithLabelValues("rejected")); v != 1 {
		t.Errorf("RelayMessages{rejected} = %v, want 1", v)
	}
	if v := testutil.ToFloat64(metrics.RelayMessages.WithLabelValues("sent")); v != 0 {
		t.Errorf("RelayMessages{sent} = %v, want 0", v)
	}
}

func TestHub_RelayNotInRoom(t *testing.T) {
	h, _ := newTestHub(t, DefaultHubConfig())
	a := join(t, h, "a")

	err := h.Relay(context.Background(), a.id, protocol.Relay(protocol.TypeMessage, protocol.TextBody("hi")))
	if !errors.Is(err, domain.ErrNotInRoom) {
		t.Errorf("Relay() error = %v, want ErrNotInRoom", err)
	}
}

func TestHub_ReconnectKeepsRoom(t *testing.T) {
	h, _ := newTestHub(t, DefaultHubConfig())
	ctx := context.Background()

	a := join(t, h, "a")
	b := join(t, h, "b")
	room := roomOf(t, a)

	if err := h.Disconnect(ctx, a.id, a.conn); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	// b keeps talking while a is away
	if err := h.Relay(ctx, b.id, protocol.Relay(protocol.TypeMessage, protocol.TextBody("still there?"))); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}

	conn := newFakeConn("a2")
	s, err := h.Reconnect(ctx, a.token, conn)
	if err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if s.State != domain.StatePaired || s.RoomID != room {
		t.Errorf("session = %s/%s, want paired/%s", s.State, s.RoomID, room)
	}

	types := conn.Types()
	if len(types) != 2 || types[0] != protocol.TypeReconnectOK || types[1] != protocol.TypeMessage {
		t.Fatalf("frames = %v, want [reconnect_ok message]", types)
	}
	if ok, _ := conn.Last(protocol.TypeReconnectOK); ok.Room != room {
		t.Errorf("reconnect_ok room = %s, want %s", ok.Room, room)
	}
	if b.conn.Count(protocol.TypePeerLeft) != 0 {
		t.Error("b received peer_left for a brief disconnect")
	}
}

func TestHub_GraceExpiryReleasesPeer(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.Registry.GraceWindow = 20 * time.Millisecond
	h, _ := newTestHub(t, cfg)
	ctx := context.Background()

	a := join(t, h, "a")
	b := join(t, h, "b")
	room := roomOf(t, a)

	h.Disconnect(ctx, a.id, a.conn)

	waitFor(t, "peer_left", func() bool { return b.conn.Count(protocol.TypePeerLeft) > 0 })
	time.Sleep(30 * time.Millisecond)
	if n := b.conn.Count(protocol.TypePeerLeft); n != 1 {
		t.Errorf("peer_left count = %d, want 1", n)
	}
	if _, ok := h.Rooms.Get(room); ok {
		t.Error("room still active")
	}
	s, _ := h.Registry.Get(b.id)
	if s.State != domain.StatePending || s.RoomID != "" {
		t.Errorf("b = %s/%q, want pending without room", s.State, s.RoomID)
	}
	if h.Matchmaker.Len() != 1 {
		t.Errorf("queue depth = %d, want 1", h.Matchmaker.Len())
	}

	// The token is now dead
	if _, err := h.Reconnect(ctx, a.token, newFakeConn("a2")); !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("Reconnect() error = %v, want ErrTokenExpired", err)
	}

	// b pairs with the next arrival
	c := join(t, h, "c")
	if roomOf(t, b) != roomOf(t, c) {
		t.Error("b and c were not paired")
	}
}

func TestHub_LeaveTwice(t *testing.T) {
	h, _ := newTestHub(t, DefaultHubConfig())
	ctx := context.Background()

	a := join(t, h, "a")
	b := join(t, h, "b")

	for i := 0; i < 2; i++ {
		if err := h.Leave(ctx, a.id); err != nil {
			t.Fatalf("Leave() #%d error = %v", i+1, err)
		}
	}

	if n := b.conn.Count(protocol.TypePeerLeft); n != 1 {
		t.Errorf("peer_left count = %d, want 1", n)
	}
	s, _ := h.Registry.Get(a.id)
	if s.State != domain.StateExpired || s.ExpireReason != domain.ReasonLeave {
		t.Errorf("a = %s/%s, want expired/leave", s.State, s.ExpireReason)
	}
	if err := h.Relay(ctx, b.id, protocol.Relay(protocol.TypeMessage, protocol.TextBody("hello?"))); !errors.Is(err, domain.ErrNotInRoom) {
		t.Errorf("Relay() after peer left error = %v, want ErrNotInRoom", err)
	}
}

func TestHub_PeerLeftWhileInGrace(t *testing.T) {
	h, _ := newTestHub(t, DefaultHubConfig())
	ctx := context.Background()

	a := join(t, h, "a")
	b := join(t, h, "b")

	h.Disconnect(ctx, b.id, b.conn)
	h.Leave(ctx, a.id)

	if h.Matchmaker.Len() != 0 {
		t.Errorf("queue depth = %d, want 0 while b is away", h.Matchmaker.Len())
	}

	conn := newFakeConn("b2")
	s, err := h.Reconnect(ctx, b.token, conn)
	if err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if s.State != domain.StatePending {
		t.Errorf("state = %s, want pending", s.State)
	}

	types := conn.Types()
	if len(types) != 2 || types[0] != protocol.TypeReconnectOK || types[1] != protocol.TypePeerLeft {
		t.Fatalf("frames = %v, want [reconnect_ok peer_left]", types)
	}
	if ok, _ := conn.Last(protocol.TypeReconnectOK); ok.Room != "" {
		t.Errorf("reconnect_ok room = %q, want empty", ok.Room)
	}
	if h.Matchmaker.Len() != 1 {
		t.Errorf("queue depth = %d, want 1", h.Matchmaker.Len())
	}
}

func TestHub_PeerLeftWhileSocketClosing(t *testing.T) {
	h, _ := newTestHub(t, DefaultHubConfig())
	ctx := context.Background()

	a := join(t, h, "a")
	b := join(t, h, "b")

	// b's socket refuses frames before its teardown runs
	b.conn.Close()
	h.Leave(ctx, a.id)
	h.Disconnect(ctx, b.id, b.conn)

	conn := newFakeConn("b2")
	if _, err := h.Reconnect(ctx, b.token, conn); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if n := conn.Count(protocol.TypePeerLeft); n != 1 {
		t.Errorf("peer_left delivered %d times, want 1; frames = %v", n, conn.Types())
	}
	if h.Matchmaker.Len() != 1 {
		t.Errorf("queue depth = %d, want 1", h.Matchmaker.Len())
	}
}

func TestHub_DisconnectWhilePending(t *testing.T) {
	h, _ := newTestHub(t, DefaultHubConfig())
	ctx := context.Background()

	a := join(t, h, "a")
	h.Disconnect(ctx, a.id, a.conn)
	if h.Matchmaker.Len() != 0 {
		t.Errorf("queue depth = %d, want 0", h.Matchmaker.Len())
	}

	// Nobody pairs with a session that is away
	b := join(t, h, "b")
	if b.conn.Count(protocol.TypePaired) != 0 {
		t.Error("b paired with a disconnected session")
	}

	// a resumes and pairs with b
	conn := newFakeConn("a2")
	if _, err := h.Reconnect(ctx, a.token, conn); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	env, ok := conn.Last(protocol.TypePaired)
	if !ok {
		t.Fatalf("a not paired after resume; frames = %v", conn.Types())
	}
	if env.Room != roomOf(t, b) {
		t.Error("a and b in different rooms")
	}
}

func TestHub_QueueInconsistencyTeardown(t *testing.T) {
	h, metrics := newTestHub(t, DefaultHubConfig())

	a := join(t, h, "a")

	// Corrupt a: queued while holding a room
	e, _ := h.Registry.sessions.Get(a.id)
	e.mu.Lock()
	e.session.RoomID = "pmrm-01arz3ndektsv4rrffq69g5fav"
	e.mu.Unlock()

	b := join(t, h, "b")

	s, _ := h.Registry.Get(a.id)
	if s.State != domain.StateExpired || s.ExpireReason != domain.ReasonTeardown {
		t.Errorf("a = %s/%s, want expired/teardown", s.State, s.ExpireReason)
	}
	if got := h.Matchmaker.Snapshot(); len(got) != 1 || got[0] != b.id {
		t.Errorf("queue = %v, want [%s]", got, b.id)
	}
	if v := testutil.ToFloat64(metrics.QueueInconsistencies); v != 1 {
		t.Errorf("QueueInconsistencies = %v, want 1", v)
	}
}

func TestHub_Discard(t *testing.T) {
	h, _ := newTestHub(t, DefaultHubConfig())
	ctx := context.Background()

	res, err := h.Connect(ctx, newFakeConn("a"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	h.Discard(ctx, res.Session.ID)
	h.Discard(ctx, res.Session.ID)

	s, _ := h.Registry.Get(res.Session.ID)
	if s.ExpireReason != domain.ReasonSuperseded {
		t.Errorf("reason = %s, want superseded", s.ExpireReason)
	}
}

func TestHub_AdmitAfterDiscard(t *testing.T) {
	h, metrics := newTestHub(t, DefaultHubConfig())
	ctx := context.Background()

	res, err := h.Connect(ctx, newFakeConn("a"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	// The handshake timer fires after a resume already discarded the session
	h.Discard(ctx, res.Session.ID)
	h.Admit(ctx, res.Session.ID)

	if h.Matchmaker.Len() != 0 {
		t.Errorf("queue depth = %d, want 0", h.Matchmaker.Len())
	}
	if st := h.Stats(); st.QueueDepth != 0 {
		t.Errorf("Stats().QueueDepth = %d, want 0", st.QueueDepth)
	}
	if v := testutil.ToFloat64(metrics.QueueInconsistencies); v != 0 {
		t.Errorf("QueueInconsistencies = %v, want 0", v)
	}
}

func TestHub_ReconnectMetrics(t *testing.T) {
	h, metrics := newTestHub(t, DefaultHubConfig())
	ctx := context.Background()

	a := join(t, h, "a")
	h.Reconnect(ctx, a.token, newFakeConn("dup"))
	h.Reconnect(ctx, "pmtk_bogus", newFakeConn("bogus"))

	tests := []struct {
		result string
		want   float64
	}{
		{"already_bound", 1},
		{"unknown", 1},
		{"ok", 0},
	}
	for _, tt := range tests {
		t.Run(tt.result, func(t *testing.T) {
			if v := testutil.ToFloat64(metrics.Reconnects.WithLabelValues(tt.result)); v != tt.want {
				t.Errorf("Reconnects{%s} = %v, want %v", tt.result, v, tt.want)
			}
		})
	}
}

func TestHub_Stats(t *testing.T) {
	h, _ := newTestHub(t, DefaultHubConfig())

	join(t, h, "a")
	join(t, h, "b")
	join(t, h, "c")

	st := h.Stats()
	if st.RoomsActive != 1 {
		t.Errorf("RoomsActive = %d, want 1", st.RoomsActive)
	}
	if st.QueueDepth != 1 {
		t.Errorf("QueueDepth = %d, want 1", st.QueueDepth)
	}
	if st.Sessions[domain.StatePaired] != 2 || st.Sessions[domain.StatePending] != 1 {
		t.Errorf("Sessions = %v, want 2 paired 1 pending", st.Sessions)
	}

	snap := h.MetricSnapshot()
	if snap.Sessions["paired"] != 2 || snap.QueueDepth != 1 {
		t.Errorf("MetricSnapshot() = %+v", snap)
	}
}

func TestHub_RunSweeper(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.Registry.TombstoneTTL = 0
	h, _ := newTestHub(t, cfg)

	a := join(t, h, "a")
	h.Leave(context.Background(), a.id)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	waitFor(t, "sweep", func() bool { return h.Registry.Len() == 0 })
	cancel()
	<-done
}

func TestHub_LogsToOwnLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New(logger.Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	h, err := NewHub(DefaultHubConfig(), log, metric.NewRegistry())
	if err != nil {
		t.Fatalf("NewHub() error = %v", err)
	}

	join(t, h, "a")
	join(t, h, "b")

	if !strings.Contains(buf.String(), "room created") {
		t.Errorf("hub logger output = %q, want room created", buf.String())
	}
}
