package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewSession(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	session, err := NewSession("pmth_abc", now)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if !strings.HasPrefix(session.ID, SessionIDPrefix) {
		t.Errorf("ID should have prefix %q, got %q", SessionIDPrefix, session.ID)
	}
	if len(session.ID) != 31 {
		t.Errorf("ID length = %d, want 31", len(session.ID))
	}
	if session.State != StatePending {
		t.Errorf("State = %q, want %q", session.State, StatePending)
	}
	if session.CreatedAt != now.UnixMilli() || session.LastSeenAt != session.CreatedAt {
		t.Errorf("timestamps = (%d, %d), want %d", session.CreatedAt, session.LastSeenAt, now.UnixMilli())
	}
	if session.Version != 1 {
		t.Errorf("Version = %d, want 1", session.Version)
	}
	if session.RoomID != "" {
		t.Errorf("RoomID = %q, want empty", session.RoomID)
	}
}

func TestGenerateSessionID(t *testing.T) {
	ids := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id, err := GenerateSessionID()
		if err != nil {
			t.Fatalf("GenerateSessionID() error = %v", err)
		}
		if !IsValidSessionID(id) {
			t.Errorf("Generated ID is not valid: %q", id)
		}
		if ids[id] {
			t.Errorf("Duplicate ID generated: %q", id)
		}
		ids[id] = true
	}
}

func TestGenerateConnID(t *testing.T) {
	id, err := GenerateConnID()
	if err != nil {
		t.Fatalf("GenerateConnID() error = %v", err)
	}
	if !isValidID(id, ConnIDPrefix) {
		t.Errorf("GenerateConnID() = %q, not a valid connection ID", id)
	}
}

func TestIsValidSessionID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"valid ID", "pmss-01arz3ndektsv4rrffq69g5fav", true},
		{"upper case", "PMSS-01ARZ3NDEKTSV4RRFFQ69G5FAV", true},
		{"room prefix", "pmrm-01arz3ndektsv4rrffq69g5fav", false},
		{"no prefix", "01arz3ndektsv4rrffq69g5fav", false},
		{"too short", "pmss-01arz3nd", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidSessionID(tt.id); got != tt.valid {
				t.Errorf("IsValidSessionID(%q) = %v, want %v", tt.id, got, tt.valid)
			}
		})
	}
}

func TestSessionState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to SessionState
		want     bool
	}{
		{StatePending, StatePaired, true},
		{StatePending, StateGrace, true},
		{StatePending, StateExpired, true},
		{StatePaired, StatePending, true},
		{StatePaired, StateGrace, true},
		{StatePaired, StateExpired, true},
		{StateGrace, StatePaired, true},
		{StateGrace, StatePending, true},
		{StateGrace, StateExpired, true},
		{StateExpired, StatePending, false},
		{StateExpired, StatePaired, false},
		{StateExpired, StateGrace, false},
		{StatePending, StatePending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSession_Transition(t *testing.T) {
	t0 := time.UnixMilli(1_700_000_000_000)
	s, err := NewSession("pmth_x", t0)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if err := s.Transition(StatePaired, t0.Add(time.Second)); err != nil {
		t.Fatalf("Transition(paired) error = %v", err)
	}
	if s.Version != 2 {
		t.Errorf("Version = %d, want 2", s.Version)
	}

	lost := t0.Add(2 * time.Second)
	if err := s.Transition(StateGrace, lost); err != nil {
		t.Fatalf("Transition(grace) error = %v", err)
	}
	if s.DisconnectedAt != lost.UnixMilli() {
		t.Errorf("DisconnectedAt = %d, want %d", s.DisconnectedAt, lost.UnixMilli())
	}

	if err := s.Transition(StatePaired, t0.Add(3*time.Second)); err != nil {
		t.Fatalf("Transition(paired) error = %v", err)
	}
	if s.DisconnectedAt != 0 {
		t.Errorf("DisconnectedAt = %d, want 0 after resume", s.DisconnectedAt)
	}

	if err := s.Expire(ReasonLeave, t0.Add(4*time.Second)); err != nil {
		t.Fatalf("Expire() error = %v", err)
	}
	if s.ExpireReason != ReasonLeave || s.ExpiredAt == 0 {
		t.Errorf("Expire() reason = %q at %d", s.ExpireReason, s.ExpiredAt)
	}

	if err := s.Transition(StatePending, t0.Add(5*time.Second)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Transition() from expired error = %v, want %v", err, ErrInvalidTransition)
	}
	if err := s.Expire(ReasonLeave, t0); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("second Expire() error = %v, want %v", err, ErrSessionExpired)
	}
}

func TestSession_GraceElapsed(t *testing.T) {
	t0 := time.UnixMilli(1_700_000_000_000)
	window := 30 * time.Second

	s, _ := NewSession("pmth_x", t0)
	if s.GraceElapsed(window, t0.Add(time.Hour)) {
		t.Error("pending session should never report grace elapsed")
	}

	_ = s.Transition(StateGrace, t0)
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"immediately", t0, false},
		{"before deadline", t0.Add(29 * time.Second), false},
		{"at deadline", t0.Add(window), false},
		{"after deadline", t0.Add(window + time.Millisecond), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.GraceElapsed(window, tt.now); got != tt.want {
				t.Errorf("GraceElapsed() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := s.GraceDeadline(window); !got.Equal(t0.Add(window)) {
		t.Errorf("GraceDeadline() = %v, want %v", got, t0.Add(window))
	}
}

func TestSession_Clone(t *testing.T) {
	s, _ := NewSession("pmth_x", time.Now())
	s.RoomID = "pmrm-a"

	clone := s.Clone()
	clone.RoomID = "pmrm-b"
	clone.State = StateExpired

	if s.RoomID != "pmrm-a" || s.State != StatePending {
		t.Error("Clone() should not share state with the original")
	}
}

func TestSession_MarshalJSON(t *testing.T) {
	s, _ := NewSession("pmth_secret", time.Now())

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "pmth_secret") {
		t.Errorf("token hash leaked into JSON: %s", data)
	}
	if !strings.Contains(string(data), `"state":"pending"`) {
		t.Errorf("JSON missing state: %s", data)
	}
}

func TestSessionState_IsLive(t *testing.T) {
	live := map[SessionState]bool{
		StatePending: true,
		StatePaired:  true,
		StateGrace:   false,
		StateExpired: false,
	}
	for _, st := range AllStates {
		if got := st.IsLive(); got != live[st] {
			t.Errorf("%s.IsLive() = %v, want %v", st, got, live[st])
		}
	}
}
