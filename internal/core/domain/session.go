package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// SessionIDPrefix is the prefix for session IDs.
	SessionIDPrefix = "pmss-"

	// ConnIDPrefix is the prefix for gateway connection IDs.
	ConnIDPrefix = "pmcn-"

	// idLength is prefix (5) + ULID (26).
	idLength = 31
)

// SessionState is the position of a session in its lifecycle.
type SessionState string

const (
	// StatePending means the session is connected and waiting for a peer.
	StatePending SessionState = "pending"

	// StatePaired means the session is a member of an active room.
	StatePaired SessionState = "paired"

	// StateGrace means the connection dropped and the session may still be
	// resumed with its token.
	StateGrace SessionState = "disconnected_grace"

	// StateExpired is terminal.
	StateExpired SessionState = "expired"
)

// AllStates lists every state in lifecycle order.
var AllStates = []SessionState{StatePending, StatePaired, StateGrace, StateExpired}

var sessionTransitions = map[SessionState][]SessionState{
	StatePending: {StatePaired, StateGrace, StateExpired},
	StatePaired:  {StatePending, StateGrace, StateExpired},
	StateGrace:   {StatePaired, StatePending, StateExpired},
	StateExpired: nil,
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsLive reports whether the state has a bound connection.
func (s SessionState) IsLive() bool {
	return s == StatePending || s == StatePaired
}

// ExpireReason records why a session reached StateExpired.
type ExpireReason string

const (
	ReasonLeave        ExpireReason = "leave"
	ReasonGraceTimeout ExpireReason = "grace_timeout"
	ReasonSuperseded   ExpireReason = "superseded"
	ReasonTeardown     ExpireReason = "teardown"
)

// Session is the server-side record of one anonymous participant.
//
// The plaintext token is never held here; TokenHash is the keyed digest
// used by the registry index.
type Session struct {
	// ID is the unique identifier for the session.
	// Format: pmss-{ulid_lowercase}, 31 characters total.
	ID string `json:"id"`

	// TokenHash is the keyed hash of the resume token (pmth_...).
	TokenHash string `json:"-"`

	// State is the current lifecycle state.
	State SessionState `json:"state"`

	// RoomID is set while the session belongs to a room.
	RoomID string `json:"room_id,omitempty"`

	// CreatedAt is the creation timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// LastSeenAt is the last inbound activity (Unix milliseconds).
	LastSeenAt int64 `json:"last_seen_at"`

	// DisconnectedAt is set while in StateGrace (Unix milliseconds).
	DisconnectedAt int64 `json:"disconnected_at,omitempty"`

	// ExpiredAt is set once the session is expired (Unix milliseconds).
	ExpiredAt int64 `json:"expired_at,omitempty"`

	// ExpireReason is set together with ExpiredAt.
	ExpireReason ExpireReason `json:"expire_reason,omitempty"`

	// Version increments on every state transition.
	Version uint64 `json:"version"`
}

// NewSession creates a pending session bound to the given token hash.
func NewSession(tokenHash string, now time.Time) (*Session, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}

	ms := now.UnixMilli()
	return &Session{
		ID:         id,
		TokenHash:  tokenHash,
		State:      StatePending,
		CreatedAt:  ms,
		LastSeenAt: ms,
		Version:    1,
	}, nil
}

// GenerateSessionID generates a new session ID using ULID.
// Format: pmss-{ulid_lowercase}, 31 characters total.
func GenerateSessionID() (string, error) {
	return generateID(SessionIDPrefix)
}

// GenerateConnID generates a gateway connection ID.
// Format: pmcn-{ulid_lowercase}, 31 characters total.
func GenerateConnID() (string, error) {
	return generateID(ConnIDPrefix)
}

func generateID(prefix string) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return prefix + strings.ToLower(id.String()), nil
}

// Transition moves the session to next, maintaining the timestamps that
// belong to each state. Leaving StateGrace clears DisconnectedAt.
func (s *Session) Transition(next SessionState, now time.Time) error {
	if !s.State.CanTransitionTo(next) {
		return ErrInvalidTransition.WithDetails(fmt.Sprintf("%s -> %s", s.State, next))
	}

	ms := now.UnixMilli()
	switch next {
	case StateGrace:
		s.DisconnectedAt = ms
	case StateExpired:
		s.ExpiredAt = ms
	default:
		s.DisconnectedAt = 0
		s.LastSeenAt = ms
	}
	s.State = next
	s.Version++
	return nil
}

// Expire moves the session to StateExpired, recording reason.
// Expiring an expired session returns ErrSessionExpired.
func (s *Session) Expire(reason ExpireReason, now time.Time) error {
	if s.State == StateExpired {
		return ErrSessionExpired
	}
	if err := s.Transition(StateExpired, now); err != nil {
		return err
	}
	s.ExpireReason = reason
	return nil
}

// Touch records inbound activity.
func (s *Session) Touch(now time.Time) {
	s.LastSeenAt = now.UnixMilli()
}

// GraceDeadline returns when a session in StateGrace stops being resumable.
// Returns the zero time for other states.
func (s *Session) GraceDeadline(window time.Duration) time.Time {
	if s.State != StateGrace || s.DisconnectedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.DisconnectedAt).Add(window)
}

// GraceElapsed reports whether a session in StateGrace is past its deadline.
func (s *Session) GraceElapsed(window time.Duration, now time.Time) bool {
	deadline := s.GraceDeadline(window)
	return !deadline.IsZero() && now.After(deadline)
}

// Clone creates a copy of the session.
func (s *Session) Clone() *Session {
	clone := *s
	return &clone
}

// IsValidSessionID checks if a string is a valid session ID format.
func IsValidSessionID(id string) bool {
	return isValidID(id, SessionIDPrefix)
}

func isValidID(id, prefix string) bool {
	id = strings.ToLower(id)
	if !strings.HasPrefix(id, prefix) || len(id) != idLength {
		return false
	}
	_, err := ulid.Parse(strings.ToUpper(id[len(prefix):]))
	return err == nil
}
