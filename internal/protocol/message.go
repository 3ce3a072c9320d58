package protocol

import (
	"github.com/yndnr/pairmesh-go/internal/core/domain"
)

// Type is the kind of an envelope.
type Type string

const (
	TypeWelcome         Type = "welcome"
	TypeReconnect       Type = "reconnect"
	TypeReconnectOK     Type = "reconnect_ok"
	TypeReconnectFailed Type = "reconnect_failed"
	TypePaired          Type = "paired"
	TypeMessage         Type = "message"
	TypeSignal          Type = "signal"
	TypePeerLeft        Type = "peer_left"
	TypeLeave           Type = "leave"
)

// IsRelay reports whether the type carries an opaque body between peers.
func (t Type) IsRelay() bool {
	return t == TypeMessage || t == TypeSignal
}

// IsInbound reports whether clients may send the type.
func (t Type) IsInbound() bool {
	switch t {
	case TypeReconnect, TypeLeave, TypeMessage, TypeSignal:
		return true
	}
	return false
}

// IsOutbound reports whether the server may send the type.
func (t Type) IsOutbound() bool {
	switch t {
	case TypeWelcome, TypeReconnectOK, TypeReconnectFailed, TypePaired,
		TypePeerLeft, TypeMessage, TypeSignal:
		return true
	}
	return false
}

// Format identifies the encoding of an opaque body.
type Format uint8

const (
	FormatNone Format = iota
	FormatJSON
	FormatMsgpack
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	}
	return "none"
}

// Body is an uninterpreted relay payload tagged with its encoding.
type Body struct {
	Raw    []byte
	Format Format
}

// IsEmpty reports whether the body carries no payload.
func (b Body) IsEmpty() bool {
	return len(b.Raw) == 0
}

// Envelope is a single protocol frame.
type Envelope struct {
	Type  Type
	Token string
	Room  string
	Body  Body
}

// Welcome announces a freshly issued resume token.
func Welcome(token string) Envelope {
	return Envelope{Type: TypeWelcome, Token: token}
}

// Paired announces room membership.
func Paired(room string) Envelope {
	return Envelope{Type: TypePaired, Room: room}
}

// ReconnectOK confirms a resume. room is empty for an unpaired session.
func ReconnectOK(room string) Envelope {
	return Envelope{Type: TypeReconnectOK, Room: room}
}

// ReconnectFailed rejects a resume.
func ReconnectFailed() Envelope {
	return Envelope{Type: TypeReconnectFailed}
}

// PeerLeft tells the remaining member that its room closed.
func PeerLeft() Envelope {
	return Envelope{Type: TypePeerLeft}
}

// Reconnect asks the server to resume the session bound to token.
func Reconnect(token string) Envelope {
	return Envelope{Type: TypeReconnect, Token: token}
}

// Leave ends the sender's session.
func Leave() Envelope {
	return Envelope{Type: TypeLeave}
}

// Relay builds a message or signal envelope.
func Relay(t Type, body Body) Envelope {
	return Envelope{Type: t, Body: body}
}

// Validate checks the fields each type requires.
func (e Envelope) Validate() error {
	switch e.Type {
	case "":
		return domain.ErrMalformedMessage.WithDetails("missing type")
	case TypeWelcome, TypeReconnect:
		if e.Token == "" {
			return domain.ErrMalformedMessage.WithDetails(string(e.Type) + " requires token")
		}
	case TypePaired:
		if e.Room == "" {
			return domain.ErrMalformedMessage.WithDetails("paired requires room")
		}
	case TypeReconnectOK, TypeReconnectFailed, TypePeerLeft, TypeLeave,
		TypeMessage, TypeSignal:
	default:
		return domain.ErrUnknownMessage.WithDetails(string(e.Type))
	}
	return nil
}
