package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
)

// Subprotocol names.
const (
	SubprotocolJSON    = "pairmesh.v1.json"
	SubprotocolMsgpack = "pairmesh.v1.msgpack"
)

// Codec converts envelopes to and from frame payloads.
type Codec interface {
	// Name returns the subprotocol the codec answers to.
	Name() string

	// Format is the body encoding this codec emits.
	Format() Format

	// Binary reports whether frames are binary rather than text.
	Binary() bool

	Encode(env Envelope) ([]byte, error)
	Decode(data []byte) (Envelope, error)
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// Subprotocols lists supported subprotocols in server preference order.
func Subprotocols() []string {
	return []string{SubprotocolMsgpack, SubprotocolJSON}
}

// Lookup returns the codec for a negotiated subprotocol.
// An empty name selects JSON.
func Lookup(name string) (Codec, error) {
	switch name {
	case "", SubprotocolJSON:
		return JSON, nil
	case SubprotocolMsgpack:
		return Msgpack, nil
	}
	return nil, domain.ErrUnsupportedCodec.WithDetails(name)
}

// ============================================================================
// JSON
// ============================================================================

type jsonWire struct {
	Type  Type            `json:"type"`
	Token string          `json:"token,omitempty"`
	Room  string          `json:"room,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string   { return SubprotocolJSON }
func (jsonCodec) Format() Format { return FormatJSON }
func (jsonCodec) Binary() bool   { return false }

func (jsonCodec) Encode(env Envelope) ([]byte, error) {
	body, err := Transcode(env.Body, FormatJSON)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonWire{
		Type:  env.Type,
		Token: env.Token,
		Room:  env.Room,
		Body:  body.Raw,
	})
}

func (jsonCodec) Decode(data []byte) (Envelope, error) {
	var w jsonWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, domain.ErrMalformedMessage.WithCause(err)
	}
	env := Envelope{Type: w.Type, Token: w.Token, Room: w.Room}
	if len(w.Body) > 0 && string(w.Body) != "null" {
		env.Body = Body{Raw: append([]byte(nil), w.Body...), Format: FormatJSON}
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// ============================================================================
// MessagePack
// ============================================================================

type msgpackWire struct {
	Type  Type               `msgpack:"type"`
	Token string             `msgpack:"token,omitempty"`
	Room  string             `msgpack:"room,omitempty"`
	Body  msgpack.RawMessage `msgpack:"body,omitempty"`
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string   { return SubprotocolMsgpack }
func (msgpackCodec) Format() Format { return FormatMsgpack }
func (msgpackCodec) Binary() bool   { return true }

func (msgpackCodec) Encode(env Envelope) ([]byte, error) {
	body, err := Transcode(env.Body, FormatMsgpack)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(&msgpackWire{
		Type:  env.Type,
		Token: env.Token,
		Room:  env.Room,
		Body:  body.Raw,
	})
}

func (msgpackCodec) Decode(data []byte) (Envelope, error) {
	var w msgpackWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return Envelope{}, domain.ErrMalformedMessage.WithCause(err)
	}
	env := Envelope{Type: w.Type, Token: w.Token, Room: w.Room}
	// 0xc0 is msgpack nil.
	if len(w.Body) > 0 && !(len(w.Body) == 1 && w.Body[0] == 0xc0) {
		env.Body = Body{Raw: append([]byte(nil), w.Body...), Format: FormatMsgpack}
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// ============================================================================
// Transcoding
// ============================================================================

// Transcode re-encodes a body into the target format. The value is decoded
// generically and re-encoded; its meaning is never inspected.
//
// JSON numbers keep their integer precision. MessagePack map keys that
// are scalars become JSON object keys the way encoding/json formats
// integer-keyed maps; any other key is refused.
func Transcode(b Body, to Format) (Body, error) {
	if b.IsEmpty() || b.Format == to {
		return b, nil
	}

	var (
		v   any
		err error
	)
	switch b.Format {
	case FormatJSON:
		v, err = decodeJSONValue(b.Raw)
	case FormatMsgpack:
		v, err = decodeMsgpackValue(b.Raw)
	default:
		return Body{}, fmt.Errorf("transcode: unknown source format %s", b.Format)
	}
	if err != nil {
		return Body{}, domain.ErrMalformedMessage.WithCause(err)
	}

	var raw []byte
	switch to {
	case FormatJSON:
		raw, err = json.Marshal(v)
	case FormatMsgpack:
		raw, err = msgpack.Marshal(v)
	default:
		return Body{}, fmt.Errorf("transcode: unknown target format %s", to)
	}
	if err != nil {
		return Body{}, domain.ErrMalformedMessage.WithCause(
			fmt.Errorf("transcode %s to %s: %w", b.Format, to, err))
	}
	return Body{Raw: raw, Format: to}, nil
}

// Portable checks that b can be delivered to a peer on either codec.
func Portable(b Body) error {
	if b.IsEmpty() {
		return nil
	}
	to := FormatJSON
	if b.Format == FormatJSON {
		to = FormatMsgpack
	}
	_, err := Transcode(b, to)
	return err
}

func decodeJSONValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return numbers(v), nil
}

// numbers replaces json.Number with the narrowest Go number that holds it.
func numbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return u
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = numbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = numbers(e)
		}
	}
	return v
}

func decodeMsgpackValue(raw []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.SetMapDecoder(decodeStringKeyedMap)

	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, err
	}
	if _, err := dec.PeekCode(); err != io.EOF {
		return nil, errors.New("trailing data after msgpack value")
	}
	return v, nil
}

// decodeStringKeyedMap decodes a map of any scalar keys into a
// map[string]any. Nested maps come back through the same decoder.
func decodeStringKeyedMap(d *msgpack.Decoder) (any, error) {
	n, err := d.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}

	m := make(map[string]any, n)
	for i := 0; i < n; i++ {
		k, err := d.DecodeInterface()
		if err != nil {
			return nil, err
		}
		key, err := mapKey(k)
		if err != nil {
			return nil, err
		}
		if m[key], err = d.DecodeInterface(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func mapKey(k any) (string, error) {
	switch t := k.(type) {
	case string:
		return t, nil
	case int8:
		return strconv.FormatInt(int64(t), 10), nil
	case int16:
		return strconv.FormatInt(int64(t), 10), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint8:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	}
	return "", fmt.Errorf("unsupported map key of type %T", k)
}

// JSONBody wraps an already-encoded JSON value.
func JSONBody(raw []byte) Body {
	return Body{Raw: raw, Format: FormatJSON}
}

// TextBody encodes s as a JSON string body.
func TextBody(s string) Body {
	raw, _ := json.Marshal(s)
	return JSONBody(raw)
}
