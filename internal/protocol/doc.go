// Package protocol defines the PairMesh wire envelopes and their codecs.
//
// Every frame on a client connection is one Envelope. Two codecs exist,
// negotiated with the WebSocket subprotocol header:
//
//   - pairmesh.v1.json     JSON text frames (default)
//   - pairmesh.v1.msgpack  MessagePack binary frames
//
// Relay bodies are opaque. A body keeps the encoding it arrived in and is
// only re-encoded when the receiving connection speaks the other codec.
package protocol
