package stack

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MsgType discriminates control messages on the host↔handler channel.
type MsgType uint8

const (
	// host → handler
	MsgInitNewApp MsgType = iota
	MsgOpenEprSocket
	MsgSubroutine
	MsgStopApp
	// handler → host
	MsgAppIDReply
	MsgMemorySnapshotReply
	MsgAbortedReply
)

func (t MsgType) String() string {
	switch t {
	case MsgInitNewApp:
		return "init_new_app"
	case MsgOpenEprSocket:
		return "open_epr_socket"
	case MsgSubroutine:
		return "subroutine"
	case MsgStopApp:
		return "stop_app"
	case MsgAppIDReply:
		return "app_id_reply"
	case MsgMemorySnapshotReply:
		return "memory_snapshot_reply"
	case MsgAbortedReply:
		return "aborted_reply"
	}
	return fmt.Sprintf("msg(%d)", uint8(t))
}

// envelope is the wire form of every control message: a type tag plus the
// CBOR encoding of the typed body.
type envelope struct {
	Type MsgType `cbor:"type"`
	Body []byte  `cbor:"body"`
}

// InitNewAppMessage asks the handler to register a new application.
type InitNewAppMessage struct {
	MaxQubits int `cbor:"max_qubits"`
}

// OpenEPRSocketMessage declares an EPR socket for an application before any
// entanglement request can use it.
type OpenEPRSocketMessage struct {
	AppID        int     `cbor:"app_id"`
	SocketID     int     `cbor:"socket_id"`
	RemoteNodeID int     `cbor:"remote_node_id"`
	MinFidelity  float64 `cbor:"min_fidelity"`
}

// SubroutineMessage carries one serialized subroutine for execution.
type SubroutineMessage struct {
	Subroutine []byte `cbor:"subroutine"`
}

// StopAppMessage ends an application's lifecycle.
type StopAppMessage struct {
	AppID int `cbor:"app_id"`
}

// AppIDReply answers an init with the assigned application id.
type AppIDReply struct {
	AppID int `cbor:"app_id"`
}

// AbortedReply reports that a subroutine stopped early because an
// entanglement request was aborted by the link layer.
type AbortedReply struct {
	AppID int `cbor:"app_id"`
}

// MemorySnapshot is the copy of an application's classical memory returned
// to the host after each subroutine.
type MemorySnapshot struct {
	AppID     int                `cbor:"app_id"`
	Registers map[string][]int64 `cbor:"registers"`
	Arrays    map[int32][]*int64 `cbor:"arrays"`
	Qubits    []int              `cbor:"qubits"`
}

// Register reads a register value out of the snapshot.
func (s *MemorySnapshot) Register(r Register) int64 {
	vals, ok := s.Registers[r.Group.String()]
	if !ok || int(r.Index) >= len(vals) {
		panic(fmt.Sprintf("snapshot: no such register %s", r))
	}
	return vals[r.Index]
}

// ArraySlice reads [start, stop) of an array out of the snapshot; unset
// slots are nil.
func (s *MemorySnapshot) ArraySlice(addr int32, start, stop int) []*int64 {
	arr, ok := s.Arrays[addr]
	if !ok {
		panic(fmt.Sprintf("snapshot: array @%d was never declared", addr))
	}
	if start < 0 || stop > len(arr) || start > stop {
		panic(fmt.Sprintf("snapshot: slice @%d[%d:%d] out of bounds (len %d)",
			addr, start, stop, len(arr)))
	}
	out := make([]*int64, stop-start)
	copy(out, arr[start:stop])
	return out
}

// Array reads a whole array out of the snapshot.
func (s *MemorySnapshot) Array(addr int32) []*int64 {
	arr, ok := s.Arrays[addr]
	if !ok {
		panic(fmt.Sprintf("snapshot: array @%d was never declared", addr))
	}
	return s.ArraySlice(addr, 0, len(arr))
}

// EncodeMessage wraps a typed body in an envelope and encodes it.
func EncodeMessage(t MsgType, body any) ([]byte, error) {
	raw, err := cbor.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s body: %w", t, err)
	}
	data, err := cbor.Marshal(envelope{Type: t, Body: raw})
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", t, err)
	}
	return data, nil
}

// DecodeMessage opens an envelope; the caller switches on the returned type
// and decodes the body with DecodeBody.
func DecodeMessage(data []byte) (MsgType, []byte, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return 0, nil, fmt.Errorf("decoding message envelope: %w", err)
	}
	return env.Type, env.Body, nil
}

// DecodeBody decodes an envelope body into the message struct for its type.
func DecodeBody(t MsgType, body []byte, out any) error {
	if err := cbor.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s body: %w", t, err)
	}
	return nil
}
