package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMessage_CarriesTypeAndBody(t *testing.T) {
	// GIVEN an open-socket message
	msg := OpenEPRSocketMessage{AppID: 2, SocketID: 1, RemoteNodeID: 1, MinFidelity: 0.85}
	raw, err := EncodeMessage(MsgOpenEprSocket, msg)
	require.NoError(t, err)

	// WHEN the envelope is opened on the other side
	typ, body, err := DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, MsgOpenEprSocket, typ)

	var got OpenEPRSocketMessage
	require.NoError(t, DecodeBody(typ, body, &got))
	assert.Equal(t, msg, got)
}

func TestDecodeMessage_GarbageFails(t *testing.T) {
	_, _, err := DecodeMessage([]byte{0xff, 0x00, 0x13})
	assert.Error(t, err)
}

func TestMemorySnapshot_ReadersPanicOnUnknownAddresses(t *testing.T) {
	snap := &MemorySnapshot{
		Registers: map[string][]int64{"M": make([]int64, RegsPerGroup)},
		Arrays:    map[int32][]*int64{0: make([]*int64, 2)},
	}
	assert.NotPanics(t, func() { snap.Register(M(0)) })
	assert.Panics(t, func() { snap.Register(R(0)) })
	assert.Panics(t, func() { snap.ArraySlice(1, 0, 1) })
	assert.Panics(t, func() { snap.ArraySlice(0, 0, 3) })
	assert.Len(t, snap.Array(0), 2)
}
