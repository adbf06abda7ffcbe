package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubroutine_SerializeRoundTrip(t *testing.T) {
	// A representative mix of operand shapes.
	sub := &Subroutine{AppID: 3, Instrs: []Instr{
		{Op: OpSet, Reg: R(0), Imm: 10},
		{Op: OpArray, Reg: R(0), Addr: 1},
		{Op: OpStore, Reg: R(0), Entry: ArrayEntry{Addr: 1, Index: Imm(4)}},
		{Op: OpBlt, Reg0: R(0), Reg1: R(1), Line: 7},
		{Op: OpRotX, Reg: Q(0), AngleNum: 3, AngleDenom: 1},
		{Op: OpCreateEPR, RegRemote: R(1), RegSocket: R(2),
			RegQubits: R(3), RegArgs: R(4), RegResults: R(5)},
		{Op: OpWaitAll, Slice: ArraySlice{Addr: 2, Start: Imm(0), Stop: FromReg(R(0))}},
	}}

	data, err := sub.Serialize()
	require.NoError(t, err)
	got, err := DeserializeSubroutine(data)
	require.NoError(t, err)
	assert.Equal(t, sub, got)
}

func TestDeserializeSubroutine_GarbageFails(t *testing.T) {
	_, err := DeserializeSubroutine([]byte{0x00, 0xff})
	assert.Error(t, err)
}
