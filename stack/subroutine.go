package stack

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Subroutine is one linear sequence of instructions belonging to an
// application: the unit of work the handler hands to the processor. It is
// immutable once built; the processor only reads it.
type Subroutine struct {
	AppID  int     `cbor:"app_id"`
	Instrs []Instr `cbor:"instrs"`
}

// Serialize encodes the subroutine to its wire form, carried inside a
// SubroutineMessage.
func (s *Subroutine) Serialize() ([]byte, error) {
	b, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("serialize subroutine: %w", err)
	}
	return b, nil
}

// DeserializeSubroutine decodes a subroutine from its wire form.
func DeserializeSubroutine(b []byte) (*Subroutine, error) {
	var s Subroutine
	if err := cbor.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("deserialize subroutine: %w", err)
	}
	return &s, nil
}
