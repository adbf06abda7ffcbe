package stack

import (
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/mitchellh/mapstructure"

	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// ClassicalSocket is a program's ordered, reliable string channel to the
// peer program on another node. Delivery takes the channel's latency;
// messages arrive in send order.
type ClassicalSocket struct {
	port   *sim.Port
	local  string
	remote string
}

// Send puts a message on the channel; it never blocks.
func (s *ClassicalSocket) Send(msg string) {
	s.port.Send(msg)
}

// Recv blocks until the next message arrives.
func (s *ClassicalSocket) Recv(t *sim.Task) string {
	msg, ok := s.port.Recv(t).(string)
	if !ok {
		panic(fmt.Sprintf("csocket %s<->%s: non-string message", s.local, s.remote))
	}
	return msg
}

// SendInt sends an integer as its decimal form.
func (s *ClassicalSocket) SendInt(v int) {
	s.Send(strconv.Itoa(v))
}

// RecvInt blocks for the next message and parses it as an integer.
func (s *ClassicalSocket) RecvInt(t *sim.Task) (int, error) {
	msg := s.Recv(t)
	v, err := strconv.Atoi(msg)
	if err != nil {
		return 0, fmt.Errorf("csocket %s<->%s: expected integer, got %q: %w", s.local, s.remote, msg, err)
	}
	return v, nil
}

// SendStructured sends a struct encoded as a self-describing message.
func (s *ClassicalSocket) SendStructured(v any) error {
	data, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("csocket %s<->%s: encoding structured message: %w", s.local, s.remote, err)
	}
	s.Send(string(data))
	return nil
}

// RecvStructured blocks for the next message and decodes it into out, which
// must be a pointer to a struct. Field names are matched case-insensitively.
func (s *ClassicalSocket) RecvStructured(t *sim.Task, out any) error {
	msg := s.Recv(t)
	var generic map[string]any
	if err := cbor.Unmarshal([]byte(msg), &generic); err != nil {
		return fmt.Errorf("csocket %s<->%s: decoding structured message: %w", s.local, s.remote, err)
	}
	if err := mapstructure.Decode(generic, out); err != nil {
		return fmt.Errorf("csocket %s<->%s: mapping structured message: %w", s.local, s.remote, err)
	}
	return nil
}
