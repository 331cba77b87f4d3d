// Package core defines core types with zero external dependencies.
package core

import "fmt"

// Direction is the way a packet crosses the attachment point.
type Direction uint8

const (
	Outbound Direction = iota // egress: TCP is turned into TINU
	Inbound                   // ingress: TINU is turned back into TCP
)

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "outbound"
	case Inbound:
		return "inbound"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if d > Inbound {
		return nil, fmt.Errorf("%w: direction %d", ErrConfigInvalid, uint8(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText accepts "outbound"/"egress" and "inbound"/"ingress".
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "outbound", "egress":
		*d = Outbound
	case "inbound", "ingress":
		*d = Inbound
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrConfigInvalid, text)
	}
	return nil
}

// Role is the side of the tunneled connection an attachment point represents.
type Role uint8

const (
	Initiator Role = iota // client side, talks to the designated port
	Responder             // server side, listens on the designated port
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if r > Responder {
		return nil, fmt.Errorf("%w: role %d", ErrConfigInvalid, uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText accepts "initiator"/"client" and "responder"/"server".
func (r *Role) UnmarshalText(text []byte) error {
	switch string(text) {
	case "initiator", "client":
		*r = Initiator
	case "responder", "server":
		*r = Responder
	default:
		return fmt.Errorf("%w: unknown role %q", ErrConfigInvalid, text)
	}
	return nil
}

// Attachment fixes both axes for one interception point.
type Attachment struct {
	Direction Direction
	Role      Role
}

func (a Attachment) String() string {
	return a.Role.String() + "/" + a.Direction.String()
}

// Attachments lists the four entry points: client egress, client ingress,
// server egress and server ingress.
func Attachments() [4]Attachment {
	return [4]Attachment{
		{Direction: Outbound, Role: Initiator},
		{Direction: Inbound, Role: Initiator},
		{Direction: Outbound, Role: Responder},
		{Direction: Inbound, Role: Responder},
	}
}
