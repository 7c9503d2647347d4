// Package vxi11err defines the error taxonomy shared by the rpc, portmap,
// and vxi11 packages. Failures of an RPC call, of decoding a reply, and
// device errors reported by an instrument resolve to one of these kinds, so
// callers can branch on Kind instead of string-matching error messages.
// Errors from opening a socket (dialing a TCP or UDP transport, binding or
// sending on a broadcast socket) are returned as plain wrapped errors, not
// as an *Error.
package vxi11err

import "fmt"

// Kind identifies the category of an Error.
type Kind int

const (
	// Timeout indicates a deadline (context or SetDeadline) elapsed waiting
	// for I/O to complete.
	Timeout Kind = iota + 1

	// Framing indicates a transport-level framing violation: a TCP record
	// marking header was malformed, or a fragment exceeded the size limit.
	Framing

	// Malformed indicates a reply decoded structurally but its contents
	// violate the wire format (bad XDR length, unexpected discriminant).
	Malformed

	// RPCRejected indicates the server returned MSG_DENIED. Detail holds
	// the RFC 5531 reject_stat (RPC_MISMATCH or AUTH_ERROR).
	RPCRejected

	// RPCError indicates the server accepted the call but returned a
	// non-SUCCESS accept_stat. Detail holds that accept_stat.
	RPCError

	// Device indicates the VXI-11 instrument returned a non-zero
	// device_error in a Core/Abort/Interrupt channel reply. Detail holds
	// that device error code.
	Device

	// IO wraps an underlying network error (dial, read, write) that isn't
	// itself a timeout.
	IO

	// ChannelClosed indicates an operation was attempted on a link, core
	// channel, or interrupt channel that has already been closed.
	ChannelClosed
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "Timeout"
	case Framing:
		return "Framing"
	case Malformed:
		return "Malformed"
	case RPCRejected:
		return "RPCRejected"
	case RPCError:
		return "RPCError"
	case Device:
		return "Device"
	case IO:
		return "IO"
	case ChannelClosed:
		return "ChannelClosed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Error is the concrete error type returned across package boundaries in
// this module.
type Error struct {
	Kind    Kind
	Detail  uint32 // reject_stat / accept_stat / device_error, meaning depends on Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewTimeout creates a Timeout error.
func NewTimeout(message string, cause error) *Error {
	return &Error{Kind: Timeout, Message: message, Cause: cause}
}

// NewFraming creates a Framing error.
func NewFraming(message string, cause error) *Error {
	return &Error{Kind: Framing, Message: message, Cause: cause}
}

// NewMalformed creates a Malformed error.
func NewMalformed(message string, cause error) *Error {
	return &Error{Kind: Malformed, Message: message, Cause: cause}
}

// NewRPCRejected creates an RPCRejected error; detail is the RFC 5531 reject_stat.
func NewRPCRejected(detail uint32, message string) *Error {
	return &Error{Kind: RPCRejected, Detail: detail, Message: message}
}

// NewRPCError creates an RPCError error; detail is the RFC 5531 accept_stat.
func NewRPCError(detail uint32, message string) *Error {
	return &Error{Kind: RPCError, Detail: detail, Message: message}
}

// NewDevice creates a Device error; detail is the VXI-11 device_error code.
func NewDevice(detail uint32, description string) *Error {
	return &Error{Kind: Device, Detail: detail, Message: description}
}

// NewIO creates an IO error wrapping a network-layer cause.
func NewIO(message string, cause error) *Error {
	return &Error{Kind: IO, Message: message, Cause: cause}
}

// NewChannelClosed creates a ChannelClosed error.
func NewChannelClosed(message string) *Error {
	return &Error{Kind: ChannelClosed, Message: message}
}

// Is reports whether err is a *Error of the given kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var ve *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			ve = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ve != nil && ve.Kind == kind
}
