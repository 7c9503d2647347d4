package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the rpc, portmap, and
// vxi11 packages. Use these keys consistently across all log statements so
// entries can be aggregated and queried by field.
const (
	// ========================================================================
	// Distributed tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for call correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// RPC call identity
	// ========================================================================
	KeyProgram   = "program"   // ONC RPC program number (portmap, Core, Abort, Interrupt)
	KeyVersion   = "version"   // RPC program version
	KeyProcedure = "procedure" // Procedure number or name within a program
	KeyXID       = "xid"       // RPC transaction ID

	// ========================================================================
	// Transport
	// ========================================================================
	KeyRemoteAddr = "remote_addr" // Peer address (dial target or broadcast sender)
	KeyLocalAddr  = "local_addr"  // Local bind address, notably for broadcast sockets
	KeyNetwork    = "network"     // "tcp" or "udp"

	// ========================================================================
	// VXI-11 session state
	// ========================================================================
	KeyLinkID = "link_id" // VXI-11 link identifier (lid) returned by create_link
	KeyDevice = "device"  // Device name passed to create_link (e.g. "inst0")
	KeyChannel = "channel" // Channel role: core, abort, or interrupt

	// ========================================================================
	// I/O
	// ========================================================================
	KeyOffset       = "offset"        // Byte offset within a multi-fragment transfer
	KeyBytesRead    = "bytes_read"    // Actual bytes read
	KeyBytesWritten = "bytes_written" // Actual bytes written
	KeyEnd          = "end"           // END flag observed on a device_read/device_write boundary

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs    = "duration_ms"     // Operation duration in milliseconds
	KeyError         = "error"           // Error message
	KeyDeviceErrCode = "device_err_code" // VXI-11 device_error code from a Core/Abort/Interrupt reply
	KeyAttempt       = "attempt"         // Retry attempt number
)

// Program returns a slog.Attr for an RPC program number.
func Program(prog uint32) slog.Attr {
	return slog.Any(KeyProgram, prog)
}

// Version returns a slog.Attr for an RPC program version.
func Version(vers uint32) slog.Attr {
	return slog.Any(KeyVersion, vers)
}

// Procedure returns a slog.Attr for a procedure number.
func Procedure(proc uint32) slog.Attr {
	return slog.Any(KeyProcedure, proc)
}

// ProcedureName returns a slog.Attr for a human-readable procedure name.
func ProcedureName(name string) slog.Attr {
	return slog.String(KeyProcedure, name)
}

// XID returns a slog.Attr for an RPC transaction ID.
func XID(xid uint32) slog.Attr {
	return slog.Any(KeyXID, xid)
}

// RemoteAddr returns a slog.Attr for a peer network address.
func RemoteAddr(addr string) slog.Attr {
	return slog.String(KeyRemoteAddr, addr)
}

// LocalAddr returns a slog.Attr for a local bind address.
func LocalAddr(addr string) slog.Attr {
	return slog.String(KeyLocalAddr, addr)
}

// Network returns a slog.Attr for the transport network ("tcp" or "udp").
func Network(network string) slog.Attr {
	return slog.String(KeyNetwork, network)
}

// LinkID returns a slog.Attr for a VXI-11 link identifier.
func LinkID(lid int32) slog.Attr {
	return slog.Int(KeyLinkID, int(lid))
}

// Device returns a slog.Attr for a VXI-11 device name.
func Device(name string) slog.Attr {
	return slog.String(KeyDevice, name)
}

// Channel returns a slog.Attr for the VXI-11 channel role (core/abort/interrupt).
func Channel(role string) slog.Attr {
	return slog.String(KeyChannel, role)
}

// Offset returns a slog.Attr for a byte offset within a transfer.
func Offset(off int) slog.Attr {
	return slog.Int(KeyOffset, off)
}

// BytesRead returns a slog.Attr for actual bytes read.
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// BytesWritten returns a slog.Attr for actual bytes written.
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// End returns a slog.Attr for the END flag on a read/write boundary.
func End(end bool) slog.Attr {
	return slog.Bool(KeyEnd, end)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DeviceErrCode returns a slog.Attr for a VXI-11 device_error code.
func DeviceErrCode(code uint32) slog.Attr {
	return slog.Any(KeyDeviceErrCode, code)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// KeyHandle is the field key for an opaque handle (e.g. an SRQ handle).
const KeyHandle = "handle"

// Handle returns a slog.Attr for an opaque handle, rendered as hex.
func Handle(b []byte) slog.Attr {
	return slog.String(KeyHandle, fmt.Sprintf("%x", b))
}
