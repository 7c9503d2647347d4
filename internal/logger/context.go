package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds call-scoped logging context: the RPC identity and
// network peer of whichever Core/Abort/Interrupt/portmap call is in flight.
type LogContext struct {
	TraceID    string // OpenTelemetry trace ID
	SpanID     string // OpenTelemetry span ID
	Program    uint32 // ONC RPC program number
	Procedure  string // Procedure name (CREATE_LINK, DEVICE_WRITE, GETPORT, etc.)
	XID        uint32 // RPC transaction ID
	RemoteAddr string // Peer address (without port, or host:port for UDP senders)
	LinkID     int32  // VXI-11 link identifier, once established
	StartTime  time.Time
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a call against remoteAddr.
func NewLogContext(remoteAddr string) *LogContext {
	return &LogContext{
		RemoteAddr: remoteAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:    lc.TraceID,
		SpanID:     lc.SpanID,
		Program:    lc.Program,
		Procedure:  lc.Procedure,
		XID:        lc.XID,
		RemoteAddr: lc.RemoteAddr,
		LinkID:     lc.LinkID,
		StartTime:  lc.StartTime,
	}
}

// WithCall returns a copy with the RPC program/procedure/xid set.
func (lc *LogContext) WithCall(program uint32, procedure string, xid uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Program = program
		clone.Procedure = procedure
		clone.XID = xid
	}
	return clone
}

// WithLinkID returns a copy with the VXI-11 link identifier set.
func (lc *LogContext) WithLinkID(lid int32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.LinkID = lid
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
