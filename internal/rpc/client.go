package rpc

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/scopebridge/vxi11/vxi11err"
)

// xidCounter is seeded from crypto/rand at process start so that XIDs do
// not repeat across quick process restarts. Every Client in the process
// draws from this one counter through NextXID, which increments it
// atomically; that is sufficient for uniqueness within a single
// connection's lifetime -- ONC
// RPC does not require global uniqueness, only that a client not reuse an
// XID for an outstanding call.
var xidCounter uint32

func init() {
	var seed [4]byte
	if _, err := rand.Read(seed[:]); err == nil {
		xidCounter = binary.BigEndian.Uint32(seed[:])
	}
}

// NextXID returns the next transaction ID for this process.
func NextXID() uint32 {
	return atomic.AddUint32(&xidCounter, 1)
}

// Client issues RPC calls over a single Transport, encoding the call header
// and decoding the reply header on every round trip.
type Client struct {
	transport Transport
	program   uint32
	version   uint32
}

// NewClient wraps transport for calls against the given program and version.
func NewClient(transport Transport, program, version uint32) *Client {
	return &Client{transport: transport, program: program, version: version}
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// RemoteAddr returns the transport's remote address.
func (c *Client) RemoteAddr() string {
	return c.transport.RemoteAddr()
}

// Call performs one AUTH_NONE RPC call for procedure proc with the given
// pre-encoded XDR argument bytes, returning the raw result bytes from a
// successful reply.
func (c *Client) Call(ctx context.Context, proc uint32, args []byte) ([]byte, error) {
	xid := NextXID()
	msg, err := EncodeCall(CallHeader{
		XID:       xid,
		Program:   c.program,
		Version:   c.version,
		Procedure: proc,
	}, args)
	if err != nil {
		return nil, vxi11err.NewIO("encode rpc call", err)
	}

	raw, err := c.transport.Call(ctx, msg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, vxi11err.NewTimeout("rpc call", err)
		}
		return nil, vxi11err.NewIO("rpc call", err)
	}

	reply, err := DecodeReply(raw)
	if err != nil {
		return nil, vxi11err.NewMalformed("decode rpc reply", err)
	}
	if reply.XID != xid {
		return nil, vxi11err.NewMalformed(
			fmt.Sprintf("reply xid %d does not match call xid %d", reply.XID, xid), nil)
	}
	if !reply.Accepted {
		return nil, vxi11err.NewRPCRejected(reply.RejectStat, "rpc call rejected")
	}
	if reply.AcceptStat != Success {
		return nil, vxi11err.NewRPCError(reply.AcceptStat, "rpc call not accepted")
	}
	return reply.Body, nil
}
