package vxi11

import (
	"context"

	"github.com/scopebridge/vxi11/internal/rpc"
	"github.com/scopebridge/vxi11/vxi11err"
)

// AbortChannel is a second TCP connection to a link's abort_port, used to
// cancel an in-flight device_read or device_write on the core channel. It
// must be driven from a different goroutine than the one blocked in the
// core call, since the core channel serializes its own RPCs but the abort
// channel is an independent connection.
type AbortChannel struct {
	client *rpc.Client
}

// DialAbortChannel connects to the abort port advertised by create_link.
func DialAbortChannel(ctx context.Context, addr string) (*AbortChannel, error) {
	t, err := rpc.DialTCP(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &AbortChannel{client: rpc.NewClient(t, AsyncProgram, AsyncVersion)}, nil
}

// Close releases the abort channel's transport.
func (a *AbortChannel) Close() error {
	return a.client.Close()
}

// Abort cancels whatever operation is in flight for lid on the core channel.
func (a *AbortChannel) Abort(ctx context.Context, lid int32) error {
	args, err := encodeDeviceAbortArgs(lid)
	if err != nil {
		return vxi11err.NewIO("encode device_abort args", err)
	}

	body, err := a.client.Call(ctx, ProcDeviceAbort, args)
	if err != nil {
		return err
	}

	r, err := decodeDeviceErrorResult(body)
	if err != nil {
		return vxi11err.NewMalformed("decode device_abort result", err)
	}
	return checkDeviceError(uint32(r.Error))
}
