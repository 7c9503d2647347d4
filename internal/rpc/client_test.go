package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport echoes a pre-decided reply for any call, recording the xid
// it was asked to send so the test can shape a matching (or mismatched)
// reply.
type fakeTransport struct {
	replyFor func(callXID uint32) []byte
}

func (f *fakeTransport) Call(ctx context.Context, msg []byte) ([]byte, error) {
	call, err := DecodeCall(msg)
	if err != nil {
		return nil, err
	}
	return f.replyFor(call.XID), nil
}

func (f *fakeTransport) Close() error          { return nil }
func (f *fakeTransport) RemoteAddr() string { return "fake:0" }

func TestClientCallSuccess(t *testing.T) {
	result := []byte{0x00, 0x00, 0x00, 0x07}
	transport := &fakeTransport{replyFor: func(xid uint32) []byte {
		return EncodeSuccessReply(xid, result)
	}}

	c := NewClient(transport, 395183, 1)
	body, err := c.Call(context.Background(), 11, nil)
	require.NoError(t, err)
	assert.Equal(t, result, body)
}

func TestClientCallRejectsMismatchedXID(t *testing.T) {
	transport := &fakeTransport{replyFor: func(xid uint32) []byte {
		return EncodeSuccessReply(xid+1, nil)
	}}

	c := NewClient(transport, 395183, 1)
	_, err := c.Call(context.Background(), 11, nil)
	assert.Error(t, err)
}

func TestClientCallPropagatesAcceptError(t *testing.T) {
	transport := &fakeTransport{replyFor: func(xid uint32) []byte {
		return EncodeAcceptedErrorReply(xid, ProcUnavail)
	}}

	c := NewClient(transport, 395183, 1)
	_, err := c.Call(context.Background(), 999, nil)
	assert.Error(t, err)
}

func TestNextXIDIsUnique(t *testing.T) {
	seen := make(map[uint32]bool)
	for i := 0; i < 1000; i++ {
		xid := NextXID()
		assert.False(t, seen[xid], "xid %d reused", xid)
		seen[xid] = true
	}
}
