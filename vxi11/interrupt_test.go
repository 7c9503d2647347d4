package vxi11

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopebridge/vxi11/internal/rpc"
	"github.com/scopebridge/vxi11/internal/xdr"
)

// newLinkForInterruptTest establishes a link against a fake core server that
// only needs to answer create_link, create_intr_chan and device_enable_srq.
func newLinkForInterruptTest(t *testing.T) *Link {
	t.Helper()
	srv := newFakeCoreServer(t, func(proc uint32, args []byte) []byte {
		switch proc {
		case ProcCreateLink:
			return encodeCreateLinkReply(t, 0, 1, 0, 4096)
		case ProcCreateIntrChan, ProcDeviceEnableSRQ:
			return encodeDeviceErrorReply(t, 0)
		default:
			t.Fatalf("unexpected procedure %d", proc)
			return nil
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ch, err := DialCoreChannel(ctx, srv.addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	link, err := ch.CreateLink(ctx, 1, false, 0, DefaultDevice)
	require.NoError(t, err)
	return link
}

// encodeIntrSRQArgs builds a Device_SrqParms argument, the instrument side of
// the device_intr_srq reverse call.
func encodeIntrSRQArgs(t *testing.T, handle []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, xdr.WriteXDROpaque(&buf, handle))
	return buf.Bytes()
}

// TestInterruptSRQRoundTrip simulates the instrument connecting back on the
// interrupt channel and delivering one device_intr_srq call, asserting it
// arrives on InterruptServer.SRQ().
func TestInterruptSRQRoundTrip(t *testing.T) {
	link := newLinkForInterruptTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	srv, err := EstablishInterrupt(ctx, link, InterruptOptions{ListenAddr: "127.0.0.1:0", Tag: 7})
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	require.NoError(t, link.EnableSRQ(ctx, true, []byte("h")))

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	handle := []byte{0xde, 0xad, 0xbe, 0xef}
	call, err := rpc.EncodeCall(rpc.CallHeader{
		XID:       42,
		Program:   IntrProgram,
		Version:   IntrVersion,
		Procedure: ProcDeviceIntrSRQ,
	}, encodeIntrSRQArgs(t, handle))
	require.NoError(t, err)

	_, err = conn.Write(rpc.AddRecordMark(call))
	require.NoError(t, err)

	reply, err := rpc.ReadRecord(conn)
	require.NoError(t, err)
	parsed, err := rpc.DecodeReply(reply)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), parsed.XID)
	assert.True(t, parsed.Accepted)
	assert.Equal(t, rpc.Success, parsed.AcceptStat)

	select {
	case got := <-srv.SRQ():
		assert.Equal(t, handle, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for SRQ delivery")
	}
}

// TestInterruptServerRejectsUnknownProcedure exercises the PROC_UNAVAIL path
// when a call arrives for a procedure other than device_intr_srq.
func TestInterruptServerRejectsUnknownProcedure(t *testing.T) {
	link := newLinkForInterruptTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	srv, err := EstablishInterrupt(ctx, link, InterruptOptions{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	call, err := rpc.EncodeCall(rpc.CallHeader{
		XID:       1,
		Program:   IntrProgram,
		Version:   IntrVersion,
		Procedure: 999,
	}, nil)
	require.NoError(t, err)

	_, err = conn.Write(rpc.AddRecordMark(call))
	require.NoError(t, err)

	reply, err := rpc.ReadRecord(conn)
	require.NoError(t, err)
	parsed, err := rpc.DecodeReply(reply)
	require.NoError(t, err)
	assert.Equal(t, rpc.ProcUnavail, parsed.AcceptStat)
}
