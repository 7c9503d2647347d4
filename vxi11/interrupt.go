package vxi11

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/scopebridge/vxi11/internal/logger"
	"github.com/scopebridge/vxi11/internal/rpc"
	"github.com/scopebridge/vxi11/vxi11err"
)

// InterruptOptions configures the host-side interrupt (SRQ callback) server.
type InterruptOptions struct {
	// ListenAddr is the local address to bind, e.g. "0.0.0.0:0" to let the
	// OS pick a port. Host/port are reported back to the instrument via
	// create_intr_chan.
	ListenAddr string

	// Tag is an opaque identifier threaded through to the link's
	// InterruptTag, letting a consumer correlate SRQ deliveries with the
	// establish_interrupt call that set them up.
	Tag int32
}

// InterruptServer is the host side of the VXI-11 interrupt channel: a
// minimal accept-one-dispatch-loop server (not a general RPC server, since
// VXI-11 guarantees exactly one instrument connection per interrupt chan).
type InterruptServer struct {
	listener net.Listener
	srq      chan []byte
	group    *errgroup.Group
	groupCtx context.Context
	tag      int32
}

// EstablishInterrupt binds a listener, registers it with the instrument via
// create_intr_chan on link's core channel, and starts the accept-one loop.
// The caller must still call link.EnableSRQ(ctx, true, handle) to arm
// delivery once the server is running.
func EstablishInterrupt(ctx context.Context, link *Link, opts InterruptOptions) (*InterruptServer, error) {
	listener, err := net.Listen("tcp", opts.ListenAddr)
	if err != nil {
		return nil, vxi11err.NewIO("listen for interrupt channel", err)
	}

	host, portStr, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		_ = listener.Close()
		return nil, vxi11err.NewIO("parse interrupt listener address", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		_ = listener.Close()
		return nil, vxi11err.NewIO("parse interrupt listener port", err)
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		if advertised, aerr := advertisableHost(); aerr == nil {
			host = advertised
		}
	}

	if err := link.CreateIntrChan(ctx, host, uint32(port)); err != nil {
		_ = listener.Close()
		return nil, err
	}
	link.InterruptTag = opts.Tag

	group, groupCtx := errgroup.WithContext(ctx)
	s := &InterruptServer{
		listener: listener,
		srq:      make(chan []byte, 8),
		group:    group,
		groupCtx: groupCtx,
		tag:      opts.Tag,
	}

	group.Go(func() error {
		return s.acceptAndDispatch(groupCtx)
	})

	logger.Debug("vxi11 interrupt channel established", "local_addr", listener.Addr().String(), "tag", opts.Tag)
	return s, nil
}

// advertisableHost picks a non-loopback local address to hand to the
// instrument when the listener was bound to a wildcard address.
func advertisableHost() (string, error) {
	conn, err := net.Dial("udp", "255.255.255.255:1")
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local addr type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}

// Addr returns the address the interrupt listener is bound to.
func (s *InterruptServer) Addr() string {
	return s.listener.Addr().String()
}

// SRQ returns the channel on which delivered SRQ handles arrive.
func (s *InterruptServer) SRQ() <-chan []byte {
	return s.srq
}

// Close stops the accept loop and releases the listener. It waits for the
// in-flight accept/dispatch goroutine to finish.
func (s *InterruptServer) Close() error {
	err := s.listener.Close()
	_ = s.group.Wait()
	return err
}

// acceptAndDispatch accepts exactly one inbound connection (the instrument
// calling back) and serves device_intr_srq calls on it until it closes or
// ctx is canceled.
func (s *InterruptServer) acceptAndDispatch(ctx context.Context) error {
	defer close(s.srq)

	type acceptResult struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		conn, err := s.listener.Accept()
		accepted <- acceptResult{conn, err}
	}()

	var conn net.Conn
	select {
	case <-ctx.Done():
		_ = s.listener.Close()
		return ctx.Err()
	case res := <-accepted:
		if res.err != nil {
			return vxi11err.NewIO("accept interrupt connection", res.err)
		}
		conn = res.conn
	}
	defer func() { _ = conn.Close() }()

	logger.Debug("vxi11 interrupt connection accepted", "remote_addr", conn.RemoteAddr().String())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := rpc.ReadRecord(conn)
		if err != nil {
			return vxi11err.NewIO("read interrupt call", err)
		}

		call, err := rpc.DecodeCall(msg)
		if err != nil {
			logger.Warn("vxi11 interrupt: malformed call", "error", err)
			continue
		}

		if call.Program != IntrProgram || call.Version != IntrVersion {
			reply := rpc.AddRecordMark(rpc.EncodeAcceptedErrorReply(call.XID, rpc.ProgMismatch))
			if _, werr := conn.Write(reply); werr != nil {
				return vxi11err.NewIO("write interrupt reply", werr)
			}
			continue
		}

		if call.Procedure != ProcDeviceIntrSRQ {
			reply := rpc.AddRecordMark(rpc.EncodeAcceptedErrorReply(call.XID, rpc.ProcUnavail))
			if _, werr := conn.Write(reply); werr != nil {
				return vxi11err.NewIO("write interrupt reply", werr)
			}
			continue
		}

		handle, err := decodeIntrSRQArgs(call.Args)
		if err != nil {
			logger.Warn("vxi11 interrupt: malformed device_intr_srq args", "error", err)
			reply := rpc.AddRecordMark(rpc.EncodeAcceptedErrorReply(call.XID, rpc.GarbageArgs))
			if _, werr := conn.Write(reply); werr != nil {
				return vxi11err.NewIO("write interrupt reply", werr)
			}
			continue
		}

		select {
		case s.srq <- handle:
			met.RecordSRQDelivered(s.tag)
		default:
			met.RecordSRQDropped()
			logger.Warn("vxi11 interrupt: srq channel full, dropping delivery")
		}

		reply := rpc.AddRecordMark(rpc.EncodeSuccessReply(call.XID, nil))
		if _, err := conn.Write(reply); err != nil {
			return vxi11err.NewIO("write interrupt reply", err)
		}
	}
}
