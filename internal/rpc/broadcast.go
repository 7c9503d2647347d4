package rpc

import (
	"fmt"
	"net"
	"time"
)

// BroadcastReply pairs a parsed RPC reply with the address of the host that
// sent it, since a broadcast call can receive many replies from many peers.
type BroadcastReply struct {
	Addr net.Addr
	Body []byte
}

// BroadcastTransport sends a single UDP broadcast datagram and yields every
// reply received until idleTimeout elapses with no new traffic. It never
// returns an error for a plain timeout -- Next signals end-of-stream by
// returning ok=false once the quiet period expires, matching how a
// discovery scan on an unreliable medium is expected to wind down.
type BroadcastTransport struct {
	conn        *net.UDPConn
	idleTimeout time.Duration
}

// NewBroadcastTransport binds a UDP socket suitable for sending to a
// broadcast or multicast address and reading replies from arbitrary senders.
// localAddr may be empty to let the OS choose an ephemeral port.
func NewBroadcastTransport(localAddr string, idleTimeout time.Duration) (*BroadcastTransport, error) {
	laddr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("rpc: resolve local broadcast addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("rpc: listen udp for broadcast: %w", err)
	}
	if err := conn.SetWriteBuffer(64 * 1024); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rpc: set write buffer: %w", err)
	}
	return &BroadcastTransport{conn: conn, idleTimeout: idleTimeout}, nil
}

// Send writes msg to the broadcast/multicast address dst.
func (b *BroadcastTransport) Send(dst string, msg []byte) error {
	addr, err := net.ResolveUDPAddr("udp", dst)
	if err != nil {
		return fmt.Errorf("rpc: resolve broadcast dst %s: %w", dst, err)
	}
	if _, err := b.conn.WriteToUDP(msg, addr); err != nil {
		return fmt.Errorf("rpc: write broadcast: %w", err)
	}
	return nil
}

// Next blocks until a reply arrives or idleTimeout elapses since the last
// reply (or since Send, for the first call). ok is false once the quiet
// period has elapsed; err is non-nil only for a genuine I/O failure.
func (b *BroadcastTransport) Next() (reply *BroadcastReply, ok bool, err error) {
	if err := b.conn.SetReadDeadline(time.Now().Add(b.idleTimeout)); err != nil {
		return nil, false, fmt.Errorf("rpc: set read deadline: %w", err)
	}

	buf := make([]byte, 65535)
	n, addr, err := b.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, isNet := err.(net.Error); isNet && netErr.Timeout() {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("rpc: read broadcast reply: %w", err)
	}
	return &BroadcastReply{Addr: addr, Body: buf[:n]}, true, nil
}

// Close releases the underlying socket.
func (b *BroadcastTransport) Close() error {
	return b.conn.Close()
}
