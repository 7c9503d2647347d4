package portmap

import (
	"context"
	"fmt"
	"time"

	"github.com/scopebridge/vxi11/internal/logger"
	"github.com/scopebridge/vxi11/internal/metrics"
	"github.com/scopebridge/vxi11/internal/rpc"
	"github.com/scopebridge/vxi11/vxi11err"
)

// met is this package's metrics sink; see vxi11.UseMetrics for the same
// nil-safe pattern.
var met *metrics.Metrics

// UseMetrics installs m as this package's metrics sink.
func UseMetrics(m *metrics.Metrics) { met = m }

// Client issues portmap procedures over a single transport (TCP or
// connected UDP). Construct one with DialTCP or DialUDP.
type Client struct {
	rpc *rpc.Client
}

// DialTCP connects to the portmapper at addr (host:port, typically port 111)
// over TCP.
func DialTCP(ctx context.Context, addr string) (*Client, error) {
	t, err := rpc.DialTCP(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc.NewClient(t, Program, Version)}, nil
}

// DialUDP connects to the portmapper at addr over a connected UDP socket.
func DialUDP(ctx context.Context, addr string) (*Client, error) {
	t, err := rpc.DialUDP(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc.NewClient(t, Program, Version)}, nil
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// GetPort asks the portmapper for the port registered for (prog, vers,
// prot). Returns 0 if the remote has no such registration -- this is a
// successful RPC call carrying a zero result, not an error.
func (c *Client) GetPort(ctx context.Context, prog, vers, prot uint32) (uint32, error) {
	args, err := EncodeMapping(Mapping{Prog: prog, Vers: vers, Prot: prot, Port: 0})
	if err != nil {
		return 0, vxi11err.NewIO("encode getport args", err)
	}

	start := time.Now()
	body, err := c.rpc.Call(ctx, ProcGetPort, args)
	status := "ok"
	if err != nil {
		status = "error"
	}
	met.RecordCall(Program, "getport", status, time.Since(start))
	if err != nil {
		return 0, err
	}

	port, err := decodeGetPortResult(body)
	if err != nil {
		return 0, vxi11err.NewMalformed("decode getport result", err)
	}

	logger.Debug("portmap getport", "program", prog, "version", vers, "protocol", prot, "port", port)
	return port, nil
}

// DiscoveredPort is one reply collected by BroadcastGetPort.
type DiscoveredPort struct {
	Port    uint32
	From    string
	Program uint32
	Version uint32
	Err     error // set when the reply from From could not be validated
}

// BroadcastGetPort sends a single GETPORT call to multicastAddr (e.g.
// "224.0.0.1:111") and returns every reply received before idleTimeout
// elapses with no new traffic. A responder reporting port 0 is filtered out
// silently, since it means the program/version isn't registered there. The
// returned channel is closed once the broadcast transport's quiet period
// expires.
func BroadcastGetPort(ctx context.Context, localAddr, multicastAddr string, prog, vers, prot uint32, idleTimeout time.Duration) (<-chan DiscoveredPort, error) {
	bt, err := rpc.NewBroadcastTransport(localAddr, idleTimeout)
	if err != nil {
		return nil, err
	}

	args, err := EncodeMapping(Mapping{Prog: prog, Vers: vers, Prot: prot, Port: 0})
	if err != nil {
		_ = bt.Close()
		return nil, vxi11err.NewIO("encode getport args", err)
	}
	xid := rpc.NextXID()
	msg, err := rpc.EncodeCall(rpc.CallHeader{
		XID:       xid,
		Program:   Program,
		Version:   Version,
		Procedure: ProcGetPort,
	}, args)
	if err != nil {
		_ = bt.Close()
		return nil, vxi11err.NewIO("encode getport call", err)
	}

	if err := bt.Send(multicastAddr, msg); err != nil {
		_ = bt.Close()
		return nil, err
	}

	out := make(chan DiscoveredPort)
	met.BroadcastStarted()
	go func() {
		defer close(out)
		defer func() { _ = bt.Close() }()
		defer met.BroadcastEnded()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			reply, ok, err := bt.Next()
			if err != nil {
				out <- DiscoveredPort{Err: vxi11err.NewIO("broadcast recv", err)}
				return
			}
			if !ok {
				return // idle timeout: end of broadcast collection
			}

			parsed, err := rpc.DecodeReply(reply.Body)
			if err != nil {
				out <- DiscoveredPort{From: reply.Addr.String(), Err: vxi11err.NewMalformed("decode broadcast reply", err)}
				continue
			}
			if parsed.XID != xid {
				// Unrelated traffic on the multicast group; ignore.
				continue
			}
			if !parsed.Accepted || parsed.AcceptStat != rpc.Success {
				out <- DiscoveredPort{From: reply.Addr.String(), Err: vxi11err.NewRPCError(parsed.AcceptStat, "broadcast getport rejected")}
				continue
			}

			port, err := decodeGetPortResult(parsed.Body)
			if err != nil {
				out <- DiscoveredPort{From: reply.Addr.String(), Err: vxi11err.NewMalformed("decode broadcast getport result", err)}
				continue
			}
			if port == 0 {
				continue // not registered there; drop silently
			}

			met.RecordBroadcastReply(prog)
			out <- DiscoveredPort{Port: port, From: reply.Addr.String(), Program: prog, Version: vers}
		}
	}()

	return out, nil
}

// String implements a readable form for logging/diagnostics.
func (d DiscoveredPort) String() string {
	if d.Err != nil {
		return fmt.Sprintf("discover error from %s: %v", d.From, d.Err)
	}
	return fmt.Sprintf("%s -> port %d (program %d v%d)", d.From, d.Port, d.Program, d.Version)
}
