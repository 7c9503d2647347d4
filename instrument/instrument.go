// Package instrument provides the minimal façade over portmapper discovery
// and the VXI-11 core channel: connect, write, read-until-terminator,
// read status byte, enable SRQ, close.
package instrument

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/scopebridge/vxi11/internal/logger"
	"github.com/scopebridge/vxi11/portmap"
	"github.com/scopebridge/vxi11/vxi11"
	"github.com/scopebridge/vxi11/vxi11err"
)

// Options configures Connect.
type Options struct {
	// Device is the VXI-11 device name, e.g. "inst0" (vxi11.DefaultDevice).
	Device string

	// ConnectTimeout bounds both the portmapper lookup and the core-channel
	// dial. Zero means 1 second.
	ConnectTimeout time.Duration

	// IOTimeout is sent as the io_timeout of every device_write,
	// device_read, device_readstb, generic and device_docmd call made on
	// the link; create_link itself carries no io timeout. Zero means 1
	// second.
	IOTimeout time.Duration

	// LockTimeout is passed to create_link. Zero means non-blocking lock
	// acquisition.
	LockTimeout time.Duration

	// LockDevice requests an initial exclusive lock from create_link.
	LockDevice bool

	// MaxReadSize bounds ReadUntil's internal accumulation buffer; a
	// terminator that never arrives within this many bytes is Malformed.
	MaxReadSize int
}

func (o Options) withDefaults() Options {
	if o.Device == "" {
		o.Device = vxi11.DefaultDevice
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = time.Second
	}
	if o.IOTimeout <= 0 {
		o.IOTimeout = time.Second
	}
	if o.MaxReadSize <= 0 {
		o.MaxReadSize = 1 << 20
	}
	return o
}

// Instrument is a connected VXI-11 session: portmapper-discovered Core
// channel plus an established link.
type Instrument struct {
	opts    Options
	channel *vxi11.CoreChannel
	link    *vxi11.Link
}

// Connect looks up the VXI-11 Core program via the portmapper at addr
// (host:port, typically host:111), opens a core channel to the discovered
// port, and creates a link.
func Connect(ctx context.Context, addr string, opts Options) (*Instrument, error) {
	opts = opts.withDefaults()

	dialCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	pm, err := portmap.DialTCP(dialCtx, addr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pm.Close() }()

	port, err := pm.GetPort(dialCtx, vxi11.CoreProgram, vxi11.CoreVersion, portmap.IPProtoTCP)
	if err != nil {
		return nil, err
	}
	if port == 0 {
		return nil, vxi11err.NewDevice(vxi11.ErrDeviceNotAccessible, "no VXI-11 core service registered")
	}

	target, err := replacePort(addr, port)
	if err != nil {
		return nil, err
	}

	channel, err := vxi11.DialCoreChannel(dialCtx, target)
	if err != nil {
		return nil, err
	}

	link, err := channel.CreateLink(dialCtx, int32(time.Now().UnixNano()&0x7fffffff), opts.LockDevice, opts.LockTimeout, opts.Device)
	if err != nil {
		_ = channel.Close()
		return nil, err
	}
	link.IOTimeout = opts.IOTimeout

	logger.Info("instrument connected", "device", opts.Device, "remote_addr", target, "lid", link.ID)
	return &Instrument{opts: opts, channel: channel, link: link}, nil
}

// replacePort rewrites addr's port to port, keeping its host.
func replacePort(addr string, port uint32) (string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "", vxi11err.NewIO("parse instrument address", err)
	}
	return net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10)), nil
}

// Write sends data to the instrument, chunked per the link's max_recv_size.
// Returns the number of bytes the instrument accepted.
func (i *Instrument) Write(ctx context.Context, data []byte) (int, error) {
	return i.link.Write(ctx, data, i.link.Flags)
}

// ReadUntil accumulates device_read chunks until the CHR or END reason bit
// is observed, or until the accumulation exceeds Options.MaxReadSize, which
// fails with Malformed.
func (i *Instrument) ReadUntil(ctx context.Context, terminator byte) ([]byte, error) {
	var out []byte
	flags := i.link.Flags | vxi11.FlagTermCharSet

	for {
		const requestChunk = 4096
		result, err := i.link.Read(ctx, requestChunk, flags, terminator)
		if err != nil {
			return nil, err
		}
		out = append(out, result.Data...)
		if len(out) > i.opts.MaxReadSize {
			return nil, vxi11err.NewMalformed("read_until: size cap exceeded with no terminator", nil)
		}
		if result.Done() {
			return out, nil
		}
	}
}

// ReadSTB returns the IEEE-488.2 status byte.
func (i *Instrument) ReadSTB(ctx context.Context) (byte, error) {
	return i.link.ReadSTB(ctx)
}

// EnableSRQ arms SRQ delivery for this link; handle is echoed back on each
// interrupt-channel device_intr_srq call.
func (i *Instrument) EnableSRQ(ctx context.Context, handle []byte) error {
	return i.link.EnableSRQ(ctx, true, handle)
}

// Link exposes the underlying VXI-11 link for callers that need operations
// beyond the façade contract (lock, trigger, docmd, interrupt channel).
func (i *Instrument) Link() *vxi11.Link {
	return i.link
}

// Close destroys the link (best-effort) and releases the core channel.
func (i *Instrument) Close(ctx context.Context) error {
	if i.link != nil && !i.link.Closed() {
		_ = i.link.DestroyLink(ctx)
	}
	return i.channel.Close()
}
