package vxi11

import (
	"context"
	"sync"
	"time"

	"github.com/scopebridge/vxi11/internal/logger"
	"github.com/scopebridge/vxi11/internal/metrics"
	"github.com/scopebridge/vxi11/internal/rpc"
	"github.com/scopebridge/vxi11/vxi11err"
)

// met is the package-wide metrics sink. It defaults to a nil *metrics.Metrics
// (every method is a no-op on nil), and is swapped out by UseMetrics once at
// process startup if the caller wants Prometheus export.
var met *metrics.Metrics

// UseMetrics installs m as this package's metrics sink. The sink is
// package-wide: every call made afterward records into it, including calls
// on a CoreChannel or Link created before.
func UseMetrics(m *metrics.Metrics) { met = m }

// CoreChannel is one VXI-11 Core (program 395183) RPC connection. A single
// core channel serializes all its RPCs through mu -- VXI-11 allows at most
// one in-flight call per channel -- but multiple links may be created on it.
type CoreChannel struct {
	mu     sync.Mutex
	client *rpc.Client
}

// DialCoreChannel opens a TCP connection to the VXI-11 Core program at addr.
func DialCoreChannel(ctx context.Context, addr string) (*CoreChannel, error) {
	t, err := rpc.DialTCP(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &CoreChannel{client: rpc.NewClient(t, CoreProgram, CoreVersion)}, nil
}

// Close releases the channel's transport. Any links created on it become
// unusable; operations on them will fail once the connection is gone.
func (c *CoreChannel) Close() error {
	return c.client.Close()
}

func (c *CoreChannel) call(ctx context.Context, proc uint32, args []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	body, err := c.client.Call(ctx, proc, args)
	status := "ok"
	if err != nil {
		status = "error"
	}
	met.RecordCall(CoreProgram, procedureName(proc), status, time.Since(start))
	return body, err
}

func procedureName(proc uint32) string {
	switch proc {
	case ProcCreateLink:
		return "create_link"
	case ProcDeviceWrite:
		return "device_write"
	case ProcDeviceRead:
		return "device_read"
	case ProcDeviceReadSTB:
		return "device_readstb"
	case ProcDeviceTrigger:
		return "device_trigger"
	case ProcDeviceClear:
		return "device_clear"
	case ProcDeviceRemote:
		return "device_remote"
	case ProcDeviceLocal:
		return "device_local"
	case ProcDeviceLock:
		return "device_lock"
	case ProcDeviceUnlock:
		return "device_unlock"
	case ProcDeviceEnableSRQ:
		return "device_enable_srq"
	case ProcDeviceDoCmd:
		return "device_docmd"
	case ProcDestroyLink:
		return "destroy_link"
	case ProcCreateIntrChan:
		return "create_intr_chan"
	case ProcDestroyIntrChan:
		return "destroy_intr_chan"
	default:
		return "unknown"
	}
}

// CreateLink establishes a new session with device (e.g. DefaultDevice) and
// returns the resulting Link. lockDevice requests an initial exclusive lock,
// held for at most lockTimeout (0 means non-blocking acquisition).
func (c *CoreChannel) CreateLink(ctx context.Context, clientID int32, lockDevice bool, lockTimeout time.Duration, device string) (*Link, error) {
	args, err := encodeCreateLinkArgs(clientID, lockDevice, uint32(lockTimeout.Milliseconds()), device)
	if err != nil {
		return nil, vxi11err.NewIO("encode create_link args", err)
	}

	body, err := c.call(ctx, ProcCreateLink, args)
	if err != nil {
		return nil, err
	}

	r, err := decodeCreateLinkResult(body)
	if err != nil {
		return nil, vxi11err.NewMalformed("decode create_link result", err)
	}
	if err := checkDeviceError(uint32(r.Error)); err != nil {
		return nil, err
	}

	maxRecv := r.MaxRecvSize
	if maxRecv == 0 {
		maxRecv = DefaultMaxPayload
	}

	link := &Link{
		ID:          r.Lid,
		Device:      device,
		AbortPort:   r.AbortPort,
		MaxRecvSize: maxRecv,
		LockTimeout: lockTimeout,
		channel:     c,
	}
	met.LinkOpened()
	logger.Debug("vxi11 create_link", "device", device, "lid", link.ID, "abort_port", link.AbortPort, "max_recv_size", link.MaxRecvSize)
	return link, nil
}

// requireOpen returns ChannelClosed if the link has already been torn down.
func (l *Link) requireOpen() error {
	if l.closed {
		return vxi11err.NewChannelClosed("link is closed")
	}
	return nil
}

// Write sends data to the instrument, splitting into chunks no larger than
// the link's MaxRecvSize. Only the final chunk carries FlagEnd. Returns the
// total bytes accepted by the instrument.
func (l *Link) Write(ctx context.Context, data []byte, flags DeviceFlags) (int, error) {
	if err := l.requireOpen(); err != nil {
		return 0, err
	}

	chunkSize := int(l.MaxRecvSize)
	if chunkSize <= 0 {
		chunkSize = DefaultMaxPayload
	}

	total := 0
	for offset := 0; offset < len(data) || (len(data) == 0 && offset == 0); {
		end := offset + chunkSize
		last := end >= len(data)
		if last {
			end = len(data)
		}
		chunk := data[offset:end]

		chunkFlags := flags &^ FlagEnd
		if last {
			chunkFlags |= FlagEnd
		}

		args, err := encodeDeviceWriteArgs(l.ID, uint32(l.ioTimeoutMs()), uint32(l.LockTimeout.Milliseconds()), chunkFlags, chunk)
		if err != nil {
			return total, vxi11err.NewIO("encode device_write args", err)
		}

		body, err := l.channel.call(ctx, ProcDeviceWrite, args)
		if err != nil {
			return total, err
		}

		r, err := decodeDeviceWriteResult(body)
		if err != nil {
			return total, vxi11err.NewMalformed("decode device_write result", err)
		}
		if err := checkDeviceError(uint32(r.Error)); err != nil {
			if r.Error == int32(ErrInvalidLink) {
				l.closed = true
			}
			return total, err
		}
		if int(r.Size) < len(chunk) {
			return total, vxi11err.NewIO("partial device_write", nil)
		}

		total += len(chunk)
		met.RecordWriteFragment(l.Device, int(r.Size))
		logger.Debug("vxi11 device_write", "lid", l.ID, "offset", offset, "size", len(chunk), "end", last)

		if last {
			break
		}
		offset = end
	}

	return total, nil
}

// ReadResult is one device_read response.
type ReadResult struct {
	Data   []byte
	Reason uint32
}

// Done reports whether the reason bitfield indicates the response is
// complete (a terminator character was seen or the instrument signaled END).
func (r ReadResult) Done() bool {
	return r.Reason&(ReasonCHR|ReasonEND) != 0
}

// Read issues a single device_read call for up to requestSize bytes.
func (l *Link) Read(ctx context.Context, requestSize uint32, flags DeviceFlags, termChar byte) (ReadResult, error) {
	if err := l.requireOpen(); err != nil {
		return ReadResult{}, err
	}

	args, err := encodeDeviceReadArgs(l.ID, requestSize, uint32(l.ioTimeoutMs()), uint32(l.LockTimeout.Milliseconds()), flags, termChar)
	if err != nil {
		return ReadResult{}, vxi11err.NewIO("encode device_read args", err)
	}

	body, err := l.channel.call(ctx, ProcDeviceRead, args)
	if err != nil {
		return ReadResult{}, err
	}

	r, err := decodeDeviceReadResult(body)
	if err != nil {
		return ReadResult{}, vxi11err.NewMalformed("decode device_read result", err)
	}
	if err := checkDeviceError(uint32(r.Error)); err != nil {
		if r.Error == int32(ErrInvalidLink) {
			l.closed = true
		}
		return ReadResult{}, err
	}

	met.RecordRead(l.Device, len(r.Data))
	logger.Debug("vxi11 device_read", "lid", l.ID, "bytes_read", len(r.Data), "reason", r.Reason)
	return ReadResult{Data: r.Data, Reason: uint32(r.Reason)}, nil
}

// ReadSTB returns the IEEE-488.2 status byte.
func (l *Link) ReadSTB(ctx context.Context) (byte, error) {
	if err := l.requireOpen(); err != nil {
		return 0, err
	}

	args, err := encodeGenericArgs(l.ID, l.Flags, uint32(l.ioTimeoutMs()))
	if err != nil {
		return 0, vxi11err.NewIO("encode device_readstb args", err)
	}

	body, err := l.channel.call(ctx, ProcDeviceReadSTB, args)
	if err != nil {
		return 0, err
	}

	r, err := decodeDeviceReadStbResult(body)
	if err != nil {
		return 0, vxi11err.NewMalformed("decode device_readstb result", err)
	}
	if err := checkDeviceError(uint32(r.Error)); err != nil {
		return 0, err
	}
	return byte(r.STB), nil
}

// genericOp implements the four Device_GenericParms-shaped calls:
// device_trigger, device_clear, device_remote, device_local.
func (l *Link) genericOp(ctx context.Context, proc uint32) error {
	if err := l.requireOpen(); err != nil {
		return err
	}

	args, err := encodeGenericArgs(l.ID, l.Flags, uint32(l.ioTimeoutMs()))
	if err != nil {
		return vxi11err.NewIO("encode generic args", err)
	}

	body, err := l.channel.call(ctx, proc, args)
	if err != nil {
		return err
	}

	r, err := decodeDeviceErrorResult(body)
	if err != nil {
		return vxi11err.NewMalformed("decode device error result", err)
	}
	return checkDeviceError(uint32(r.Error))
}

// Trigger issues a device_trigger.
func (l *Link) Trigger(ctx context.Context) error { return l.genericOp(ctx, ProcDeviceTrigger) }

// Clear issues a device_clear.
func (l *Link) Clear(ctx context.Context) error { return l.genericOp(ctx, ProcDeviceClear) }

// Remote issues a device_remote.
func (l *Link) Remote(ctx context.Context) error { return l.genericOp(ctx, ProcDeviceRemote) }

// Local issues a device_local.
func (l *Link) Local(ctx context.Context) error { return l.genericOp(ctx, ProcDeviceLocal) }

// Lock acquires the device lock, waiting up to lockTimeout if FlagWaitLock is set.
func (l *Link) Lock(ctx context.Context, lockTimeout time.Duration) error {
	if err := l.requireOpen(); err != nil {
		return err
	}
	args, err := encodeLockArgs(l.ID, l.Flags, uint32(lockTimeout.Milliseconds()))
	if err != nil {
		return vxi11err.NewIO("encode device_lock args", err)
	}
	body, err := l.channel.call(ctx, ProcDeviceLock, args)
	if err != nil {
		return err
	}
	r, err := decodeDeviceErrorResult(body)
	if err != nil {
		return vxi11err.NewMalformed("decode device_lock result", err)
	}
	return checkDeviceError(uint32(r.Error))
}

// Unlock releases a previously acquired device lock.
func (l *Link) Unlock(ctx context.Context) error {
	if err := l.requireOpen(); err != nil {
		return err
	}
	args, err := encodeLinkIDArgs(l.ID)
	if err != nil {
		return vxi11err.NewIO("encode device_unlock args", err)
	}
	body, err := l.channel.call(ctx, ProcDeviceUnlock, args)
	if err != nil {
		return err
	}
	r, err := decodeDeviceErrorResult(body)
	if err != nil {
		return vxi11err.NewMalformed("decode device_unlock result", err)
	}
	return checkDeviceError(uint32(r.Error))
}

// EnableSRQ arms or disarms SRQ delivery. handle is echoed back by the
// instrument on every device_intr_srq call so the consumer can tell which
// link fired; it must be at most 40 bytes.
func (l *Link) EnableSRQ(ctx context.Context, enable bool, handle []byte) error {
	if err := l.requireOpen(); err != nil {
		return err
	}
	args, err := encodeEnableSRQArgs(l.ID, enable, handle)
	if err != nil {
		return vxi11err.NewIO("encode device_enable_srq args", err)
	}
	body, err := l.channel.call(ctx, ProcDeviceEnableSRQ, args)
	if err != nil {
		return err
	}
	r, err := decodeDeviceErrorResult(body)
	if err != nil {
		return vxi11err.NewMalformed("decode device_enable_srq result", err)
	}
	if err := checkDeviceError(uint32(r.Error)); err != nil {
		return err
	}
	if enable {
		l.srqHandle = append([]byte(nil), handle...)
	} else {
		l.srqHandle = nil
	}
	return nil
}

// DoCmd issues a device_docmd: an instrument-specific out-of-band command
// identified by cmd, carrying opaque dataIn and returning opaque dataOut.
func (l *Link) DoCmd(ctx context.Context, cmd int32, networkOrder bool, dataSize int32, dataIn []byte) ([]byte, error) {
	if err := l.requireOpen(); err != nil {
		return nil, err
	}
	args, err := encodeDoCmdArgs(l.ID, l.Flags, uint32(l.ioTimeoutMs()), uint32(l.LockTimeout.Milliseconds()), cmd, networkOrder, dataSize, dataIn)
	if err != nil {
		return nil, vxi11err.NewIO("encode device_docmd args", err)
	}
	body, err := l.channel.call(ctx, ProcDeviceDoCmd, args)
	if err != nil {
		return nil, err
	}
	r, err := decodeDeviceDoCmdResult(body)
	if err != nil {
		return nil, vxi11err.NewMalformed("decode device_docmd result", err)
	}
	if err := checkDeviceError(uint32(r.Error)); err != nil {
		return nil, err
	}
	return r.DataOut, nil
}

// VXI-11 docmd sub-command identifiers used by SetEventMask/SetServiceMask.
// These are instrument-class conventions carried over from the reference
// client this module is modeled on, not part of the Core program itself.
const (
	docmdSetEventMask   int32 = 1
	docmdSetServiceMask int32 = 2
)

// SetEventMask configures which IEEE-488.2 event-status-register bits can
// contribute to an SRQ, via device_docmd.
func (l *Link) SetEventMask(ctx context.Context, mask byte) error {
	_, err := l.DoCmd(ctx, docmdSetEventMask, true, 1, []byte{mask})
	return err
}

// SetServiceMask configures which status-byte bits can contribute to an
// SRQ, via device_docmd.
func (l *Link) SetServiceMask(ctx context.Context, mask byte) error {
	_, err := l.DoCmd(ctx, docmdSetServiceMask, true, 1, []byte{mask})
	return err
}

// CreateIntrChan tells the instrument where to connect back for SRQ
// delivery. See interrupt.go for the server side of this handshake.
func (l *Link) CreateIntrChan(ctx context.Context, hostAddr string, hostPort uint32) error {
	args, err := encodeCreateIntrChanArgs(hostAddr, hostPort, IntrProgram, IntrVersion, NetworkTypeTCP)
	if err != nil {
		return vxi11err.NewIO("encode create_intr_chan args", err)
	}
	body, err := l.channel.call(ctx, ProcCreateIntrChan, args)
	if err != nil {
		return err
	}
	r, err := decodeDeviceErrorResult(body)
	if err != nil {
		return vxi11err.NewMalformed("decode create_intr_chan result", err)
	}
	return checkDeviceError(uint32(r.Error))
}

// DestroyIntrChan tears down the interrupt channel registration.
func (l *Link) DestroyIntrChan(ctx context.Context) error {
	body, err := l.channel.call(ctx, ProcDestroyIntrChan, nil)
	if err != nil {
		return err
	}
	r, err := decodeDeviceErrorResult(body)
	if err != nil {
		return vxi11err.NewMalformed("decode destroy_intr_chan result", err)
	}
	return checkDeviceError(uint32(r.Error))
}

// DestroyLink releases server-side state for this link. Subsequent
// operations on it fail with ChannelClosed without another round trip,
// except CreateIntrChan and DestroyIntrChan, which do not check whether the
// link is closed and still send their call.
func (l *Link) DestroyLink(ctx context.Context) error {
	if l.closed {
		return nil
	}
	args, err := encodeLinkIDArgs(l.ID)
	if err != nil {
		return vxi11err.NewIO("encode destroy_link args", err)
	}
	body, err := l.channel.call(ctx, ProcDestroyLink, args)
	if err != nil {
		return err
	}
	r, err := decodeDeviceErrorResult(body)
	if err != nil {
		return vxi11err.NewMalformed("decode destroy_link result", err)
	}
	l.closed = true
	met.LinkClosed()
	return checkDeviceError(uint32(r.Error))
}

func (l *Link) ioTimeoutMs() int64 {
	if l.IOTimeout <= 0 {
		return 1000
	}
	return l.IOTimeout.Milliseconds()
}
