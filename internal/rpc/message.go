// Package rpc implements the ONC RPC version 2 message format (RFC 5531):
// call and reply headers, record marking for stream transports, and the
// typed errors a client needs to distinguish transport failures from
// protocol-level rejections.
//
// Authentication is AUTH_NONE only; this package never builds or parses
// AUTH_UNIX or RPCSEC_GSS credentials.
package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Message types (RFC 5531 Section 9).
const (
	MsgCall  uint32 = 0
	MsgReply uint32 = 1
)

// Reply status (RFC 5531 Section 9).
const (
	MsgAccepted uint32 = 0
	MsgDenied   uint32 = 1
)

// Accept status, valid when ReplyStat == MsgAccepted.
const (
	Success      uint32 = 0
	ProgUnavail  uint32 = 1
	ProgMismatch uint32 = 2
	ProcUnavail  uint32 = 3
	GarbageArgs  uint32 = 4
	SystemErr    uint32 = 5
)

// Reject status, valid when ReplyStat == MsgDenied.
const (
	RPCMismatch  uint32 = 0
	AuthError    uint32 = 1
)

// Auth flavors. Only AuthNone is ever sent or accepted by this client.
const (
	AuthNone uint32 = 0
	AuthSys  uint32 = 1
)

// RPCVersion is the only ONC RPC version this package speaks.
const RPCVersion uint32 = 2

// CallHeader is the fixed portion of an RPC call message, excluding the
// procedure-specific arguments that follow it.
type CallHeader struct {
	XID        uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	CredFlavor uint32
	CredBody   []byte
	VerfFlavor uint32
	VerfBody   []byte
}

// EncodeCall serializes an RPC call header (message type CALL, RPC version 2)
// followed by args, producing an unframed RPC message body.
func EncodeCall(h CallHeader, args []byte) ([]byte, error) {
	var buf bytes.Buffer
	fields := []uint32{h.XID, MsgCall, RPCVersion, h.Program, h.Version, h.Procedure}
	for _, v := range fields {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, fmt.Errorf("rpc: encode call header: %w", err)
		}
	}
	if err := encodeOpaqueAuth(&buf, h.CredFlavor, h.CredBody); err != nil {
		return nil, fmt.Errorf("rpc: encode credential: %w", err)
	}
	if err := encodeOpaqueAuth(&buf, h.VerfFlavor, h.VerfBody); err != nil {
		return nil, fmt.Errorf("rpc: encode verifier: %w", err)
	}
	if _, err := buf.Write(args); err != nil {
		return nil, fmt.Errorf("rpc: encode args: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeOpaqueAuth writes an opaque_auth structure: flavor(4) + length(4) + body + padding.
func encodeOpaqueAuth(buf *bytes.Buffer, flavor uint32, body []byte) error {
	if err := binary.Write(buf, binary.BigEndian, flavor); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(body))); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := buf.Write(body); err != nil {
			return err
		}
		if pad := (4 - (len(body) % 4)) % 4; pad > 0 {
			if _, err := buf.Write(make([]byte, pad)); err != nil {
				return err
			}
		}
	}
	return nil
}

// EncodeSuccessReply builds a complete MSG_ACCEPTED/SUCCESS reply body (an
// AUTH_NONE verifier, no record marking) for the given xid, used by the
// reverse-direction interrupt server when answering a device_intr_srq call.
func EncodeSuccessReply(xid uint32, result []byte) []byte {
	buf := make([]byte, 24+len(result))
	binary.BigEndian.PutUint32(buf[0:4], xid)
	binary.BigEndian.PutUint32(buf[4:8], MsgReply)
	binary.BigEndian.PutUint32(buf[8:12], MsgAccepted)
	binary.BigEndian.PutUint32(buf[12:16], AuthNone) // verf_flavor
	binary.BigEndian.PutUint32(buf[16:20], 0)        // verf_len
	binary.BigEndian.PutUint32(buf[20:24], Success)
	copy(buf[24:], result)
	return buf
}

// EncodeAcceptedErrorReply builds a MSG_ACCEPTED reply carrying a non-SUCCESS
// accept_stat (PROG_UNAVAIL, PROC_UNAVAIL, GARBAGE_ARGS, ...).
func EncodeAcceptedErrorReply(xid, acceptStat uint32) []byte {
	buf := make([]byte, 24)
	binary.BigEndian.PutUint32(buf[0:4], xid)
	binary.BigEndian.PutUint32(buf[4:8], MsgReply)
	binary.BigEndian.PutUint32(buf[8:12], MsgAccepted)
	binary.BigEndian.PutUint32(buf[12:16], AuthNone)
	binary.BigEndian.PutUint32(buf[16:20], 0)
	binary.BigEndian.PutUint32(buf[20:24], acceptStat)
	return buf
}

// CallIn is an RPC call message parsed by DecodeCall: the header fields and
// the remaining procedure-argument bytes. Used by the interrupt server,
// which plays the server role in the reverse-direction RPC.
type CallIn struct {
	XID       uint32
	Program   uint32
	Version   uint32
	Procedure uint32
	Args      []byte
}

// DecodeCall parses a CALL message body (credential/verifier are validated
// for shape but not interpreted, since this module never authenticates
// beyond AUTH_NONE).
func DecodeCall(data []byte) (*CallIn, error) {
	r := bytes.NewReader(data)

	var xid, msgType, rpcvers, prog, vers, proc uint32
	for _, v := range []*uint32{&xid, &msgType, &rpcvers, &prog, &vers, &proc} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return nil, fmt.Errorf("rpc: read call header: %w", err)
		}
	}
	if msgType != MsgCall {
		return nil, fmt.Errorf("rpc: expected CALL (0), got msg_type=%d", msgType)
	}
	if rpcvers != RPCVersion {
		return nil, fmt.Errorf("rpc: unsupported rpcvers %d", rpcvers)
	}

	if _, err := decodeOpaqueAuth(r); err != nil {
		return nil, fmt.Errorf("rpc: read credential: %w", err)
	}
	if _, err := decodeOpaqueAuth(r); err != nil {
		return nil, fmt.Errorf("rpc: read verifier: %w", err)
	}

	args := make([]byte, r.Len())
	if _, err := io.ReadFull(r, args); err != nil && len(args) > 0 {
		return nil, fmt.Errorf("rpc: read call args: %w", err)
	}

	return &CallIn{XID: xid, Program: prog, Version: vers, Procedure: proc, Args: args}, nil
}

// decodeOpaqueAuth reads an opaque_auth structure and returns its body.
func decodeOpaqueAuth(r *bytes.Reader) ([]byte, error) {
	var flavor, length uint32
	if err := binary.Read(r, binary.BigEndian, &flavor); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	if pad := (4 - (length % 4)) % 4; pad > 0 {
		if _, err := r.Seek(int64(pad), 1); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// Reply is a parsed RPC reply header. Body holds whatever procedure-specific
// result data follows the header (only meaningful when Accepted and
// AcceptStat == Success).
type Reply struct {
	XID          uint32
	Accepted     bool
	AcceptStat   uint32 // valid when Accepted
	RejectStat   uint32 // valid when !Accepted
	MismatchLow  uint32 // valid when AcceptStat/RejectStat == *Mismatch
	MismatchHigh uint32
	AuthStat     uint32 // valid when !Accepted && RejectStat == AuthError
	Body         []byte
}

// DecodeReply parses an unframed RPC reply message body.
func DecodeReply(data []byte) (*Reply, error) {
	r := bytes.NewReader(data)

	var xid, msgType uint32
	if err := binary.Read(r, binary.BigEndian, &xid); err != nil {
		return nil, fmt.Errorf("rpc: read xid: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &msgType); err != nil {
		return nil, fmt.Errorf("rpc: read msg type: %w", err)
	}
	if msgType != MsgReply {
		return nil, fmt.Errorf("rpc: expected REPLY (1), got msg_type=%d", msgType)
	}

	var replyStat uint32
	if err := binary.Read(r, binary.BigEndian, &replyStat); err != nil {
		return nil, fmt.Errorf("rpc: read reply_stat: %w", err)
	}

	reply := &Reply{XID: xid}

	switch replyStat {
	case MsgAccepted:
		reply.Accepted = true
		// verifier: flavor(4) + length(4) + body + padding
		var verfFlavor, verfLen uint32
		if err := binary.Read(r, binary.BigEndian, &verfFlavor); err != nil {
			return nil, fmt.Errorf("rpc: read verf flavor: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &verfLen); err != nil {
			return nil, fmt.Errorf("rpc: read verf length: %w", err)
		}
		if verfLen > 0 {
			skip := int(verfLen) + (4-(int(verfLen)%4))%4
			if _, err := r.Seek(int64(skip), 1); err != nil {
				return nil, fmt.Errorf("rpc: skip verifier: %w", err)
			}
		}
		if err := binary.Read(r, binary.BigEndian, &reply.AcceptStat); err != nil {
			return nil, fmt.Errorf("rpc: read accept_stat: %w", err)
		}
		switch reply.AcceptStat {
		case ProgMismatch:
			if err := binary.Read(r, binary.BigEndian, &reply.MismatchLow); err != nil {
				return nil, fmt.Errorf("rpc: read low version: %w", err)
			}
			if err := binary.Read(r, binary.BigEndian, &reply.MismatchHigh); err != nil {
				return nil, fmt.Errorf("rpc: read high version: %w", err)
			}
		case Success:
			remaining := make([]byte, r.Len())
			if _, err := r.Read(remaining); err != nil && len(remaining) > 0 {
				return nil, fmt.Errorf("rpc: read body: %w", err)
			}
			reply.Body = remaining
		}
	case MsgDenied:
		reply.Accepted = false
		if err := binary.Read(r, binary.BigEndian, &reply.RejectStat); err != nil {
			return nil, fmt.Errorf("rpc: read reject_stat: %w", err)
		}
		switch reply.RejectStat {
		case RPCMismatch:
			if err := binary.Read(r, binary.BigEndian, &reply.MismatchLow); err != nil {
				return nil, fmt.Errorf("rpc: read low rpcvers: %w", err)
			}
			if err := binary.Read(r, binary.BigEndian, &reply.MismatchHigh); err != nil {
				return nil, fmt.Errorf("rpc: read high rpcvers: %w", err)
			}
		case AuthError:
			if err := binary.Read(r, binary.BigEndian, &reply.AuthStat); err != nil {
				return nil, fmt.Errorf("rpc: read auth_stat: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("rpc: invalid reply_stat %d", replyStat)
	}

	return reply, nil
}
