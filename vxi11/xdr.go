package vxi11

import (
	"bytes"
	"fmt"

	xdr2 "github.com/rasky/go-xdr/xdr2"

	"github.com/scopebridge/vxi11/internal/xdr"
)

// Request arguments are hand-rolled with internal/xdr for precise control
// over argument shape; replies are decoded with go-xdr/xdr2's
// struct-field-order Unmarshal, which removes boilerplate for the handful
// of small, fixed-shape results. Both read the same big-endian XDR wire
// format.

// encodeCreateLinkArgs builds the Create_LinkParms argument.
func encodeCreateLinkArgs(clientID int32, lockDevice bool, lockTimeoutMs uint32, device string) ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteInt32(&buf, clientID); err != nil {
		return nil, err
	}
	if err := xdr.WriteBool(&buf, lockDevice); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, lockTimeoutMs); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDRString(&buf, device); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type createLinkResult struct {
	Error       int32
	Lid         int32
	AbortPort   uint32
	MaxRecvSize uint32
}

func decodeCreateLinkResult(body []byte) (*createLinkResult, error) {
	var r createLinkResult
	if _, err := xdr2.Unmarshal(bytes.NewReader(body), &r); err != nil {
		return nil, fmt.Errorf("vxi11: decode create_link result: %w", err)
	}
	return &r, nil
}

// encodeDeviceWriteArgs builds one Device_WriteParms argument for a single
// chunk. Callers are responsible for chunking at max_recv_size and setting
// FlagEnd only on the final chunk.
func encodeDeviceWriteArgs(lid int32, ioTimeoutMs, lockTimeoutMs uint32, flags DeviceFlags, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteInt32(&buf, lid); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, ioTimeoutMs); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, lockTimeoutMs); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, uint32(flags)); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDROpaque(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type deviceWriteResult struct {
	Error int32
	Size  uint32
}

func decodeDeviceWriteResult(body []byte) (*deviceWriteResult, error) {
	var r deviceWriteResult
	if _, err := xdr2.Unmarshal(bytes.NewReader(body), &r); err != nil {
		return nil, fmt.Errorf("vxi11: decode device_write result: %w", err)
	}
	return &r, nil
}

// encodeDeviceReadArgs builds a Device_ReadParms argument. termChar is only
// meaningful when flags has FlagTermCharSet set.
func encodeDeviceReadArgs(lid int32, requestSize, ioTimeoutMs, lockTimeoutMs uint32, flags DeviceFlags, termChar byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteInt32(&buf, lid); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, requestSize); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, ioTimeoutMs); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, lockTimeoutMs); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, uint32(flags)); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, uint32(termChar)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type deviceReadResult struct {
	Error  int32
	Reason int32
	Data   []byte
}

func decodeDeviceReadResult(body []byte) (*deviceReadResult, error) {
	var r deviceReadResult
	if _, err := xdr2.Unmarshal(bytes.NewReader(body), &r); err != nil {
		return nil, fmt.Errorf("vxi11: decode device_read result: %w", err)
	}
	return &r, nil
}

// encodeGenericArgs builds a Device_GenericParms argument, shared by
// device_readstb, device_trigger, device_clear, device_remote, device_local.
func encodeGenericArgs(lid int32, flags DeviceFlags, ioTimeoutMs uint32) ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteInt32(&buf, lid); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, uint32(flags)); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, ioTimeoutMs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type deviceErrorResult struct {
	Error int32
}

func decodeDeviceErrorResult(body []byte) (*deviceErrorResult, error) {
	var r deviceErrorResult
	if _, err := xdr2.Unmarshal(bytes.NewReader(body), &r); err != nil {
		return nil, fmt.Errorf("vxi11: decode device error result: %w", err)
	}
	return &r, nil
}

type deviceReadStbResult struct {
	Error int32
	STB   uint32
}

func decodeDeviceReadStbResult(body []byte) (*deviceReadStbResult, error) {
	var r deviceReadStbResult
	if _, err := xdr2.Unmarshal(bytes.NewReader(body), &r); err != nil {
		return nil, fmt.Errorf("vxi11: decode device_readstb result: %w", err)
	}
	return &r, nil
}

// encodeLockArgs builds a Device_LockParms argument.
func encodeLockArgs(lid int32, flags DeviceFlags, lockTimeoutMs uint32) ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteInt32(&buf, lid); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, uint32(flags)); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, lockTimeoutMs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeLinkIDArgs encodes a bare Device_Link, used by device_unlock and
// destroy_link.
func encodeLinkIDArgs(lid int32) ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteInt32(&buf, lid); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeEnableSRQArgs builds a Device_EnableSrqParms argument.
func encodeEnableSRQArgs(lid int32, enable bool, handle []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteInt32(&buf, lid); err != nil {
		return nil, err
	}
	if err := xdr.WriteBool(&buf, enable); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDROpaque(&buf, handle); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeDoCmdArgs builds a Device_DocmdParms argument.
func encodeDoCmdArgs(lid int32, flags DeviceFlags, ioTimeoutMs, lockTimeoutMs uint32, cmd int32, networkOrder bool, dataSize int32, dataIn []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteInt32(&buf, lid); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, uint32(flags)); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, ioTimeoutMs); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, lockTimeoutMs); err != nil {
		return nil, err
	}
	if err := xdr.WriteInt32(&buf, cmd); err != nil {
		return nil, err
	}
	if err := xdr.WriteBool(&buf, networkOrder); err != nil {
		return nil, err
	}
	if err := xdr.WriteInt32(&buf, dataSize); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDROpaque(&buf, dataIn); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type deviceDoCmdResult struct {
	Error   int32
	DataOut []byte
}

func decodeDeviceDoCmdResult(body []byte) (*deviceDoCmdResult, error) {
	var r deviceDoCmdResult
	if _, err := xdr2.Unmarshal(bytes.NewReader(body), &r); err != nil {
		return nil, fmt.Errorf("vxi11: decode device_docmd result: %w", err)
	}
	return &r, nil
}

// encodeCreateIntrChanArgs builds a Device_RemoteFunc argument.
func encodeCreateIntrChanArgs(hostAddr string, hostPort, progNum, progVers, progFamily uint32) ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteXDRString(&buf, hostAddr); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, hostPort); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, progNum); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, progVers); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, progFamily); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeDeviceAbortArgs encodes the device_abort argument (a bare Device_Link).
func encodeDeviceAbortArgs(lid int32) ([]byte, error) {
	return encodeLinkIDArgs(lid)
}

// decodeIntrSRQArgs decodes the Device_SrqParms argument of an inbound
// device_intr_srq call.
func decodeIntrSRQArgs(data []byte) ([]byte, error) {
	var r struct{ Handle []byte }
	if _, err := xdr2.Unmarshal(bytes.NewReader(data), &r); err != nil {
		return nil, fmt.Errorf("vxi11: decode device_intr_srq args: %w", err)
	}
	return r.Handle, nil
}
