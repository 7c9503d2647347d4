package vxi11

import "github.com/scopebridge/vxi11/vxi11err"

// VXI-11 device_error codes (VXI-11 TCP/IP Instrument Protocol Spec §B.1).
const (
	ErrSyntaxError           uint32 = 1
	ErrDeviceNotAccessible   uint32 = 3
	ErrInvalidLink           uint32 = 4
	ErrParameterError        uint32 = 5
	ErrChannelNotEstablished uint32 = 6
	ErrOperationNotSupported uint32 = 8
	ErrOutOfResources        uint32 = 9
	ErrDeviceLocked          uint32 = 11
	ErrNoLock                uint32 = 12
	ErrIOTimeout             uint32 = 15
	ErrIOError               uint32 = 17
	ErrAbort                 uint32 = 23
	ErrChannelAlreadyOpen    uint32 = 29
)

var deviceErrorDescriptions = map[uint32]string{
	ErrSyntaxError:           "syntax error",
	ErrDeviceNotAccessible:   "device not accessible",
	ErrInvalidLink:           "invalid link identifier",
	ErrParameterError:        "parameter error",
	ErrChannelNotEstablished: "channel not established",
	ErrOperationNotSupported: "operation not supported",
	ErrOutOfResources:        "out of resources",
	ErrDeviceLocked:          "device locked by another link",
	ErrNoLock:                "no lock held by this link",
	ErrIOTimeout:             "I/O timeout",
	ErrIOError:               "I/O error",
	ErrAbort:                 "abort",
	ErrChannelAlreadyOpen:    "channel already established",
}

// checkDeviceError translates a VXI-11 device_error field into a
// vxi11err.Error, or nil when code is 0 (success).
func checkDeviceError(code uint32) error {
	if code == 0 {
		return nil
	}
	desc, ok := deviceErrorDescriptions[code]
	if !ok {
		desc = "unknown device error"
	}
	return vxi11err.NewDevice(code, desc)
}
