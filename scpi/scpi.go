// Package scpi is a thin convenience layer over instrument.Instrument for
// text-command instruments (SCPI, IEEE-488.2): send a command, or send a
// query and read the response up to the line terminator. Naming follows
// the reference client this module is modeled on (scpi_send/scpi_query).
package scpi

import (
	"context"

	"github.com/scopebridge/vxi11/instrument"
)

// Terminator is the default SCPI message terminator.
const Terminator = '\n'

// Peripheral wraps an instrument.Instrument with SCPI-flavored helpers.
type Peripheral struct {
	inst *instrument.Instrument
}

// New wraps inst for SCPI use.
func New(inst *instrument.Instrument) *Peripheral {
	return &Peripheral{inst: inst}
}

// Send writes a SCPI command, appending Terminator if cmd doesn't already
// end with one.
func (p *Peripheral) Send(ctx context.Context, cmd string) error {
	payload := []byte(cmd)
	if len(payload) == 0 || payload[len(payload)-1] != Terminator {
		payload = append(payload, Terminator)
	}
	_, err := p.inst.Write(ctx, payload)
	return err
}

// Query sends cmd and returns the instrument's response up to Terminator,
// with the terminator itself excluded.
func (p *Peripheral) Query(ctx context.Context, cmd string) (string, error) {
	if err := p.Send(ctx, cmd); err != nil {
		return "", err
	}
	data, err := p.inst.ReadUntil(ctx, Terminator)
	if err != nil {
		return "", err
	}
	if n := len(data); n > 0 && data[n-1] == Terminator {
		data = data[:n-1]
	}
	return string(data), nil
}

// GetStatusByte reads the IEEE-488.2 status byte via device_readstb.
func (p *Peripheral) GetStatusByte(ctx context.Context) (byte, error) {
	return p.inst.ReadSTB(ctx)
}
