package portmap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/scopebridge/vxi11/internal/xdr"
)

// EncodeMapping encodes a Mapping as the argument of GETPORT/SET/UNSET.
func EncodeMapping(m Mapping) ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteUint32(&buf, m.Prog); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, m.Vers); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, m.Prot); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, m.Port); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMapping decodes a Mapping from raw wire bytes using a hand-rolled
// offset decode rather than a reader-based one, since the portmap wire
// structs are small fixed-size tuples with no padding to track.
func DecodeMapping(data []byte) (*Mapping, error) {
	if len(data) < MappingSize {
		return nil, fmt.Errorf("portmap: mapping too short: got %d bytes, need %d", len(data), MappingSize)
	}
	return &Mapping{
		Prog: binary.BigEndian.Uint32(data[0:4]),
		Vers: binary.BigEndian.Uint32(data[4:8]),
		Prot: binary.BigEndian.Uint32(data[8:12]),
		Port: binary.BigEndian.Uint32(data[12:16]),
	}, nil
}

// decodeGetPortResult decodes a GETPORT reply body: a single uint32 port.
func decodeGetPortResult(data []byte) (uint32, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("portmap: getport result too short: got %d bytes", len(data))
	}
	return binary.BigEndian.Uint32(data[0:4]), nil
}
