// Package portmap is an ONC RPC v2 portmapper client (RFC 1057): service
// discovery for the VXI-11 programs, over TCP, connected UDP, or UDP
// broadcast/multicast.
package portmap

// Program is the well-known portmap RPC program number.
const Program uint32 = 100000

// Version is the only portmap version this client speaks.
const Version uint32 = 2

// Port is the well-known portmap service port.
const Port = 111

// Procedure numbers (RFC 1057 Section 3). CALLIT (5) is named for
// completeness of the procedure table but intentionally has no client
// method: forwarding arbitrary calls through the portmapper is a known
// DDoS amplification vector, and the original client this module is
// modeled on never issues it either.
const (
	ProcNull    uint32 = 0
	ProcSet     uint32 = 1
	ProcUnset   uint32 = 2
	ProcGetPort uint32 = 3
	ProcDump    uint32 = 4
	ProcCallIt  uint32 = 5
)

// IP protocol numbers used in a Mapping's Prot field.
const (
	IPProtoTCP uint32 = 6
	IPProtoUDP uint32 = 17
)

// Mapping is the portmap (prog, vers, prot, port) tuple (RFC 1057 Section 3).
type Mapping struct {
	Prog uint32
	Vers uint32
	Prot uint32
	Port uint32
}

// MappingSize is the encoded size in bytes of a Mapping.
const MappingSize = 16
