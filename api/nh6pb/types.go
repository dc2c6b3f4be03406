// Package nh6pb implements the control-plane API surface of spec §4.7:
// Add/Del/List operations on administratively configured (static)
// next-hops.
//
// nh6.proto is this package's wire contract; the message types below are
// hand-written plain-Go counterparts of its messages, not protoc output
// (addresses are fixed-size arrays here). Service carries the actual
// business logic so it is usable, and testable, independent of whichever
// transport — generated gRPC stubs, or a direct in-process call — ends
// up invoking it.
package nh6pb

import "github.com/dpdk-grout/grout/internal/nexthop6"

// AllVRFs is the "all VRFs" sentinel for ListRequest.VRF, matching the
// spec's UINT16_MAX convention widened to this module's uint32 VRFID.
const AllVRFs nexthop6.VRFID = 1<<32 - 1

// AddRequest is the nh6_add request DTO.
type AddRequest struct {
	VRF     nexthop6.VRFID
	Iface   nexthop6.IfaceID
	Addr    [16]byte
	Mac     [6]byte
	ExistOK bool
}

// AddReply is empty on success; errors are reported out-of-band by the
// transport's status adapter.
type AddReply struct{}

// DelRequest is the nh6_del request DTO. Iface == nexthop6.UndefIface
// matches any interface within VRF.
type DelRequest struct {
	VRF       nexthop6.VRFID
	Iface     nexthop6.IfaceID
	Addr      [16]byte
	MissingOK bool
}

// DelReply is empty on success.
type DelReply struct{}

// ListRequest selects which VRF to list. VRF == AllVRFs lists every VRF.
type ListRequest struct {
	VRF nexthop6.VRFID
}

// Nexthop is the flat DTO nh6_list projects each record into.
type Nexthop struct {
	VRF        nexthop6.VRFID
	Iface      nexthop6.IfaceID
	Addr       [16]byte
	Mac        [6]byte
	Flags      nexthop6.Flags
	AgeSeconds float64
}

// ListReply carries the projected records.
type ListReply struct {
	Nexthops []Nexthop
}
