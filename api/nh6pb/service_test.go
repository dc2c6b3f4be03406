package nh6pb

import (
	"context"
	"net/netip"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dpdk-grout/grout/internal/ctrlthread"
	"github.com/dpdk-grout/grout/internal/errs"
	"github.com/dpdk-grout/grout/internal/iface"
	"github.com/dpdk-grout/grout/internal/nexthop6"
	"github.com/dpdk-grout/grout/internal/routetable"
)

func newTestService(t *testing.T) (*Service, *ctrlthread.Executor, func()) {
	t.Helper()
	pool, err := nexthop6.NewPool(nexthop6.Config{NumNexthops: 16, MaxHeldPackets: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	routes := routetable.NewFake(pool)
	ifaces := iface.NewFake()
	ifaces.Add(1, netip.MustParseAddr("fe80::9"), nexthop6.LinkAddr{9, 9, 9, 9, 9, 9})

	exec := ctrlthread.New(4)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case fn := <-exec.Chan():
				fn()
			case <-stop:
				return
			}
		}
	}()

	return New(pool, routes, ifaces, exec, nil), exec, func() { close(stop) }
}

func addr16(s string) [16]byte {
	return netip.MustParseAddr(s).As16()
}

func TestAddRejectsUnspecifiedAddress(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()

	_, err := s.Add(context.Background(), &AddRequest{VRF: 0, Iface: 1, Addr: addr16("::")})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Add(::) code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestAddRejectsMulticastAddress(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()

	_, err := s.Add(context.Background(), &AddRequest{VRF: 0, Iface: 1, Addr: addr16("ff02::1")})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Add(multicast) code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestAddRejectsAllVRFsSentinel(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()

	_, err := s.Add(context.Background(), &AddRequest{VRF: AllVRFs, Iface: 1, Addr: addr16("fe80::1")})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Add(AllVRFs) code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestAddRejectsUnknownIface(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()

	_, err := s.Add(context.Background(), &AddRequest{VRF: 0, Iface: 99, Addr: addr16("fe80::1")})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Add(unknown iface) code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestAddCreatesStaticReachableNexthop(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()

	mac := [6]byte{1, 2, 3, 4, 5, 6}
	_, err := s.Add(context.Background(), &AddRequest{VRF: 0, Iface: 1, Addr: addr16("fe80::1"), Mac: mac})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	nh := s.pool.Lookup(0, 1, netip.MustParseAddr("fe80::1"))
	if nh == nil {
		t.Fatal("Add did not create a next-hop")
	}
	if !nh.Flags.Has(nexthop6.Static) || !nh.Flags.Has(nexthop6.Reachable) {
		t.Fatalf("Flags = %v, want STATIC|REACHABLE", nh.Flags)
	}
	if nh.LinkAddr != nexthop6.LinkAddr(mac) {
		t.Fatalf("LinkAddr = %v, want %v", nh.LinkAddr, mac)
	}
	if _, ok := s.routes.Lookup(0, 1, netip.MustParseAddr("fe80::1")); !ok {
		t.Fatal("Add did not install a host route")
	}
}

func TestAddDuplicateWithoutExistOKFails(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()
	req := &AddRequest{VRF: 0, Iface: 1, Addr: addr16("fe80::1"), Mac: [6]byte{1, 2, 3, 4, 5, 6}}

	if _, err := s.Add(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	_, err := s.Add(context.Background(), req)
	if status.Code(err) != codes.AlreadyExists {
		t.Fatalf("duplicate Add code = %v, want AlreadyExists", status.Code(err))
	}
}

// TestAddIdempotentWithExistOK covers the ExistOK idempotency clause: a
// repeat Add matching the existing record's iface and MAC succeeds.
func TestAddIdempotentWithExistOK(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	req := &AddRequest{VRF: 0, Iface: 1, Addr: addr16("fe80::1"), Mac: mac}

	if _, err := s.Add(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	req2 := &AddRequest{VRF: 0, Iface: 1, Addr: addr16("fe80::1"), Mac: mac, ExistOK: true}
	if _, err := s.Add(context.Background(), req2); err != nil {
		t.Fatalf("idempotent Add: %v", err)
	}
}

func TestAddExistOKWithMismatchedMACStillFails(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()
	req := &AddRequest{VRF: 0, Iface: 1, Addr: addr16("fe80::1"), Mac: [6]byte{1, 2, 3, 4, 5, 6}}

	if _, err := s.Add(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	req2 := &AddRequest{VRF: 0, Iface: 1, Addr: addr16("fe80::1"), Mac: [6]byte{9, 9, 9, 9, 9, 9}, ExistOK: true}
	_, err := s.Add(context.Background(), req2)
	if status.Code(err) != codes.AlreadyExists {
		t.Fatalf("ExistOK with mismatched MAC code = %v, want AlreadyExists", status.Code(err))
	}
}

func TestDelRemovesNexthop(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()
	addr := addr16("fe80::1")
	if _, err := s.Add(context.Background(), &AddRequest{VRF: 0, Iface: 1, Addr: addr}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Del(context.Background(), &DelRequest{VRF: 0, Iface: 1, Addr: addr}); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if nh := s.pool.Lookup(0, 1, netip.MustParseAddr("fe80::1")); nh != nil {
		t.Fatal("Del did not reclaim the next-hop")
	}
}

func TestDelMissingWithoutMissingOKFails(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()

	_, err := s.Del(context.Background(), &DelRequest{VRF: 0, Iface: 1, Addr: addr16("fe80::1")})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("Del missing code = %v, want NotFound", status.Code(err))
	}
}

func TestDelMissingWithMissingOKSucceeds(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()

	_, err := s.Del(context.Background(), &DelRequest{VRF: 0, Iface: 1, Addr: addr16("fe80::1"), MissingOK: true})
	if err != nil {
		t.Fatalf("Del with MissingOK: %v", err)
	}
}

func TestDelBusyNexthopFails(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()
	addr := addr16("fe80::1")
	if _, err := s.Add(context.Background(), &AddRequest{VRF: 0, Iface: 1, Addr: addr}); err != nil {
		t.Fatal(err)
	}
	nh := s.pool.Lookup(0, 1, netip.MustParseAddr("fe80::1"))
	s.pool.Incref(nh) // simulate a second route referencing this next-hop

	_, err := s.Del(context.Background(), &DelRequest{VRF: 0, Iface: 1, Addr: addr})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("Del busy code = %v, want FailedPrecondition", status.Code(err))
	}
}

// TestListFiltersByVRFAndExcludesMulticast covers nh6_list's projection
// rules: AllVRFs matches every VRF, a specific VRF excludes the rest, and
// multicast addresses never appear.
func TestListFiltersByVRFAndExcludesMulticast(t *testing.T) {
	s, _, stop := newTestService(t)
	defer stop()

	if _, err := s.Add(context.Background(), &AddRequest{VRF: 0, Iface: 1, Addr: addr16("fe80::1")}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(context.Background(), &AddRequest{VRF: 1, Iface: 1, Addr: addr16("fe80::2")}); err != nil {
		t.Fatal(err)
	}
	// Seed a multicast entry directly in the pool: Add's own validation
	// would reject it, but List's defensive filter is exercised here
	// regardless of how such a record could arise.
	if _, err := s.pool.New(0, 1, netip.MustParseAddr("ff02::1")); err != nil {
		t.Fatal(err)
	}

	reply, err := s.List(context.Background(), &ListRequest{VRF: 0})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(reply.Nexthops) != 1 || reply.Nexthops[0].Addr != addr16("fe80::1") {
		t.Fatalf("List(vrf=0) = %+v, want exactly fe80::1", reply.Nexthops)
	}

	all, err := s.List(context.Background(), &ListRequest{VRF: AllVRFs})
	if err != nil {
		t.Fatalf("List(AllVRFs): %v", err)
	}
	if len(all.Nexthops) != 2 {
		t.Fatalf("List(AllVRFs) returned %d entries, want 2", len(all.Nexthops))
	}
}

func TestToStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{errs.ErrInvalid, codes.InvalidArgument},
		{errs.ErrNotFound, codes.NotFound},
		{errs.ErrExists, codes.AlreadyExists},
		{errs.ErrBusy, codes.FailedPrecondition},
		{errs.ErrOverflow, codes.ResourceExhausted},
		{errs.ErrResource, codes.ResourceExhausted},
		{errs.ErrUnreachable, codes.Unavailable},
	}
	for _, tc := range cases {
		if got := status.Code(ToStatus(tc.err)); got != tc.want {
			t.Errorf("ToStatus(%v) code = %v, want %v", tc.err, got, tc.want)
		}
	}
	if ToStatus(nil) != nil {
		t.Error("ToStatus(nil) must be nil")
	}
}
