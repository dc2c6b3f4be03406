package nh6pb

import (
	"context"
	"net/netip"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dpdk-grout/grout/internal/ctrlthread"
	"github.com/dpdk-grout/grout/internal/errs"
	"github.com/dpdk-grout/grout/internal/fsm"
	"github.com/dpdk-grout/grout/internal/iface"
	"github.com/dpdk-grout/grout/internal/nexthop6"
	"github.com/dpdk-grout/grout/internal/routetable"
)

// Service implements the three static-next-hop operations of spec §4.7
// against a pool and route table. Every operation that touches pool or
// route-table state runs through exec, so requests arriving concurrently
// on gRPC handler goroutines still serialize onto the single control
// thread (spec §5, §7).
type Service struct {
	pool   *nexthop6.Pool
	routes routetable.Table
	ifaces iface.Inventory
	exec   *ctrlthread.Executor
	log    *zap.Logger
}

// New constructs a Service.
func New(pool *nexthop6.Pool, routes routetable.Table, ifaces iface.Inventory, exec *ctrlthread.Executor, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{pool: pool, routes: routes, ifaces: ifaces, exec: exec, log: log}
}

// Add implements nh6_add: validates the request, creates a STATIC|
// REACHABLE next-hop and installs its /128 route. Idempotent when
// ExistOK is set and the existing record matches iface and MAC.
func (s *Service) Add(ctx context.Context, req *AddRequest) (*AddReply, error) {
	addr := netip.AddrFrom16(req.Addr)
	if addr.IsUnspecified() || addr.IsMulticast() {
		return nil, ToStatus(errs.ErrInvalid)
	}
	if req.VRF == AllVRFs || !s.ifaces.Exists(req.Iface) {
		return nil, ToStatus(errs.ErrInvalid)
	}

	var reply *AddReply
	var err error
	s.exec.Run(func() {
		reply, err = s.doAdd(req, addr)
	})
	return reply, err
}

func (s *Service) doAdd(req *AddRequest, addr netip.Addr) (*AddReply, error) {
	mac := nexthop6.LinkAddr(req.Mac)

	if existing := s.pool.Lookup(req.VRF, req.Iface, addr); existing != nil {
		if req.ExistOK && existing.Flags.Has(nexthop6.Static) &&
			existing.OutIface == req.Iface && existing.LinkAddr == mac {
			return &AddReply{}, nil
		}
		return nil, ToStatus(errs.ErrExists)
	}

	nh, err := s.pool.New(req.VRF, req.Iface, addr)
	if err != nil {
		return nil, ToStatus(err)
	}
	nh.Flags |= nexthop6.Static | nexthop6.Reachable
	nh.LinkAddr = mac
	nh.LastReply = time.Now()

	if err := s.routes.InstallHost(req.VRF, addr, nh); err != nil {
		return nil, ToStatus(err)
	}

	s.log.Info("static nexthop added",
		zap.Uint32("vrf", uint32(req.VRF)),
		zap.Uint32("iface", uint32(req.Iface)),
		zap.Stringer("addr", addr),
	)
	return &AddReply{}, nil
}

// Del implements nh6_del: requires refcount <= 1 and none of
// LOCAL/LINK/GATEWAY set; deletion goes via route removal, which drives
// decref and reclamation. MissingOK suppresses NotFound.
func (s *Service) Del(ctx context.Context, req *DelRequest) (*DelReply, error) {
	addr := netip.AddrFrom16(req.Addr)

	var reply *DelReply
	var err error
	s.exec.Run(func() {
		reply, err = s.doDel(req, addr)
	})
	return reply, err
}

func (s *Service) doDel(req *DelRequest, addr netip.Addr) (*DelReply, error) {
	nh := s.pool.Lookup(req.VRF, req.Iface, addr)
	if nh == nil {
		if req.MissingOK {
			return &DelReply{}, nil
		}
		return nil, ToStatus(errs.ErrNotFound)
	}
	if !fsm.CanDelete(nh) {
		return nil, ToStatus(errs.ErrBusy)
	}

	if err := s.routes.RemoveHost(req.VRF, req.Iface, addr); err != nil {
		return nil, ToStatus(err)
	}
	return &DelReply{}, nil
}

// List implements nh6_list: iterates the pool, filters by VRF (AllVRFs
// matches every VRF), excludes multicast addresses, and projects each
// record with age = now - last_reply.
func (s *Service) List(ctx context.Context, req *ListRequest) (*ListReply, error) {
	var reply *ListReply
	s.exec.Run(func() {
		reply = s.doList(req)
	})
	return reply, nil
}

func (s *Service) doList(req *ListRequest) *ListReply {
	now := time.Now()
	reply := &ListReply{}

	s.pool.Iterate(func(nh *nexthop6.Nexthop) {
		if req.VRF != AllVRFs && nh.VRF != req.VRF {
			return
		}
		if nh.Addr.IsMulticast() {
			return
		}
		reply.Nexthops = append(reply.Nexthops, Nexthop{
			VRF:        nh.VRF,
			Iface:      nh.OutIface,
			Addr:       nh.Addr.As16(),
			Mac:        [6]byte(nh.LinkAddr),
			Flags:      nh.Flags,
			AgeSeconds: nh.Age(now).Seconds(),
		})
	})
	return reply
}

// ToStatus adapts an internal/errs sentinel into a gRPC status error,
// analogous to the teacher's WrapTcpIpError(err).ToZxStatus() adapter.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	code := codes.Unknown
	switch err {
	case errs.ErrInvalid:
		code = codes.InvalidArgument
	case errs.ErrNotFound:
		code = codes.NotFound
	case errs.ErrExists:
		code = codes.AlreadyExists
	case errs.ErrBusy:
		code = codes.FailedPrecondition
	case errs.ErrOverflow, errs.ErrResource:
		code = codes.ResourceExhausted
	case errs.ErrUnreachable:
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}
