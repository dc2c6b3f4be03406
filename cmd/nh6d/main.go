// Command nh6d is the control-thread binary for the IPv6 neighbor
// discovery resolution subsystem: it wires the next-hop pool, resolution
// FSM, control ring, NDP codec, unreachable handler, probe emitter and
// the nh6 gRPC API surface under one errgroup.Group, mirroring how the
// teacher's netstack.Netstack wires its own dispatchers and workers
// together at startup.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/dpdk-grout/grout/api/nh6pb"
	"github.com/dpdk-grout/grout/internal/ctrlthread"
	"github.com/dpdk-grout/grout/internal/fsm"
	"github.com/dpdk-grout/grout/internal/iface"
	"github.com/dpdk-grout/grout/internal/nexthop6"
	"github.com/dpdk-grout/grout/internal/probe"
	"github.com/dpdk-grout/grout/internal/ring"
	"github.com/dpdk-grout/grout/internal/routetable"
	"github.com/dpdk-grout/grout/internal/unreachable"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(args []string) (err error) {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	log, err := newLogger(f.dev)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, log.Sync()) }()

	cfg := f.nexthopConfig()
	cfg.Logger = log

	ifaces := iface.System{}

	pool, err := nexthop6.NewPool(cfg, func(nh *nexthop6.Nexthop) error {
		log.Debug("nexthop reclaimed", zap.Stringer("addr", nh.Addr))
		return nil
	})
	if err != nil {
		return err
	}

	routes := routetable.NewFake(pool)

	sender, err := newRawSender()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sender.Close()) }()

	emitter := probe.New(cfg, ifaces, sender)
	out := &logOutputter{log: log}
	machine := fsm.New(cfg, emitter, out, log, nil)
	unreach := unreachable.New(pool, routes, machine, out, log)
	exec := ctrlthread.New(f.ringDepth)
	svc := nh6pb.New(pool, routes, ifaces, exec, log)

	r := ring.New(f.ringDepth)
	registry := ring.NewRegistry()
	unreachableID := registry.Register(ring.HandlerUnreachable)
	ndpInputID := registry.Register(ring.HandlerNDPInput)

	recv, err := newNDPReceiver(f.vrf(), ifaces, sender, r, ndpInputID, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, recv.Close()) }()

	grpcServer := grpc.NewServer()
	lis, err := net.Listen("tcp", f.listenAddr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var eg errgroup.Group

	eg.Go(func() error {
		log.Info("nh6 control-plane API listening", zap.String("addr", f.listenAddr))
		return grpcServer.Serve(lis)
	})

	eg.Go(func() error {
		<-ctx.Done()
		grpcServer.GracefulStop()
		return nil
	})

	eg.Go(func() error {
		return runControlThread(ctx, r, exec, pool, unreach, machine, cfg, unreachableID, ndpInputID, log)
	})

	eg.Go(func() error {
		return recv.Run(ctx)
	})

	_ = svc // registered via generated stubs once nh6.proto is compiled; see api/nh6pb.
	return eg.Wait()
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// runControlThread is the single goroutine that mutates next-hop state
// (spec §5): it selects between the datapath-to-control ring
// (unreachable misses, NDP-learned events) and the probe/reachable
// timer tick, the same way the teacher's netstack runs one event loop
// per NIC mixing received packets and timer-driven NUD work.
func runControlThread(ctx context.Context, r *ring.Ring, exec *ctrlthread.Executor, pool *nexthop6.Pool, unreach *unreachable.Handler, machine *fsm.Machine, cfg nexthop6.Config, unreachableID, ndpInputID ring.HandlerID, log *zap.Logger) error {
	ticker := time.NewTicker(cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case fn := <-exec.Chan():
			fn()

		case msg := <-r.Chan():
			switch msg.Handler {
			case unreachableID:
				if miss, ok := msg.Payload.(unreachable.Miss); ok {
					if err := unreach.Handle(ctx, miss.VRF, miss.Iface, miss.Packet); err != nil {
						log.Error("unreachable handler failed", zap.Error(err), zap.Stringer("dst", miss.Packet.Dst))
					}
				}
			case ndpInputID:
				if ev, ok := msg.Payload.(ndpEvent); ok {
					handleNDPEvent(pool, machine, ev)
				}
			}

		case now := <-ticker.C:
			pool.Iterate(func(nh *nexthop6.Nexthop) {
				if nh.Flags.Has(nexthop6.Reachable) && now.Sub(nh.LastReply) >= cfg.ReachableLifetime {
					machine.OnReachableExpiry(nh)
				}
				if nh.Flags.Has(nexthop6.Pending) {
					machine.OnProbeTimer(ctx, nh)
				}
			})
		}
	}
}
