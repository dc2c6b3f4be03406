package main

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/dpdk-grout/grout/internal/nexthop6"
)

// flags holds the command-line tunables, parsed with pflag the way the
// teacher's tools under //tools parse their own flag sets.
type flags struct {
	listenAddr        string
	numNexthops       int
	maxHeldPackets    int
	unicastProbes     int
	broadcastProbes   int
	probeInterval     time.Duration
	reachableLifetime time.Duration
	ringDepth         int
	dev               bool
	vrfID             uint32
}

func parseFlags(args []string) (flags, error) {
	d := nexthop6.DefaultConfig()
	f := flags{}
	fs := pflag.NewFlagSet("nh6d", pflag.ContinueOnError)

	fs.StringVar(&f.listenAddr, "listen", "[::1]:50061", "gRPC listen address for the nh6 control-plane API")
	fs.IntVar(&f.numNexthops, "num-nexthops", d.NumNexthops, "fixed next-hop arena capacity")
	fs.IntVar(&f.maxHeldPackets, "max-held-packets", d.MaxHeldPackets, "per-next-hop hold queue bound")
	fs.IntVar(&f.unicastProbes, "unicast-probes", d.UnicastProbes, "unicast NS probes sent before falling back to multicast")
	fs.IntVar(&f.broadcastProbes, "broadcast-probes", d.BroadcastProbes, "solicited-node multicast NS probes sent before giving up")
	fs.DurationVar(&f.probeInterval, "probe-interval", d.ProbeInterval, "spacing between probe-timer firings")
	fs.DurationVar(&f.reachableLifetime, "reachable-lifetime", d.ReachableLifetime, "time a REACHABLE next-hop stays fresh before decaying to STALE")
	fs.IntVar(&f.ringDepth, "ring-depth", 4096, "control ring depth")
	fs.BoolVar(&f.dev, "dev", false, "use a human-readable development logger instead of JSON")
	fs.Uint32Var(&f.vrfID, "vrf", 0, "VRF id that received NDP frames are attributed to")

	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

func (f flags) nexthopConfig() nexthop6.Config {
	return nexthop6.Config{
		NumNexthops:       f.numNexthops,
		MaxHeldPackets:    f.maxHeldPackets,
		UnicastProbes:     f.unicastProbes,
		BroadcastProbes:   f.broadcastProbes,
		ProbeInterval:     f.probeInterval,
		ReachableLifetime: f.reachableLifetime,
	}
}

func (f flags) vrf() nexthop6.VRFID {
	return nexthop6.VRFID(f.vrfID)
}
