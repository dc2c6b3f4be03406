package nexthop6

import (
	"time"

	"go.uber.org/zap"
)

// Config holds the tunables of the pool and FSM, per spec §6.
type Config struct {
	// NumNexthops is the fixed arena capacity.
	NumNexthops int
	// MaxHeldPackets bounds the per-next-hop hold queue.
	MaxHeldPackets int
	// UnicastProbes is the number of unicast NS probes sent while the
	// last-known link-layer address is still considered fresh.
	UnicastProbes int
	// BroadcastProbes is the number of solicited-node multicast NS probes
	// sent once unicast probing is exhausted or no link address is known.
	BroadcastProbes int
	// ProbeInterval is the spacing between probe-timer firings.
	ProbeInterval time.Duration
	// ReachableLifetime is how long a REACHABLE next-hop stays reachable
	// before decaying to STALE.
	ReachableLifetime time.Duration

	// Logger receives structured diagnostics. Defaults to zap.NewNop() when
	// nil.
	Logger *zap.Logger
}

// DefaultConfig returns the typical tunables named in spec §6.
func DefaultConfig() Config {
	return Config{
		NumNexthops:       1 << 16,
		MaxHeldPackets:    256,
		UnicastProbes:     3,
		BroadcastProbes:   3,
		ProbeInterval:     time.Second,
		ReachableLifetime: 30 * time.Second,
	}
}

func (c *Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// validate fills in zero or negative fields with their defaults. It never
// returns an error.
func (c Config) validate() (Config, error) {
	d := DefaultConfig()
	if c.NumNexthops <= 0 {
		c.NumNexthops = d.NumNexthops
	}
	if c.MaxHeldPackets <= 0 {
		c.MaxHeldPackets = d.MaxHeldPackets
	}
	if c.UnicastProbes <= 0 {
		c.UnicastProbes = d.UnicastProbes
	}
	if c.BroadcastProbes <= 0 {
		c.BroadcastProbes = d.BroadcastProbes
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = d.ProbeInterval
	}
	if c.ReachableLifetime <= 0 {
		c.ReachableLifetime = d.ReachableLifetime
	}
	return c, nil
}
