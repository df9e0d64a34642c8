package router

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/r2rmesh/internal/telemetry"
	"github.com/ryandielhenn/r2rmesh/pkg/directory"
	"github.com/ryandielhenn/r2rmesh/pkg/transport"
)

var (
	// ErrUnknownPeer is returned when a send names a peer that was never registered.
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrNoTransmission is returned by GetNewTransmission when the inbound queue is empty.
	ErrNoTransmission = errors.New("no transmission available")
	ErrNoSelf         = errors.New("self peer not registered")
	ErrEstablished    = errors.New("communications already established")
)

type Config struct {
	// DrainWindow caps the time spent sending per loop iteration.
	DrainWindow time.Duration
	// PollTimeout bounds the wait for inbound traffic per loop iteration.
	PollTimeout time.Duration
	// RetryCycles is the number of drains an ack may be outstanding before
	// the retained copy is resent.
	RetryCycles int
	// AckTimeout, when positive, also resends once this much wall-clock time
	// passed since the last (re)send.
	AckTimeout time.Duration
	// StartWait bounds StartSignalReceived.
	StartWait time.Duration
	// StatsDir receives <self>.stats; empty disables the file.
	StatsDir        string
	StatsFlushEvery int
	Debug           bool
	Logger          *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		DrainWindow:     200 * time.Microsecond,
		PollTimeout:     100 * time.Millisecond,
		RetryCycles:     20,
		StartWait:       50 * 10 * time.Millisecond,
		StatsFlushEvery: DefaultStatsFlushEvery,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DrainWindow <= 0 {
		c.DrainWindow = d.DrainWindow
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.RetryCycles <= 0 {
		c.RetryCycles = d.RetryCycles
	}
	if c.StartWait <= 0 {
		c.StartWait = d.StartWait
	}
	if c.StatsFlushEvery <= 0 {
		c.StatsFlushEvery = d.StatsFlushEvery
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

type Router struct {
	cfg    Config
	logger *zap.Logger
	peers  *directory.Directory
	tr     transport.Transport

	out   outQueue
	in    *inQueue
	acks  *ackTracker
	stats *StatsRecorder
	gate  *startGate

	drainMu     sync.Mutex
	running     atomic.Bool
	established atomic.Bool
	debug       atomic.Bool
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// New creates a router on top of tr. The router owns tr and closes it on shutdown.
func New(tr transport.Transport, cfg Config) *Router {
	cfg = cfg.withDefaults()
	r := &Router{
		cfg:    cfg,
		logger: cfg.Logger,
		peers:  directory.New(),
		tr:     tr,
		in:     newInQueue(),
		acks:   newAckTracker(),
		stats:  NewStatsRecorder("", cfg.StatsFlushEvery, cfg.Logger),
		gate:   newStartGate(),
	}
	r.debug.Store(cfg.Debug)
	return r
}

// AddPeer registers ep. Exactly one peer must be flagged as self, and every
// peer must be registered before EstablishCommunications.
func (r *Router) AddPeer(ep directory.Endpoint, isSelf bool) error {
	idx, err := r.peers.Register(ep, isSelf)
	if err != nil {
		return err
	}
	r.acks.add(ep.Name)
	if isSelf {
		r.logger = r.cfg.Logger.Named(ep.Name)
		r.stats.logger = r.logger
		if r.cfg.StatsDir != "" {
			r.stats.SetPath(filepath.Join(r.cfg.StatsDir, ep.Name+".stats"))
		}
		r.logger.Debug("self registered", zap.Int("index", idx))
	}
	return nil
}

func (r *Router) IsPeer(name string) bool { return r.peers.IsPeer(name) }

// SelfPeer returns the endpoint registered as this process.
func (r *Router) SelfPeer() (directory.Endpoint, bool) { return r.peers.Self() }

func (r *Router) Peers() *directory.Directory { return r.peers }

func (r *Router) Stats() *StatsRecorder { return r.stats }

// AckState returns the acknowledgment state kept for peer name.
func (r *Router) AckState(name string) (AckState, bool) { return r.acks.state(name) }

func (r *Router) SetDebugInfo(b bool) { r.debug.Store(b) }

func (r *Router) DebugInfo() bool { return r.debug.Load() }

func (r *Router) selfName() string {
	self, _ := r.peers.Self()
	return self.Name
}

// EstablishCommunications binds the inbound endpoint, connects to every
// other peer and starts the event loop. A bind or connect failure closes the
// transport and leaves the router unusable.
func (r *Router) EstablishCommunications() error {
	self, ok := r.peers.Self()
	if !ok {
		return ErrNoSelf
	}
	if !r.established.CompareAndSwap(false, true) {
		return ErrEstablished
	}
	if err := r.tr.Bind(self.Name, self.ServerAddr); err != nil {
		_ = r.tr.Close()
		return fmt.Errorf("bind %s at %s: %w", self.Name, self.ServerAddr, err)
	}
	for _, p := range r.peers.All() {
		if p.Name == self.Name {
			r.logger.Info("peer", zap.String("name", p.Name), zap.Bool("self", true))
			continue
		}
		if err := r.tr.Connect(p.ClientAddr); err != nil {
			_ = r.tr.Close()
			return fmt.Errorf("connect %s at %s: %w", p.Name, p.ClientAddr, err)
		}
		r.logger.Info("peer", zap.String("name", p.Name), zap.String("addr", p.ClientAddr))
	}

	r.running.Store(true)
	r.wg.Add(1)
	go r.transmissionsHandler()
	return nil
}

// DeactivateCommunications asks the event loop to stop. It is observed once
// per iteration; use Close to wait for the loop to exit.
func (r *Router) DeactivateCommunications() {
	r.running.Store(false)
}

// Running reports whether the event loop is active.
func (r *Router) Running() bool { return r.running.Load() }

// Close stops the event loop, waits for it, releases the transport and
// flushes buffered diagnostics.
func (r *Router) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.DeactivateCommunications()
		r.wg.Wait()
		if !r.established.Load() {
			err = r.tr.Close()
		}
		if ferr := r.stats.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	})
	return err
}

func (r *Router) updateQueueGauges() {
	self := r.selfName()
	telemetry.QueueDepth.WithLabelValues(self, telemetry.QueueOutbound).Set(float64(r.out.len()))
	telemetry.QueueDepth.WithLabelValues(self, telemetry.QueueInbound).Set(float64(r.in.len()))
}
