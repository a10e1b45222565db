// Package node implements the per-node runtime binding the failure
// detector, the Bully election coordinator, and the leader-ordered commit
// pipeline together.
package node

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bully-chat/chatnode/internal/store"
)

// Tunable protocol constants and their defaults.
const (
	DefaultHBInterval   = 3 * time.Second
	DefaultHBTimeout    = 8 * time.Second
	DefaultElectionWait = 3 * time.Second
	DefaultScanInterval = 3 * time.Second
)

// Config is everything New needs to build a Node.
type Config struct {
	ID    string
	Host  string
	Port  int
	Peers []Peer // excludes self

	HBInterval   time.Duration
	HBTimeout    time.Duration
	ElectionWait time.Duration
	ScanInterval time.Duration

	Logger zerolog.Logger

	// Deliver is called once per applied commit, for the presentation layer
	// (cmd/chatnode prints "[originalSender]: content"). May be nil.
	Deliver func(originalSender, content string)
}

func (c *Config) setDefaults() {
	if c.HBInterval == 0 {
		c.HBInterval = DefaultHBInterval
	}
	if c.HBTimeout == 0 {
		c.HBTimeout = DefaultHBTimeout
	}
	if c.ElectionWait == 0 {
		c.ElectionWait = DefaultElectionWait
	}
	if c.ScanInterval == 0 {
		c.ScanInterval = DefaultScanInterval
	}
}

// Node is the running per-node runtime: listener, heartbeat emitter,
// liveness monitor, and election coordinator.
type Node struct {
	cfg Config

	logger zerolog.Logger
	sender *sender

	election *electionActor
	detector *failureDetector
	pipeline *commitPipeline
	prober   *prober
	log      *store.Log

	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New wires a Node together. log must already be open; New does not take
// ownership of closing it.
func New(cfg Config, log *store.Log) *Node {
	cfg.setDefaults()

	s := newSender(cfg.Peers, cfg.Logger)

	election := newElectionActor(cfg.ID, cfg.Peers, cfg.ElectionWait, cfg.Logger, s.sendTo, s.sendAll, s.peerByID)
	detector := newFailureDetector(cfg.ID, cfg.HBInterval, cfg.HBTimeout, cfg.ScanInterval, cfg.Logger, election, s.sendAll)
	pipeline := newCommitPipeline(cfg.ID, log, cfg.Logger, election, s.sendTo, s.sendAll, s.peerByID, cfg.Deliver)

	return &Node{
		cfg:      cfg,
		logger:   cfg.Logger,
		sender:   s,
		election: election,
		detector: detector,
		pipeline: pipeline,
		prober:   newProber(cfg.Peers),
		log:      log,
	}
}

// Start binds the listener and launches every background activity. The
// returned error is only non-nil for a bind failure, which the caller should
// treat as fatal (CLI exits non-zero).
func (n *Node) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("node: listen on %s: %w", addr, err)
	}
	n.listener = ln

	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.wg.Add(4)
	go func() { defer n.wg.Done(); n.election.run(runCtx) }()
	go func() { defer n.wg.Done(); n.acceptLoop(runCtx, ln) }()
	go func() { defer n.wg.Done(); n.detector.emitLoop(runCtx) }()
	go func() { defer n.wg.Done(); n.detector.scanLoop(runCtx) }()

	n.logger.Info().Str("addr", addr).Int("peers", len(n.cfg.Peers)).Msg("node started")
	return nil
}

// Stop cancels every background activity and closes the listener. It blocks
// until all activities have observed cancellation.
func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	if n.listener != nil {
		n.listener.Close()
	}
	n.wg.Wait()
	n.logger.Info().Msg("node stopped")
}

// Submit forwards a user-originated message into the commit pipeline.
func (n *Node) Submit(ctx context.Context, content string) error {
	return n.pipeline.Submit(ctx, content)
}

// History returns the durable log's entries in append order.
func (n *Node) History() ([]store.Entry, error) {
	return n.log.History()
}

// Status is the JSON-friendly snapshot the status HTTP server exposes.
type Status struct {
	NodeID     string           `json:"node_id"`
	LeaderID   string           `json:"leader_id"`
	InElection bool             `json:"in_election"`
	State      string           `json:"state"`
	Peers      map[string]Peer  `json:"-"`
	LastSeen   map[string]int64 `json:"last_seen_unix"` // -1 if never seen
	Up         map[string]bool  `json:"up"`
	Reachable  map[string]bool  `json:"reachable"`
}

// Status builds a point-in-time snapshot for the status API. Reachable is an
// active, on-demand dial to every peer (see internal/node/probe.go),
// supplementing Up, which reflects only the passive heartbeat gossip.
func (n *Node) Status(ctx context.Context) Status {
	snap := n.election.CurrentLeader(ctx)
	lastSeen := n.detector.snapshot()

	st := Status{
		NodeID:     n.cfg.ID,
		LeaderID:   snap.LeaderID,
		InElection: snap.InElection,
		State:      snap.State,
		LastSeen:   make(map[string]int64, len(n.cfg.Peers)),
		Up:         make(map[string]bool, len(n.cfg.Peers)),
		Reachable:  n.prober.probeAll(),
	}
	for _, p := range n.cfg.Peers {
		if t, ok := lastSeen[p.ID]; ok {
			st.LastSeen[p.ID] = t.Unix()
		} else {
			st.LastSeen[p.ID] = -1
		}
		st.Up[p.ID] = n.detector.isUp(p.ID)
	}
	return st
}
