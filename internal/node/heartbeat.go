package node

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bully-chat/chatnode/internal/wire"
)

// failureDetector tracks lastSeen[peer] and periodically emits heartbeats of
// its own. It only ever triggers an election off the current leader's
// staleness. Liveness of non-leader peers is recorded but unused for
// protocol purposes (it is exposed read-only through the status API).
type failureDetector struct {
	selfID string

	mu       sync.RWMutex
	lastSeen map[string]time.Time

	hbInterval   time.Duration
	hbTimeout    time.Duration
	scanInterval time.Duration

	logger zerolog.Logger

	election *electionActor
	sendAll  func(wire.Record)
}

func newFailureDetector(selfID string, hbInterval, hbTimeout, scanInterval time.Duration, logger zerolog.Logger, election *electionActor, sendAll func(wire.Record)) *failureDetector {
	return &failureDetector{
		selfID:       selfID,
		lastSeen:     make(map[string]time.Time),
		hbInterval:   hbInterval,
		hbTimeout:    hbTimeout,
		scanInterval: scanInterval,
		logger:       logger,
		election:     election,
		sendAll:      sendAll,
	}
}

// observe records an inbound heartbeat. A heartbeat claiming to be from
// selfID is discarded without effect, so a node never influences its own
// failure-detector view of itself.
func (fd *failureDetector) observe(from string) {
	if from == "" || from == fd.selfID {
		return
	}
	fd.mu.Lock()
	fd.lastSeen[from] = time.Now()
	fd.mu.Unlock()
}

// isUp reports whether id's lastSeen entry is within hbTimeout. Absence of
// an entry is treated as "never seen", not up.
func (fd *failureDetector) isUp(id string) bool {
	fd.mu.RLock()
	seen, ok := fd.lastSeen[id]
	fd.mu.RUnlock()
	if !ok {
		return false
	}
	return time.Since(seen) <= fd.hbTimeout
}

// snapshot returns a copy of lastSeen for the status API.
func (fd *failureDetector) snapshot() map[string]time.Time {
	fd.mu.RLock()
	defer fd.mu.RUnlock()
	out := make(map[string]time.Time, len(fd.lastSeen))
	for k, v := range fd.lastSeen {
		out[k] = v
	}
	return out
}

func (fd *failureDetector) emitLoop(ctx context.Context) {
	ticker := time.NewTicker(fd.hbInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fd.sendAll(wire.Heartbeat(fd.selfID))
		}
	}
}

func (fd *failureDetector) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(fd.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fd.scanOnce(ctx)
		}
	}
}

func (fd *failureDetector) scanOnce(ctx context.Context) {
	snap := fd.election.CurrentLeader(ctx)
	if snap.LeaderID == "" || snap.LeaderID == fd.selfID {
		return
	}

	fd.mu.RLock()
	seen, ok := fd.lastSeen[snap.LeaderID]
	fd.mu.RUnlock()

	// Absence of evidence is not evidence of failure: avoids spurious
	// elections during the startup window before any heartbeat has arrived.
	if !ok {
		return
	}
	if time.Since(seen) > fd.hbTimeout {
		fd.logger.Warn().Str("leader", snap.LeaderID).Msg("leader heartbeat timeout, triggering election")
		fd.election.TriggerElection()
	}
}
