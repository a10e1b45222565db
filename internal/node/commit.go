package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bully-chat/chatnode/internal/store"
	"github.com/bully-chat/chatnode/internal/wire"
)

// ErrNoLeader is returned by Submit when no leader is currently known. The
// content is not queued; the caller may retry once an election concludes.
var ErrNoLeader = errors.New("no leader known, election in progress")

// commitPipeline implements ordered, deduplicated, durable delivery of user
// messages under a single leader: submit, onRequest, applyCommit.
type commitPipeline struct {
	selfID string

	mu   sync.Mutex
	seen map[string]struct{}

	log    *store.Log
	logger zerolog.Logger

	election *electionActor
	sendTo   func(Peer, wire.Record)
	sendAll  func(wire.Record)
	peerByID func(string) (Peer, bool)

	deliver func(originalSender, content string) // presentation layer hook
}

func newCommitPipeline(selfID string, log *store.Log, logger zerolog.Logger, election *electionActor, sendTo func(Peer, wire.Record), sendAll func(wire.Record), peerByID func(string) (Peer, bool), deliver func(string, string)) *commitPipeline {
	return &commitPipeline{
		selfID:   selfID,
		seen:     make(map[string]struct{}),
		log:      log,
		logger:   logger,
		election: election,
		sendTo:   sendTo,
		sendAll:  sendAll,
		peerByID: peerByID,
		deliver:  deliver,
	}
}

// Submit is invoked when the local shell's user enters a non-command line.
func (p *commitPipeline) Submit(ctx context.Context, content string) error {
	snap := p.election.CurrentLeader(ctx)

	if snap.LeaderID == "" {
		p.election.TriggerElection()
		return ErrNoLeader
	}

	if snap.LeaderID == p.selfID {
		id := uuid.NewString()
		c := wire.Commit(p.selfID, id, content, p.selfID)
		p.applyCommit(c)
		go p.sendAll(c)
		return nil
	}

	leader, ok := p.peerByID(snap.LeaderID)
	if !ok {
		return fmt.Errorf("commit: unknown leader %q", snap.LeaderID)
	}
	req := wire.Request(p.selfID, uuid.NewString(), content)
	go p.sendTo(leader, req)
	return nil
}

// OnRequest handles an inbound "request" record. Dropped unless this node is
// currently leader.
func (p *commitPipeline) OnRequest(ctx context.Context, r wire.Record) {
	snap := p.election.CurrentLeader(ctx)
	if snap.LeaderID != p.selfID {
		return
	}
	c := wire.Commit(p.selfID, r.ID, r.Content, r.From)
	p.applyCommit(c)
	go p.sendAll(c)
}

// applyCommit is the atomic local apply path: idempotent on c.ID, durable,
// and delivered to the presentation layer exactly once per id.
func (p *commitPipeline) applyCommit(c wire.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.seen[c.ID]; dup {
		return
	}
	p.seen[c.ID] = struct{}{}

	if err := p.log.Append(c.ID, c.OriginalSender, c.Content); err != nil {
		// Storage append failure is logged but does not roll back seen: the
		// commit is considered delivered to the presentation layer even if
		// it ends up absent from disk.
		p.logger.Error().Err(err).Str("id", c.ID).Msg("commit: durable append failed")
	}

	p.logger.Info().Str("from", c.OriginalSender).Str("id", c.ID).Msg("commit applied")
	if p.deliver != nil {
		p.deliver(c.OriginalSender, c.Content)
	}
}
