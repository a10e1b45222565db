package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bully-chat/chatnode/internal/wire"
)

func discardLogger() zerolog.Logger {
	return zerolog.Nop()
}

type sentRecord struct {
	to  string
	rec wire.Record
}

type recorder struct {
	mu   sync.Mutex
	sent []sentRecord
}

func (r *recorder) sendTo(p Peer, rec wire.Record) {
	r.mu.Lock()
	r.sent = append(r.sent, sentRecord{to: p.ID, rec: rec})
	r.mu.Unlock()
}

func (r *recorder) sendAll(rec wire.Record) {
	r.mu.Lock()
	r.sent = append(r.sent, sentRecord{to: "*", rec: rec})
	r.mu.Unlock()
}

func (r *recorder) snapshot() []sentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentRecord, len(r.sent))
	copy(out, r.sent)
	return out
}

func peerLookup(peers []Peer) func(string) (Peer, bool) {
	byID := make(map[string]Peer, len(peers))
	for _, p := range peers {
		byID[p.ID] = p
	}
	return func(id string) (Peer, bool) {
		p, ok := byID[id]
		return p, ok
	}
}

func TestElectionHighestIDBecomesLeaderOnStartup(t *testing.T) {
	peers := []Peer{{ID: "n1", Host: "h", Port: 1}, {ID: "n2", Host: "h", Port: 2}}
	rec := &recorder{}
	a := newElectionActor("n3", peers, 50*time.Millisecond, discardLogger(), rec.sendTo, rec.sendAll, peerLookup(peers))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.run(ctx)

	snap := a.CurrentLeader(ctx)
	if snap.LeaderID != "n3" || snap.State != "leader" {
		t.Fatalf("expected immediate self-leadership, got %+v", snap)
	}
}

func TestElectionCampaignsThenBecomesLeaderWhenNoOneResponds(t *testing.T) {
	higher := []Peer{{ID: "n3", Host: "h", Port: 3}}
	rec := &recorder{}
	a := newElectionActor("n2", higher, 30*time.Millisecond, discardLogger(), rec.sendTo, rec.sendAll, peerLookup(higher))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.run(ctx)

	snap := a.CurrentLeader(ctx)
	if snap.State != "campaigning" {
		t.Fatalf("expected initial campaigning state, got %+v", snap)
	}

	deadline := time.After(500 * time.Millisecond)
	for {
		snap = a.CurrentLeader(ctx)
		if snap.State == "leader" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("never became leader after election timeout, last snapshot %+v", snap)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if snap.LeaderID != "n2" {
		t.Fatalf("expected self leadership, got %+v", snap)
	}
}

func TestElectionOKMovesCampaignerToYielding(t *testing.T) {
	higher := []Peer{{ID: "n3", Host: "h", Port: 3}}
	rec := &recorder{}
	a := newElectionActor("n2", higher, time.Second, discardLogger(), rec.sendTo, rec.sendAll, peerLookup(higher))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.run(ctx)

	a.OnOK("n3")

	deadline := time.After(200 * time.Millisecond)
	for {
		snap := a.CurrentLeader(ctx)
		if snap.State == "yielding" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("never reached yielding, last snapshot %+v", snap)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestElectionLeaderAcceptsAnnouncementFromHigherID(t *testing.T) {
	peers := []Peer{{ID: "n1", Host: "h", Port: 1}, {ID: "n2", Host: "h", Port: 2}}
	rec := &recorder{}
	a := newElectionActor("n3", peers, time.Second, discardLogger(), rec.sendTo, rec.sendAll, peerLookup(peers))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.run(ctx)

	snap := a.CurrentLeader(ctx)
	if snap.State != "leader" {
		t.Fatalf("expected n3 (max id, no higher peers) to start as leader, got %+v", snap)
	}

	// n3 here has no peer with a higher id in this test table, so exercise
	// preemption using a topology where a genuinely higher peer exists: b
	// campaigns, hears no ok within its short election wait, becomes leader,
	// and only then receives n4's announcement.
	higherPeers := []Peer{{ID: "n4", Host: "h", Port: 4}}
	b := newElectionActor("n3", higherPeers, 30*time.Millisecond, discardLogger(), rec.sendTo, rec.sendAll, peerLookup(higherPeers))
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	go b.run(ctx2)
	waitForState(t, ctx2, b, "leader")

	b.OnLeader("n4")

	deadline := time.After(200 * time.Millisecond)
	for {
		snap := b.CurrentLeader(ctx2)
		if snap.LeaderID == "n4" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("never accepted higher leader, last snapshot %+v", snap)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestElectionIdleLowerIDStartsCampaignOnElectionFromEvenLowerPeer(t *testing.T) {
	// n2 starts as campaigning (n3 outranks it); force it to idle by
	// accepting a leader first, then receive an election from n1 (< n2),
	// which must push it back into campaigning per the IDLE row of the
	// Bully table.
	peers := []Peer{{ID: "n1", Host: "h", Port: 1}, {ID: "n3", Host: "h", Port: 3}}
	rec := &recorder{}
	a := newElectionActor("n2", peers, time.Second, discardLogger(), rec.sendTo, rec.sendAll, peerLookup(peers))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.run(ctx)

	a.OnLeader("n3")
	waitForState(t, ctx, a, "idle")

	a.OnElection("n1")
	waitForLeaderCleared(t, ctx, a)
}

func waitForState(t *testing.T, ctx context.Context, a *electionActor, want string) {
	t.Helper()
	deadline := time.After(300 * time.Millisecond)
	for {
		snap := a.CurrentLeader(ctx)
		if snap.State == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("never reached state %q, last snapshot %+v", want, snap)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func waitForLeaderCleared(t *testing.T, ctx context.Context, a *electionActor) {
	t.Helper()
	deadline := time.After(300 * time.Millisecond)
	for {
		snap := a.CurrentLeader(ctx)
		if snap.State == "campaigning" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("never re-entered campaigning, last snapshot %+v", snap)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
