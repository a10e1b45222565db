package node

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bully-chat/chatnode/internal/wire"
)

type electionState int

const (
	stateIdle electionState = iota
	stateCampaigning
	stateYielding
	stateLeader
)

func (s electionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCampaigning:
		return "campaigning"
	case stateYielding:
		return "yielding"
	case stateLeader:
		return "leader"
	default:
		return "unknown"
	}
}

type electionEventKind int

const (
	evElection electionEventKind = iota
	evOK
	evLeader
	evLeaderTimeout
)

type electionEvent struct {
	kind electionEventKind
	from string
}

// Snapshot is the read-only view other subsystems (commit pipeline, status
// API) query from the election actor.
type Snapshot struct {
	LeaderID   string
	InElection bool
	State      string
}

type snapshotQuery struct {
	reply chan Snapshot
}

// electionActor owns the Bully state machine for one node. Every mutable
// election field (state, leaderID, inElection, the active deadline) is
// confined to run's goroutine; all other goroutines interact with it only
// through the buffered events channel and the query channel.
type electionActor struct {
	selfID string
	all    []Peer // every peer, excluding self
	higher []Peer // peers with id > selfID
	isMax  bool   // selfID is the highest id in the network

	electionWait time.Duration

	events chan electionEvent
	query  chan snapshotQuery

	logger zerolog.Logger

	sendTo     func(Peer, wire.Record)
	sendAll    func(wire.Record)
	peerByID   func(string) (Peer, bool)
}

func newElectionActor(selfID string, peers []Peer, electionWait time.Duration, logger zerolog.Logger, sendTo func(Peer, wire.Record), sendAll func(wire.Record), peerByID func(string) (Peer, bool)) *electionActor {
	var higher []Peer
	isMax := true
	for _, p := range peers {
		if p.ID > selfID {
			higher = append(higher, p)
			isMax = false
		}
	}
	return &electionActor{
		selfID:       selfID,
		all:          peers,
		higher:       higher,
		isMax:        isMax,
		electionWait: electionWait,
		events:       make(chan electionEvent, 32),
		query:        make(chan snapshotQuery),
		logger:       logger,
		sendTo:       sendTo,
		sendAll:      sendAll,
		peerByID:     peerByID,
	}
}

func (a *electionActor) OnElection(from string) { a.push(evElection, from) }
func (a *electionActor) OnOK(from string)       { a.push(evOK, from) }
func (a *electionActor) OnLeader(from string)    { a.push(evLeader, from) }

// TriggerElection asks the actor to (re-)enter an election: used both by the
// failure detector's scan (leader deemed failed) and by submit() when no
// leader is currently known.
func (a *electionActor) TriggerElection() { a.push(evLeaderTimeout, "") }

func (a *electionActor) push(kind electionEventKind, from string) {
	select {
	case a.events <- electionEvent{kind: kind, from: from}:
	default:
		a.logger.Warn().Msg("election event dropped: actor backlog full")
	}
}

// CurrentLeader blocks until the actor answers with its current snapshot.
func (a *electionActor) CurrentLeader(ctx context.Context) Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case a.query <- snapshotQuery{reply: reply}:
	case <-ctx.Done():
		return Snapshot{}
	}
	select {
	case s := <-reply:
		return s
	case <-ctx.Done():
		return Snapshot{}
	}
}

// run is the actor's event loop. It must be launched as its own goroutine.
func (a *electionActor) run(ctx context.Context) {
	state := stateCampaigning
	leaderID := ""
	inElection := false

	var deadline *time.Timer
	var deadlineC <-chan time.Time
	stopDeadline := func() {
		if deadline != nil {
			deadline.Stop()
			deadline = nil
		}
		deadlineC = nil
	}
	armDeadline := func() {
		stopDeadline()
		deadline = time.NewTimer(a.electionWait)
		deadlineC = deadline.C
	}

	enterCampaigning := func() {
		state = stateCampaigning
		inElection = true
		leaderID = ""
		a.logger.Info().Msg("election: campaigning")
		for _, p := range a.higher {
			p := p
			go a.sendTo(p, wire.Election(a.selfID))
		}
		armDeadline()
	}

	enterYielding := func() {
		state = stateYielding
		a.logger.Info().Msg("election: yielding")
		armDeadline()
	}

	becomeLeader := func() {
		state = stateLeader
		leaderID = a.selfID
		inElection = false
		stopDeadline()
		a.logger.Info().Msg("election: became leader")
		go a.sendAll(wire.Leader(a.selfID))
	}

	acceptLeader := func(from string) {
		leaderID = from
		inElection = false
		state = stateIdle
		stopDeadline()
	}

	if a.isMax {
		becomeLeader()
	} else {
		enterCampaigning()
	}

	for {
		select {
		case <-ctx.Done():
			stopDeadline()
			return

		case q := <-a.query:
			q.reply <- Snapshot{LeaderID: leaderID, InElection: inElection, State: state.String()}

		case ev := <-a.events:
			switch ev.kind {
			case evElection:
				if p, ok := a.peerByID(ev.from); ok {
					go a.sendTo(p, wire.OK(a.selfID))
				}
				switch state {
				case stateIdle:
					if ev.from < a.selfID {
						enterCampaigning()
					}
				case stateLeader:
					if ev.from > a.selfID {
						leaderID = ""
						enterCampaigning()
					}
				case stateCampaigning, stateYielding:
					// send ok to s, stay; already sent above.
				}

			case evOK:
				if state == stateCampaigning {
					enterYielding()
				}

			case evLeader:
				switch state {
				case stateIdle, stateCampaigning, stateYielding:
					acceptLeader(ev.from)
				case stateLeader:
					if ev.from > a.selfID {
						acceptLeader(ev.from)
					}
				}

			case evLeaderTimeout:
				if state != stateLeader {
					leaderID = ""
					enterCampaigning()
				}
			}

		case <-deadlineC:
			switch state {
			case stateCampaigning:
				becomeLeader()
			case stateYielding:
				enterCampaigning()
			}
		}
	}
}
