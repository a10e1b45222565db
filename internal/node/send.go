package node

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bully-chat/chatnode/internal/wire"
)

// connectTimeout bounds how long an outbound send blocks dialing a peer.
const connectTimeout = 2 * time.Second

// sender holds the peer table and logger a Node's subsystems need to reach
// other nodes. Every send is best-effort: a dead or unreachable peer is
// swallowed, never retried. The protocol already depends on periodic
// re-sends (heartbeats) and re-election for liveness; a retry queue here
// would complicate ordering guarantees without improving them.
type sender struct {
	peers  []Peer
	byID   map[string]Peer
	logger zerolog.Logger
}

func newSender(peers []Peer, logger zerolog.Logger) *sender {
	byID := make(map[string]Peer, len(peers))
	for _, p := range peers {
		byID[p.ID] = p
	}
	return &sender{peers: peers, byID: byID, logger: logger}
}

func (s *sender) peerByID(id string) (Peer, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// sendTo opens a new connection to p, writes rec, and closes. Failures are
// logged at debug level and otherwise ignored.
func (s *sender) sendTo(p Peer, rec wire.Record) {
	addr := fmt.Sprintf("%s:%d", p.Host, p.Port)
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		s.logger.Debug().Err(err).Str("peer", p.ID).Msg("send: dial failed")
		return
	}
	defer conn.Close()
	if _, err := conn.Write(rec.Encode()); err != nil {
		s.logger.Debug().Err(err).Str("peer", p.ID).Msg("send: write failed")
	}
}

// sendAll fans rec out to every peer in parallel; delivery order across
// peers is unspecified.
func (s *sender) sendAll(rec wire.Record) {
	var wg sync.WaitGroup
	for _, p := range s.peers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.sendTo(p, rec)
		}()
	}
	wg.Wait()
}
