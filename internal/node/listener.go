package node

import (
	"context"
	"net"

	"github.com/bully-chat/chatnode/internal/wire"
)

// acceptLoop accepts inbound connections and hands each to a short-lived
// handler goroutine. It returns when Accept fails after ctx is done, which
// Stop arranges by cancelling ctx and then closing ln.
func (n *Node) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n.logger.Debug().Err(err).Msg("listener: accept error")
			continue
		}
		go n.handleConn(ctx, conn)
	}
}

// handleConn reads exactly one record, classifies it, and dispatches it to
// the relevant subsystem. It never writes a response on this connection;
// replies (e.g. an ok in answer to an election) go out as new outbound
// connections.
func (n *Node) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	rec, err := wire.Decode(conn)
	if err != nil {
		n.logger.Debug().Err(err).Msg("listener: decode error")
		return
	}

	switch rec.Type {
	case wire.TypeUnknown:
		return
	case wire.TypeHeartbeat:
		n.detector.observe(rec.From)
	case wire.TypeElection:
		n.election.OnElection(rec.From)
	case wire.TypeOK:
		n.election.OnOK(rec.From)
	case wire.TypeLeader:
		n.election.OnLeader(rec.From)
	case wire.TypeRequest:
		n.pipeline.OnRequest(ctx, rec)
	case wire.TypeCommit:
		n.pipeline.applyCommit(rec)
	}
}
