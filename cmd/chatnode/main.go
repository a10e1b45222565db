// Command chatnode runs one peer of the chat overlay: failure detector,
// Bully leader election, and leader-ordered commit pipeline, fronted by an
// interactive shell and a small status HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/bully-chat/chatnode/internal/config"
	"github.com/bully-chat/chatnode/internal/logging"
	"github.com/bully-chat/chatnode/internal/node"
	"github.com/bully-chat/chatnode/internal/shell"
	"github.com/bully-chat/chatnode/internal/statusapi"
	"github.com/bully-chat/chatnode/internal/store"
)

var (
	app = kingpin.New("chatnode", "Peer-to-peer chat overlay node with Bully leader election.")

	runCmd     = app.Command("run", "Start a node.").Default()
	nodeIDArg  = runCmd.Arg("node-id", "This node's id (e.g. n1).").Required().String()
	portArg    = runCmd.Arg("port", "TCP port to bind for the replication transport.").Required().Int()
	peersFlag  = runCmd.Flag("peers", "Path to a YAML peer-table file; defaults to the compiled-in 3-node topology.").String()
	statusFlag = runCmd.Flag("status-addr", "Address for the observational status HTTP server (empty disables it).").Default(":0").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if err := run(*nodeIDArg, *portArg, *peersFlag, *statusFlag); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(nodeID string, port int, peersPath, statusAddr string) error {
	logger := logging.New(nodeID, os.Stderr)

	netw, err := config.Load(peersPath)
	if err != nil {
		return fmt.Errorf("chatnode: %w", err)
	}
	peerCfgs, self := netw.PeersExcluding(nodeID)
	if self.Host == "" {
		self.Host = "localhost"
	}
	if port == 0 {
		port = self.Port
	}

	peers := make([]node.Peer, 0, len(peerCfgs))
	for _, p := range peerCfgs {
		peers = append(peers, node.Peer{ID: p.ID, Host: p.Host, Port: p.Port})
	}

	log, err := store.Open(nodeID)
	if err != nil {
		return fmt.Errorf("chatnode: %w", err)
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := node.New(node.Config{
		ID:     nodeID,
		Host:   "0.0.0.0",
		Port:   port,
		Peers:  peers,
		Logger: logger,
		Deliver: func(sender, content string) {
			fmt.Printf("\n[%s]: %s\n", sender, content)
		},
	}, log)

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("chatnode: %w", err)
	}
	defer n.Stop()

	var httpSrv *http.Server
	if statusAddr != "" && statusAddr != ":0" {
		httpSrv = &http.Server{Addr: statusAddr, Handler: statusapi.NewMux(n)}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("status server error")
			}
		}()
		defer httpSrv.Shutdown(ctx) //nolint:errcheck
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	shell.Run(ctx, n, nodeID, os.Stdin, os.Stdout)
	return nil
}
