// Package shell implements the interactive prompt: it reads user input and
// turns it into either a local commit or a forwarded request.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bully-chat/chatnode/internal/node"
)

// Run blocks reading lines from in until the user types /exit, ctx is
// cancelled, or in reaches EOF. It writes prompts and command output to out.
// A cancelled ctx is noticed only once the next line has been read; a read
// already blocked on in is not interrupted, and that line is discarded.
func Run(ctx context.Context, n *node.Node, nodeID string, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	fmt.Fprintf(out, "(%s) > ", nodeID)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			// ignore blank lines, re-prompt
		case line == "/exit":
			return
		case line == "/help":
			fmt.Fprintln(out, "commands: /history  /exit  /help  (anything else is sent as a message)")
		case line == "/history":
			printHistory(n, out)
		default:
			if err := n.Submit(ctx, line); err != nil {
				fmt.Fprintf(out, "could not send: %v\n", err)
			}
		}

		fmt.Fprintf(out, "(%s) > ", nodeID)
	}
}

func printHistory(n *node.Node, out io.Writer) {
	entries, err := n.History()
	if err != nil {
		fmt.Fprintf(out, "history unavailable: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "(no messages yet)")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(out, "[%s] %s: %s\n", e.At.Format("15:04:05"), e.Sender, e.Content)
	}
}
