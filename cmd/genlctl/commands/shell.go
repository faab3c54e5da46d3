package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sync"

	"github.com/mdlayher/netlink"

	"github.com/genl-protocol/genl-go/cmd/genlctl/interactive"
)

// RunShell starts the interactive shell.
func RunShell(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	resolve := addCommonFlags(fs)
	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}
	cfg, err := resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}

	// The notify sink is swapped to the readline-aware writer once the
	// shell exists, so async multicast output does not mangle the prompt.
	var (
		outMu sync.Mutex
		out   io.Writer = stdout
	)
	s, err := dialSessionNotify(cfg, func(m netlink.Message) {
		outMu.Lock()
		defer outMu.Unlock()
		printNotification(out, m)
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}
	defer s.Close()

	sh, err := interactive.New(s.Conn, s.Client, cfg.Timeout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}

	outMu.Lock()
	out = sh.Stdout()
	outMu.Unlock()

	sh.Run(context.Background())
	return exitSuccess
}
