package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdlayher/netlink"

	"github.com/genl-protocol/genl-go/pkg/family"
	"github.com/genl-protocol/genl-go/pkg/wire"
)

// MonitorOptions configures the monitor command.
type MonitorOptions struct {
	Family string
	Group  string
	Config Config
}

// RunMonitor joins a family's multicast group and prints every message
// the kernel broadcasts to it until interrupted.
func RunMonitor(args []string, stdout, stderr io.Writer) int {
	opts, err := parseMonitorArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}
	if opts.Family == "" || opts.Group == "" {
		fmt.Fprintln(stderr, "Error: family and group must be specified")
		printMonitorUsage(stderr)
		return exitCommandError
	}

	s, err := dialSessionNotify(opts.Config, func(m netlink.Message) {
		printNotification(stdout, m)
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Config.Timeout)
	groups, err := s.Client.MulticastGroups(ctx, opts.Family)
	cancel()
	if err != nil {
		if errors.Is(err, family.ErrNotFound) {
			fmt.Fprintf(stderr, "Family %q is not registered\n", opts.Family)
			return exitNotFound
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}

	var groupID uint32
	found := false
	for _, g := range groups {
		if g.Name == opts.Group {
			groupID = g.ID
			found = true
			break
		}
	}
	if !found {
		fmt.Fprintf(stderr, "Family %q has no multicast group %q\n", opts.Family, opts.Group)
		return exitNotFound
	}

	if err := s.Conn.JoinGroup(groupID); err != nil {
		fmt.Fprintf(stderr, "Error: join group: %v\n", err)
		return exitCommandError
	}
	defer func() {
		if err := s.Conn.LeaveGroup(groupID); err != nil {
			fmt.Fprintf(stderr, "Warning: leave group: %v\n", err)
		}
	}()

	fmt.Fprintf(stdout, "Monitoring %s/%s (group %d), press Ctrl-C to stop\n",
		opts.Family, opts.Group, groupID)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)
	<-sigc

	fmt.Fprintln(stdout, "Stopping")
	return exitSuccess
}

func printNotification(w io.Writer, nm netlink.Message) {
	ts := time.Now().Format("15:04:05.000")

	m, err := wire.Unpack(nm)
	if err != nil {
		fmt.Fprintf(w, "%s family=%d seq=%d (undecodable: %v)\n",
			ts, uint16(nm.Header.Type), nm.Header.Sequence, err)
		return
	}

	fmt.Fprintf(w, "%s family=%d cmd=%d version=%d payload=%dB\n",
		ts, uint16(nm.Header.Type), m.Header.Command, m.Header.Version, len(m.Data))
}

func parseMonitorArgs(args []string) (MonitorOptions, error) {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	opts := MonitorOptions{}

	resolve := addCommonFlags(fs)
	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	cfg, err := resolve()
	if err != nil {
		return opts, err
	}
	opts.Config = cfg

	remaining := fs.Args()
	if len(remaining) > 0 {
		opts.Family = remaining[0]
	}
	if len(remaining) > 1 {
		opts.Group = remaining[1]
	}

	return opts, nil
}

func printMonitorUsage(w io.Writer) {
	fmt.Fprintln(w, `
Usage: genlctl monitor [options] <family> <group>

Options:
  --timeout       Timeout for the group lookup [default: 5s]
  --protocol-log  Append protocol events to this CBOR file
  --config        Path to a YAML config file

Examples:
  genlctl monitor nl80211 scan
  genlctl monitor acpi_event acpi_mc_group`)
}
