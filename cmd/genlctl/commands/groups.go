package commands

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/genl-protocol/genl-go/pkg/family"
)

// GroupsOptions configures the groups command.
type GroupsOptions struct {
	Format string
	Name   string
	Config Config
}

// RunGroups runs the groups command.
func RunGroups(args []string, stdout, stderr io.Writer) int {
	opts, err := parseGroupsArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}
	if opts.Name == "" {
		fmt.Fprintln(stderr, "Error: no family name specified")
		printGroupsUsage(stderr)
		return exitCommandError
	}

	s, err := dialSession(opts.Config)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Config.Timeout)
	defer cancel()

	groups, err := s.Client.MulticastGroups(ctx, opts.Name)
	if err != nil {
		if errors.Is(err, family.ErrNotFound) {
			fmt.Fprintf(stderr, "Family %q is not registered\n", opts.Name)
			return exitNotFound
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}

	switch opts.Format {
	case "json":
		out := make([]GroupOutput, 0, len(groups))
		for _, g := range groups {
			out = append(out, GroupOutput{Name: g.Name, ID: g.ID})
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(stdout, string(data))
	case "yaml":
		out := make([]GroupOutput, 0, len(groups))
		for _, g := range groups {
			out = append(out, GroupOutput{Name: g.Name, ID: g.ID})
		}
		data, _ := yaml.Marshal(out)
		fmt.Fprint(stdout, string(data))
	default:
		if len(groups) == 0 {
			fmt.Fprintf(stdout, "Family %q exposes no multicast groups\n", opts.Name)
			return exitSuccess
		}
		for _, g := range groups {
			fmt.Fprintf(stdout, "%-24s id=%d\n", g.Name, g.ID)
		}
	}
	return exitSuccess
}

func parseGroupsArgs(args []string) (GroupsOptions, error) {
	fs := flag.NewFlagSet("groups", flag.ContinueOnError)
	opts := GroupsOptions{}

	fs.StringVar(&opts.Format, "format", "text", "Output format (text, json, yaml)")
	fs.StringVar(&opts.Format, "f", "text", "Output format (shorthand)")
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

	if remaining := fs.Args(); len(remaining) > 0 {
		opts.Name = remaining[0]
	}

	return opts, nil
}

func printGroupsUsage(w io.Writer) {
	fmt.Fprintln(w, `
Usage: genlctl groups [options] <family>

Options:
  -f, --format    Output format (text, json, yaml) [default: text]
  --timeout       Timeout per kernel exchange [default: 5s]
  --protocol-log  Append protocol events to this CBOR file
  --config        Path to a YAML config file

Examples:
  genlctl groups nl80211
  genlctl groups --format yaml acpi_event`)
}
