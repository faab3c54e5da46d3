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

// ResolveOptions configures the resolve command.
type ResolveOptions struct {
	Format string
	Name   string
	Config Config
}

// RunResolve runs the resolve command.
func RunResolve(args []string, stdout, stderr io.Writer) int {
	opts, err := parseResolveArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}
	if opts.Name == "" {
		fmt.Fprintln(stderr, "Error: no family name specified")
		printResolveUsage(stderr)
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

	f, err := s.Client.Get(ctx, opts.Name)
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
		data, _ := json.MarshalIndent(familyOutput(f), "", "  ")
		fmt.Fprintln(stdout, string(data))
	case "yaml":
		data, _ := yaml.Marshal(familyOutput(f))
		fmt.Fprint(stdout, string(data))
	default:
		printFamilyText(stdout, f)
	}
	return exitSuccess
}

func parseResolveArgs(args []string) (ResolveOptions, error) {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	opts := ResolveOptions{}

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

func printResolveUsage(w io.Writer) {
	fmt.Fprintln(w, `
Usage: genlctl resolve [options] <family>

Options:
  -f, --format    Output format (text, json, yaml) [default: text]
  --timeout       Timeout per kernel exchange [default: 5s]
  --protocol-log  Append protocol events to this CBOR file
  --config        Path to a YAML config file

Examples:
  genlctl resolve nl80211
  genlctl resolve --format json nlctrl`)
}
