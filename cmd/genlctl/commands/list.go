package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/genl-protocol/genl-go/pkg/family"
)

// ListOptions configures the list command.
type ListOptions struct {
	Format string // text, json, yaml
	Config Config
}

// FamilyOutput is the serializable form of a family for json and yaml
// output.
type FamilyOutput struct {
	ID      uint16        `json:"id" yaml:"id"`
	Name    string        `json:"name" yaml:"name"`
	Version uint8         `json:"version" yaml:"version"`
	Groups  []GroupOutput `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// GroupOutput is the serializable form of a multicast group.
type GroupOutput struct {
	Name string `json:"name" yaml:"name"`
	ID   uint32 `json:"id" yaml:"id"`
}

func familyOutput(f family.Family) FamilyOutput {
	out := FamilyOutput{ID: f.ID, Name: f.Name, Version: f.Version}
	for _, g := range f.Groups {
		out.Groups = append(out.Groups, GroupOutput{Name: g.Name, ID: g.ID})
	}
	return out
}

// RunList runs the list command.
func RunList(args []string, stdout, stderr io.Writer) int {
	opts, err := parseListArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
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

	families, err := s.Client.List(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}

	sort.Slice(families, func(i, j int) bool {
		return families[i].ID < families[j].ID
	})

	printFamilies(stdout, families, opts.Format)
	return exitSuccess
}

func printFamilies(w io.Writer, families []family.Family, format string) {
	switch format {
	case "json":
		out := make([]FamilyOutput, 0, len(families))
		for _, f := range families {
			out = append(out, familyOutput(f))
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(w, string(data))
	case "yaml":
		out := make([]FamilyOutput, 0, len(families))
		for _, f := range families {
			out = append(out, familyOutput(f))
		}
		data, _ := yaml.Marshal(out)
		fmt.Fprint(w, string(data))
	default:
		for _, f := range families {
			printFamilyText(w, f)
		}
		fmt.Fprintf(w, "\nTotal: %d families\n", len(families))
	}
}

func parseListArgs(args []string) (ListOptions, error) {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	opts := ListOptions{}

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

	return opts, nil
}
