// Package interactive provides the interactive shell for genlctl.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/genl-protocol/genl-go/pkg/conn"
	"github.com/genl-protocol/genl-go/pkg/family"
)

// Shell handles interactive mode for genlctl.
type Shell struct {
	conn    *conn.Conn
	client  *family.Client
	timeout time.Duration
	rl      *readline.Instance

	// Multicast groups joined from this shell, so leave accepts the same
	// names as join.
	joined map[string]uint32
}

// New creates a new interactive shell over an open connection.
func New(c *conn.Conn, client *family.Client, timeout time.Duration) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "genl> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Shell{
		conn:    c,
		client:  client,
		timeout: timeout,
		rl:      rl,
		joined:  make(map[string]uint32),
	}, nil
}

// Run starts the interactive command loop. It returns when the user
// exits or the context is canceled.
func (s *Shell) Run(ctx context.Context) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "list", "ls":
			s.cmdList()

		case "resolve", "r":
			s.cmdResolve(args)

		case "groups", "g":
			s.cmdGroups(args)

		case "join":
			s.cmdJoin(args)

		case "leave":
			s.cmdLeave(args)

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
Generic Netlink Commands:
  list                   - List registered families
  resolve <family>       - Resolve a family name to its identifier
  groups <family>        - Show the multicast groups of a family
  join <family> <group>  - Join a multicast group (messages print async)
  leave <family> <group> - Leave a previously joined group

  help                   - Show this help
  quit                   - Exit the shell`)
}

func (s *Shell) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Shell) cmdList() {
	ctx, cancel := s.ctx()
	defer cancel()

	families, err := s.client.List(ctx)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	for _, f := range families {
		fmt.Fprintf(s.rl.Stdout(), "  %-24s id=%-5d version=%d\n", f.Name, f.ID, f.Version)
	}
	fmt.Fprintf(s.rl.Stdout(), "Total: %d families\n", len(families))
}

func (s *Shell) cmdResolve(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: resolve <family>")
		return
	}

	ctx, cancel := s.ctx()
	defer cancel()

	f, err := s.client.Get(ctx, args[0])
	if err != nil {
		if errors.Is(err, family.ErrNotFound) {
			fmt.Fprintf(s.rl.Stdout(), "Family %q is not registered\n", args[0])
			return
		}
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	fmt.Fprintf(s.rl.Stdout(), "%s: id=%d version=%d groups=%d\n",
		f.Name, f.ID, f.Version, len(f.Groups))
}

func (s *Shell) cmdGroups(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: groups <family>")
		return
	}

	ctx, cancel := s.ctx()
	defer cancel()

	groups, err := s.client.MulticastGroups(ctx, args[0])
	if err != nil {
		if errors.Is(err, family.ErrNotFound) {
			fmt.Fprintf(s.rl.Stdout(), "Family %q is not registered\n", args[0])
			return
		}
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	if len(groups) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No multicast groups")
		return
	}
	for _, g := range groups {
		fmt.Fprintf(s.rl.Stdout(), "  %-24s id=%d\n", g.Name, g.ID)
	}
}

func (s *Shell) lookupGroup(fam, group string) (uint32, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	groups, err := s.client.MulticastGroups(ctx, fam)
	if err != nil {
		return 0, err
	}
	for _, g := range groups {
		if g.Name == group {
			return g.ID, nil
		}
	}
	return 0, fmt.Errorf("family %q has no multicast group %q", fam, group)
}

func (s *Shell) cmdJoin(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: join <family> <group>")
		return
	}

	id, err := s.lookupGroup(args[0], args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := s.conn.JoinGroup(id); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	s.joined[args[0]+"/"+args[1]] = id
	fmt.Fprintf(s.rl.Stdout(), "Joined %s/%s (group %d)\n", args[0], args[1], id)
}

func (s *Shell) cmdLeave(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: leave <family> <group>")
		return
	}

	key := args[0] + "/" + args[1]
	id, ok := s.joined[key]
	if !ok {
		// Not joined from this shell; resolve the id fresh.
		var err error
		id, err = s.lookupGroup(args[0], args[1])
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
			return
		}
	}

	if err := s.conn.LeaveGroup(id); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	delete(s.joined, key)
	fmt.Fprintf(s.rl.Stdout(), "Left %s/%s (group %d)\n", args[0], args[1], id)
}

// Stdout returns a writer that coordinates with the readline prompt. Use
// it for asynchronous output such as multicast notifications.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}
