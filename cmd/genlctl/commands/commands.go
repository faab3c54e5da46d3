// Package commands implements the genlctl subcommands.
package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mdlayher/netlink"
	"gopkg.in/yaml.v3"

	"github.com/genl-protocol/genl-go/pkg/conn"
	"github.com/genl-protocol/genl-go/pkg/family"
	"github.com/genl-protocol/genl-go/pkg/log"
)

const (
	exitSuccess      = 0
	exitCommandError = 1
	exitNotFound     = 2
)

const defaultTimeout = 5 * time.Second

// Config holds settings shared by all subcommands. It can be loaded from
// a YAML file and overridden per invocation with flags.
type Config struct {
	// Timeout bounds each kernel exchange.
	Timeout time.Duration `yaml:"timeout"`

	// ProtocolLog, when set, appends a CBOR record of every message to
	// the given file.
	ProtocolLog string `yaml:"protocol_log"`
}

// LoadConfig reads a YAML config file. A missing path returns defaults.
func LoadConfig(path string) (Config, error) {
	cfg := Config{Timeout: defaultTimeout}
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg, nil
}

// addCommonFlags registers the flags every subcommand accepts. The
// returned function resolves them against an optional config file, flags
// winning over file values.
func addCommonFlags(fs *flag.FlagSet) func() (Config, error) {
	var (
		configPath  = fs.String("config", "", "Path to a YAML config file")
		timeout     = fs.Duration("timeout", 0, "Timeout per kernel exchange")
		protocolLog = fs.String("protocol-log", "", "Append protocol events to this CBOR file")
	)

	return func() (Config, error) {
		cfg, err := LoadConfig(*configPath)
		if err != nil {
			return cfg, err
		}
		if *timeout > 0 {
			cfg.Timeout = *timeout
		}
		if *protocolLog != "" {
			cfg.ProtocolLog = *protocolLog
		}
		return cfg, nil
	}
}

// session bundles a live connection with its pump goroutine and optional
// protocol log.
type session struct {
	Conn   *conn.Conn
	Handle *conn.Handle
	Client *family.Client

	fileLog *log.FileLogger
	runDone chan struct{}
}

// dialSession opens a generic netlink connection per cfg and starts its
// pump. Callers must Close the session.
func dialSession(cfg Config) (*session, error) {
	return dialSessionNotify(cfg, nil)
}

func dialSessionNotify(cfg Config, notify func(m netlink.Message)) (*session, error) {
	s := &session{runDone: make(chan struct{})}

	var logger log.Logger = log.NoopLogger{}
	if cfg.ProtocolLog != "" {
		fl, err := log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return nil, fmt.Errorf("open protocol log: %w", err)
		}
		s.fileLog = fl
		logger = fl
	}

	c, h, err := conn.Dial(&conn.Config{
		Logger: logger,
		Notify: notify,
	})
	if err != nil {
		if s.fileLog != nil {
			_ = s.fileLog.Close()
		}
		return nil, err
	}

	s.Conn = c
	s.Handle = h
	s.Client = family.New(h)

	go func() {
		defer close(s.runDone)
		_ = c.Run(context.Background())
	}()

	return s, nil
}

// Close tears down the connection, waits for the pump, and closes the
// protocol log.
func (s *session) Close() error {
	err := s.Conn.Close()
	<-s.runDone
	if s.fileLog != nil {
		if cerr := s.fileLog.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// printFamilyText writes one family in the two-column text layout shared
// by the list and resolve commands.
func printFamilyText(w io.Writer, f family.Family) {
	fmt.Fprintf(w, "%-24s id=%-5d version=%d", f.Name, f.ID, f.Version)
	if len(f.Groups) > 0 {
		fmt.Fprintf(w, " groups=%d", len(f.Groups))
	}
	fmt.Fprintln(w)
}
