// Package config holds the server settings. Every setting is a command
// line flag that can also come from the environment or a .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v3"

	"gomoku/internal/game"
	"gomoku/internal/session"
	"gomoku/internal/store"
)

type Config struct {
	TCPAddr  string
	HTTPAddr string
	Debug    bool

	BoardSize       int
	TurnBudget      time.Duration
	InviteTTL       time.Duration
	MaxInviteTTL    time.Duration
	SweepPeriod     time.Duration
	RequestTimeout  time.Duration
	StartingCredits int

	StoreMode   string
	DataDir     string
	PostgresDSN string
	RedisURL    string
	NATSURL     string
	NATSSubject string

	ConsulAddr  string
	ServiceName string
}

func Default() Config {
	return Config{
		TCPAddr:        ":9000",
		HTTPAddr:       ":8080",
		BoardSize:      game.BoardSize,
		TurnBudget:     session.DefaultTurnBudget,
		InviteTTL:      session.DefaultInviteTTL,
		MaxInviteTTL:   session.DefaultMaxInviteTTL,
		SweepPeriod:    session.DefaultSweepPeriod,
		RequestTimeout: session.DefaultRequestWait,
		StoreMode:      store.ModeFile,
		DataDir:        "data",
		NATSSubject:    store.DefaultSubject,
		ServiceName:    "gomoku",
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs *multierror.Error
	if c.TCPAddr == "" && c.HTTPAddr == "" {
		errs = multierror.Append(errs, errors.New("at least one of tcp-addr and http-addr is required"))
	}
	if c.BoardSize < game.WinLength {
		errs = multierror.Append(errs, fmt.Errorf("board-size %d is smaller than a winning line", c.BoardSize))
	}
	if c.TurnBudget < time.Second {
		errs = multierror.Append(errs, fmt.Errorf("turn-budget %s is under one second", c.TurnBudget))
	}
	if c.InviteTTL <= 0 || c.MaxInviteTTL <= 0 {
		errs = multierror.Append(errs, errors.New("invite ttls must be positive"))
	} else if c.InviteTTL > c.MaxInviteTTL {
		errs = multierror.Append(errs, fmt.Errorf("invite-ttl %s exceeds max-invite-ttl %s", c.InviteTTL, c.MaxInviteTTL))
	}
	if c.SweepPeriod <= 0 || c.SweepPeriod > c.TurnBudget {
		errs = multierror.Append(errs, fmt.Errorf("sweep-period %s must be positive and within the turn budget", c.SweepPeriod))
	}
	if c.StartingCredits < 0 {
		errs = multierror.Append(errs, errors.New("starting-credits cannot be negative"))
	}
	switch c.StoreMode {
	case store.ModeMemory:
	case store.ModeFile:
		if c.DataDir == "" {
			errs = multierror.Append(errs, errors.New("file store needs data-dir"))
		}
	case store.ModePostgres:
		if c.PostgresDSN == "" {
			errs = multierror.Append(errs, errors.New("postgres store needs postgres-dsn"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown store %q", c.StoreMode))
	}
	return errs.ErrorOrNil()
}

// Session is the engine configuration.
func (c Config) Session() session.Config {
	return session.Config{
		BoardSize:      c.BoardSize,
		TurnBudget:     c.TurnBudget,
		InviteTTL:      c.InviteTTL,
		MaxInviteTTL:   c.MaxInviteTTL,
		SweepPeriod:    c.SweepPeriod,
		RequestTimeout: c.RequestTimeout,
	}
}

func (c Config) Store() store.Options {
	return store.Options{
		Mode:        c.StoreMode,
		DataDir:     c.DataDir,
		PostgresDSN: c.PostgresDSN,
		RedisURL:    c.RedisURL,
		NATSURL:     c.NATSURL,
		NATSSubject: c.NATSSubject,
		Retry:       store.DefaultRetryPolicy,
	}
}

// Flags lists the server flags with their environment variables.
func Flags() []cli.Flag {
	d := Default()
	return []cli.Flag{
		&cli.StringFlag{Name: "tcp-addr", Value: d.TCPAddr, Usage: "TCP listen address", Sources: cli.EnvVars("GOMOKU_TCP_ADDR")},
		&cli.StringFlag{Name: "http-addr", Value: d.HTTPAddr, Usage: "HTTP listen address (WebSocket, health, spectator API)", Sources: cli.EnvVars("GOMOKU_HTTP_ADDR", "PORT")},
		&cli.BoolFlag{Name: "debug", Usage: "development logging", Sources: cli.EnvVars("GOMOKU_DEBUG")},
		&cli.IntFlag{Name: "board-size", Value: d.BoardSize, Usage: "board side length", Sources: cli.EnvVars("GOMOKU_BOARD_SIZE")},
		&cli.DurationFlag{Name: "turn-budget", Value: d.TurnBudget, Usage: "time allowed per move", Sources: cli.EnvVars("GOMOKU_TURN_BUDGET")},
		&cli.DurationFlag{Name: "invite-ttl", Value: d.InviteTTL, Usage: "default match request lifetime", Sources: cli.EnvVars("GOMOKU_INVITE_TTL")},
		&cli.DurationFlag{Name: "max-invite-ttl", Value: d.MaxInviteTTL, Usage: "longest match request lifetime", Sources: cli.EnvVars("GOMOKU_MAX_INVITE_TTL")},
		&cli.DurationFlag{Name: "sweep-period", Value: d.SweepPeriod, Usage: "deadline sweeper period", Sources: cli.EnvVars("GOMOKU_SWEEP_PERIOD")},
		&cli.DurationFlag{Name: "request-timeout", Value: d.RequestTimeout, Usage: "store time budget per message", Sources: cli.EnvVars("GOMOKU_REQUEST_TIMEOUT")},
		&cli.IntFlag{Name: "starting-credits", Value: d.StartingCredits, Usage: "credits of a new account", Sources: cli.EnvVars("GOMOKU_STARTING_CREDITS")},
		&cli.StringFlag{Name: "store", Value: d.StoreMode, Usage: "accounts and history backend: memory, file or postgres", Sources: cli.EnvVars("GOMOKU_STORE")},
		&cli.StringFlag{Name: "data-dir", Value: d.DataDir, Usage: "directory of the file store", Sources: cli.EnvVars("GOMOKU_DATA_DIR")},
		&cli.StringFlag{Name: "postgres-dsn", Usage: "postgres connection string", Sources: cli.EnvVars("GOMOKU_POSTGRES_DSN", "DATABASE_URL")},
		&cli.StringFlag{Name: "redis-url", Usage: "keep live games in redis", Sources: cli.EnvVars("GOMOKU_REDIS_URL", "REDIS_URL")},
		&cli.StringFlag{Name: "nats-url", Usage: "publish finished games to nats", Sources: cli.EnvVars("GOMOKU_NATS_URL", "NATS_URL")},
		&cli.StringFlag{Name: "nats-subject", Value: d.NATSSubject, Usage: "subject for finished games", Sources: cli.EnvVars("GOMOKU_NATS_SUBJECT")},
		&cli.StringFlag{Name: "consul-addr", Usage: "comma separated consul agents to register with", Sources: cli.EnvVars("CONSUL_HTTP_ADDR")},
		&cli.StringFlag{Name: "service-name", Value: d.ServiceName, Usage: "consul service name", Sources: cli.EnvVars("GOMOKU_SERVICE_NAME")},
	}
}

// FromCommand reads the flags declared by Flags.
func FromCommand(cmd *cli.Command) Config {
	return Config{
		TCPAddr:         cmd.String("tcp-addr"),
		HTTPAddr:        cmd.String("http-addr"),
		Debug:           cmd.Bool("debug"),
		BoardSize:       cmd.Int("board-size"),
		TurnBudget:      cmd.Duration("turn-budget"),
		InviteTTL:       cmd.Duration("invite-ttl"),
		MaxInviteTTL:    cmd.Duration("max-invite-ttl"),
		SweepPeriod:     cmd.Duration("sweep-period"),
		RequestTimeout:  cmd.Duration("request-timeout"),
		StartingCredits: cmd.Int("starting-credits"),
		StoreMode:       cmd.String("store"),
		DataDir:         cmd.String("data-dir"),
		PostgresDSN:     cmd.String("postgres-dsn"),
		RedisURL:        cmd.String("redis-url"),
		NATSURL:         cmd.String("nats-url"),
		NATSSubject:     cmd.String("nats-subject"),
		ConsulAddr:      cmd.String("consul-addr"),
		ServiceName:     cmd.String("service-name"),
	}
}
