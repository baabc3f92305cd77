// Command bot is a load-testing client: it signs up, queues and plays
// random legal moves over TCP until it has played the requested games.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"gomoku/internal/network"
	"gomoku/internal/session/message"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "gomoku-bot",
		Usage: "random-move player for load testing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:9000", Usage: "server TCP address", Sources: cli.EnvVars("BOT_SERVER_ADDR")},
			&cli.StringFlag{Name: "username", Usage: "account name (random when empty)", Sources: cli.EnvVars("BOT_USERNAME")},
			&cli.StringFlag{Name: "password", Value: "bot-password", Sources: cli.EnvVars("BOT_PASSWORD")},
			&cli.IntFlag{Name: "games", Value: 1, Usage: "games to play before exiting", Sources: cli.EnvVars("BOT_GAMES")},
			&cli.DurationFlag{Name: "timeout", Value: 2 * time.Minute, Usage: "longest wait for the server", Sources: cli.EnvVars("BOT_TIMEOUT")},
		},
		Action: run,
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	name := cmd.String("username")
	if name == "" {
		name = "bot-" + uuid.NewString()[:8]
	}
	log = log.With(zap.String("bot", name))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cmd.String("addr"))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	reader := network.NewReader(conn)
	timeout := cmd.Duration("timeout")
	read := func() (network.Message, error) {
		conn.SetReadDeadline(time.Now().Add(timeout))
		return reader.ReadMessage()
	}
	creds := message.Credentials{Username: name, Password: cmd.String("password")}

	// Signup fails harmlessly when the account already exists.
	if err := network.WriteMessage(conn, message.New(message.SignupRequest, creds)); err != nil {
		return err
	}
	if _, err := read(); err != nil {
		return fmt.Errorf("signup: %w", err)
	}
	if err := network.WriteMessage(conn, message.New(message.LoginRequest, creds)); err != nil {
		return err
	}
	if msg, err := read(); err != nil {
		return fmt.Errorf("login: %w", err)
	} else if msg.Type != message.LoginResponse {
		return fmt.Errorf("login rejected: %s", msg.Payload)
	}
	log.Info("logged in")

	b := newBot(name, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), log)
	for b.played < cmd.Int("games") {
		if err := network.WriteMessage(conn, b.join()); err != nil {
			return err
		}
		for done := false; !done; {
			msg, err := read()
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			var out []network.Message
			out, done = b.handle(msg)
			for _, m := range out {
				if err := network.WriteMessage(conn, m); err != nil {
					return err
				}
			}
		}
	}
	log.Info("finished", zap.Int("played", b.played), zap.Int("won", b.won))
	return network.WriteMessage(conn, message.New(message.Logout, nil))
}
