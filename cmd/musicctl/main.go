// Package main is the entry point for musicctl, a command line client for musicd.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/austinkregel/local-media/playbackclient/internal/auth"
	"github.com/austinkregel/local-media/playbackclient/internal/client"
	"github.com/austinkregel/local-media/playbackclient/internal/config"
	"github.com/austinkregel/local-media/playbackclient/internal/remote"
)

const usage = `usage: musicctl [flags] <command> [args]

commands:
  status                 show the current item and playback state
  play | pause | stop    control playback
  next | prev            skip within the queue
  load <paths...>        replace the queue and play the first path
  append <paths...>      add paths to the end of the queue
  remove <index>         remove a queue item
  move <from> <to>       move a queue item before another
  queue                  list the queue
  seek <ms>              jump to a position
  shuffle                toggle shuffle
  repeat <none|once|all> set the repeat mode
  headset <on|off>       pause on headset unplug
  watch                  print notifications until interrupted
  bridge                 publish playback to the OS media controls

flags:
`

var errUsage = errors.New("invalid usage")

func main() {
	socketPath := flag.String("socket", "", "IPC endpoint (default: from config)")
	configPath := flag.String("config", "", "Configuration file (default: xdg config, then ./musicd.toml)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if !*verbose {
		log.SetOutput(io.Discard)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, *configPath, *socketPath, flag.Args())
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "musicctl: %v\n", err)
		flag.Usage()
		os.Exit(2)
	case err != nil:
		fmt.Fprintf(os.Stderr, "musicctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, socketPath string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	c := client.New(&remote.Dialer{
		SocketPath: socketPath,
		ClientName: cfg.ClientName(),
		Tokens:     &auth.TokenFile{Path: cfg.TokenPath()},
	}, client.Options{Preferences: cfg, CallTimeout: cfg.CallTimeout()})

	if err := bind(ctx, c); err != nil {
		return fmt.Errorf("cannot reach musicd at %s: %w", socketPath, err)
	}
	defer c.Unbind(context.Background())

	return cmd(ctx, &env{client: c, config: cfg, out: os.Stdout}, args[1:])
}

// bindListener turns a bind outcome into a channel receive
type bindListener chan bool

func (l bindListener) OnConnectionSuccess() { l <- true }
func (l bindListener) OnConnectionFailed()  { l <- false }

// bind binds c and waits for the outcome
func bind(ctx context.Context, c *client.Client) error {
	done := make(bindListener, 1)
	c.Bind(ctx, done)
	select {
	case ok := <-done:
		if !ok {
			return errors.New("bind failed (run with -verbose for details)")
		}
		return nil
	case <-ctx.Done():
		c.Unbind(context.Background())
		return ctx.Err()
	}
}
