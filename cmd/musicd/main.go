// Package main is the entry point for the musicd daemon.
// musicd is a headless playback service: it keeps the queue, runs the playback
// clock and answers clients over IPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/austinkregel/local-media/playbackclient/internal/auth"
	"github.com/austinkregel/local-media/playbackclient/internal/config"
	"github.com/austinkregel/local-media/playbackclient/internal/ipc"
	"github.com/austinkregel/local-media/playbackclient/internal/playback"
	"github.com/austinkregel/local-media/playbackclient/internal/queue"
)

// Version is set at build time via ldflags
var Version = "dev"

// Flags holds command line options
type Flags struct {
	SocketPath string
	ConfigPath string
	TestMode   bool
	Verbose    bool
}

func main() {
	flags := parseFlags()

	if flags.Verbose {
		log.Printf("musicd version %s starting...", Version)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, flags); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func parseFlags() *Flags {
	f := &Flags{}
	flag.StringVar(&f.SocketPath, "socket", "", "IPC endpoint (default: from config, else per-user socket)")
	flag.StringVar(&f.ConfigPath, "config", "", "Configuration file (default: xdg config, then ./musicd.toml)")
	flag.BoolVar(&f.TestMode, "test-mode", false, "Run in test mode (auto-approve pairing)")
	flag.BoolVar(&f.Verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()
	return f
}

func run(ctx context.Context, flags *Flags) error {
	configMgr, err := config.Load(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dataDir := configMgr.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	authStore, err := auth.NewStore(filepath.Join(dataDir, "clients.db"))
	if err != nil {
		return fmt.Errorf("failed to initialize auth store: %w", err)
	}
	defer authStore.Close()
	authManager := auth.NewManager(authStore, flags.TestMode)

	queueMgr := queue.NewManager()
	if configMgr.RememberQueue() {
		queueStore, err := openQueue(filepath.Join(dataDir, "queue.db"), queueMgr)
		if err != nil {
			return err
		}
		defer func() {
			queueStore.save(queueMgr)
			log.Printf("[QUEUE] Queue saved on shutdown")
			queueStore.Close()
		}()
	}

	engine := playback.NewEngine(queueMgr, playback.Options{
		CoverSize:        configMgr.CoverSize(),
		ProgressInterval: configMgr.ProgressInterval(),
	})

	socketPath := flags.SocketPath
	if socketPath == "" {
		socketPath = configMgr.SocketPath()
	}
	server := ipc.NewServer(socketPath, authManager, engine)
	server.SetVerbose(flags.Verbose)

	ctx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Run(ctx)
	}()
	defer func() {
		stop()
		wg.Wait()
	}()

	log.Printf("Starting IPC server on %s", socketPath)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("IPC server error: %w", err)
	}
	return nil
}

// persistedQueue saves the queue after every change
type persistedQueue struct {
	*queue.Store
	mu sync.Mutex
}

func openQueue(path string, q *queue.Manager) (*persistedQueue, error) {
	store, err := queue.OpenStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue store: %w", err)
	}
	p := &persistedQueue{Store: store}

	state, err := store.Load()
	switch {
	case err != nil:
		log.Printf("[QUEUE] Warning: failed to load saved queue: %v", err)
	case state != nil:
		q.Restore(*state)
		idx, size := q.Position()
		log.Printf("[QUEUE] Loaded saved queue: %d items, position %d", size, idx)
	}

	q.SetOnChange(func() { p.save(q) })
	return p, nil
}

func (p *persistedQueue) save(q *queue.Manager) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Save(q.Snapshot()); err != nil {
		log.Printf("[QUEUE] Warning: failed to save queue: %v", err)
	}
}
