package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mmuteeullah/TimeScope/internal/config"
	"github.com/mmuteeullah/TimeScope/internal/ebitenui"
	"github.com/mmuteeullah/TimeScope/internal/fragments"
	"github.com/mmuteeullah/TimeScope/internal/query"
	"github.com/mmuteeullah/TimeScope/internal/server"
	"github.com/mmuteeullah/TimeScope/internal/store"
	"github.com/mmuteeullah/TimeScope/internal/widget"
)

var (
	version = "0.1.0"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("TimeScope v%s - NVR playback timeline\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	setupLogging(cfg.System)

	log.Printf("Starting TimeScope v%s", version)
	log.Printf("Channel: %s", cfg.Channel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	var wg sync.WaitGroup
	var querier fragments.Querier
	var apiServer *server.Server
	var client *query.Client

	if cfg.Remote() {
		log.Printf("Remote recorder: %s", cfg.Server.URL)
		client, err = query.NewClient(cfg.Server.URL, cfg.Server.Username, cfg.Server.Password)
		if err != nil {
			log.Fatalf("Failed to create query client: %v", err)
		}
		querier = client
	} else {
		log.Printf("Local storage: %s", cfg.Storage.BasePath)
		st := store.New(cfg.Storage.BasePath, cfg.Storage.SegmentDuration)
		querier = st

		if cfg.API.Enabled {
			apiServer = server.New(cfg.API, st)
			apiServer.Start()
		}
	}

	engine := widget.NewEngine(querier, widget.Options{
		Channel:         cfg.Channel,
		BufferScreens:   cfg.Timeline.BufferScreens,
		DragThresholdPx: cfg.Timeline.DragThresholdPx,
		DefaultZoom:     cfg.Timeline.DefaultZoom,
		Live:            cfg.Timeline.Live,
		ResetPolicy:     widget.ResetPolicy(cfg.Timeline.ResetOnModeSwitch),
	})

	// Starting playback at the clicked instant belongs to the streaming
	// side of the player; here the intent is just logged.
	engine.SetCallbacks(widget.Callbacks{
		OnTimeClick: func(t time.Time) {
			log.Printf("Seek requested: %s", t.Format(time.RFC3339))
		},
	})

	interval := time.Duration(cfg.Server.SyncInterval) * time.Second
	wg.Add(1)
	go func() {
		defer wg.Done()
		if client != nil {
			client.SyncLoop(ctx, interval, engine.SyncServerTime)
		} else {
			localSyncLoop(ctx, querier.(fragments.ServerClock), interval, engine.SyncServerTime)
		}
	}()

	app := ebitenui.New(ctx, engine, ebitenui.Options{
		Title:     fmt.Sprintf("TimeScope - %s", cfg.Channel),
		Width:     cfg.UI.Width,
		Height:    cfg.UI.Height,
		ShowStats: cfg.UI.ShowStats,
	})
	engine.Start(ctx)

	// Blocks until the window closes or the context is cancelled.
	if err := app.Run(); err != nil {
		log.Printf("UI error: %v", err)
	}

	cancel()
	engine.Stop()
	if apiServer != nil {
		apiServer.Stop()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All components stopped gracefully")
	case <-time.After(10 * time.Second):
		log.Println("Timeout waiting for components to stop")
	}

	log.Println("TimeScope shutdown complete")
}

// localSyncLoop feeds the engine from the local clock at the same cadence
// a remote recorder would be polled.
func localSyncLoop(ctx context.Context, clock fragments.ServerClock, interval time.Duration, apply func(time.Time)) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if t, err := clock.ServerTime(ctx); err == nil {
		apply(t)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t, err := clock.ServerTime(ctx)
			if err != nil {
				log.Printf("Local time sync failed: %v", err)
				continue
			}
			apply(t)
		}
	}
}

// setupLogging configures the logging system
func setupLogging(cfg config.SystemConfig) {
	logFlags := log.LstdFlags

	if cfg.LogLevel == "debug" {
		logFlags |= log.Lshortfile
	}

	log.SetFlags(logFlags)

	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("Failed to open log file %s: %v, using stdout", cfg.LogFile, err)
		} else {
			log.SetOutput(logFile)
		}
	}
}
