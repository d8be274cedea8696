package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/core/event"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/data"
	"github.com/gridrealm/server/internal/handler"
	gonet "github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/persist"
	"github.com/gridrealm/server/internal/scripting"
	"github.com/gridrealm/server/internal/session"
	"github.com/gridrealm/server/internal/system"
	"github.com/gridrealm/server/internal/world"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              gridrealm  v0.1.0            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("GRIDREALM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if cfg.Profiling.Mode != "" {
		mode, err := profileMode(cfg.Profiling.Mode)
		if err != nil {
			return err
		}
		defer profile.Start(mode, profile.ProfilePath(cfg.Profiling.Dir), profile.NoShutdownHook, profile.Quiet).Stop()
		log.Info("profiling enabled", zap.String("mode", cfg.Profiling.Mode), zap.String("dir", cfg.Profiling.Dir))
	}

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Connect to PostgreSQL and run migrations
	printSection("database")

	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(bootCtx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL connected")

	if err := persist.RunMigrations(bootCtx, db.Pool, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")
	fmt.Println()

	// 4. Persistence pipeline
	store := persist.NewPGStore(db, cfg.Character.DefaultSlots, cfg.Character.AutoCreateAccounts, log)
	pipeline := persist.NewPipeline(store, cfg.Persistence, log)

	// 5. World and rules
	printSection("data")

	mapData, err := data.LoadMapData(cfg.World.MapFile)
	if err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	ws := world.NewState(mapData, cfg.World.TileSize)
	printOK(fmt.Sprintf("map %s (%dx%d, tile %dpx)", mapData.Name(), mapData.Width(), mapData.Height(), ws.TileSize()))

	rules, err := scripting.NewEngine(cfg.World.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer rules.Close()
	printOK("lua rules loaded")
	fmt.Println()

	// 6. Sessions and transport
	sessions := session.NewRegistry()
	queues := event.NewQueues()

	hub := gonet.NewHub(cfg.Network, gonet.Hooks{
		OnConnect: func(peer uint64) {
			log.Debug("peer connected", zap.Uint64("peer", peer))
		},
		OnDisconnect: func(peer uint64) {
			prev, ok := sessions.Unbind(peer)
			if !ok {
				return
			}
			queues.Exit.Push(event.ExitGameIntent{
				PeerID:      peer,
				CharacterID: prev.Character.CharacterID,
				Reason:      event.ExitDisconnected,
			})
		},
	}, log)

	tcpServer, err := gonet.NewServer(cfg.Network.BindAddress, hub, log)
	if err != nil {
		return fmt.Errorf("tcp server: %w", err)
	}
	var wsServer *gonet.WSServer
	if cfg.Network.WSBindAddress != "" {
		wsServer, err = gonet.NewWSServer(cfg.Network.WSBindAddress, hub, log)
		if err != nil {
			tcpServer.Shutdown()
			return fmt.Errorf("websocket server: %w", err)
		}
	}

	// 7. Packet handlers and systems
	outbox := gonet.NewOutbox(hub, ws.Players.Peers, cfg.Network.MaxFrameSize, log)
	packets := packet.NewRegistry(log)
	handler.RegisterAll(packets, &handler.Deps{
		Config:   cfg,
		Log:      log,
		World:    ws,
		Sessions: sessions,
		Requests: pipeline,
		Outbox:   outbox,
		Rules:    rules,
		Queues:   queues,
	})

	runner := coresys.NewRunner(log)
	system.RegisterAll(runner, system.Deps{
		Config:    cfg,
		Log:       log,
		World:     ws,
		Sessions:  sessions,
		Transport: hub,
		Packets:   packets,
		Outbox:    outbox,
		Rules:     rules,
		Queues:    queues,
		Saves:     pipeline,
		Results:   pipeline,
	})

	// 8. Shutdown order: systems dispose first, then listeners, then the
	// pipeline drains the final saves.
	scheduler := coresys.NewScheduler(runner, cfg.Tick.Interval(), log)
	scheduler.OnStop(func() {
		tcpServer.Shutdown()
		if wsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := wsServer.Shutdown(ctx); err != nil {
				log.Warn("websocket shutdown", zap.Error(err))
			}
		}
		hub.CloseAll()
	})
	scheduler.OnStop(func() {
		if err := pipeline.Close(cfg.Persistence.ShutdownTimeout); err != nil {
			log.Error("persistence shutdown", zap.Error(err))
		}
	})

	// 9. Start listeners and the tick loop
	go tcpServer.AcceptLoop()
	if wsServer != nil {
		go wsServer.Serve()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printSection("ready")
	printReady(fmt.Sprintf("tcp listening on %s", tcpServer.Addr().String()))
	if wsServer != nil {
		printReady(fmt.Sprintf("websocket listening on %s", wsServer.Addr().String()))
	}
	printReady(fmt.Sprintf("tick loop started (%d Hz)", cfg.Tick.RateHz))
	fmt.Println()

	scheduler.Run(ctx)
	log.Info("server stopped", zap.Uint64("ticks", scheduler.Ticks()))
	return nil
}

func profileMode(mode string) (func(*profile.Profile), error) {
	switch mode {
	case "cpu":
		return profile.CPUProfile, nil
	case "mem":
		return profile.MemProfile, nil
	case "block":
		return profile.BlockProfile, nil
	case "mutex":
		return profile.MutexProfile, nil
	case "goroutine":
		return profile.GoroutineProfile, nil
	default:
		return nil, fmt.Errorf("unknown profiling mode %q", mode)
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
