package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gridctl/internal/cluster"
	"github.com/danmuck/gridctl/internal/config"
	"github.com/danmuck/gridctl/internal/kv"
	"github.com/danmuck/gridctl/internal/logging"
	"github.com/danmuck/gridctl/internal/node"
	"github.com/danmuck/gridctl/internal/observability"
	"github.com/danmuck/gridctl/internal/proxy"
	"github.com/danmuck/gridctl/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gridctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to grid config (toml)")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadGridConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	members := make([]cluster.Member, 0, len(cfg.Members))
	for _, m := range cfg.Members {
		members = append(members, cluster.NewMember(m.ID, m.Addr))
	}
	observability.InitLogger(members[0].ID)

	grid, err := node.NewGrid(members, proxy.Config{
		DestroyTryCount: cfg.Proxy.DestroyTryCount,
		DestroyWait:     cfg.Proxy.DestroyWait.Duration,
	}, cfg.Proxy.EventQueueSize)
	if err != nil {
		return err
	}
	defer grid.Shutdown()

	// Every member runs the same data services; the consensus-backed variant
	// treats the first member as its leader.
	leaderID := members[0].ID
	for _, n := range grid.Nodes {
		if err := n.Manager().Register(kv.NewService()); err != nil {
			return err
		}
		if err := n.Manager().Register(kv.NewConsensusService(n.Member().ID, leaderID)); err != nil {
			return err
		}
	}

	local := grid.Nodes[0]
	log.Info().
		Str("cluster", cfg.ClusterName).
		Int("members", len(grid.Nodes)).
		Str("admin_addr", cfg.Admin.Addr).
		Msg("grid up")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	admin := server.New(server.Options{
		Member:      local.Member(),
		Addr:        cfg.Admin.Addr,
		CorsOrigins: cfg.Admin.CorsOrigins,
	}, local.Proxy(), local.Manager())
	return admin.Run(ctx)
}
