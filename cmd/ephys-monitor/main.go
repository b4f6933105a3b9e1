package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rjboer/GoEphys/internal/app"
	"github.com/rjboer/GoEphys/internal/config"
	"github.com/rjboer/GoEphys/internal/graph"
	"github.com/rjboer/GoEphys/internal/logging"
	"github.com/rjboer/GoEphys/internal/mdns"
	"github.com/rjboer/GoEphys/internal/msgbus"
	"github.com/rjboer/GoEphys/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "monitor.yaml", "Path to the configuration file")
	addr := flag.String("addr", "", "Telemetry listen address, overrides the config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	reg := graph.NewRegistry()
	if err := config.Build(cfg, reg); err != nil {
		log.Fatalf("build catalog: %v", err)
	}
	session := graph.NewSession(cfg.Session.Name)
	logger.Info().
		Str("session", session.Name).
		Str("id", session.ID.String()).
		Msg("session started")

	holder, err := config.NewHolder(*configPath, reg, logger)
	if err != nil {
		log.Fatalf("init config holder: %v", err)
	}
	defer holder.Stop()
	holder.OnChange(func(c *config.Config) {
		logging.SetLevel(c.Logging.Level)
	})
	if err := holder.WatchFile(); err != nil {
		log.Fatalf("watch config: %v", err)
	}
	holder.WatchSignals()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bus := msgbus.NewBus()
	hub := telemetry.NewHub()
	metrics := telemetry.NewMetrics()

	if cfg.Telemetry.Enabled {
		listen := cfg.Telemetry.Addr
		if *addr != "" {
			listen = *addr
		}
		srv := telemetry.NewServer(listen, reg, session, hub, metrics, logger)
		go srv.Start(ctx)
		logger.Info().Msgf("web interface: http://localhost%s", listen)
	}

	if cfg.Discovery.Enabled {
		txt := []string{
			"session=" + session.Name,
			fmt.Sprintf("streams=%d", len(reg.Streams())),
		}
		go func() {
			if err := mdns.Announce(ctx, cfg.Discovery.Instance, cfg.Discovery.Port, txt); err != nil {
				logger.Warn().Err(err).Msg("mdns announce failed")
			}
		}()
	}

	var (
		wg        sync.WaitGroup
		pipelines []*app.Pipeline
	)
	for _, id := range reg.Streams() {
		if len(reg.DataChannels(id.Node, id.Stream)) == 0 {
			logger.Debug().Uint16("node", id.Node).Uint16("stream", id.Stream).
				Msg("skipping stream without data channels")
			continue
		}
		p := app.NewPipeline(reg, bus, hub, metrics, logger, app.Config{
			Node:   id.Node,
			Stream: id.Stream,
		})
		if err := p.Init(); err != nil {
			log.Fatalf("init pipeline %d/%d: %v", id.Node, id.Stream, err)
		}
		pipelines = append(pipelines, p)
		wg.Add(1)
		go func(p *app.Pipeline, id graph.StreamID) {
			defer wg.Done()
			if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).
					Uint16("node", id.Node).Uint16("stream", id.Stream).
					Msg("pipeline stopped")
			}
		}(p, id)
	}
	if len(pipelines) == 0 {
		log.Fatalf("no streams with data channels in %s", *configPath)
	}

	logger.Info().Int("pipelines", len(pipelines)).Msg("running, Ctrl+C to stop")
	<-ctx.Done()
	wg.Wait()

	for _, p := range pipelines {
		stats := p.Stats()
		logger.Info().
			Uint64("blocks", stats.Blocks).
			Uint64("published", stats.Published).
			Uint64("spikes", stats.Spikes).
			Uint64("decoded", stats.Decoded).
			Uint64("decode_errors", stats.DecodeErrors).
			Uint64("bus_drops", stats.BusDrops).
			Msg("pipeline finished")
	}
}
