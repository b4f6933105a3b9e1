package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/rjboer/GoEphys/internal/app"
	"github.com/rjboer/GoEphys/internal/config"
	"github.com/rjboer/GoEphys/internal/graph"
	"github.com/rjboer/GoEphys/internal/logging"
	"github.com/rjboer/GoEphys/internal/msgbus"
	"github.com/rjboer/GoEphys/internal/telemetry"
)

// defaultConfig is written next to the binary on first run, so the sim
// works out of the box and leaves an editable starting point behind.
const defaultConfig = `logging:
  level: "info"
  format: "console"
session:
  name: "simulated recording"
nodes:
  - id: 100
    name: "Acquisition Board"
    type: "Rhythm FPGA"
    streams:
      - index: 0
        sample_rate: 30000
        data:
          - { name: "CH1", bit_volts: 0.195 }
          - { name: "CH2", bit_volts: 0.195 }
          - { name: "CH3", bit_volts: 0.195 }
          - { name: "CH4", bit_volts: 0.195 }
        events:
          - { type: "ttl", lines: 8 }
          - { type: "text", length: 64 }
          - { type: "uint64_array", length: 4 }
        spikes:
          - name: "Tetrode 1"
            electrode: "tetrode"
            sources: [0, 1, 2, 3]
            gain: 0.195
`

func main() {
	configPath := flag.String("config", "sim.yaml", "Path to the configuration file")
	duration := flag.Duration("duration", 10*time.Second, "How long to run the pipeline")
	seed := flag.Int64("seed", 1, "Seed for the synthetic signal source")
	spikeRate := flag.Float64("spike-rate", 10, "Injected spikes per second per channel")
	capturePath := flag.String("capture", "", "Write every published packet to this frame capture file")
	flag.Parse()

	if err := ensureConfig(*configPath); err != nil {
		log.Fatalf("write default config: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	reg := graph.NewRegistry()
	if err := config.Build(cfg, reg); err != nil {
		log.Fatalf("build catalog: %v", err)
	}

	bus := msgbus.NewBus()
	hub := telemetry.NewHub()
	metrics := telemetry.NewMetrics()

	// The capture subscriber is stopped after the pipelines finish, so
	// every published frame still in the bus lands in the file.
	var captured uint64
	captureStop := func() {}
	if *capturePath != "" {
		f, err := os.Create(*capturePath)
		if err != nil {
			log.Fatalf("create capture file: %v", err)
		}
		sub, unsubscribe := bus.Subscribe(8192)
		done := make(chan struct{})
		go func() {
			defer close(done)
			n, err := captureFrames(f, sub)
			if err != nil {
				logger.Error().Err(err).Msg("frame capture failed")
			}
			if err := f.Close(); err != nil {
				logger.Error().Err(err).Msg("close capture file")
			}
			captured = n
		}()
		captureStop = func() {
			unsubscribe()
			<-done
		}
	}

	var pipelines []*app.Pipeline
	var streams []graph.StreamID
	for _, id := range reg.Streams() {
		if len(reg.DataChannels(id.Node, id.Stream)) == 0 {
			continue
		}
		p := app.NewPipeline(reg, bus, hub, metrics, logger, app.Config{
			Node:      id.Node,
			Stream:    id.Stream,
			SpikeRate: *spikeRate,
			Seed:      *seed,
		})
		if err := p.Init(); err != nil {
			log.Fatalf("init pipeline %d/%d: %v", id.Node, id.Stream, err)
		}
		pipelines = append(pipelines, p)
		streams = append(streams, id)
	}
	if len(pipelines) == 0 {
		log.Fatalf("no streams with data channels in %s", *configPath)
	}

	fmt.Println("===============================================================")
	fmt.Println(" GoEphys Pipeline Simulation")
	fmt.Println("===============================================================")
	fmt.Printf(" Config   : %s\n", *configPath)
	fmt.Printf(" Session  : %s\n", cfg.Session.Name)
	fmt.Printf(" Duration : %s\n", *duration)
	fmt.Printf(" Streams  : %d\n", len(pipelines))
	if *capturePath != "" {
		fmt.Printf(" Capture  : %s\n", *capturePath)
	}
	fmt.Println("---------------------------------------------------------------")

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var wg sync.WaitGroup
	for _, p := range pipelines {
		wg.Add(1)
		go func(p *app.Pipeline) {
			defer wg.Done()
			if err := p.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				logger.Error().Err(err).Msg("pipeline stopped")
			}
		}(p)
	}
	wg.Wait()
	captureStop()

	for i, p := range pipelines {
		stats := p.Stats()
		fmt.Printf(" Stream %d/%d\n", streams[i].Node, streams[i].Stream)
		fmt.Printf("   blocks        : %d\n", stats.Blocks)
		fmt.Printf("   published     : %d\n", stats.Published)
		fmt.Printf("   spikes        : %d\n", stats.Spikes)
		fmt.Printf("   decoded       : %d\n", stats.Decoded)
		fmt.Printf("   decode errors : %d\n", stats.DecodeErrors)
		fmt.Printf("   bus drops     : %d\n", stats.BusDrops)
		fmt.Println("---------------------------------------------------------------")
	}

	for _, s := range hub.Stats() {
		fmt.Printf(" Hub %d/%d: %d events, %d spikes, last timestamp %d\n",
			s.Node, s.Stream, s.Events, s.Spikes, s.LastTimestamp)
	}
	if *capturePath != "" {
		fmt.Printf(" Captured %d frames to %s\n", captured, *capturePath)
	}
	fmt.Println("===============================================================")
}

// captureFrames drains a bus subscription into w, one frame per message,
// until the subscription is canceled.
func captureFrames(w io.Writer, sub <-chan msgbus.Message) (uint64, error) {
	bw := bufio.NewWriter(w)
	var n uint64
	for m := range sub {
		if err := msgbus.WriteMessage(bw, m); err != nil {
			return n, err
		}
		n++
	}
	return n, bw.Flush()
}

func ensureConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfig), 0o644)
}
