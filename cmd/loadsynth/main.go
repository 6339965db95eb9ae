// Command loadsynth generates labelled synthetic current datasets for load
// disaggregation, or inspects the spectrum of a stored signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/synaptecltd/loadsynth"
	"github.com/synaptecltd/loadsynth/spectrum"
	"github.com/synaptecltd/loadsynth/textstore"
)

const (
	modeRandom        = "random"
	modeMeasured      = "measured"
	modeCombinatorial = "combinatorial"
	modeInspect       = "inspect"
)

type options struct {
	config  string
	mode    string
	out     string
	loads   int
	signal  int
	index   int
	noise   bool
	verbose bool
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "YAML configuration file; defaults are used when empty")
	flag.StringVar(&opts.mode, "mode", modeRandom, "random, measured, combinatorial or inspect")
	flag.StringVar(&opts.out, "out", "data", "directory loads and datasets are written to")
	flag.IntVar(&opts.loads, "loads", 5, "number of loads in a random aggregate")
	flag.IntVar(&opts.signal, "signal", 0, "load to inspect; 0 inspects the aggregate")
	flag.IntVar(&opts.index, "index", -1, "start of the inspection window; negative picks one at random")
	flag.BoolVar(&opts.noise, "noise", false, "inject the configured noise before inspecting")
	flag.BoolVar(&opts.verbose, "v", false, "log every generated load")
	flag.Parse()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	lg := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, lg); err != nil {
		lg.Error("loadsynth failed", "mode", opts.mode, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, lg *slog.Logger) error {
	cfg := loadsynth.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = loadsynth.LoadConfig(opts.config); err != nil {
			return err
		}
	}
	lg.Info("config loaded", "fs", cfg.SamplingRate, "duration", cfg.Duration,
		"labelling", cfg.Labelling.TypeAsString(), "workers", cfg.Workers)

	if opts.mode == modeInspect {
		return inspect(opts, cfg, lg)
	}

	gen, err := loadsynth.NewGenerator(cfg, loadsynth.WithLogger(lg))
	if err != nil {
		return err
	}

	var names []string
	if opts.mode != modeRandom {
		if len(cfg.Loads) == 0 {
			return fmt.Errorf("%s mode needs the Loads list: %w", opts.mode, loadsynth.ErrInvalidConfiguration)
		}
		names = cfg.Loads
	}
	store, err := textstore.New(opts.out, names...)
	if err != nil {
		return err
	}

	sinks, closers, err := loadEnv().sinks(cfg, store, lg)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				lg.Error("sink close", "error", err)
			}
		}
	}()
	if err != nil {
		return err
	}

	switch opts.mode {
	case modeRandom:
		_, err = gen.BuildRandomAggregate(ctx, opts.loads, store, sinks)
	case modeMeasured:
		_, err = gen.BuildMeasuredAggregate(ctx, store, cfg.NumClasses, sinks)
	case modeCombinatorial:
		_, err = gen.BuildCombinatorial(ctx, store, cfg.NumClasses, sinks)
	default:
		err = fmt.Errorf("unknown mode %q: %w", opts.mode, loadsynth.ErrInvalidConfiguration)
	}
	if err != nil {
		return err
	}

	lg.Info("dataset written", "dir", store.Dir(), "seed", gen.Seed())
	return nil
}

// inspect logs the dominant harmonics of one window of a stored signal.
func inspect(opts options, cfg loadsynth.Config, lg *slog.Logger) error {
	store, err := textstore.New(opts.out)
	if err != nil {
		return err
	}

	var (
		values []float64
		labels []int
	)
	if opts.signal == 0 {
		values, _, err = store.LoadSum()
	} else {
		var rec *loadsynth.LoadRecord
		if rec, err = store.Get(opts.signal); err == nil {
			values, labels = rec.Waveform, rec.Label
		}
	}
	if err != nil {
		return err
	}

	in, err := spectrum.NewInspector(cfg, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	if err != nil {
		return err
	}
	w, s, err := in.Inspect(values, labels, opts.index, opts.noise || cfg.Noise)
	if err != nil {
		return err
	}
	if w.Status != spectrum.StatusOK {
		lg.Warn(w.Status.String(), "index", opts.index, "samples", len(values), "window", in.WindowLength())
		return nil
	}

	freq, amp := s.Peak()
	lg.Info("window inspected", "start", w.Start, "samples", len(w.Values), "peak_hz", freq, "peak_amp", amp)
	for k := range s.Frequencies {
		if s.Amplitudes[k] < 0.05*amp {
			continue
		}
		lg.Info("harmonic", "hz", s.Frequencies[k], "amp", s.Amplitudes[k], "phase_deg", s.Phases[k])
	}
	return nil
}
