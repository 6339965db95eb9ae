package loadsynth

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/synaptecltd/loadsynth/mathfuncs"
)

// MaxRandomStates is the exclusive upper bound of a randomly drawn state count.
const MaxRandomStates = 5

// Generator synthesises labelled loads and composes them into aggregate datasets.
// All randomness comes from per-load PCG streams derived from a single seed, so a
// run is reproducible whatever order or concurrency the loads are built with.
type Generator struct {
	cfg    Config
	seed   uint64
	sin    SineFunc
	logger *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger used for run progress.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator validates the configuration and returns a generator for it. Options
// left at their zero value take their defaults. A zero Seed seeds from the clock.
func NewGenerator(cfg Config, opts ...Option) (*Generator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gen := &Generator{
		cfg:    cfg,
		seed:   cfg.Seed,
		sin:    math.Sin,
		logger: slog.Default(),
	}
	if gen.seed == 0 {
		gen.seed = uint64(time.Now().UnixNano())
	}
	if cfg.FastTrig {
		gen.sin = mathfuncs.FastSin
	}
	for _, opt := range opts {
		opt(gen)
	}

	return gen, nil
}

// Config returns a copy of the generator's configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// Seed returns the seed all load streams derive from.
func (g *Generator) Seed() uint64 {
	return g.seed
}

// stream returns the random stream of one load.
func (g *Generator) stream(index int) *rand.Rand {
	return rand.New(rand.NewPCG(g.seed, uint64(index)))
}

// BuildLoad generates load index with the given number of states. A states value of 0
// draws the count uniformly from [1, MaxRandomStates). The harmony count is drawn once
// and shared by every state; each state gets its own profile. The returned waveform is
// already multiplied by its activity label.
func (g *Generator) BuildLoad(index, states int) (*LoadRecord, error) {
	if states < 0 {
		return nil, fmt.Errorf("load %d: state count %d is negative: %w", index, states, ErrInvalidConfiguration)
	}

	r := g.stream(index)
	if states == 0 {
		states = 1 + r.IntN(MaxRandomStates-1)
	}

	harmonics, err := g.cfg.Harmonics.Draw(r)
	if err != nil {
		return nil, fmt.Errorf("load %d: %w", index, err)
	}

	grid := g.cfg.TimeGrid()
	profiles := make([]HarmonicProfile, states)
	waveforms := make([][]float64, states)
	for s := range profiles {
		profiles[s], err = NewHarmonicProfile(r, harmonics)
		if err != nil {
			return nil, fmt.Errorf("load %d state %d: %w", index, s, err)
		}
		waveforms[s] = SynthesizeWith(grid, profiles[s], g.sin)
	}

	seq, err := SequenceStates(r, waveforms, g.cfg.StateInterval)
	if err != nil {
		return nil, fmt.Errorf("load %d: %w", index, err)
	}

	label, err := g.cfg.Labelling.Label(r, index, len(seq.Waveform))
	if err != nil {
		return nil, fmt.Errorf("load %d: %w", index, err)
	}
	waveform, err := ApplyLabel(seq.Waveform, label)
	if err != nil {
		return nil, fmt.Errorf("load %d: %w", index, err)
	}

	g.logger.Debug("built load", "load", index, "states", states, "harmonics", harmonics,
		"samples", len(waveform), "labelling", g.cfg.Labelling.TypeAsString())

	return &LoadRecord{
		Index:    index,
		Name:     fmt.Sprintf("signal_%d", index),
		Profiles: profiles,
		Waveform: waveform,
		Label:    label,
	}, nil
}
