package loadsynth

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// LoadRecord is one labelled load. Records are created once and then only read.
type LoadRecord struct {
	Index    int               // load index; generated loads count from 1
	Name     string            // human readable name, e.g. "signal_3" or a measured load name
	Profiles []HarmonicProfile // one per state; empty for measured loads
	Waveform []float64         // masked current waveform
	Label    []int             // activity mask, nil when the store holds none
}

// States returns the number of states the load was generated with.
func (r *LoadRecord) States() int {
	return len(r.Profiles)
}

// Clone returns a deep copy of the record.
func (r *LoadRecord) Clone() *LoadRecord {
	out := &LoadRecord{
		Index:    r.Index,
		Name:     r.Name,
		Waveform: slices.Clone(r.Waveform),
		Label:    slices.Clone(r.Label),
	}
	for _, p := range r.Profiles {
		out.Profiles = append(out.Profiles, HarmonicProfile{
			Frequencies: slices.Clone(p.Frequencies),
			Phases:      slices.Clone(p.Phases),
			Amplitudes:  slices.Clone(p.Amplitudes),
		})
	}
	return out
}

// LoadReader looks up a stored load by index. Implementations return an error
// wrapping ErrDataUnavailable when the load does not exist.
type LoadReader interface {
	Get(index int) (*LoadRecord, error)
}

// LoadWriter stores a load record.
type LoadWriter interface {
	Put(rec *LoadRecord) error
}

// LoadStore is a key-addressed store of load records.
type LoadStore interface {
	LoadReader
	LoadWriter
}

// Counter is implemented by readers that know how many loads they hold.
type Counter interface {
	Len() int
}

// Dataset is an aggregate signal ready to be persisted or exported.
type Dataset interface {
	ID() string               // run identifier
	Values() []float64        // the flattened summed waveform
	TimeMajorLabels() [][]int // one row per sample, one column per load
	Manifest() []string       // names of the constituent loads, nil when not applicable
}

// DatasetWriter persists or exports an aggregate dataset.
type DatasetWriter interface {
	PutDataset(ds Dataset) error
}

// Stage buffers load and dataset writes until Commit applies them. Discard drops
// whatever has not been committed.
type Stage interface {
	LoadWriter
	DatasetWriter
	Commit() error
	Discard() error
}

// Stager is implemented by stores that can defer their writes to a Stage.
type Stager interface {
	Stage() (Stage, error)
}

// DatasetWriters fans a dataset out to several writers. Writers implementing Stager
// are committed only after every other writer has succeeded, so a failure leaves
// them untouched. Other writers are called in order and stop at the first error.
type DatasetWriters []DatasetWriter

// PutDataset implements DatasetWriter.
func (w DatasetWriters) PutDataset(ds Dataset) error {
	return writeAll(nil, nil, ds, flatten(w))
}

// flatten expands nested DatasetWriters and drops nil writers.
func flatten(w DatasetWriter) []DatasetWriter {
	ws, ok := w.(DatasetWriters)
	if !ok {
		if w == nil {
			return nil
		}
		return []DatasetWriter{w}
	}
	var out []DatasetWriter
	for _, dw := range ws {
		out = append(out, flatten(dw)...)
	}
	return out
}

// writeAll stores records through loads and ds through every sink. Stageable
// destinations are written to stages first; the stages are committed once all
// writes have succeeded and discarded otherwise.
func writeAll(records []*LoadRecord, loads LoadWriter, ds Dataset, sinks []DatasetWriter) (err error) {
	var stages []Stage
	defer func() {
		if err == nil {
			return
		}
		for _, st := range stages {
			if derr := st.Discard(); derr != nil {
				err = errors.Join(err, derr)
			}
		}
	}()

	staged := func(w any) (Stage, error) {
		s, ok := w.(Stager)
		if !ok {
			return nil, nil
		}
		st, err := s.Stage()
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
		return st, nil
	}

	if loads != nil && len(records) > 0 {
		st, err := staged(loads)
		if err != nil {
			return err
		}
		if st != nil {
			loads = st
		}
		for _, rec := range records {
			if err := loads.Put(rec); err != nil {
				return fmt.Errorf("store load %d: %w", rec.Index, err)
			}
		}
	}

	var direct []DatasetWriter
	for _, dw := range sinks {
		st, err := staged(dw)
		if err != nil {
			return err
		}
		if st == nil {
			direct = append(direct, dw)
			continue
		}
		if err := st.PutDataset(ds); err != nil {
			return fmt.Errorf("store dataset %s: %w", ds.ID(), err)
		}
	}
	for _, dw := range direct {
		if err := dw.PutDataset(ds); err != nil {
			return fmt.Errorf("store dataset %s: %w", ds.ID(), err)
		}
	}

	for i, st := range stages {
		if err := st.Commit(); err != nil {
			stages = stages[i:]
			return fmt.Errorf("commit: %w", err)
		}
	}
	return nil
}

// MemoryStore keeps load records and datasets in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[int]*LoadRecord
	datasets []Dataset
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int]*LoadRecord)}
}

// Get implements LoadReader. The returned record is a copy.
func (s *MemoryStore) Get(index int) (*LoadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[index]
	if !ok {
		return nil, fmt.Errorf("load %d: %w", index, ErrDataUnavailable)
	}
	return rec.Clone(), nil
}

// Put implements LoadWriter. The store keeps its own copy of the record.
func (s *MemoryStore) Put(rec *LoadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Index] = rec.Clone()
	return nil
}

// Len implements Counter.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// PutDataset implements DatasetWriter.
func (s *MemoryStore) PutDataset(ds Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets = append(s.datasets, ds)
	return nil
}

// Datasets returns the datasets written so far.
func (s *MemoryStore) Datasets() []Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.datasets)
}

// Stage implements Stager.
func (s *MemoryStore) Stage() (Stage, error) {
	return &memoryStage{store: s}, nil
}

type memoryStage struct {
	store    *MemoryStore
	records  []*LoadRecord
	datasets []Dataset
}

func (m *memoryStage) Put(rec *LoadRecord) error {
	m.records = append(m.records, rec.Clone())
	return nil
}

func (m *memoryStage) PutDataset(ds Dataset) error {
	m.datasets = append(m.datasets, ds)
	return nil
}

func (m *memoryStage) Commit() error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range m.records {
		s.records[rec.Index] = rec
	}
	s.datasets = append(s.datasets, m.datasets...)
	m.records, m.datasets = nil, nil
	return nil
}

func (m *memoryStage) Discard() error {
	m.records, m.datasets = nil, nil
	return nil
}
