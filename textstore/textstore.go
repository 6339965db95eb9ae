// Package textstore persists loads and aggregate datasets as plain text files, one
// value per line, in the layout downstream training tools read.
//
// Generated loads are stored as
//
//	signal_{i}_val.txt    one %.7f value per line
//	signal_{i}_label.txt  one 0/1 label per line
//	signal_{i}_prop.txt   harmonic properties, one block of three rows per state
//
// and named (measured) loads as val_{name}.txt and label_{name}.txt. A bare
// {name}.txt is read when val_{name}.txt is missing. Aggregates are written to
// signal_sum_val.txt, signal_sum_label.txt (time-major, comma separated) and, when
// the dataset has one, the manifest signal_sum_loads.txt.
package textstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/synaptecltd/loadsynth"
)

// File names of the aggregate dataset.
const (
	SumValuesFile   = "signal_sum_val.txt"
	SumLabelsFile   = "signal_sum_label.txt"
	SumManifestFile = "signal_sum_loads.txt"
)

// fileMode is the permission of every written file.
const fileMode fs.FileMode = 0o644

const (
	manifestHeader = "Signal made from the following loads:"
	multiStateLine = "Multi State Load"
	statePrefix    = "State no."
)

// Store reads and writes load records and datasets under a single directory. When
// names are given, load index i addresses the named load names[i]; otherwise it
// addresses the generated load signal_{i}.
type Store struct {
	dir   string
	names []string
}

// New returns a store rooted at dir, creating the directory if needed.
func New(dir string, names ...string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, names: names}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// files returns the value and label file names of load index, and its property file
// name when the load is a generated one.
func (s *Store) files(index int) (val, label, prop string, err error) {
	if s.names != nil {
		if index < 0 || index >= len(s.names) {
			return "", "", "", fmt.Errorf("load %d outside the %d named loads: %w", index, len(s.names), loadsynth.ErrDataUnavailable)
		}
		name := s.names[index]
		return "val_" + name + ".txt", "label_" + name + ".txt", "", nil
	}
	prefix := "signal_" + strconv.Itoa(index)
	return prefix + "_val.txt", prefix + "_label.txt", prefix + "_prop.txt", nil
}

// Get implements loadsynth.LoadReader. A load without a label file is returned with
// a nil Label; a load without a value file is unavailable.
func (s *Store) Get(index int) (*loadsynth.LoadRecord, error) {
	valFile, labelFile, propFile, err := s.files(index)
	if err != nil {
		return nil, err
	}

	rec := &loadsynth.LoadRecord{Index: index, Name: strings.TrimSuffix(valFile, "_val.txt")}
	if s.names != nil {
		rec.Name = s.names[index]
	}

	rec.Waveform, err = readFile(s.path(valFile), parseValues)
	if errors.Is(err, loadsynth.ErrDataUnavailable) && s.names != nil {
		// measured loads exported by other tools may be bare {name}.txt files
		rec.Waveform, err = readFile(s.path(rec.Name+".txt"), parseValues)
	}
	if err != nil {
		return nil, err
	}

	rec.Label, err = readFile(s.path(labelFile), parseLabels)
	if err != nil && !errors.Is(err, loadsynth.ErrDataUnavailable) {
		return nil, err
	}

	if propFile != "" {
		rec.Profiles, err = readFile(s.path(propFile), parseProfiles)
		if err != nil && !errors.Is(err, loadsynth.ErrDataUnavailable) {
			return nil, err
		}
	}
	return rec, nil
}

// Len implements loadsynth.Counter: the number of named loads, or the number of
// generated value files in the directory.
func (s *Store) Len() int {
	if s.names != nil {
		return len(s.names)
	}
	matches, _ := filepath.Glob(s.path("signal_*_val.txt"))
	n := 0
	for _, m := range matches {
		idx := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "signal_"), "_val.txt")
		if _, err := strconv.Atoi(idx); err == nil {
			n++
		}
	}
	return n
}

// Put implements loadsynth.LoadWriter. Each file is written to a temporary file and
// renamed into place.
func (s *Store) Put(rec *loadsynth.LoadRecord) error {
	valFile, labelFile, propFile, err := s.files(rec.Index)
	if err != nil {
		return err
	}

	if err := s.writeFile(valFile, func(w *bufio.Writer) error {
		return writeValues(w, rec.Waveform)
	}); err != nil {
		return err
	}
	if rec.Label != nil {
		if err := s.writeFile(labelFile, func(w *bufio.Writer) error {
			return writeLabels(w, rec.Label)
		}); err != nil {
			return err
		}
	}
	if propFile != "" && len(rec.Profiles) > 0 {
		if err := s.writeFile(propFile, func(w *bufio.Writer) error {
			return writeProfiles(w, rec.Profiles)
		}); err != nil {
			return err
		}
	}
	return nil
}

// PutDataset implements loadsynth.DatasetWriter.
func (s *Store) PutDataset(ds loadsynth.Dataset) error {
	if err := s.writeFile(SumValuesFile, func(w *bufio.Writer) error {
		return writeValues(w, ds.Values())
	}); err != nil {
		return err
	}
	if err := s.writeFile(SumLabelsFile, func(w *bufio.Writer) error {
		return writeLabelRows(w, ds.TimeMajorLabels())
	}); err != nil {
		return err
	}

	manifest := ds.Manifest()
	if manifest == nil {
		return nil
	}
	return s.writeFile(SumManifestFile, func(w *bufio.Writer) error {
		if _, err := fmt.Fprintln(w, manifestHeader); err != nil {
			return err
		}
		for _, name := range manifest {
			if _, err := fmt.Fprintln(w, name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stage implements loadsynth.Stager. Staged files are written to a hidden directory
// inside the store and only moved into place by Commit.
func (s *Store) Stage() (loadsynth.Stage, error) {
	dir, err := os.MkdirTemp(s.dir, ".stage-*")
	if err != nil {
		return nil, err
	}
	return &stage{Store: &Store{dir: dir, names: s.names}, target: s.dir}, nil
}

type stage struct {
	*Store
	target string
}

// Commit renames every staged file into the store directory.
func (st *stage) Commit() error {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Rename(filepath.Join(st.dir, e.Name()), filepath.Join(st.target, e.Name())); err != nil {
			return fmt.Errorf("commit %s: %w", e.Name(), err)
		}
	}
	return os.Remove(st.dir)
}

// Discard removes the staged files.
func (st *stage) Discard() error {
	return os.RemoveAll(st.dir)
}

// LoadSum reads an aggregate dataset back: the flattened values and the time-major
// label rows.
func (s *Store) LoadSum() ([]float64, [][]int, error) {
	values, err := readFile(s.path(SumValuesFile), parseValues)
	if err != nil {
		return nil, nil, err
	}
	labels, err := readFile(s.path(SumLabelsFile), parseLabelRows)
	if err != nil {
		return nil, nil, err
	}
	if len(labels) != len(values) {
		return nil, nil, fmt.Errorf("aggregate has %d values and %d label rows: %w", len(values), len(labels), loadsynth.ErrDataUnavailable)
	}
	return values, labels, nil
}

// LoadManifest reads the names of the loads an aggregate was built from.
func (s *Store) LoadManifest() ([]string, error) {
	return readFile(s.path(SumManifestFile), func(r io.Reader) ([]string, error) {
		var names []string
		err := scanLines(r, func(line string) error {
			if line != manifestHeader {
				names = append(names, line)
			}
			return nil
		})
		return names, err
	})
}

// LoadProfiles reads the harmonic profiles of generated load index.
func (s *Store) LoadProfiles(index int) ([]loadsynth.HarmonicProfile, error) {
	_, _, propFile, err := s.files(index)
	if err != nil {
		return nil, err
	}
	if propFile == "" {
		return nil, fmt.Errorf("named load %d has no property file: %w", index, loadsynth.ErrDataUnavailable)
	}
	return readFile(s.path(propFile), parseProfiles)
}

// writeFile writes name through a temporary file in the store directory, so readers
// only ever see a complete file.
func (s *Store) writeFile(name string, fill func(w *bufio.Writer) error) (err error) {
	tmp, err := os.CreateTemp(s.dir, name+".tmp*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = fill(w); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err = tmp.Chmod(fileMode); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), s.path(name))
}

// readFile opens path and parses it, mapping a missing file to ErrDataUnavailable.
func readFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return zero, fmt.Errorf("%s: %w", filepath.Base(path), loadsynth.ErrDataUnavailable)
	}
	if err != nil {
		return zero, err
	}
	defer f.Close()

	out, err := parse(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}

func writeValues(w *bufio.Writer, values []float64) error {
	buf := make([]byte, 0, 32)
	for _, v := range values {
		buf = strconv.AppendFloat(buf[:0], v, 'f', 7, 64)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func writeLabels(w *bufio.Writer, labels []int) error {
	for _, l := range labels {
		if _, err := w.WriteString(strconv.Itoa(l) + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func writeLabelRows(w *bufio.Writer, rows [][]int) error {
	for _, row := range rows {
		fields := make([]string, len(row))
		for j, l := range row {
			fields[j] = strconv.Itoa(l)
		}
		if _, err := w.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// writeProfiles writes one block per state: a "State no.k" line followed by the
// frequencies, amplitudes and phases rows. Loads with several states get a header.
func writeProfiles(w *bufio.Writer, profiles []loadsynth.HarmonicProfile) error {
	if len(profiles) > 1 {
		if _, err := fmt.Fprintln(w, multiStateLine); err != nil {
			return err
		}
	}
	for k, p := range profiles {
		amplitudes := make([]float64, len(p.Amplitudes))
		for i, a := range p.Amplitudes {
			amplitudes[i] = float64(a)
		}
		if _, err := fmt.Fprintf(w, "%s%d\n", statePrefix, k+1); err != nil {
			return err
		}
		for _, row := range [][]float64{p.Frequencies, amplitudes, p.Phases} {
			fields := make([]string, len(row))
			for i, v := range row {
				fields[i] = strconv.FormatFloat(v, 'f', 3, 64)
			}
			if _, err := w.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

// scanLines calls fn for every non-blank line with surrounding space trimmed.
func scanLines(r io.Reader, fn func(line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func parseValues(r io.Reader) ([]float64, error) {
	var out []float64
	err := scanLines(r, func(line string) error {
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

func parseLabel(field string) (int, error) {
	if l, err := strconv.Atoi(field); err == nil {
		return l, nil
	}
	// measured label files may hold 0.0/1.0
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, err
	}
	return int(math.Round(v)), nil
}

func parseLabels(r io.Reader) ([]int, error) {
	var out []int
	err := scanLines(r, func(line string) error {
		l, err := parseLabel(line)
		if err != nil {
			return err
		}
		out = append(out, l)
		return nil
	})
	return out, err
}

func parseLabelRows(r io.Reader) ([][]int, error) {
	var out [][]int
	err := scanLines(r, func(line string) error {
		fields := strings.Split(line, ",")
		row := make([]int, len(fields))
		for j, f := range fields {
			l, err := parseLabel(strings.TrimSpace(f))
			if err != nil {
				return err
			}
			row[j] = l
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

func parseFloatRow(line string) ([]float64, error) {
	fields := strings.Split(line, ",")
	row := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func parseProfiles(r io.Reader) ([]loadsynth.HarmonicProfile, error) {
	var (
		profiles []loadsynth.HarmonicProfile
		rows     [][]float64
	)
	flush := func() error {
		if rows == nil {
			return nil
		}
		if len(rows) != 3 {
			return fmt.Errorf("state %d has %d property rows, expected 3: %w", len(profiles)+1, len(rows), loadsynth.ErrDataUnavailable)
		}
		p := loadsynth.HarmonicProfile{Frequencies: rows[0], Phases: rows[2]}
		for _, a := range rows[1] {
			p.Amplitudes = append(p.Amplitudes, int(math.Round(a)))
		}
		profiles = append(profiles, p)
		rows = nil
		return nil
	}

	err := scanLines(r, func(line string) error {
		switch {
		case line == multiStateLine:
			return nil
		case strings.HasPrefix(line, statePrefix):
			if err := flush(); err != nil {
				return err
			}
			rows = [][]float64{}
			return nil
		}
		if rows == nil {
			return fmt.Errorf("property row before any state line: %w", loadsynth.ErrDataUnavailable)
		}
		row, err := parseFloatRow(line)
		if err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return profiles, nil
}
