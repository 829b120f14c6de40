// Package dartboard maps raw segment codes reported by the board into
// dartboard segments and scores.
package dartboard

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// PlayerChangeCode is the reserved pseudo-segment sent when the player-change
// button on the board is pressed. It carries no score.
const PlayerChangeCode byte = 0x54

// Segment describes one dartboard area. Target and Multiplier are nil for
// unknown codes and for the player-change pseudo-segment.
type Segment struct {
	Target     *int
	Multiplier *int
	Name       string
}

// Known reports whether the segment is a fully specified scoring area.
func (s Segment) Known() bool {
	return s.Target != nil && s.Multiplier != nil
}

// TableEntry is the serializable form of a Segment.
type TableEntry struct {
	Target     *int   `json:"target"`
	Multiplier *int   `json:"multiplier"`
	Name       string `json:"name"`
}

// Table is a calibration table keyed by hex-formatted segment codes ("0x2a").
type Table map[string]TableEntry

// Mapper translates segment codes through a calibration table.
//
// The table is held as an immutable snapshot and swapped as a whole on every
// update, so concurrent readers never observe a partially applied change. The
// byte-range layout of the default table is reverse-engineered from real
// hardware and may differ across board firmware revisions; keep it calibrated
// through Set/Import rather than relying on it blindly.
type Mapper struct {
	table  atomic.Pointer[map[byte]Segment]
	logger *logrus.Logger
}

// NewMapper creates a Mapper preloaded with the default calibration table.
func NewMapper(logger *logrus.Logger) *Mapper {
	if logger == nil {
		logger = logrus.New()
	}

	m := &Mapper{logger: logger}
	t := defaultTable()
	m.table.Store(&t)
	return m
}

// defaultTable builds the built-in calibration, verified against a real
// DARTSLIVE HOME board:
//
//	0x01-0x14 inner singles, 0x15-0x28 outer singles,
//	0x29-0x3c doubles, 0x3d-0x50 triples,
//	0x51 outer bull, 0x52 inner bull, 0x54 player change.
func defaultTable() map[byte]Segment {
	t := make(map[byte]Segment, 0x55)

	for n := 1; n <= 20; n++ {
		t[byte(n)] = segment(n, 1, fmt.Sprintf("S%d (inner)", n))
		t[byte(0x14+n)] = segment(n, 1, fmt.Sprintf("S%d (outer)", n))
		t[byte(0x28+n)] = segment(n, 2, fmt.Sprintf("D%d", n))
		t[byte(0x3c+n)] = segment(n, 3, fmt.Sprintf("T%d", n))
	}

	t[0x51] = segment(25, 1, "outer bull")
	t[0x52] = segment(25, 2, "inner bull")
	t[PlayerChangeCode] = Segment{Name: "player change"}

	return t
}

func segment(target, multiplier int, name string) Segment {
	return Segment{Target: &target, Multiplier: &multiplier, Name: name}
}

// Lookup resolves a segment code. Unknown codes never fail; they come back
// with nil target/multiplier and a diagnostic name carrying the raw code.
func (m *Mapper) Lookup(code byte) Segment {
	t := *m.table.Load()
	if s, ok := t[code]; ok {
		return s
	}

	m.logger.WithField("code", fmt.Sprintf("0x%02x", code)).Warn("Unknown segment code")
	return Segment{Name: fmt.Sprintf("unknown(0x%02x)", code)}
}

// Score computes target*multiplier for the code. The second return is false
// for unknown codes and the player-change pseudo-segment.
func (m *Mapper) Score(code byte) (int, bool) {
	s := m.Lookup(code)
	if !s.Known() {
		return 0, false
	}
	return *s.Target * *s.Multiplier, true
}

// Set updates a single calibration entry. The change applies to subsequent
// Lookup calls only; already decoded throws are immutable.
func (m *Mapper) Set(code byte, target, multiplier int, name string) {
	m.swap(func(t map[byte]Segment) {
		t[code] = segment(target, multiplier, name)
	})

	m.logger.WithFields(logrus.Fields{
		"code": fmt.Sprintf("0x%02x", code),
		"name": name,
	}).Info("Calibration entry updated")
}

// Export returns a serializable copy of the current calibration table.
func (m *Mapper) Export() Table {
	t := *m.table.Load()

	out := make(Table, len(t))
	for code, s := range t {
		out[fmt.Sprintf("0x%02x", code)] = TableEntry{
			Target:     s.Target,
			Multiplier: s.Multiplier,
			Name:       s.Name,
		}
	}
	return out
}

// Import merges a calibration table into the current one. All entries are
// validated first and applied in a single snapshot swap, so readers see either
// the old table or the fully imported one.
func (m *Mapper) Import(in Table) error {
	parsed := make(map[byte]Segment, len(in))
	for key, e := range in {
		code, err := strconv.ParseUint(key, 0, 8)
		if err != nil {
			return fmt.Errorf("invalid segment code %q: %w", key, err)
		}
		parsed[byte(code)] = Segment{Target: e.Target, Multiplier: e.Multiplier, Name: e.Name}
	}

	m.swap(func(t map[byte]Segment) {
		for code, s := range parsed {
			t[code] = s
		}
	})

	m.logger.WithField("entries", len(parsed)).Info("Calibration table imported")
	return nil
}

// swap applies mutate to a copy of the current table and publishes the copy.
func (m *Mapper) swap(mutate func(map[byte]Segment)) {
	old := *m.table.Load()
	next := make(map[byte]Segment, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	mutate(next)
	m.table.Store(&next)
}
