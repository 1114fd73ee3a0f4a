package codec

import (
	"fmt"
	"slices"
	"sort"
)

// Curve is the output voltage of one PSG voice for each of its 16 volume
// levels, normalised so that level 15 is 1. Each step is 3dB.
var Curve = [16]float64{
	0,
	0.0078125,
	1.104854346e-2,
	0.015625,
	2.209708691e-2,
	0.03125,
	4.419417382e-2,
	0.0625,
	8.838834765e-2,
	0.125,
	0.1767766953,
	0.25,
	0.3535533906,
	0.5,
	0.7071067812,
	1,
}

// MaxChannels is the number of voices on the PSG.
const MaxChannels = 3

// Entry is one reachable output level: the normalised analog value and the
// per-voice levels that produce it. Only the first Channels levels of the
// owning table are meaningful.
type Entry struct {
	Value  float64
	Levels [MaxChannels]uint8
}

// Table lists every combination of levels for a channel count, sorted by
// ascending value. It is immutable once built.
type Table struct {
	channels int
	entries  []Entry
}

// NewTable enumerates all 16^channels level combinations, first channel
// most significant, and sorts them by value. Equal values keep their
// enumeration order.
func NewTable(channels int) (*Table, error) {
	if channels < 1 || channels > MaxChannels {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	n := 1
	for i := 0; i < channels; i++ {
		n *= len(Curve)
	}

	entries := make([]Entry, n)
	for i := range entries {
		var e Entry
		idx := i
		for ch := channels - 1; ch >= 0; ch-- {
			e.Levels[ch] = uint8(idx % len(Curve))
			idx /= len(Curve)
		}
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += Curve[e.Levels[ch]]
		}
		e.Value = sum / float64(channels)
		entries[i] = e
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		}
		return 0
	})

	return &Table{channels: channels, entries: entries}, nil
}

func (t *Table) Channels() int { return t.channels }
func (t *Table) Len() int      { return len(t.entries) }
func (t *Table) At(i int) Entry {
	return t.entries[i]
}

// Min returns the lowest-valued entry.
func (t *Table) Min() Entry { return t.entries[0] }

// Max returns the highest-valued entry.
func (t *Table) Max() Entry { return t.entries[len(t.entries)-1] }

// Search returns the index of the entry nearest to v. The lower bound and
// its left neighbour are the only candidates; on equal distance the lower
// index wins, so a run of duplicate values always resolves to its first
// entry.
func (t *Table) Search(v float64) int {
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Value >= v
	})
	if i == len(t.entries) {
		return i - 1
	}
	if i == 0 {
		return 0
	}
	if v-t.entries[i-1].Value > t.entries[i].Value-v {
		return i
	}
	i--
	for i > 0 && t.entries[i-1].Value == t.entries[i].Value {
		i--
	}
	return i
}
