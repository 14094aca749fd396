package normalize

import (
	"sort"
	"time"
)

// localTransition describes how a wall-clock reading maps onto a zone.
type localTransition int

const (
	wallUnique    localTransition = iota // exactly one instant
	wallGap                              // no instant: skipped by a forward transition
	wallAmbiguous                        // several instants: repeated by a backward transition
)

// Offsets are sampled this far either side of the wall time, which is wider
// than any real transition.
var offsetSamples = []time.Duration{-24 * time.Hour, 0, 24 * time.Hour}

// wallInstants returns every instant at which loc shows the wall clock of
// wall, earliest first.
func wallInstants(wall time.Time, loc *time.Location) []time.Time {
	y, mo, d := wall.Date()
	h, mi, s := wall.Clock()
	asUTC := time.Date(y, mo, d, h, mi, s, wall.Nanosecond(), time.UTC)

	seen := make(map[int]bool, len(offsetSamples))
	var instants []time.Time
	for _, sample := range offsetSamples {
		_, offset := asUTC.Add(sample).In(loc).Zone()
		if seen[offset] {
			continue
		}
		seen[offset] = true

		candidate := asUTC.Add(-time.Duration(offset) * time.Second)
		if _, actual := candidate.In(loc).Zone(); actual == offset {
			instants = append(instants, candidate)
		}
	}

	sort.Slice(instants, func(i, j int) bool { return instants[i].Before(instants[j]) })
	return instants
}

func classify(instants []time.Time) localTransition {
	switch len(instants) {
	case 0:
		return wallGap
	case 1:
		return wallUnique
	default:
		return wallAmbiguous
	}
}
