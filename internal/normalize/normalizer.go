// Package normalize turns free-form timestamp strings and timezone labels into UTC instants.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/rs/zerolog"
)

// ZoneResolver maps a timezone label to a location.
type ZoneResolver interface {
	Resolve(label string) (*time.Location, error)
}

// Normalizer converts raw timestamps to UTC. It never returns an error to the
// caller: anything it cannot interpret is reported as unparseable and logged.
type Normalizer struct {
	zones ZoneResolver
	log   zerolog.Logger
}

// New creates a Normalizer that resolves labels through zones and logs to log.
func New(zones ZoneResolver, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		zones: zones,
		log:   log.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize returns the UTC instant for rawTimestamp read in the zone named by
// rawTimezone, and false when the timestamp is missing, unparseable, or its
// zone cannot be resolved.
func (n *Normalizer) Normalize(rawTimestamp, rawTimezone string) (time.Time, bool) {
	ts := strings.TrimSpace(rawTimestamp)
	if domain.IsMissingLabel(ts) {
		return time.Time{}, false
	}

	instant, err := n.normalize(ts, rawTimezone)
	if err != nil {
		n.log.Warn().
			Err(err).
			Str("timestamp", rawTimestamp).
			Str("timezone", rawTimezone).
			Msg("Failed to normalize timestamp")
		return time.Time{}, false
	}
	return instant, true
}

func (n *Normalizer) normalize(ts, rawTimezone string) (time.Time, error) {
	parsed, naive, err := parseFreeForm(ts)
	if err != nil {
		return time.Time{}, err
	}

	loc, err := n.location(rawTimezone)
	if err != nil {
		return time.Time{}, err
	}

	if !naive {
		return parsed.UTC(), nil
	}

	local, err := n.localize(parsed, loc, ts)
	if err != nil {
		return time.Time{}, err
	}
	return local.UTC(), nil
}

func (n *Normalizer) location(rawTimezone string) (*time.Location, error) {
	if domain.IsMissingLabel(rawTimezone) {
		return time.UTC, nil
	}
	if n.zones == nil {
		return nil, fmt.Errorf("no zone resolver configured for %q", rawTimezone)
	}
	loc, err := n.zones.Resolve(rawTimezone)
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}
	return loc, nil
}

// localize pins a zone-less wall clock reading to loc. A reading that falls in
// a spring-forward gap is moved one hour later; a reading repeated by a
// fall-back transition takes its first occurrence.
func (n *Normalizer) localize(wall time.Time, loc *time.Location, raw string) (time.Time, error) {
	instants := wallInstants(wall, loc)

	switch classify(instants) {
	case wallUnique:
		return instants[0], nil

	case wallAmbiguous:
		n.log.Warn().
			Str("timestamp", raw).
			Str("zone", loc.String()).
			Msg("Fall back ambiguity: using first occurrence")
		return instants[0], nil

	default:
		n.log.Warn().
			Str("timestamp", raw).
			Str("zone", loc.String()).
			Msg("Spring forward gap: shifting forward one hour")
		shifted := wallInstants(wall.Add(time.Hour), loc)
		if len(shifted) == 0 {
			return time.Time{}, fmt.Errorf("local time %s does not exist in %s", wall.Format("2006-01-02 15:04:05"), loc)
		}
		return shifted[0], nil
	}
}
