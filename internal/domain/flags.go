package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Flag is a named data-quality issue recorded on a transaction.
// The string values are read back by the quality report and must stay stable.
type Flag string

const (
	FlagInvalidDateFormat  Flag = "invalid_date_format"
	FlagMissingTimezone    Flag = "missing_timezone"
	FlagDuplicateCandidate Flag = "duplicate_candidate"
	FlagOutOfOrder         Flag = "out_of_order"
)

// AllFlags lists every known flag in report order.
var AllFlags = []Flag{
	FlagInvalidDateFormat,
	FlagMissingTimezone,
	FlagDuplicateCandidate,
	FlagOutOfOrder,
}

// FlagSet is an insertion-ordered set of flags. Flags are only ever added;
// adding a flag that is already present is a no-op.
// The zero value is an empty set ready to use.
type FlagSet struct {
	flags []Flag
}

// NewFlagSet returns a set holding the given flags, duplicates dropped.
func NewFlagSet(flags ...Flag) FlagSet {
	var s FlagSet
	for _, f := range flags {
		s.Add(f)
	}
	return s
}

// Add inserts f and reports whether it was newly added.
func (s *FlagSet) Add(f Flag) bool {
	if f == "" || s.Has(f) {
		return false
	}
	s.flags = append(s.flags, f)
	return true
}

// Merge adds every flag of other to s.
func (s *FlagSet) Merge(other FlagSet) {
	for _, f := range other.flags {
		s.Add(f)
	}
}

// Has reports whether f is in the set.
func (s FlagSet) Has(f Flag) bool {
	for _, existing := range s.flags {
		if existing == f {
			return true
		}
	}
	return false
}

// Len returns the number of flags.
func (s FlagSet) Len() int { return len(s.flags) }

// IsEmpty reports whether no flag has been recorded.
func (s FlagSet) IsEmpty() bool { return len(s.flags) == 0 }

// List returns a copy of the flags in insertion order.
func (s FlagSet) List() []Flag {
	out := make([]Flag, len(s.flags))
	copy(out, s.flags)
	return out
}

type flagDocument struct {
	Issues []Flag `json:"issues,omitempty"`
}

// MarshalJSON encodes the set as {"issues":[...]}. An empty set encodes as {}
// so that "no issues" stays distinguishable from an explicit empty list.
func (s FlagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(flagDocument{Issues: s.flags})
}

// UnmarshalJSON accepts the document form, a bare list of tags, or null.
func (s *FlagSet) UnmarshalJSON(data []byte) error {
	parsed, err := decodeFlags(data)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// String returns the stored document form.
func (s FlagSet) String() string {
	b, _ := s.MarshalJSON()
	return string(b)
}

// ParseFlagSet decodes a flag document as persisted by the store.
// An empty string is treated as an empty set.
func ParseFlagSet(doc string) (FlagSet, error) {
	if strings.TrimSpace(doc) == "" {
		return FlagSet{}, nil
	}
	return decodeFlags([]byte(doc))
}

func decodeFlags(data []byte) (FlagSet, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return FlagSet{}, nil
	}

	var tags []Flag
	switch data[0] {
	case '{':
		var doc flagDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return FlagSet{}, fmt.Errorf("decode flag document: %w", err)
		}
		tags = doc.Issues
	case '[':
		if err := json.Unmarshal(data, &tags); err != nil {
			return FlagSet{}, fmt.Errorf("decode flag list: %w", err)
		}
	default:
		return FlagSet{}, fmt.Errorf("decode flags: unexpected document %q", string(data))
	}

	return NewFlagSet(tags...), nil
}
