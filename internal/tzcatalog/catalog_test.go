package tzcatalog

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedCatalog_Resolve(t *testing.T) {
	catalog := NewStatic(
		"Europe/London",
		"America/New_York",
		"America/Argentina/Buenos_Aires",
		"Asia/Kolkata",
		"UTC",
	)

	tests := []struct {
		label   string
		want    string
		wantErr bool
	}{
		{label: "America/New_York", want: "America/New_York"},
		{label: "  Europe/London  ", want: "Europe/London"},
		{label: "new_york", want: "America/New_York"},
		{label: "LONDON", want: "Europe/London"},
		{label: "kolkata", want: "Asia/Kolkata"},
		// Both America/* names contain "america"; lexicographic order decides.
		{label: "america", want: "America/Argentina/Buenos_Aires"},
		{label: "Mars/SpaceTime", wantErr: true},
		{label: "Local", wantErr: true},
		{label: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			loc, err := catalog.Resolve(tt.label)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnresolvable))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc.String())
		})
	}
}

func TestOrderedCatalog_ExactLookupBypassesCatalog(t *testing.T) {
	// Exact names come from the timezone database even when the scan list is empty.
	catalog := NewStatic()
	loc, err := catalog.Resolve("Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestOrderedCatalog_InjectedLoader(t *testing.T) {
	calls := 0
	loader := func(name string) (*time.Location, error) {
		calls++
		if name == "Test/Zone" {
			return time.FixedZone("Test/Zone", 3600), nil
		}
		return nil, errors.New("unknown")
	}
	catalog := New([]string{"Test/Zone", "Other/Zone"}, loader)

	loc, err := catalog.Resolve("test")
	require.NoError(t, err)
	assert.Equal(t, "Test/Zone", loc.String())

	callsAfterFirst := calls
	_, err = catalog.Resolve("test")
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, calls, "second resolution is memoized")

	_, err = catalog.Resolve("other")
	assert.ErrorIs(t, err, ErrUnresolvable, "matched name that fails to load is unresolvable")
}

func TestNew_SortsAndDeduplicates(t *testing.T) {
	catalog := New([]string{"b/Zone", "a/Zone", "b/Zone", " "}, nil)
	assert.Equal(t, []string{"a/Zone", "b/Zone"}, catalog.Names())
}
