package tags

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTagBounds(t *testing.T) {
	for _, tc := range []struct {
		name     string
		antenna  uint16
		strength int8
		kind     ErrorKind
		ok       bool
	}{
		{name: "lowest", antenna: 1, strength: -80, ok: true},
		{name: "highest", antenna: 3, strength: 0, ok: true},
		{name: "antenna zero", antenna: 0, strength: -31, kind: IncorrectAntenna},
		{name: "antenna four", antenna: 4, strength: -31, kind: IncorrectAntenna},
		{name: "positive strength", antenna: 1, strength: 1, kind: IncorrectStrength},
		{name: "too weak", antenna: 1, strength: -81, kind: IncorrectStrength},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tag, err := NewTag("abc123", tc.antenna, tc.strength)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, Tag{ID: "abc123", Antenna: tc.antenna, Strength: tc.strength}, tag)
				return
			}
			var tagErr *TagError
			require.True(t, errors.As(err, &tagErr))
			assert.Equal(t, tc.kind, tagErr.Kind)
		})
	}
}

func TestFromReportUppercaseHexAndIncomplete(t *testing.T) {
	antenna := uint16(1)
	rssi := int8(-30)
	tag, err := FromReport([]byte{0xab, 0xc1, 0x23}, &antenna, &rssi)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", tag.ID)

	_, err = FromReport([]byte{0xab}, nil, &rssi)
	var tagErr *TagError
	require.True(t, errors.As(err, &tagErr))
	assert.Equal(t, Incomplete, tagErr.Kind)
}

func TestTagsMapKeepsStrongest(t *testing.T) {
	m := FromTags(
		Tag{ID: "abc123", Antenna: 2, Strength: -35},
		Tag{ID: "abc123", Antenna: 1, Strength: -30},
		Tag{ID: "abc123", Antenna: 1, Strength: -65},
	)
	require.Len(t, m, 1)
	assert.Equal(t, Tag{ID: "abc123", Antenna: 1, Strength: -30}, m["abc123"])
}

func TestTagsMapTieKeepsExisting(t *testing.T) {
	m := FromTags(
		Tag{ID: "abc123", Antenna: 2, Strength: -40},
		Tag{ID: "abc123", Antenna: 3, Strength: -40},
	)
	assert.Equal(t, uint16(2), m["abc123"].Antenna)
}

func TestMergeOrderIndependent(t *testing.T) {
	weak := Tag{ID: "X", Antenna: 1, Strength: -70}
	strong := Tag{ID: "X", Antenna: 3, Strength: -20}
	a := Merge(FromTags(weak), FromTags(strong))
	b := Merge(FromTags(strong), FromTags(weak))
	assert.Equal(t, strong, a["X"])
	assert.Equal(t, strong, b["X"])
}

func TestCloneDoesNotAlias(t *testing.T) {
	m := FromTags(Tag{ID: "A", Antenna: 1, Strength: -10})
	c := m.Clone()
	c["B"] = Tag{ID: "B", Antenna: 1, Strength: -10}
	assert.Len(t, m, 1)
}

func TestSortedStrongestFirst(t *testing.T) {
	m := FromTags(
		Tag{ID: "b", Antenna: 1, Strength: -50},
		Tag{ID: "a", Antenna: 1, Strength: -50},
		Tag{ID: "c", Antenna: 1, Strength: -10},
	)
	got := m.Sorted()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestAggregatorFinalizeKeepsStrongestRegardlessOfOrder(t *testing.T) {
	for _, order := range [][]int8{{-60, -20}, {-20, -60}} {
		agg := NewAggregator(3)
		for _, s := range order {
			agg.Merge(Tag{ID: "T", Antenna: 1, Strength: s})
		}
		snap := agg.Finalize()
		assert.Equal(t, int8(-20), snap["T"].Strength)
		assert.Empty(t, agg.Window())
	}
}

func TestAggregatorTagAgesOutAfterHistory(t *testing.T) {
	const k = 4
	agg := NewAggregator(k)
	agg.Merge(Tag{ID: "once", Antenna: 2, Strength: -40})

	for i := 0; i < k; i++ {
		snap := agg.Finalize()
		assert.Contains(t, snap, "once", "window %d", i)
	}
	assert.Equal(t, k, agg.HistoryLen())

	snap := agg.Finalize()
	assert.NotContains(t, snap, "once")
	assert.Equal(t, k, agg.HistoryLen())
}

func TestAggregatorSnapshotIsCopy(t *testing.T) {
	agg := NewAggregator(2)
	agg.Merge(Tag{ID: "A", Antenna: 1, Strength: -10})
	snap := agg.Finalize()
	snap["A"] = Tag{ID: "A", Antenna: 1, Strength: -79}
	assert.Equal(t, int8(-10), agg.Finalize()["A"].Strength)
}

func TestNewAggregatorDefaultsHistory(t *testing.T) {
	agg := NewAggregator(0)
	for i := 0; i < DefaultHistoryWindows+3; i++ {
		agg.Finalize()
	}
	assert.Equal(t, DefaultHistoryWindows, agg.HistoryLen())
}

func TestRandomTagsAreValid(t *testing.T) {
	for i := 0; i < 200; i++ {
		r := Random()
		_, err := NewTag(r.ID, r.Antenna, r.Strength)
		require.NoError(t, err)
		assert.Less(t, r.Strength, MaxStrength)
	}
	m := RandomMap(10)
	assert.NotEmpty(t, m)
	assert.LessOrEqual(t, len(m), len(mockIDs))
}
