// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scanmgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func queueOf(t *testing.T, ranges ...ScanRange) *ScanQueue {
	t.Helper()
	q := NewScanQueue()
	for _, r := range ranges {
		q.Insert(r)
	}
	return q
}

// TestInsertSplitsAtOverlap verifies the canonical boundary split: a
// higher-priority range dropped into the middle of a lower-priority one
// produces three ranges with the overlap raised.
func TestInsertSplitsAtOverlap(t *testing.T) {
	q := queueOf(t,
		ScanRange{Start: 100, End: 200, Priority: PriorityHistoric},
		ScanRange{Start: 150, End: 180, Priority: PriorityChainTip},
	)

	require.Equal(t, []ScanRange{
		{Start: 100, End: 150, Priority: PriorityHistoric},
		{Start: 150, End: 180, Priority: PriorityChainTip},
		{Start: 180, End: 200, Priority: PriorityHistoric},
	}, q.Ranges())
}

// TestInsertLowerPriorityDoesNotDemote verifies that overlapping inserts
// take the maximum priority in both directions.
func TestInsertLowerPriorityDoesNotDemote(t *testing.T) {
	q := queueOf(t,
		ScanRange{Start: 150, End: 180, Priority: PriorityChainTip},
		ScanRange{Start: 100, End: 200, Priority: PriorityHistoric},
	)

	require.Equal(t, []ScanRange{
		{Start: 100, End: 150, Priority: PriorityHistoric},
		{Start: 150, End: 180, Priority: PriorityChainTip},
		{Start: 180, End: 200, Priority: PriorityHistoric},
	}, q.Ranges())
}

// TestInsertCoalescesAdjacent verifies that height-adjacent equal-priority
// ranges collapse into one.
func TestInsertCoalescesAdjacent(t *testing.T) {
	q := queueOf(t,
		ScanRange{Start: 100, End: 150, Priority: PriorityHistoric},
		ScanRange{Start: 150, End: 200, Priority: PriorityHistoric},
	)
	require.Equal(t, []ScanRange{
		{Start: 100, End: 200, Priority: PriorityHistoric},
	}, q.Ranges())
}

// TestInsertSpanningMultipleRanges verifies an insert that overlaps several
// existing ranges and the gaps between them.
func TestInsertSpanningMultipleRanges(t *testing.T) {
	q := queueOf(t,
		ScanRange{Start: 100, End: 120, Priority: PriorityHistoric},
		ScanRange{Start: 140, End: 160, Priority: PriorityVerify},
		ScanRange{Start: 110, End: 150, Priority: PriorityChainTip},
	)

	require.Equal(t, []ScanRange{
		{Start: 100, End: 110, Priority: PriorityHistoric},
		{Start: 110, End: 140, Priority: PriorityChainTip},
		{Start: 140, End: 160, Priority: PriorityVerify},
	}, q.Ranges())
}

// TestIgnoredIsAFloor verifies ordinary inserts never lift ignored spans
// while InsertForce does.
func TestIgnoredIsAFloor(t *testing.T) {
	q := queueOf(t,
		ScanRange{Start: 100, End: 200, Priority: PriorityIgnored},
	)

	q.Insert(ScanRange{Start: 120, End: 140, Priority: PriorityVerify})
	require.Equal(t, []ScanRange{
		{Start: 100, End: 200, Priority: PriorityIgnored},
	}, q.Ranges())

	q.InsertForce(ScanRange{
		Start: 120, End: 140, Priority: PriorityVerify,
	})
	require.Equal(t, []ScanRange{
		{Start: 100, End: 120, Priority: PriorityIgnored},
		{Start: 120, End: 140, Priority: PriorityVerify},
		{Start: 140, End: 200, Priority: PriorityIgnored},
	}, q.Ranges())
}

// TestMarkScanned verifies completion lowers priority regardless of the
// previous value, and that a partial prefix leaves the remainder queued.
func TestMarkScanned(t *testing.T) {
	q := queueOf(t,
		ScanRange{Start: 100, End: 200, Priority: PriorityVerify},
	)

	q.MarkScanned(ScanRange{Start: 100, End: 150})
	require.Equal(t, []ScanRange{
		{Start: 100, End: 150, Priority: PriorityScanned},
		{Start: 150, End: 200, Priority: PriorityVerify},
	}, q.Ranges())

	next := q.NextRangeToScan()
	require.True(t, next.IsSome())
	require.Equal(t,
		ScanRange{Start: 150, End: 200, Priority: PriorityVerify},
		next.UnwrapOr(ScanRange{}))

	q.MarkScanned(ScanRange{Start: 150, End: 200})
	require.True(t, q.NextRangeToScan().IsNone())
}

// TestNextRangeToScanOrdering verifies priority ordering with start-height
// tie breaking.
func TestNextRangeToScanOrdering(t *testing.T) {
	q := queueOf(t,
		ScanRange{Start: 300, End: 400, Priority: PriorityHistoric},
		ScanRange{Start: 500, End: 600, Priority: PriorityChainTip},
		ScanRange{Start: 100, End: 200, Priority: PriorityChainTip},
	)

	next := q.NextRangeToScan()
	require.Equal(t,
		ScanRange{Start: 100, End: 200, Priority: PriorityChainTip},
		next.UnwrapOr(ScanRange{}))

	q.MarkScanned(ScanRange{Start: 100, End: 200})
	next = q.NextRangeToScan()
	require.Equal(t,
		ScanRange{Start: 500, End: 600, Priority: PriorityChainTip},
		next.UnwrapOr(ScanRange{}))
}

// TestEmptyRangeIsNoop verifies inserting an empty or inverted range leaves
// the queue unchanged.
func TestEmptyRangeIsNoop(t *testing.T) {
	q := NewScanQueue()
	q.Insert(ScanRange{Start: 100, End: 100, Priority: PriorityVerify})
	q.Insert(ScanRange{Start: 200, End: 150, Priority: PriorityVerify})
	require.Empty(t, q.Ranges())
	require.True(t, q.Span().IsNone())
}

// TestSpan verifies the covered span over a gappy partition.
func TestSpan(t *testing.T) {
	q := queueOf(t,
		ScanRange{Start: 100, End: 150, Priority: PriorityHistoric},
		ScanRange{Start: 400, End: 450, Priority: PriorityChainTip},
	)
	span := q.Span().UnwrapOr(ScanRange{})
	require.Equal(t, int32(100), span.Start)
	require.Equal(t, int32(450), span.End)
}

// TestRestoreScanQueue verifies snapshot restoration canonicalizes the
// decoded ranges.
func TestRestoreScanQueue(t *testing.T) {
	q := RestoreScanQueue([]ScanRange{
		{Start: 200, End: 300, Priority: PriorityHistoric},
		{Start: 100, End: 200, Priority: PriorityHistoric},
		{Start: 300, End: 310, Priority: PriorityChainTip},
	})
	require.Equal(t, []ScanRange{
		{Start: 100, End: 300, Priority: PriorityHistoric},
		{Start: 300, End: 310, Priority: PriorityChainTip},
	}, q.Ranges())
}
