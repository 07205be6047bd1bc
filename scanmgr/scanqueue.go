// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scanmgr

import (
	"fmt"
	"sort"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ScanPriority labels how urgently a range of block heights should be
// fetched and scanned. Higher values outrank lower ones: verifying a
// potentially reorganized range outranks completing a note-commitment
// shard, which outranks routine historical backfill.
type ScanPriority uint8

const (
	// PriorityIgnored marks heights the wallet has decided never to
	// scan. It is a floor: ordinary inserts do not lift it.
	PriorityIgnored ScanPriority = iota

	// PriorityScanned marks heights that have already been scanned.
	PriorityScanned

	// PriorityHistoric marks routine backfill of historic blocks.
	PriorityHistoric

	// PriorityOpenAdjacent marks blocks adjacent to heights the wallet
	// has already processed, closing gaps in scanned spans.
	PriorityOpenAdjacent

	// PriorityFoundNote marks ranges that must be completed to finish a
	// note-commitment shard containing a wallet note.
	PriorityFoundNote

	// PriorityChainTip marks the range connecting the wallet's view to
	// the current chain tip.
	PriorityChainTip

	// PriorityVerify marks ranges that must be re-fetched to confirm
	// the wallet's view was not reorganized away.
	PriorityVerify
)

// String returns the ScanPriority as a human-readable name.
func (p ScanPriority) String() string {
	switch p {
	case PriorityIgnored:
		return "ignored"
	case PriorityScanned:
		return "scanned"
	case PriorityHistoric:
		return "historic"
	case PriorityOpenAdjacent:
		return "open-adjacent"
	case PriorityFoundNote:
		return "found-note"
	case PriorityChainTip:
		return "chain-tip"
	case PriorityVerify:
		return "verify"
	default:
		return fmt.Sprintf("unknown priority (%d)", uint8(p))
	}
}

// ScanRange is a half-open interval of block heights [Start, End) carrying
// a scan priority.
type ScanRange struct {
	Start    int32
	End      int32
	Priority ScanPriority
}

// String returns the range in [start, end) priority form.
func (r ScanRange) String() string {
	return fmt.Sprintf("[%d, %d) %v", r.Start, r.End, r.Priority)
}

// Empty reports whether the range covers no heights.
func (r ScanRange) Empty() bool {
	return r.End <= r.Start
}

// overlaps reports whether two ranges share at least one height.
func (r ScanRange) overlaps(other ScanRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// ScanQueue maintains the prioritized partition of block-height ranges the
// wallet must (re-)scan. The ranges never overlap, cover exactly the union
// of all inserted spans, and are kept minimal: no two height-adjacent
// ranges share a priority.
//
// The queue performs no locking of its own; the wallet facade serializes
// all access.
type ScanQueue struct {
	ranges []ScanRange
}

// NewScanQueue creates an empty scan queue.
func NewScanQueue() *ScanQueue {
	return &ScanQueue{}
}

// Insert merges a candidate range into the partition. Existing ranges that
// partially overlap the candidate are split at the overlap boundaries and
// each overlapping sub-range takes the maximum of the two priorities.
// PriorityIgnored ranges are a floor that Insert never raises; use
// InsertForce for the explicit rescan opt-in.
func (q *ScanQueue) Insert(r ScanRange) {
	q.merge(r, false)
}

// InsertForce behaves like Insert but also raises PriorityIgnored spans,
// opting previously ignored heights back into scanning.
func (q *ScanQueue) InsertForce(r ScanRange) {
	q.merge(r, true)
}

// MarkScanned lowers the priority of the covered span to PriorityScanned
// after every height in it was scanned successfully. Partial success is
// expressed by the caller passing only the successfully scanned prefix, in
// which case the remainder keeps its prior priority through a boundary
// split. Heights outside the tracked span are left untracked.
func (q *ScanQueue) MarkScanned(r ScanRange) {
	r.Priority = PriorityScanned
	q.override(r)
}

// merge is the Insert work-horse described above.
func (q *ScanQueue) merge(r ScanRange, force bool) {
	if r.Empty() {
		return
	}

	var out []ScanRange

	// covered tracks the portion of r already accounted for by
	// overlapping existing ranges, in ascending start order.
	cursor := r.Start

	for _, e := range q.ranges {
		if !e.overlaps(r) {
			out = append(out, e)
			continue
		}

		// Left fragment of the existing range keeps its priority.
		if e.Start < r.Start {
			out = append(out, ScanRange{
				Start:    e.Start,
				End:      r.Start,
				Priority: e.Priority,
			})
		}

		// Any gap in the queue between the previous overlap and this
		// one takes the incoming priority.
		ovStart := maxHeight(e.Start, r.Start)
		ovEnd := minHeight(e.End, r.End)
		if cursor < ovStart {
			out = append(out, ScanRange{
				Start:    cursor,
				End:      ovStart,
				Priority: r.Priority,
			})
		}

		// The overlap takes the higher priority, except that ignored
		// spans stay ignored unless forced.
		pri := maxPriority(e.Priority, r.Priority)
		if e.Priority == PriorityIgnored && !force {
			pri = PriorityIgnored
		}
		out = append(out, ScanRange{
			Start:    ovStart,
			End:      ovEnd,
			Priority: pri,
		})
		cursor = ovEnd

		// Right fragment of the existing range keeps its priority.
		if e.End > r.End {
			out = append(out, ScanRange{
				Start:    r.End,
				End:      e.End,
				Priority: e.Priority,
			})
		}
	}

	// Whatever remains of r past the last overlap is new coverage.
	if cursor < r.End {
		out = append(out, ScanRange{
			Start:    cursor,
			End:      r.End,
			Priority: r.Priority,
		})
	}

	q.ranges = canonical(out)
}

// override replaces the priority of every tracked height inside r with
// r.Priority, splitting boundary ranges as needed.
func (q *ScanQueue) override(r ScanRange) {
	if r.Empty() {
		return
	}

	var out []ScanRange
	for _, e := range q.ranges {
		if !e.overlaps(r) {
			out = append(out, e)
			continue
		}
		if e.Start < r.Start {
			out = append(out, ScanRange{
				Start:    e.Start,
				End:      r.Start,
				Priority: e.Priority,
			})
		}
		out = append(out, ScanRange{
			Start:    maxHeight(e.Start, r.Start),
			End:      minHeight(e.End, r.End),
			Priority: r.Priority,
		})
		if e.End > r.End {
			out = append(out, ScanRange{
				Start:    r.End,
				End:      e.End,
				Priority: e.Priority,
			})
		}
	}
	q.ranges = canonical(out)
}

// canonical sorts the ranges and coalesces height-adjacent neighbors that
// share a priority, producing the minimal partition.
func canonical(ranges []ScanRange) []ScanRange {
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Start < ranges[j].Start
	})

	var out []ScanRange
	for _, r := range ranges {
		if r.Empty() {
			continue
		}
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.End == r.Start && last.Priority == r.Priority {
				last.End = r.End
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// NextRangeToScan returns the outstanding range with the highest priority,
// breaking ties by lowest start height. Ranges at or below PriorityScanned
// are done and never returned; an all-done queue yields None, which is a
// normal empty result rather than an error.
func (q *ScanQueue) NextRangeToScan() fn.Option[ScanRange] {
	var (
		best fn.Option[ScanRange]
		pri  ScanPriority
	)
	for _, r := range q.ranges {
		if r.Priority <= PriorityScanned {
			continue
		}
		if best.IsNone() || r.Priority > pri {
			best = fn.Some(r)
			pri = r.Priority
		}
	}
	return best
}

// Ranges returns the partition in ascending height order.
func (q *ScanQueue) Ranges() []ScanRange {
	return append([]ScanRange(nil), q.ranges...)
}

// Span returns the total [start, end) span covered by the partition, or
// None when the queue is empty.
func (q *ScanQueue) Span() fn.Option[ScanRange] {
	if len(q.ranges) == 0 {
		return fn.None[ScanRange]()
	}
	return fn.Some(ScanRange{
		Start: q.ranges[0].Start,
		End:   q.ranges[len(q.ranges)-1].End,
	})
}

// Clone returns a deep copy of the queue, used by the facade to stage
// multi-store mutations.
func (q *ScanQueue) Clone() *ScanQueue {
	return &ScanQueue{ranges: append([]ScanRange(nil), q.ranges...)}
}

// RestoreScanQueue reassembles a queue from decoded snapshot ranges.
func RestoreScanQueue(ranges []ScanRange) *ScanQueue {
	return &ScanQueue{ranges: canonical(ranges)}
}

func minHeight(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxHeight(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func maxPriority(a, b ScanPriority) ScanPriority {
	if a > b {
		return a
	}
	return b
}
