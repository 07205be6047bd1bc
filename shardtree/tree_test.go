// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package shardtree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zecsuite/zecwallet/zutil"
)

// fakeShardSize is the leaf capacity of a shard in the test engine. Real
// engines use 2^16; a tiny shard keeps completion observable in tests.
const fakeShardSize = 4

// fakeEngine is a minimal TreeEngine storing raw leaves in the shard blobs.
// It reports a completed node whenever a shard fills.
type fakeEngine struct{}

func leafCount(state *TreeState) uint64 {
	var n uint64
	for _, shard := range state.Shards {
		n += uint64(len(shard) / 32)
	}
	return n
}

func (fakeEngine) Append(state *TreeState, batch []Commitment) (*TreeState,
	[]NodeAddress, error) {

	next := state.Clone()
	before := leafCount(next)

	for i, c := range batch {
		if c.Position != before+uint64(i) {
			return nil, nil, fmt.Errorf("append out of order at "+
				"position %d", c.Position)
		}
		shard := c.Position / fakeShardSize
		next.Shards[shard] = append(next.Shards[shard], c.Hash[:]...)
	}

	var completed []NodeAddress
	after := before + uint64(len(batch))
	for shard := before / fakeShardSize; shard <= after/fakeShardSize; shard++ {
		if len(next.Shards[shard]) == fakeShardSize*32 {
			completed = append(completed, NodeAddress{
				Level: 2,
				Index: shard,
			})
		}
	}
	return next, completed, nil
}

func (fakeEngine) Checkpoint(state *TreeState, id int32,
	position uint64) (*TreeState, error) {

	next := state.Clone()
	next.Checkpoints[id] = position
	return next, nil
}

func (fakeEngine) Rewind(state *TreeState, id int32) (*TreeState, error) {
	position, ok := state.Checkpoints[id]
	if !ok {
		return nil, fmt.Errorf("no checkpoint %d", id)
	}

	next := state.Clone()
	for shard := range next.Shards {
		start := shard * fakeShardSize
		switch {
		case start >= position:
			delete(next.Shards, shard)
		case start+fakeShardSize > position:
			next.Shards[shard] = next.Shards[shard][:(position-start)*32]
		}
	}
	for ckpt := range next.Checkpoints {
		if ckpt > id {
			delete(next.Checkpoints, ckpt)
		}
	}
	return next, nil
}

func (fakeEngine) PruneCheckpoints(state *TreeState, before int32) (*TreeState,
	error) {

	next := state.Clone()
	for id := range next.Checkpoints {
		if id < before {
			delete(next.Checkpoints, id)
		}
	}
	return next, nil
}

func (fakeEngine) Witness(state *TreeState, position uint64,
	asOf int32) ([][32]byte, error) {

	anchor, ok := state.Checkpoints[asOf]
	if !ok {
		return nil, fmt.Errorf("no checkpoint %d", asOf)
	}
	if position >= anchor {
		return nil, fmt.Errorf("position %d not anchored at "+
			"checkpoint %d", position, asOf)
	}
	return [][32]byte{{byte(position)}}, nil
}

// failingEngine wraps fakeEngine but refuses rewinds, for exercising
// rollback failure handling.
type failingEngine struct {
	fakeEngine
}

func (failingEngine) Rewind(*TreeState, int32) (*TreeState, error) {
	return nil, fmt.Errorf("rewind unavailable")
}

func commitments(start uint64, n int) []Commitment {
	batch := make([]Commitment, n)
	for i := range batch {
		batch[i] = Commitment{
			Position: start + uint64(i),
			Hash:     [32]byte{byte(start) + byte(i)},
		}
	}
	return batch
}

// TestAppendTracksSizeAndEndHeights verifies batches advance the size and
// completed shards record the committing block height.
func TestAppendTracksSizeAndEndHeights(t *testing.T) {
	a := NewAdapter(zutil.Sapling, fakeEngine{})
	require.True(t, a.TipEndHeight().IsNone())

	// Three leaves: shard 0 is incomplete.
	require.NoError(t, a.Append(100, commitments(0, 3)))
	require.Equal(t, uint64(3), a.Size())
	require.Empty(t, a.EndHeights())

	// Three more: shard 0 completes at height 101.
	require.NoError(t, a.Append(101, commitments(3, 3)))
	require.Equal(t, uint64(6), a.Size())

	entries := a.EndHeights()
	require.Len(t, entries, 1)
	require.Equal(t, NodeAddress{Level: 2, Index: 0}, entries[0].Node)
	require.Equal(t, int32(101), entries[0].Height)
	require.Equal(t, int32(101), a.TipEndHeight().UnwrapOr(-1))
}

// TestAppendPositionConflict verifies an out-of-position batch is rejected
// without touching state.
func TestAppendPositionConflict(t *testing.T) {
	a := NewAdapter(zutil.Orchard, fakeEngine{})
	require.NoError(t, a.Append(100, commitments(0, 2)))

	err := a.Append(101, commitments(5, 1))
	require.Error(t, err)
	require.True(t, IsError(err, ErrConflictingTreeState))
	require.Equal(t, uint64(2), a.Size())
}

// TestCheckpointAndWitness verifies witnesses anchor at checkpoints.
func TestCheckpointAndWitness(t *testing.T) {
	a := NewAdapter(zutil.Sapling, fakeEngine{})
	require.NoError(t, a.Append(100, commitments(0, 4)))
	require.NoError(t, a.Checkpoint(100))

	path, err := a.Witness(2, 100)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	// Leaves past the anchor cannot be witnessed at it.
	require.NoError(t, a.Append(101, commitments(4, 2)))
	_, err = a.Witness(5, 100)
	require.Error(t, err)
}

// TestPruneCheckpoints verifies old checkpoints are discarded.
func TestPruneCheckpoints(t *testing.T) {
	a := NewAdapter(zutil.Sapling, fakeEngine{})
	for height := int32(100); height <= 103; height++ {
		require.NoError(t, a.Append(height, commitments(
			uint64(height-100), 1,
		)))
		require.NoError(t, a.Checkpoint(height))
	}

	require.NoError(t, a.PruneCheckpoints(102))
	_, err := a.Witness(0, 100)
	require.Error(t, err)
	_, err = a.Witness(0, 103)
	require.NoError(t, err)
}

// TestRollbackToCheckpoint verifies rewinding truncates the tree and drops
// invalidated end heights.
func TestRollbackToCheckpoint(t *testing.T) {
	a := NewAdapter(zutil.Sapling, fakeEngine{})

	require.NoError(t, a.Append(100, commitments(0, 4)))
	require.NoError(t, a.Checkpoint(100))
	require.NoError(t, a.Append(101, commitments(4, 4)))
	require.NoError(t, a.Checkpoint(101))
	require.Len(t, a.EndHeights(), 2)

	require.NoError(t, a.RollbackTo(101))
	require.Equal(t, uint64(4), a.Size())
	require.Len(t, a.EndHeights(), 1)
	require.Equal(t, int32(100), a.TipEndHeight().UnwrapOr(-1))

	// The tree accepts appends from the rewound position.
	require.NoError(t, a.Append(101, commitments(4, 1)))
}

// TestRollbackWithoutCheckpoint verifies the tree resets to empty when no
// checkpoint survives below the fork.
func TestRollbackWithoutCheckpoint(t *testing.T) {
	a := NewAdapter(zutil.Sapling, fakeEngine{})
	require.NoError(t, a.Append(100, commitments(0, 4)))
	require.NoError(t, a.Checkpoint(100))

	require.NoError(t, a.RollbackTo(100))
	require.Equal(t, uint64(0), a.Size())
	require.True(t, a.TipEndHeight().IsNone())
}

// TestRollbackEngineFailure verifies a failed rewind leaves the adapter
// untouched.
func TestRollbackEngineFailure(t *testing.T) {
	a := NewAdapter(zutil.Sapling, failingEngine{})
	require.NoError(t, a.Append(100, commitments(0, 4)))
	require.NoError(t, a.Checkpoint(100))
	require.NoError(t, a.Append(101, commitments(4, 2)))

	require.Error(t, a.RollbackTo(101))
	require.Equal(t, uint64(6), a.Size())
	require.Len(t, a.EndHeights(), 1)
}

// TestAdapterClone verifies staged clones do not alias the original.
func TestAdapterClone(t *testing.T) {
	a := NewAdapter(zutil.Sapling, fakeEngine{})
	require.NoError(t, a.Append(100, commitments(0, 2)))

	dup := a.Clone()
	require.NoError(t, dup.Append(101, commitments(2, 2)))

	require.Equal(t, uint64(2), a.Size())
	require.Equal(t, uint64(4), dup.Size())
	require.Empty(t, a.EndHeights())
	require.Len(t, dup.EndHeights(), 1)
}
