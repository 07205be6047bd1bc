// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package shardtree

import (
	"fmt"
	"sort"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/zecsuite/zecwallet/zutil"
)

// NodeAddress identifies a node in the commitment tree by level and index
// within that level. Level 0 is the leaf level.
type NodeAddress struct {
	Level uint8
	Index uint64
}

// Commitment is a single note commitment to be appended at a known leaf
// position.
type Commitment struct {
	Position uint64
	Hash     [32]byte
}

// TreeState is the opaque serialized form of a protocol's shard tree: the
// cap covering the upper levels, the fixed-size shard subtrees keyed by
// shard index, and the checkpoint table mapping checkpoint id (a block
// height) to the tree position at that checkpoint.
//
// The tree algebra over this state lives in the external TreeEngine; this
// package only owns the state.
type TreeState struct {
	Cap         []byte
	Shards      map[uint64][]byte
	Checkpoints map[int32]uint64
}

// NewTreeState creates an empty tree state.
func NewTreeState() *TreeState {
	return &TreeState{
		Shards:      make(map[uint64][]byte),
		Checkpoints: make(map[int32]uint64),
	}
}

// Clone returns a deep copy of the tree state.
func (t *TreeState) Clone() *TreeState {
	dup := NewTreeState()
	dup.Cap = append([]byte(nil), t.Cap...)
	for idx, shard := range t.Shards {
		dup.Shards[idx] = append([]byte(nil), shard...)
	}
	for id, pos := range t.Checkpoints {
		dup.Checkpoints[id] = pos
	}
	return dup
}

// TreeEngine is the external incremental-merkle-tree library consumed by
// the adapter. Implementations operate on the opaque TreeState and must
// return a TreeError with ErrConflictingTreeState (see ConflictError) when
// an append contradicts stored shape.
type TreeEngine interface {
	// Append adds a batch of commitments at their positions, returning
	// the updated state and the addresses of every node whose subtree
	// was completed by the batch.
	Append(state *TreeState, batch []Commitment) (*TreeState,
		[]NodeAddress, error)

	// Checkpoint records a checkpoint with the given id at the current
	// tree position.
	Checkpoint(state *TreeState, id int32, position uint64) (*TreeState,
		error)

	// Rewind truncates the tree back to the position recorded for the
	// checkpoint id.
	Rewind(state *TreeState, id int32) (*TreeState, error)

	// PruneCheckpoints discards checkpoints with ids strictly below the
	// given id.
	PruneCheckpoints(state *TreeState, before int32) (*TreeState, error)

	// Witness produces the authentication path for the leaf at the given
	// position, anchored at the given checkpoint id. Read-only.
	Witness(state *TreeState, position uint64, asOf int32) ([][32]byte,
		error)
}

// Adapter owns the shard tree state for a single shielded protocol and the
// side table recording, per completed node, the block height at which the
// node's rightmost leaf was committed. All tree algebra is delegated to the
// engine.
//
// The adapter performs no locking of its own; the wallet facade serializes
// all access.
type Adapter struct {
	protocol zutil.ShieldedProtocol
	engine   TreeEngine

	state *TreeState

	// size is the number of leaves appended so far, i.e. the next
	// append position.
	size uint64

	// endHeights maps a completed node to the height of the block whose
	// scan committed the node's rightmost leaf.
	endHeights map[NodeAddress]int32
}

// NewAdapter creates an adapter with empty tree state.
func NewAdapter(protocol zutil.ShieldedProtocol, engine TreeEngine) *Adapter {
	return &Adapter{
		protocol:   protocol,
		engine:     engine,
		state:      NewTreeState(),
		endHeights: make(map[NodeAddress]int32),
	}
}

// Protocol returns the shielded protocol this adapter serves.
func (a *Adapter) Protocol() zutil.ShieldedProtocol {
	return a.protocol
}

// Size returns the number of leaves appended so far.
func (a *Adapter) Size() uint64 {
	return a.size
}

// Append delegates a batch of commitments to the engine and records the
// end height of every node the batch completed. The batch must be
// contiguous and start at the current tree size; re-appending at a filled
// position fails with ErrConflictingTreeState without touching state.
func (a *Adapter) Append(height int32, batch []Commitment) error {
	if len(batch) == 0 {
		return nil
	}
	for i, c := range batch {
		want := a.size + uint64(i)
		if c.Position != want {
			str := fmt.Sprintf("%v append at position %d "+
				"contradicts tree size %d", a.protocol,
				c.Position, want)
			return treeError(ErrConflictingTreeState, str, nil)
		}
	}

	state, completed, err := a.engine.Append(a.state, batch)
	if err != nil {
		return err
	}
	a.state = state
	a.size += uint64(len(batch))
	for _, node := range completed {
		a.endHeights[node] = height
	}

	log.Tracef("Appended %d %v commitments at height %d (%d nodes "+
		"completed)", len(batch), a.protocol, height, len(completed))
	return nil
}

// Checkpoint records a checkpoint with the given id at the current tree
// position.
func (a *Adapter) Checkpoint(id int32) error {
	state, err := a.engine.Checkpoint(a.state, id, a.size)
	if err != nil {
		return err
	}
	a.state = state
	return nil
}

// PruneCheckpoints discards checkpoints with ids strictly below the given
// id.
func (a *Adapter) PruneCheckpoints(before int32) error {
	state, err := a.engine.PruneCheckpoints(a.state, before)
	if err != nil {
		return err
	}
	a.state = state
	return nil
}

// Witness produces the authentication path for the leaf at the given
// position anchored at the given checkpoint. Read-only.
func (a *Adapter) Witness(position uint64, asOf int32) ([][32]byte, error) {
	return a.engine.Witness(a.state, position, asOf)
}

// TipEndHeight returns the highest recorded node end height, or None. It
// marks the chain height through which this protocol's tree is complete.
func (a *Adapter) TipEndHeight() fn.Option[int32] {
	var (
		have bool
		max  int32
	)
	for _, height := range a.endHeights {
		if !have || height > max {
			have = true
			max = height
		}
	}
	if !have {
		return fn.None[int32]()
	}
	return fn.Some(max)
}

// RollbackTo rewinds the tree to the highest checkpoint strictly below the
// fork height and discards end-height entries and checkpoints at or above
// it. With no checkpoint below the fork the tree resets to empty.
func (a *Adapter) RollbackTo(fork int32) error {
	var (
		haveCkpt bool
		ckptID   int32
	)
	for id := range a.state.Checkpoints {
		if id < fork && (!haveCkpt || id > ckptID) {
			haveCkpt = true
			ckptID = id
		}
	}

	if !haveCkpt {
		a.state = NewTreeState()
		a.size = 0
		a.endHeights = make(map[NodeAddress]int32)
		log.Debugf("Reset %v tree: no checkpoint below fork %d",
			a.protocol, fork)
		return nil
	}

	state, err := a.engine.Rewind(a.state, ckptID)
	if err != nil {
		return err
	}
	a.state = state
	a.size = a.state.Checkpoints[ckptID]
	for node, height := range a.endHeights {
		if height >= fork {
			delete(a.endHeights, node)
		}
	}

	log.Debugf("Rewound %v tree to checkpoint %d (position %d)",
		a.protocol, ckptID, a.size)
	return nil
}

// EndHeightEntry is one row of the node end-height side table.
type EndHeightEntry struct {
	Node   NodeAddress
	Height int32
}

// EndHeights returns the end-height side table in a deterministic order.
func (a *Adapter) EndHeights() []EndHeightEntry {
	entries := make([]EndHeightEntry, 0, len(a.endHeights))
	for node, height := range a.endHeights {
		entries = append(entries, EndHeightEntry{
			Node:   node,
			Height: height,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Node, entries[j].Node
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		return a.Index < b.Index
	})
	return entries
}

// State returns the current tree state. The caller must treat it as
// read-only; it is exported for snapshot encoding.
func (a *Adapter) State() *TreeState {
	return a.state
}

// Clone returns a deep copy of the adapter sharing the same engine, used by
// the facade to stage multi-store mutations.
func (a *Adapter) Clone() *Adapter {
	dup := NewAdapter(a.protocol, a.engine)
	dup.state = a.state.Clone()
	dup.size = a.size
	for node, height := range a.endHeights {
		dup.endHeights[node] = height
	}
	return dup
}

// RestoreAdapter reassembles an adapter from decoded snapshot state.
func RestoreAdapter(protocol zutil.ShieldedProtocol, engine TreeEngine,
	state *TreeState, size uint64, endHeights []EndHeightEntry) *Adapter {

	a := NewAdapter(protocol, engine)
	a.state = state.Clone()
	a.size = size
	for _, entry := range endHeights {
		a.endHeights[entry.Node] = entry.Height
	}
	return a
}
