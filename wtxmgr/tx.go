// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/zecsuite/zecwallet/zutil"
)

// TxStatus is the lifecycle state of a transaction record.
//
// The ordinary progression is Unrecognized -> NotInMainChain -> Mined. The
// only legal regression is Mined -> NotInMainChain, performed by the facade
// as part of a reorg rollback.
type TxStatus uint8

const (
	// StatusUnrecognized means the transaction id has been referenced
	// but the wallet has no information about the transaction itself.
	StatusUnrecognized TxStatus = iota

	// StatusNotInMainChain means the transaction has been seen but is
	// not mined in the main chain.
	StatusNotInMainChain

	// StatusMined means the transaction is mined in the main chain.
	StatusMined
)

// String returns the TxStatus as a human-readable name.
func (s TxStatus) String() string {
	switch s {
	case StatusUnrecognized:
		return "unrecognized"
	case StatusNotInMainChain:
		return "not-in-main-chain"
	case StatusMined:
		return "mined"
	default:
		return fmt.Sprintf("unknown status (%d)", uint8(s))
	}
}

// BlockRecord is the wallet's view of a single scanned block. Only blocks
// containing wallet-relevant transactions are recorded. A record is
// immutable once written; a reorg replaces the record wholesale rather than
// merging into it.
type BlockRecord struct {
	Height int32
	Hash   chainhash.Hash
	Time   uint32

	// TxIDs lists the wallet-relevant transactions in this block in
	// block order.
	TxIDs []chainhash.Hash

	// Memos holds the memos surfaced while scanning this block, keyed by
	// the note they decorate.
	Memos map[zutil.NoteID][]byte

	// Commitment tree sizes and output counts are absent until the block
	// has been scanned to sufficient depth.
	SaplingTreeSize    fn.Option[uint32]
	SaplingOutputCount fn.Option[uint32]
	OrchardTreeSize    fn.Option[uint32]
	OrchardActionCount fn.Option[uint32]
}

// clone returns a deep copy of the block record.
func (b *BlockRecord) clone() *BlockRecord {
	dup := *b
	dup.TxIDs = append([]chainhash.Hash(nil), b.TxIDs...)
	dup.Memos = make(map[zutil.NoteID][]byte, len(b.Memos))
	for id, memo := range b.Memos {
		dup.Memos[id] = append([]byte(nil), memo...)
	}
	return &dup
}

// TxRecord represents a transaction managed by the Store.
type TxRecord struct {
	TxID   chainhash.Hash
	Status TxStatus

	// Block and Index locate a mined transaction within the chain. They
	// are present exactly when Status is StatusMined.
	Block fn.Option[int32]
	Index fn.Option[uint32]

	// Expiry is the height after which an unmined transaction can no
	// longer be mined.
	Expiry fn.Option[int32]

	// Raw is the serialized transaction, nil until enhancement retrieves
	// it.
	Raw []byte

	Fee fn.Option[btcutil.Amount]

	// Target is the height the transaction was constructed for. It is
	// only ever set for transactions authored by this wallet.
	Target fn.Option[int32]
}

// MinedHeight returns the height the transaction is mined at, or None.
func (r *TxRecord) MinedHeight() fn.Option[int32] {
	if r.Status != StatusMined {
		return fn.None[int32]()
	}
	return r.Block
}

// clone returns a deep copy of the transaction record.
func (r *TxRecord) clone() *TxRecord {
	dup := *r
	dup.Raw = append([]byte(nil), r.Raw...)
	return &dup
}

// BlockIndex is a (height, index-in-block) locator key.
type BlockIndex struct {
	Height int32
	Index  uint32
}

// Store implements the block and transaction store: block metadata keyed by
// height, transaction records keyed by id, and the (height, index) -> txid
// locator used to resolve nullifier observations into spending transactions.
//
// The store performs no locking of its own; the wallet facade serializes
// all access.
type Store struct {
	blocks map[int32]*BlockRecord
	txs    map[chainhash.Hash]*TxRecord

	locator      map[BlockIndex]chainhash.Hash
	locatorOrder []BlockIndex

	utxos          map[OutPoint]*Utxo
	utxoSpends     map[OutPoint]chainhash.Hash
	spendLocations map[chainhash.Hash]OutPoint
}

// NewStore creates an empty block and transaction store.
func NewStore() *Store {
	return &Store{
		blocks:         make(map[int32]*BlockRecord),
		txs:            make(map[chainhash.Hash]*TxRecord),
		locator:        make(map[BlockIndex]chainhash.Hash),
		utxos:          make(map[OutPoint]*Utxo),
		utxoSpends:     make(map[OutPoint]chainhash.Hash),
		spendLocations: make(map[chainhash.Hash]OutPoint),
	}
}

// PutBlock inserts or replaces the block record at its height. Replacing an
// existing height is only done by the facade after rolling back state
// anchored to the old block.
func (s *Store) PutBlock(block *BlockRecord) {
	if old, ok := s.blocks[block.Height]; ok && old.Hash != block.Hash {
		log.Warnf("Replacing block %d hash %v with %v", block.Height,
			old.Hash, block.Hash)
	}
	s.blocks[block.Height] = block.clone()
}

// Block returns the block record at the given height.
func (s *Store) Block(height int32) (*BlockRecord, error) {
	block, ok := s.blocks[height]
	if !ok {
		str := fmt.Sprintf("no block at height %d", height)
		return nil, storeError(ErrUnknownBlock, str, nil)
	}
	return block.clone(), nil
}

// Blocks returns all block records ordered by height.
func (s *Store) Blocks() []*BlockRecord {
	heights := make([]int32, 0, len(s.blocks))
	for height := range s.blocks {
		heights = append(heights, height)
	}
	sort.Slice(heights, func(i, j int) bool {
		return heights[i] < heights[j]
	})

	blocks := make([]*BlockRecord, 0, len(heights))
	for _, height := range heights {
		blocks = append(blocks, s.blocks[height].clone())
	}
	return blocks
}

// MaxScannedHeight returns the height of the highest scanned block, or None
// when no blocks have been recorded.
func (s *Store) MaxScannedHeight() fn.Option[int32] {
	var (
		have bool
		max  int32
	)
	for height := range s.blocks {
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

// PutTxMeta records that a transaction was observed mined at the given
// height and block index, creating the record if needed.
func (s *Store) PutTxMeta(txid chainhash.Hash, height int32, index uint32) {
	rec, ok := s.txs[txid]
	if !ok {
		rec = &TxRecord{TxID: txid}
		s.txs[txid] = rec
	}
	rec.Status = StatusMined
	rec.Block = fn.Some(height)
	rec.Index = fn.Some(index)
}

// PutTxData merges full transaction data into the record, creating it with
// status NotInMainChain if it does not exist. Already-known fields are
// retained when the incoming value is absent.
func (s *Store) PutTxData(txid chainhash.Hash, raw []byte,
	fee fn.Option[btcutil.Amount], expiry fn.Option[int32],
	target fn.Option[int32]) {

	rec, ok := s.txs[txid]
	if !ok {
		rec = &TxRecord{
			TxID:   txid,
			Status: StatusNotInMainChain,
		}
		s.txs[txid] = rec
	}
	if len(raw) > 0 {
		rec.Raw = append([]byte(nil), raw...)
	}
	rec.Fee = fee.Alt(rec.Fee)
	rec.Expiry = expiry.Alt(rec.Expiry)
	rec.Target = target.Alt(rec.Target)
}

// EnsureTx creates an empty StatusUnrecognized record for a referenced
// transaction id if none exists. It reports whether a record was created.
func (s *Store) EnsureTx(txid chainhash.Hash) bool {
	if _, ok := s.txs[txid]; ok {
		return false
	}
	s.txs[txid] = &TxRecord{TxID: txid}
	return true
}

// SetStatus updates the lifecycle status of an existing transaction record.
// For StatusMined the mined height must be provided; for the other statuses
// the block location fields are cleared.
func (s *Store) SetStatus(txid chainhash.Hash, status TxStatus,
	minedHeight fn.Option[int32]) error {

	rec, ok := s.txs[txid]
	if !ok {
		str := fmt.Sprintf("transaction %v not found", txid)
		return storeError(ErrUnknownTransaction, str, nil)
	}
	if status == StatusMined && minedHeight.IsNone() {
		str := fmt.Sprintf("transaction %v cannot be marked mined "+
			"without a height", txid)
		return storeError(ErrInvalidStatus, str, nil)
	}
	rec.Status = status
	if status == StatusMined {
		rec.Block = minedHeight
	} else {
		rec.Block = fn.None[int32]()
		rec.Index = fn.None[uint32]()
	}
	return nil
}

// Tx returns a copy of the transaction record for the given id.
func (s *Store) Tx(txid chainhash.Hash) (*TxRecord, error) {
	rec, ok := s.txs[txid]
	if !ok {
		str := fmt.Sprintf("transaction %v not found", txid)
		return nil, storeError(ErrUnknownTransaction, str, nil)
	}
	return rec.clone(), nil
}

// HasTx reports whether a record exists for the transaction id.
func (s *Store) HasTx(txid chainhash.Hash) bool {
	_, ok := s.txs[txid]
	return ok
}

// Txs returns all transaction records, ordered by id for determinism.
func (s *Store) Txs() []*TxRecord {
	ids := make([]chainhash.Hash, 0, len(s.txs))
	for id := range s.txs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return hashLess(&ids[i], &ids[j])
	})

	recs := make([]*TxRecord, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, s.txs[id].clone())
	}
	return recs
}

// InsertLocator binds a (height, index) slot to a transaction id. Rebinding
// a slot to the same id is a no-op; binding it to a different id fails with
// ErrConflictingLocator. The secondary index must stay consistent with the
// primary record's block and index fields, which the facade maintains.
func (s *Store) InsertLocator(height int32, index uint32,
	txid chainhash.Hash) error {

	key := BlockIndex{Height: height, Index: index}
	if existing, ok := s.locator[key]; ok {
		if existing == txid {
			return nil
		}
		str := fmt.Sprintf("locator (%d, %d) already bound to %v",
			height, index, existing)
		return storeError(ErrConflictingLocator, str, nil)
	}
	s.locator[key] = txid
	s.locatorOrder = append(s.locatorOrder, key)
	return nil
}

// LocatorTx returns the transaction id bound to a (height, index) slot, or
// None.
func (s *Store) LocatorTx(height int32, index uint32) fn.Option[chainhash.Hash] {
	txid, ok := s.locator[BlockIndex{Height: height, Index: index}]
	if !ok {
		return fn.None[chainhash.Hash]()
	}
	return fn.Some(txid)
}

// LocatorEntry is a single locator binding.
type LocatorEntry struct {
	BlockIndex
	TxID chainhash.Hash
}

// LocatorEntries returns all locator bindings in insertion order.
func (s *Store) LocatorEntries() []LocatorEntry {
	entries := make([]LocatorEntry, 0, len(s.locatorOrder))
	for _, key := range s.locatorOrder {
		entries = append(entries, LocatorEntry{
			BlockIndex: key,
			TxID:       s.locator[key],
		})
	}
	return entries
}

// RollbackTo removes every block at or above the fork height, demotes the
// transactions located there to NotInMainChain, removes the affected
// locator entries and unwinds chain-derived transparent spend records. The
// facade invokes this as one leg of an atomic reorg rollback.
func (s *Store) RollbackTo(fork int32) {
	for height := range s.blocks {
		if height >= fork {
			delete(s.blocks, height)
		}
	}

	for txid, rec := range s.txs {
		height, err := rec.MinedHeight().UnwrapOrErr(errNone)
		if err != nil || height < fork {
			continue
		}
		rec.Status = StatusNotInMainChain
		rec.Block = fn.None[int32]()
		rec.Index = fn.None[uint32]()

		// A chain-derived transparent spend by this transaction is no
		// longer observed; the spend-location cache gives the reverse
		// mapping.
		if op, ok := s.spendLocations[txid]; ok {
			delete(s.utxoSpends, op)
			delete(s.spendLocations, txid)
		}
	}

	keep := s.locatorOrder[:0]
	for _, key := range s.locatorOrder {
		if key.Height >= fork {
			delete(s.locator, key)
			continue
		}
		keep = append(keep, key)
	}
	s.locatorOrder = keep

	for _, utxo := range s.utxos {
		utxo.MaxObservedUnspent.WhenSome(func(h int32) {
			if h >= fork {
				if fork > 0 {
					utxo.MaxObservedUnspent = fn.Some(fork - 1)
				} else {
					utxo.MaxObservedUnspent = fn.None[int32]()
				}
			}
		})
		utxo.MinedHeight.WhenSome(func(h int32) {
			if h >= fork {
				utxo.MinedHeight = fn.None[int32]()
			}
		})
	}

	log.Debugf("Rolled transaction store back to height %d", fork)
}

// Clone returns a deep copy of the store, used by the facade to stage
// multi-store mutations.
func (s *Store) Clone() *Store {
	dup := NewStore()
	for height, block := range s.blocks {
		dup.blocks[height] = block.clone()
	}
	for txid, rec := range s.txs {
		dup.txs[txid] = rec.clone()
	}
	for key, txid := range s.locator {
		dup.locator[key] = txid
	}
	dup.locatorOrder = append([]BlockIndex(nil), s.locatorOrder...)
	for op, utxo := range s.utxos {
		dup.utxos[op] = utxo.clone()
	}
	for op, txid := range s.utxoSpends {
		dup.utxoSpends[op] = txid
	}
	for txid, op := range s.spendLocations {
		dup.spendLocations[txid] = op
	}
	return dup
}

// errNone is used with Option.UnwrapOrErr when only presence matters.
var errNone = fmt.Errorf("value absent")

// hashLess provides a total order over hashes for deterministic listings.
func hashLess(a, b *chainhash.Hash) bool {
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
