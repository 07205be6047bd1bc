// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/zecsuite/zecwallet/scanmgr"
	"github.com/zecsuite/zecwallet/shardtree"
	"github.com/zecsuite/zecwallet/waddrmgr"
	"github.com/zecsuite/zecwallet/wnotemgr"
	"github.com/zecsuite/zecwallet/wtxmgr"
	"github.com/zecsuite/zecwallet/zutil"
)

// ScannedOutput is one trial-decrypted shielded output belonging to the
// wallet.
type ScannedOutput struct {
	Account waddrmgr.AccountID

	// Index is the output (Sapling) or action (Orchard) index within the
	// transaction.
	Index uint16

	Note wnotemgr.Note

	// Nullifier is present when the owning account's full viewing key was
	// available to compute it.
	Nullifier fn.Option[zutil.Nullifier]

	IsChange bool
	Memo     []byte

	// Position is the note commitment's position in the protocol's tree.
	Position fn.Option[uint64]

	Scope fn.Option[wnotemgr.KeyScope]
}

// ScannedTx is the wallet-relevant content of one transaction in a scanned
// block.
type ScannedTx struct {
	TxID chainhash.Hash

	// Index is the transaction's position within its block.
	Index uint32

	// SpentNullifiers are the nullifiers the transaction reveals.
	SpentNullifiers []zutil.Nullifier

	// Outputs are the trial-decrypted outputs belonging to the wallet.
	Outputs []ScannedOutput

	// ReceivedUtxos are transparent outputs paying wallet addresses.
	ReceivedUtxos []*wtxmgr.Utxo

	// SpentOutPoints are transparent inputs of the transaction. Inputs
	// not consuming wallet outputs are ignored.
	SpentOutPoints []wtxmgr.OutPoint

	Fee    fn.Option[btcutil.Amount]
	Expiry fn.Option[int32]
}

// ScannedBlock is the result of scanning one block: block metadata, the
// wallet-relevant transactions, and the complete commitment batches needed
// to advance the per-protocol trees.
type ScannedBlock struct {
	Height int32
	Hash   chainhash.Hash
	Time   uint32

	Txs []ScannedTx

	SaplingCommitments []shardtree.Commitment
	OrchardCommitments []shardtree.Commitment

	SaplingTreeSize    fn.Option[uint32]
	SaplingOutputCount fn.Option[uint32]
	OrchardTreeSize    fn.Option[uint32]
	OrchardActionCount fn.Option[uint32]
}

// IngestBlocks applies a contiguous ascending batch of scanned blocks: block
// and transaction records, note receipts and nullifier spends, transparent
// movements, commitment tree growth with a checkpoint per block, and finally
// the scan queue bookkeeping. The batch commits atomically; any failure
// leaves the store unchanged.
func (w *Wallet) IngestBlocks(blocks []*ScannedBlock) error {
	if len(blocks) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return err
	}

	for i := 1; i < len(blocks); i++ {
		if blocks[i].Height != blocks[i-1].Height+1 {
			str := fmt.Sprintf("block %d follows block %d",
				blocks[i].Height, blocks[i-1].Height)
			return walletError(ErrNonSequentialBlocks, str, nil)
		}
	}

	st := w.stageLocked()
	var sawNotes bool
	for _, block := range blocks {
		if err := w.ingestBlock(st, block, &sawNotes); err != nil {
			return err
		}
	}

	first, last := blocks[0].Height, blocks[len(blocks)-1].Height
	st.scanQueue.MarkScanned(scanmgr.ScanRange{
		Start: first,
		End:   last + 1,
	})

	// A batch containing wallet notes leaves commitment shards incomplete
	// until the chain above it is scanned, and the notes cannot be
	// witnessed before their shards complete: raise the span between the
	// scanned frontier and the known chain end to found-note priority.
	// Heights at or below the frontier already have their commitments in
	// the tree and must never be re-queued.
	if sawNotes {
		chainEnd, spanErr := st.scanQueue.Span().UnwrapOrErr(errNoValue)
		frontier, scanErr := st.txs.MaxScannedHeight().
			UnwrapOrErr(errNoValue)
		if spanErr == nil && scanErr == nil &&
			frontier+1 < chainEnd.End {

			st.scanQueue.Insert(scanmgr.ScanRange{
				Start:    frontier + 1,
				End:      chainEnd.End,
				Priority: scanmgr.PriorityFoundNote,
			})
		}
	}

	w.commitLocked(st)

	log.Infof("Ingested %d %s (heights %d-%d)", len(blocks),
		pickNoun(len(blocks), "block", "blocks"), first, last)
	return nil
}

// ingestBlock applies one scanned block to the staged stores. sawNotes is
// set when the block carries an output belonging to the wallet.
func (w *Wallet) ingestBlock(st *staged, block *ScannedBlock,
	sawNotes *bool) error {

	rec := &wtxmgr.BlockRecord{
		Height:             block.Height,
		Hash:               block.Hash,
		Time:               block.Time,
		Memos:              make(map[zutil.NoteID][]byte),
		SaplingTreeSize:    block.SaplingTreeSize,
		SaplingOutputCount: block.SaplingOutputCount,
		OrchardTreeSize:    block.OrchardTreeSize,
		OrchardActionCount: block.OrchardActionCount,
	}

	for i := range block.Txs {
		tx := &block.Txs[i]
		if err := w.ingestScannedTx(st, block.Height, tx, rec); err != nil {
			return err
		}
		if len(tx.Outputs) > 0 {
			*sawNotes = true
		}
		rec.TxIDs = append(rec.TxIDs, tx.TxID)
	}
	st.txs.PutBlock(rec)

	if len(block.SaplingCommitments) > 0 {
		err := st.sapling.Append(block.Height, block.SaplingCommitments)
		if err != nil {
			return err
		}
	}
	if len(block.OrchardCommitments) > 0 {
		err := st.orchard.Append(block.Height, block.OrchardCommitments)
		if err != nil {
			return err
		}
	}

	// A checkpoint per scanned block allows rewinding to any recent
	// height; checkpoints below the stable height are discarded.
	if err := st.sapling.Checkpoint(block.Height); err != nil {
		return err
	}
	if err := st.orchard.Checkpoint(block.Height); err != nil {
		return err
	}
	if stable := block.Height - w.cfg.PruningDepth; stable > 0 {
		if err := st.sapling.PruneCheckpoints(stable); err != nil {
			return err
		}
		if err := st.orchard.PruneCheckpoints(stable); err != nil {
			return err
		}
	}

	return nil
}

// ingestScannedTx applies one scanned transaction to the staged stores.
func (w *Wallet) ingestScannedTx(st *staged, height int32, tx *ScannedTx,
	rec *wtxmgr.BlockRecord) error {

	st.txs.PutTxMeta(tx.TxID, height, tx.Index)
	if err := st.txs.InsertLocator(height, tx.Index, tx.TxID); err != nil {
		return err
	}
	st.txs.PutTxData(tx.TxID, nil, tx.Fee, tx.Expiry, fn.None[int32]())

	// Revealed nullifiers mark wallet notes as spent. Nullifiers whose
	// note is unknown are buffered for lazy resolution.
	for _, nf := range tx.SpentNullifiers {
		owner := st.notes.ObserveSpend(nf, height, tx.Index)
		id, err := owner.UnwrapOrErr(errNoValue)
		if err != nil {
			continue
		}
		if err := st.notes.RecordSpend(id, tx.TxID); err != nil {
			return err
		}
	}

	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		id := zutil.NoteID{
			TxID:        tx.TxID,
			Protocol:    out.Note.Protocol,
			OutputIndex: out.Index,
		}
		pending, err := st.notes.PutNote(&wnotemgr.ReceivedNote{
			ID:        id,
			Account:   out.Account,
			Note:      out.Note,
			Nullifier: out.Nullifier,
			IsChange:  out.IsChange,
			Memo:      out.Memo,
			Position:  out.Position,
			Scope:     out.Scope,
		})
		if err != nil {
			return err
		}

		// The note's nullifier may have been observed spent in a
		// later, previously scanned range; resolve the spender
		// through the locator.
		if err := w.resolveObservation(st, id, pending); err != nil {
			return err
		}

		if len(out.Memo) > 0 {
			rec.Memos[id] = out.Memo
		}
	}

	for _, utxo := range tx.ReceivedUtxos {
		u := utxo
		if u.MinedHeight.IsNone() {
			dup := *u
			dup.MinedHeight = fn.Some(height)
			u = &dup
		}
		st.txs.PutUtxo(u)

		// An ephemeral address observed in a mined transaction
		// advances its account's gap limit window.
		ref, err := st.accounts.EphemeralByAddress(u.Address).
			UnwrapOrErr(errNoValue)
		if err == nil {
			err := st.accounts.MarkEphemeralSeen(
				ref.Account, ref.Index, tx.TxID,
			)
			if err != nil {
				return err
			}
		}
	}

	for _, op := range tx.SpentOutPoints {
		if _, err := st.txs.Utxo(op); err != nil {
			continue
		}
		if err := st.txs.SpendUtxo(op, tx.TxID); err != nil {
			return err
		}
	}

	return nil
}

// resolveObservation completes a buffered nullifier spend observation for
// the note, when the observed chain location resolves to a known
// transaction.
func (w *Wallet) resolveObservation(st *staged, id zutil.NoteID,
	pending fn.Option[wnotemgr.SpendObservation]) error {

	obs, err := pending.UnwrapOrErr(errNoValue)
	if err != nil {
		return nil
	}
	spender, err := st.txs.LocatorTx(obs.Height, obs.Index).
		UnwrapOrErr(errNoValue)
	if err != nil {
		return nil
	}
	return st.notes.RecordSpend(id, spender)
}

// RollbackToHeight atomically invalidates all chain-derived state at or
// above the fork height: block records, mined statuses and locator entries,
// note positions, tree nodes and checkpoints, and chain-derived transparent
// spends. The rolled-back span is queued for re-scanning at verify priority.
// On failure the store keeps its pre-rollback state and further writes are
// refused with ErrReorgInProgress until a rollback succeeds.
func (w *Wallet) RollbackToHeight(fork int32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	maxScanned, haveScanned := w.txs.MaxScannedHeight().
		UnwrapOrErr(errNoValue)

	st := w.stageLocked()

	// The demoted set drives position invalidation in the note store.
	demoted := make(map[chainhash.Hash]struct{})
	for _, rec := range st.txs.Txs() {
		height, err := rec.MinedHeight().UnwrapOrErr(errNoValue)
		if err == nil && height >= fork {
			demoted[rec.TxID] = struct{}{}
		}
	}

	st.txs.RollbackTo(fork)
	st.notes.Rollback(fork, demoted)
	if err := st.sapling.RollbackTo(fork); err != nil {
		w.reorgInProgress = true
		return err
	}
	if err := st.orchard.RollbackTo(fork); err != nil {
		w.reorgInProgress = true
		return err
	}

	if haveScanned == nil && maxScanned >= fork {
		st.scanQueue.Insert(scanmgr.ScanRange{
			Start:    fork,
			End:      maxScanned + 1,
			Priority: scanmgr.PriorityVerify,
		})
	}

	w.commitLocked(st)
	w.reorgInProgress = false

	log.Infof("Rolled back to height %d (%d demoted %s)", fork,
		len(demoted), pickNoun(len(demoted), "tx", "txs"))
	return nil
}

// UpdateChainTip records a new chain tip, deriving the scan ranges that
// connect the wallet's prior view to it: a chain-tip range covering the
// incomplete tip shard, and either a verify range above the prior
// max-scanned height (when it is no longer stable), a chain-tip range (when
// it is), a historic recovery range from the wallet birthday, or an ignored
// range when the wallet has no accounts. A tip below the prior max-scanned
// height means the caller is mid-reorg and is ignored.
func (w *Wallet) UpdateChainTip(tip int32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return err
	}

	if tip < w.cfg.ActivationHeight {
		return nil
	}

	maxScanned, haveScanned := w.txs.MaxScannedHeight().
		UnwrapOrErr(errNoValue)
	if haveScanned == nil && tip < maxScanned {
		return nil
	}
	birthday := w.accounts.WalletBirthday()
	chainEnd := tip + 1

	// The fragment of the last shard leading up to the new tip must be
	// scanned at chain-tip priority so found notes become witnessable.
	// The range is floored at the wallet birthday.
	tipShard := fn.None[scanmgr.ScanRange]()
	shardTip, haveShard := w.shardTipLocked().UnwrapOrErr(errNoValue)
	if haveShard == nil && shardTip < chainEnd {
		minToScan := shardTip
		birthday.WhenSome(func(b int32) {
			if b > minToScan {
				minToScan = b
			}
		})
		tipShard = fn.Some(scanmgr.ScanRange{
			Start:    minToScan,
			End:      chainEnd,
			Priority: scanmgr.PriorityChainTip,
		})
	}

	var tipEntry scanmgr.ScanRange
	switch {
	case haveScanned != nil:
		// Nothing scanned yet: recover from the wallet birthday, or
		// ignore everything if there are no accounts to recover.
		b, haveBirthday := birthday.UnwrapOrErr(errNoValue)
		if haveBirthday != nil {
			tipEntry = scanmgr.ScanRange{
				Start:    w.cfg.ActivationHeight,
				End:      chainEnd,
				Priority: scanmgr.PriorityIgnored,
			}
		} else {
			tipEntry = scanmgr.ScanRange{
				Start:    b,
				End:      chainEnd,
				Priority: scanmgr.PriorityHistoric,
			}
		}

	case tipShard.IsNone():
		// No shard metadata means linear scanning.
		tipEntry = scanmgr.ScanRange{
			Start:    maxScanned + 1,
			End:      chainEnd,
			Priority: scanmgr.PriorityHistoric,
		}

	default:
		minUnscanned := maxScanned + 1
		stable := tip - w.cfg.PruningDepth
		if maxScanned > stable {
			// Steady state: the wallet is near the tip and just
			// needs to catch up.
			tipEntry = scanmgr.ScanRange{
				Start:    minUnscanned,
				End:      chainEnd,
				Priority: scanmgr.PriorityChainTip,
			}
		} else {
			// The max scanned block may have been reorged away
			// since the wallet last looked; verify a lookahead
			// window above it, capped at the stable region.
			end := minUnscanned + w.cfg.VerifyLookahead
			if stable+1 < end {
				end = stable + 1
			}
			tipEntry = scanmgr.ScanRange{
				Start:    minUnscanned,
				End:      end,
				Priority: scanmgr.PriorityVerify,
			}
		}
	}

	tipShard.WhenSome(func(r scanmgr.ScanRange) {
		w.scanQueue.Insert(r)
	})
	w.scanQueue.Insert(tipEntry)

	log.Debugf("Chain tip updated to %d: %v", tip, tipEntry)
	return nil
}

// shardTipLocked returns the lowest per-protocol tip end height, i.e. the
// height through which both trees are complete.
func (w *Wallet) shardTipLocked() fn.Option[int32] {
	tip := w.sapling.TipEndHeight()
	w.orchard.TipEndHeight().WhenSome(func(h int32) {
		if tip.UnwrapOr(h) >= h {
			tip = fn.Some(h)
		}
	})
	return tip
}

// NextScanRange returns the highest-priority outstanding scan range, or None
// when scanning is caught up.
func (w *Wallet) NextScanRange() fn.Option[scanmgr.ScanRange] {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.scanQueue.NextRangeToScan()
}

// MarkScanned records that every height in the range was scanned without
// wallet-relevant content. Ranges with content are marked through
// IngestBlocks instead.
func (w *Wallet) MarkScanned(r scanmgr.ScanRange) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return err
	}
	w.scanQueue.MarkScanned(r)
	return nil
}

// RequestRescan re-queues a range for scanning, lifting even previously
// ignored heights.
func (w *Wallet) RequestRescan(r scanmgr.ScanRange) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return err
	}
	w.scanQueue.InsertForce(r)
	return nil
}

// ScanRanges returns the scan queue partition in ascending height order.
func (w *Wallet) ScanRanges() []scanmgr.ScanRange {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.scanQueue.Ranges()
}
