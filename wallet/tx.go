// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/zecsuite/zecwallet/scanmgr"
	"github.com/zecsuite/zecwallet/wnotemgr"
	"github.com/zecsuite/zecwallet/wtxmgr"
	"github.com/zecsuite/zecwallet/zutil"
)

// TransactionData is the full content of a transaction obtained outside of
// compact block scanning: a transaction the wallet authored, or one fetched
// in response to an enhancement request.
type TransactionData struct {
	TxID chainhash.Hash

	// Raw is the serialized transaction, when available.
	Raw []byte

	Fee    fn.Option[btcutil.Amount]
	Expiry fn.Option[int32]

	// Target is the height the transaction was constructed for. Only set
	// for transactions authored by this wallet.
	Target fn.Option[int32]

	// Outputs are decrypted outputs belonging to the wallet, including
	// ones compact scanning cannot see such as change with full memos.
	Outputs []ScannedOutput

	// SentNotes describe the outputs of a wallet-authored transaction.
	SentNotes []*wnotemgr.SentNote
}

// IngestTransaction merges full transaction data into the store: the
// transaction record, any wallet-received outputs, and sent note records for
// wallet-authored transactions. Ephemeral transparent recipients are marked
// used. Outstanding data requests the transaction satisfies are completed,
// and missing pieces (raw bytes, mined status) are queued as new requests.
func (w *Wallet) IngestTransaction(data *TransactionData) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return err
	}

	st := w.stageLocked()

	st.txs.PutTxData(data.TxID, data.Raw, data.Fee, data.Expiry,
		data.Target)

	for i := range data.Outputs {
		out := &data.Outputs[i]
		id := zutil.NoteID{
			TxID:        data.TxID,
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
		if err := w.resolveObservation(st, id, pending); err != nil {
			return err
		}
	}

	for _, sent := range data.SentNotes {
		st.notes.PutSentNote(sent)

		if sent.Recipient.Kind !=
			wnotemgr.RecipientEphemeralTransparent {

			continue
		}
		ref, err := st.accounts.
			EphemeralByAddress(sent.Recipient.Address).
			UnwrapOrErr(errNoValue)
		if err != nil {
			continue
		}
		err = st.accounts.MarkEphemeralUsed(
			ref.Account, ref.Index, data.TxID,
		)
		if err != nil {
			return err
		}
	}

	w.deriveRequests(st, data.TxID)
	w.commitLocked(st)
	return nil
}

// SetTransactionStatus records the result of a status request: the
// transaction's lifecycle status and, when mined, its chain location. The
// outstanding status request, if any, is completed.
func (w *Wallet) SetTransactionStatus(txid chainhash.Hash,
	status wtxmgr.TxStatus, location fn.Option[wtxmgr.BlockIndex]) error {

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return err
	}

	st := w.stageLocked()
	st.txs.EnsureTx(txid)

	loc, haveLoc := location.UnwrapOrErr(errNoValue)
	if status == wtxmgr.StatusMined && haveLoc == nil {
		st.txs.PutTxMeta(txid, loc.Height, loc.Index)
		err := st.txs.InsertLocator(loc.Height, loc.Index, txid)
		if err != nil {
			return err
		}
	} else {
		height := fn.None[int32]()
		if haveLoc == nil {
			height = fn.Some(loc.Height)
		}
		if err := st.txs.SetStatus(txid, status, height); err != nil {
			return err
		}
	}

	st.requests.Complete(scanmgr.StatusRequest(txid))
	w.commitLocked(st)
	return nil
}

// RecordNoteSpend marks a note as consumed by the given transaction, for
// spends learned outside of block scanning. An unknown spender gains a
// placeholder record and the requests needed to identify it.
func (w *Wallet) RecordNoteSpend(id zutil.NoteID,
	spender chainhash.Hash) error {

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return err
	}

	st := w.stageLocked()
	if err := st.notes.RecordSpend(id, spender); err != nil {
		return err
	}
	st.txs.EnsureTx(spender)
	w.deriveRequests(st, spender)
	w.commitLocked(st)
	return nil
}

// deriveRequests queues the data requests implied by a transaction record's
// gaps: a status request while its chain position is unknown, and an
// enhancement request while its raw bytes are missing. Requests already
// satisfied by the record are completed.
func (w *Wallet) deriveRequests(st *staged, txid chainhash.Hash) {
	rec, err := st.txs.Tx(txid)
	if err != nil {
		return
	}

	if rec.Status == wtxmgr.StatusUnrecognized {
		st.requests.Queue(scanmgr.StatusRequest(txid))
	} else {
		st.requests.Complete(scanmgr.StatusRequest(txid))
	}

	if len(rec.Raw) == 0 {
		st.requests.Queue(scanmgr.EnhanceRequest(txid))
	} else {
		st.requests.Complete(scanmgr.EnhanceRequest(txid))
	}
}

// QueueRequest adds an explicit transaction data request, deduplicated
// against the outstanding set.
func (w *Wallet) QueueRequest(req scanmgr.TxDataRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return err
	}
	w.requests.Queue(req)
	return nil
}

// PendingRequests returns the outstanding transaction data requests in the
// order they were queued.
func (w *Wallet) PendingRequests() []scanmgr.TxDataRequest {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.requests.Pending()
}

// CompleteRequest removes a satisfied request from the outstanding set.
func (w *Wallet) CompleteRequest(req scanmgr.TxDataRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return err
	}
	w.requests.Complete(req)
	return nil
}
