// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package snapshot implements the versioned serialization of the wallet's
// complete in-memory state. The format is a single TLV stream whose records
// hold the individual store tables; table records are framed lists of nested
// TLV blobs, one per row.
//
// All top-level record types are odd so that decoders can skip tables added
// by later serialization versions while deciding, from the version record,
// whether the snapshot is safe to load at all.
package snapshot

import (
	"fmt"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
	"github.com/zecsuite/zecwallet/scanmgr"
	"github.com/zecsuite/zecwallet/shardtree"
	"github.com/zecsuite/zecwallet/waddrmgr"
	"github.com/zecsuite/zecwallet/wnotemgr"
	"github.com/zecsuite/zecwallet/wtxmgr"
	"github.com/zecsuite/zecwallet/zutil"
)

// Version is the serialization version written by Encode. Decode accepts
// snapshots at this version or below.
const Version uint32 = 1

// Top-level TLV types.
const (
	typeVersion       tlv.Type = 1
	typeNextAccountID tlv.Type = 3
	typeAccounts      tlv.Type = 5
	typeBlocks        tlv.Type = 7
	typeTxs           tlv.Type = 9
	typeLocator       tlv.Type = 11
	typeUtxos         tlv.Type = 13
	typeUtxoSpends    tlv.Type = 15
	typeNotes         tlv.Type = 17
	typeNoteSpends    tlv.Type = 19
	typeObservations  tlv.Type = 21
	typeSentNotes     tlv.Type = 23
	typeSaplingTree   tlv.Type = 25
	typeOrchardTree   tlv.Type = 27
	typeScanRanges    tlv.Type = 29
	typeRequests      tlv.Type = 31
)

// WalletState bundles every store table in its serialized form. The wallet
// facade produces one for Encode and consumes the result of Decode through
// the stores' restore constructors.
type WalletState struct {
	Version uint32

	NextAccountID waddrmgr.AccountID
	Accounts      []*waddrmgr.Account

	Blocks     []*wtxmgr.BlockRecord
	Txs        []*wtxmgr.TxRecord
	Locator    []wtxmgr.LocatorEntry
	Utxos      []*wtxmgr.Utxo
	UtxoSpends []wtxmgr.UtxoSpend

	Notes        []*wnotemgr.ReceivedNote
	NoteSpends   []wnotemgr.NoteSpend
	Observations []wnotemgr.SpendObservation
	SentNotes    []*wnotemgr.SentNote

	SaplingTree TreeRecord
	OrchardTree TreeRecord

	ScanRanges []scanmgr.ScanRange
	Requests   []scanmgr.TxDataRequest
}

// Encode writes the wallet state to w at the current serialization version.
func Encode(w io.Writer, state *WalletState) error {
	version := Version
	nextID := uint32(state.NextAccountID)

	saplingTree, err := encodeTree(&state.SaplingTree)
	if err != nil {
		return err
	}
	orchardTree, err := encodeTree(&state.OrchardTree)
	if err != nil {
		return err
	}

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeVersion, &version),
		tlv.MakePrimitiveRecord(typeNextAccountID, &nextID),
		listRecord(
			typeAccounts, &state.Accounts, "[]*waddrmgr.Account",
			encodeAccount, decodeAccount,
		),
		listRecord(
			typeBlocks, &state.Blocks, "[]*wtxmgr.BlockRecord",
			encodeBlock, decodeBlock,
		),
		listRecord(
			typeTxs, &state.Txs, "[]*wtxmgr.TxRecord",
			encodeTx, decodeTx,
		),
		listRecord(
			typeLocator, &state.Locator, "[]wtxmgr.LocatorEntry",
			encodeLocator, decodeLocator,
		),
		listRecord(
			typeUtxos, &state.Utxos, "[]*wtxmgr.Utxo",
			encodeUtxo, decodeUtxo,
		),
		listRecord(
			typeUtxoSpends, &state.UtxoSpends,
			"[]wtxmgr.UtxoSpend",
			encodeUtxoSpend, decodeUtxoSpend,
		),
		listRecord(
			typeNotes, &state.Notes, "[]*wnotemgr.ReceivedNote",
			encodeReceivedNote, decodeReceivedNote,
		),
		listRecord(
			typeNoteSpends, &state.NoteSpends,
			"[]wnotemgr.NoteSpend",
			encodeNoteSpend, decodeNoteSpend,
		),
		listRecord(
			typeObservations, &state.Observations,
			"[]wnotemgr.SpendObservation",
			encodeObservation, decodeObservation,
		),
		listRecord(
			typeSentNotes, &state.SentNotes,
			"[]*wnotemgr.SentNote",
			encodeSentNote, decodeSentNote,
		),
		tlv.MakePrimitiveRecord(typeSaplingTree, &saplingTree),
		tlv.MakePrimitiveRecord(typeOrchardTree, &orchardTree),
		listRecord(
			typeScanRanges, &state.ScanRanges,
			"[]scanmgr.ScanRange",
			encodeScanRange, decodeScanRange,
		),
		listRecord(
			typeRequests, &state.Requests,
			"[]scanmgr.TxDataRequest",
			encodeRequest, decodeRequest,
		),
	)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// Decode reads a wallet state snapshot from r. Snapshots written by a newer
// serialization version fail with ErrUnsupportedVersion; structurally
// malformed data fails with ErrCorruptSnapshot.
func Decode(r io.Reader) (*WalletState, error) {
	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, snapshotError(ErrCorruptSnapshot,
			"unable to read snapshot", err)
	}

	// The version is decoded on its own first, with every table record
	// skipped as an unknown odd type, so that an unsupported snapshot is
	// rejected on its version rather than on a parse failure.
	var version uint32
	types, err := decodeStream(blob, tlv.MakePrimitiveRecord(
		typeVersion, &version,
	))
	if err != nil {
		return nil, snapshotError(ErrCorruptSnapshot,
			"unable to decode snapshot header", err)
	}
	if !parsed(types, typeVersion) {
		return nil, snapshotError(ErrCorruptSnapshot,
			"snapshot carries no version record", nil)
	}
	if version > Version {
		str := fmt.Sprintf("snapshot version %d exceeds supported "+
			"version %d", version, Version)
		return nil, snapshotError(ErrUnsupportedVersion, str, nil)
	}

	var (
		state       = &WalletState{Version: version}
		nextID      uint32
		saplingTree []byte
		orchardTree []byte
	)
	_, err = decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeVersion, &version),
		tlv.MakePrimitiveRecord(typeNextAccountID, &nextID),
		listRecord(
			typeAccounts, &state.Accounts, "[]*waddrmgr.Account",
			encodeAccount, decodeAccount,
		),
		listRecord(
			typeBlocks, &state.Blocks, "[]*wtxmgr.BlockRecord",
			encodeBlock, decodeBlock,
		),
		listRecord(
			typeTxs, &state.Txs, "[]*wtxmgr.TxRecord",
			encodeTx, decodeTx,
		),
		listRecord(
			typeLocator, &state.Locator, "[]wtxmgr.LocatorEntry",
			encodeLocator, decodeLocator,
		),
		listRecord(
			typeUtxos, &state.Utxos, "[]*wtxmgr.Utxo",
			encodeUtxo, decodeUtxo,
		),
		listRecord(
			typeUtxoSpends, &state.UtxoSpends,
			"[]wtxmgr.UtxoSpend",
			encodeUtxoSpend, decodeUtxoSpend,
		),
		listRecord(
			typeNotes, &state.Notes, "[]*wnotemgr.ReceivedNote",
			encodeReceivedNote, decodeReceivedNote,
		),
		listRecord(
			typeNoteSpends, &state.NoteSpends,
			"[]wnotemgr.NoteSpend",
			encodeNoteSpend, decodeNoteSpend,
		),
		listRecord(
			typeObservations, &state.Observations,
			"[]wnotemgr.SpendObservation",
			encodeObservation, decodeObservation,
		),
		listRecord(
			typeSentNotes, &state.SentNotes,
			"[]*wnotemgr.SentNote",
			encodeSentNote, decodeSentNote,
		),
		tlv.MakePrimitiveRecord(typeSaplingTree, &saplingTree),
		tlv.MakePrimitiveRecord(typeOrchardTree, &orchardTree),
		listRecord(
			typeScanRanges, &state.ScanRanges,
			"[]scanmgr.ScanRange",
			encodeScanRange, decodeScanRange,
		),
		listRecord(
			typeRequests, &state.Requests,
			"[]scanmgr.TxDataRequest",
			encodeRequest, decodeRequest,
		),
	)
	if err != nil {
		return nil, snapshotError(ErrCorruptSnapshot,
			"unable to decode snapshot tables", err)
	}

	state.NextAccountID = waddrmgr.AccountID(nextID)
	state.SaplingTree, err = decodeTree(saplingTree)
	if err != nil {
		return nil, snapshotError(ErrCorruptSnapshot,
			"unable to decode sapling tree", err)
	}
	state.OrchardTree, err = decodeTree(orchardTree)
	if err != nil {
		return nil, snapshotError(ErrCorruptSnapshot,
			"unable to decode orchard tree", err)
	}

	log.Debugf("Decoded version %d snapshot: %d accounts, %d blocks, "+
		"%d txs, %d notes", version, len(state.Accounts),
		len(state.Blocks), len(state.Txs), len(state.Notes))

	return state, nil
}

// RestoreTrees reassembles both protocol tree adapters from the decoded
// snapshot.
func (s *WalletState) RestoreTrees(sapling, orchard shardtree.TreeEngine) (
	*shardtree.Adapter, *shardtree.Adapter) {

	return s.SaplingTree.Restore(zutil.Sapling, sapling),
		s.OrchardTree.Restore(zutil.Orchard, orchard)
}
