// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapshot

import (
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/tlv"
	"github.com/zecsuite/zecwallet/scanmgr"
	"github.com/zecsuite/zecwallet/shardtree"
	"github.com/zecsuite/zecwallet/waddrmgr"
	"github.com/zecsuite/zecwallet/wnotemgr"
	"github.com/zecsuite/zecwallet/zutil"
)

// Inner TLV types for note, spend and observation records.
const (
	typeNoteProtocol tlv.Type = 1
	typeNoteAddress  tlv.Type = 2
	typeNoteValue    tlv.Type = 3
	typeNoteRho      tlv.Type = 4
	typeNoteSeedKind tlv.Type = 5
	typeNoteSeed     tlv.Type = 6

	typeRecvTxID        tlv.Type = 1
	typeRecvProtocol    tlv.Type = 2
	typeRecvOutputIndex tlv.Type = 3
	typeRecvAccount     tlv.Type = 4
	typeRecvNote        tlv.Type = 5
	typeRecvNullifier   tlv.Type = 6
	typeRecvIsChange    tlv.Type = 7
	typeRecvMemo        tlv.Type = 8
	typeRecvPosition    tlv.Type = 9
	typeRecvScope       tlv.Type = 10

	typeNoteSpendTxID        tlv.Type = 1
	typeNoteSpendProtocol    tlv.Type = 2
	typeNoteSpendOutputIndex tlv.Type = 3
	typeNoteSpendSpender     tlv.Type = 4

	typeObsProtocol  tlv.Type = 1
	typeObsNullifier tlv.Type = 2
	typeObsHeight    tlv.Type = 3
	typeObsIndex     tlv.Type = 4

	typeSentTxID             tlv.Type = 1
	typeSentPool             tlv.Type = 2
	typeSentOutputIndex      tlv.Type = 3
	typeSentFrom             tlv.Type = 4
	typeSentValue            tlv.Type = 5
	typeSentMemo             tlv.Type = 6
	typeSentRecipientKind    tlv.Type = 7
	typeSentRecipientAddress tlv.Type = 8
	typeSentRecipientPool    tlv.Type = 9
	typeSentRecipientAccount tlv.Type = 10
	typeSentOutPointTxID     tlv.Type = 11
	typeSentOutPointVout     tlv.Type = 12
	typeSentRecipientNote    tlv.Type = 13
)

// Inner TLV types for tree, scan range and data request records.
const (
	typeTreeCap         tlv.Type = 1
	typeTreeShards      tlv.Type = 2
	typeTreeCheckpoints tlv.Type = 3
	typeTreeSize        tlv.Type = 4
	typeTreeEndHeights  tlv.Type = 5

	typeShardIndex tlv.Type = 1
	typeShardData  tlv.Type = 2

	typeCheckpointID       tlv.Type = 1
	typeCheckpointPosition tlv.Type = 2

	typeEndHeightLevel tlv.Type = 1
	typeEndHeightIndex tlv.Type = 2
	typeEndHeightValue tlv.Type = 3

	typeRangeStart    tlv.Type = 1
	typeRangeEnd      tlv.Type = 2
	typeRangePriority tlv.Type = 3

	typeRequestKind       tlv.Type = 1
	typeRequestTxID       tlv.Type = 2
	typeRequestAddress    tlv.Type = 3
	typeRequestBlockStart tlv.Type = 4
	typeRequestBlockEnd   tlv.Type = 5
)

// encodeNotePayload encodes the protocol-level note payload as a TLV blob.
func encodeNotePayload(n wnotemgr.Note) ([]byte, error) {
	var (
		protocol = uint8(n.Protocol)
		value    = uint64(n.Value)
		rho      [32]byte
		seedKind = uint8(n.Rseed.Kind)
	)

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeNoteProtocol, &protocol),
		tlv.MakePrimitiveRecord(typeNoteAddress, &n.Recipient),
		tlv.MakePrimitiveRecord(typeNoteValue, &value),
	}
	n.Rho.WhenSome(func(r [32]byte) {
		rho = r
		records = append(records, tlv.MakePrimitiveRecord(
			typeNoteRho, &rho,
		))
	})
	records = append(records,
		tlv.MakePrimitiveRecord(typeNoteSeedKind, &seedKind),
		tlv.MakePrimitiveRecord(typeNoteSeed, &n.Rseed.Bytes),
	)

	return encodeStream(records...)
}

// decodeNotePayload decodes the protocol-level note payload from a TLV blob.
func decodeNotePayload(blob []byte) (wnotemgr.Note, error) {
	var (
		note     wnotemgr.Note
		protocol uint8
		value    uint64
		rho      [32]byte
		seedKind uint8
	)

	types, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeNoteProtocol, &protocol),
		tlv.MakePrimitiveRecord(typeNoteAddress, &note.Recipient),
		tlv.MakePrimitiveRecord(typeNoteValue, &value),
		tlv.MakePrimitiveRecord(typeNoteRho, &rho),
		tlv.MakePrimitiveRecord(typeNoteSeedKind, &seedKind),
		tlv.MakePrimitiveRecord(typeNoteSeed, &note.Rseed.Bytes),
	)
	if err != nil {
		return note, err
	}

	note.Protocol = zutil.ShieldedProtocol(protocol)
	note.Value = btcutil.Amount(value)
	note.Rseed.Kind = wnotemgr.SeedKind(seedKind)
	if parsed(types, typeNoteRho) {
		note.Rho = fn.Some(rho)
	}
	return note, nil
}

// encodeReceivedNote encodes a single received note as a TLV blob.
func encodeReceivedNote(n *wnotemgr.ReceivedNote) ([]byte, error) {
	payload, err := encodeNotePayload(n.Note)
	if err != nil {
		return nil, err
	}

	var (
		txid      = [32]byte(n.ID.TxID)
		protocol  = uint8(n.ID.Protocol)
		account   = uint32(n.Account)
		nullifier [32]byte
		isChange  uint8
		position  uint64
		scope     uint8
	)
	if n.IsChange {
		isChange = 1
	}

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeRecvTxID, &txid),
		tlv.MakePrimitiveRecord(typeRecvProtocol, &protocol),
		tlv.MakePrimitiveRecord(typeRecvOutputIndex, &n.ID.OutputIndex),
		tlv.MakePrimitiveRecord(typeRecvAccount, &account),
		tlv.MakePrimitiveRecord(typeRecvNote, &payload),
	}
	n.Nullifier.WhenSome(func(nf zutil.Nullifier) {
		nullifier = nf.Value
		records = append(records, tlv.MakePrimitiveRecord(
			typeRecvNullifier, &nullifier,
		))
	})
	records = append(records, tlv.MakePrimitiveRecord(
		typeRecvIsChange, &isChange,
	))
	if len(n.Memo) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeRecvMemo, &n.Memo,
		))
	}
	n.Position.WhenSome(func(p uint64) {
		position = p
		records = append(records, tlv.MakePrimitiveRecord(
			typeRecvPosition, &position,
		))
	})
	n.Scope.WhenSome(func(s wnotemgr.KeyScope) {
		scope = uint8(s)
		records = append(records, tlv.MakePrimitiveRecord(
			typeRecvScope, &scope,
		))
	})

	return encodeStream(records...)
}

// decodeReceivedNote decodes a single received note from a TLV blob.
func decodeReceivedNote(blob []byte) (*wnotemgr.ReceivedNote, error) {
	var (
		txid      [32]byte
		protocol  uint8
		outIndex  uint16
		account   uint32
		payload   []byte
		nullifier [32]byte
		isChange  uint8
		memo      []byte
		position  uint64
		scope     uint8
	)

	types, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeRecvTxID, &txid),
		tlv.MakePrimitiveRecord(typeRecvProtocol, &protocol),
		tlv.MakePrimitiveRecord(typeRecvOutputIndex, &outIndex),
		tlv.MakePrimitiveRecord(typeRecvAccount, &account),
		tlv.MakePrimitiveRecord(typeRecvNote, &payload),
		tlv.MakePrimitiveRecord(typeRecvNullifier, &nullifier),
		tlv.MakePrimitiveRecord(typeRecvIsChange, &isChange),
		tlv.MakePrimitiveRecord(typeRecvMemo, &memo),
		tlv.MakePrimitiveRecord(typeRecvPosition, &position),
		tlv.MakePrimitiveRecord(typeRecvScope, &scope),
	)
	if err != nil {
		return nil, err
	}

	payloadNote, err := decodeNotePayload(payload)
	if err != nil {
		return nil, err
	}

	note := &wnotemgr.ReceivedNote{
		ID: zutil.NoteID{
			TxID:        chainhash.Hash(txid),
			Protocol:    zutil.ShieldedProtocol(protocol),
			OutputIndex: outIndex,
		},
		Account:  waddrmgr.AccountID(account),
		Note:     payloadNote,
		IsChange: isChange != 0,
		Memo:     memo,
	}
	if parsed(types, typeRecvNullifier) {
		note.Nullifier = fn.Some(zutil.Nullifier{
			Protocol: note.ID.Protocol,
			Value:    nullifier,
		})
	}
	if parsed(types, typeRecvPosition) {
		note.Position = fn.Some(position)
	}
	if parsed(types, typeRecvScope) {
		note.Scope = fn.Some(wnotemgr.KeyScope(scope))
	}

	return note, nil
}

// encodeNoteSpend encodes a single note spend record as a TLV blob.
func encodeNoteSpend(s wnotemgr.NoteSpend) ([]byte, error) {
	var (
		txid     = [32]byte(s.NoteID.TxID)
		protocol = uint8(s.NoteID.Protocol)
		spender  = [32]byte(s.Spender)
	)
	return encodeStream(
		tlv.MakePrimitiveRecord(typeNoteSpendTxID, &txid),
		tlv.MakePrimitiveRecord(typeNoteSpendProtocol, &protocol),
		tlv.MakePrimitiveRecord(
			typeNoteSpendOutputIndex, &s.NoteID.OutputIndex,
		),
		tlv.MakePrimitiveRecord(typeNoteSpendSpender, &spender),
	)
}

// decodeNoteSpend decodes a single note spend record from a TLV blob.
func decodeNoteSpend(blob []byte) (wnotemgr.NoteSpend, error) {
	var (
		spend    wnotemgr.NoteSpend
		txid     [32]byte
		protocol uint8
		spender  [32]byte
	)
	_, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeNoteSpendTxID, &txid),
		tlv.MakePrimitiveRecord(typeNoteSpendProtocol, &protocol),
		tlv.MakePrimitiveRecord(
			typeNoteSpendOutputIndex, &spend.NoteID.OutputIndex,
		),
		tlv.MakePrimitiveRecord(typeNoteSpendSpender, &spender),
	)
	if err != nil {
		return spend, err
	}
	spend.NoteID.TxID = chainhash.Hash(txid)
	spend.NoteID.Protocol = zutil.ShieldedProtocol(protocol)
	spend.Spender = chainhash.Hash(spender)
	return spend, nil
}

// encodeObservation encodes a single spend observation as a TLV blob.
func encodeObservation(o wnotemgr.SpendObservation) ([]byte, error) {
	var (
		protocol = uint8(o.Nullifier.Protocol)
		height   = uint32(o.Height)
	)
	return encodeStream(
		tlv.MakePrimitiveRecord(typeObsProtocol, &protocol),
		tlv.MakePrimitiveRecord(typeObsNullifier, &o.Nullifier.Value),
		tlv.MakePrimitiveRecord(typeObsHeight, &height),
		tlv.MakePrimitiveRecord(typeObsIndex, &o.Index),
	)
}

// decodeObservation decodes a single spend observation from a TLV blob.
func decodeObservation(blob []byte) (wnotemgr.SpendObservation, error) {
	var (
		obs      wnotemgr.SpendObservation
		protocol uint8
		height   uint32
	)
	_, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeObsProtocol, &protocol),
		tlv.MakePrimitiveRecord(typeObsNullifier, &obs.Nullifier.Value),
		tlv.MakePrimitiveRecord(typeObsHeight, &height),
		tlv.MakePrimitiveRecord(typeObsIndex, &obs.Index),
	)
	if err != nil {
		return obs, err
	}
	obs.Nullifier.Protocol = zutil.ShieldedProtocol(protocol)
	obs.Height = int32(height)
	return obs, nil
}

// encodeSentNote encodes a single sent note as a TLV blob.
func encodeSentNote(n *wnotemgr.SentNote) ([]byte, error) {
	var (
		txid       = [32]byte(n.TxID)
		pool       = uint8(n.Pool)
		from       = uint32(n.From)
		value      = uint64(n.Value)
		recvKind   = uint8(n.Recipient.Kind)
		recvAddr   = []byte(n.Recipient.Address)
		recvPool   = uint8(n.Recipient.Pool)
		recvAcct   = uint32(n.Recipient.Account)
		opTxid     [32]byte
		opVout     uint32
		recvNote   []byte
		payloadErr error
	)

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeSentTxID, &txid),
		tlv.MakePrimitiveRecord(typeSentPool, &pool),
		tlv.MakePrimitiveRecord(typeSentOutputIndex, &n.OutputIndex),
		tlv.MakePrimitiveRecord(typeSentFrom, &from),
		tlv.MakePrimitiveRecord(typeSentValue, &value),
	}
	if len(n.Memo) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeSentMemo, &n.Memo,
		))
	}
	records = append(records, tlv.MakePrimitiveRecord(
		typeSentRecipientKind, &recvKind,
	))
	if len(recvAddr) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeSentRecipientAddress, &recvAddr,
		))
	}
	records = append(records,
		tlv.MakePrimitiveRecord(typeSentRecipientPool, &recvPool),
		tlv.MakePrimitiveRecord(typeSentRecipientAccount, &recvAcct),
	)
	n.Recipient.OutPoint.WhenSome(func(op wire.OutPoint) {
		opTxid = [32]byte(op.Hash)
		opVout = op.Index
		records = append(records,
			tlv.MakePrimitiveRecord(typeSentOutPointTxID, &opTxid),
			tlv.MakePrimitiveRecord(typeSentOutPointVout, &opVout),
		)
	})
	n.Recipient.Note.WhenSome(func(note wnotemgr.Note) {
		recvNote, payloadErr = encodeNotePayload(note)
		records = append(records, tlv.MakePrimitiveRecord(
			typeSentRecipientNote, &recvNote,
		))
	})
	if payloadErr != nil {
		return nil, payloadErr
	}

	return encodeStream(records...)
}

// decodeSentNote decodes a single sent note from a TLV blob.
func decodeSentNote(blob []byte) (*wnotemgr.SentNote, error) {
	var (
		txid     [32]byte
		pool     uint8
		outIndex uint16
		from     uint32
		value    uint64
		memo     []byte
		recvKind uint8
		recvAddr []byte
		recvPool uint8
		recvAcct uint32
		opTxid   [32]byte
		opVout   uint32
		recvNote []byte
	)

	types, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeSentTxID, &txid),
		tlv.MakePrimitiveRecord(typeSentPool, &pool),
		tlv.MakePrimitiveRecord(typeSentOutputIndex, &outIndex),
		tlv.MakePrimitiveRecord(typeSentFrom, &from),
		tlv.MakePrimitiveRecord(typeSentValue, &value),
		tlv.MakePrimitiveRecord(typeSentMemo, &memo),
		tlv.MakePrimitiveRecord(typeSentRecipientKind, &recvKind),
		tlv.MakePrimitiveRecord(typeSentRecipientAddress, &recvAddr),
		tlv.MakePrimitiveRecord(typeSentRecipientPool, &recvPool),
		tlv.MakePrimitiveRecord(typeSentRecipientAccount, &recvAcct),
		tlv.MakePrimitiveRecord(typeSentOutPointTxID, &opTxid),
		tlv.MakePrimitiveRecord(typeSentOutPointVout, &opVout),
		tlv.MakePrimitiveRecord(typeSentRecipientNote, &recvNote),
	)
	if err != nil {
		return nil, err
	}

	note := &wnotemgr.SentNote{
		TxID:        chainhash.Hash(txid),
		Pool:        zutil.Pool(pool),
		OutputIndex: outIndex,
		From:        waddrmgr.AccountID(from),
		Value:       btcutil.Amount(value),
		Memo:        memo,
		Recipient: wnotemgr.Recipient{
			Kind:    wnotemgr.RecipientKind(recvKind),
			Address: string(recvAddr),
			Pool:    zutil.Pool(recvPool),
			Account: waddrmgr.AccountID(recvAcct),
		},
	}
	if parsed(types, typeSentOutPointTxID) {
		note.Recipient.OutPoint = fn.Some(wire.OutPoint{
			Hash:  chainhash.Hash(opTxid),
			Index: opVout,
		})
	}
	if parsed(types, typeSentRecipientNote) {
		payload, err := decodeNotePayload(recvNote)
		if err != nil {
			return nil, err
		}
		note.Recipient.Note = fn.Some(payload)
	}

	return note, nil
}

// shardEntry is the serialized form of one shard subtree.
type shardEntry struct {
	Index uint64
	Data  []byte
}

// checkpointEntry is the serialized form of one tree checkpoint.
type checkpointEntry struct {
	ID       int32
	Position uint64
}

// TreeRecord is the serialized state of one protocol's shard tree: the
// engine-owned tree state plus the adapter's bookkeeping.
type TreeRecord struct {
	Cap         []byte
	Shards      []shardEntry
	Checkpoints []checkpointEntry
	Size        uint64
	EndHeights  []shardtree.EndHeightEntry
}

// NewTreeRecord captures an adapter's state into its serialized form.
func NewTreeRecord(a *shardtree.Adapter) TreeRecord {
	state := a.State()

	rec := TreeRecord{
		Cap:        append([]byte(nil), state.Cap...),
		Size:       a.Size(),
		EndHeights: a.EndHeights(),
	}
	for idx, data := range state.Shards {
		rec.Shards = append(rec.Shards, shardEntry{
			Index: idx,
			Data:  append([]byte(nil), data...),
		})
	}
	sort.Slice(rec.Shards, func(i, j int) bool {
		return rec.Shards[i].Index < rec.Shards[j].Index
	})
	for id, pos := range state.Checkpoints {
		rec.Checkpoints = append(rec.Checkpoints, checkpointEntry{
			ID:       id,
			Position: pos,
		})
	}
	sort.Slice(rec.Checkpoints, func(i, j int) bool {
		return rec.Checkpoints[i].ID < rec.Checkpoints[j].ID
	})
	return rec
}

// Restore reassembles an adapter from the serialized tree state.
func (r *TreeRecord) Restore(protocol zutil.ShieldedProtocol,
	engine shardtree.TreeEngine) *shardtree.Adapter {

	state := shardtree.NewTreeState()
	state.Cap = append([]byte(nil), r.Cap...)
	for _, shard := range r.Shards {
		state.Shards[shard.Index] = append([]byte(nil), shard.Data...)
	}
	for _, ckpt := range r.Checkpoints {
		state.Checkpoints[ckpt.ID] = ckpt.Position
	}
	return shardtree.RestoreAdapter(
		protocol, engine, state, r.Size, r.EndHeights,
	)
}

// encodeTree encodes one protocol's tree record as a TLV blob.
func encodeTree(r *TreeRecord) ([]byte, error) {
	records := []tlv.Record{}
	if len(r.Cap) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeTreeCap, &r.Cap,
		))
	}
	if len(r.Shards) > 0 {
		records = append(records, listRecord(
			typeTreeShards, &r.Shards, "[]snapshot.shardEntry",
			encodeShard, decodeShard,
		))
	}
	if len(r.Checkpoints) > 0 {
		records = append(records, listRecord(
			typeTreeCheckpoints, &r.Checkpoints,
			"[]snapshot.checkpointEntry",
			encodeCheckpoint, decodeCheckpoint,
		))
	}
	records = append(records, tlv.MakePrimitiveRecord(
		typeTreeSize, &r.Size,
	))
	if len(r.EndHeights) > 0 {
		records = append(records, listRecord(
			typeTreeEndHeights, &r.EndHeights,
			"[]shardtree.EndHeightEntry",
			encodeEndHeight, decodeEndHeight,
		))
	}
	return encodeStream(records...)
}

// decodeTree decodes one protocol's tree record from a TLV blob.
func decodeTree(blob []byte) (TreeRecord, error) {
	var rec TreeRecord
	_, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeTreeCap, &rec.Cap),
		listRecord(
			typeTreeShards, &rec.Shards, "[]snapshot.shardEntry",
			encodeShard, decodeShard,
		),
		listRecord(
			typeTreeCheckpoints, &rec.Checkpoints,
			"[]snapshot.checkpointEntry",
			encodeCheckpoint, decodeCheckpoint,
		),
		tlv.MakePrimitiveRecord(typeTreeSize, &rec.Size),
		listRecord(
			typeTreeEndHeights, &rec.EndHeights,
			"[]shardtree.EndHeightEntry",
			encodeEndHeight, decodeEndHeight,
		),
	)
	return rec, err
}

func encodeShard(s shardEntry) ([]byte, error) {
	return encodeStream(
		tlv.MakePrimitiveRecord(typeShardIndex, &s.Index),
		tlv.MakePrimitiveRecord(typeShardData, &s.Data),
	)
}

func decodeShard(blob []byte) (shardEntry, error) {
	var entry shardEntry
	_, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeShardIndex, &entry.Index),
		tlv.MakePrimitiveRecord(typeShardData, &entry.Data),
	)
	return entry, err
}

func encodeCheckpoint(c checkpointEntry) ([]byte, error) {
	id := uint32(c.ID)
	return encodeStream(
		tlv.MakePrimitiveRecord(typeCheckpointID, &id),
		tlv.MakePrimitiveRecord(typeCheckpointPosition, &c.Position),
	)
}

func decodeCheckpoint(blob []byte) (checkpointEntry, error) {
	var (
		entry checkpointEntry
		id    uint32
	)
	_, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeCheckpointID, &id),
		tlv.MakePrimitiveRecord(typeCheckpointPosition, &entry.Position),
	)
	entry.ID = int32(id)
	return entry, err
}

func encodeEndHeight(e shardtree.EndHeightEntry) ([]byte, error) {
	height := uint32(e.Height)
	return encodeStream(
		tlv.MakePrimitiveRecord(typeEndHeightLevel, &e.Node.Level),
		tlv.MakePrimitiveRecord(typeEndHeightIndex, &e.Node.Index),
		tlv.MakePrimitiveRecord(typeEndHeightValue, &height),
	)
}

func decodeEndHeight(blob []byte) (shardtree.EndHeightEntry, error) {
	var (
		entry  shardtree.EndHeightEntry
		height uint32
	)
	_, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeEndHeightLevel, &entry.Node.Level),
		tlv.MakePrimitiveRecord(typeEndHeightIndex, &entry.Node.Index),
		tlv.MakePrimitiveRecord(typeEndHeightValue, &height),
	)
	entry.Height = int32(height)
	return entry, err
}

// encodeScanRange encodes a single scan queue range as a TLV blob.
func encodeScanRange(r scanmgr.ScanRange) ([]byte, error) {
	var (
		start    = uint32(r.Start)
		end      = uint32(r.End)
		priority = uint8(r.Priority)
	)
	return encodeStream(
		tlv.MakePrimitiveRecord(typeRangeStart, &start),
		tlv.MakePrimitiveRecord(typeRangeEnd, &end),
		tlv.MakePrimitiveRecord(typeRangePriority, &priority),
	)
}

// decodeScanRange decodes a single scan queue range from a TLV blob.
func decodeScanRange(blob []byte) (scanmgr.ScanRange, error) {
	var (
		r        scanmgr.ScanRange
		start    uint32
		end      uint32
		priority uint8
	)
	_, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeRangeStart, &start),
		tlv.MakePrimitiveRecord(typeRangeEnd, &end),
		tlv.MakePrimitiveRecord(typeRangePriority, &priority),
	)
	if err != nil {
		return r, err
	}
	r.Start = int32(start)
	r.End = int32(end)
	r.Priority = scanmgr.ScanPriority(priority)
	return r, nil
}

// encodeRequest encodes a single transaction data request as a TLV blob.
func encodeRequest(r scanmgr.TxDataRequest) ([]byte, error) {
	var (
		kind       = uint8(r.Kind)
		txid       = [32]byte(r.TxID)
		addr       = []byte(r.Address)
		blockStart = uint32(r.BlockStart)
		blockEnd   uint32
	)

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeRequestKind, &kind),
		tlv.MakePrimitiveRecord(typeRequestTxID, &txid),
	}
	if len(addr) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeRequestAddress, &addr,
		))
	}
	records = append(records, tlv.MakePrimitiveRecord(
		typeRequestBlockStart, &blockStart,
	))
	r.BlockEnd.WhenSome(func(h int32) {
		blockEnd = uint32(h)
		records = append(records, tlv.MakePrimitiveRecord(
			typeRequestBlockEnd, &blockEnd,
		))
	})

	return encodeStream(records...)
}

// decodeRequest decodes a single transaction data request from a TLV blob.
func decodeRequest(blob []byte) (scanmgr.TxDataRequest, error) {
	var (
		req        scanmgr.TxDataRequest
		kind       uint8
		txid       [32]byte
		addr       []byte
		blockStart uint32
		blockEnd   uint32
	)

	types, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeRequestKind, &kind),
		tlv.MakePrimitiveRecord(typeRequestTxID, &txid),
		tlv.MakePrimitiveRecord(typeRequestAddress, &addr),
		tlv.MakePrimitiveRecord(typeRequestBlockStart, &blockStart),
		tlv.MakePrimitiveRecord(typeRequestBlockEnd, &blockEnd),
	)
	if err != nil {
		return req, err
	}

	req.Kind = scanmgr.RequestKind(kind)
	req.TxID = chainhash.Hash(txid)
	req.Address = string(addr)
	req.BlockStart = int32(blockStart)
	if parsed(types, typeRequestBlockEnd) {
		req.BlockEnd = fn.Some(int32(blockEnd))
	}
	return req, nil
}
