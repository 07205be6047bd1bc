// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapshot

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/tlv"
	"github.com/zecsuite/zecwallet/waddrmgr"
	"github.com/zecsuite/zecwallet/wtxmgr"
	"github.com/zecsuite/zecwallet/zutil"
)

// Inner TLV types for account records.
const (
	typeAccountID          tlv.Type = 1
	typeAccountKind        tlv.Type = 2
	typeAccountPurpose     tlv.Type = 3
	typeAccountViewingKey  tlv.Type = 4
	typeAccountBirthHeight tlv.Type = 5
	typeAccountBirthHash   tlv.Type = 6
	typeAccountRecoverTo   tlv.Type = 7
	typeAccountSeedFP      tlv.Type = 8
	typeAccountHDIndex     tlv.Type = 9
	typeAccountAddresses   tlv.Type = 10
	typeAccountEphemeral   tlv.Type = 11

	typeEphemeralIndex   tlv.Type = 1
	typeEphemeralAddress tlv.Type = 2
	typeEphemeralUsedIn  tlv.Type = 3
	typeEphemeralSeenIn  tlv.Type = 4
)

// Inner TLV types for block, transaction, locator and utxo records.
const (
	typeBlockHeight          tlv.Type = 1
	typeBlockHash            tlv.Type = 2
	typeBlockTime            tlv.Type = 3
	typeBlockTxIDs           tlv.Type = 4
	typeBlockMemos           tlv.Type = 5
	typeBlockSaplingTreeSize tlv.Type = 6
	typeBlockSaplingOutputs  tlv.Type = 7
	typeBlockOrchardTreeSize tlv.Type = 8
	typeBlockOrchardActions  tlv.Type = 9

	typeMemoTxID        tlv.Type = 1
	typeMemoProtocol    tlv.Type = 2
	typeMemoOutputIndex tlv.Type = 3
	typeMemoData        tlv.Type = 4

	typeTxID     tlv.Type = 1
	typeTxStatus tlv.Type = 2
	typeTxBlock  tlv.Type = 3
	typeTxIndex  tlv.Type = 4
	typeTxExpiry tlv.Type = 5
	typeTxRaw    tlv.Type = 6
	typeTxFee    tlv.Type = 7
	typeTxTarget tlv.Type = 8

	typeLocatorHeight tlv.Type = 1
	typeLocatorIndex  tlv.Type = 2
	typeLocatorTxID   tlv.Type = 3

	typeUtxoTxID        tlv.Type = 1
	typeUtxoVout        tlv.Type = 2
	typeUtxoAccount     tlv.Type = 3
	typeUtxoAddress     tlv.Type = 4
	typeUtxoValue       tlv.Type = 5
	typeUtxoPkScript    tlv.Type = 6
	typeUtxoUnspentAt   tlv.Type = 7
	typeUtxoMinedHeight tlv.Type = 8

	typeUtxoSpendTxID    tlv.Type = 1
	typeUtxoSpendVout    tlv.Type = 2
	typeUtxoSpendSpender tlv.Type = 3
)

// ephemeralEntry is the serialized form of one ephemeral address slot.
type ephemeralEntry struct {
	Index uint32
	Addr  waddrmgr.EphemeralAddress
}

// encodeAccount encodes a single account record as a TLV blob.
func encodeAccount(a *waddrmgr.Account) ([]byte, error) {
	var (
		id        = uint32(a.ID)
		kind      = uint8(a.Kind)
		purpose   = uint8(a.Purpose)
		vk        = []byte(a.ViewingKey)
		bHeight   = uint32(a.Birthday.Height)
		bHash     = [32]byte(a.Birthday.Hash)
		recover   uint32
		seedFP    [32]byte
		hdIndex   uint32
		addresses = a.Addresses
	)

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeAccountID, &id),
		tlv.MakePrimitiveRecord(typeAccountKind, &kind),
		tlv.MakePrimitiveRecord(typeAccountPurpose, &purpose),
		tlv.MakePrimitiveRecord(typeAccountViewingKey, &vk),
		tlv.MakePrimitiveRecord(typeAccountBirthHeight, &bHeight),
		tlv.MakePrimitiveRecord(typeAccountBirthHash, &bHash),
	}
	a.Birthday.RecoverUntil.WhenSome(func(h int32) {
		recover = uint32(h)
		records = append(records, tlv.MakePrimitiveRecord(
			typeAccountRecoverTo, &recover,
		))
	})
	a.Derivation.WhenSome(func(d waddrmgr.HDDerivation) {
		seedFP = d.SeedFingerprint
		hdIndex = d.AccountIndex
		records = append(records,
			tlv.MakePrimitiveRecord(typeAccountSeedFP, &seedFP),
			tlv.MakePrimitiveRecord(typeAccountHDIndex, &hdIndex),
		)
	})
	if len(addresses) > 0 {
		records = append(records, listRecord(
			typeAccountAddresses, &addresses, "[]string",
			func(s string) ([]byte, error) {
				return []byte(s), nil
			},
			func(b []byte) (string, error) {
				return string(b), nil
			},
		))
	}
	if len(a.Ephemeral) > 0 {
		entries := make([]ephemeralEntry, 0, len(a.Ephemeral))
		for idx, addr := range a.Ephemeral {
			entries = append(entries, ephemeralEntry{
				Index: idx,
				Addr:  addr,
			})
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Index < entries[j].Index
		})
		records = append(records, listRecord(
			typeAccountEphemeral, &entries,
			"[]snapshot.ephemeralEntry",
			encodeEphemeral, decodeEphemeral,
		))
	}

	return encodeStream(records...)
}

// decodeAccount decodes a single account record from a TLV blob.
func decodeAccount(blob []byte) (*waddrmgr.Account, error) {
	var (
		id        uint32
		kind      uint8
		purpose   uint8
		vk        []byte
		bHeight   uint32
		bHash     [32]byte
		recover   uint32
		seedFP    [32]byte
		hdIndex   uint32
		addresses []string
		ephemeral []ephemeralEntry
	)

	types, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeAccountID, &id),
		tlv.MakePrimitiveRecord(typeAccountKind, &kind),
		tlv.MakePrimitiveRecord(typeAccountPurpose, &purpose),
		tlv.MakePrimitiveRecord(typeAccountViewingKey, &vk),
		tlv.MakePrimitiveRecord(typeAccountBirthHeight, &bHeight),
		tlv.MakePrimitiveRecord(typeAccountBirthHash, &bHash),
		tlv.MakePrimitiveRecord(typeAccountRecoverTo, &recover),
		tlv.MakePrimitiveRecord(typeAccountSeedFP, &seedFP),
		tlv.MakePrimitiveRecord(typeAccountHDIndex, &hdIndex),
		listRecord(
			typeAccountAddresses, &addresses, "[]string",
			func(s string) ([]byte, error) {
				return []byte(s), nil
			},
			func(b []byte) (string, error) {
				return string(b), nil
			},
		),
		listRecord(
			typeAccountEphemeral, &ephemeral,
			"[]snapshot.ephemeralEntry",
			encodeEphemeral, decodeEphemeral,
		),
	)
	if err != nil {
		return nil, err
	}

	account := &waddrmgr.Account{
		ID:         waddrmgr.AccountID(id),
		Kind:       waddrmgr.AccountKind(kind),
		Purpose:    waddrmgr.AccountPurpose(purpose),
		ViewingKey: string(vk),
		Birthday: waddrmgr.Birthday{
			Height: int32(bHeight),
			Hash:   chainhash.Hash(bHash),
		},
		Addresses: addresses,
		Ephemeral: make(map[uint32]waddrmgr.EphemeralAddress),
	}
	if parsed(types, typeAccountRecoverTo) {
		account.Birthday.RecoverUntil = fn.Some(int32(recover))
	}
	if parsed(types, typeAccountSeedFP) && parsed(types, typeAccountHDIndex) {
		account.Derivation = fn.Some(waddrmgr.HDDerivation{
			SeedFingerprint: seedFP,
			AccountIndex:    hdIndex,
		})
	}
	for _, entry := range ephemeral {
		if _, ok := account.Ephemeral[entry.Index]; ok {
			return nil, fmt.Errorf("duplicate ephemeral index %d "+
				"in account %d", entry.Index, id)
		}
		account.Ephemeral[entry.Index] = entry.Addr
	}

	return account, nil
}

func encodeEphemeral(e ephemeralEntry) ([]byte, error) {
	var (
		addr   = []byte(e.Addr.Address)
		usedIn [32]byte
		seenIn [32]byte
	)
	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeEphemeralIndex, &e.Index),
		tlv.MakePrimitiveRecord(typeEphemeralAddress, &addr),
	}
	e.Addr.UsedIn.WhenSome(func(txid chainhash.Hash) {
		usedIn = [32]byte(txid)
		records = append(records, tlv.MakePrimitiveRecord(
			typeEphemeralUsedIn, &usedIn,
		))
	})
	e.Addr.SeenIn.WhenSome(func(txid chainhash.Hash) {
		seenIn = [32]byte(txid)
		records = append(records, tlv.MakePrimitiveRecord(
			typeEphemeralSeenIn, &seenIn,
		))
	})
	return encodeStream(records...)
}

func decodeEphemeral(blob []byte) (ephemeralEntry, error) {
	var (
		entry  ephemeralEntry
		addr   []byte
		usedIn [32]byte
		seenIn [32]byte
	)
	types, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeEphemeralIndex, &entry.Index),
		tlv.MakePrimitiveRecord(typeEphemeralAddress, &addr),
		tlv.MakePrimitiveRecord(typeEphemeralUsedIn, &usedIn),
		tlv.MakePrimitiveRecord(typeEphemeralSeenIn, &seenIn),
	)
	if err != nil {
		return entry, err
	}

	entry.Addr.Address = string(addr)
	if parsed(types, typeEphemeralUsedIn) {
		entry.Addr.UsedIn = fn.Some(chainhash.Hash(usedIn))
	}
	if parsed(types, typeEphemeralSeenIn) {
		entry.Addr.SeenIn = fn.Some(chainhash.Hash(seenIn))
	}
	return entry, nil
}

// memoEntry is the serialized form of one block memo.
type memoEntry struct {
	ID   zutil.NoteID
	Memo []byte
}

// encodeBlock encodes a single block record as a TLV blob.
func encodeBlock(b *wtxmgr.BlockRecord) ([]byte, error) {
	var (
		height = uint32(b.Height)
		hash   = [32]byte(b.Hash)
		txids  = flattenHashes(b.TxIDs)
		optVal [4]uint32
	)

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeBlockHeight, &height),
		tlv.MakePrimitiveRecord(typeBlockHash, &hash),
		tlv.MakePrimitiveRecord(typeBlockTime, &b.Time),
	}
	if len(txids) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeBlockTxIDs, &txids,
		))
	}
	if len(b.Memos) > 0 {
		memos := make([]memoEntry, 0, len(b.Memos))
		for id, memo := range b.Memos {
			memos = append(memos, memoEntry{ID: id, Memo: memo})
		}
		sort.Slice(memos, func(i, j int) bool {
			return memos[i].ID.String() < memos[j].ID.String()
		})
		records = append(records, listRecord(
			typeBlockMemos, &memos, "[]snapshot.memoEntry",
			encodeMemo, decodeMemo,
		))
	}
	appendOpt := func(t tlv.Type, slot int, v fn.Option[uint32]) {
		v.WhenSome(func(u uint32) {
			optVal[slot] = u
			records = append(records, tlv.MakePrimitiveRecord(
				t, &optVal[slot],
			))
		})
	}
	appendOpt(typeBlockSaplingTreeSize, 0, b.SaplingTreeSize)
	appendOpt(typeBlockSaplingOutputs, 1, b.SaplingOutputCount)
	appendOpt(typeBlockOrchardTreeSize, 2, b.OrchardTreeSize)
	appendOpt(typeBlockOrchardActions, 3, b.OrchardActionCount)

	return encodeStream(records...)
}

// decodeBlock decodes a single block record from a TLV blob.
func decodeBlock(blob []byte) (*wtxmgr.BlockRecord, error) {
	var (
		height uint32
		hash   [32]byte
		txids  []byte
		memos  []memoEntry
		optVal [4]uint32
		block  = &wtxmgr.BlockRecord{}
	)

	types, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeBlockHeight, &height),
		tlv.MakePrimitiveRecord(typeBlockHash, &hash),
		tlv.MakePrimitiveRecord(typeBlockTime, &block.Time),
		tlv.MakePrimitiveRecord(typeBlockTxIDs, &txids),
		listRecord(
			typeBlockMemos, &memos, "[]snapshot.memoEntry",
			encodeMemo, decodeMemo,
		),
		tlv.MakePrimitiveRecord(typeBlockSaplingTreeSize, &optVal[0]),
		tlv.MakePrimitiveRecord(typeBlockSaplingOutputs, &optVal[1]),
		tlv.MakePrimitiveRecord(typeBlockOrchardTreeSize, &optVal[2]),
		tlv.MakePrimitiveRecord(typeBlockOrchardActions, &optVal[3]),
	)
	if err != nil {
		return nil, err
	}

	block.Height = int32(height)
	block.Hash = chainhash.Hash(hash)
	block.TxIDs, err = unflattenHashes(txids)
	if err != nil {
		return nil, err
	}
	block.Memos = make(map[zutil.NoteID][]byte, len(memos))
	for _, memo := range memos {
		block.Memos[memo.ID] = memo.Memo
	}
	if parsed(types, typeBlockSaplingTreeSize) {
		block.SaplingTreeSize = fn.Some(optVal[0])
	}
	if parsed(types, typeBlockSaplingOutputs) {
		block.SaplingOutputCount = fn.Some(optVal[1])
	}
	if parsed(types, typeBlockOrchardTreeSize) {
		block.OrchardTreeSize = fn.Some(optVal[2])
	}
	if parsed(types, typeBlockOrchardActions) {
		block.OrchardActionCount = fn.Some(optVal[3])
	}

	return block, nil
}

func encodeMemo(m memoEntry) ([]byte, error) {
	var (
		txid     = [32]byte(m.ID.TxID)
		protocol = uint8(m.ID.Protocol)
	)
	return encodeStream(
		tlv.MakePrimitiveRecord(typeMemoTxID, &txid),
		tlv.MakePrimitiveRecord(typeMemoProtocol, &protocol),
		tlv.MakePrimitiveRecord(typeMemoOutputIndex, &m.ID.OutputIndex),
		tlv.MakePrimitiveRecord(typeMemoData, &m.Memo),
	)
}

func decodeMemo(blob []byte) (memoEntry, error) {
	var (
		entry    memoEntry
		txid     [32]byte
		protocol uint8
	)
	_, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeMemoTxID, &txid),
		tlv.MakePrimitiveRecord(typeMemoProtocol, &protocol),
		tlv.MakePrimitiveRecord(
			typeMemoOutputIndex, &entry.ID.OutputIndex,
		),
		tlv.MakePrimitiveRecord(typeMemoData, &entry.Memo),
	)
	if err != nil {
		return entry, err
	}
	entry.ID.TxID = chainhash.Hash(txid)
	entry.ID.Protocol = zutil.ShieldedProtocol(protocol)
	return entry, nil
}

// encodeTx encodes a single transaction record as a TLV blob.
func encodeTx(r *wtxmgr.TxRecord) ([]byte, error) {
	var (
		txid   = [32]byte(r.TxID)
		status = uint8(r.Status)
		block  uint32
		index  uint32
		expiry uint32
		fee    uint64
		target uint32
	)

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeTxID, &txid),
		tlv.MakePrimitiveRecord(typeTxStatus, &status),
	}
	r.Block.WhenSome(func(h int32) {
		block = uint32(h)
		records = append(records, tlv.MakePrimitiveRecord(
			typeTxBlock, &block,
		))
	})
	r.Index.WhenSome(func(i uint32) {
		index = i
		records = append(records, tlv.MakePrimitiveRecord(
			typeTxIndex, &index,
		))
	})
	r.Expiry.WhenSome(func(h int32) {
		expiry = uint32(h)
		records = append(records, tlv.MakePrimitiveRecord(
			typeTxExpiry, &expiry,
		))
	})
	if len(r.Raw) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeTxRaw, &r.Raw,
		))
	}
	r.Fee.WhenSome(func(amt btcutil.Amount) {
		fee = uint64(amt)
		records = append(records, tlv.MakePrimitiveRecord(
			typeTxFee, &fee,
		))
	})
	r.Target.WhenSome(func(h int32) {
		target = uint32(h)
		records = append(records, tlv.MakePrimitiveRecord(
			typeTxTarget, &target,
		))
	})

	return encodeStream(records...)
}

// decodeTx decodes a single transaction record from a TLV blob.
func decodeTx(blob []byte) (*wtxmgr.TxRecord, error) {
	var (
		txid   [32]byte
		status uint8
		block  uint32
		index  uint32
		expiry uint32
		raw    []byte
		fee    uint64
		target uint32
	)

	types, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeTxID, &txid),
		tlv.MakePrimitiveRecord(typeTxStatus, &status),
		tlv.MakePrimitiveRecord(typeTxBlock, &block),
		tlv.MakePrimitiveRecord(typeTxIndex, &index),
		tlv.MakePrimitiveRecord(typeTxExpiry, &expiry),
		tlv.MakePrimitiveRecord(typeTxRaw, &raw),
		tlv.MakePrimitiveRecord(typeTxFee, &fee),
		tlv.MakePrimitiveRecord(typeTxTarget, &target),
	)
	if err != nil {
		return nil, err
	}

	rec := &wtxmgr.TxRecord{
		TxID:   chainhash.Hash(txid),
		Status: wtxmgr.TxStatus(status),
		Raw:    raw,
	}
	if parsed(types, typeTxBlock) {
		rec.Block = fn.Some(int32(block))
	}
	if parsed(types, typeTxIndex) {
		rec.Index = fn.Some(index)
	}
	if parsed(types, typeTxExpiry) {
		rec.Expiry = fn.Some(int32(expiry))
	}
	if parsed(types, typeTxFee) {
		rec.Fee = fn.Some(btcutil.Amount(fee))
	}
	if parsed(types, typeTxTarget) {
		rec.Target = fn.Some(int32(target))
	}

	return rec, nil
}

// encodeLocator encodes a single locator binding as a TLV blob.
func encodeLocator(e wtxmgr.LocatorEntry) ([]byte, error) {
	var (
		height = uint32(e.Height)
		txid   = [32]byte(e.TxID)
	)
	return encodeStream(
		tlv.MakePrimitiveRecord(typeLocatorHeight, &height),
		tlv.MakePrimitiveRecord(typeLocatorIndex, &e.Index),
		tlv.MakePrimitiveRecord(typeLocatorTxID, &txid),
	)
}

// decodeLocator decodes a single locator binding from a TLV blob.
func decodeLocator(blob []byte) (wtxmgr.LocatorEntry, error) {
	var (
		entry  wtxmgr.LocatorEntry
		height uint32
		txid   [32]byte
	)
	_, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeLocatorHeight, &height),
		tlv.MakePrimitiveRecord(typeLocatorIndex, &entry.Index),
		tlv.MakePrimitiveRecord(typeLocatorTxID, &txid),
	)
	if err != nil {
		return entry, err
	}
	entry.Height = int32(height)
	entry.TxID = chainhash.Hash(txid)
	return entry, nil
}

// encodeUtxo encodes a single transparent output record as a TLV blob.
func encodeUtxo(u *wtxmgr.Utxo) ([]byte, error) {
	var (
		txid      = [32]byte(u.OutPoint.Hash)
		account   = uint32(u.Account)
		addr      = []byte(u.Address)
		value     = uint64(u.Value)
		unspentAt uint32
		mined     uint32
	)

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeUtxoTxID, &txid),
		tlv.MakePrimitiveRecord(typeUtxoVout, &u.OutPoint.Index),
		tlv.MakePrimitiveRecord(typeUtxoAccount, &account),
		tlv.MakePrimitiveRecord(typeUtxoAddress, &addr),
		tlv.MakePrimitiveRecord(typeUtxoValue, &value),
	}
	if len(u.PkScript) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeUtxoPkScript, &u.PkScript,
		))
	}
	u.MaxObservedUnspent.WhenSome(func(h int32) {
		unspentAt = uint32(h)
		records = append(records, tlv.MakePrimitiveRecord(
			typeUtxoUnspentAt, &unspentAt,
		))
	})
	u.MinedHeight.WhenSome(func(h int32) {
		mined = uint32(h)
		records = append(records, tlv.MakePrimitiveRecord(
			typeUtxoMinedHeight, &mined,
		))
	})

	return encodeStream(records...)
}

// decodeUtxo decodes a single transparent output record from a TLV blob.
func decodeUtxo(blob []byte) (*wtxmgr.Utxo, error) {
	var (
		txid      [32]byte
		vout      uint32
		account   uint32
		addr      []byte
		value     uint64
		pkScript  []byte
		unspentAt uint32
		mined     uint32
	)

	types, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeUtxoTxID, &txid),
		tlv.MakePrimitiveRecord(typeUtxoVout, &vout),
		tlv.MakePrimitiveRecord(typeUtxoAccount, &account),
		tlv.MakePrimitiveRecord(typeUtxoAddress, &addr),
		tlv.MakePrimitiveRecord(typeUtxoValue, &value),
		tlv.MakePrimitiveRecord(typeUtxoPkScript, &pkScript),
		tlv.MakePrimitiveRecord(typeUtxoUnspentAt, &unspentAt),
		tlv.MakePrimitiveRecord(typeUtxoMinedHeight, &mined),
	)
	if err != nil {
		return nil, err
	}

	utxo := &wtxmgr.Utxo{
		OutPoint: wtxmgr.OutPoint{
			Hash:  chainhash.Hash(txid),
			Index: vout,
		},
		Account:  waddrmgr.AccountID(account),
		Address:  string(addr),
		Value:    btcutil.Amount(value),
		PkScript: pkScript,
	}
	if parsed(types, typeUtxoUnspentAt) {
		utxo.MaxObservedUnspent = fn.Some(int32(unspentAt))
	}
	if parsed(types, typeUtxoMinedHeight) {
		utxo.MinedHeight = fn.Some(int32(mined))
	}

	return utxo, nil
}

// encodeUtxoSpend encodes a single transparent spend record as a TLV blob.
func encodeUtxoSpend(s wtxmgr.UtxoSpend) ([]byte, error) {
	var (
		txid    = [32]byte(s.OutPoint.Hash)
		spender = [32]byte(s.Spender)
	)
	return encodeStream(
		tlv.MakePrimitiveRecord(typeUtxoSpendTxID, &txid),
		tlv.MakePrimitiveRecord(typeUtxoSpendVout, &s.OutPoint.Index),
		tlv.MakePrimitiveRecord(typeUtxoSpendSpender, &spender),
	)
}

// decodeUtxoSpend decodes a single transparent spend record from a TLV blob.
func decodeUtxoSpend(blob []byte) (wtxmgr.UtxoSpend, error) {
	var (
		spend   wtxmgr.UtxoSpend
		txid    [32]byte
		spender [32]byte
	)
	_, err := decodeStream(
		blob,
		tlv.MakePrimitiveRecord(typeUtxoSpendTxID, &txid),
		tlv.MakePrimitiveRecord(typeUtxoSpendVout, &spend.OutPoint.Index),
		tlv.MakePrimitiveRecord(typeUtxoSpendSpender, &spender),
	)
	if err != nil {
		return spend, err
	}
	spend.OutPoint.Hash = chainhash.Hash(txid)
	spend.Spender = chainhash.Hash(spender)
	return spend, nil
}

// flattenHashes concatenates hashes into a single byte slice.
func flattenHashes(hashes []chainhash.Hash) []byte {
	flat := make([]byte, 0, len(hashes)*chainhash.HashSize)
	for i := range hashes {
		flat = append(flat, hashes[i][:]...)
	}
	return flat
}

// unflattenHashes splits a byte slice produced by flattenHashes.
func unflattenHashes(flat []byte) ([]chainhash.Hash, error) {
	if len(flat)%chainhash.HashSize != 0 {
		return nil, fmt.Errorf("hash list length %d is not a multiple "+
			"of %d", len(flat), chainhash.HashSize)
	}
	hashes := make([]chainhash.Hash, 0, len(flat)/chainhash.HashSize)
	for off := 0; off < len(flat); off += chainhash.HashSize {
		var h chainhash.Hash
		copy(h[:], flat[off:off+chainhash.HashSize])
		hashes = append(hashes, h)
	}
	return hashes, nil
}
