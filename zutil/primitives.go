// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zutil

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Pool identifies the value pool an output belongs to. Transparent outputs
// live in the transparent pool; shielded outputs live in the Sapling or
// Orchard pool.
type Pool uint8

const (
	PoolTransparent Pool = iota
	PoolSapling
	PoolOrchard
)

// String returns the Pool as a human-readable name.
func (p Pool) String() string {
	switch p {
	case PoolTransparent:
		return "transparent"
	case PoolSapling:
		return "sapling"
	case PoolOrchard:
		return "orchard"
	default:
		return fmt.Sprintf("unknown pool (%d)", uint8(p))
	}
}

// ShieldedProtocol identifies one of the shielded value protocols. It is the
// subset of Pool for which note commitments, nullifiers and shard trees
// exist.
type ShieldedProtocol uint8

const (
	Sapling ShieldedProtocol = iota
	Orchard
)

// Pool returns the value pool the protocol's outputs belong to.
func (p ShieldedProtocol) Pool() Pool {
	if p == Orchard {
		return PoolOrchard
	}
	return PoolSapling
}

// String returns the ShieldedProtocol as a human-readable name.
func (p ShieldedProtocol) String() string {
	switch p {
	case Sapling:
		return "sapling"
	case Orchard:
		return "orchard"
	default:
		return fmt.Sprintf("unknown protocol (%d)", uint8(p))
	}
}

// Nullifier is the value revealed on-chain when a shielded note is spent.
// Nullifiers are only comparable between notes of the same protocol, so the
// protocol tag is part of the identity.
type Nullifier struct {
	Protocol ShieldedProtocol
	Value    [32]byte
}

// String returns the protocol tag followed by the hex-encoded nullifier
// value.
func (n Nullifier) String() string {
	return n.Protocol.String() + ":" + hex.EncodeToString(n.Value[:])
}

// NoteID uniquely identifies a shielded output within the wallet: the
// transaction that created it, the protocol of the output, and the index of
// the output (Sapling) or action (Orchard) within that transaction.
type NoteID struct {
	TxID        chainhash.Hash
	Protocol    ShieldedProtocol
	OutputIndex uint16
}

// String returns the NoteID in txid:protocol:index form.
func (id NoteID) String() string {
	return fmt.Sprintf("%v:%v:%d", id.TxID, id.Protocol, id.OutputIndex)
}
