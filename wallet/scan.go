// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"runtime"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/sync/errgroup"
)

// CompactBlock is an encoded compact block as fetched from a light wallet
// server. Data is the protocol-level compact encoding; this package does not
// interpret it.
type CompactBlock struct {
	Height int32
	Hash   chainhash.Hash
	Time   uint32
	Data   []byte
}

// Decryptor trial-decrypts compact blocks against a set of viewing keys.
// Implementations must be safe for concurrent use.
type Decryptor interface {
	// ScanBlock scans one compact block and returns its wallet-relevant
	// content, which may be empty.
	ScanBlock(ctx context.Context, viewingKeys []string,
		block *CompactBlock) (*ScannedBlock, error)
}

// ScanBlocks trial-decrypts a contiguous batch of compact blocks against all
// of the wallet's viewing keys and ingests the results. Blocks are scanned
// concurrently; ingestion happens once, in height order, after every block
// has been scanned.
func (w *Wallet) ScanBlocks(ctx context.Context, dec Decryptor,
	blocks []*CompactBlock) error {

	if len(blocks) == 0 {
		return nil
	}

	w.mu.RLock()
	accounts := w.accounts.Accounts()
	w.mu.RUnlock()

	viewingKeys := make([]string, 0, len(accounts))
	for _, account := range accounts {
		viewingKeys = append(viewingKeys, account.ViewingKey)
	}

	scanned := make([]*ScannedBlock, len(blocks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, block := range blocks {
		i, block := i, block
		g.Go(func() error {
			result, err := dec.ScanBlock(gctx, viewingKeys, block)
			if err != nil {
				return err
			}
			scanned[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return w.IngestBlocks(scanned)
}
