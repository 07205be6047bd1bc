// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scanmgr

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// RequestKind identifies the type of out-of-band transaction data a scan
// needs the backend to fetch.
type RequestKind uint8

const (
	// RequestGetStatus asks for the confirmation status of a transaction
	// the wallet learned about indirectly, e.g. through a revealed
	// nullifier.
	RequestGetStatus RequestKind = iota

	// RequestEnhance asks for the full raw transaction so its outputs
	// can be trial-decrypted and its fee computed.
	RequestEnhance

	// RequestSpendsFromAddress asks for transactions spending from a
	// transparent address over a height range, used to detect spends of
	// ephemeral addresses that have no nullifiers.
	RequestSpendsFromAddress
)

// String returns the RequestKind as a human-readable name.
func (k RequestKind) String() string {
	switch k {
	case RequestGetStatus:
		return "get-status"
	case RequestEnhance:
		return "enhance"
	case RequestSpendsFromAddress:
		return "spends-from-address"
	default:
		return fmt.Sprintf("unknown request kind (%d)", uint8(k))
	}
}

// TxDataRequest describes one unit of transaction data the wallet still
// needs. TxID is set for status and enhancement requests; Address and the
// BlockStart/BlockEnd height range (half-open, with None meaning
// unbounded) are set for address-based requests.
//
// The struct is comparable and doubles as its own deduplication key: two
// requests with the same kind and payload are the same request.
type TxDataRequest struct {
	Kind       RequestKind
	TxID       chainhash.Hash
	Address    string
	BlockStart int32
	BlockEnd   fn.Option[int32]
}

// String returns a short description of the request for logging.
func (r TxDataRequest) String() string {
	switch r.Kind {
	case RequestSpendsFromAddress:
		end := "tip"
		r.BlockEnd.WhenSome(func(h int32) {
			end = fmt.Sprintf("%d", h)
		})
		return fmt.Sprintf("%v(%s, [%d, %s))", r.Kind, r.Address,
			r.BlockStart, end)
	default:
		return fmt.Sprintf("%v(%v)", r.Kind, r.TxID)
	}
}

// StatusRequest builds a confirmation-status request for a transaction.
func StatusRequest(txid chainhash.Hash) TxDataRequest {
	return TxDataRequest{Kind: RequestGetStatus, TxID: txid}
}

// EnhanceRequest builds a full-transaction fetch request.
func EnhanceRequest(txid chainhash.Hash) TxDataRequest {
	return TxDataRequest{Kind: RequestEnhance, TxID: txid}
}

// SpendsFromAddressRequest builds an address-scan request over the given
// half-open height range. A None end leaves the range open at the tip.
func SpendsFromAddressRequest(addr string, start int32,
	end fn.Option[int32]) TxDataRequest {

	return TxDataRequest{
		Kind:       RequestSpendsFromAddress,
		Address:    addr,
		BlockStart: start,
		BlockEnd:   end,
	}
}

// RequestQueue tracks outstanding transaction data requests in insertion
// order, deduplicating on kind and payload.
//
// The queue performs no locking of its own; the wallet facade serializes
// all access.
type RequestQueue struct {
	pending map[TxDataRequest]struct{}
	order   []TxDataRequest
}

// NewRequestQueue creates an empty request queue.
func NewRequestQueue() *RequestQueue {
	return &RequestQueue{
		pending: make(map[TxDataRequest]struct{}),
	}
}

// Queue appends a request unless an identical one is already pending.
// It reports whether the request was newly added.
func (q *RequestQueue) Queue(req TxDataRequest) bool {
	if _, ok := q.pending[req]; ok {
		return false
	}
	q.pending[req] = struct{}{}
	q.order = append(q.order, req)
	log.Tracef("Queued data request %v", req)
	return true
}

// Pending returns the outstanding requests in insertion order.
func (q *RequestQueue) Pending() []TxDataRequest {
	return append([]TxDataRequest(nil), q.order...)
}

// NumPending returns the number of outstanding requests.
func (q *RequestQueue) NumPending() int {
	return len(q.order)
}

// Complete removes a satisfied request from the queue. Completing a
// request that is not pending is a no-op: the same answer may satisfy a
// request on multiple paths.
func (q *RequestQueue) Complete(req TxDataRequest) {
	if _, ok := q.pending[req]; !ok {
		return
	}
	delete(q.pending, req)
	for i, r := range q.order {
		if r == req {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of the queue, used by the facade to stage
// multi-store mutations.
func (q *RequestQueue) Clone() *RequestQueue {
	dup := NewRequestQueue()
	dup.order = append([]TxDataRequest(nil), q.order...)
	for req := range q.pending {
		dup.pending[req] = struct{}{}
	}
	return dup
}

// RestoreRequestQueue reassembles a queue from decoded snapshot requests,
// preserving their order and dropping duplicates.
func RestoreRequestQueue(requests []TxDataRequest) *RequestQueue {
	q := NewRequestQueue()
	for _, req := range requests {
		q.Queue(req)
	}
	return q
}
