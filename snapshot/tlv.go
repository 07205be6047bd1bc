// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapshot

import (
	"bytes"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

// listEncoder builds a TLV encoder for a slice whose elements each encode to
// an independent blob. Elements are written back to back, each prefixed with
// a varint length.
func listEncoder[T any](typeName string,
	encode func(T) ([]byte, error)) tlv.Encoder {

	return func(w io.Writer, val interface{}, buf *[8]byte) error {
		v, ok := val.(*[]T)
		if !ok {
			return tlv.NewTypeForEncodingErr(val, typeName)
		}

		for _, item := range *v {
			blob, err := encode(item)
			if err != nil {
				return err
			}
			err = tlv.WriteVarInt(w, uint64(len(blob)), buf)
			if err != nil {
				return err
			}
			if _, err := w.Write(blob); err != nil {
				return err
			}
		}
		return nil
	}
}

// listDecoder builds the TLV decoder matching listEncoder: varint-length
// framed blobs are read until the record is exhausted.
func listDecoder[T any](typeName string,
	decode func([]byte) (T, error)) tlv.Decoder {

	return func(r io.Reader, val interface{}, buf *[8]byte,
		l uint64) error {

		v, ok := val.(*[]T)
		if !ok {
			return tlv.NewTypeForDecodingErr(val, typeName, l, l)
		}

		// A limited reader returns an EOF once the record's bytes are
		// consumed, which terminates the element loop.
		inner := io.LimitedReader{R: r, N: int64(l)}

		var items []T
		for {
			blobSize, err := tlv.ReadVarInt(&inner, buf)
			if err == io.EOF {
				break
			} else if err != nil {
				return err
			}

			blob := make([]byte, blobSize)
			if _, err := io.ReadFull(&inner, blob); err != nil {
				return err
			}

			item, err := decode(blob)
			if err != nil {
				return err
			}
			items = append(items, item)
		}

		*v = items
		return nil
	}
}

// listRecord binds a slice to a TLV type using the framed list codec.
func listRecord[T any](t tlv.Type, v *[]T, typeName string,
	encode func(T) ([]byte, error),
	decode func([]byte) (T, error)) tlv.Record {

	encoder := listEncoder[T](typeName, encode)
	return tlv.MakeDynamicRecord(t, v, func() uint64 {
		return recordSize(encoder, v)
	}, encoder, listDecoder[T](typeName, decode))
}

// recordSize returns the amount of bytes this TLV record will occupy when
// encoded.
func recordSize(encoder tlv.Encoder, v interface{}) uint64 {
	var (
		b   bytes.Buffer
		buf [8]byte
	)

	if err := encoder(&b, v, &buf); err != nil {
		// Encoding into a memory buffer only fails on a type mismatch,
		// which the callers in this package rule out.
		log.Errorf("encoding the record failed: %v", err)
	}

	return uint64(len(b.Bytes()))
}

// encodeStream encodes the given records as a standalone TLV blob.
func encodeStream(records ...tlv.Record) ([]byte, error) {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeStream decodes a standalone TLV blob, returning the parsed type map
// so callers can distinguish absent optional records from zero values.
func decodeStream(blob []byte, records ...tlv.Record) (tlv.TypeMap, error) {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}
	return stream.DecodeWithParsedTypes(bytes.NewReader(blob))
}

// parsed reports whether the record of the given type was fully parsed by
// the decoding stream.
func parsed(types tlv.TypeMap, t tlv.Type) bool {
	v, ok := types[t]
	return ok && v == nil
}
