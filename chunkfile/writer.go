// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package chunkfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cosnicolaou/tsbatch"
	"github.com/cosnicolaou/tsbatch/internal/compr"
)

type writerOpts struct {
	compression string
}

// WriterOption represents an option to NewWriter.
type WriterOption func(*writerOpts)

// WithCompression selects the block compression for the file body, zstd
// by default.
func WithCompression(name string) WriterOption {
	return func(o *writerOpts) {
		o.compression = name
	}
}

// Writer serializes compressed batch rows into a chunk file. Rows are
// buffered and written, block-compressed, by Close.
type Writer struct {
	w      io.Writer
	schema []tsbatch.Type
	comp   compr.Compressor
	body   []byte
	rows   int
	err    error
}

// NewWriter returns a Writer serializing rows of the supplied column
// schema to w.
func NewWriter(w io.Writer, schema []tsbatch.Type, opts ...WriterOption) (*Writer, error) {
	o := writerOpts{compression: "zstd"}
	for _, fn := range opts {
		fn(&o)
	}
	comp := compr.Compression(o.compression)
	if comp == nil {
		return nil, fmt.Errorf("unknown compression: %q", o.compression)
	}
	return &Writer{w: w, schema: schema, comp: comp}, nil
}

// WriteRow appends one compressed batch row.
func (w *Writer) WriteRow(row tsbatch.CompressedRow) error {
	if w.err != nil {
		return w.err
	}
	if len(row) != len(w.schema) {
		w.err = fmt.Errorf("row has %d columns, schema has %d", len(row), len(w.schema))
		return w.err
	}
	for i, v := range row {
		w.body, w.err = appendDatum(w.body, w.schema[i], v)
		if w.err != nil {
			return w.err
		}
	}
	w.rows++
	return nil
}

// Close writes the file header and the compressed body. It does not
// close the underlying writer.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	hdr := append([]byte{}, FileMagic...)
	hdr = append(hdr, fileVersion)
	hdr = binary.AppendUvarint(hdr, uint64(len(w.schema)))
	for _, t := range w.schema {
		hdr = append(hdr, byte(t))
	}
	name := w.comp.Name()
	hdr = binary.AppendUvarint(hdr, uint64(len(name)))
	hdr = append(hdr, name...)
	hdr = binary.AppendUvarint(hdr, uint64(w.rows))
	hdr = binary.AppendUvarint(hdr, uint64(len(w.body)))
	if _, err := w.w.Write(hdr); err != nil {
		return err
	}
	_, err := w.w.Write(w.comp.Compress(w.body, nil))
	return err
}
