// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package chunkfile

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cosnicolaou/tsbatch"
	"github.com/cosnicolaou/tsbatch/internal/compr"
)

// Info summarizes a chunk file's header.
type Info struct {
	Schema      []tsbatch.Type
	Compression string
	Rows        int
	BodySize    int
}

// Scanner returns the successive compressed batch rows of a chunk file.
// It implements the scan operator's BatchSource. The file is read and
// decompressed on the first call to Scan; Rescan restarts row iteration
// over the decompressed body.
type Scanner struct {
	rd     io.Reader
	loaded bool
	done   bool
	err    error
	info   Info
	body   []byte
	pos    int
	nrow   int
	row    tsbatch.CompressedRow
}

// NewScanner returns a new instance of Scanner reading from rd.
func NewScanner(rd io.Reader) *Scanner {
	return &Scanner{rd: rd}
}

func (sc *Scanner) load() error {
	data, err := io.ReadAll(sc.rd)
	if err != nil {
		return err
	}
	buf := data
	if len(buf) < len(FileMagic)+1 {
		return fmt.Errorf("chunk file too small: %d bytes", len(data))
	}
	for i, m := range FileMagic {
		if buf[i] != m {
			return fmt.Errorf("wrong file magic: %x", buf[:len(FileMagic)])
		}
	}
	buf = buf[len(FileMagic):]
	if buf[0] != fileVersion {
		return fmt.Errorf("unsupported chunk file version: %d", buf[0])
	}
	buf = buf[1:]
	ncols, used := binary.Uvarint(buf)
	if used <= 0 || uint64(len(buf[used:])) < ncols {
		return fmt.Errorf("truncated chunk file schema")
	}
	buf = buf[used:]
	sc.info.Schema = make([]tsbatch.Type, ncols)
	for i := range sc.info.Schema {
		sc.info.Schema[i] = tsbatch.Type(buf[i])
	}
	buf = buf[ncols:]
	nameLen, used := binary.Uvarint(buf)
	if used <= 0 || uint64(len(buf[used:])) < nameLen {
		return fmt.Errorf("truncated compression name")
	}
	sc.info.Compression = string(buf[used : used+int(nameLen)])
	buf = buf[used+int(nameLen):]
	rows, used := binary.Uvarint(buf)
	if used <= 0 {
		return fmt.Errorf("truncated row count")
	}
	buf = buf[used:]
	rawSize, used := binary.Uvarint(buf)
	if used <= 0 {
		return fmt.Errorf("truncated body size")
	}
	buf = buf[used:]
	sc.info.Rows = int(rows)
	sc.info.BodySize = int(rawSize)
	dec := compr.Decompression(sc.info.Compression)
	if dec == nil {
		return fmt.Errorf("unknown compression: %q", sc.info.Compression)
	}
	sc.body = make([]byte, rawSize)
	if err := dec.Decompress(buf, sc.body); err != nil {
		return fmt.Errorf("failed to decompress chunk body: %v", err)
	}
	sc.row = make(tsbatch.CompressedRow, ncols)
	sc.loaded = true
	return nil
}

// Scan returns true if there is a batch row to be returned.
func (sc *Scanner) Scan(ctx context.Context) bool {
	if sc.err != nil || sc.done {
		return false
	}
	select {
	case <-ctx.Done():
		sc.err = ctx.Err()
		return false
	default:
	}
	if !sc.loaded {
		if err := sc.load(); err != nil {
			sc.err = err
			return false
		}
	}
	if sc.nrow >= sc.info.Rows {
		sc.done = true
		return false
	}
	buf := sc.body[sc.pos:]
	for i, t := range sc.info.Schema {
		var (
			v   tsbatch.Datum
			err error
		)
		v, buf, err = readDatum(buf, t)
		if err != nil {
			sc.err = fmt.Errorf("row %d: %v", sc.nrow, err)
			return false
		}
		sc.row[i] = v
	}
	sc.pos = len(sc.body) - len(buf)
	sc.nrow++
	return true
}

// Row returns the batch row found by the last call to Scan. The row is
// valid only until the next call to Scan.
func (sc *Scanner) Row() tsbatch.CompressedRow {
	return sc.row
}

func (sc *Scanner) Err() error {
	return sc.err
}

// Info returns the file header summary; it is only valid once Scan has
// been called at least once.
func (sc *Scanner) Info() Info {
	return sc.info
}

// Rescan restarts iteration from the first batch row.
func (sc *Scanner) Rescan(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	sc.pos = 0
	sc.nrow = 0
	sc.done = false
	sc.err = nil
	return nil
}

// Close releases the decompressed body.
func (sc *Scanner) Close() error {
	sc.body = nil
	sc.done = true
	sc.loaded = false
	return nil
}
