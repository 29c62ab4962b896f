// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package compr provides a unified interface wrapping the third-party
// block compression used for chunk file bodies.
package compr

import (
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Compressor appends the compressed contents of src to dst.
type Compressor interface {
	Name() string
	Compress(src, dst []byte) []byte
}

// Decompressor decompresses src into dst, which must be sized to exactly
// fit the decoded data.
type Decompressor interface {
	Name() string
	Decompress(src, dst []byte) error
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	e, err := zstd.NewWriter(nil)
	if err != nil {
		panic(err)
	}
	zstdEncoder = e
	d, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
	zstdDecoder = d
}

type zstdCompressor struct{}

func (zstdCompressor) Name() string { return "zstd" }

func (zstdCompressor) Compress(src, dst []byte) []byte {
	return zstdEncoder.EncodeAll(src, dst)
}

type zstdDecompressor struct{}

func (zstdDecompressor) Name() string { return "zstd" }

func (zstdDecompressor) Decompress(src, dst []byte) error {
	into := dst[:0]
	out, err := zstdDecoder.DecodeAll(src, into)
	if err != nil {
		return err
	}
	if len(out) != len(dst) {
		return fmt.Errorf("zstd: decompressed %d bytes, want %d", len(out), len(dst))
	}
	return nil
}

type s2Compressor struct{}

func (s2Compressor) Name() string { return "s2" }

func (s2Compressor) Compress(src, dst []byte) []byte {
	return append(dst, s2.Encode(nil, src)...)
}

type s2Decompressor struct{}

func (s2Decompressor) Name() string { return "s2" }

func (s2Decompressor) Decompress(src, dst []byte) error {
	out, err := s2.Decode(dst[:0], src)
	if err != nil {
		return err
	}
	if len(out) != len(dst) {
		return fmt.Errorf("s2: decompressed %d bytes, want %d", len(out), len(dst))
	}
	return nil
}

// Compression returns the named Compressor, or nil if name is unknown.
func Compression(name string) Compressor {
	switch name {
	case "zstd":
		return zstdCompressor{}
	case "s2":
		return s2Compressor{}
	}
	return nil
}

// Decompression returns the named Decompressor, or nil if name is
// unknown.
func Decompression(name string) Decompressor {
	switch name {
	case "zstd":
		return zstdDecompressor{}
	case "s2":
		return s2Decompressor{}
	}
	return nil
}
