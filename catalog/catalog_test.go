// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package catalog

import (
	"testing"

	"github.com/cosnicolaou/tsbatch"
)

const testCatalog = `
hypertables:
  - id: 1
    name: metrics
    partition_column: time
    chunk_interval: 86400
    space_partitions: 4
    columns:
      - {name: device, type: int64}
      - {name: time, type: timestamp}
      - {name: value, type: float64}
      - {name: region, type: string}
    compression:
      segment_by: [device]
      order_by:
        - {column: time, descending: true}
`

func load(t *testing.T) (*Catalog, *Hypertable) {
	t.Helper()
	cat, err := Load([]byte(testCatalog))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ht, err := cat.HypertableByName("metrics")
	if err != nil {
		t.Fatalf("HypertableByName: %v", err)
	}
	return cat, ht
}

func TestLoadSave(t *testing.T) {
	cat, ht := load(t)
	if ht.ID != 1 || len(ht.Columns) != 4 {
		t.Fatalf("unexpected hypertable: %+v", ht)
	}
	data, err := cat.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	again, err := Load(data)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	ht2, err := again.Hypertable(1)
	if err != nil {
		t.Fatalf("Hypertable: %v", err)
	}
	if ht2.Name != ht.Name || len(ht2.Compression.OrderBy) != 1 {
		t.Errorf("round trip mismatch: %+v", ht2)
	}
}

func TestCompressionInfo(t *testing.T) {
	_, ht := load(t)
	info, err := ht.CompressionInfo()
	if err != nil {
		t.Fatalf("CompressionInfo: %v", err)
	}
	wantNames := []string{"device", "time", "value", "region", CountColumnName, SequenceColumnName}
	if len(info.InputNames) != len(wantNames) {
		t.Fatalf("input names: %v", info.InputNames)
	}
	for i, n := range wantNames {
		if info.InputNames[i] != n {
			t.Errorf("input name %v: %v, want %v", i, info.InputNames[i], n)
		}
	}
	wantTypes := []tsbatch.Type{tsbatch.TypeInt64, tsbatch.TypeInt64, tsbatch.TypeFloat64, tsbatch.TypeBytes}
	for i, w := range wantTypes {
		if info.OutputTypes[i] != w {
			t.Errorf("output type %v: %v, want %v", i, info.OutputTypes[i], w)
		}
	}
	m := ht.DecompressionMap()
	want := []int{1, 2, 3, 4, tsbatch.CountColumnAttno, tsbatch.SequenceColumnAttno}
	for i, w := range want {
		if m[i] != w {
			t.Errorf("map entry %v: %v, want %v", i, m[i], w)
		}
	}
	schema, err := ht.InputSchema()
	if err != nil {
		t.Fatalf("InputSchema: %v", err)
	}
	wantSchema := []tsbatch.Type{
		tsbatch.TypeInt64, // segment-by keeps its type
		tsbatch.TypeBytes, tsbatch.TypeBytes, tsbatch.TypeBytes,
		tsbatch.TypeInt64, tsbatch.TypeInt64,
	}
	for i, w := range wantSchema {
		if schema[i] != w {
			t.Errorf("schema entry %v: %v, want %v", i, schema[i], w)
		}
	}
}

func TestSortKeys(t *testing.T) {
	_, ht := load(t)
	keys, err := ht.SortKeys(false)
	if err != nil {
		t.Fatalf("SortKeys: %v", err)
	}
	if len(keys) != 1 || keys[0].Attno != 2 || !keys[0].Descending {
		t.Fatalf("unexpected keys: %+v", keys)
	}
	// A reverse scan flips direction and null ordering.
	rkeys, err := ht.SortKeys(true)
	if err != nil {
		t.Fatalf("SortKeys: %v", err)
	}
	if rkeys[0].Descending || !rkeys[0].NullsFirst {
		t.Errorf("reverse keys not flipped: %+v", rkeys[0])
	}
}

func TestScanConfig(t *testing.T) {
	cat, ht := load(t)
	chunk := cat.AddChunk(ht, 100, 2)
	cfg, err := ht.ScanConfig(chunk, false, true)
	if err != nil {
		t.Fatalf("ScanConfig: %v", err)
	}
	if cfg.ChunkRelID != chunk.RelID || !cfg.Merge || len(cfg.SortKeys) != 1 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	serial, err := ht.ScanConfig(chunk, false, false)
	if err != nil {
		t.Fatalf("ScanConfig: %v", err)
	}
	if len(serial.SortKeys) != 0 {
		t.Errorf("serial config has sort keys")
	}
}

func TestChunks(t *testing.T) {
	cat, ht := load(t)
	c1 := cat.AddChunk(ht, 100, 0)
	if c1.Start != 0 || c1.End != 86400 {
		t.Errorf("chunk bounds: %+v", c1)
	}
	if got := cat.FindChunk(ht, 86399, 0); got == nil || got.RelID != c1.RelID {
		t.Errorf("FindChunk missed: %+v", got)
	}
	if got := cat.FindChunk(ht, 86400, 0); got != nil {
		t.Errorf("FindChunk matched the next interval: %+v", got)
	}
	if got := cat.FindChunk(ht, 100, 1); got != nil {
		t.Errorf("FindChunk matched the wrong space slot: %+v", got)
	}
	c2 := cat.AddChunk(ht, -1, 0)
	if c2.Start != -86400 || c2.End != 0 {
		t.Errorf("negative time chunk bounds: %+v", c2)
	}
	if c2.RelID == c1.RelID {
		t.Errorf("relids not unique")
	}
	if c1.ID == c2.ID {
		t.Errorf("chunk uuids not unique")
	}
	if _, err := cat.ChunkByRelID(c2.RelID); err != nil {
		t.Errorf("ChunkByRelID: %v", err)
	}
}
