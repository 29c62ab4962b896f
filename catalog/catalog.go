// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package catalog holds the hypertable metadata the ingest path and the
// scan operator consult: column definitions, compression settings
// (segment-by and order-by) and the chunks a hypertable has been carved
// into. Catalogs are loaded from and saved as YAML.
package catalog

import (
	"fmt"

	"github.com/cosnicolaou/tsbatch"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
	"sigs.k8s.io/yaml"
)

// Column defines one hypertable column. Type is one of int64, float64,
// bool or bytes; timestamp is accepted as an alias of int64 and string as
// an alias of bytes.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// OrderBy is one column of a hypertable's compression ordering.
type OrderBy struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending,omitempty"`
	NullsFirst bool   `json:"nulls_first,omitempty"`
}

// CompressionSettings configures how a hypertable's chunks are
// compressed: segment-by columns are stored once per batch, the
// remaining columns are compressed in order-by order.
type CompressionSettings struct {
	SegmentBy []string  `json:"segment_by,omitempty"`
	OrderBy   []OrderBy `json:"order_by,omitempty"`
}

// Hypertable is a time-partitioned table.
type Hypertable struct {
	ID              int32               `json:"id"`
	Name            string              `json:"name"`
	Columns         []Column            `json:"columns"`
	PartitionColumn string              `json:"partition_column"`
	ChunkInterval   int64               `json:"chunk_interval"`
	SpacePartitions int                 `json:"space_partitions,omitempty"`
	Compression     CompressionSettings `json:"compression"`
}

// Chunk is one time/space partition of a hypertable.
type Chunk struct {
	ID           uuid.UUID `json:"id"`
	RelID        int64     `json:"relid"`
	HypertableID int32     `json:"hypertable_id"`
	Start        int64     `json:"start"`
	End          int64     `json:"end"`
	SpaceSlot    int       `json:"space_slot"`
}

// Catalog is the collection of hypertables and their chunks.
type Catalog struct {
	Hypertables []Hypertable `json:"hypertables"`
	Chunks      []Chunk      `json:"chunks,omitempty"`

	nextRelID int64
}

// Load parses a YAML catalog.
func Load(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %v", err)
	}
	for _, ch := range c.Chunks {
		if ch.RelID >= c.nextRelID {
			c.nextRelID = ch.RelID + 1
		}
	}
	return c, nil
}

// Save serializes the catalog as YAML.
func (c *Catalog) Save() ([]byte, error) {
	return yaml.Marshal(c)
}

// Hypertable returns the hypertable with the given id.
func (c *Catalog) Hypertable(id int32) (*Hypertable, error) {
	for i := range c.Hypertables {
		if c.Hypertables[i].ID == id {
			return &c.Hypertables[i], nil
		}
	}
	return nil, fmt.Errorf("no hypertable with id %d", id)
}

// HypertableByName returns the named hypertable.
func (c *Catalog) HypertableByName(name string) (*Hypertable, error) {
	for i := range c.Hypertables {
		if c.Hypertables[i].Name == name {
			return &c.Hypertables[i], nil
		}
	}
	return nil, fmt.Errorf("no hypertable named %q", name)
}

// ChunkByRelID returns the chunk with the given relation id.
func (c *Catalog) ChunkByRelID(relid int64) (*Chunk, error) {
	for i := range c.Chunks {
		if c.Chunks[i].RelID == relid {
			return &c.Chunks[i], nil
		}
	}
	return nil, fmt.Errorf("no chunk with relid %d", relid)
}

// FindChunk returns the hypertable's chunk covering the supplied
// partition value and space slot, or nil.
func (c *Catalog) FindChunk(ht *Hypertable, at int64, slot int) *Chunk {
	for i := range c.Chunks {
		ch := &c.Chunks[i]
		if ch.HypertableID == ht.ID && ch.SpaceSlot == slot && at >= ch.Start && at < ch.End {
			return ch
		}
	}
	return nil
}

// AddChunk creates the chunk covering the supplied partition value and
// space slot, aligned to the hypertable's chunk interval.
func (c *Catalog) AddChunk(ht *Hypertable, at int64, slot int) *Chunk {
	if c.nextRelID == 0 {
		c.nextRelID = 1
	}
	iv := ht.ChunkInterval
	if iv <= 0 {
		iv = 1
	}
	start := at - mod(at, iv)
	c.Chunks = append(c.Chunks, Chunk{
		ID:           uuid.New(),
		RelID:        c.nextRelID,
		HypertableID: ht.ID,
		Start:        start,
		End:          start + iv,
		SpaceSlot:    slot,
	})
	c.nextRelID++
	return &c.Chunks[len(c.Chunks)-1]
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// TypeOf returns the value type of the named column.
func (h *Hypertable) TypeOf(name string) (tsbatch.Type, error) {
	i := slices.IndexFunc(h.Columns, func(c Column) bool { return c.Name == name })
	if i < 0 {
		return 0, fmt.Errorf("hypertable %q has no column %q", h.Name, name)
	}
	return typeFor(h.Columns[i].Type)
}

func typeFor(name string) (tsbatch.Type, error) {
	switch name {
	case "int64", "timestamp":
		return tsbatch.TypeInt64, nil
	case "float64":
		return tsbatch.TypeFloat64, nil
	case "bool":
		return tsbatch.TypeBool, nil
	case "bytes", "string":
		return tsbatch.TypeBytes, nil
	}
	return 0, fmt.Errorf("unknown column type %q", name)
}

// Metadata column names appended to every compressed batch row.
const (
	CountColumnName    = "_ts_count"
	SequenceColumnName = "_ts_sequence"
)

// CompressionInfo derives the operator-facing description of the
// hypertable's compressed batch layout: the hypertable columns in
// declared order followed by the count and sequence metadata columns.
func (h *Hypertable) CompressionInfo() (tsbatch.CompressionInfo, error) {
	info := tsbatch.CompressionInfo{
		SegmentBy: h.Compression.SegmentBy,
	}
	for _, col := range h.Columns {
		t, err := typeFor(col.Type)
		if err != nil {
			return tsbatch.CompressionInfo{}, err
		}
		info.InputNames = append(info.InputNames, col.Name)
		info.OutputTypes = append(info.OutputTypes, t)
	}
	info.InputNames = append(info.InputNames, CountColumnName, SequenceColumnName)
	return info, nil
}

// InputSchema returns the serialized column types of the hypertable's
// compressed batch rows: segment-by columns keep their natural type,
// compressed columns are blobs and the metadata columns are counters.
func (h *Hypertable) InputSchema() ([]tsbatch.Type, error) {
	schema := make([]tsbatch.Type, 0, len(h.Columns)+2)
	for _, col := range h.Columns {
		if slices.Contains(h.Compression.SegmentBy, col.Name) {
			t, err := typeFor(col.Type)
			if err != nil {
				return nil, err
			}
			schema = append(schema, t)
			continue
		}
		schema = append(schema, tsbatch.TypeBytes)
	}
	return append(schema, tsbatch.TypeInt64, tsbatch.TypeInt64), nil
}

// DecompressionMap returns the identity decompression map for the
// hypertable's compressed layout: every column decodes to its declared
// position, followed by the reserved metadata attnos.
func (h *Hypertable) DecompressionMap() []int {
	m := make([]int, 0, len(h.Columns)+2)
	for i := range h.Columns {
		m = append(m, i+1)
	}
	return append(m, tsbatch.CountColumnAttno, tsbatch.SequenceColumnAttno)
}

// SortKeys derives the operator sort keys from the compression order-by.
// A reverse scan flips direction and null ordering so that merge output
// remains a single total order.
func (h *Hypertable) SortKeys(reverse bool) ([]tsbatch.SortKey, error) {
	keys := make([]tsbatch.SortKey, 0, len(h.Compression.OrderBy))
	for _, ob := range h.Compression.OrderBy {
		i := slices.IndexFunc(h.Columns, func(c Column) bool { return c.Name == ob.Column })
		if i < 0 {
			return nil, fmt.Errorf("order-by column %q not in hypertable %q", ob.Column, h.Name)
		}
		t, err := typeFor(h.Columns[i].Type)
		if err != nil {
			return nil, err
		}
		desc, nf := ob.Descending, ob.NullsFirst
		if reverse {
			desc, nf = !desc, !nf
		}
		keys = append(keys, tsbatch.SortKey{
			Attno:      i + 1,
			Compare:    tsbatch.CompareFor(t),
			Descending: desc,
			NullsFirst: nf,
		})
	}
	return keys, nil
}

// ScanConfig assembles the operator configuration for scanning one of the
// hypertable's chunks.
func (h *Hypertable) ScanConfig(chunk *Chunk, reverse, merge bool) (tsbatch.Config, error) {
	cfg := tsbatch.Config{
		HypertableID:     h.ID,
		ChunkRelID:       chunk.RelID,
		Reverse:          reverse,
		Merge:            merge,
		DecompressionMap: h.DecompressionMap(),
	}
	if merge {
		keys, err := h.SortKeys(reverse)
		if err != nil {
			return tsbatch.Config{}, err
		}
		cfg.SortKeys = keys
	}
	return cfg, nil
}
