// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package codec

import (
	"math"
	"testing"

	"github.com/cosnicolaou/tsbatch"
	"github.com/cosnicolaou/tsbatch/internal"
)

func decodeAll(t *testing.T, blob []byte, reverse bool) []tsbatch.Datum {
	t.Helper()
	it, err := tsbatch.NewIterator(blob, reverse)
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}
	var out []tsbatch.Datum
	for {
		v, done, err := it.TryNext()
		if err != nil {
			t.Fatalf("TryNext: %v", err)
		}
		if done {
			return out
		}
		out = append(out, v)
	}
}

func datumsEqual(t tsbatch.Type, a, b tsbatch.Datum) bool {
	if a.Null || b.Null {
		return a.Null == b.Null
	}
	return tsbatch.Compare(t, a, b) == 0
}

func roundTrip(t *testing.T, a tsbatch.Algorithm, typ tsbatch.Type, vals []tsbatch.Datum) {
	t.Helper()
	blob, err := Encode(a, typ, vals)
	if err != nil {
		t.Fatalf("%v: Encode: %v", a, err)
	}
	got := decodeAll(t, blob, false)
	if len(got) != len(vals) {
		t.Fatalf("%v: decoded %v values, want %v", a, len(got), len(vals))
	}
	for i := range vals {
		if !datumsEqual(typ, got[i], vals[i]) {
			t.Fatalf("%v: value %v: got %+v, want %+v", a, i, got[i], vals[i])
		}
	}
	rev := decodeAll(t, blob, true)
	if len(rev) != len(vals) {
		t.Fatalf("%v: reverse decoded %v values, want %v", a, len(rev), len(vals))
	}
	for i := range vals {
		if !datumsEqual(typ, rev[i], vals[len(vals)-1-i]) {
			t.Fatalf("%v: reverse value %v: got %+v, want %+v", a, i, rev[i], vals[len(vals)-1-i])
		}
	}
}

func ints(vals ...int64) []tsbatch.Datum {
	out := make([]tsbatch.Datum, len(vals))
	for i, v := range vals {
		out[i] = tsbatch.IntDatum(v)
	}
	return out
}

func TestDeltaDelta(t *testing.T) {
	for _, tc := range [][]tsbatch.Datum{
		{},
		ints(42),
		ints(1000, 2000, 3000, 4000),
		ints(10, 7, 3, -5, -5, 80),
		ints(math.MaxInt64, math.MinInt64, 0),
		{tsbatch.IntDatum(1), tsbatch.NullDatum(), tsbatch.IntDatum(3), tsbatch.NullDatum()},
	} {
		roundTrip(t, DeltaDelta, tsbatch.TypeInt64, tc)
	}
}

func TestGorilla(t *testing.T) {
	for _, tc := range [][]tsbatch.Datum{
		{},
		{tsbatch.FloatDatum(3.14)},
		{tsbatch.FloatDatum(20.5), tsbatch.FloatDatum(20.5), tsbatch.FloatDatum(20.5)},
		{tsbatch.FloatDatum(1.0), tsbatch.FloatDatum(1.5), tsbatch.FloatDatum(-2.25), tsbatch.FloatDatum(0)},
		{tsbatch.FloatDatum(math.MaxFloat64), tsbatch.FloatDatum(math.SmallestNonzeroFloat64)},
		{tsbatch.NullDatum(), tsbatch.FloatDatum(7.5), tsbatch.NullDatum()},
	} {
		roundTrip(t, Gorilla, tsbatch.TypeFloat64, tc)
	}
}

func TestRunLength(t *testing.T) {
	bools := []tsbatch.Datum{
		tsbatch.BoolDatum(true), tsbatch.BoolDatum(true), tsbatch.BoolDatum(false),
		tsbatch.BoolDatum(false), tsbatch.BoolDatum(false), tsbatch.BoolDatum(true),
	}
	roundTrip(t, RunLength, tsbatch.TypeBool, bools)
	roundTrip(t, RunLength, tsbatch.TypeInt64, ints(5, 5, 5, 9, 9, 5))
	roundTrip(t, RunLength, tsbatch.TypeBytes, []tsbatch.Datum{
		tsbatch.BytesDatum([]byte("us-east")),
		tsbatch.BytesDatum([]byte("us-east")),
		tsbatch.BytesDatum([]byte("eu-west")),
	})
}

func TestArray(t *testing.T) {
	roundTrip(t, Array, tsbatch.TypeBytes, []tsbatch.Datum{
		tsbatch.BytesDatum([]byte("a")),
		tsbatch.NullDatum(),
		tsbatch.BytesDatum(nil),
		tsbatch.BytesDatum([]byte("hello world")),
	})
	roundTrip(t, Array, tsbatch.TypeFloat64, []tsbatch.Datum{
		tsbatch.FloatDatum(0), tsbatch.FloatDatum(-1.5),
	})
}

func TestLargeSeries(t *testing.T) {
	times := internal.GenPredictableInt64s(5000, 1600000000, 30)
	vals := make([]tsbatch.Datum, len(times))
	for i, v := range times {
		vals[i] = tsbatch.IntDatum(v)
	}
	roundTrip(t, DeltaDelta, tsbatch.TypeInt64, vals)

	floats := internal.GenPredictableFloats(5000)
	fvals := make([]tsbatch.Datum, len(floats))
	for i, v := range floats {
		fvals[i] = tsbatch.FloatDatum(v)
	}
	roundTrip(t, Gorilla, tsbatch.TypeFloat64, fvals)

	blob, err := Encode(DeltaDelta, tsbatch.TypeInt64, vals)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// A fixed-interval-ish series should collapse well below 8 bytes a
	// value.
	if len(blob) > 4*len(vals) {
		t.Errorf("deltadelta blob is %v bytes for %v values", len(blob), len(vals))
	}
}

func TestFor(t *testing.T) {
	for _, tc := range []struct {
		typ  tsbatch.Type
		want tsbatch.Algorithm
	}{
		{tsbatch.TypeInt64, DeltaDelta},
		{tsbatch.TypeFloat64, Gorilla},
		{tsbatch.TypeBool, RunLength},
		{tsbatch.TypeBytes, Array},
	} {
		if got := For(tc.typ); got != tc.want {
			t.Errorf("For(%v): got %v, want %v", tc.typ, got, tc.want)
		}
	}
}

func TestTypeMismatch(t *testing.T) {
	if _, err := Encode(DeltaDelta, tsbatch.TypeFloat64, nil); err == nil {
		t.Errorf("deltadelta accepted float64 values")
	}
	if _, err := Encode(Gorilla, tsbatch.TypeInt64, nil); err == nil {
		t.Errorf("gorilla accepted int64 values")
	}
}

func TestCorruptBlobs(t *testing.T) {
	if _, err := tsbatch.NewIterator(nil, false); err == nil {
		t.Errorf("empty blob accepted")
	}
	if _, err := tsbatch.NewIterator([]byte{0xee}, false); err == nil {
		t.Errorf("unknown algorithm accepted")
	}
	// A truncated validity bitmap is detected at construction.
	blob, err := Encode(DeltaDelta, tsbatch.TypeInt64, ints(1, 2, 3, 4, 5, 6, 7, 8, 9))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := tsbatch.NewIterator(blob[:2], false); err == nil {
		t.Errorf("truncated blob accepted")
	}
	// A truncated body surfaces from TryNext.
	it, err := tsbatch.NewIterator(blob[:len(blob)-4], false)
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}
	sawErr := false
	for i := 0; i < 9; i++ {
		if _, _, err := it.TryNext(); err != nil {
			sawErr = true
			break
		}
	}
	if !sawErr {
		t.Errorf("truncated body decoded without error")
	}
}
