// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package tsbatch

import "errors"

var (
	// ErrCountDesync is returned when a compressed column stream still
	// yields values after the batch's row counter has been consumed,
	// i.e. the batch metadata and the column streams have desynchronized.
	ErrCountDesync = errors.New("compressed column out of sync with batch row counter")

	// ErrNullRowCount is returned when a batch's row count column is
	// null or missing.
	ErrNullRowCount = errors.New("null row count in compressed batch")
)
