// Copyright 2021 - 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runtimefilter

import (
	"github.com/matrixorigin/runtimefilter/pkg/container/vector"
)

// RunningContext is the per-caller scratch state of Evaluate: the
// selection vector shared along the operator pipeline and a cache of
// per-row routing hashes so that several filters probing the same column
// batch hash it once.  A context is never shared across goroutines; the
// filter itself stays read-only.
type RunningContext struct {
	// Selection holds one pass/fail flag per row.  Evaluate ANDs into
	// it: a zero entry is never flipped back to one.
	Selection []uint8

	// BucketSeqToPartition maps storage bucket index to partition index,
	// COLOCATE mode only.
	BucketSeqToPartition []int32

	hashedVec  *vector.Vector
	hashedMode JoinMode
	hashValues []uint32
}

// EnsureSelection reinitializes Selection to all-pass when its length
// does not match the batch; otherwise the existing flags are kept and
// ANDed into.
func (ctx *RunningContext) EnsureSelection(n int) []uint8 {
	if len(ctx.Selection) != n {
		if cap(ctx.Selection) < n {
			ctx.Selection = make([]uint8, n)
		}
		ctx.Selection = ctx.Selection[:n]
		for i := range ctx.Selection {
			ctx.Selection[i] = 1
		}
	}
	return ctx.Selection
}

// routingHashes returns the per-row routing hashes of vec under mode,
// computing them only when the cached batch identity or mode changed.
func (ctx *RunningContext) routingHashes(vec *vector.Vector, mode JoinMode) []uint32 {
	n := vec.Length()
	if ctx.hashedVec == vec && ctx.hashedMode == mode && len(ctx.hashValues) == n {
		return ctx.hashValues
	}
	if cap(ctx.hashValues) < n {
		ctx.hashValues = make([]uint32, n)
	}
	ctx.hashValues = ctx.hashValues[:n]
	seed := mode.routingSeed()
	for i := range ctx.hashValues {
		ctx.hashValues[i] = seed
	}
	if mode.usesFnv() {
		vec.FnvHashRows(ctx.hashValues, 0, n)
	} else {
		vec.Crc32HashRows(ctx.hashValues, 0, n)
	}
	ctx.hashedVec = vec
	ctx.hashedMode = mode
	return ctx.hashValues
}

// CountNonzero counts the surviving rows of a selection.
func CountNonzero(sel []uint8) int {
	var cnt int
	for _, s := range sel {
		if s != 0 {
			cnt++
		}
	}
	return cnt
}
