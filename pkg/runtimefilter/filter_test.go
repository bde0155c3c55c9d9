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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/runtimefilter/pkg/common/hashutil"
	"github.com/matrixorigin/runtimefilter/pkg/common/moerr"
	"github.com/matrixorigin/runtimefilter/pkg/container/types"
)

func TestFixedFilterRange(t *testing.T) {
	rf := NewFixed[int32]()
	rf.Init(200)
	assert.False(t, rf.HasMinMax())

	for i := int32(0); i < 200; i += 17 {
		v := i
		rf.Insert(&v)
	}
	assert.True(t, rf.HasMinMax())
	assert.Equal(t, int32(0), rf.MinValue())
	assert.Equal(t, int32(187), rf.MaxValue())
	assert.Equal(t, int64(12), rf.Size())
	assert.False(t, rf.HasNull())

	var hits int
	for i := int32(0); i < 200; i++ {
		if rf.TestValue(i) {
			hits++
		}
	}
	assert.Equal(t, 12, hits)

	// Out of range never consults the bloom filter.
	assert.False(t, rf.TestValue(-1))
	assert.False(t, rf.TestValue(188))

	rf.Insert(nil)
	assert.True(t, rf.HasNull())
	assert.Equal(t, int64(12), rf.Size())
}

func TestFixedFilterMerge(t *testing.T) {
	rf1 := NewFixed[int32]()
	rf1.Init(200)
	rf2 := NewFixed[int32]()
	rf2.Init(200)

	for i := int32(0); i < 200; i += 17 {
		v1, v2 := i, i+1
		rf1.Insert(&v1)
		rf2.Insert(&v2)
	}
	require.Equal(t, int32(188), rf2.MaxValue())

	rf1.Merge(rf2)
	assert.Equal(t, int32(0), rf1.MinValue())
	assert.Equal(t, int32(188), rf1.MaxValue())
	assert.Equal(t, int64(24), rf1.Size())
	for i := int32(0); i < 200; i += 17 {
		assert.True(t, rf1.TestValue(i))
		assert.True(t, rf1.TestValue(i+1))
	}
}

func TestMergeAssociativity(t *testing.T) {
	build := func(lo int32) *FixedRuntimeFilter[int32] {
		rf := NewFixed[int32]()
		rf.Init(64)
		for i := lo; i < lo+64; i++ {
			v := i
			rf.Insert(&v)
		}
		return rf
	}

	left := build(0)
	left.Merge(build(100))
	left.Merge(build(200))

	mid := build(100)
	mid.Merge(build(200))
	right := build(0)
	right.Merge(mid)

	assert.True(t, left.CheckEqual(right))
}

func TestFilterMismatchPanics(t *testing.T) {
	i32 := NewFixed[int32]()
	i32.Init(16)
	i64 := NewFixed[int64]()
	i64.Init(16)
	assert.Panics(t, func() { i32.Merge(i64) })
	assert.Panics(t, func() { i32.Concat(NewBytes()) })

	// Same type but different partition layouts cannot be merged
	// either.
	other := NewFixed[int32]()
	other.Init(16)
	composite := NewFixed[int32]()
	composite.Init(16)
	composite.Concat(other)
	single := NewFixed[int32]()
	single.Init(16)
	assert.Panics(t, func() { composite.Merge(single) })
}

func TestBytesFilterMinMax(t *testing.T) {
	rf := NewBytes()
	rf.Init(16)
	for _, s := range []string{"bb", "cc", "aa", "dd"} {
		rf.Insert([]byte(s))
	}
	assert.Equal(t, []byte("aa"), rf.MinValue())
	assert.Equal(t, []byte("dd"), rf.MaxValue())
	assert.Equal(t, int64(4), rf.Size())

	assert.True(t, rf.TestValue([]byte("cc")))
	assert.False(t, rf.TestValue([]byte("a")))
	assert.False(t, rf.TestValue([]byte("ee")))

	// nil records a null, empty is a real value.
	rf.Insert(nil)
	assert.True(t, rf.HasNull())
	assert.Equal(t, int64(4), rf.Size())
	rf.Insert([]byte{})
	assert.Equal(t, []byte{}, rf.MinValue())
	assert.True(t, rf.TestValue([]byte{}))
}

func TestBytesFilterEmptyStringRows(t *testing.T) {
	// An all-empty-string build batch: the rows are real values, not
	// nulls, and must pass their own filter.
	vec := makeVarcharVec(t, []string{"", "", "", ""})
	rf := NewBytes()
	rf.Init(4)
	require.NoError(t, rf.InsertVector(vec))

	assert.False(t, rf.HasNull())
	assert.Equal(t, int64(4), rf.Size())
	assert.Equal(t, []byte{}, rf.MinValue())
	assert.Equal(t, []byte{}, rf.MaxValue())
	assert.True(t, rf.TestValue([]byte{}))

	ctx := &RunningContext{}
	n, err := rf.Evaluate(vec, ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// The row path behaves the same as the batch path.
	rf2 := NewBytes()
	rf2.Init(4)
	require.NoError(t, rf2.InsertRow(vec, 0))
	assert.False(t, rf2.HasNull())
	assert.Equal(t, int64(1), rf2.Size())
}

func TestBytesFilterBoundsAreOwned(t *testing.T) {
	rf := NewBytes()
	rf.Init(4)
	buf := []byte("mm")
	rf.Insert(buf)
	buf[0] = 'z'
	assert.Equal(t, []byte("mm"), rf.MinValue())
	assert.Equal(t, []byte("mm"), rf.MaxValue())
}

func TestDecimalFilter(t *testing.T) {
	rf := NewFixed[types.Decimal64]()
	rf.Init(64)
	for i := 0; i < 64; i++ {
		v := types.Decimal64(i * 100)
		rf.Insert(&v)
	}
	assert.Equal(t, types.Decimal64(0), rf.MinValue())
	assert.Equal(t, types.Decimal64(6300), rf.MaxValue())
	assert.True(t, rf.TestValue(types.Decimal64(4200)))
	assert.False(t, rf.TestValue(types.Decimal64(6400)))
}

func TestFixedFilterEvaluate(t *testing.T) {
	rf := NewFixed[int32]()
	rf.Init(200)
	for i := int32(0); i < 200; i += 17 {
		v := i
		rf.Insert(&v)
	}
	rf.SetJoinMode(JoinModeNone)

	vec := makeInt32Vec(t, int32Range(0, 200, 1))
	ctx := &RunningContext{}
	n, err := rf.Evaluate(vec, ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	for i := 0; i < 200; i++ {
		want := uint8(0)
		if i%17 == 0 {
			want = 1
		}
		assert.Equal(t, want, ctx.Selection[i], i)
	}
}

func TestEvaluateNullRowsFail(t *testing.T) {
	rf := NewFixed[int32]()
	rf.Init(16)
	for i := int32(0); i < 8; i++ {
		v := i
		rf.Insert(&v)
	}

	// Rows 2 and 5 are null; everything else was inserted.
	vec := makeInt32Vec(t, int32Range(0, 8, 1), 2, 5)
	ctx := &RunningContext{}
	n, err := rf.Evaluate(vec, ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, uint8(0), ctx.Selection[2])
	assert.Equal(t, uint8(0), ctx.Selection[5])
}

func TestEvaluateAndsIntoSelection(t *testing.T) {
	rf := NewFixed[int32]()
	rf.Init(16)
	for i := int32(0); i < 8; i++ {
		v := i
		rf.Insert(&v)
	}

	vec := makeInt32Vec(t, int32Range(0, 8, 1))
	ctx := &RunningContext{}
	ctx.EnsureSelection(8)
	ctx.Selection[0] = 0
	ctx.Selection[7] = 0

	n, err := rf.Evaluate(vec, ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, uint8(0), ctx.Selection[0])
	assert.Equal(t, uint8(0), ctx.Selection[7])
}

func TestEvaluateErrors(t *testing.T) {
	rf := NewFixed[int32]()
	vec := makeInt32Vec(t, int32Range(0, 8, 1))

	// Never initialized.
	_, err := rf.Evaluate(vec, &RunningContext{})
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))

	rf.Init(16)
	strVec := makeVarcharVec(t, []string{"x"})
	_, err = rf.Evaluate(strVec, &RunningContext{})
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
}

func TestBytesFilterEvaluate(t *testing.T) {
	rf := NewBytes()
	rf.Init(16)
	for _, s := range []string{"aa", "bb", "cc", "dd"} {
		rf.Insert([]byte(s))
	}

	vec := makeVarcharVec(t, []string{"aa", "ab", "bb", "cc", "dd", "zz", ""})
	ctx := &RunningContext{}
	n, err := rf.Evaluate(vec, ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, uint8(1), ctx.Selection[0])
	assert.Equal(t, uint8(0), ctx.Selection[5])
	assert.Equal(t, uint8(0), ctx.Selection[6])
}

// buildComposite routes each value with the mode's partitioning hash and
// inserts it into the sub-filter that Evaluate will probe for it.
func buildComposite(t *testing.T, mode JoinMode, numPartitions int,
	bucketSeq []int32, vals []int32) RuntimeFilter {
	parts := make([]RuntimeFilter, numPartitions)
	for p := range parts {
		rf := NewFixed[int32]()
		rf.Init(len(vals))
		parts[p] = rf
	}
	for _, v := range vals {
		var h uint32
		raw := types.EncodeFixed(v)
		if mode.usesFnv() {
			h = hashutil.FnvHash(raw, mode.routingSeed())
		} else {
			h = hashutil.Crc32Hash(raw, mode.routingSeed())
		}
		p, err := partitionOfHash(mode, h, numPartitions, bucketSeq)
		require.NoError(t, err)
		parts[p].(*FixedRuntimeFilter[int32]).Insert(&v)
	}
	result := parts[0]
	for p := 1; p < numPartitions; p++ {
		result.Concat(parts[p])
	}
	result.SetJoinMode(mode)
	return result
}

func TestCompositeEvaluate(t *testing.T) {
	vals := int32Range(0, 100, 1)
	vec := makeInt32Vec(t, vals)

	for _, mode := range []JoinMode{
		JoinModeLocalHashBucket, JoinModePartitioned, JoinModeShuffleHashBucket,
	} {
		for _, numPartitions := range []int{1, 3, 5} {
			rf := buildComposite(t, mode, numPartitions, nil, vals)
			assert.Equal(t, numPartitions, rf.NumPartitions())
			assert.Equal(t, int64(100), rf.Size())

			ctx := &RunningContext{}
			n, err := rf.Evaluate(vec, ctx)
			require.NoError(t, err)
			assert.Equal(t, 100, n, "%s/%d", mode, numPartitions)
		}
	}
}

func TestCompositeEvaluateColocate(t *testing.T) {
	vals := int32Range(0, 100, 1)
	vec := makeInt32Vec(t, vals)

	for _, table := range [][]int32{
		{1, 1, 0, 0, 2, 2},
		{0, 1, 2, 0, 1, 2, 1},
		{0, 0, 0, 0, 0, 0, 0},
	} {
		rf := buildComposite(t, JoinModeColocate, 3, table, vals)
		ctx := &RunningContext{BucketSeqToPartition: table}
		n, err := rf.Evaluate(vec, ctx)
		require.NoError(t, err)
		assert.Equal(t, 100, n)
	}

	// Colocate routing needs the bucket table on the probe side too.
	rf := buildComposite(t, JoinModeColocate, 3, []int32{1, 1, 0, 0, 2, 2}, vals)
	_, err := rf.Evaluate(vec, &RunningContext{})
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
}

func TestCompositeDisjointProbe(t *testing.T) {
	rf := buildComposite(t, JoinModeLocalHashBucket, 3, nil, int32Range(0, 100, 1))

	// Everything above the build range fails the min/max check before
	// the bloom filter is even consulted.
	vec := makeInt32Vec(t, int32Range(100, 200, 1))
	ctx := &RunningContext{}
	n, err := rf.Evaluate(vec, ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
