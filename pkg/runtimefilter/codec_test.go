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

func TestNewByType(t *testing.T) {
	for _, typ := range []types.T{
		types.T_int32, types.T_int64, types.T_decimal64, types.T_varchar,
	} {
		rf, err := New(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, rf.Type())
	}
	_, err := New(types.T(99))
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrUnsupportedDataType))
}

func TestCodecRoundTripFixed(t *testing.T) {
	rf := NewFixed[int64]()
	rf.Init(1000)
	for i := int64(0); i < 1000; i += 3 {
		v := i
		rf.Insert(&v)
	}
	rf.Insert(nil)
	rf.SetJoinMode(JoinModePartitioned)

	data, err := MarshalRuntimeFilter(rf)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), MaxRuntimeFilterSerializedSize(rf))

	pool := NewObjectPool()
	got, err := DeserializeRuntimeFilter(pool, data)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Len())
	assert.True(t, rf.CheckEqual(got))

	typed, ok := got.(*FixedRuntimeFilter[int64])
	require.True(t, ok)
	assert.Equal(t, int64(0), typed.MinValue())
	assert.Equal(t, int64(999), typed.MaxValue())
	assert.Equal(t, int64(334), typed.Size())
	assert.True(t, typed.HasNull())
	assert.Equal(t, JoinModePartitioned, typed.GetJoinMode())
	assert.True(t, typed.TestValue(27))
}

func TestCodecRoundTripBytes(t *testing.T) {
	rf := NewBytes()
	rf.Init(16)
	for _, s := range []string{"aa", "bb", "cc", "dd"} {
		rf.Insert([]byte(s))
	}

	data, err := MarshalRuntimeFilter(rf)
	require.NoError(t, err)
	got, err := DeserializeRuntimeFilter(nil, data)
	require.NoError(t, err)
	assert.True(t, rf.CheckEqual(got))

	// The bounds are copies; clobbering the wire bytes changes nothing.
	for i := range data {
		data[i] = 0xff
	}
	typed := got.(*BytesRuntimeFilter)
	assert.Equal(t, []byte("aa"), typed.MinValue())
	assert.Equal(t, []byte("dd"), typed.MaxValue())
}

func TestCodecRoundTripEmptyRange(t *testing.T) {
	// A filter that only ever saw nulls has no range, which must
	// survive the wire distinct from an empty-string range.
	rf := NewBytes()
	rf.Init(4)
	rf.Insert(nil)

	data, err := MarshalRuntimeFilter(rf)
	require.NoError(t, err)
	got, err := DeserializeRuntimeFilter(nil, data)
	require.NoError(t, err)
	typed := got.(*BytesRuntimeFilter)
	assert.True(t, typed.HasNull())
	assert.False(t, typed.HasMinMax())
	assert.True(t, rf.CheckEqual(got))
}

func TestCodecDeserializeThenCombine(t *testing.T) {
	// Fragments serialize their local filters; the coordinator decodes
	// and concatenates them into the composite it ships to the probe
	// side.
	const numPartitions = 3
	locals := make([]*FixedRuntimeFilter[int32], numPartitions)
	for p := range locals {
		locals[p] = NewFixed[int32]()
		locals[p].Init(100)
	}
	for i := int32(0); i < 300; i++ {
		h := hashutil.Crc32Hash(types.EncodeFixed(i), 0)
		p, err := partitionOfHash(JoinModeLocalHashBucket, h, numPartitions, nil)
		require.NoError(t, err)
		locals[p].Insert(&i)
	}

	pool := NewObjectPool()
	var filters []RuntimeFilter
	for _, local := range locals {
		data, err := MarshalRuntimeFilter(local)
		require.NoError(t, err)
		got, err := DeserializeRuntimeFilter(pool, data)
		require.NoError(t, err)
		filters = append(filters, got)
	}

	composite := filters[0]
	composite.Concat(filters[1])
	composite.Concat(filters[2])
	composite.SetJoinMode(JoinModeLocalHashBucket)

	assert.Equal(t, numPartitions, composite.NumPartitions())
	assert.Equal(t, int64(300), composite.Size())
	typed := composite.(*FixedRuntimeFilter[int32])
	assert.Equal(t, int32(0), typed.MinValue())
	assert.Equal(t, int32(299), typed.MaxValue())

	// The wire round trip must not change what the composite accepts:
	// every build row still routes to the sub-filter that holds it.
	vec := makeInt32Vec(t, int32Range(0, 300, 1))
	ctx := &RunningContext{}
	n, err := composite.Evaluate(vec, ctx)
	require.NoError(t, err)
	assert.Equal(t, 300, n)

	out := makeInt32Vec(t, int32Range(300, 400, 1))
	ctx2 := &RunningContext{}
	n, err = composite.Evaluate(out, ctx2)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	pool.Release()
	assert.Equal(t, 0, pool.Len())
}

func TestCodecMalformed(t *testing.T) {
	rf := NewFixed[int32]()
	rf.Init(64)
	for i := int32(0); i < 64; i++ {
		v := i
		rf.Insert(&v)
	}
	data, err := MarshalRuntimeFilter(rf)
	require.NoError(t, err)

	_, err = DeserializeRuntimeFilter(nil, nil)
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrUnexpectedEOF))

	_, err = DeserializeRuntimeFilter(nil, []byte{99})
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrUnsupportedDataType))

	// Truncation anywhere must error, never panic.
	for cut := 1; cut < len(data); cut++ {
		_, err := DeserializeRuntimeFilter(nil, data[:cut])
		assert.Error(t, err, cut)
	}

	trailing := append(append([]byte{}, data...), 0x00)
	_, err = DeserializeRuntimeFilter(nil, trailing)
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	bad := append([]byte{}, data...)
	bad[1] = 200 // join mode
	_, err = DeserializeRuntimeFilter(nil, bad)
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrUnsupportedJoinMode))
}

func TestSerializeShortBuffer(t *testing.T) {
	rf := NewFixed[int32]()
	rf.Init(64)
	_, err := SerializeRuntimeFilter(rf, make([]byte, 4))
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrShortBuffer))
}
