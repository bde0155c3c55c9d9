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
	"bytes"

	"github.com/matrixorigin/runtimefilter/pkg/common/moerr"
	"github.com/matrixorigin/runtimefilter/pkg/container/types"
	"github.com/matrixorigin/runtimefilter/pkg/container/vector"
)

// BytesRuntimeFilter is the runtime filter over var-len columns.  The
// min/max bounds are owned copies, never aliases into a caller's batch,
// so a filter outlives the batches that built it.
type BytesRuntimeFilter struct {
	baseFilter
	hasMinMax bool
	min, max  []byte
}

func NewBytes() *BytesRuntimeFilter {
	return &BytesRuntimeFilter{
		baseFilter: baseFilter{typ: types.T_varchar},
	}
}

// Insert adds one build value.  A nil slice records a build-side null;
// an empty non-nil slice is a real empty string.
func (rf *BytesRuntimeFilter) Insert(v []byte) {
	if v == nil {
		rf.hasNull = true
		return
	}
	rf.insertValue(v)
}

// insertValue adds v without the nil-means-null reading.  The vector
// paths decide nullness from the null bitmap, and an empty string read
// out of a vector may surface as a nil slice.
func (rf *BytesRuntimeFilter) insertValue(v []byte) {
	rf.updateRange(v)
	rf.insertHash(valueHash(v))
}

func (rf *BytesRuntimeFilter) updateRange(v []byte) {
	if !rf.hasMinMax {
		rf.hasMinMax = true
		rf.min = append([]byte{}, v...)
		rf.max = append([]byte{}, v...)
		return
	}
	if bytes.Compare(v, rf.min) < 0 {
		rf.min = append(rf.min[:0], v...)
	}
	if bytes.Compare(v, rf.max) > 0 {
		rf.max = append(rf.max[:0], v...)
	}
}

func (rf *BytesRuntimeFilter) TestValue(v []byte) bool {
	if !rf.hasMinMax ||
		bytes.Compare(v, rf.min) < 0 || bytes.Compare(v, rf.max) > 0 {
		return false
	}
	if len(rf.partitions) == 0 {
		return false
	}
	return rf.partitions[0].TestHash(valueHash(v))
}

func (rf *BytesRuntimeFilter) HasMinMax() bool {
	return rf.hasMinMax
}

func (rf *BytesRuntimeFilter) MinValue() []byte {
	return rf.min
}

func (rf *BytesRuntimeFilter) MaxValue() []byte {
	return rf.max
}

func (rf *BytesRuntimeFilter) InsertVector(vec *vector.Vector) error {
	if vec.GetType() != rf.typ {
		return moerr.NewInternalErrorNoCtx(
			"insert %s vector into %s runtime filter", vec.GetType(), rf.typ)
	}
	for i := 0; i < vec.Length(); i++ {
		if vec.IsNull(uint64(i)) {
			rf.hasNull = true
			continue
		}
		rf.insertValue(vec.GetBytesAt(i))
	}
	return nil
}

func (rf *BytesRuntimeFilter) InsertRow(vec *vector.Vector, row int) error {
	if vec.GetType() != rf.typ {
		return moerr.NewInternalErrorNoCtx(
			"insert %s vector into %s runtime filter", vec.GetType(), rf.typ)
	}
	if vec.IsNull(uint64(row)) {
		rf.hasNull = true
		return nil
	}
	rf.insertValue(vec.GetBytesAt(row))
	return nil
}

func (rf *BytesRuntimeFilter) Evaluate(vec *vector.Vector, ctx *RunningContext) (int, error) {
	if vec.GetType() != rf.typ {
		return 0, moerr.NewInternalErrorNoCtx(
			"evaluate %s runtime filter on %s vector", rf.typ, vec.GetType())
	}
	if len(rf.partitions) == 0 {
		return 0, moerr.NewInvalidStateNoCtx("evaluate an uninitialized runtime filter")
	}
	n := vec.Length()
	sel := ctx.EnsureSelection(n)
	var hashes []uint32
	if len(rf.partitions) > 1 {
		hashes = ctx.routingHashes(vec, rf.joinMode)
	}
	for i := 0; i < n; i++ {
		if sel[i] == 0 {
			continue
		}
		if vec.IsNull(uint64(i)) {
			sel[i] = 0
			continue
		}
		v := vec.GetBytesAt(i)
		if !rf.hasMinMax ||
			bytes.Compare(v, rf.min) < 0 || bytes.Compare(v, rf.max) > 0 {
			sel[i] = 0
			continue
		}
		var h uint32
		if hashes != nil {
			h = hashes[i]
		}
		part, err := rf.route(h, ctx)
		if err != nil {
			return 0, err
		}
		if !rf.partitions[part].TestHash(valueHash(v)) {
			sel[i] = 0
		}
	}
	return CountNonzero(sel), nil
}

func (rf *BytesRuntimeFilter) Merge(other RuntimeFilter) {
	o, ok := other.(*BytesRuntimeFilter)
	if !ok {
		panic(moerr.NewInternalErrorNoCtx(
			"merge runtime filters of different types: %s vs %s",
			rf.typ, other.Type()))
	}
	rf.mergeBase(&o.baseFilter)
	if o.hasMinMax {
		rf.updateRange(o.min)
		rf.updateRange(o.max)
	}
}

func (rf *BytesRuntimeFilter) Concat(other RuntimeFilter) {
	o, ok := other.(*BytesRuntimeFilter)
	if !ok {
		panic(moerr.NewInternalErrorNoCtx(
			"concat runtime filters of different types: %s vs %s",
			rf.typ, other.Type()))
	}
	rf.concatBase(&o.baseFilter)
	if o.hasMinMax {
		rf.updateRange(o.min)
		rf.updateRange(o.max)
	}
}

func (rf *BytesRuntimeFilter) CheckEqual(other RuntimeFilter) bool {
	o, ok := other.(*BytesRuntimeFilter)
	if !ok {
		return false
	}
	if !rf.checkEqualBase(&o.baseFilter) {
		return false
	}
	if rf.hasMinMax != o.hasMinMax {
		return false
	}
	return !rf.hasMinMax ||
		(bytes.Equal(rf.min, o.min) && bytes.Equal(rf.max, o.max))
}

func (rf *BytesRuntimeFilter) maxSerializedSize() int {
	return baseHeaderSize + 4 + len(rf.min) + 4 + len(rf.max) +
		rf.partitionsSerializedSize()
}

func (rf *BytesRuntimeFilter) serialize(buf []byte) int {
	off := rf.serializeHeader(buf, rf.hasMinMax)
	off += putBytes(buf[off:], rf.min)
	off += putBytes(buf[off:], rf.max)
	return off + rf.serializePartitions(buf[off:])
}

func (rf *BytesRuntimeFilter) deserialize(data []byte) (int, error) {
	off, numPartitions, hasMinMax, err := rf.deserializeHeader(data, rf.typ)
	if err != nil {
		return 0, err
	}
	rf.hasMinMax = hasMinMax
	minv, n, err := getBytes(data[off:])
	if err != nil {
		return 0, err
	}
	off += n
	maxv, n, err := getBytes(data[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if hasMinMax {
		rf.min = append([]byte{}, minv...)
		rf.max = append([]byte{}, maxv...)
	} else {
		rf.min, rf.max = nil, nil
	}
	n, err = rf.deserializePartitions(data[off:], numPartitions)
	if err != nil {
		return 0, err
	}
	return off + n, nil
}

func putBytes(buf []byte, v []byte) int {
	sz := uint32(len(v))
	n := copy(buf, types.EncodeUint32(&sz))
	return n + copy(buf[n:], v)
}

func getBytes(data []byte) ([]byte, int, error) {
	if len(data) < 4 {
		return nil, 0, moerr.NewShortBufferNoCtx("runtime filter range")
	}
	sz := int(types.DecodeUint32(data))
	if len(data) < 4+sz {
		return nil, 0, moerr.NewShortBufferNoCtx("runtime filter range")
	}
	return data[4 : 4+sz], 4 + sz, nil
}
