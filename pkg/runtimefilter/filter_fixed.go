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
	"unsafe"

	"github.com/matrixorigin/runtimefilter/pkg/common/moerr"
	"github.com/matrixorigin/runtimefilter/pkg/container/types"
	"github.com/matrixorigin/runtimefilter/pkg/container/vector"
)

// FixedRuntimeFilter is the runtime filter over one fixed-width column
// type.  The min/max range rides along with the bloom filter so probe
// rows outside the build range never touch the filter at all.
type FixedRuntimeFilter[T types.FixedSizeT] struct {
	baseFilter
	hasMinMax bool
	min, max  T
}

func NewFixed[T types.FixedSizeT]() *FixedRuntimeFilter[T] {
	typ := types.TypeOf[T]()
	if typ == types.T_any {
		panic(moerr.NewUnsupportedDataTypeNoCtx(typ))
	}
	return &FixedRuntimeFilter[T]{
		baseFilter: baseFilter{typ: typ},
	}
}

// Insert adds one build value.  A nil pointer records a build-side null
// without touching the filter.
func (rf *FixedRuntimeFilter[T]) Insert(v *T) {
	if v == nil {
		rf.hasNull = true
		return
	}
	rf.updateRange(*v)
	rf.insertHash(valueHash(types.EncodeFixed(*v)))
}

func (rf *FixedRuntimeFilter[T]) updateRange(v T) {
	if !rf.hasMinMax {
		rf.hasMinMax = true
		rf.min, rf.max = v, v
		return
	}
	if v < rf.min {
		rf.min = v
	}
	if v > rf.max {
		rf.max = v
	}
}

// TestValue is the scalar probe: range check first, then the bloom
// filter of partition 0.  Composite filters go through Evaluate.
func (rf *FixedRuntimeFilter[T]) TestValue(v T) bool {
	if !rf.hasMinMax || v < rf.min || v > rf.max {
		return false
	}
	if len(rf.partitions) == 0 {
		return false
	}
	return rf.partitions[0].TestHash(valueHash(types.EncodeFixed(v)))
}

func (rf *FixedRuntimeFilter[T]) HasMinMax() bool {
	return rf.hasMinMax
}

func (rf *FixedRuntimeFilter[T]) MinValue() T {
	return rf.min
}

func (rf *FixedRuntimeFilter[T]) MaxValue() T {
	return rf.max
}

func (rf *FixedRuntimeFilter[T]) InsertVector(vec *vector.Vector) error {
	if vec.GetType() != rf.typ {
		return moerr.NewInternalErrorNoCtx(
			"insert %s vector into %s runtime filter", vec.GetType(), rf.typ)
	}
	col := vector.MustFixedCol[T](vec)
	for i := 0; i < vec.Length(); i++ {
		if vec.IsNull(uint64(i)) {
			rf.hasNull = true
			continue
		}
		rf.Insert(&col[i])
	}
	return nil
}

func (rf *FixedRuntimeFilter[T]) InsertRow(vec *vector.Vector, row int) error {
	if vec.GetType() != rf.typ {
		return moerr.NewInternalErrorNoCtx(
			"insert %s vector into %s runtime filter", vec.GetType(), rf.typ)
	}
	if vec.IsNull(uint64(row)) {
		rf.hasNull = true
		return nil
	}
	col := vector.MustFixedCol[T](vec)
	rf.Insert(&col[row])
	return nil
}

func (rf *FixedRuntimeFilter[T]) Evaluate(vec *vector.Vector, ctx *RunningContext) (int, error) {
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
	col := vector.MustFixedCol[T](vec)
	for i := 0; i < n; i++ {
		if sel[i] == 0 {
			continue
		}
		if vec.IsNull(uint64(i)) {
			sel[i] = 0
			continue
		}
		v := col[i]
		if !rf.hasMinMax || v < rf.min || v > rf.max {
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
		if !rf.partitions[part].TestHash(valueHash(types.EncodeFixed(v))) {
			sel[i] = 0
		}
	}
	return CountNonzero(sel), nil
}

func (rf *FixedRuntimeFilter[T]) Merge(other RuntimeFilter) {
	o, ok := other.(*FixedRuntimeFilter[T])
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

func (rf *FixedRuntimeFilter[T]) Concat(other RuntimeFilter) {
	o, ok := other.(*FixedRuntimeFilter[T])
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

func (rf *FixedRuntimeFilter[T]) CheckEqual(other RuntimeFilter) bool {
	o, ok := other.(*FixedRuntimeFilter[T])
	if !ok {
		return false
	}
	if !rf.checkEqualBase(&o.baseFilter) {
		return false
	}
	if rf.hasMinMax != o.hasMinMax {
		return false
	}
	return !rf.hasMinMax || (rf.min == o.min && rf.max == o.max)
}

func (rf *FixedRuntimeFilter[T]) maxSerializedSize() int {
	var v T
	return baseHeaderSize + 2*int(unsafe.Sizeof(v)) + rf.partitionsSerializedSize()
}

func (rf *FixedRuntimeFilter[T]) serialize(buf []byte) int {
	off := rf.serializeHeader(buf, rf.hasMinMax)
	off += copy(buf[off:], types.EncodeFixed(rf.min))
	off += copy(buf[off:], types.EncodeFixed(rf.max))
	return off + rf.serializePartitions(buf[off:])
}

func (rf *FixedRuntimeFilter[T]) deserialize(data []byte) (int, error) {
	off, numPartitions, hasMinMax, err := rf.deserializeHeader(data, rf.typ)
	if err != nil {
		return 0, err
	}
	var v T
	width := int(unsafe.Sizeof(v))
	if len(data) < off+2*width {
		return 0, moerr.NewShortBufferNoCtx("runtime filter range")
	}
	rf.hasMinMax = hasMinMax
	rf.min = types.DecodeFixed[T](data[off : off+width])
	rf.max = types.DecodeFixed[T](data[off+width : off+2*width])
	off += 2 * width
	n, err := rf.deserializePartitions(data[off:], numPartitions)
	if err != nil {
		return 0, err
	}
	return off + n, nil
}
