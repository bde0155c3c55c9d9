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

// Package runtimefilter implements the join runtime filter: a bloom
// filter plus min/max range built from the build side of a hash join,
// shipped to the probe side, and evaluated against probe columns to
// discard rows that provably cannot match.  When the build side is
// partitioned, one sub-filter per partition is kept and probe rows are
// routed to the sub-filter their partition hash selects, with the exact
// partitioning function reproduced on both sides.
package runtimefilter

import (
	"github.com/matrixorigin/runtimefilter/pkg/common/hashutil"
	"github.com/matrixorigin/runtimefilter/pkg/common/moerr"
	"github.com/matrixorigin/runtimefilter/pkg/container/types"
	"github.com/matrixorigin/runtimefilter/pkg/container/vector"
)

// RuntimeFilter is the type-erased surface the codec and the combiner
// work against.  Concrete filters are FixedRuntimeFilter[T] and
// BytesRuntimeFilter.  A filter is mutated only during build and
// combination; once handed to the probe side it is read-only and safe
// for concurrent Evaluate calls, each with its own RunningContext.
type RuntimeFilter interface {
	Type() types.T

	// Init sizes the single underlying block filter for the expected
	// build row count.
	Init(expectedInserts int)

	// InsertVector inserts every row of vec; null rows only set the
	// null flag.
	InsertVector(vec *vector.Vector) error

	// InsertRow inserts one row of vec.
	InsertRow(vec *vector.Vector, row int) error

	// Evaluate tests every still-selected row of vec, ANDs the outcome
	// into ctx.Selection, and returns the surviving row count.
	Evaluate(vec *vector.Vector, ctx *RunningContext) (int, error)

	// Merge unions other into the receiver.  Same type and partition
	// layout required; a mismatch is a coordinator bug and panics.
	Merge(other RuntimeFilter)

	// Concat appends other's sub-filters as new partitions, keeping
	// per-partition separability a Merge would destroy.
	Concat(other RuntimeFilter)

	SetJoinMode(mode JoinMode)
	GetJoinMode() JoinMode
	HasNull() bool

	// Size is the number of inserted rows, carried through
	// serialization and summed by Concat.
	Size() int64
	NumPartitions() int

	// CheckEqual deep-compares two filters; round-trip verification
	// only, not a hot-path operation.
	CheckEqual(other RuntimeFilter) bool

	maxSerializedSize() int
	serialize(buf []byte) int
	deserialize(data []byte) (int, error)
}

// New returns an empty filter of the given logical type, the dispatch
// the codec uses on the leading type tag.
func New(typ types.T) (RuntimeFilter, error) {
	switch typ {
	case types.T_int32:
		return NewFixed[int32](), nil
	case types.T_int64:
		return NewFixed[int64](), nil
	case types.T_decimal64:
		return NewFixed[types.Decimal64](), nil
	case types.T_varchar:
		return NewBytes(), nil
	}
	return nil, moerr.NewUnsupportedDataTypeNoCtx(typ)
}

// valueHash is the membership hash fed into the block filters.  It is
// deliberately distinct from the routing hash: routing reproduces the
// build-side partitioning, membership only needs determinism.
func valueHash(raw []byte) uint32 {
	return hashutil.Crc32Hash(raw, hashutil.FnvSeed)
}

// baseFilter carries the type-independent state of a runtime filter.
type baseFilter struct {
	typ        types.T
	joinMode   JoinMode
	hasNull    bool
	size       int64
	partitions []*BlockBloomFilter
}

func (b *baseFilter) Type() types.T {
	return b.typ
}

func (b *baseFilter) Init(expectedInserts int) {
	bf := &BlockBloomFilter{}
	bf.Init(expectedInserts)
	b.partitions = []*BlockBloomFilter{bf}
}

func (b *baseFilter) SetJoinMode(mode JoinMode) {
	b.joinMode = mode
}

func (b *baseFilter) GetJoinMode() JoinMode {
	return b.joinMode
}

func (b *baseFilter) HasNull() bool {
	return b.hasNull
}

func (b *baseFilter) Size() int64 {
	return b.size
}

func (b *baseFilter) NumPartitions() int {
	return len(b.partitions)
}

// insertHash inserts into the build-target partition.  Filters are built
// single-partition; composites only ever come from Concat.
func (b *baseFilter) insertHash(h uint32) {
	if len(b.partitions) == 0 {
		b.Init(0)
	}
	b.partitions[0].InsertHash(h)
	b.size++
}

func (b *baseFilter) mergeBase(o *baseFilter) {
	if len(b.partitions) != len(o.partitions) {
		panic(moerr.NewInternalErrorNoCtx(
			"merge runtime filters with different partition layouts: %d vs %d",
			len(b.partitions), len(o.partitions)))
	}
	for i := range b.partitions {
		b.partitions[i].Merge(o.partitions[i])
	}
	b.hasNull = b.hasNull || o.hasNull
	b.size += o.size
}

func (b *baseFilter) concatBase(o *baseFilter) {
	b.partitions = append(b.partitions, o.partitions...)
	b.hasNull = b.hasNull || o.hasNull
	b.size += o.size
}

func (b *baseFilter) checkEqualBase(o *baseFilter) bool {
	if b.typ != o.typ || b.joinMode != o.joinMode ||
		b.hasNull != o.hasNull || b.size != o.size ||
		len(b.partitions) != len(o.partitions) {
		return false
	}
	for i := range b.partitions {
		if !b.partitions[i].CheckEqual(o.partitions[i]) {
			return false
		}
	}
	return true
}

// route picks the sub-filter for one routing hash.  Single-partition
// filters skip routing entirely.
func (b *baseFilter) route(h uint32, ctx *RunningContext) (int, error) {
	if len(b.partitions) == 1 {
		return 0, nil
	}
	return partitionOfHash(b.joinMode, h, len(b.partitions), ctx.BucketSeqToPartition)
}

const (
	// type tag + join mode + partition count + row count + null flag +
	// range-present flag
	baseHeaderSize = 1 + 1 + 4 + 8 + 1 + 1

	maxPartitionCount = 1 << 20
)

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

// serializeHeader writes everything through the range-present flag and
// returns the write offset.
func (b *baseFilter) serializeHeader(buf []byte, hasMinMax bool) int {
	buf[0] = uint8(b.typ)
	buf[1] = uint8(b.joinMode)
	numPartitions := int32(len(b.partitions))
	copy(buf[2:], types.EncodeInt32(&numPartitions))
	copy(buf[6:], types.EncodeInt64(&b.size))
	buf[14] = boolByte(b.hasNull)
	buf[15] = boolByte(hasMinMax)
	return baseHeaderSize
}

// deserializeHeader parses through the range-present flag, leaving the
// partition count for deserializePartitions.  Returns the read offset,
// the partition count and the range-present flag.
func (b *baseFilter) deserializeHeader(data []byte, expect types.T) (int, int, bool, error) {
	if len(data) < baseHeaderSize {
		return 0, 0, false, moerr.NewShortBufferNoCtx("runtime filter header")
	}
	if typ := types.T(data[0]); typ != expect {
		return 0, 0, false, moerr.NewInvalidInputNoCtx(
			"runtime filter type tag %s does not match %s", typ, expect)
	}
	mode := JoinMode(data[1])
	if !mode.valid() {
		return 0, 0, false, moerr.NewUnsupportedJoinModeNoCtx(int32(data[1]))
	}
	numPartitions := int(types.DecodeInt32(data[2:6]))
	if numPartitions < 0 || numPartitions > maxPartitionCount {
		return 0, 0, false, moerr.NewInvalidInputNoCtx(
			"bad runtime filter partition count %d", numPartitions)
	}
	b.typ = expect
	b.joinMode = mode
	b.size = types.DecodeInt64(data[6:14])
	b.hasNull = data[14] != 0
	return baseHeaderSize, numPartitions, data[15] != 0, nil
}

func (b *baseFilter) partitionsSerializedSize() int {
	var n int
	for _, p := range b.partitions {
		n += p.MaxSerializedSize()
	}
	return n
}

func (b *baseFilter) serializePartitions(buf []byte) int {
	var off int
	for _, p := range b.partitions {
		off += p.Serialize(buf[off:])
	}
	return off
}

func (b *baseFilter) deserializePartitions(data []byte, numPartitions int) (int, error) {
	b.partitions = make([]*BlockBloomFilter, numPartitions)
	var off int
	for i := 0; i < numPartitions; i++ {
		bf := &BlockBloomFilter{}
		n, err := bf.Deserialize(data[off:])
		if err != nil {
			return 0, err
		}
		b.partitions[i] = bf
		off += n
	}
	return off, nil
}
