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

// Package vector carries the column batches a runtime filter is built
// from and evaluated against: typed values, a null bitmap, and the batch
// hash helpers that keep build-side partitioning and probe-side routing
// on the same hash function.
package vector

import (
	"github.com/matrixorigin/runtimefilter/pkg/common/hashutil"
	"github.com/matrixorigin/runtimefilter/pkg/common/moerr"
	"github.com/matrixorigin/runtimefilter/pkg/container/nulls"
	"github.com/matrixorigin/runtimefilter/pkg/container/types"
)

// Vector holds one column of rows.  Fixed-width values live in data;
// varchar values live in one shared area addressed by offsets, the n+1
// offsets layout.
type Vector struct {
	typ     types.T
	data    []byte
	area    []byte
	offsets []uint32
	nsp     *nulls.Nulls
	length  int
}

func NewVec(typ types.T) *Vector {
	v := &Vector{typ: typ, nsp: &nulls.Nulls{}}
	if !typ.IsFixedLen() {
		v.offsets = append(v.offsets, 0)
	}
	return v
}

func (v *Vector) GetType() types.T {
	return v.typ
}

func (v *Vector) Length() int {
	return v.length
}

func (v *Vector) GetNulls() *nulls.Nulls {
	return v.nsp
}

func (v *Vector) IsNull(i uint64) bool {
	return v.nsp.Contains(i)
}

// AppendFixed appends one fixed-width value; isNull overrides val.
func AppendFixed[T types.FixedSizeT](v *Vector, val T, isNull bool) error {
	if types.TypeOf[T]() != v.typ {
		return moerr.NewInternalErrorNoCtx("append %s to %s vector", types.TypeOf[T](), v.typ)
	}
	if isNull {
		var zero T
		val = zero
		v.nsp.Add(uint64(v.length))
	}
	v.data = append(v.data, types.EncodeFixed(val)...)
	v.length++
	return nil
}

// AppendBytes appends one varchar value; isNull overrides val.
func AppendBytes(v *Vector, val []byte, isNull bool) error {
	if v.typ != types.T_varchar {
		return moerr.NewInternalErrorNoCtx("append bytes to %s vector", v.typ)
	}
	if isNull {
		val = nil
		v.nsp.Add(uint64(v.length))
	}
	v.area = append(v.area, val...)
	v.offsets = append(v.offsets, uint32(len(v.area)))
	v.length++
	return nil
}

// MustFixedCol exposes the fixed-width payload as a typed slice.  The
// slice aliases the vector and is only valid while the vector lives.
func MustFixedCol[T types.FixedSizeT](v *Vector) []T {
	if types.TypeOf[T]() != v.typ {
		panic(moerr.NewInternalErrorNoCtx("reading %s column as %s", v.typ, types.TypeOf[T]()))
	}
	return types.DecodeSlice[T](v.data)
}

// GetBytesAt returns the varchar value of row i, aliasing the area.
func (v *Vector) GetBytesAt(i int) []byte {
	return v.area[v.offsets[i]:v.offsets[i+1]]
}

// rawAt returns the hashable bytes of row i regardless of type.
func (v *Vector) rawAt(i int) []byte {
	if sz := v.typ.FixedSize(); sz > 0 {
		return v.data[i*sz : (i+1)*sz]
	}
	return v.GetBytesAt(i)
}

// Crc32HashRows folds each row of [begin, begin+count) into hashes with a
// chained crc32c.  Callers preload hashes with the seed; null rows keep
// their seed.  Routing on the probe side relies on this matching the
// scalar hashutil.Crc32Hash exactly.
func (v *Vector) Crc32HashRows(hashes []uint32, begin, count int) {
	for j := 0; j < count; j++ {
		i := begin + j
		if v.nsp.Contains(uint64(i)) {
			continue
		}
		hashes[j] = hashutil.Crc32Hash(v.rawAt(i), hashes[j])
	}
}

// FnvHashRows is Crc32HashRows with the seeded FNV used by shuffle-style
// partitioning.
func (v *Vector) FnvHashRows(hashes []uint32, begin, count int) {
	for j := 0; j < count; j++ {
		i := begin + j
		if v.nsp.Contains(uint64(i)) {
			continue
		}
		hashes[j] = hashutil.FnvHash(v.rawAt(i), hashes[j])
	}
}
