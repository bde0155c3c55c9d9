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

package bitmap

import (
	"bytes"
	"math/bits"

	"github.com/matrixorigin/runtimefilter/pkg/common/moerr"
	"github.com/matrixorigin/runtimefilter/pkg/container/types"
)

// In case len is not multiple of 64, the code below assumes the trailing
// bits of the last word are zero.

// Bitmap is a dense bit set addressed by row number.
type Bitmap struct {
	len  int64
	data []uint64
}

func New() Bitmap {
	return Bitmap{}
}

func (n *Bitmap) InitWithSize(len int64) {
	n.len = len
	n.data = make([]uint64, (len+63)/64)
}

func (n *Bitmap) InitWith(other *Bitmap) {
	n.len = other.len
	n.data = append([]uint64(nil), other.data...)
}

func (n *Bitmap) Reset() {
	n.len = 0
	n.data = nil
}

// Len returns the number of bits in the Bitmap.
func (n *Bitmap) Len() int64 {
	return n.len
}

func (n *Bitmap) IsEmpty() bool {
	for i := 0; i < len(n.data); i++ {
		if n.data[i] != 0 {
			return false
		}
	}
	return true
}

// We always assume that bitmap has been extended to at least row.
func (n *Bitmap) Add(row uint64) {
	n.data[row>>6] |= 1 << (row & 0x3F)
}

// Contains returns true if the row is contained in the Bitmap
func (n *Bitmap) Contains(row uint64) bool {
	if row >= uint64(n.len) {
		return false
	}
	return (n.data[row>>6] & (1 << (row & 0x3F))) != 0
}

func (n *Bitmap) Or(m *Bitmap) {
	n.TryExpand(m)
	size := (int(m.len) + 63) / 64
	for i := 0; i < size; i++ {
		n.data[i] |= m.data[i]
	}
}

func (n *Bitmap) TryExpand(m *Bitmap) {
	n.TryExpandWithSize(int(m.len))
}

func (n *Bitmap) TryExpandWithSize(size int) {
	if int(n.len) >= size {
		return
	}
	newCap := (size + 63) / 64
	n.len = int64(size)
	if newCap > cap(n.data) {
		data := make([]uint64, newCap)
		copy(data, n.data)
		n.data = data
		return
	}
	if len(n.data) < newCap {
		n.data = n.data[:newCap]
	}
}

func (n *Bitmap) IsSame(m *Bitmap) bool {
	if len(m.data) != len(n.data) {
		return false
	}
	for i := 0; i < len(n.data); i++ {
		if n.data[i] != m.data[i] {
			return false
		}
	}
	return true
}

func (n *Bitmap) Count() int {
	var cnt int
	for i := int64(0); i < n.len/64; i++ {
		cnt += bits.OnesCount64(n.data[i])
	}
	if offset := n.len % 64; offset > 0 {
		start := (n.len / 64) * 64
		for i, j := start, start+offset; i < j; i++ {
			if n.Contains(uint64(i)) {
				cnt++
			}
		}
	}
	return cnt
}

func (n *Bitmap) Marshal() []byte {
	var buf bytes.Buffer
	u1 := uint64(n.len)
	u2 := uint64(len(n.data) * 8)
	buf.Write(types.EncodeUint64(&u1))
	buf.Write(types.EncodeUint64(&u2))
	buf.Write(types.EncodeSlice(n.data))
	return buf.Bytes()
}

func (n *Bitmap) Unmarshal(data []byte) error {
	if len(data) < 16 {
		return moerr.NewShortBufferNoCtx("bitmap header")
	}
	n.len = int64(types.DecodeUint64(data[:8]))
	data = data[8:]
	size := int(types.DecodeUint64(data[:8]))
	data = data[8:]
	if len(data) < size {
		return moerr.NewShortBufferNoCtx("bitmap data")
	}
	if size == 0 {
		n.data = nil
	} else {
		n.data = append([]uint64(nil), types.DecodeSlice[uint64](data[:size])...)
	}
	return nil
}
