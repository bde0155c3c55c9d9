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

// Package nulls tracks the null rows of a vector as a bitmap keyed by row
// number.
package nulls

import (
	"github.com/matrixorigin/runtimefilter/pkg/common/bitmap"
)

type Nulls struct {
	np bitmap.Bitmap
}

func NewWithSize(size int) *Nulls {
	var n Nulls
	n.InitWithSize(size)
	return &n
}

func (nsp *Nulls) InitWithSize(size int) {
	nsp.np.InitWithSize(int64(size))
}

func (nsp *Nulls) Reset() {
	nsp.np.Reset()
}

// Any returns true if there are any null values.
func (nsp *Nulls) Any() bool {
	return nsp != nil && !nsp.np.IsEmpty()
}

func (nsp *Nulls) Count() int {
	if nsp == nil {
		return 0
	}
	return nsp.np.Count()
}

func (nsp *Nulls) Add(rows ...uint64) {
	if len(rows) == 0 {
		return
	}
	nsp.np.TryExpandWithSize(int(rows[len(rows)-1]) + 1)
	for _, row := range rows {
		nsp.np.Add(row)
	}
}

// Contains returns true if the row is null.
func (nsp *Nulls) Contains(row uint64) bool {
	return nsp != nil && nsp.np.Contains(row)
}

func (nsp *Nulls) Or(m *Nulls) {
	if m == nil {
		return
	}
	nsp.np.Or(&m.np)
}

func (nsp *Nulls) GetBitmap() *bitmap.Bitmap {
	if nsp == nil {
		return nil
	}
	return &nsp.np
}
