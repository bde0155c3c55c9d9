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

package types

import "golang.org/x/exp/constraints"

// T is the logical type tag of a column or a runtime filter.  The numeric
// values are part of the serialized filter format and must not change.
type T uint8

const (
	T_any T = 0

	T_int32     T = 10
	T_int64     T = 11
	T_decimal64 T = 20
	T_varchar   T = 30
)

// Decimal64 is a fixed-point decimal stored as a scaled integer.  Ordering
// and hashing follow the underlying integer representation.
type Decimal64 int64

// FixedSizeT is the set of fixed-width element types a runtime filter
// can be instantiated over.  Decimal64 is admitted through its
// underlying integer; TypeOf rejects instantiations with no oid.
type FixedSizeT interface {
	constraints.Signed
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_int32:
		return "INT"
	case T_int64:
		return "BIGINT"
	case T_decimal64:
		return "DECIMAL64"
	case T_varchar:
		return "VARCHAR"
	}
	return "unknown type"
}

// FixedSize reports the element width in bytes, 0 for var-len types.
func (t T) FixedSize() int {
	switch t {
	case T_int32:
		return 4
	case T_int64, T_decimal64:
		return 8
	}
	return 0
}

func (t T) IsFixedLen() bool {
	return t.FixedSize() > 0
}

// TypeOf maps a Go element type to its oid.
func TypeOf[T1 FixedSizeT]() T {
	var v T1
	switch any(v).(type) {
	case int32:
		return T_int32
	case int64:
		return T_int64
	case Decimal64:
		return T_decimal64
	}
	return T_any
}
