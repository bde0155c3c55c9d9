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

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/runtimefilter/pkg/container/types"
	"github.com/matrixorigin/runtimefilter/pkg/container/vector"
)

// makeFixedVec builds a test vector; nullRows indexes into vals and
// marks those positions null.
func makeFixedVec[T types.FixedSizeT](t *testing.T, typ types.T, vals []T, nullRows ...int) *vector.Vector {
	nulls := make(map[int]bool, len(nullRows))
	for _, r := range nullRows {
		nulls[r] = true
	}
	vec := vector.NewVec(typ)
	for i, v := range vals {
		require.NoError(t, vector.AppendFixed(vec, v, nulls[i]))
	}
	return vec
}

func makeInt32Vec(t *testing.T, vals []int32, nullRows ...int) *vector.Vector {
	return makeFixedVec(t, types.T_int32, vals, nullRows...)
}

func makeVarcharVec(t *testing.T, vals []string, nullRows ...int) *vector.Vector {
	nulls := make(map[int]bool, len(nullRows))
	for _, r := range nullRows {
		nulls[r] = true
	}
	vec := vector.NewVec(types.T_varchar)
	for i, v := range vals {
		require.NoError(t, vector.AppendBytes(vec, []byte(v), nulls[i]))
	}
	return vec
}

func int32Range(begin, end, step int) []int32 {
	var out []int32
	for i := begin; i < end; i += step {
		out = append(out, int32(i))
	}
	return out
}
