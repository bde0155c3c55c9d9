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
	"github.com/matrixorigin/runtimefilter/pkg/common/moerr"
	"github.com/matrixorigin/runtimefilter/pkg/container/types"
)

// MaxRuntimeFilterSerializedSize bounds the buffer a caller must hand to
// SerializeRuntimeFilter.  The actual write may be shorter: callers
// truncate to the returned length.
func MaxRuntimeFilterSerializedSize(rf RuntimeFilter) int {
	return rf.maxSerializedSize()
}

// SerializeRuntimeFilter writes rf into buf and returns the bytes
// written.
func SerializeRuntimeFilter(rf RuntimeFilter, buf []byte) (int, error) {
	if need := rf.maxSerializedSize(); len(buf) < need {
		return 0, moerr.NewShortBufferNoCtx("runtime filter serialization")
	}
	return rf.serialize(buf), nil
}

// MarshalRuntimeFilter is the allocate-and-serialize convenience.
func MarshalRuntimeFilter(rf RuntimeFilter) ([]byte, error) {
	buf := make([]byte, rf.maxSerializedSize())
	n, err := SerializeRuntimeFilter(rf, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// DeserializeRuntimeFilter decodes one filter from data, dispatching on
// the leading type tag, and parks it in pool.  The returned filter owns
// copies of everything it needs; data may be recycled by the caller.
func DeserializeRuntimeFilter(pool *ObjectPool, data []byte) (RuntimeFilter, error) {
	if len(data) == 0 {
		return nil, moerr.NewUnexpectedEOFNoCtx("runtime filter")
	}
	rf, err := New(types.T(data[0]))
	if err != nil {
		return nil, err
	}
	n, err := rf.deserialize(data)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, moerr.NewInvalidInputNoCtx(
			"%d trailing bytes after runtime filter", len(data)-n)
	}
	if pool != nil {
		pool.Add(rf)
	}
	return rf, nil
}
