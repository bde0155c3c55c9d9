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

// Package hashutil holds the hash functions shared by the build and probe
// sides of a runtime filter.  Build-side partitioning and probe-side
// routing must use the very same function, so everything here is scalar
// and deterministic; the vector batch helpers delegate to these.
package hashutil

import (
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
)

const (
	// FnvSeed is the FNV-1 offset basis.  It doubles as the seed of the
	// value hash fed into the bloom filters.
	FnvSeed uint32 = 0x811C9DC5

	fnvPrime uint32 = 0x01000193
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Crc32Hash chains a crc32c over data starting from seed.  Used for value
// hashing and for bucket-style partition routing (LOCAL_HASH_BUCKET,
// COLOCATE).
func Crc32Hash(data []byte, seed uint32) uint32 {
	return crc32.Update(seed, crc32cTable, data)
}

// FnvHash chains a seeded FNV-1a over data.  Used for shuffle-style
// partition routing (PARTITIONED, SHUFFLE_HASH_BUCKET).
func FnvHash(data []byte, seed uint32) uint32 {
	h := seed
	for _, b := range data {
		h = (uint32(b) ^ h) * fnvPrime
	}
	return h
}

// XXHash64 is the integrity checksum applied to serialized filter
// payloads before transmission.  It is not used for routing.
func XXHash64(data []byte) uint64 {
	return xxhash.Sum64(data)
}
