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
	"math/bits"

	"github.com/matrixorigin/runtimefilter/pkg/common/moerr"
	"github.com/matrixorigin/runtimefilter/pkg/container/types"
)

const (
	// bucketWords words of 32 bits each, one cache line per bucket.
	bucketWords      = 8
	bucketByteSize   = bucketWords * 4
	bitsSetPerInsert = 8

	// roughly 16 bits per expected key, which keeps the observed false
	// positive rate around 1% for this blocked scheme
	bitsPerKey = 16
)

// Odd constants taken from the multiplicative hashing literature; one per
// probed word so the 8 bit positions of a key are pairwise independent.
var blockSalt = [bucketWords]uint32{
	0x47b6137b, 0x44974d91, 0x8824ad5b, 0xa2b7289d,
	0x705495c7, 0x2df1424b, 0x9efc4947, 0x5c6bfb31,
}

type bloomBucket [bucketWords]uint32

// BlockBloomFilter is a cache-line blocked bloom filter over 32-bit hash
// codes.  A key probes eight bit positions, all inside one 32-byte
// bucket picked by the high bits of its hash, so a lookup touches a
// single cache line.  Shape is fixed after Init; inserts are not safe
// for concurrent use, lookups are.
type BlockBloomFilter struct {
	logNumBuckets int
	directory     []bloomBucket
}

// Init sizes the directory for expectedInserts keys.  Non-positive
// counts are clamped; the directory is always at least one bucket.
func (bf *BlockBloomFilter) Init(expectedInserts int) {
	if expectedInserts < 1 {
		expectedInserts = 1
	}
	numBuckets := nextPow2((expectedInserts*bitsPerKey + bucketByteSize*8 - 1) / (bucketByteSize * 8))
	bf.logNumBuckets = bits.TrailingZeros64(uint64(numBuckets))
	bf.directory = make([]bloomBucket, numBuckets)
}

func nextPow2(n int) int {
	if n < 1 {
		return 1
	}
	return 1 << bits.Len64(uint64(n-1))
}

// bucketIdx picks a bucket from the high bits of the hash; the low bits
// feed the in-bucket mask, so the two stay independent.
func (bf *BlockBloomFilter) bucketIdx(h uint32) uint32 {
	return h >> (32 - uint(bf.logNumBuckets))
}

func (bf *BlockBloomFilter) InsertHash(h uint32) {
	bucket := &bf.directory[bf.bucketIdx(h)]
	for i := 0; i < bitsSetPerInsert; i++ {
		bucket[i] |= 1 << ((h * blockSalt[i]) >> 27)
	}
}

// TestHash reports whether h may have been inserted.  False positives
// are possible, false negatives are not.
func (bf *BlockBloomFilter) TestHash(h uint32) bool {
	bucket := &bf.directory[bf.bucketIdx(h)]
	for i := 0; i < bitsSetPerInsert; i++ {
		if bucket[i]&(1<<((h*blockSalt[i])>>27)) == 0 {
			return false
		}
	}
	return true
}

// Merge ORs other into bf.  Requires an identical directory shape;
// violating that is a combiner bug, not bad input.
func (bf *BlockBloomFilter) Merge(other *BlockBloomFilter) {
	if bf.logNumBuckets != other.logNumBuckets {
		panic(moerr.NewInternalErrorNoCtx(
			"merge block filters with different shapes: %d buckets vs %d buckets",
			len(bf.directory), len(other.directory)))
	}
	for i := range bf.directory {
		for j := 0; j < bucketWords; j++ {
			bf.directory[i][j] |= other.directory[i][j]
		}
	}
}

func (bf *BlockBloomFilter) CheckEqual(other *BlockBloomFilter) bool {
	if bf.logNumBuckets != other.logNumBuckets {
		return false
	}
	for i := range bf.directory {
		if bf.directory[i] != other.directory[i] {
			return false
		}
	}
	return true
}

// MaxSerializedSize returns a safe buffer size for Serialize.
func (bf *BlockBloomFilter) MaxSerializedSize() int {
	return 4 + len(bf.directory)*bucketByteSize
}

// Serialize writes a uint32 directory byte length followed by the raw
// directory and returns the bytes written.  The buffer must hold
// MaxSerializedSize bytes.
func (bf *BlockBloomFilter) Serialize(buf []byte) int {
	dirBytes := types.EncodeSlice(bf.directory)
	dirLen := uint32(len(dirBytes))
	copy(buf, types.EncodeUint32(&dirLen))
	copy(buf[4:], dirBytes)
	return 4 + len(dirBytes)
}

// Deserialize rebuilds the filter from buf and returns the bytes read.
func (bf *BlockBloomFilter) Deserialize(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, moerr.NewShortBufferNoCtx("block filter size header")
	}
	dirLen := int(types.DecodeUint32(buf[:4]))
	if dirLen <= 0 || dirLen%bucketByteSize != 0 {
		return 0, moerr.NewInvalidInputNoCtx("bad block filter directory size %d", dirLen)
	}
	numBuckets := dirLen / bucketByteSize
	if numBuckets&(numBuckets-1) != 0 {
		return 0, moerr.NewInvalidInputNoCtx("block filter bucket count %d not a power of two", numBuckets)
	}
	if len(buf) < 4+dirLen {
		return 0, moerr.NewShortBufferNoCtx("block filter directory")
	}
	bf.logNumBuckets = bits.TrailingZeros64(uint64(numBuckets))
	bf.directory = append([]bloomBucket(nil), types.DecodeSlice[bloomBucket](buf[4:4+dirLen])...)
	return 4 + dirLen, nil
}
