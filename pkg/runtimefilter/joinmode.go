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
	"github.com/matrixorigin/runtimefilter/pkg/common/hashutil"
	"github.com/matrixorigin/runtimefilter/pkg/common/moerr"
)

// JoinMode records how the build side of the join was distributed across
// parallel build instances, which decides the routing function Evaluate
// uses to pick a sub-filter per row.  The numeric values are part of the
// serialized filter format and must not change.
type JoinMode int32

const (
	JoinModeNone JoinMode = iota
	JoinModeLocalHashBucket
	JoinModePartitioned
	JoinModeShuffleHashBucket
	JoinModeColocate

	joinModeMax
)

func (m JoinMode) String() string {
	switch m {
	case JoinModeNone:
		return "NONE"
	case JoinModeLocalHashBucket:
		return "LOCAL_HASH_BUCKET"
	case JoinModePartitioned:
		return "PARTITIONED"
	case JoinModeShuffleHashBucket:
		return "SHUFFLE_HASH_BUCKET"
	case JoinModeColocate:
		return "COLOCATE"
	}
	return "unknown join mode"
}

func (m JoinMode) valid() bool {
	return m >= JoinModeNone && m < joinModeMax
}

// routingSeed is the initial value of the per-row routing hash for this
// mode.  Bucket-style modes chain a crc32c from zero; shuffle-style modes
// chain a seeded FNV.  The same seeds are used when the build side
// partitions its rows.
func (m JoinMode) routingSeed() uint32 {
	switch m {
	case JoinModeLocalHashBucket, JoinModeColocate:
		return 0
	case JoinModePartitioned, JoinModeShuffleHashBucket:
		return hashutil.FnvSeed
	}
	return 0
}

func (m JoinMode) usesFnv() bool {
	return m == JoinModePartitioned || m == JoinModeShuffleHashBucket
}

// partitionOfHash routes one row hash to a sub-filter index.  Must be
// bit-identical to the build-side partitioning for the same mode.
func partitionOfHash(m JoinMode, h uint32, numPartitions int, bucketSeqToPartition []int32) (int, error) {
	switch m {
	case JoinModeNone:
		return 0, nil
	case JoinModeLocalHashBucket, JoinModePartitioned, JoinModeShuffleHashBucket:
		return int(h % uint32(numPartitions)), nil
	case JoinModeColocate:
		if len(bucketSeqToPartition) == 0 {
			return 0, moerr.NewInvalidInputNoCtx("colocate routing without a bucket sequence table")
		}
		return int(bucketSeqToPartition[h%uint32(len(bucketSeqToPartition))]), nil
	}
	return 0, moerr.NewUnsupportedJoinModeNoCtx(int32(m))
}
