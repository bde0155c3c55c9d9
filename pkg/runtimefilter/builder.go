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
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/matrixorigin/runtimefilter/pkg/common/moerr"
	"github.com/matrixorigin/runtimefilter/pkg/container/types"
	"github.com/matrixorigin/runtimefilter/pkg/container/vector"
)

// BuildOptions configures BuildPartitioned.
type BuildOptions struct {
	Mode JoinMode

	// NumPartitions is the build-side partition count; values below
	// one build a single-partition filter.
	NumPartitions int

	// BucketSeqToPartition is required for JoinModeColocate.
	BucketSeqToPartition []int32

	// Parallelism caps the worker count, defaulting to GOMAXPROCS.
	Parallelism int
}

// BuildPartitioned builds a composite runtime filter from the build-side
// column batches: rows are routed with the mode's partitioning hash, one
// worker fills each partition's sub-filter, and the sub-filters are
// concatenated in partition order.  The result routes probe rows exactly
// the way the build side was partitioned.
func BuildPartitioned(typ types.T, batches []*vector.Vector, opts BuildOptions) (RuntimeFilter, error) {
	if !opts.Mode.valid() {
		return nil, moerr.NewUnsupportedJoinModeNoCtx(int32(opts.Mode))
	}
	numPartitions := opts.NumPartitions
	if numPartitions <= 0 {
		numPartitions = 1
	}
	var total int
	for _, vec := range batches {
		if vec.GetType() != typ {
			return nil, moerr.NewInternalErrorNoCtx(
				"build %s runtime filter from %s batch", typ, vec.GetType())
		}
		total += vec.Length()
	}

	// Hash every batch once up front; the per-partition workers only
	// read.
	var hashes [][]uint32
	if numPartitions > 1 {
		hashes = make([][]uint32, len(batches))
		seed := opts.Mode.routingSeed()
		for bi, vec := range batches {
			hs := make([]uint32, vec.Length())
			for i := range hs {
				hs[i] = seed
			}
			if opts.Mode.usesFnv() {
				vec.FnvHashRows(hs, 0, len(hs))
			} else {
				vec.Crc32HashRows(hs, 0, len(hs))
			}
			hashes[bi] = hs
		}
	}

	parts := make([]RuntimeFilter, numPartitions)
	for p := range parts {
		rf, err := New(typ)
		if err != nil {
			return nil, err
		}
		rf.Init(total/numPartitions + 1)
		parts[p] = rf
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	if parallelism > numPartitions {
		parallelism = numPartitions
	}
	workers, err := ants.NewPool(parallelism)
	if err != nil {
		return nil, err
	}
	defer workers.Release()

	var wg sync.WaitGroup
	errs := make([]error, numPartitions)
	for p := 0; p < numPartitions; p++ {
		p := p
		wg.Add(1)
		if err := workers.Submit(func() {
			defer wg.Done()
			errs[p] = fillPartition(parts[p], p, batches, hashes, opts, numPartitions)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, err
		}
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	result := parts[0]
	for p := 1; p < numPartitions; p++ {
		result.Concat(parts[p])
	}
	result.SetJoinMode(opts.Mode)
	return result, nil
}

// fillPartition inserts every row routed to partition p.  Null rows hash
// to the seed and land on one deterministic partition, whose null flag
// Concat then propagates to the composite.
func fillPartition(rf RuntimeFilter, p int, batches []*vector.Vector,
	hashes [][]uint32, opts BuildOptions, numPartitions int) error {
	for bi, vec := range batches {
		for i := 0; i < vec.Length(); i++ {
			if numPartitions > 1 {
				part, err := partitionOfHash(
					opts.Mode, hashes[bi][i], numPartitions, opts.BucketSeqToPartition)
				if err != nil {
					return err
				}
				if part != p {
					continue
				}
			}
			if err := rf.InsertRow(vec, i); err != nil {
				return err
			}
		}
	}
	return nil
}
