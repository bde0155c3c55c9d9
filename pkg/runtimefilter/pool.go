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

import "sync"

// ObjectPool owns filters whose lifetime outlives the call that created
// them, typically everything deserialized while assembling a composite
// filter for one join.  Releasing the pool releases every filter at
// once.
type ObjectPool struct {
	mu   sync.Mutex
	objs []RuntimeFilter
}

func NewObjectPool() *ObjectPool {
	return &ObjectPool{}
}

// Add transfers ownership of rf to the pool and returns rf.
func (p *ObjectPool) Add(rf RuntimeFilter) RuntimeFilter {
	p.mu.Lock()
	p.objs = append(p.objs, rf)
	p.mu.Unlock()
	return rf
}

func (p *ObjectPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objs)
}

// Release drops every owned filter.  The pool is reusable afterwards.
func (p *ObjectPool) Release() {
	p.mu.Lock()
	p.objs = nil
	p.mu.Unlock()
}
