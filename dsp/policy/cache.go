// Copyright 2024 go-dataspace
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package policy

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Verdict is the cached outcome of an agreement evaluation.
type Verdict struct {
	Valid  bool
	Reason string
}

func (v Verdict) result() string {
	if v.Valid {
		return "valid"
	}
	return "invalid"
}

// Cache memoises agreement verdicts.
type Cache interface {
	Get(agreementID string) (Verdict, bool)
	Add(agreementID string, v Verdict)
	Invalidate(agreementID string)
}

// LRUCache is a size bounded cache whose entries expire after a TTL.
type LRUCache struct {
	lru *expirable.LRU[string, Verdict]
}

func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[string, Verdict](size, nil, ttl)}
}

func (c *LRUCache) Get(agreementID string) (Verdict, bool) { return c.lru.Get(agreementID) }
func (c *LRUCache) Add(agreementID string, v Verdict)      { c.lru.Add(agreementID, v) }
func (c *LRUCache) Invalidate(agreementID string)          { c.lru.Remove(agreementID) }
func (c *LRUCache) Len() int                               { return c.lru.Len() }
