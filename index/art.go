/*
 * Copyright (c) 2024. Shuojiang Liu.
 * Licensed under the MIT License (the "License");
 * you may not use this file except in compliance with the License.
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package index

import (
	"sync"

	"github.com/caskdb/caskdb/data"
	goART "github.com/plar/go-adaptive-radix-tree"
)

// AdaptiveRadixTree is an Indexer backed by an adaptive radix tree, a denser alternative to
// BTree for keys that share long common prefixes.
//
// Refer to: https://github.com/plar/go-adaptive-radix-tree
type AdaptiveRadixTree struct {
	tree goART.Tree
	lock sync.RWMutex
}

// NewART constructs an empty adaptive-radix-tree index.
func NewART() *AdaptiveRadixTree {
	return &AdaptiveRadixTree{
		tree: goART.New(),
	}
}

func (art *AdaptiveRadixTree) Put(key []byte, pos *data.LogRecordPos) bool {
	art.lock.Lock()
	art.tree.Insert(key, pos)
	art.lock.Unlock()

	return true
}

func (art *AdaptiveRadixTree) Get(key []byte) (*data.LogRecordPos, bool) {
	art.lock.RLock()
	value, found := art.tree.Search(key)
	art.lock.RUnlock()

	if !found {
		return nil, false
	}
	return value.(*data.LogRecordPos), true
}

func (art *AdaptiveRadixTree) Delete(key []byte) bool {
	art.lock.Lock()
	_, deleted := art.tree.Delete(key)
	art.lock.Unlock()

	return deleted
}

func (art *AdaptiveRadixTree) Size() int {
	art.lock.RLock()
	defer art.lock.RUnlock()

	return art.tree.Size()
}

func (art *AdaptiveRadixTree) Close() error {
	return nil
}
