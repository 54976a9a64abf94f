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
	"bytes"
	"sync"

	"github.com/caskdb/caskdb/data"
	"github.com/google/btree"
)

// item is the value stored in the BTree; it carries its own key so btree.Item.Less can
// compare two items directly.
type item struct {
	key []byte
	pos *data.LogRecordPos
}

func (i *item) Less(rhs btree.Item) bool {
	return bytes.Compare(i.key, rhs.(*item).key) < 0
}

// BTree is the default ordered-map index. It wraps google/btree, which is not itself
// concurrency-safe, behind a RWMutex.
//
// Put always inserts-or-replaces: a variant that refuses to overwrite an existing key would
// make every second write for that key fail, which contradicts last-write-wins.
type BTree struct {
	tree *btree.BTree
	lock sync.RWMutex
}

// NewBTree constructs an empty BTree index.
func NewBTree() *BTree {
	return &BTree{
		tree: btree.New(32),
	}
}

func (bt *BTree) Put(key []byte, pos *data.LogRecordPos) bool {
	it := &item{key: key, pos: pos}

	bt.lock.Lock()
	bt.tree.ReplaceOrInsert(it)
	bt.lock.Unlock()

	return true
}

func (bt *BTree) Get(key []byte) (*data.LogRecordPos, bool) {
	bt.lock.RLock()
	found := bt.tree.Get(&item{key: key})
	bt.lock.RUnlock()

	if found == nil {
		return nil, false
	}
	return found.(*item).pos, true
}

func (bt *BTree) Delete(key []byte) bool {
	bt.lock.Lock()
	removed := bt.tree.Delete(&item{key: key})
	bt.lock.Unlock()

	return removed != nil
}

func (bt *BTree) Size() int {
	bt.lock.RLock()
	defer bt.lock.RUnlock()

	return bt.tree.Len()
}

func (bt *BTree) Close() error {
	return nil
}
