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

// Package index holds the in-memory key -> position mapping the engine consults on every
// read and updates on every write. Indexer is the only contract the engine depends on;
// callers are free to add further implementations as long as they satisfy it.
package index

import (
	"github.com/caskdb/caskdb/data"
)

// Indexer is the abstract index interface. Any data structure backing the engine's
// in-memory keydir implements this.
type Indexer interface {
	// Put associates key with pos, inserting or replacing any existing association, and
	// reports whether the association was stored.
	Put(key []byte, pos *data.LogRecordPos) bool

	// Get returns the position currently associated with key, if any.
	Get(key []byte) (*data.LogRecordPos, bool)

	// Delete removes the association for key, if present, and reports whether one existed.
	Delete(key []byte) bool

	// Size reports how many keys are currently indexed.
	Size() int

	// Close releases any resources held by the index.
	Close() error
}

// IndexType selects which Indexer implementation NewIndexer constructs.
type IndexType = int8

const (
	// BTreeIndex is the default ordered-map index, backed by google/btree.
	BTreeIndex IndexType = iota + 1

	// ARTIndex is an adaptive radix tree index, denser for keys sharing long prefixes.
	ARTIndex

	// SkipListIndex is the probabilistic-structure alternative named by the storage
	// contract as admissible in place of the ordered map.
	SkipListIndex
)

// NewIndexer constructs the Indexer implementation named by tp.
func NewIndexer(tp IndexType) Indexer {
	switch tp {
	case BTreeIndex:
		return NewBTree()
	case ARTIndex:
		return NewART()
	case SkipListIndex:
		return NewSkipList()
	default:
		panic("unsupported index type")
	}
}
