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

package caskdb

import (
	"os"

	"github.com/caskdb/caskdb/index"
	"go.uber.org/zap"
)

// Options configures a database instance.
type Options struct {
	// DirectoryPath is the path to the data directory. Must be non-empty.
	DirectoryPath string

	// DataFileSize is the byte threshold at which the active data file rotates. Must be
	// greater than zero.
	DataFileSize int64

	// SyncWrites, when true, fsyncs the active file after every single write.
	SyncWrites bool

	// BytesPerSync fsyncs the active file once this many bytes have been written
	// cumulatively, even when SyncWrites is false. Zero disables this cadence.
	BytesPerSync uint

	// IndexType selects the in-memory index implementation.
	IndexType IndexerType

	// MMapAtStartUp, when true, opens every data file over a read-only memory map for the
	// replay in Open, then switches them all back to the ordinary OS file backend.
	MMapAtStartUp bool

	// Logger receives structured diagnostics from the engine. A nil Logger falls back to a
	// production zap logger.
	Logger *zap.SugaredLogger
}

// IndexerType selects which Indexer implementation the engine builds on Open.
type IndexerType = int8

const (
	// BTree is the default ordered-map index.
	BTree IndexerType = iota + 1

	// ART is the adaptive-radix-tree index.
	ART

	// SkipList is the probabilistic alternative to BTree.
	SkipList
)

// DefaultOptions is a reasonable starting point for embedding the engine.
var DefaultOptions = Options{
	DirectoryPath: os.TempDir(),
	DataFileSize:  256 * 1024 * 1024, // 256MB
	SyncWrites:    false,
	BytesPerSync:  0,
	IndexType:     BTree,
	MMapAtStartUp: false,
}

// toIndexType maps the public IndexerType constants onto the index package's own type, so
// the two packages can evolve independently.
func toIndexType(tp IndexerType) index.IndexType {
	switch tp {
	case ART:
		return index.ARTIndex
	case SkipList:
		return index.SkipListIndex
	default:
		return index.BTreeIndex
	}
}
