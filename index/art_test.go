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
	"testing"

	"github.com/caskdb/caskdb/data"
	"github.com/stretchr/testify/assert"
)

func TestAdaptiveRadixTree_Put(t *testing.T) {
	art := NewART()

	assert.True(t, art.Put([]byte("key-1"), &data.LogRecordPos{FileID: 1, Offset: 24}))
	assert.True(t, art.Put([]byte("key-2"), &data.LogRecordPos{FileID: 1, Offset: 24}))
	assert.True(t, art.Put([]byte("key-3"), &data.LogRecordPos{FileID: 114, Offset: 514}))
}

func TestAdaptiveRadixTree_Get(t *testing.T) {
	art := NewART()

	art.Put([]byte("key-1"), &data.LogRecordPos{FileID: 1, Offset: 12})
	pos, ok := art.Get([]byte("key-1"))
	assert.True(t, ok)
	assert.NotNil(t, pos)

	_, ok = art.Get([]byte("key does not exist"))
	assert.False(t, ok)

	art.Put([]byte("key-1"), &data.LogRecordPos{FileID: 1123, Offset: 990})
	pos, ok = art.Get([]byte("key-1"))
	assert.True(t, ok)
	assert.Equal(t, uint32(1123), pos.FileID)
}

func TestAdaptiveRadixTree_Delete(t *testing.T) {
	art := NewART()

	assert.False(t, art.Delete([]byte("key does not exist")))

	art.Put([]byte("key-1"), &data.LogRecordPos{FileID: 1, Offset: 24})
	assert.True(t, art.Delete([]byte("key-1")))

	_, ok := art.Get([]byte("key-1"))
	assert.False(t, ok)
}

func TestAdaptiveRadixTree_Size(t *testing.T) {
	art := NewART()
	assert.Equal(t, 0, art.Size())

	art.Put([]byte("key-1"), &data.LogRecordPos{FileID: 1, Offset: 114})
	art.Put([]byte("key-2"), &data.LogRecordPos{FileID: 1, Offset: 114})
	art.Put([]byte("key-1"), &data.LogRecordPos{FileID: 1, Offset: 114})
	assert.Equal(t, 2, art.Size())
}
