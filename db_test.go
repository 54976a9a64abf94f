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
	"testing"

	"github.com/caskdb/caskdb/utils"
	"github.com/stretchr/testify/assert"
)

func destroyDB(db *DB) {
	if db != nil {
		if db.activeFile != nil {
			_ = db.Close()
		}

		for _, off := range db.olderFiles {
			if off != nil {
				_ = off.Close()
			}
		}

		if err := os.RemoveAll(db.options.DirectoryPath); err != nil {
			panic(err)
		}
	}
}

func TestOpen(t *testing.T) {
	options := DefaultOptions
	directory, _ := os.MkdirTemp("", "caskdb")
	options.DirectoryPath = directory

	db, err := Open(options)
	defer destroyDB(db)

	assert.Nil(t, err)
	assert.NotNil(t, db)
}

func TestOpen_RejectsInvalidOptions(t *testing.T) {
	options := DefaultOptions
	options.DirectoryPath = ""
	_, err := Open(options)
	assert.Equal(t, ErrDirectoryPathEmpty, err)

	options = DefaultOptions
	options.DataFileSize = 0
	_, err = Open(options)
	assert.Equal(t, ErrDataFileSizeInvalid, err)
}

func TestDB_Put(t *testing.T) {
	options := DefaultOptions
	directory, _ := os.MkdirTemp("", "caskdb")
	options.DirectoryPath = directory
	options.DataFileSize = 1024 * 1024

	db, err := Open(options)
	defer destroyDB(db)

	assert.Nil(t, err)
	assert.NotNil(t, db)

	// normal put
	err = db.Put(utils.GetTestKey(1), utils.RandomValue(42))
	assert.Nil(t, err)
	value1, err := db.Get(utils.GetTestKey(1))
	assert.Nil(t, err)
	assert.NotNil(t, value1)

	// overwrite an existing key
	err = db.Put(utils.GetTestKey(1), utils.RandomValue(42))
	assert.Nil(t, err)
	value2, err := db.Get(utils.GetTestKey(1))
	assert.Nil(t, err)
	assert.NotNil(t, value2)

	// empty key rejected
	err = db.Put(nil, utils.RandomValue(42))
	assert.Equal(t, ErrKeyIsEmpty, err)

	// empty value accepted
	err = db.Put(utils.GetTestKey(24), nil)
	assert.Nil(t, err)
	value3, err := db.Get(utils.GetTestKey(24))
	assert.Equal(t, 0, len(value3))
	assert.Nil(t, err)

	// enough writes to force rotation across several data files
	for i := 0; i < 50000; i++ {
		err := db.Put(utils.GetTestKey(i), utils.RandomValue(128))
		assert.Nil(t, err)
	}
	assert.True(t, len(db.olderFiles) > 0)

	// reopen and confirm the engine is still writable
	assert.Nil(t, db.Close())
	db2, err := Open(options)
	defer destroyDB(db2)

	assert.Nil(t, err)
	assert.NotNil(t, db2)
	value4 := utils.RandomValue(128)
	err = db2.Put(utils.GetTestKey(1919), value4)
	assert.Nil(t, err)
	value5, err := db2.Get(utils.GetTestKey(1919))
	assert.Nil(t, err)
	assert.Equal(t, value4, value5)
}

func TestDB_Get(t *testing.T) {
	options := DefaultOptions
	directory, _ := os.MkdirTemp("", "caskdb")
	options.DirectoryPath = directory
	options.DataFileSize = 1024 * 1024

	db, err := Open(options)
	defer destroyDB(db)

	assert.Nil(t, err)
	assert.NotNil(t, db)

	err = db.Put(utils.GetTestKey(11), utils.RandomValue(514))
	assert.Nil(t, err)
	value1, err := db.Get(utils.GetTestKey(11))
	assert.Nil(t, err)
	assert.NotNil(t, value1)

	value2, err := db.Get([]byte("never inserted"))
	assert.Nil(t, value2)
	assert.Equal(t, ErrKeyNotFound, err)

	err = db.Put(utils.GetTestKey(21), utils.RandomValue(14))
	assert.Nil(t, err)
	err = db.Put(utils.GetTestKey(21), utils.RandomValue(14))
	assert.Nil(t, err)
	value3, err := db.Get(utils.GetTestKey(21))
	assert.Nil(t, err)
	assert.NotNil(t, value3)

	err = db.Put(utils.GetTestKey(40), utils.RandomValue(1919))
	assert.Nil(t, err)
	err = db.Delete(utils.GetTestKey(40))
	assert.Nil(t, err)
	value4, err := db.Get(utils.GetTestKey(40))
	assert.Equal(t, 0, len(value4))
	assert.Equal(t, ErrKeyNotFound, err)

	// push enough data through to exercise reads from sealed (non-active) files
	for i := 100; i < 50000; i++ {
		err := db.Put(utils.GetTestKey(i), utils.RandomValue(128))
		assert.Nil(t, err)
	}
	assert.True(t, len(db.olderFiles) > 0)
	value5, err := db.Get(utils.GetTestKey(124))
	assert.Nil(t, err)
	assert.NotNil(t, value5)

	assert.Nil(t, db.Close())
	db2, err := Open(options)
	defer destroyDB(db2)

	assert.Nil(t, err)
	assert.NotNil(t, db2)

	value6, err := db2.Get(utils.GetTestKey(11))
	assert.Nil(t, err)
	assert.Equal(t, value1, value6)

	value7, err := db2.Get(utils.GetTestKey(21))
	assert.Nil(t, err)
	assert.Equal(t, value3, value7)

	value8, err := db2.Get(utils.GetTestKey(40))
	assert.Equal(t, 0, len(value8))
	assert.Equal(t, ErrKeyNotFound, err)
}

func TestDB_Delete(t *testing.T) {
	options := DefaultOptions
	directory, _ := os.MkdirTemp("", "caskdb")
	options.DirectoryPath = directory
	options.DataFileSize = 1024 * 1024

	db, err := Open(options)
	defer destroyDB(db)

	assert.Nil(t, err)
	assert.NotNil(t, db)

	err = db.Put(utils.GetTestKey(114), utils.RandomValue(514))
	assert.Nil(t, err)
	err = db.Delete(utils.GetTestKey(114))
	assert.Nil(t, err)
	_, err = db.Get(utils.GetTestKey(114))
	assert.Equal(t, ErrKeyNotFound, err)

	// deleting a key that was never written is not an error
	err = db.Delete([]byte("unknown key"))
	assert.Nil(t, err)

	// deleting an empty key is rejected
	err = db.Delete(nil)
	assert.Equal(t, ErrKeyIsEmpty, err)

	// a key can be reused after being deleted
	err = db.Put(utils.GetTestKey(1145), utils.RandomValue(1919))
	assert.Nil(t, err)
	err = db.Delete(utils.GetTestKey(1145))
	assert.Nil(t, err)

	err = db.Put(utils.GetTestKey(1145), utils.RandomValue(1919))
	assert.Nil(t, err)
	val1, err := db.Get(utils.GetTestKey(1145))
	assert.Nil(t, err)
	assert.NotNil(t, val1)

	assert.Nil(t, db.Close())
	db2, err := Open(options)
	defer destroyDB(db2)

	assert.Nil(t, err)
	assert.NotNil(t, db2)

	_, err = db2.Get(utils.GetTestKey(114))
	assert.Equal(t, ErrKeyNotFound, err)

	val2, err := db2.Get(utils.GetTestKey(1145))
	assert.Nil(t, err)
	assert.Equal(t, val1, val2)
}

func TestDB_Close(t *testing.T) {
	options := DefaultOptions
	directory, _ := os.MkdirTemp("", "caskdb")
	options.DirectoryPath = directory

	db, err := Open(options)
	defer destroyDB(db)

	assert.Nil(t, err)
	assert.NotNil(t, db)

	err = db.Put(utils.GetTestKey(114), utils.RandomValue(514))
	assert.Nil(t, err)

	err = db.Close()
	assert.Nil(t, err)
}

func TestDB_Sync(t *testing.T) {
	options := DefaultOptions
	directory, _ := os.MkdirTemp("", "caskdb")
	options.DirectoryPath = directory

	db, err := Open(options)
	defer destroyDB(db)

	assert.Nil(t, err)
	assert.NotNil(t, db)

	err = db.Put(utils.GetTestKey(114), utils.RandomValue(514))
	assert.Nil(t, err)

	err = db.Sync()
	assert.Nil(t, err)
}

func TestDB_FileLock(t *testing.T) {
	options := DefaultOptions
	directory, _ := os.MkdirTemp("", "caskdb")
	options.DirectoryPath = directory

	db, err := Open(options)
	defer destroyDB(db)

	assert.Nil(t, err)
	assert.NotNil(t, db)

	_, err = Open(options)
	assert.Equal(t, ErrDatabaseIsUsing, err)

	err = db.Close()
	assert.Nil(t, err)

	db2, err := Open(options)
	assert.Nil(t, err)
	assert.NotNil(t, db2)

	err = db2.Close()
	assert.Nil(t, err)
}

func TestDB_Stat(t *testing.T) {
	options := DefaultOptions
	directory, _ := os.MkdirTemp("", "caskdb")
	options.DirectoryPath = directory

	db, err := Open(options)
	defer destroyDB(db)

	assert.Nil(t, err)
	assert.NotNil(t, db)

	for i := 100; i < 10000; i++ {
		err := db.Put(utils.GetTestKey(i), utils.RandomValue(128))
		assert.Nil(t, err)
	}

	for i := 100; i < 1000; i++ {
		err := db.Delete(utils.GetTestKey(i))
		assert.Nil(t, err)
	}

	for i := 2000; i < 5000; i++ {
		err := db.Put(utils.GetTestKey(i), utils.RandomValue(128))
		assert.Nil(t, err)
	}

	stat := db.Stat()
	assert.True(t, stat.KeyCount > 0)
	assert.True(t, stat.DataFileCount > 0)
	assert.True(t, stat.DiskSize > 0)
	// the deletes and the 2000-4999 overwrites above both supersede live records, so some
	// reclaimable space must have accumulated beyond whatever Open's replay already counted
	assert.True(t, stat.ReclaimableSize > 0)
}

func TestDB_Backup(t *testing.T) {
	options := DefaultOptions
	directory, _ := os.MkdirTemp("", "caskdb")
	options.DirectoryPath = directory

	db, err := Open(options)
	defer destroyDB(db)

	assert.Nil(t, err)
	assert.NotNil(t, db)

	for i := 1; i < 10000; i++ {
		err := db.Put(utils.GetTestKey(i), utils.RandomValue(128))
		assert.Nil(t, err)
	}

	backupDir, _ := os.MkdirTemp("", "caskdb-backup")

	err = db.Backup(backupDir)
	assert.Nil(t, err)

	options2 := DefaultOptions
	options2.DirectoryPath = backupDir

	db2, err := Open(options2)
	defer destroyDB(db2)

	assert.Nil(t, err)
	assert.NotNil(t, db2)

	value, err := db2.Get(utils.GetTestKey(1))
	assert.Nil(t, err)
	assert.NotNil(t, value)
}

func TestDB_OversizedRecordBypassesRotation(t *testing.T) {
	options := DefaultOptions
	directory, _ := os.MkdirTemp("", "caskdb")
	options.DirectoryPath = directory
	options.DataFileSize = 64

	db, err := Open(options)
	defer destroyDB(db)

	assert.Nil(t, err)
	assert.NotNil(t, db)

	// the encoded record is larger than DataFileSize; since the active file is empty it
	// must still accept the write instead of rotating forever
	err = db.Put(utils.GetTestKey(1), utils.RandomValue(256))
	assert.Nil(t, err)

	value, err := db.Get(utils.GetTestKey(1))
	assert.Nil(t, err)
	assert.NotNil(t, value)
}

func TestDB_IndexTypes(t *testing.T) {
	for _, indexType := range []IndexerType{BTree, ART, SkipList} {
		options := DefaultOptions
		directory, _ := os.MkdirTemp("", "caskdb")
		options.DirectoryPath = directory
		options.IndexType = indexType

		db, err := Open(options)
		assert.Nil(t, err)
		assert.NotNil(t, db)

		assert.Nil(t, db.Put(utils.GetTestKey(1), utils.RandomValue(64)))
		value, err := db.Get(utils.GetTestKey(1))
		assert.Nil(t, err)
		assert.NotNil(t, value)

		destroyDB(db)
	}
}

func TestDB_MMapAtStartUp(t *testing.T) {
	options := DefaultOptions
	directory, _ := os.MkdirTemp("", "caskdb")
	options.DirectoryPath = directory

	db, err := Open(options)
	assert.Nil(t, err)
	for i := 0; i < 100; i++ {
		assert.Nil(t, db.Put(utils.GetTestKey(i), utils.RandomValue(128)))
	}
	assert.Nil(t, db.Close())

	options.MMapAtStartUp = true
	db2, err := Open(options)
	defer destroyDB(db2)

	assert.Nil(t, err)
	assert.NotNil(t, db2)

	value, err := db2.Get(utils.GetTestKey(42))
	assert.Nil(t, err)
	assert.NotNil(t, value)

	// the reset back to the standard backend after replay must leave the database writable
	assert.Nil(t, db2.Put(utils.GetTestKey(200), utils.RandomValue(64)))
}
