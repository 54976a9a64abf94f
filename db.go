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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/caskdb/caskdb/data"
	"github.com/caskdb/caskdb/fileio"
	"github.com/caskdb/caskdb/index"
	"github.com/caskdb/caskdb/utils"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// fileLockName is the sidecar file used to take an advisory, directory-scoped lock so that
// two process instances cannot open the same data directory concurrently.
const fileLockName = "fLock"

// DB is a single-node, embeddable, append-only key/value storage engine. A DB is safe for
// concurrent use by multiple goroutines.
type DB struct {
	options Options

	// activeLock guards activeFile itself and every field mutated while appending to it
	// (WriteOffset, bytesWrite). Put and Delete take it exclusively for the whole append,
	// including any rotation it triggers. Get takes it only long enough to read the
	// activeFile pointer, since positional reads are safe to run concurrently with
	// sequential appends on the same file.
	activeLock sync.RWMutex
	activeFile *data.DataFile

	// olderLock guards olderFiles. Rotation takes it exclusively to move the outgoing
	// active file into the map; Get takes it to look up a sealed file by id.
	olderLock  sync.RWMutex
	olderFiles map[uint32]*data.DataFile

	// index is the in-memory key -> position structure rebuilt from the logs on every Open.
	index index.Indexer

	// fileIDs holds the data file ids discovered at Open, ascending. Only used while loading.
	fileIDs []int

	// fileLock prevents a second process from opening this directory concurrently.
	fileLock *flock.Flock

	// bytesWrite accumulates bytes written to the active file since the last sync, reset
	// whenever BytesPerSync triggers a flush.
	bytesWrite uint

	// reclaimSize tracks bytes made obsolete by overwrites and deletes. Nothing currently
	// reclaims that space; it is surfaced through Stat for an operator or a future compactor.
	reclaimSize int64

	logger *zap.SugaredLogger
}

// Stat reports point-in-time engine statistics.
type Stat struct {
	// KeyCount is the number of live keys in the index.
	KeyCount uint
	// DataFileCount is the number of data files currently open (active + sealed).
	DataFileCount uint
	// ReclaimableSize is the number of bytes made obsolete by overwrites and deletes.
	ReclaimableSize int64
	// DiskSize is the size of the data directory on disk.
	DiskSize int64
}

// Open opens (and if necessary creates) a database rooted at options.DirectoryPath. Opening
// always rebuilds the in-memory index by replaying every data file from the start; there is
// no separate snapshot or hint-file format that lets a later Open skip that work.
func Open(options Options) (*DB, error) {
	if err := checkOptions(options); err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = defaultLogger()
	}

	if _, err := os.Stat(options.DirectoryPath); os.IsNotExist(err) {
		if err := os.MkdirAll(options.DirectoryPath, os.ModePerm); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	// a second Open against the same directory, from this process or another, must fail
	// instead of silently corrupting the log by racing the first instance's writer.
	fileLock := flock.New(filepath.Join(options.DirectoryPath, fileLockName))
	hold, err := fileLock.TryLock()
	if err != nil {
		return nil, err
	}
	if !hold {
		return nil, ErrDatabaseIsUsing
	}

	db := &DB{
		options:    options,
		olderFiles: make(map[uint32]*data.DataFile),
		index:      index.NewIndexer(toIndexType(options.IndexType)),
		fileLock:   fileLock,
		logger:     logger,
	}

	if err := db.loadDataFiles(); err != nil {
		return nil, err
	}

	if err := db.loadIndexFromDataFiles(); err != nil {
		return nil, err
	}

	// mmap accelerates the sequential scan above; once replay is done every file goes back
	// to the ordinary backend so the active file remains writable.
	if db.options.MMapAtStartUp {
		if err := db.resetIOType(); err != nil {
			return nil, err
		}
	}

	logger.Infow("opened database", "directory", options.DirectoryPath, "keys", db.index.Size())

	return db, nil
}

// Close flushes and releases every resource the engine holds. The directory lock is released
// even if flushing the data files fails, so a later Open is never blocked by a Close error.
func (db *DB) Close() error {
	defer func() {
		if err := db.fileLock.Unlock(); err != nil {
			db.logger.Errorw("failed to release directory lock", "err", err)
		}
		if err := db.index.Close(); err != nil {
			db.logger.Errorw("failed to close index", "err", err)
		}
	}()

	if db.activeFile == nil {
		return nil
	}

	db.activeLock.Lock()
	defer db.activeLock.Unlock()

	if err := db.activeFile.Sync(); err != nil {
		return err
	}
	if err := db.activeFile.Close(); err != nil {
		return err
	}

	db.olderLock.Lock()
	defer db.olderLock.Unlock()

	for _, file := range db.olderFiles {
		if err := file.Close(); err != nil {
			return err
		}
	}

	return nil
}

// Sync fsyncs the active data file.
func (db *DB) Sync() error {
	if db.activeFile == nil {
		return nil
	}

	db.activeLock.Lock()
	defer db.activeLock.Unlock()

	return db.activeFile.Sync()
}

// Stat reports the engine's current size and key count.
func (db *DB) Stat() Stat {
	db.activeLock.RLock()
	fileCount := uint(0)
	if db.activeFile != nil {
		fileCount = 1
	}
	db.activeLock.RUnlock()

	db.olderLock.RLock()
	fileCount += uint(len(db.olderFiles))
	db.olderLock.RUnlock()

	dirSize, err := utils.DirectorySize(db.options.DirectoryPath)
	if err != nil {
		db.logger.Errorw("failed to compute directory size", "err", err)
	}

	return Stat{
		KeyCount:        uint(db.index.Size()),
		DataFileCount:   fileCount,
		ReclaimableSize: db.reclaimSize,
		DiskSize:        dirSize,
	}
}

// Backup copies every data file into directory, leaving the lock file behind so the copy can
// be opened independently without colliding with this instance.
func (db *DB) Backup(directory string) error {
	db.activeLock.RLock()
	defer db.activeLock.RUnlock()
	db.olderLock.RLock()
	defer db.olderLock.RUnlock()

	return utils.CopyDirectory(db.options.DirectoryPath, directory, []string{fileLockName})
}

// Put writes the value for key, overwriting any existing value. The key must not be empty.
func (db *DB) Put(key []byte, value []byte) error {
	if len(key) == 0 {
		return ErrKeyIsEmpty
	}

	record := &data.LogRecord{
		Key:   key,
		Value: value,
		Type:  data.LogRecordNormal,
	}

	oldPos, hadOldPos := db.index.Get(key)

	pos, err := db.appendLogRecordWithLock(record)
	if err != nil {
		return err
	}

	if !db.index.Put(key, pos) {
		return ErrIndexUpdateFailed
	}

	// the position Put just replaced is no longer reachable from the index; its bytes are
	// dead weight until something reclaims the file they live in
	if hadOldPos {
		db.reclaimSize += int64(oldPos.Size)
	}

	return nil
}

// Delete removes key. Deleting a key that does not exist is not an error. The key must not be
// empty.
func (db *DB) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrKeyIsEmpty
	}

	oldPos, ok := db.index.Get(key)
	if !ok {
		return nil
	}

	record := &data.LogRecord{
		Key:  key,
		Type: data.LogRecordDeleted,
	}

	pos, err := db.appendLogRecordWithLock(record)
	if err != nil {
		return err
	}

	if !db.index.Delete(key) {
		return ErrIndexUpdateFailed
	}

	// both the tombstone itself and the live record it supersedes are dead weight
	db.reclaimSize += int64(oldPos.Size) + int64(pos.Size)

	return nil
}

// Get returns the current value for key, or ErrKeyNotFound if it is absent or has been
// deleted. The key must not be empty.
func (db *DB) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrKeyIsEmpty
	}

	pos, ok := db.index.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}

	return db.getValueByPosition(pos)
}

// getValueByPosition resolves pos to its owning file and performs the positioned read. It is
// safe to call concurrently with an in-flight append to the active file: appends only extend
// the file, they never rewrite bytes an existing position already points at.
func (db *DB) getValueByPosition(pos *data.LogRecordPos) ([]byte, error) {
	var file *data.DataFile

	db.activeLock.RLock()
	if db.activeFile != nil && db.activeFile.FileID == pos.FileID {
		file = db.activeFile
	}
	db.activeLock.RUnlock()

	if file == nil {
		db.olderLock.RLock()
		file = db.olderFiles[pos.FileID]
		db.olderLock.RUnlock()
	}

	if file == nil {
		db.logger.Errorw("index points at a file that is not open", "file_id", pos.FileID)
		return nil, ErrDataFileNotFound
	}

	record, _, err := file.ReadLogRecord(pos.Offset)
	if err != nil {
		db.logger.Errorw("failed to read log record", "file_id", pos.FileID, "offset", pos.Offset, "err", err)
		return nil, err
	}

	if record.Type == data.LogRecordDeleted {
		return nil, ErrKeyNotFound
	}

	return record.Value, nil
}

// appendLogRecordWithLock wraps appendLogRecord with the exclusive active-file lock.
func (db *DB) appendLogRecordWithLock(record *data.LogRecord) (*data.LogRecordPos, error) {
	db.activeLock.Lock()
	defer db.activeLock.Unlock()

	return db.appendLogRecord(record)
}

// appendLogRecord encodes and appends record to the active file, rotating to a new active
// file first if the write would cross the configured size threshold. The caller must hold
// activeLock.
func (db *DB) appendLogRecord(record *data.LogRecord) (*data.LogRecordPos, error) {
	if db.activeFile == nil {
		if err := db.setActiveDataFile(); err != nil {
			return nil, err
		}
	}

	encRecord, size := data.EncodeLogRecord(record)

	// an empty active file must always accept the write, even an oversized one, or a single
	// record larger than the threshold would rotate forever without making progress.
	if db.activeFile.WriteOffset > 0 && db.activeFile.WriteOffset+size > db.options.DataFileSize {
		if err := db.activeFile.Sync(); err != nil {
			return nil, err
		}

		db.olderLock.Lock()
		db.olderFiles[db.activeFile.FileID] = db.activeFile
		db.olderLock.Unlock()

		if err := db.setActiveDataFile(); err != nil {
			return nil, err
		}
	}

	writeOffset := db.activeFile.WriteOffset
	if err := db.activeFile.Write(encRecord); err != nil {
		return nil, err
	}
	db.bytesWrite += uint(size)

	needSync := db.options.SyncWrites
	if !needSync && db.options.BytesPerSync > 0 && db.bytesWrite >= db.options.BytesPerSync {
		needSync = true
	}

	if needSync {
		if err := db.activeFile.Sync(); err != nil {
			return nil, err
		}
		db.bytesWrite = 0
	}

	return &data.LogRecordPos{
		FileID: db.activeFile.FileID,
		Offset: writeOffset,
		Size:   uint32(size),
	}, nil
}

// setActiveDataFile opens the next data file and installs it as the active file. The caller
// must hold activeLock.
func (db *DB) setActiveDataFile() error {
	availableDiskSize, err := utils.AvailableDiskSize()
	if err != nil {
		return err
	}
	if availableDiskSize < uint64(db.options.DataFileSize) {
		db.logger.Errorw("refusing to open a new data file", "available_bytes", availableDiskSize, "required_bytes", db.options.DataFileSize)
		return ErrNoEnoughDiskSpace
	}

	var initialFileID uint32
	if db.activeFile != nil {
		initialFileID = db.activeFile.FileID + 1
	}

	dataFile, err := data.OpenDataFile(db.options.DirectoryPath, initialFileID, fileio.StandardFileIO)
	if err != nil {
		return err
	}
	db.activeFile = dataFile

	return nil
}

// loadDataFiles discovers every *.data file in the directory, opens each one, and installs
// the highest-numbered file as the active file.
func (db *DB) loadDataFiles() error {
	entries, err := os.ReadDir(db.options.DirectoryPath)
	if err != nil {
		return err
	}

	var fileIDs []int
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), data.DataFileNameSuffix) {
			continue
		}

		splitName := strings.Split(entry.Name(), ".")
		fileID, err := strconv.Atoi(splitName[0])
		if err != nil {
			db.logger.Errorw("data directory contains an unparseable file name", "name", entry.Name())
			return ErrDataDirectoryCorrupted
		}

		fileIDs = append(fileIDs, fileID)
	}

	sort.Ints(fileIDs)
	db.fileIDs = fileIDs

	ioType := fileio.StandardFileIO
	if db.options.MMapAtStartUp {
		ioType = fileio.MemoryMap
	}

	for i, fid := range fileIDs {
		dataFile, err := data.OpenDataFile(db.options.DirectoryPath, uint32(fid), ioType)
		if err != nil {
			return err
		}

		if i == len(fileIDs)-1 {
			db.activeFile = dataFile
		} else {
			db.olderFiles[uint32(fid)] = dataFile
		}
	}

	return nil
}

// loadIndexFromDataFiles replays every data file in ascending id order, rebuilding the
// in-memory index from scratch, and leaves the active file's write offset at the cursor
// position reached at the end of its replay.
func (db *DB) loadIndexFromDataFiles() error {
	if len(db.fileIDs) == 0 {
		return nil
	}

	for i, fid := range db.fileIDs {
		fileID := uint32(fid)

		var file *data.DataFile
		if fileID == db.activeFile.FileID {
			file = db.activeFile
		} else {
			file = db.olderFiles[fileID]
		}

		var offset int64
		for {
			record, size, err := file.ReadLogRecord(offset)
			if err != nil {
				if err == io.EOF {
					break
				}
				db.logger.Errorw("failed to replay data file", "file_id", fileID, "offset", offset, "err", err)
				return err
			}

			pos := &data.LogRecordPos{FileID: fileID, Offset: offset, Size: uint32(size)}
			// the record this one supersedes is no longer reachable from the index
			if oldPos, ok := db.index.Get(record.Key); ok {
				db.reclaimSize += int64(oldPos.Size)
			}
			if record.Type == data.LogRecordDeleted {
				db.index.Delete(record.Key)
				db.reclaimSize += int64(size)
			} else {
				db.index.Put(record.Key, pos)
			}

			offset += size
		}

		if i == len(db.fileIDs)-1 {
			db.activeFile.WriteOffset = offset
		}
	}

	return nil
}

// resetIOType switches every open data file back onto the standard file-backed IO manager.
func (db *DB) resetIOType() error {
	if db.activeFile == nil {
		return nil
	}

	if err := db.activeFile.SetIOManager(db.options.DirectoryPath, fileio.StandardFileIO); err != nil {
		return err
	}

	for _, dataFile := range db.olderFiles {
		if err := dataFile.SetIOManager(db.options.DirectoryPath, fileio.StandardFileIO); err != nil {
			return err
		}
	}

	return nil
}

// checkOptions validates user-supplied options before Open does any I/O.
func checkOptions(options Options) error {
	if options.DirectoryPath == "" {
		return ErrDirectoryPathEmpty
	}

	if options.DataFileSize <= 0 {
		return ErrDataFileSizeInvalid
	}

	return nil
}

// defaultLogger returns a production zap logger, falling back to a no-op logger if one
// cannot be built (e.g. the process has no writable stderr).
func defaultLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "caskdb: failed to build default logger: %v\n", err)
		logger = zap.NewNop()
	}
	return logger.Sugar()
}
