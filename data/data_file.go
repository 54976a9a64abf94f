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

package data

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/caskdb/caskdb/fileio"
)

var ErrInvalidCRC = errors.New("invalid CRC value, log record might be corrupted")

const DataFileNameSuffix = ".data"

// DataFile owns one IO backend bound to a numeric file id.
type DataFile struct {
	// FileID is the unique identifier of the data file.
	FileID uint32

	// WriteOffset is the current append offset of the data file; it equals the number of
	// bytes written to the file so far.
	WriteOffset int64

	// IoManager is the underlying IO backend.
	IoManager fileio.IOManager
}

// newDataFile opens (or creates) the backend for fileName and wraps it as a DataFile.
func newDataFile(fileName string, fileID uint32, ioType fileio.FileIOType) (*DataFile, error) {
	ioManager, err := fileio.NewIOManager(fileName, ioType)
	if err != nil {
		return nil, err
	}

	return &DataFile{
		FileID:      fileID,
		WriteOffset: 0,
		IoManager:   ioManager,
	}, nil
}

// GetDataFileName returns the on-disk file name for the given directory and file id.
func GetDataFileName(directoryPath string, fileID uint32) string {
	return filepath.Join(directoryPath, fmt.Sprintf("%09d", fileID)+DataFileNameSuffix)
}

// OpenDataFile opens (creating if absent) the data file identified by fileID.
func OpenDataFile(directoryPath string, fileID uint32, ioType fileio.FileIOType) (*DataFile, error) {
	fileName := GetDataFileName(directoryPath, fileID)
	return newDataFile(fileName, fileID, ioType)
}

// ReadLogRecord reads and decodes one record at offset. It returns the parsed record and the
// exact number of bytes consumed, so a caller replaying the file can advance by precisely that
// amount regardless of how the header is shaped.
func (df *DataFile) ReadLogRecord(offset int64) (*LogRecord, int64, error) {
	fileSize, err := df.IoManager.Size()
	if err != nil {
		return nil, 0, err
	}

	if offset >= fileSize {
		return nil, 0, io.EOF
	}

	// if the maximum possible header length would run past the end of the file, only read
	// what remains; asking for more than that makes the read fail with io.EOF, and a short
	// record at the tail would be taken for the end of the file.
	var headerBytes int64 = maxLogRecordHeaderSize
	if offset+maxLogRecordHeaderSize > fileSize {
		headerBytes = fileSize - offset
	}

	headerBuffer, err := df.readNBytes(headerBytes, offset)
	if err != nil {
		return nil, 0, err
	}

	header, headerSize := decodeLogRecordHeader(headerBuffer)
	if header == nil {
		return nil, 0, io.EOF
	}
	if header.crc == 0 && header.keySize == 0 && header.valueSize == 0 {
		return nil, 0, io.EOF
	}

	keySize, valueSize := int64(header.keySize), int64(header.valueSize)
	var recordSize = headerSize + keySize + valueSize

	logRecord := &LogRecord{
		Type: header.recordType,
	}

	if keySize > 0 || valueSize > 0 {
		kvBuffer, err := df.readNBytes(keySize+valueSize, offset+headerSize)
		if err != nil {
			return nil, 0, err
		}

		logRecord.Key = kvBuffer[:keySize]
		logRecord.Value = kvBuffer[keySize:]
	}

	crc := getLogRecordCRC(logRecord, headerBuffer[4:headerSize])
	if crc != header.crc {
		return nil, 0, ErrInvalidCRC
	}

	return logRecord, recordSize, nil
}

// Write appends buffer to the tail of the file and advances WriteOffset by exactly the number
// of bytes the backend reports having written. A short write surfaces as an error rather than
// silently advancing the offset by less than len(buffer).
func (df *DataFile) Write(buffer []byte) error {
	numBytes, err := df.IoManager.Write(buffer)
	if err != nil {
		return err
	}
	if numBytes != len(buffer) {
		return io.ErrShortWrite
	}

	df.WriteOffset += int64(numBytes)
	return nil
}

// Sync forces any writes made so far to be durable on disk.
func (df *DataFile) Sync() error {
	return df.IoManager.Sync()
}

// Close releases the backend's resources.
func (df *DataFile) Close() error {
	return df.IoManager.Close()
}

// SetIOManager swaps the file's backend, e.g. to move a file that was replayed over the
// read-only mmap backend back onto the OS file backend.
func (df *DataFile) SetIOManager(directoryPath string, ioType fileio.FileIOType) error {
	if err := df.IoManager.Close(); err != nil {
		return err
	}

	ioManager, err := fileio.NewIOManager(GetDataFileName(directoryPath, df.FileID), ioType)
	if err != nil {
		return err
	}

	df.IoManager = ioManager
	return nil
}

// readNBytes reads exactly numBytes starting at offset.
func (df *DataFile) readNBytes(numBytes int64, offset int64) (b []byte, err error) {
	b = make([]byte, numBytes)
	_, err = df.IoManager.Read(b, offset)
	return
}
