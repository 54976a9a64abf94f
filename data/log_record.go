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
	"encoding/binary"
	"hash/crc32"
)

type LogRecordType = byte

const (
	LogRecordNormal LogRecordType = iota
	LogRecordDeleted
)

// "crc" "type" "keySize" "valueSize"
//
//	4  +  1   + (max)5  +  (max)5   bytes
const maxLogRecordHeaderSize = crc32.Size + 1 + binary.MaxVarintLen32*2

// LogRecord is a record written to a data file consisting of a key, a value, and a type.
// It's called a log because the data in the data file is written in an append-only format,
// similar to a write-ahead log.
type LogRecord struct {
	Key   []byte
	Value []byte
	// Type indicates whether this is a normal record or a tombstone (deleted) record.
	Type LogRecordType
}

// logRecordHeader defines the fixed and variable-length header fields preceding a LogRecord.
type logRecordHeader struct {
	// crc is the CRC32 checksum over everything following the crc field.
	crc uint32
	// recordType is the Type field of LogRecord.
	recordType LogRecordType
	// keySize is the length of Key in bytes.
	keySize uint32
	// valueSize is the length of Value in bytes.
	valueSize uint32
}

// LogRecordPos locates the first byte of a record on disk: which data file, at what offset.
// Size is the exact encoded length of the record; it never crosses the wire to a caller of
// Get/Put/Delete and exists only so the engine can report reclaimable space.
type LogRecordPos struct {
	// FileID identifies the data file the record lives in.
	FileID uint32
	// Offset is the byte offset of the record's first byte within that file.
	Offset int64
	// Size is the number of bytes the encoded record occupies on disk.
	Size uint32
}

// EncodeLogRecord encodes a LogRecord into its on-disk byte sequence and returns the sequence
// together with its length.
//
// +------------+----------------+------------------------+------------------------+------------+--------------+
// | crc (4B)   | type (1B)      | key size (uvarint)     | value size (uvarint)  | key        | value        |
// +------------+----------------+------------------------+------------------------+------------+--------------+
func EncodeLogRecord(logRecord *LogRecord) ([]byte, int64) {
	header := make([]byte, maxLogRecordHeaderSize)

	// the 5th byte stores the type tag
	header[4] = logRecord.Type
	var index = 5

	// key/value lengths are encoded as unsigned LEB128-style varints to keep small records small
	index += binary.PutUvarint(header[index:], uint64(len(logRecord.Key)))
	index += binary.PutUvarint(header[index:], uint64(len(logRecord.Value)))

	var size = index + len(logRecord.Key) + len(logRecord.Value)
	encodeBytes := make([]byte, size)

	copy(encodeBytes[:index], header[:index])
	copy(encodeBytes[index:], logRecord.Key)
	copy(encodeBytes[index+len(logRecord.Key):], logRecord.Value)

	// CRC32 covers every byte written after the CRC field itself
	crc := crc32.ChecksumIEEE(encodeBytes[4:])
	binary.LittleEndian.PutUint32(encodeBytes[:4], crc)

	return encodeBytes, int64(size)
}

// decodeLogRecordHeader decodes the header from the leading bytes of a record and returns
// the parsed header along with the number of bytes the header itself occupied.
func decodeLogRecordHeader(buffer []byte) (*logRecordHeader, int64) {
	if len(buffer) < crc32.Size+1 {
		return nil, 0
	}

	header := &logRecordHeader{
		crc:        binary.LittleEndian.Uint32(buffer[:4]),
		recordType: buffer[4],
	}

	var index = 5

	keySize, n := binary.Uvarint(buffer[index:])
	if n <= 0 {
		return nil, 0
	}
	header.keySize = uint32(keySize)
	index += n

	valueSize, n := binary.Uvarint(buffer[index:])
	if n <= 0 {
		return nil, 0
	}
	header.valueSize = uint32(valueSize)
	index += n

	return header, int64(index)
}

// getLogRecordCRC recomputes the CRC32 that should cover the given record, given the already
// decoded header bytes that follow the CRC field itself.
func getLogRecordCRC(lr *LogRecord, header []byte) uint32 {
	if lr == nil {
		return 0
	}

	crc := crc32.ChecksumIEEE(header)
	crc = crc32.Update(crc, crc32.IEEETable, lr.Key)
	crc = crc32.Update(crc, crc32.IEEETable, lr.Value)

	return crc
}
