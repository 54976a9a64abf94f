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

import "errors"

var (
	ErrKeyIsEmpty             = errors.New("the key is empty")
	ErrKeyNotFound            = errors.New("key is not found in the database")
	ErrIndexUpdateFailed      = errors.New("failed to update index")
	ErrDataFileNotFound       = errors.New("data file is not found")
	ErrDataDirectoryCorrupted = errors.New("database directory might be corrupted")
	ErrDatabaseIsUsing        = errors.New("database directory is being used by another process")
	ErrDirectoryPathEmpty     = errors.New("database directory path is empty")
	ErrDataFileSizeInvalid    = errors.New("the data file size of database must be greater than zero")
	ErrNoEnoughDiskSpace      = errors.New("not enough disk space left to open a new data file")
)
