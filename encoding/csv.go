// Copyright 2023 Sneller, Inc.
// Copyright 2025 Roman Atachiants
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package encoding

import (
	"bytes"
	"encoding/csv"

	"github.com/kelindar/multipart"
)

// CSVRecord converts an item into the fields of one CSV row. Callers supply
// this since stdlib encoding/csv, unlike the serde-backed csv crate, has no
// struct-to-record reflection of its own.
type CSVRecord[T any] func(item T) []string

// CSV encodes each item as one row of RFC 4180 CSV. When header is non-nil,
// it is written once, as the first row of the first part of each object; it
// is not repeated on later parts of the same object (ResetForNewPart keeps
// wroteHeader true), matching the contract Lines documents.
type CSV[T any] struct {
	buf         *bytes.Buffer
	w           *csv.Writer
	header      []string
	record      CSVRecord[T]
	capacity    int
	wroteHeader bool
}

// NewCSV returns a CSV encoder. header may be nil to omit the header row.
func NewCSV[T any](header []string, record CSVRecord[T], capacity int) *CSV[T] {
	buf := bytes.NewBuffer(make([]byte, 0, capacity))
	return &CSV[T]{
		buf:      buf,
		w:        csv.NewWriter(buf),
		header:   header,
		record:   record,
		capacity: capacity,
	}
}

// Encode implements multipart.PartEncoder.
func (e *CSV[T]) Encode(item T) (int, error) {
	before := e.buf.Len()
	if !e.wroteHeader && e.header != nil {
		if err := e.w.Write(e.header); err != nil {
			return 0, err
		}
		e.wroteHeader = true
	}
	if err := e.w.Write(e.record(item)); err != nil {
		return 0, err
	}
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return 0, err
	}
	return e.buf.Len() - before, nil
}

// Flush implements multipart.PartEncoder: drains the csv.Writer's internal
// bufio.Writer into the part buffer.
func (e *CSV[T]) Flush() error {
	e.w.Flush()
	return e.w.Error()
}

// Size implements multipart.PartEncoder.
func (e *CSV[T]) Size() int { return e.buf.Len() }

// IntoBody implements multipart.PartEncoder.
func (e *CSV[T]) IntoBody() (multipart.PartBody, error) {
	if err := e.Flush(); err != nil {
		return multipart.PartBody{}, err
	}
	body := multipart.NewPartBody(e.buf.Bytes())
	e.buf = nil
	return body, nil
}

// ResetForNewPart implements multipart.PartEncoder: a fresh writer for the
// next part of the same object, with the header already considered written.
func (e *CSV[T]) ResetForNewPart() multipart.PartEncoder[T] {
	n := NewCSV(e.header, e.record, e.capacity)
	n.wroteHeader = true
	return n
}

// ResetForNewUpload implements multipart.PartEncoder: a fresh writer that
// will emit the header again for the new object.
func (e *CSV[T]) ResetForNewUpload() multipart.PartEncoder[T] {
	return NewCSV(e.header, e.record, e.capacity)
}
