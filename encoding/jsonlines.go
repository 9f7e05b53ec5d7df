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

// Package encoding provides concrete multipart.PartEncoder implementations
// for the item types a caller is likely to stream: newline-delimited JSON,
// CSV, plain text lines, and a zstd-compressing wrapper around any of them.
package encoding

import (
	"bytes"
	"encoding/json"

	"github.com/kelindar/multipart"
)

// JSONLines encodes each item as one line of JSON, newline-terminated, the
// format commonly called JSON Lines or NDJSON.
type JSONLines[T any] struct {
	buf      *bytes.Buffer
	capacity int
}

// NewJSONLines returns a JSONLines encoder with the given initial buffer
// capacity hint.
func NewJSONLines[T any](capacity int) *JSONLines[T] {
	return &JSONLines[T]{buf: bytes.NewBuffer(make([]byte, 0, capacity)), capacity: capacity}
}

// Encode implements multipart.PartEncoder.
func (e *JSONLines[T]) Encode(item T) (int, error) {
	b, err := json.Marshal(item)
	if err != nil {
		return 0, err
	}
	before := e.buf.Len()
	e.buf.Write(b)
	e.buf.WriteByte('\n')
	return e.buf.Len() - before, nil
}

// Flush implements multipart.PartEncoder. JSONLines never holds bytes back.
func (e *JSONLines[T]) Flush() error { return nil }

// Size implements multipart.PartEncoder.
func (e *JSONLines[T]) Size() int { return e.buf.Len() }

// IntoBody implements multipart.PartEncoder.
func (e *JSONLines[T]) IntoBody() (multipart.PartBody, error) {
	body := multipart.NewPartBody(e.buf.Bytes())
	e.buf = nil
	return body, nil
}

// ResetForNewPart implements multipart.PartEncoder.
func (e *JSONLines[T]) ResetForNewPart() multipart.PartEncoder[T] {
	return NewJSONLines[T](e.capacity)
}

// ResetForNewUpload implements multipart.PartEncoder. JSON Lines has no
// per-object header, so this is identical to ResetForNewPart.
func (e *JSONLines[T]) ResetForNewUpload() multipart.PartEncoder[T] {
	return NewJSONLines[T](e.capacity)
}
