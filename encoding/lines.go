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

	"github.com/kelindar/multipart"
)

// Lines encodes each string item delimited by a single '\n', on all
// platforms. An optional header is written once as the first bytes of the
// first part of each object.
type Lines struct {
	buf         *bytes.Buffer
	header      string
	capacity    int
	wroteHeader bool
}

// NewLines returns a Lines encoder. header may be "" to omit it.
func NewLines(header string, capacity int) *Lines {
	buf := bytes.NewBuffer(make([]byte, 0, capacity))
	l := &Lines{buf: buf, header: header, capacity: capacity}
	if header != "" {
		buf.WriteString(header)
		buf.WriteByte('\n')
		l.wroteHeader = true
	}
	return l
}

// Encode implements multipart.PartEncoder.
func (l *Lines) Encode(item string) (int, error) {
	before := l.buf.Len()
	l.buf.WriteString(item)
	l.buf.WriteByte('\n')
	return l.buf.Len() - before, nil
}

// Flush implements multipart.PartEncoder. Lines never holds bytes back.
func (l *Lines) Flush() error { return nil }

// Size implements multipart.PartEncoder.
func (l *Lines) Size() int { return l.buf.Len() }

// IntoBody implements multipart.PartEncoder.
func (l *Lines) IntoBody() (multipart.PartBody, error) {
	body := multipart.NewPartBody(l.buf.Bytes())
	l.buf = nil
	return body, nil
}

// ResetForNewPart implements multipart.PartEncoder: continues the same
// object, so the header is not repeated.
func (l *Lines) ResetForNewPart() multipart.PartEncoder[string] {
	return &Lines{buf: bytes.NewBuffer(make([]byte, 0, l.capacity)), header: l.header, capacity: l.capacity, wroteHeader: true}
}

// ResetForNewUpload implements multipart.PartEncoder: starts a new object,
// re-emitting the header if one was configured.
func (l *Lines) ResetForNewUpload() multipart.PartEncoder[string] {
	return NewLines(l.header, l.capacity)
}
