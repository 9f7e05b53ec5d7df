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
	"github.com/kelindar/multipart"
	"github.com/klauspost/compress/zstd"
)

// Zstd wraps another PartEncoder and zstd-compresses each finished part as
// it is handed off, at the cost of buffering the uncompressed part in
// memory until IntoBody. Size reports the uncompressed length, since that
// is what callers compare against MaxPartBytes/MaxBytes thresholds.
type Zstd[T any] struct {
	inner   multipart.PartEncoder[T]
	encoder *zstd.Encoder
	level   zstd.EncoderLevel
}

// NewZstd wraps inner with zstd compression at the given level (zero value
// is zstd.SpeedDefault).
func NewZstd[T any](inner multipart.PartEncoder[T], level zstd.EncoderLevel) *Zstd[T] {
	if level == 0 {
		level = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		// Only returned for invalid options; the options above are
		// always valid, so this can't happen in practice.
		panic(err)
	}
	return &Zstd[T]{inner: inner, encoder: enc, level: level}
}

// Encode implements multipart.PartEncoder.
func (z *Zstd[T]) Encode(item T) (int, error) { return z.inner.Encode(item) }

// Flush implements multipart.PartEncoder.
func (z *Zstd[T]) Flush() error { return z.inner.Flush() }

// Size implements multipart.PartEncoder, reporting the uncompressed size.
func (z *Zstd[T]) Size() int { return z.inner.Size() }

// IntoBody implements multipart.PartEncoder: compresses the inner encoder's
// finished bytes as a single zstd frame.
func (z *Zstd[T]) IntoBody() (multipart.PartBody, error) {
	raw, err := z.inner.IntoBody()
	if err != nil {
		return multipart.PartBody{}, err
	}
	compressed := z.encoder.EncodeAll(raw.Bytes(), nil)
	return multipart.NewPartBody(compressed), nil
}

// ResetForNewPart implements multipart.PartEncoder.
func (z *Zstd[T]) ResetForNewPart() multipart.PartEncoder[T] {
	return &Zstd[T]{inner: z.inner.ResetForNewPart(), encoder: z.encoder, level: z.level}
}

// ResetForNewUpload implements multipart.PartEncoder.
func (z *Zstd[T]) ResetForNewUpload() multipart.PartEncoder[T] {
	return &Zstd[T]{inner: z.inner.ResetForNewUpload(), encoder: z.encoder, level: z.level}
}
