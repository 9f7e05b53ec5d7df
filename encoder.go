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

package multipart

// PartEncoder serializes a stream of Item values into the bytes of one
// part at a time (spec §4.5). Implementations need not preserve item
// order across parts beyond the FIFO order of Encode calls.
type PartEncoder[Item any] interface {
	// Encode appends one item to the in-progress part, returning the
	// incremental byte delta (used for telemetry).
	Encode(item Item) (int, error)
	// Flush commits any internal buffers; no bytes may be held back
	// after Flush returns.
	Flush() error
	// IntoBody finalizes the encoder and yields its bytes. The encoder
	// must not be reused after IntoBody.
	IntoBody() (PartBody, error)
	// Size reports the number of bytes written to the in-progress part
	// so far, including anything not yet flushed.
	Size() int
	// ResetForNewPart returns a fresh encoder of the same kind,
	// configured to continue the same object (e.g. a CSV encoder must
	// not re-emit the header row).
	ResetForNewPart() PartEncoder[Item]
	// ResetForNewUpload returns a fresh encoder of the same kind,
	// configured for a brand-new object (e.g. a CSV encoder re-emits
	// headers).
	ResetForNewUpload() PartEncoder[Item]
}
