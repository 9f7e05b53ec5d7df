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

// Package multipart drives the S3 multipart-upload protocol end to end
// against an opaque object-store backend: items go in, size-bounded
// parts are encoded and uploaded with bounded concurrency, and objects
// are finalized with CompleteMultipartUpload. It can also roll over to a
// fresh destination once the current object reaches a target size,
// enabling indefinite streaming archival.
package multipart

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"
)

// Hard limits imposed by the backend (spec §6).
const (
	// MinPartSize is the minimum size of any part except the last.
	MinPartSize = 5 * 1024 * 1024 // 5 MiB
	// MaxPartSize is the maximum size of a single part.
	MaxPartSize = 5 * 1024 * 1024 * 1024 // 5 GiB
	// MaxObjectSize is the maximum size of a completed object.
	MaxObjectSize = 5 * 1024 * 1024 * 1024 * 1024 // 5 TiB
	// MaxParts is the maximum number of parts a single upload may have.
	MaxParts = 10000
)

// Defaults applied by constructors when the caller doesn't override them.
const (
	// DefaultTargetObjectSize is the default size at which an object is
	// considered complete and a rollover (if configured) occurs.
	DefaultTargetObjectSize = 5 * 1024 * 1024 * 1024 // 5 GiB
	// DefaultTargetPartSize is the default size at which a part is flushed.
	DefaultTargetPartSize = 10 * 1024 * 1024 // 10 MiB
	// DefaultPoolCapacity is the default Pending Pool concurrency bound.
	DefaultPoolCapacity = 10
)

// ObjectURI identifies a single destination object as (bucket, key).
type ObjectURI struct {
	Bucket string
	Key    string
}

// NewObjectURI validates and normalizes bucket and key into an ObjectURI.
func NewObjectURI(bucket, key string) (ObjectURI, error) {
	bucket = strings.TrimSuffix(bucket, "/")
	if bucket == "" {
		return ObjectURI{}, newError(ErrorKindConfig, "bucket must not be empty", nil)
	}
	if key == "" {
		return ObjectURI{}, newError(ErrorKindConfig, "key must not be empty", nil)
	}
	return ObjectURI{Bucket: bucket, Key: key}, nil
}

// String implements fmt.Stringer.
func (u ObjectURI) String() string {
	return fmt.Sprintf("s3://%s/%s", u.Bucket, u.Key)
}

// IsZero reports whether u is the zero value.
func (u ObjectURI) IsZero() bool { return u.Bucket == "" && u.Key == "" }

// Key is a validated object key, the result of joining a KeyPrefix with a
// caller-supplied suffix.
type Key string

// KeyPrefix is a normalized string ending in exactly one "/" with no
// leading "/", or the empty string for no prefix. It composes with
// Append and produces full Keys with ToKey.
type KeyPrefix string

// NewKeyPrefix normalizes s into a KeyPrefix.
func NewKeyPrefix(s string) KeyPrefix {
	s = strings.TrimLeft(s, "/")
	if s == "" {
		return KeyPrefix("")
	}
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	// collapse any run of slashes introduced by the caller.
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	return KeyPrefix(s)
}

// Append joins another KeyPrefix onto p, re-normalizing the result.
func (p KeyPrefix) Append(sub KeyPrefix) KeyPrefix {
	return NewKeyPrefix(string(p) + string(sub))
}

// ToKey joins a literal suffix onto p to produce a full Key.
func (p KeyPrefix) ToKey(suffix string) Key {
	return Key(string(p) + strings.TrimPrefix(suffix, "/"))
}

// String implements fmt.Stringer.
func (p KeyPrefix) String() string { return string(p) }

// UploadID is the opaque identifier the backend assigns on CreateUpload.
type UploadID string

// UploadData identifies one active upload.
type UploadData struct {
	ID  UploadID
	URI ObjectURI
}

// IsZero reports whether d is the zero value (no active upload).
func (d UploadData) IsZero() bool { return d.ID == "" && d.URI.IsZero() }

// PartNumber is a monotonically increasing, 1-based part index.
type PartNumber int64

// Incr returns the next PartNumber after p.
func (p PartNumber) Incr() PartNumber { return p + 1 }

// EntityTag is the opaque identifier the backend assigns to a part or to
// the finished object.
type EntityTag string

// PartBody is a growable byte buffer owned by the encoder while being
// built and handed to the transport, unchanged, at dispatch.
type PartBody struct {
	buf *bytes.Buffer
}

// NewPartBody wraps an existing byte slice as a PartBody without copying.
func NewPartBody(b []byte) PartBody {
	return PartBody{buf: bytes.NewBuffer(b)}
}

// NewPartBodyCap returns an empty PartBody with capacity hint.
func NewPartBodyCap(capacity int) PartBody {
	buf := bytes.NewBuffer(make([]byte, 0, capacity))
	return PartBody{buf: buf}
}

// Size returns the number of bytes currently buffered, in O(1).
func (b PartBody) Size() int {
	if b.buf == nil {
		return 0
	}
	return b.buf.Len()
}

// Bytes returns the underlying bytes without copying.
func (b PartBody) Bytes() []byte {
	if b.buf == nil {
		return nil
	}
	return b.buf.Bytes()
}

// Reader returns a streamable, non-copying view of the body's contents
// suitable for handing to a transport layer.
func (b PartBody) Reader() io.ReadSeeker {
	return bytes.NewReader(b.Bytes())
}

// CompletedPart is one successfully uploaded part.
type CompletedPart struct {
	UploadID UploadID
	ETag     EntityTag
	Number   PartNumber
	Size     int64
}

// CompletedParts is an ordered collection of CompletedPart, kept sorted
// ascending by PartNumber whenever it is extended.
type CompletedParts []CompletedPart

// Add inserts part, keeping the collection sorted ascending by
// PartNumber. Adding a duplicate PartNumber is a programmer error and
// panics, since the upload layer is the sole writer and invariant 1
// (spec §3) guarantees it never happens in correct operation.
func (c *CompletedParts) Add(part CompletedPart) {
	for _, p := range *c {
		if p.Number == part.Number {
			panic(fmt.Sprintf("multipart: duplicate part number %d", part.Number))
		}
	}
	*c = append(*c, part)
	sort.Slice(*c, func(i, j int) bool { return (*c)[i].Number < (*c)[j].Number })
}

// Extend appends every part of more, preserving sortedness.
func (c *CompletedParts) Extend(more CompletedParts) {
	for _, p := range more {
		c.Add(p)
	}
}

// Sorted reports whether c is strictly ascending by PartNumber, as
// required immediately before CompleteUpload is issued.
func (c CompletedParts) Sorted() bool {
	for i := 1; i < len(c); i++ {
		if c[i-1].Number >= c[i].Number {
			return false
		}
	}
	return true
}

// TotalBytes sums the sizes of every part.
func (c CompletedParts) TotalBytes() int64 {
	var n int64
	for _, p := range c {
		n += p.Size
	}
	return n
}

// CompletedUpload is the final receipt returned once an object is
// assembled from its parts.
type CompletedUpload struct {
	URI  ObjectURI
	ETag EntityTag
}

// Status is the telemetry snapshot returned after each item is encoded.
type Status struct {
	ActiveUploadID  UploadID
	CurrentPart     PartNumber
	Elapsed         time.Duration
	Items           uint64
	Parts           uint64
	Bytes           uint64
	PartBytes       uint64
	ShouldUpload    bool
	ShouldComplete  bool
	CorrelationID   string
}

// FailedUpload describes the upload that was active when an error
// occurred, so a caller can decide to resume (re-upload PartNumber with
// UploadID) or abort (AbortUpload(ID, URI)).
type FailedUpload struct {
	ID   UploadID
	URI  ObjectURI
	Part PartNumber
	// Completed holds whatever parts had already succeeded for this
	// upload before the failure, per the Pending Pool's retention
	// policy (spec §9 Open Question, resolved in favor of retention).
	Completed CompletedParts
}

// String implements fmt.Stringer.
func (f FailedUpload) String() string {
	return fmt.Sprintf(`{"id": %q, "uri": %q, "part": %d}`, f.ID, f.URI, f.Part)
}

// clampPartSize clamps size into [MinPartSize, min(MaxPartSize, MaxInt)]
// per spec §4.4's "constructors clamp silently" rule.
func clampPartSize(size int) int {
	maxAllowed := MaxPartSize
	if maxAllowed > math.MaxInt {
		maxAllowed = math.MaxInt
	}
	if size < MinPartSize {
		return MinPartSize
	}
	if size > maxAllowed {
		return maxAllowed
	}
	return size
}
