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

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an Error for programmatic handling. It is the
// stable public surface for error classification (spec §9).
type ErrorKind int

const (
	// ErrorKindConfig means a required field was empty, or a
	// configuration value was outside its permitted range.
	ErrorKindConfig ErrorKind = iota
	// ErrorKindEncoding means the part encoder failed.
	ErrorKindEncoding
	// ErrorKindTransport means one of the four transport operations
	// failed.
	ErrorKindTransport
	// ErrorKindUpload means an upload-level precondition was violated
	// (UploadStillActive, MissingNextURI).
	ErrorKindUpload
	// ErrorKindUnknown wraps an opaque error of unclear origin.
	ErrorKindUnknown
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindConfig:
		return "config"
	case ErrorKindEncoding:
		return "encoding"
	case ErrorKindTransport:
		return "transport"
	case ErrorKindUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// EncodeErrorKind sub-classifies ErrorKindEncoding errors.
type EncodeErrorKind int

const (
	EncodeErrorUnknown EncodeErrorKind = iota
	EncodeErrorIO
	EncodeErrorData
	EncodeErrorEOF
)

func (k EncodeErrorKind) String() string {
	switch k {
	case EncodeErrorIO:
		return "io"
	case EncodeErrorData:
		return "data"
	case EncodeErrorEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// Error is the error type returned by the Uploader and EncodedUploader
// (the PendingPool passes task and context errors through unwrapped): a
// tagged variant with structured context rather than a stringly-typed
// blob (spec §9 "Error-as-data").
type Error struct {
	kind    ErrorKind
	encKind EncodeErrorKind
	msg     string
	failed  *FailedUpload
	cause   error
}

func newError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.failed != nil {
		if e.cause != nil {
			return fmt.Sprintf("multipart: %s error: %s: %s: %s", e.kind, e.msg, e.failed, e.cause)
		}
		return fmt.Sprintf("multipart: %s error: %s: %s", e.kind, e.msg, e.failed)
	}
	if e.cause != nil {
		return fmt.Sprintf("multipart: %s error: %s: %s", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("multipart: %s error: %s", e.kind, e.msg)
}

// Unwrap allows errors.Is/errors.As to see through to the cause.
func (e *Error) Unwrap() error { return e.cause }

// Kind returns the category under which this error falls.
func (e *Error) Kind() ErrorKind { return e.kind }

// EncodeKind returns the sub-category of an ErrorKindEncoding error.
func (e *Error) EncodeKind() EncodeErrorKind { return e.encKind }

// FailedUpload returns the details of the upload that failed, if this
// error arose while one was active.
func (e *Error) FailedUpload() *FailedUpload { return e.failed }

// WithFailedUpload attaches upload context to e and returns e.
func (e *Error) WithFailedUpload(f FailedUpload) *Error {
	e.failed = &f
	return e
}

// withUploadContext wraps a failed transport operation's cause as an
// ErrorKindTransport error carrying the FailedUpload context.
func withUploadContext(cause error, id UploadID, uri ObjectURI, part PartNumber, completed CompletedParts) error {
	return &Error{
		kind: ErrorKindTransport,
		msg:  "transport operation failed",
		failed: &FailedUpload{
			ID:        id,
			URI:       uri,
			Part:      part,
			Completed: completed,
		},
		cause: cause,
	}
}

// FromStd wraps an arbitrary error as an ErrorKindUnknown Error.
func FromStd(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(ErrorKindUnknown, "wrapped error", err)
}

// NewEncodingError builds an ErrorKindEncoding Error with the given
// sub-kind, per spec §4.5/§7.
func NewEncodingError(kind EncodeErrorKind, msg string, cause error) error {
	e := newError(ErrorKindEncoding, msg, cause)
	e.encKind = kind
	return e
}

// Sentinel errors for upload-level precondition violations (spec §7).
// Test with errors.Is.
var (
	// ErrUploadStillActive is returned when a new upload is requested
	// before the current one has completed.
	ErrUploadStillActive = newError(ErrorKindUpload, "upload already active", nil)
	// ErrMissingNextURI is returned by Uploader.Send when the URI
	// Iterator is exhausted (the Uploader is terminated) but a part still
	// needs an upload to go to.
	ErrMissingNextURI = newError(ErrorKindUpload, "no further destination URI available", nil)
	// ErrNotActive is returned when Send or Complete is called before
	// Ready has successfully created an upload.
	ErrNotActive = newError(ErrorKindUpload, "no upload is active; call Ready first", nil)
)

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind && e.msg == t.msg && e.cause == nil && t.cause == nil
}
