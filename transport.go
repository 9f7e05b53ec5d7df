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

import "context"

// CreateRequest is the input to Transport.CreateUpload.
type CreateRequest struct {
	URI ObjectURI
}

// Validate enforces spec §7's fast-fail field requirements.
func (r CreateRequest) Validate() error {
	if r.URI.IsZero() {
		return newError(ErrorKindConfig, "CreateRequest.URI must not be empty", nil)
	}
	return nil
}

// UploadPartRequest is the input to Transport.UploadPart.
type UploadPartRequest struct {
	UploadID UploadID
	URI      ObjectURI
	Number   PartNumber
	Body     PartBody
}

// Validate enforces spec §7's fast-fail field requirements.
func (r UploadPartRequest) Validate() error {
	if r.UploadID == "" {
		return newError(ErrorKindConfig, "UploadPartRequest.UploadID must not be empty", nil)
	}
	if r.URI.IsZero() {
		return newError(ErrorKindConfig, "UploadPartRequest.URI must not be empty", nil)
	}
	return nil
}

// CompleteRequest is the input to Transport.CompleteUpload. Parts must
// already be sorted ascending by PartNumber (the Uploader guarantees
// this before calling the transport).
type CompleteRequest struct {
	UploadID UploadID
	URI      ObjectURI
	Parts    CompletedParts
}

// Validate enforces spec §7's fast-fail field requirements.
func (r CompleteRequest) Validate() error {
	if r.UploadID == "" {
		return newError(ErrorKindConfig, "CompleteRequest.UploadID must not be empty", nil)
	}
	if r.URI.IsZero() {
		return newError(ErrorKindConfig, "CompleteRequest.URI must not be empty", nil)
	}
	return nil
}

// AbortRequest is the input to Transport.AbortUpload.
type AbortRequest struct {
	UploadID UploadID
	URI      ObjectURI
}

// Transport is the only external integration point of this package: the
// four wire operations of the S3 multipart-upload protocol (spec §6).
// Implementations must propagate failures opaquely; this package wraps
// them with upload context.
//
// A Transport value should be cheap to pass around — implementations
// backed by an HTTP client typically hold that client by reference, so
// a Transport can be shared across concurrent Uploaders (spec §9
// "Cyclic / shared ownership").
type Transport interface {
	CreateUpload(ctx context.Context, req CreateRequest) (UploadID, error)
	UploadPart(ctx context.Context, req UploadPartRequest) (EntityTag, error)
	CompleteUpload(ctx context.Context, req CompleteRequest) (EntityTag, error)
	AbortUpload(ctx context.Context, req AbortRequest) error
}

// Writer is the shared contract implemented by the Uploader and the
// EncodedUploader. The PendingPool follows the same Ready/Send/Flush/
// Complete shape, but its Send returns only an error, so it does not
// satisfy Writer. It is the
// idiomatic-Go rendition of the poll-based MultipartWrite trait from
// the originating implementation: since Go has no built-in futures/poll
// model, suspension is expressed by blocking on ctx rather than
// returning Poll::Pending (spec §5 permits an equivalent thread-based
// implementation as long as ordering and bounded-concurrency guarantees
// hold).
type Writer[Item, Ret, Output any] interface {
	// Ready blocks until the writer can accept another item, or
	// returns an error if it can never become ready again.
	Ready(ctx context.Context) error
	// Send submits item, returning per-item telemetry. Send must only
	// be called after Ready reports no error.
	Send(ctx context.Context, item Item) (Ret, error)
	// Flush drives any buffered or in-flight work to completion
	// without finalizing the writer.
	Flush(ctx context.Context) error
	// Complete finalizes the writer's current unit of work (an object,
	// for the Uploader and EncodedUploader) and returns its result.
	Complete(ctx context.Context) (Output, error)
}
