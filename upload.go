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
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// uploadState is the Uploader's internal lifecycle state (spec §4.3).
type uploadState int

const (
	stateIdle uploadState = iota
	stateActive
	stateTerminated
	stateFailed
)

// UploadSent is returned from Uploader.Send for each dispatched part.
type UploadSent struct {
	ID     UploadID
	URI    ObjectURI
	Number PartNumber
	Bytes  int
}

// Uploader orchestrates one object's Create -> N*UploadPart -> Complete
// lifecycle and rolls over to the next destination the URIIterator
// yields, implementing Writer[PartBody, UploadSent, CompletedUpload]
// (spec §4.3).
type Uploader struct {
	transport Transport
	iter      URIIterator
	pool      *PendingPool
	log       zerolog.Logger

	state     uploadState
	data      UploadData
	part      PartNumber
	completed CompletedParts

	// peeked caches the URI Iterator result fetched eagerly at the end of
	// Complete, so IsTerminated is accurate the instant Complete returns
	// rather than deferring to the next Ready call (spec §4.3 invariant
	// 4; grounded on UploaderWithUri::poll_complete in the original
	// implementation, which assigns next_uri synchronously after the
	// inner uploader resolves).
	peeked    bool
	peekedURI ObjectURI
	peekedOK  bool
	peekedErr error
}

// NewUploader builds an Uploader that dispatches parts through
// transport, pulling successive destinations from iter, buffering
// UploadPart requests in a PendingPool bounded to poolCapacity
// concurrent requests (DefaultPoolCapacity if poolCapacity <= 0).
func NewUploader(transport Transport, iter URIIterator, poolCapacity int) *Uploader {
	if poolCapacity <= 0 {
		poolCapacity = DefaultPoolCapacity
	}
	return &Uploader{
		transport: transport,
		iter:      iter,
		pool:      NewPendingPool(poolCapacity),
		log:       zerolog.Nop(),
		state:     stateIdle,
	}
}

// WithLogger attaches a structured logger (zerolog.Nop() is the default,
// matching the library's own no-op convention).
func (u *Uploader) WithLogger(log zerolog.Logger) *Uploader {
	u.log = log
	return u
}

// IsTerminated reports whether the writer has no more work to do: the
// URI Iterator is exhausted and no upload is active (spec §3 invariant 4).
func (u *Uploader) IsTerminated() bool { return u.state == stateTerminated }

// Active returns the UploadData of the in-progress upload, or the zero
// value if none is active.
func (u *Uploader) Active() UploadData { return u.data }

// Ready implements Writer: idle -> Creating -> Active, issuing
// CreateUpload against the next URI, or transitioning to Terminated if
// the iterator is exhausted.
func (u *Uploader) Ready(ctx context.Context) error {
	if err := u.pool.Ready(ctx); err != nil {
		u.state = stateFailed
		return u.wrapTransportErr(err)
	}
	if u.state != stateIdle {
		return nil
	}
	uri, ok, err := u.nextDestination(ctx)
	if err != nil {
		u.state = stateFailed
		return newError(ErrorKindUpload, "uri iterator failed", err)
	}
	if !ok {
		u.state = stateTerminated
		return nil
	}
	req := CreateRequest{URI: uri}
	if err := req.Validate(); err != nil {
		u.state = stateFailed
		return err
	}
	id, err := u.transport.CreateUpload(ctx, req)
	if err != nil {
		u.state = stateFailed
		return withUploadContext(err, "", uri, 0, nil)
	}
	u.data = UploadData{ID: id, URI: uri}
	u.part = PartNumber(1)
	u.completed = nil
	u.state = stateActive
	u.log.Debug().Str("upload_id", string(id)).Str("uri", uri.String()).Msg("created multipart upload")
	return nil
}

// Send implements Writer: builds an UploadPartRequest from the current
// PartNumber, dispatches it to the Pending Pool, and increments the
// part counter (spec §4.3 Active/start_send).
func (u *Uploader) Send(ctx context.Context, body PartBody) (UploadSent, error) {
	if u.state == stateTerminated {
		return UploadSent{}, ErrMissingNextURI
	}
	if u.state != stateActive {
		return UploadSent{}, ErrNotActive
	}
	if u.part > MaxParts {
		return UploadSent{}, newError(ErrorKindUpload, "exceeded maximum of 10000 parts", nil)
	}
	number := u.part
	size := body.Size()
	id, uri := u.data.ID, u.data.URI

	task := func(taskCtx context.Context) (CompletedPart, error) {
		req := UploadPartRequest{UploadID: id, URI: uri, Number: number, Body: body}
		if err := req.Validate(); err != nil {
			return CompletedPart{Number: number}, err
		}
		etag, err := u.transport.UploadPart(taskCtx, req)
		if err != nil {
			return CompletedPart{Number: number}, err
		}
		return CompletedPart{UploadID: id, ETag: etag, Number: number, Size: int64(size)}, nil
	}
	if err := u.pool.Send(ctx, task); err != nil {
		u.state = stateFailed
		return UploadSent{}, u.wrapTransportErr(err)
	}
	u.part = u.part.Incr()
	u.log.Trace().Str("upload_id", string(id)).Int64("part", int64(number)).Int("bytes", size).Msg("dispatched part")
	return UploadSent{ID: id, URI: uri, Number: number, Bytes: size}, nil
}

// Flush implements Writer: waits for every dispatched part to resolve.
// Completed parts stay buffered inside the Pending Pool until Complete
// drains them, so a partial object can Flush more than once.
func (u *Uploader) Flush(ctx context.Context) error {
	if u.state != stateActive {
		return nil
	}
	if err := u.pool.Flush(ctx); err != nil {
		u.state = stateFailed
		return u.wrapTransportErr(err)
	}
	return nil
}

// Complete implements Writer: sorts CompletedParts ascending by
// PartNumber, issues CompleteUpload, and either returns to Idle (more
// URIs available) or transitions to Terminated.
func (u *Uploader) Complete(ctx context.Context) (CompletedUpload, error) {
	if u.state != stateActive {
		return CompletedUpload{}, ErrNotActive
	}
	parts, err := u.pool.Complete(ctx)
	u.completed.Extend(parts)
	if err != nil {
		u.state = stateFailed
		return CompletedUpload{}, u.wrapTransportErr(err)
	}
	if !u.completed.Sorted() {
		// Extend already keeps the slice sorted; this is a defensive
		// invariant check (spec §8 #2), not expected to ever trip.
		u.state = stateFailed
		return CompletedUpload{}, newError(ErrorKindUpload, "completed parts not sorted before CompleteUpload", nil)
	}

	id, uri := u.data.ID, u.data.URI
	req := CompleteRequest{UploadID: id, URI: uri, Parts: u.completed}
	if err := req.Validate(); err != nil {
		u.state = stateFailed
		return CompletedUpload{}, err
	}
	etag, err := u.transport.CompleteUpload(ctx, req)
	if err != nil {
		u.state = stateFailed
		return CompletedUpload{}, withUploadContext(err, id, uri, u.part, u.completed)
	}
	u.log.Debug().Str("upload_id", string(id)).Str("uri", uri.String()).Msg("completed multipart upload")

	u.completed = nil
	u.data = UploadData{}

	// Peek the next destination immediately so IsTerminated reflects
	// spec §3 invariant 4 the instant Complete returns, rather than
	// waiting for the next Ready call to consult the iterator.
	u.peekedURI, u.peekedOK, u.peekedErr = u.iter.Next(ctx)
	u.peeked = true
	if u.peekedErr == nil && !u.peekedOK {
		u.state = stateTerminated
	} else {
		u.state = stateIdle
	}
	return CompletedUpload{URI: uri, ETag: etag}, nil
}

// nextDestination returns the next destination URI, consuming a cached
// peek left by a prior Complete if one is present, otherwise consulting
// the URI Iterator directly (the case on the very first Ready call).
func (u *Uploader) nextDestination(ctx context.Context) (ObjectURI, bool, error) {
	if u.peeked {
		uri, ok, err := u.peekedURI, u.peekedOK, u.peekedErr
		u.peeked = false
		u.peekedURI, u.peekedOK, u.peekedErr = ObjectURI{}, false, nil
		return uri, ok, err
	}
	return u.iter.Next(ctx)
}

// Reactivate attaches the Uploader to an already-created upload, driving
// subsequent Send/Complete calls against data instead of pulling the
// next destination from the URI Iterator. It returns ErrUploadStillActive
// if an upload is already in progress, mirroring the with_upload_data /
// reactivate guard of the original implementation's MultipartUpload
// (spec §7's UploadStillActive precondition violation). This attaches
// in-process only: it does not read or persist any state across process
// restarts.
func (u *Uploader) Reactivate(data UploadData, startPart PartNumber) error {
	if u.state == stateActive {
		return ErrUploadStillActive
	}
	if data.IsZero() {
		return newError(ErrorKindConfig, "Reactivate requires non-zero UploadData", nil)
	}
	if startPart < 1 {
		startPart = 1
	}
	u.data = data
	u.part = startPart
	u.completed = nil
	u.state = stateActive
	u.peeked = false
	return nil
}

// Abort issues AbortUpload for the currently active upload, if any, and
// resets the Uploader back to Idle so Ready can start a fresh object.
// This is never called automatically (spec §9): callers opt in using
// the FailedUpload context from a returned error.
func (u *Uploader) Abort(ctx context.Context) error {
	if u.data.IsZero() {
		return nil
	}
	err := u.transport.AbortUpload(ctx, AbortRequest{UploadID: u.data.ID, URI: u.data.URI})
	u.data = UploadData{}
	u.completed = nil
	// A fresh pool drops any part failure latched by the aborted upload.
	u.pool = NewPendingPool(u.pool.maxTasks)
	u.state = stateIdle
	if err != nil {
		return newError(ErrorKindTransport, "AbortUpload failed", err)
	}
	return nil
}

func (u *Uploader) wrapTransportErr(err error) error {
	var me *Error
	if errors.As(err, &me) {
		return me
	}
	part := u.pool.FailedPart()
	if part == 0 {
		part = u.part
	}
	completed := u.completed
	completed.Extend(u.pool.Snapshot())
	return withUploadContext(err, u.data.ID, u.data.URI, part, completed)
}

// newCorrelationID produces a per-call identifier for log correlation
// across concurrently running Uploaders sharing one process.
func newCorrelationID() string {
	return uuid.NewString()
}
