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
	"time"
)

// EncoderFactory builds a fresh PartEncoder[Item] for a brand-new
// object, the seed for EncodedUploader's ResetForNewUpload calls.
type EncoderFactory[Item any] func() PartEncoder[Item]

// EncodedUploaderConfig configures the Encoded Layer (spec §4.4).
type EncodedUploaderConfig struct {
	// MaxBytes is the aggregate size, per object, at which
	// should_complete becomes true. Clamped up to AWS_MAX_OBJECT_SIZE.
	MaxBytes uint64
	// MaxPartBytes is the size at which an in-progress part is flushed.
	// Clamped into [AWS_MIN_PART_SIZE, AWS_MAX_PART_SIZE].
	MaxPartBytes int
	// AbortOnError, when true, causes EncodedUploader to call
	// Uploader.Abort automatically after a fatal error, matching the
	// opt-in "abort_failed" behavior described in spec §9. Default
	// false: no implicit abort.
	AbortOnError bool
}

func (c EncodedUploaderConfig) normalize() EncodedUploaderConfig {
	if c.MaxPartBytes == 0 {
		c.MaxPartBytes = DefaultTargetPartSize
	}
	c.MaxPartBytes = clampPartSize(c.MaxPartBytes)
	if c.MaxBytes == 0 {
		c.MaxBytes = DefaultTargetObjectSize
	}
	if c.MaxBytes > MaxObjectSize {
		c.MaxBytes = MaxObjectSize
	}
	return c
}

// EncodedUploader turns a stream of Item values into size-bounded parts
// using a pluggable PartEncoder, uploading through an Uploader and
// triggering CompleteUpload when the aggregate object size reaches
// MaxBytes (spec §4.4). It implements Writer[Item, Status, CompletedUpload].
type EncodedUploader[Item any] struct {
	uploader *Uploader
	factory  EncoderFactory[Item]
	encoder  PartEncoder[Item]
	cfg      EncodedUploaderConfig

	start  time.Time
	status Status
}

// NewEncodedUploader builds an EncodedUploader driving uploader, using
// factory to build a fresh encoder for each new object.
func NewEncodedUploader[Item any](uploader *Uploader, factory EncoderFactory[Item], cfg EncodedUploaderConfig) *EncodedUploader[Item] {
	cfg = cfg.normalize()
	return &EncodedUploader[Item]{
		uploader: uploader,
		factory:  factory,
		encoder:  factory(),
		cfg:      cfg,
		start:    time.Now(),
		status:   Status{CorrelationID: newCorrelationID()},
	}
}

// Status returns the most recent telemetry snapshot.
func (e *EncodedUploader[Item]) Status() Status { return e.status }

// IsTerminated reports whether the underlying Uploader has no more work.
func (e *EncodedUploader[Item]) IsTerminated() bool { return e.uploader.IsTerminated() }

// Ready implements Writer: ensures the underlying Uploader is ready to
// accept another part, flushing the in-progress part first if it has
// already reached MaxPartBytes (spec §4.4 poll_ready).
func (e *EncodedUploader[Item]) Ready(ctx context.Context) error {
	if err := e.uploader.Ready(ctx); err != nil {
		return err
	}
	if e.status.PartBytes >= uint64(e.cfg.MaxPartBytes) {
		return e.flushPart(ctx)
	}
	return nil
}

// Send implements Writer: encodes item and returns an updated Status
// snapshot, including should_upload/should_complete hints (spec §4.4
// start_send).
func (e *EncodedUploader[Item]) Send(ctx context.Context, item Item) (Status, error) {
	n, err := e.encoder.Encode(item)
	if err != nil {
		return Status{}, NewEncodingError(EncodeErrorUnknown, "encode failed", err)
	}
	e.status.Items++
	e.status.PartBytes += uint64(n)
	e.status.Elapsed = time.Since(e.start)
	e.status.ShouldUpload = e.status.PartBytes >= uint64(e.cfg.MaxPartBytes)
	e.status.ShouldComplete = e.status.Bytes >= e.cfg.MaxBytes
	return e.status, nil
}

// Flush implements Writer: flushes any in-progress part, then forwards
// the flush to the underlying Uploader (spec §4.4 poll_flush).
func (e *EncodedUploader[Item]) Flush(ctx context.Context) error {
	if e.encoder.Size() > 0 {
		if err := e.flushPart(ctx); err != nil {
			return err
		}
	}
	return e.uploader.Flush(ctx)
}

// Complete implements Writer: flushes the final (possibly
// below-minimum) part, completes the underlying object, and rebuilds a
// fresh encoder for the next cycle (spec §4.4 poll_complete).
func (e *EncodedUploader[Item]) Complete(ctx context.Context) (CompletedUpload, error) {
	if e.encoder.Size() > 0 {
		if err := e.flushPart(ctx); err != nil {
			return CompletedUpload{}, err
		}
	}
	out, err := e.uploader.Complete(ctx)
	if err != nil {
		if e.cfg.AbortOnError {
			_ = e.uploader.Abort(ctx)
		}
		return CompletedUpload{}, err
	}
	e.encoder = e.encoder.ResetForNewUpload()
	e.status.ActiveUploadID = ""
	e.status.CurrentPart = 0
	e.status.Parts = 0
	e.status.Bytes = 0
	e.status.PartBytes = 0
	e.status.ShouldUpload = false
	e.status.ShouldComplete = false
	return out, nil
}

// flushPart implements the flush-part procedure of spec §4.4: flush the
// encoder, swap in a fresh continuation encoder, and dispatch the
// finished body to the Uploader.
func (e *EncodedUploader[Item]) flushPart(ctx context.Context) error {
	if err := e.encoder.Flush(); err != nil {
		if e.cfg.AbortOnError {
			_ = e.uploader.Abort(ctx)
		}
		return NewEncodingError(EncodeErrorUnknown, "flush failed", err)
	}
	finished := e.encoder
	e.encoder = finished.ResetForNewPart()

	body, err := finished.IntoBody()
	if err != nil {
		return NewEncodingError(EncodeErrorUnknown, "into_body failed", err)
	}
	sent, err := e.uploader.Send(ctx, body)
	if err != nil {
		if e.cfg.AbortOnError {
			_ = e.uploader.Abort(ctx)
		}
		return err
	}
	e.status.ActiveUploadID = sent.ID
	e.status.CurrentPart = sent.Number
	e.status.Bytes += uint64(sent.Bytes)
	e.status.Parts++
	e.status.PartBytes = 0
	return nil
}
