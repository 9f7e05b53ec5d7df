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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport used throughout the package's
// tests, grounded on the same substitution-for-a-real-backend idea as the
// teacher's httptest mock, minus the HTTP plumbing.
type fakeTransport struct {
	mu      sync.Mutex
	objects map[string][]byte
	aborted map[UploadID]bool

	nextID       int
	failCreate   error
	failUpload   error
	failComplete error
	failAbort    error

	parts map[UploadID]map[PartNumber][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		objects: make(map[string][]byte),
		aborted: make(map[UploadID]bool),
		parts:   make(map[UploadID]map[PartNumber][]byte),
	}
}

func (f *fakeTransport) CreateUpload(ctx context.Context, req CreateRequest) (UploadID, error) {
	if f.failCreate != nil {
		return "", f.failCreate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := UploadID(fmt.Sprintf("upload-%d", f.nextID))
	f.parts[id] = make(map[PartNumber][]byte)
	return id, nil
}

func (f *fakeTransport) UploadPart(ctx context.Context, req UploadPartRequest) (EntityTag, error) {
	if f.failUpload != nil {
		return "", f.failUpload
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parts[req.UploadID][req.Number] = req.Body.Bytes()
	return EntityTag(fmt.Sprintf("etag-%d", req.Number)), nil
}

func (f *fakeTransport) CompleteUpload(ctx context.Context, req CompleteRequest) (EntityTag, error) {
	if f.failComplete != nil {
		return "", f.failComplete
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, p := range req.Parts {
		out = append(out, f.parts[req.UploadID][p.Number]...)
	}
	f.objects[req.URI.Key] = out
	delete(f.parts, req.UploadID)
	return "final-etag", nil
}

func (f *fakeTransport) AbortUpload(ctx context.Context, req AbortRequest) error {
	if f.failAbort != nil {
		return f.failAbort
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted[req.UploadID] = true
	delete(f.parts, req.UploadID)
	return nil
}

func mustURI(t *testing.T, bucket, key string) ObjectURI {
	t.Helper()
	u, err := NewObjectURI(bucket, key)
	require.NoError(t, err)
	return u
}

func TestUploader_SingleObjectLifecycle(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	iter := NewOneShotIterator(mustURI(t, "bucket", "object.bin"))
	u := NewUploader(transport, iter, 4)

	require.NoError(t, u.Ready(ctx))
	assert.False(t, u.IsTerminated())

	_, err := u.Send(ctx, NewPartBody([]byte("hello ")))
	require.NoError(t, err)
	_, err = u.Send(ctx, NewPartBody([]byte("world")))
	require.NoError(t, err)

	require.NoError(t, u.Flush(ctx))
	out, err := u.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "object.bin", out.URI.Key)

	assert.Equal(t, []byte("hello world"), transport.objects["object.bin"])

	require.NoError(t, u.Ready(ctx))
	assert.True(t, u.IsTerminated())
}

func TestUploader_SendBeforeReadyIsRejected(t *testing.T) {
	ctx := context.Background()
	u := NewUploader(newFakeTransport(), NewOneShotIterator(mustURI(t, "b", "k")), 2)
	_, err := u.Send(ctx, NewPartBody([]byte("x")))
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestUploader_CompleteBeforeReadyIsRejected(t *testing.T) {
	ctx := context.Background()
	u := NewUploader(newFakeTransport(), NewOneShotIterator(mustURI(t, "b", "k")), 2)
	_, err := u.Complete(ctx)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestUploader_RollsOverToNextDestination(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	iter := NewSliceIterator([]ObjectURI{
		mustURI(t, "bucket", "a.bin"),
		mustURI(t, "bucket", "b.bin"),
	})
	u := NewUploader(transport, iter, 4)

	require.NoError(t, u.Ready(ctx))
	_, err := u.Send(ctx, NewPartBody([]byte("first")))
	require.NoError(t, err)
	require.NoError(t, u.Flush(ctx))
	out1, err := u.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a.bin", out1.URI.Key)

	require.NoError(t, u.Ready(ctx))
	assert.False(t, u.IsTerminated())
	_, err = u.Send(ctx, NewPartBody([]byte("second")))
	require.NoError(t, err)
	require.NoError(t, u.Flush(ctx))
	out2, err := u.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b.bin", out2.URI.Key)
}

func TestUploader_FailedPartCarriesFailedUploadContext(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	transport.failUpload = errors.New("network blip")
	u := NewUploader(transport, NewOneShotIterator(mustURI(t, "bucket", "k")), 4)

	require.NoError(t, u.Ready(ctx))
	_, err := u.Send(ctx, NewPartBody([]byte("x")))
	require.NoError(t, err) // Send only dispatches; the error surfaces on Flush/Complete.

	err = u.Flush(ctx)
	require.Error(t, err)

	var merr *Error
	require.True(t, errors.As(err, &merr))
	require.NotNil(t, merr.FailedUpload())
	assert.Equal(t, "k", merr.FailedUpload().URI.Key)
}

func TestUploader_AbortIsNeverAutomatic(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	transport.failComplete = errors.New("s3 unavailable")
	u := NewUploader(transport, NewOneShotIterator(mustURI(t, "bucket", "k")), 4)

	require.NoError(t, u.Ready(ctx))
	_, err := u.Send(ctx, NewPartBody([]byte("x")))
	require.NoError(t, err)
	require.NoError(t, u.Flush(ctx))

	_, err = u.Complete(ctx)
	require.Error(t, err)
	assert.Empty(t, transport.aborted)

	require.NoError(t, u.Abort(ctx))
	assert.Len(t, transport.aborted, 1)
}

func TestUploader_ExhaustedIteratorTerminates(t *testing.T) {
	ctx := context.Background()
	u := NewUploader(newFakeTransport(), EmptyIterator{}, 2)
	require.NoError(t, u.Ready(ctx))
	assert.True(t, u.IsTerminated())
}

func TestUploader_CompleteReportsTerminatedImmediately(t *testing.T) {
	ctx := context.Background()
	u := NewUploader(newFakeTransport(), NewOneShotIterator(mustURI(t, "bucket", "only.bin")), 4)

	require.NoError(t, u.Ready(ctx))
	_, err := u.Send(ctx, NewPartBody([]byte("x")))
	require.NoError(t, err)
	require.NoError(t, u.Flush(ctx))

	_, err = u.Complete(ctx)
	require.NoError(t, err)
	assert.True(t, u.IsTerminated(), "IsTerminated must be accurate the instant Complete returns, before any further Ready call")
}

func TestUploader_CompleteReportsNotTerminatedWhenMoreWorkRemains(t *testing.T) {
	ctx := context.Background()
	iter := NewSliceIterator([]ObjectURI{
		mustURI(t, "bucket", "a.bin"),
		mustURI(t, "bucket", "b.bin"),
	})
	u := NewUploader(newFakeTransport(), iter, 4)

	require.NoError(t, u.Ready(ctx))
	_, err := u.Send(ctx, NewPartBody([]byte("x")))
	require.NoError(t, err)
	require.NoError(t, u.Flush(ctx))

	_, err = u.Complete(ctx)
	require.NoError(t, err)
	assert.False(t, u.IsTerminated(), "a second destination is still available")
}

func TestUploader_ReactivateRejectsWhileActive(t *testing.T) {
	ctx := context.Background()
	u := NewUploader(newFakeTransport(), NewOneShotIterator(mustURI(t, "bucket", "k")), 4)
	require.NoError(t, u.Ready(ctx))

	err := u.Reactivate(UploadData{ID: "other", URI: mustURI(t, "bucket", "other")}, 1)
	assert.ErrorIs(t, err, ErrUploadStillActive)
}

func TestUploader_ReactivateAttachesToExistingUpload(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	u := NewUploader(transport, EmptyIterator{}, 4)

	data := UploadData{ID: "out-of-band-id", URI: mustURI(t, "bucket", "resumed.bin")}
	transport.parts[data.ID] = make(map[PartNumber][]byte)
	require.NoError(t, u.Reactivate(data, 3))

	_, err := u.Send(ctx, NewPartBody([]byte("tail")))
	require.NoError(t, err)
	require.NoError(t, u.Flush(ctx))
	out, err := u.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "resumed.bin", out.URI.Key)
}
