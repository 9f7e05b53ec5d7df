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
	"sync"

	"golang.org/x/sync/semaphore"
)

// PartTask is one deferred UploadPart request, run by the Pending Pool
// on its own goroutine.
type PartTask func(ctx context.Context) (CompletedPart, error)

// PendingPool holds in-flight PartTasks, bounded to at most maxTasks
// concurrent goroutines. Tasks may finish in any order; their
// CompletedParts are collected sorted ascending by PartNumber. The teacher's uploader.go already pulls in
// golang.org/x/sync for errgroup-style bounded fan-out; this uses the
// sibling semaphore package, since errgroup alone has no non-blocking
// capacity query and the spec calls for explicit poll_ready/back-pressure
// semantics.
//
// A PendingPool is driven by exactly one goroutine at a time (the
// Uploader that owns it); only the PartTasks it launches run
// concurrently with each other and with the caller.
type PendingPool struct {
	maxTasks int
	sem      *semaphore.Weighted

	mu           sync.Mutex
	cond         *sync.Cond
	pending      int
	completed    CompletedParts
	firstErr     error
	firstErrPart PartNumber
}

// NewPendingPool returns a pool that allows at most maxTasks concurrent
// PartTasks. maxTasks <= 0 means unbounded.
func NewPendingPool(maxTasks int) *PendingPool {
	p := &PendingPool{maxTasks: maxTasks}
	p.cond = sync.NewCond(&p.mu)
	if maxTasks > 0 {
		p.sem = semaphore.NewWeighted(int64(maxTasks))
	}
	return p
}

// Ready blocks until the pool has capacity for another task, or returns
// the latched error if a previously dispatched task has already failed.
func (p *PendingPool) Ready(ctx context.Context) error {
	if err := p.currentErr(); err != nil {
		return err
	}
	if p.sem == nil {
		return nil
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.sem.Release(1)
	return p.currentErr()
}

// Send launches task on its own goroutine. Send must only be called
// after Ready has reported no error.
func (p *PendingPool) Send(ctx context.Context, task PartTask) error {
	if err := p.currentErr(); err != nil {
		return err
	}
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.pending++
	p.mu.Unlock()

	go func() {
		part, err := task(ctx)
		p.mu.Lock()
		p.pending--
		if err != nil {
			if p.firstErr == nil {
				p.firstErr = err
				p.firstErrPart = part.Number
			}
			// subsequent results, success or failure, are dropped
			// once an error has been latched (spec §4.2).
		} else if p.firstErr == nil {
			p.completed.Add(part)
		}
		p.cond.Broadcast()
		p.mu.Unlock()
		// Release only after the result is recorded, so a task admitted
		// into the freed slot cannot be recorded ahead of an earlier failure.
		if p.sem != nil {
			p.sem.Release(1)
		}
	}()
	return nil
}

// Flush drives every pending task to completion.
func (p *PendingPool) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.mu.Lock()
		for p.pending > 0 {
			p.cond.Wait()
		}
		p.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.currentErr()
}

// Complete returns the accumulated CompletedParts and empties that
// collection for the next object, after flushing any outstanding work.
// A latched task error stays latched: it is still returned by later
// Ready/Send/Flush calls and still reported by FailedPart.
func (p *PendingPool) Complete(ctx context.Context) (CompletedParts, error) {
	err := p.Flush(ctx)
	return p.takeCompleted(), err
}

// InFlight reports the current number of unresolved tasks. Exposed for
// tests that assert the bounded-concurrency invariant (spec §8 #4).
func (p *PendingPool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Snapshot returns a copy of the parts completed so far without draining
// them, for attaching to error context while more Sends may still follow
// (spec §9 Open Question: Pending Pool retention on failure).
func (p *PendingPool) Snapshot() CompletedParts {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(CompletedParts, len(p.completed))
	copy(out, p.completed)
	return out
}

// FailedPart returns the PartNumber of the task that latched the pool's
// current error, or 0 if no error is latched. The task closure is
// expected to report its own PartNumber even on failure so this stays
// accurate.
func (p *PendingPool) FailedPart() PartNumber {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErrPart
}

func (p *PendingPool) currentErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}

func (p *PendingPool) takeCompleted() CompletedParts {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.completed
	p.completed = nil
	return out
}
