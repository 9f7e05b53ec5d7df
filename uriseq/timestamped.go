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

// Package uriseq provides KeyPrefixSequence implementations for common
// destination-naming schemes, starting with one derived from the current
// time.
package uriseq

import (
	"context"
	"strings"
	"time"

	"github.com/kelindar/multipart"
)

// TimestampedPrefixes yields an unbounded sequence of KeyPrefix values
// derived from the wall-clock time at each Next call, formatted with a Go
// reference-time layout (no strftime library appears anywhere in the
// examined corpus, so this is the one ambient concession to
// time.Time.Format; see DESIGN.md). An optional static Prefix is joined in
// front of the formatted timestamp, mirroring the original archiver's
// "with_prefix" builder step.
type TimestampedPrefixes struct {
	layout string
	prefix string
	now    func() time.Time
}

// NewTimestampedPrefixes returns a KeyPrefixSequence that formats the
// current time with layout (e.g. "2006/01/02/15-04-05") on every call to
// Next, optionally rooted under prefix.
func NewTimestampedPrefixes(layout, prefix string) *TimestampedPrefixes {
	return &TimestampedPrefixes{layout: layout, prefix: prefix, now: time.Now}
}

// Next implements multipart.KeyPrefixSequence. It never exhausts.
func (t *TimestampedPrefixes) Next(ctx context.Context) (multipart.KeyPrefix, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	stamp := t.now().UTC().Format(t.layout)
	if t.prefix == "" {
		return multipart.NewKeyPrefix(stamp), true, nil
	}
	joined := strings.TrimSuffix(t.prefix, "/") + "/" + stamp
	return multipart.NewKeyPrefix(joined), true, nil
}
