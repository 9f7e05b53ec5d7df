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

// URIIterator produces a lazy sequence of destination ObjectURIs, finite
// or infinite. Next returns (uri, true, nil) while the sequence has more
// elements, (zero, false, nil) once exhausted, or a non-nil error if
// producing the next URI itself failed. It is not required to be
// restartable, and is mutated exclusively by one Uploader at a time
// (spec §4.1, §5).
type URIIterator interface {
	Next(ctx context.Context) (ObjectURI, bool, error)
}

// EmptyIterator yields nothing.
type EmptyIterator struct{}

// Next implements URIIterator.
func (EmptyIterator) Next(context.Context) (ObjectURI, bool, error) {
	return ObjectURI{}, false, nil
}

// OneShotIterator yields a single URI, then exhausts.
type OneShotIterator struct {
	uri  ObjectURI
	done bool
}

// NewOneShotIterator returns an iterator that yields uri exactly once.
func NewOneShotIterator(uri ObjectURI) *OneShotIterator {
	return &OneShotIterator{uri: uri}
}

// Next implements URIIterator.
func (o *OneShotIterator) Next(context.Context) (ObjectURI, bool, error) {
	if o.done {
		return ObjectURI{}, false, nil
	}
	o.done = true
	return o.uri, true, nil
}

// SliceIterator yields a fixed, finite list of destinations in order.
type SliceIterator struct {
	uris []ObjectURI
	pos  int
}

// NewSliceIterator returns an iterator over a fixed list of URIs.
func NewSliceIterator(uris []ObjectURI) *SliceIterator {
	cp := make([]ObjectURI, len(uris))
	copy(cp, uris)
	return &SliceIterator{uris: cp}
}

// Next implements URIIterator.
func (s *SliceIterator) Next(context.Context) (ObjectURI, bool, error) {
	if s.pos >= len(s.uris) {
		return ObjectURI{}, false, nil
	}
	u := s.uris[s.pos]
	s.pos++
	return u, true, nil
}

// KeyPrefixSequence produces a lazy sequence of KeyPrefix values, the
// building block for MappedIterator.
type KeyPrefixSequence interface {
	Next(ctx context.Context) (KeyPrefix, bool, error)
}

// KeyPrefixSequenceFunc adapts a plain function to KeyPrefixSequence.
type KeyPrefixSequenceFunc func(ctx context.Context) (KeyPrefix, bool, error)

// Next implements KeyPrefixSequence.
func (f KeyPrefixSequenceFunc) Next(ctx context.Context) (KeyPrefix, bool, error) {
	return f(ctx)
}

// MappedIterator wraps a KeyPrefixSequence, a fixed bucket, and a
// function from KeyPrefix to Key, yielding ObjectURI(bucket, f(prefix))
// for each element of the sequence (spec §4.1 "Mapped").
type MappedIterator struct {
	bucket string
	seq    KeyPrefixSequence
	toKey  func(KeyPrefix) Key
}

// NewMappedIterator builds a MappedIterator.
func NewMappedIterator(bucket string, seq KeyPrefixSequence, toKey func(KeyPrefix) Key) *MappedIterator {
	return &MappedIterator{bucket: bucket, seq: seq, toKey: toKey}
}

// Next implements URIIterator.
func (m *MappedIterator) Next(ctx context.Context) (ObjectURI, bool, error) {
	prefix, ok, err := m.seq.Next(ctx)
	if err != nil {
		return ObjectURI{}, false, err
	}
	if !ok {
		return ObjectURI{}, false, nil
	}
	return NewObjectURI(m.bucket, string(m.toKey(prefix)))
}
