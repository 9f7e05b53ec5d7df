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

// Command streamarchive reads newline-delimited JSON records from stdin and
// archives them to S3 as a sequence of timestamp-prefixed objects, rolling
// over to a new object once the configured target size is reached.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kelindar/multipart"
	"github.com/kelindar/multipart/encoding"
	"github.com/kelindar/multipart/transport/awss3"
	"github.com/kelindar/multipart/uriseq"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		bucket       string
		prefix       string
		layout       string
		region       string
		endpoint     string
		maxObjectMB  int
		maxPartMB    int
		poolCapacity int
		verbose      bool
	)

	cmd := &cobra.Command{
		Use:   "streamarchive",
		Short: "Archive newline-delimited JSON from stdin to S3 multipart objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			if !verbose {
				log = log.Level(zerolog.WarnLevel)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			transport, err := awss3.NewFromEnv(ctx, region, endpoint, awss3.WithContentType("application/x-ndjson"))
			if err != nil {
				return fmt.Errorf("connect to s3: %w", err)
			}

			seq := uriseq.NewTimestampedPrefixes(layout, prefix)
			iter := multipart.NewMappedIterator(bucket, seq, func(p multipart.KeyPrefix) multipart.Key {
				return p.ToKey("records.jsonl")
			})

			uploader := multipart.NewUploader(transport, iter, poolCapacity).WithLogger(log)
			encoded := multipart.NewEncodedUploader[json.RawMessage](uploader, func() multipart.PartEncoder[json.RawMessage] {
				return encoding.NewJSONLines[json.RawMessage](maxPartMB << 20)
			}, multipart.EncodedUploaderConfig{
				MaxBytes:     uint64(maxObjectMB) << 20,
				MaxPartBytes: maxPartMB << 20,
				AbortOnError: true,
			})

			return run(ctx, encoded, os.Stdin, log)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&bucket, "bucket", "", "destination S3 bucket (required)")
	flags.StringVar(&prefix, "prefix", "", "static key prefix, joined before the timestamp")
	flags.StringVar(&layout, "layout", "2006/01/02/15-04-05.000000000", "Go reference-time layout for the per-object timestamp")
	flags.StringVar(&region, "region", "", "AWS region (defaults to the SDK's own resolution)")
	flags.StringVar(&endpoint, "endpoint", "", "S3-compatible endpoint override, for non-AWS backends")
	flags.IntVar(&maxObjectMB, "max-object-mb", 5120, "roll over to a new object after this many megabytes")
	flags.IntVar(&maxPartMB, "max-part-mb", 10, "flush a part after this many megabytes")
	flags.IntVar(&poolCapacity, "pool-capacity", multipart.DefaultPoolCapacity, "max concurrent UploadPart requests")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log upload progress")
	_ = cmd.MarkFlagRequired("bucket")

	return cmd
}

// run drives the encoded writer to completion over every JSON line read
// from src, implementing the same Ready/Send/Flush/Complete protocol any
// Writer[Item,...] caller follows.
func run(ctx context.Context, w *multipart.EncodedUploader[json.RawMessage], src *os.File, log zerolog.Logger) error {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := w.Ready(ctx); err != nil {
			return fmt.Errorf("ready: %w", err)
		}
		item := json.RawMessage(append([]byte(nil), line...))
		status, err := w.Send(ctx, item)
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		if status.ShouldComplete {
			out, err := w.Complete(ctx)
			if err != nil {
				return fmt.Errorf("complete: %w", err)
			}
			log.Info().Str("uri", out.URI.String()).Str("etag", string(out.ETag)).Msg("archived object")
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if w.Status().Bytes > 0 || w.Status().Parts > 0 {
		out, err := w.Complete(ctx)
		if err != nil {
			return fmt.Errorf("final complete: %w", err)
		}
		log.Info().Str("uri", out.URI.String()).Str("etag", string(out.ETag)).Msg("archived final object")
	}
	return nil
}
