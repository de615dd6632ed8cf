// Copyright 2019 Featix Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package docindex batches documents and ships them to a sink with one
// send in flight, so conversion of the next batch overlaps the delivery of
// the previous one.
package docindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Document is one flat record destined for the search index.
type Document map[string]interface{}

// Sink delivers batches of documents.  Indexer guarantees calls are
// sequential, so implementations need no locking of their own.
type Sink interface {
	Send(ctx context.Context, docs []Document) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, docs []Document) error

func (f SinkFunc) Send(ctx context.Context, docs []Document) error { return f(ctx, docs) }

// DefaultBatchSize is the number of documents accumulated before a batch
// is handed to the sink.
const DefaultBatchSize = 4000

// Config adjusts an Indexer.  The zero value is usable.
type Config struct {
	// BatchSize overrides DefaultBatchSize when positive.
	BatchSize int
	// Progress, when set, is called with the ordinal of the last
	// document of every batch after the sink confirms it.
	Progress func(line int64)
	// Logger, when set, receives a debug line per confirmed batch.
	Logger log.Logger
}

// Indexer accumulates documents and sends full batches asynchronously.
// At most one send runs at a time; handing over the next batch waits for
// the outcome of the previous one, so a sink failure is reported before
// any later batch is given away.  Not safe for concurrent use.
type Indexer struct {
	sink     Sink
	size     int
	progress func(line int64)
	logger   log.Logger

	pending []Document
	last    int64

	inflight     chan error
	inflightLast int64
}

// NewIndexer returns an indexer feeding the given sink.
func NewIndexer(sink Sink, cfg Config) *Indexer {
	size := cfg.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Indexer{sink: sink, size: size, progress: cfg.Progress, logger: logger}
}

// Add queues one document.  line is the ordinal reported through the
// progress callback once the batch containing the document is confirmed.
func (ix *Indexer) Add(ctx context.Context, line int64, doc Document) error {
	ix.pending = append(ix.pending, doc)
	ix.last = line
	if len(ix.pending) < ix.size {
		return nil
	}
	return ix.flush(ctx)
}

// Close sends any partial batch and waits for the final outcome.  The
// indexer must not be used afterwards.
func (ix *Indexer) Close(ctx context.Context) error {
	if err := ix.flush(ctx); err != nil {
		return err
	}
	return ix.await()
}

func (ix *Indexer) flush(ctx context.Context) error {
	if len(ix.pending) == 0 {
		return nil
	}
	if err := ix.await(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := ix.pending
	ix.pending = nil
	ix.inflight = make(chan error, 1)
	ix.inflightLast = ix.last
	ch := ix.inflight
	go func() {
		ch <- ix.sink.Send(ctx, batch)
	}()
	return nil
}

// await blocks until the in-flight send, if any, resolves.
func (ix *Indexer) await() error {
	if ix.inflight == nil {
		return nil
	}
	err := <-ix.inflight
	ix.inflight = nil
	if err != nil {
		return fmt.Errorf("sending batch: %v", err)
	}
	level.Debug(ix.logger).Log("msg", "batch confirmed", "line", ix.inflightLast)
	if ix.progress != nil {
		ix.progress(ix.inflightLast)
	}
	return nil
}

// WriterSink returns a sink that writes each document as one JSON line.
func WriterSink(w io.Writer) Sink {
	enc := json.NewEncoder(w)
	return SinkFunc(func(ctx context.Context, docs []Document) error {
		for _, doc := range docs {
			if err := enc.Encode(doc); err != nil {
				return err
			}
		}
		return nil
	})
}
