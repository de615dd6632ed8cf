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

package docindex

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(id int64) Document {
	return Document{"line_l": id}
}

func TestIndexer_BatchesInOrder(t *testing.T) {
	ctx := context.Background()
	var batches [][]Document
	sink := SinkFunc(func(ctx context.Context, docs []Document) error {
		batches = append(batches, docs)
		return nil
	})

	ix := NewIndexer(sink, Config{BatchSize: 3})
	for i := int64(1); i <= 7; i++ {
		require.NoError(t, ix.Add(ctx, i, doc(i)))
	}
	require.NoError(t, ix.Close(ctx))

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, int64(1), batches[0][0]["line_l"])
	assert.Equal(t, int64(7), batches[2][0]["line_l"])
}

func TestIndexer_OneSendInFlight(t *testing.T) {
	ctx := context.Background()
	var inFlight, maxInFlight int32
	release := make(chan struct{})
	sink := SinkFunc(func(ctx context.Context, docs []Document) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			max := atomic.LoadInt32(&maxInFlight)
			if n <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&inFlight, -1)
		return nil
	})

	ix := NewIndexer(sink, Config{BatchSize: 2})
	require.NoError(t, ix.Add(ctx, 1, doc(1)))
	require.NoError(t, ix.Add(ctx, 2, doc(2)))

	// The second full batch must wait for the first send to resolve.
	done := make(chan error, 1)
	go func() {
		if err := ix.Add(ctx, 3, doc(3)); err != nil {
			done <- err
			return
		}
		done <- ix.Add(ctx, 4, doc(4))
	}()
	release <- struct{}{}
	require.NoError(t, <-done)
	release <- struct{}{}
	require.NoError(t, ix.Close(ctx))

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestIndexer_ProgressAfterConfirmation(t *testing.T) {
	ctx := context.Background()
	var confirmed []int64
	sink := SinkFunc(func(ctx context.Context, docs []Document) error { return nil })

	ix := NewIndexer(sink, Config{
		BatchSize: 2,
		Progress:  func(line int64) { confirmed = append(confirmed, line) },
	})
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, ix.Add(ctx, i, doc(i)))
	}
	require.NoError(t, ix.Close(ctx))

	assert.Equal(t, []int64{2, 4, 5}, confirmed)
}

func TestIndexer_SinkErrorStopsLaterBatches(t *testing.T) {
	ctx := context.Background()
	var sends int32
	sink := SinkFunc(func(ctx context.Context, docs []Document) error {
		atomic.AddInt32(&sends, 1)
		return errors.New("backend unavailable")
	})

	ix := NewIndexer(sink, Config{BatchSize: 1})
	require.NoError(t, ix.Add(ctx, 1, doc(1)))

	err := ix.Add(ctx, 2, doc(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")
	assert.Equal(t, int32(1), atomic.LoadInt32(&sends))
}

func TestIndexer_CloseFlushesPartialBatch(t *testing.T) {
	ctx := context.Background()
	var total int
	sink := SinkFunc(func(ctx context.Context, docs []Document) error {
		total += len(docs)
		return nil
	})

	ix := NewIndexer(sink, Config{BatchSize: 100})
	require.NoError(t, ix.Add(ctx, 1, doc(1)))
	require.NoError(t, ix.Close(ctx))
	assert.Equal(t, 1, total)
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := WriterSink(&buf)
	err := sink.Send(context.Background(), []Document{
		{"contig_s": "1", "start_l": int64(9)},
		{"contig_s": "2", "start_l": int64(19)},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"contig_s":"1"`)
	assert.Contains(t, lines[1], `"start_l":19`)
}
