package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/hyperjump/ingestor/internal/models"
	"github.com/panjf2000/ants/v2"
)

// BatchItem is the outcome of one document in a batch.
type BatchItem struct {
	Request Request
	Result  *Result
	Err     error
}

// Batcher runs independent pipelines concurrently on a bounded worker pool.
type Batcher struct {
	pipeline *Pipeline
	pool     *ants.Pool
}

// NewBatcher creates a Batcher with the given number of workers.
// Non-positive workers defaults to half the CPUs, minimum 1.
func NewBatcher(p *Pipeline, workers int) (*Batcher, error) {
	if workers < 1 {
		workers = runtime.NumCPU() / 2
		if workers < 1 {
			workers = 1
		}
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &Batcher{pipeline: p, pool: pool}, nil
}

// Run ingests every request and returns results in input order.
// A request that cannot be scheduled is reported with the scheduling error.
func (b *Batcher) Run(ctx context.Context, reqs []Request) []BatchItem {
	items := make([]BatchItem, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		items[i].Request = req
		wg.Add(1)
		i, req := i, req
		err := b.pool.Submit(func() {
			defer wg.Done()
			items[i].Result, items[i].Err = b.pipeline.Run(ctx, req)
		})
		if err != nil {
			wg.Done()
			items[i].Err = err
		}
	}
	wg.Wait()
	return items
}

// Go schedules one run and calls done with its outcome from a worker goroutine.
func (b *Batcher) Go(ctx context.Context, req Request, done func(BatchItem)) error {
	return b.pool.Submit(func() {
		res, err := b.pipeline.Run(ctx, req)
		if done != nil {
			done(BatchItem{Request: req, Result: res, Err: err})
		}
	})
}

// Running returns the number of busy workers.
func (b *Batcher) Running() int {
	return b.pool.Running()
}

// Release stops the worker pool. Queued work is dropped.
func (b *Batcher) Release() {
	b.pool.Release()
}

// NewBatchResponse converts batch outcomes into the wire response, preserving order.
func NewBatchResponse(items []BatchItem) models.BatchResponse {
	resp := models.BatchResponse{Results: make([]models.BatchItem, len(items))}
	for i, item := range items {
		out := models.BatchItem{File: item.Request.DocumentID}
		if item.Err != nil {
			out.Error = item.Err.Error()
			resp.Failed++
		} else {
			out.Stored = item.Result.Stored
			out.Summary = item.Result.Summary
			resp.Succeeded++
		}
		resp.Results[i] = out
	}
	return resp
}
