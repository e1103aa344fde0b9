// Package tasks runs batches of extraction jobs on a bounded worker pool.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doculab/extract/internal/document"
)

// Task is one unit of batch work: a named document plus its options.
type Task struct {
	Name    string
	Raw     []byte
	Options document.Options
}

// TaskResult pairs a task with its outcome. A failed task carries its error
// in Result.Error; failures never cancel sibling tasks.
type TaskResult struct {
	Name     string
	Result   *document.Result
	Duration time.Duration
}

// Processor runs a single document end to end.
type Processor interface {
	Process(ctx context.Context, doc *document.Document, opts document.Options) *document.Result
}

// Pool fans tasks out to a fixed number of workers.
type Pool struct {
	workers   int
	processor Processor
	logger    *slog.Logger
}

func NewPool(workers int, processor Processor, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{workers: workers, processor: processor, logger: logger}
}

// Run processes every task and returns results in task order. It waits for
// all tasks before returning; a panicking or failing task is recorded in its
// own slot and the rest of the batch continues.
func (p *Pool) Run(ctx context.Context, batch []Task) []TaskResult {
	results := make([]TaskResult, len(batch))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, t := range batch {
		i, t := i, t
		g.Go(func() error {
			start := time.Now()
			results[i] = TaskResult{Name: t.Name, Result: p.runOne(ctx, t)}
			results[i].Duration = time.Since(start)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (p *Pool) runOne(ctx context.Context, t Task) (res *document.Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("tasks.panic", "file", t.Name, "panic", r)
			res = &document.Result{Error: fmt.Sprintf("task panicked: %v", r)}
			res.Finalize()
		}
	}()

	doc := document.New(t.Name, t.Raw)
	return p.processor.Process(ctx, doc, t.Options)
}
