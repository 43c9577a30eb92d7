package analysis

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	maxBatchWorkers    = 4
	defaultFileTimeout = 30 * time.Second
)

// File is one spectrum file submitted in a batch.
type File struct {
	Name string
	Data []byte
}

// Item is the per-file outcome of a batch run: either a result or an
// error, never both. Failed files do not stop the batch.
type Item struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Result   *Result `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// WithWorkers bounds the number of files analyzed concurrently.
func WithWorkers(n int) func(*batchOptions) {
	return func(o *batchOptions) {
		o.workers = n
	}
}

// WithFileTimeout sets the per-file wall-clock budget. Files exceeding it
// are reported as failed, not retried.
func WithFileTimeout(d time.Duration) func(*batchOptions) {
	return func(o *batchOptions) {
		o.fileTimeout = d
	}
}

type batchOptions struct {
	workers     int
	fileTimeout time.Duration
}

// AnalyzeBatch runs the pipeline over multiple files concurrently with a
// bounded worker pool. Each file is fully independent; order of the
// returned items matches the input order. Cancelling the context stops the
// batch cooperatively: files already running finish their stage checks and
// remaining files are reported as cancelled.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, files []File, params Parameters, options ...func(*batchOptions)) []Item {
	opts := batchOptions{
		workers:     min(maxBatchWorkers, runtime.NumCPU()),
		fileTimeout: defaultFileTimeout,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.workers < 1 {
		opts.workers = 1
	}

	items := make([]Item, len(files))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < opts.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				items[idx] = a.analyzeItem(ctx, files[idx], params, opts.fileTimeout)
			}
		}()
	}

	for idx := range files {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return items
}

func (a *Analyzer) analyzeItem(ctx context.Context, file File, params Parameters, timeout time.Duration) Item {
	item := Item{
		ID:       uuid.NewString(),
		Filename: file.Name,
	}

	if err := ctx.Err(); err != nil {
		item.Error = fmt.Sprintf("batch cancelled: %v", err)
		return item
	}

	fileCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := a.Analyze(fileCtx, file.Name, bytes.NewReader(file.Data), params)
	if err != nil {
		a.logger.Warn("batch item failed",
			"filename", file.Name,
			"error", err)
		item.Error = err.Error()
		return item
	}

	item.Result = result
	return item
}
