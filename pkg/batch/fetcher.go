package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of items fetched at once.
	MaxConcurrency int

	// Timeout per item. Zero leaves the deadline to the fetch function.
	Timeout time.Duration

	// StopOnError, when it returns true for an item error, skips every item
	// not yet started. Skipped items carry ErrSkipped.
	StopOnError func(err error) bool
}

// DefaultConfig returns defaults suitable for the paced Scripture API.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
	}
}

// Result is the outcome for one item.
type Result[K comparable, T any] struct {
	Index int
	Key   K
	Value T
	Err   error
}

// OK reports whether the item loaded.
func (r Result[K, T]) OK() bool {
	return r.Err == nil
}

// Fetcher runs a fetch function over a list of keys with a worker pool.
type Fetcher[K comparable, T any] struct {
	config Config
}

// New creates a fetcher.
func New[K comparable, T any](config Config) *Fetcher[K, T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	return &Fetcher[K, T]{config: config}
}

// FetchAll fetches every key and returns one Result per key, in key order.
// Cancelling ctx marks unfinished items with the context error.
func (f *Fetcher[K, T]) FetchAll(ctx context.Context, keys []K, fetch func(ctx context.Context, key K) (T, error)) []Result[K, T] {
	start := time.Now()
	results := make([]Result[K, T], len(keys))
	if len(keys) == 0 {
		return results
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		stopMu  sync.Mutex
		stopped bool
	)
	isStopped := func() bool {
		stopMu.Lock()
		defer stopMu.Unlock()
		return stopped
	}

	jobs := make(chan int)
	go func() {
		defer close(jobs)
		for i := range keys {
			select {
			case jobs <- i:
			case <-runCtx.Done():
				return
			}
		}
	}()

	workers := f.config.MaxConcurrency
	if workers > len(keys) {
		workers = len(keys)
	}

	// Every index is written by exactly one worker.
	started := make([]bool, len(keys))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range jobs {
				started[i] = true
				results[i] = Result[K, T]{Index: i, Key: keys[i]}

				if isStopped() {
					results[i].Err = ErrSkipped
					continue
				}
				if err := runCtx.Err(); err != nil {
					results[i].Err = err
					continue
				}

				itemCtx := runCtx
				var itemCancel context.CancelFunc = func() {}
				if f.config.Timeout > 0 {
					itemCtx, itemCancel = context.WithTimeout(runCtx, f.config.Timeout)
				}
				value, err := fetch(itemCtx, keys[i])
				itemCancel()

				if err != nil {
					results[i].Err = err
					log.Warn().
						Err(err).
						Int("worker_id", workerID).
						Int("index", i).
						Interface("key", keys[i]).
						Msg("Batch item failed")

					if f.config.StopOnError != nil && f.config.StopOnError(err) {
						stopMu.Lock()
						stopped = true
						stopMu.Unlock()
					}
					continue
				}
				results[i].Value = value
			}
		}(w)
	}
	wg.Wait()

	// Items the producer never handed out because ctx ended.
	failed := 0
	for i := range results {
		if !started[i] {
			results[i] = Result[K, T]{Index: i, Key: keys[i], Err: ctx.Err()}
		}
		if results[i].Err != nil {
			failed++
		}
	}

	log.Info().
		Int("items", len(keys)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results
}

// Values returns the successful values in key order.
func Values[K comparable, T any](results []Result[K, T]) []T {
	values := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			values = append(values, r.Value)
		}
	}
	return values
}
