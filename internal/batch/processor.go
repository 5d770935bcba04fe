// Package batch provides a bounded-concurrency batch processor with per-item
// failure isolation. Every stage that calls an external service per record goes
// through it, so one flaky call never aborts a whole run.
package batch

import (
	"fmt"
	"sync"
	"time"
)

// Options configures a batch run.
type Options struct {
	// BatchSize is the number of items processed concurrently per chunk.
	// Values below 1 are treated as 1 (fully sequential).
	BatchSize int
	// DelayBetweenBatches is the pause inserted after each chunk to respect
	// upstream rate limits. Zero disables pacing.
	DelayBetweenBatches time.Duration
}

// Result is the structured per-item outcome. Callers that only care about
// successes use Process; Results keeps skip/failure information observable.
type Result[O any] struct {
	Index int
	Value O
	Err   error
}

// Process maps fn over items in consecutive chunks of BatchSize, running each
// chunk concurrently and waiting for it to settle before starting the next.
// Failed items are silently omitted; the returned slice preserves the relative
// order of the inputs. Empty input returns an empty result with no chunk
// executed and no delay incurred.
func Process[I, O any](items []I, fn func(I) (O, error), opts Options) []O {
	results := Results(items, fn, opts)

	out := make([]O, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Value)
		}
	}
	return out
}

// Results is Process with the per-item outcomes exposed. The returned slice has
// one entry per input, in input order.
func Results[I, O any](items []I, fn func(I) (O, error), opts Options) []Result[O] {
	if len(items) == 0 {
		return nil
	}

	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	results := make([]Result[O], len(items))

	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = runOne(items[i], fn, i)
			}(i)
		}
		wg.Wait()

		if opts.DelayBetweenBatches > 0 {
			time.Sleep(opts.DelayBetweenBatches)
		}
	}

	return results
}

// runOne executes fn for a single item, converting a panic into a failed
// Result so a misbehaving transform cannot take down sibling items.
func runOne[I, O any](item I, fn func(I) (O, error), index int) (res Result[O]) {
	res.Index = index

	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic processing item %d: %v", index, p)
		}
	}()

	value, err := fn(item)
	res.Value = value
	res.Err = err
	return res
}
