package ann

import (
	"sync"
	"sync/atomic"
)

// BatchResult reports the outcome of one AddBatch call.
type BatchResult struct {
	TotalProcessed int
	SuccessCount   int
	FailureCount   int
	Errors         []error // Errors[i] is nil iff ids[i]/vectors[i] succeeded
}

// batchWorkers bounds the worker pool AddBatch spawns; each worker calls
// Add directly, relying on Add's own phase-1/2/3 locking for correctness
// rather than any batch-level shortcut.
const batchWorkers = 8

// AddBatch inserts each (ids[i], vectors[i]) pair, using a bounded worker
// pool. Each item runs through the ordinary Add path — there is no
// shortcut around the per-item lock discipline. Grounded on a worker-pool
// batch insert, corrected to index results by position instead of racing
// on a shared append.
func (idx *Index) AddBatch(ids []int32, vectors [][]float32) *BatchResult {
	result := &BatchResult{
		TotalProcessed: len(ids),
		Errors:         make([]error, len(ids)),
	}
	if len(ids) == 0 {
		return result
	}

	jobs := make(chan int, len(ids))
	for i := range ids {
		jobs <- i
	}
	close(jobs)

	var success, failure int64
	var wg sync.WaitGroup
	workers := batchWorkers
	if workers > len(ids) {
		workers = len(ids)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := idx.Add(ids[i], vectors[i]); err != nil {
					result.Errors[i] = err
					atomic.AddInt64(&failure, 1)
				} else {
					atomic.AddInt64(&success, 1)
				}
			}
		}()
	}
	wg.Wait()

	result.SuccessCount = int(success)
	result.FailureCount = int(failure)
	return result
}
