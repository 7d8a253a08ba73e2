package ann

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/therealutkarshpriyadarshi/anncore/config"
	annerr "github.com/therealutkarshpriyadarshi/anncore/errors"
)

func syntheticVector(i, d int) []float32 {
	v := make([]float32, d)
	for j := 0; j < d; j++ {
		v[j] = float32(math.Sin(float64(i) + 0.1*float64(j)))
	}
	return v
}

// TestSelfLookup is scenario A: querying with a stored vector returns it
// as the nearest result with near-zero distance, with PQ trained on all
// 100 inserted vectors.
func TestSelfLookup(t *testing.T) {
	const d = 32
	cfg := config.NewConfig(d, 200).WithPQ(config.PQConfig{
		MSub: 8, BitsPerSub: 8, Iterations: 25, TrainingSampleTarget: 100, Seed: 7,
	})
	idx, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 100; i++ {
		if err := idx.Add(int32(i), syntheticVector(i, d)); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	if !idx.Stats().PQTrained {
		t.Fatal("expected PQ trained after 100 inserts reaches the training target")
	}

	results, err := idx.Search(syntheticVector(42, d), 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != 42 {
		t.Fatalf("expected id 42 nearest to itself, got %+v", results)
	}
	if results[0].Distance > 1e-3 {
		t.Fatalf("expected near-zero self distance, got %f", results[0].Distance)
	}
}

// TestClusterRecovery is scenario B: querying with a cluster center
// returns mostly that cluster's members among a large top-k.
func TestClusterRecovery(t *testing.T) {
	const d = 16
	r := rand.New(rand.NewSource(11))

	cfg := config.NewConfig(d, 1200)
	idx, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	centers := make([][]float32, 10)
	for c := range centers {
		center := make([]float32, d)
		for j := range center {
			center[j] = r.Float32()
		}
		centers[c] = center
	}

	id := int32(0)
	var targetCenter []float32
	targetCount := 0
	for c, center := range centers {
		for i := 0; i < 100; i++ {
			v := make([]float32, d)
			for j := range v {
				v[j] = center[j] + float32(r.NormFloat64())*0.05
			}
			if err := idx.Add(id, v); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if c == 3 {
				targetCount++
			}
			id++
		}
		if c == 3 {
			targetCenter = center
		}
	}

	results, err := idx.Search(targetCenter, 100)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 100 {
		t.Fatalf("expected 100 results, got %d", len(results))
	}

	inCluster := 0
	for _, res := range results {
		if res.ID >= 300 && res.ID < 400 {
			inCluster++
		}
	}
	if inCluster < 90 {
		t.Fatalf("expected >= 90 of top 100 from the queried cluster, got %d", inCluster)
	}
}

// TestCapacityEnforced is scenario C.
func TestCapacityEnforced(t *testing.T) {
	cfg := config.NewConfig(8, 10)
	idx, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := idx.Add(int32(i), syntheticVector(i, 8)); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	if err := idx.Add(10, syntheticVector(10, 8)); !errors.Is(err, annerr.ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
}

// TestDuplicateRejected is scenario D.
func TestDuplicateRejected(t *testing.T) {
	cfg := config.NewConfig(8, 10)
	idx, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := idx.Add(7, syntheticVector(7, 8)); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := idx.Add(7, syntheticVector(7, 8)); !errors.Is(err, annerr.ErrAlreadyPresent) {
		t.Fatalf("expected ErrAlreadyPresent, got %v", err)
	}
	if idx.Size() != 1 {
		t.Fatalf("expected size 1, got %d", idx.Size())
	}
}

// TestRemoveExcludesFromSearch is scenario E.
func TestRemoveExcludesFromSearch(t *testing.T) {
	const d = 16
	cfg := config.NewConfig(d, 200)
	idx, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 100; i++ {
		if err := idx.Add(int32(i), syntheticVector(i, d)); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	if err := idx.Remove(50); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if idx.Size() != 99 {
		t.Fatalf("expected size 99 after remove, got %d", idx.Size())
	}

	results, err := idx.Search(syntheticVector(50, d), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, res := range results {
		if res.ID == 50 {
			t.Fatal("removed id 50 appeared in search results")
		}
	}
}

// TestRemoveNotFound checks the ErrNotFound path.
func TestRemoveNotFound(t *testing.T) {
	cfg := config.NewConfig(8, 10)
	idx, _ := New(cfg)
	if err := idx.Remove(99); !errors.Is(err, annerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestConcurrentReaders is scenario F, scaled down for test runtime: many
// goroutines issue concurrent searches against a shared index built once.
func TestConcurrentReaders(t *testing.T) {
	const d = 64
	const n = 2000
	cfg := config.NewConfig(d, n)
	idx, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < n; i++ {
		if err := idx.Add(int32(i), syntheticVector(i, d)); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}

	const goroutines = 8
	const queriesPer = 200
	var wg sync.WaitGroup
	errCh := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for q := 0; q < queriesPer; q++ {
				query := syntheticVector(seed*1000+q, d)
				results, err := idx.Search(query, 10)
				if err != nil {
					errCh <- err
					return
				}
				if len(results) != 10 {
					errCh <- fmt.Errorf("expected 10 results, got %d", len(results))
					return
				}
				for i := 1; i < len(results); i++ {
					if results[i].Distance < results[i-1].Distance {
						errCh <- fmt.Errorf("results not sorted ascending at %d", i)
						return
					}
				}
			}
		}(g)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
}

// TestInsertRemoveRoundTripOnSize is invariant 8.
func TestInsertRemoveRoundTripOnSize(t *testing.T) {
	cfg := config.NewConfig(8, 10)
	idx, _ := New(cfg)
	before := idx.Size()
	if err := idx.Add(1, syntheticVector(1, 8)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Remove(1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if idx.Size() != before {
		t.Fatalf("expected size to return to %d, got %d", before, idx.Size())
	}
}

// TestSearchExactSortedNoDuplicates is invariant 9.
func TestSearchExactSortedNoDuplicates(t *testing.T) {
	const d = 12
	cfg := config.NewConfig(d, 200)
	idx, _ := New(cfg)
	for i := 0; i < 150; i++ {
		if err := idx.Add(int32(i), syntheticVector(i, d)); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}

	results, err := idx.SearchExact(syntheticVector(99, d), 20)
	if err != nil {
		t.Fatalf("SearchExact: %v", err)
	}
	seen := make(map[int32]bool)
	for i, res := range results {
		if seen[res.ID] {
			t.Fatalf("duplicate id %d in results", res.ID)
		}
		seen[res.ID] = true
		if i > 0 && res.Distance < results[i-1].Distance {
			t.Fatalf("results not sorted ascending at index %d", i)
		}
	}
	if results[0].ID != 99 {
		t.Fatalf("expected exact self-match first, got %+v", results[0])
	}
}

func TestAddBatch(t *testing.T) {
	const d = 8
	const n = 40
	cfg := config.NewConfig(d, n+1)
	idx, _ := New(cfg)

	ids := make([]int32, n)
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		ids[i] = int32(i)
		vectors[i] = syntheticVector(i, d)
	}

	result := idx.AddBatch(ids, vectors)
	if result.SuccessCount != n || result.FailureCount != 0 {
		t.Fatalf("expected %d successes, got success=%d failure=%d", n, result.SuccessCount, result.FailureCount)
	}
	if idx.Size() != n {
		t.Fatalf("expected size %d, got %d", n, idx.Size())
	}

	// Re-adding the same batch should fail every item with AlreadyPresent.
	result = idx.AddBatch(ids, vectors)
	if result.SuccessCount != 0 || result.FailureCount != n {
		t.Fatalf("expected all duplicates to fail, got success=%d failure=%d", result.SuccessCount, result.FailureCount)
	}
	for _, err := range result.Errors {
		if !errors.Is(err, annerr.ErrAlreadyPresent) {
			t.Fatalf("expected ErrAlreadyPresent, got %v", err)
		}
	}
}

func TestStatsReportsPQState(t *testing.T) {
	const d = 16
	cfg := config.NewConfig(d, 50).WithPQ(config.PQConfig{
		MSub: 4, BitsPerSub: 8, Iterations: 10, TrainingSampleTarget: 30, Seed: 3,
	})
	idx, _ := New(cfg)

	for i := 0; i < 20; i++ {
		if err := idx.Add(int32(i), syntheticVector(i, d)); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	stats := idx.Stats()
	if !stats.PQEnabled || stats.PQTrained {
		t.Fatalf("expected PQ enabled but not yet trained before reaching the target, got %+v", stats)
	}

	for i := 20; i < 30; i++ {
		if err := idx.Add(int32(i), syntheticVector(i, d)); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	stats = idx.Stats()
	if !stats.PQTrained {
		t.Fatal("expected PQ trained after reaching the training target")
	}
	if stats.CompressionRatio <= 1 {
		t.Fatalf("expected compression ratio > 1, got %f", stats.CompressionRatio)
	}
	if stats.Size != 30 {
		t.Fatalf("expected size 30, got %d", stats.Size)
	}
}

func TestInvalidDimensionRejected(t *testing.T) {
	cfg := config.NewConfig(8, 10)
	idx, _ := New(cfg)
	if err := idx.Add(1, make([]float32, 4)); !errors.Is(err, annerr.ErrInvalidDimension) {
		t.Fatalf("expected ErrInvalidDimension, got %v", err)
	}
	if _, err := idx.Search(make([]float32, 4), 1); !errors.Is(err, annerr.ErrInvalidDimension) {
		t.Fatalf("expected ErrInvalidDimension, got %v", err)
	}
}

func TestSearchOnEmptyIndexReturnsNoResultsNoError(t *testing.T) {
	cfg := config.NewConfig(8, 10)
	idx, _ := New(cfg)
	results, err := idx.Search(syntheticVector(0, 8), 5)
	if err != nil {
		t.Fatalf("expected no error on empty index, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected zero results, got %d", len(results))
	}
}
