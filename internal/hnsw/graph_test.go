package hnsw

import (
	"math"
	"testing"

	"github.com/therealutkarshpriyadarshi/anncore/config"
	"github.com/therealutkarshpriyadarshi/anncore/internal/simd"
)

// testVectors holds rows outside the graph package, the way the
// coordinator's vector store would, and supplies exact-distance closures.
type testVectors struct {
	rows [][]float32
}

func (t *testVectors) add(v []float32) int32 {
	t.rows = append(t.rows, v)
	return int32(len(t.rows) - 1)
}

func (t *testVectors) dist(q []float32) DistanceFunc {
	return func(row int32) float32 { return simd.EuclidSq(q, t.rows[row]) }
}

func (t *testVectors) rowDist() RowDistanceFunc {
	return func(a, b int32) float32 { return simd.EuclidSq(t.rows[a], t.rows[b]) }
}

func syntheticVector(i, d int) []float32 {
	v := make([]float32, d)
	for j := 0; j < d; j++ {
		v[j] = float32(math.Sin(float64(i) + 0.1*float64(j)))
	}
	return v
}

func testConfig() config.HNSWConfig {
	return config.HNSWConfig{M: 8, EfConstruction: 64, MaxLevel: 8}
}

func buildGraph(t *testing.T, n, d int) (*Graph, *testVectors) {
	t.Helper()
	g := NewGraph(testConfig(), n, 42)
	tv := &testVectors{}
	for i := 0; i < n; i++ {
		v := syntheticVector(i, d)
		row := tv.add(v)
		g.Insert(row, tv.dist(v), tv.rowDist())
	}
	return g, tv
}

func TestInsertEstablishesEntryPoint(t *testing.T) {
	g, _ := buildGraph(t, 1, 8)
	if g.EntryPoint() != 0 {
		t.Fatalf("expected entry point 0, got %d", g.EntryPoint())
	}
}

func TestSelfLookupReturnsItself(t *testing.T) {
	g, tv := buildGraph(t, 200, 16)
	q := tv.rows[37]
	ef := DefaultEfParams.EffectiveEf(1, g.Size())
	results := g.Search(ef, tv.dist(q), tv.dist(q))
	if len(results) == 0 || results[0].row != 37 {
		t.Fatalf("expected row 37 nearest to itself, got %v", results[:min(3, len(results))])
	}
	if results[0].dist != 0 {
		t.Fatalf("expected zero self-distance, got %f", results[0].dist)
	}
}

func TestSearchReturnsResultsSortedAscending(t *testing.T) {
	g, tv := buildGraph(t, 300, 12)
	q := syntheticVector(1000, 12)
	ef := DefaultEfParams.EffectiveEf(10, g.Size())
	results := g.Search(ef, tv.dist(q), tv.dist(q))
	for i := 1; i < len(results); i++ {
		if results[i].dist < results[i-1].dist {
			t.Fatalf("results not sorted ascending at index %d: %v", i, results)
		}
	}
}

func TestNoSelfLoopOrDuplicateNeighbors(t *testing.T) {
	g, _ := buildGraph(t, 150, 8)
	for row, nd := range g.nodes {
		if nd == nil || nd.deleted {
			continue
		}
		for layer, adj := range nd.adjacency {
			seen := make(map[int32]bool)
			for _, nb := range adj {
				if int(nb) == row {
					t.Fatalf("row %d has a self-loop at layer %d", row, layer)
				}
				if seen[nb] {
					t.Fatalf("row %d has duplicate neighbor %d at layer %d", row, nb, layer)
				}
				seen[nb] = true
			}
		}
	}
}

func TestDegreeBoundRespected(t *testing.T) {
	g, _ := buildGraph(t, 400, 8)
	for _, nd := range g.nodes {
		if nd == nil || nd.deleted {
			continue
		}
		for layer, adj := range nd.adjacency {
			cap := g.degreeCap(layer)
			if len(adj) > cap {
				t.Fatalf("layer %d adjacency exceeds cap %d: got %d", layer, cap, len(adj))
			}
		}
	}
}

func TestBidirectionalAdjacency(t *testing.T) {
	g, _ := buildGraph(t, 150, 8)
	for row, nd := range g.nodes {
		if nd == nil || nd.deleted {
			continue
		}
		for layer, adj := range nd.adjacency {
			for _, nb := range adj {
				nbNode := g.nodeAt(nb)
				if nbNode == nil || nbNode.deleted {
					continue
				}
				if !nbNode.hasNeighbor(layer, int32(row)) {
					t.Fatalf("edge %d->%d at layer %d is not reciprocated", row, nb, layer)
				}
			}
		}
	}
}

func TestDeleteRemovesFromAdjacencyAndReassignsEntry(t *testing.T) {
	g, _ := buildGraph(t, 50, 8)
	entry := g.EntryPoint()
	g.Delete(entry)

	if g.EntryPoint() == entry {
		t.Fatalf("entry point should have been reassigned after deleting %d", entry)
	}
	for row, nd := range g.nodes {
		if nd == nil {
			continue
		}
		for layer, adj := range nd.adjacency {
			for _, nb := range adj {
				if nb == entry {
					t.Fatalf("row %d still references deleted row %d at layer %d", row, nb, layer)
				}
			}
		}
	}

	wantLevel := -1
	for row, nd := range g.nodes {
		if nd == nil || nd.deleted || int32(row) == entry {
			continue
		}
		if nd.level > wantLevel {
			wantLevel = nd.level
		}
	}
	newEntry := g.nodeAt(g.EntryPoint())
	if newEntry == nil || newEntry.level != wantLevel {
		t.Fatalf("new entry point level = %d, want max surviving level %d", newEntry.level, wantLevel)
	}
	for row, nd := range g.nodes {
		if nd == nil || nd.deleted || int32(row) == entry {
			continue
		}
		if nd.level > newEntry.level {
			t.Fatalf("row %d has level %d, exceeding entry point level %d", row, nd.level, newEntry.level)
		}
	}
}

func TestClusterRecoveryFindsNearestCluster(t *testing.T) {
	g := NewGraph(testConfig(), 0, 7)
	tv := &testVectors{}
	clusterCenters := [][]float32{
		{10, 0, 0, 0},
		{0, 10, 0, 0},
		{0, 0, 10, 0},
	}
	var wantRows [3]int32
	for c, center := range clusterCenters {
		for i := 0; i < 30; i++ {
			v := make([]float32, 4)
			copy(v, center)
			v[0] += float32(i) * 0.001
			row := tv.add(v)
			g.Insert(row, tv.dist(v), tv.rowDist())
			if i == 0 {
				wantRows[c] = row
			}
		}
	}

	query := []float32{0, 0, 10.01, 0}
	ef := DefaultEfParams.EffectiveEf(5, g.Size())
	results := g.Search(ef, tv.dist(query), tv.dist(query))
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	nearest := tv.rows[results[0].row]
	if simd.EuclidSq(nearest, clusterCenters[2]) > 1.0 {
		t.Fatalf("nearest result %v not close to cluster 2 center %v", nearest, clusterCenters[2])
	}
}
