package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore implements VectorStore using the coder/hnsw pure Go HNSW graphs,
// one graph per tenant partition.
type HNSWStore struct {
	mu         sync.RWMutex
	partitions map[string]*hnswPartition
	config     VectorStoreConfig
	closed     bool
}

// hnswPartition is one tenant's graph plus its string<->uint64 ID mapping.
type hnswPartition struct {
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64 // string ID -> internal key
	keyMap  map[uint64]string // internal key -> string ID
	nextKey uint64
}

// hnswPartitionMeta stores one partition's ID mappings for persistence.
type hnswPartitionMeta struct {
	IDMap   map[string]uint64
	NextKey uint64
}

// hnswStoreMeta is the store-level persistence header.
type hnswStoreMeta struct {
	Config  VectorStoreConfig
	Tenants []string
}

var _ VectorStore = (*HNSWStore)(nil)

// NewHNSWStore creates a new HNSW-based vector store.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.M == 0 {
		cfg.M = 16 // coder/hnsw default recommendation
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20 // coder/hnsw default
	}

	return &HNSWStore{
		partitions: make(map[string]*hnswPartition),
		config:     cfg,
	}, nil
}

// partition returns the tenant's graph, creating it when create is set.
// Callers hold the write lock when create is true.
func (s *HNSWStore) partition(tenant string, create bool) *hnswPartition {
	if p, ok := s.partitions[tenant]; ok {
		return p
	}
	if !create {
		return nil
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = s.config.M
	graph.EfSearch = s.config.EfSearch
	graph.Ml = 0.25 // level generation factor, ~1/ln(M)

	p := &hnswPartition{
		graph:  graph,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
	s.partitions[tenant] = p
	return p
}

// Add inserts vectors into the tenant partition.
// Existing IDs are replaced via lazy deletion.
func (s *HNSWStore) Add(_ context.Context, tenant string, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	// The first insert fixes the dimension when none was configured.
	if s.config.Dimensions == 0 && len(vectors[0]) > 0 {
		s.config.Dimensions = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	p := s.partition(tenant, true)
	for i, id := range ids {
		// Replacing an ID orphans the old graph node instead of deleting it:
		// coder/hnsw breaks when the last node is removed.
		if existingKey, exists := p.idMap[id]; exists {
			delete(p.keyMap, existingKey)
			delete(p.idMap, id)
		}

		key := p.nextKey
		p.nextKey++

		// Normalize for cosine distance.
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		p.graph.Add(hnsw.MakeNode(key, vec))
		p.idMap[id] = key
		p.keyMap[key] = id
	}

	return nil
}

// Search finds the k nearest neighbors within the tenant partition.
// An unknown tenant yields no results, not an error.
func (s *HNSWStore) Search(_ context.Context, tenant string, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if s.config.Dimensions > 0 && len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}

	p := s.partition(tenant, false)
	if p == nil || p.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	normalizedQuery := make([]float32, len(query))
	copy(normalizedQuery, query)
	normalizeVectorInPlace(normalizedQuery)

	// Over-fetch to compensate for lazily deleted orphans filtered below.
	orphans := p.graph.Len() - len(p.keyMap)
	nodes := p.graph.Search(normalizedQuery, k+orphans)

	results := make([]*VectorResult, 0, k)
	for _, node := range nodes {
		id, exists := p.keyMap[node.Key]
		if !exists {
			continue
		}

		distance := p.graph.Distance(normalizedQuery, node.Value)
		results = append(results, &VectorResult{
			ID:       id,
			Distance: distance,
			Score:    1.0 - distance/2.0,
		})
		if len(results) >= k {
			break
		}
	}

	return results, nil
}

// Delete removes vectors by ID from the tenant partition. Lazy: nodes stay
// in the graph but drop out of the ID mappings and all results.
func (s *HNSWStore) Delete(_ context.Context, tenant string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	p := s.partition(tenant, false)
	if p == nil {
		return nil
	}

	for _, id := range ids {
		if key, exists := p.idMap[id]; exists {
			delete(p.keyMap, key)
			delete(p.idMap, id)
		}
	}

	return nil
}

// Count returns the number of vectors in the tenant partition.
func (s *HNSWStore) Count(tenant string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	p := s.partition(tenant, false)
	if p == nil {
		return 0
	}
	return len(p.idMap)
}

// Save persists all partitions under dir: a store-level meta file plus one
// graph and mapping file per tenant. Writes are atomic (temp file + rename).
func (s *HNSWStore) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	meta := hnswStoreMeta{Config: s.config}
	for tenant := range s.partitions {
		meta.Tenants = append(meta.Tenants, tenant)
	}
	if err := writeGobAtomic(filepath.Join(dir, "vectors.meta"), meta); err != nil {
		return fmt.Errorf("failed to save store metadata: %w", err)
	}

	for tenant, p := range s.partitions {
		base := filepath.Join(dir, tenantFileName(tenant))

		if err := writeGraphAtomic(base+".hnsw", p.graph); err != nil {
			return fmt.Errorf("failed to save partition %s: %w", tenant, err)
		}

		partMeta := hnswPartitionMeta{IDMap: p.idMap, NextKey: p.nextKey}
		if err := writeGobAtomic(base+".ids", partMeta); err != nil {
			return fmt.Errorf("failed to save partition %s mappings: %w", tenant, err)
		}
	}

	return nil
}

// Load restores all partitions from dir. A missing meta file is a fresh
// start, not an error.
func (s *HNSWStore) Load(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	metaPath := filepath.Join(dir, "vectors.meta")
	file, err := os.Open(metaPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open store metadata: %w", err)
	}

	var meta hnswStoreMeta
	decodeErr := gob.NewDecoder(file).Decode(&meta)
	_ = file.Close()
	if decodeErr != nil {
		return fmt.Errorf("failed to decode store metadata: %w", decodeErr)
	}

	s.config = meta.Config
	s.partitions = make(map[string]*hnswPartition, len(meta.Tenants))

	for _, tenant := range meta.Tenants {
		base := filepath.Join(dir, tenantFileName(tenant))

		p := s.partition(tenant, true)
		if err := readGraph(base+".hnsw", p.graph); err != nil {
			return fmt.Errorf("failed to load partition %s: %w", tenant, err)
		}

		var partMeta hnswPartitionMeta
		if err := readGob(base+".ids", &partMeta); err != nil {
			return fmt.Errorf("failed to load partition %s mappings: %w", tenant, err)
		}
		p.idMap = partMeta.IDMap
		p.nextKey = partMeta.NextKey
		p.keyMap = make(map[uint64]string, len(p.idMap))
		for id, key := range p.idMap {
			p.keyMap[key] = id
		}
	}

	return nil
}

// Close releases resources.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.partitions = nil
	return nil
}

// tenantFileName maps an opaque tenant key to a filesystem-safe name.
func tenantFileName(tenant string) string {
	return "tenant-" + hex.EncodeToString([]byte(tenant))
}

// writeGraphAtomic exports the graph to path via a temp file.
func writeGraphAtomic(path string, graph *hnsw.Graph[uint64]) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if err := graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// readGraph imports the graph from path.
// bufio is required because Import needs an io.ByteReader.
func readGraph(path string, graph *hnsw.Graph[uint64]) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	return graph.Import(bufio.NewReader(file))
}

// writeGobAtomic gob-encodes v to path via a temp file.
func writeGobAtomic(path string, v any) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(file).Encode(v); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// readGob gob-decodes path into v.
func readGob(path string, v any) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	return gob.NewDecoder(file).Decode(v)
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}
