// Package store persists embedded function chunks in Qdrant.
package store

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/randalmurphy/code-analyzer/internal/chunk"
)

const defaultGRPCPort = 6334

// Document is one chunk of one file, as stored in the vector index.
type Document struct {
	Repo     string      `json:"repo"`
	FilePath string      `json:"file_path"`
	Module   string      `json:"module"` // dotted Python module path
	IsTest   bool        `json:"is_test"`
	Chunk    chunk.Chunk `json:"chunk"`

	// Vector (populated after embedding)
	Vector []float32 `json:"-"`

	// Score (populated by search, not stored)
	Score float32 `json:"score,omitempty"`
}

// PointID derives a stable Qdrant point id from the chunk's location, so
// re-indexing a file overwrites its previous points.
func PointID(repo, filePath, chunkID string) string {
	key := repo + "/" + filePath + "#" + chunkID
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// ID returns the point id of d.
func (d *Document) ID() string {
	return PointID(d.Repo, d.FilePath, d.Chunk.ID)
}

// QdrantStore handles vector storage in Qdrant.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore connects to the gRPC endpoint named by addr. Both
// "host:port" and "http://host:port" forms are accepted.
func NewQdrantStore(addr string) (*QdrantStore, error) {
	host, port, err := splitAddr(addr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

func splitAddr(addr string) (string, int, error) {
	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil {
			return "", 0, fmt.Errorf("invalid qdrant url %q: %w", addr, err)
		}
		addr = u.Host
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port given.
		return addr, defaultGRPCPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}

// Close closes the Qdrant connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// EnsureCollection creates collection if it doesn't exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// DeleteCollection removes a collection.
func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	return s.client.DeleteCollection(ctx, name)
}

// Upsert inserts or updates documents.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(docs[i].ID()),
			Vectors: qdrant.NewVectors(docs[i].Vector...),
			Payload: qdrant.NewValueMap(payload(&docs[i])),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})

	return err
}

// DeleteFile removes every point previously stored for one file.
func (s *QdrantStore) DeleteFile(ctx context.Context, collection, repo, filePath string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(buildFilter(map[string]interface{}{
			"repo":      repo,
			"file_path": filePath,
		})),
	})
	return err
}

// Search performs vector similarity search.
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]interface{}) ([]Document, error) {
	var qdrantFilter *qdrant.Filter
	if filter != nil {
		qdrantFilter = buildFilter(filter)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Filter:         qdrantFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	docs := make([]Document, len(results))
	for i, r := range results {
		docs[i] = payloadToDocument(r.Payload)
		docs[i].Score = r.Score
	}

	return docs, nil
}

// SearchByFilter returns documents matching filter without vector similarity.
func (s *QdrantStore) SearchByFilter(ctx context.Context, collection string, filter map[string]interface{}, limit int) ([]Document, error) {
	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	docs := make([]Document, len(results))
	for i, r := range results {
		docs[i] = payloadToDocument(r.Payload)
	}

	return docs, nil
}

// CollectionInfo contains collection metadata.
type CollectionInfo struct {
	PointsCount int64
	VectorSize  int
	Status      string
}

// CollectionInfo reports the size and state of collection name.
func (s *QdrantStore) CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, err
	}

	return &CollectionInfo{
		PointsCount: int64(info.GetPointsCount()),
		VectorSize:  int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()),
		Status:      info.GetStatus().String(),
	}, nil
}

func payload(d *Document) map[string]interface{} {
	m := d.Chunk.Metadata
	return map[string]interface{}{
		"chunk_id":    d.Chunk.ID,
		"repo":        d.Repo,
		"file_path":   d.FilePath,
		"module":      d.Module,
		"is_test":     d.IsTest,
		"text":        d.Chunk.Text,
		"type":        m.Type,
		"name":        m.Name,
		"start_line":  m.StartLine,
		"end_line":    m.EndLine,
		"args":        strings.Join(m.Args, ","),
		"docstring":   m.Docstring,
		"is_partial":  m.IsPartial,
		"part":        m.Part,
		"total_parts": m.TotalParts,
		"has_secrets": m.HasSecrets,
	}
}

// buildFilter ANDs one exact-match condition per entry. string and bool
// values are supported; anything else is ignored.
func buildFilter(filter map[string]interface{}) *qdrant.Filter {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := &qdrant.Filter{}
	for _, k := range keys {
		switch v := filter[k].(type) {
		case string:
			f.Must = append(f.Must, qdrant.NewMatchKeyword(k, v))
		case bool:
			f.Must = append(f.Must, qdrant.NewMatchBool(k, v))
		}
	}
	return f
}

// fields reads typed values out of a point payload; missing keys read as
// zero values.
type fields map[string]*qdrant.Value

func (f fields) str(key string) string { return f[key].GetStringValue() }
func (f fields) num(key string) int    { return int(f[key].GetIntegerValue()) }
func (f fields) flag(key string) bool  { return f[key].GetBoolValue() }

func payloadToDocument(payload map[string]*qdrant.Value) Document {
	f := fields(payload)

	args := []string{}
	if joined := f.str("args"); joined != "" {
		args = strings.Split(joined, ",")
	}

	return Document{
		Repo:     f.str("repo"),
		FilePath: f.str("file_path"),
		Module:   f.str("module"),
		IsTest:   f.flag("is_test"),
		Chunk: chunk.Chunk{
			ID:   f.str("chunk_id"),
			Text: f.str("text"),
			Metadata: chunk.Metadata{
				Type:       f.str("type"),
				Name:       f.str("name"),
				StartLine:  f.num("start_line"),
				EndLine:    f.num("end_line"),
				Args:       args,
				Docstring:  f.str("docstring"),
				IsPartial:  f.flag("is_partial"),
				Part:       f.num("part"),
				TotalParts: f.num("total_parts"),
				HasSecrets: f.flag("has_secrets"),
			},
		},
	}
}
