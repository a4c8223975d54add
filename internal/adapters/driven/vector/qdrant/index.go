// Package qdrant implements the vector index on a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Defaults.
const (
	DefaultAddr       = "localhost:6334"
	DefaultCollection = "dossier_chunks"
)

// pointNamespace derives point ids from chunk ids.
var pointNamespace = uuid.MustParse("6f1c9a52-3d0e-4b8e-9c55-1e2a7d4b0f11")

// Payload keys.
const (
	keyChunkID    = "chunk_id"
	keyDocumentID = "document_id"
	keyPageNum    = "page_num"
	keyOffset     = "offset"
	keyText       = "text"
	keyTitle      = "title"
	keyFilename   = "filename"
	keySource     = "source"
	keyURL        = "url"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Config holds Qdrant connection settings.
type Config struct {
	Addr       string
	Collection string
}

// Index stores chunks as Qdrant points with cosine distance.
type Index struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	collection  string
}

// New dials Qdrant. The connection is lazy; the first call surfaces
// reachability errors.
func New(cfg Config) (*Index, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s: %w", cfg.Addr, err)
	}
	idx := newIndex(qdrantclient.NewCollectionsClient(conn), qdrantclient.NewPointsClient(conn), cfg.Collection)
	idx.conn = conn
	return idx, nil
}

func newIndex(collections qdrantclient.CollectionsClient, points qdrantclient.PointsClient, collection string) *Index {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Index{
		collections: collections,
		points:      points,
		collection:  collection,
	}
}

// EnsureCollection creates the collection when it does not exist.
func (x *Index) EnsureCollection(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: vector dimensions must be positive", domain.ErrInvalidInput)
	}

	resp, err := x.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return unavailable("list collections", err)
	}
	for _, c := range resp.GetCollections() {
		if c.GetName() == x.collection {
			return nil
		}
	}

	logger.Info("creating qdrant collection %s (%d dims)", x.collection, dimensions)
	_, err = x.collections.Create(ctx, &qdrantclient.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     uint64(dimensions),
					Distance: qdrantclient.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return unavailable("create collection", err)
	}
	return nil
}

// Upsert writes chunks keyed by a UUID derived from the chunk id, so
// re-ingesting a chunk replaces its point.
func (x *Index) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrantclient.PointStruct, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if len(c.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidInput, c.ID)
		}
		points = append(points, &qdrantclient.PointStruct{
			Id: &qdrantclient.PointId{
				PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: PointID(c.ID)},
			},
			Vectors: &qdrantclient.Vectors{
				VectorsOptions: &qdrantclient.Vectors_Vector{
					Vector: &qdrantclient.Vector{Data: c.Embedding},
				},
			},
			Payload: payload(c),
		})
	}

	wait := true
	if _, err := x.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return unavailable("upsert points", err)
	}
	return nil
}

// DeleteDocument removes every point whose payload names documentID.
func (x *Index) DeleteDocument(ctx context.Context, documentID int64) error {
	wait := true
	_, err := x.points.Delete(ctx, &qdrantclient.DeletePoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points: &qdrantclient.PointsSelector{
			PointsSelectorOneOf: &qdrantclient.PointsSelector_Filter{
				Filter: documentFilter(documentID),
			},
		},
	})
	if err != nil {
		return unavailable("delete points", err)
	}
	return nil
}

// Search returns the k nearest chunks. Qdrant reports cosine similarity,
// which is converted to distance.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]domain.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	resp, err := x.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: x.collection,
		Vector:         query,
		Limit:          uint64(k),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, unavailable("search points", err)
	}

	hits := make([]domain.VectorHit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		hits = append(hits, domain.VectorHit{
			Chunk:    chunkFromPayload(p.GetPayload()),
			Distance: 1 - float64(p.GetScore()),
		})
	}
	return hits, nil
}

// Close closes the gRPC connection.
func (x *Index) Close() error {
	if x.conn == nil {
		return nil
	}
	return x.conn.Close()
}

// PointID returns the Qdrant point id of a chunk.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func documentFilter(documentID int64) *qdrantclient.Filter {
	return &qdrantclient.Filter{
		Must: []*qdrantclient.Condition{{
			ConditionOneOf: &qdrantclient.Condition_Field{
				Field: &qdrantclient.FieldCondition{
					Key: keyDocumentID,
					Match: &qdrantclient.Match{
						MatchValue: &qdrantclient.Match_Integer{Integer: documentID},
					},
				},
			},
		}},
	}
}

func payload(c *domain.Chunk) map[string]*qdrantclient.Value {
	return map[string]*qdrantclient.Value{
		keyChunkID:    stringValue(c.ID),
		keyDocumentID: intValue(c.DocumentID),
		keyPageNum:    intValue(int64(c.PageNum)),
		keyOffset:     intValue(int64(c.Offset)),
		keyText:       stringValue(c.Text),
		keyTitle:      stringValue(c.Title),
		keyFilename:   stringValue(c.Filename),
		keySource:     stringValue(c.Source),
		keyURL:        stringValue(c.URL),
	}
}

func chunkFromPayload(p map[string]*qdrantclient.Value) domain.Chunk {
	return domain.Chunk{
		ID:         p[keyChunkID].GetStringValue(),
		DocumentID: p[keyDocumentID].GetIntegerValue(),
		PageNum:    int(p[keyPageNum].GetIntegerValue()),
		Offset:     int(p[keyOffset].GetIntegerValue()),
		Text:       p[keyText].GetStringValue(),
		Title:      p[keyTitle].GetStringValue(),
		Filename:   p[keyFilename].GetStringValue(),
		Source:     p[keySource].GetStringValue(),
		URL:        p[keyURL].GetStringValue(),
	}
}

func stringValue(s string) *qdrantclient.Value {
	return &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: s}}
}

func intValue(n int64) *qdrantclient.Value {
	return &qdrantclient.Value{Kind: &qdrantclient.Value_IntegerValue{IntegerValue: n}}
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: qdrant %s: %v", domain.ErrVectorIndexUnavailable, op, err)
}
