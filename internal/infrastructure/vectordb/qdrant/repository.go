// Package qdrant provides a VectorDB implementation using Qdrant.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/infrastructure/config"
)

const timeFormat = time.RFC3339

// Repository implements the VectorDB interface using Qdrant. It mirrors
// valid facts as embedded points for semantic recall.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
		conn:       conn,
	}, nil
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// Save stores a fact with its embedding.
func (r *Repository) Save(ctx context.Context, fact entities.Fact) error {
	return r.SaveBatch(ctx, []entities.Fact{fact})
}

// SaveBatch stores multiple facts.
func (r *Repository) SaveBatch(ctx context.Context, facts []entities.Fact) error {
	points := make([]*pb.PointStruct, 0, len(facts))

	for _, fact := range facts {
		pointID := fact.ID
		if pointID == "" {
			pointID = uuid.New().String()
		}

		tags := make([]*pb.Value, 0, len(fact.Tags))
		for _, tag := range fact.Tags {
			tags = append(tags, &pb.Value{Kind: &pb.Value_StringValue{StringValue: tag}})
		}

		point := &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{
					Uuid: pointID,
				},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{
						Data: fact.Embedding,
					},
				},
			},
			Payload: map[string]*pb.Value{
				"content":    {Kind: &pb.Value_StringValue{StringValue: fact.Content}},
				"category":   {Kind: &pb.Value_StringValue{StringValue: string(fact.Category)}},
				"importance": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(fact.Importance)}},
				"confidence": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(fact.Confidence)}},
				"is_valid":   {Kind: &pb.Value_BoolValue{BoolValue: fact.IsValid}},
				"tags":       {Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: tags}}},
				"created_at": {Kind: &pb.Value_StringValue{StringValue: fact.CreatedAt.Format(timeFormat)}},
				"updated_at": {Kind: &pb.Value_StringValue{StringValue: fact.UpdatedAt.Format(timeFormat)}},
			},
		}
		points = append(points, point)
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

// Search performs a semantic search and returns similar facts.
func (r *Repository) Search(ctx context.Context, embedding []float32, limit int) ([]entities.Fact, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		Filter:         validOnlyFilter(),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	return scoredPointsToFacts(resp.Result), nil
}

// SearchByCategory performs a semantic search filtered by fact category.
func (r *Repository) SearchByCategory(ctx context.Context, embedding []float32, category entities.FactCategory, limit int) ([]entities.Fact, error) {
	filter := validOnlyFilter()
	filter.Must = append(filter.Must, &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: "category",
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{
						Keyword: string(category),
					},
				},
			},
		},
	})

	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		Filter:         filter,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points by category: %w", err)
	}

	return scoredPointsToFacts(resp.Result), nil
}

// Delete removes a fact by its ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting point: %w", err)
	}

	return nil
}

// validOnlyFilter restricts results to facts still considered true.
func validOnlyFilter() *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key: "is_valid",
						Match: &pb.Match{
							MatchValue: &pb.Match_Boolean{Boolean: true},
						},
					},
				},
			},
		},
	}
}

// scoredPointsToFacts converts scored points to facts.
func scoredPointsToFacts(points []*pb.ScoredPoint) []entities.Fact {
	facts := make([]entities.Fact, 0, len(points))

	for _, point := range points {
		payload := point.Payload

		fact := entities.Fact{
			ID:         point.Id.GetUuid(),
			Content:    getStringValue(payload, "content"),
			Category:   entities.FactCategory(getStringValue(payload, "category")),
			Importance: int(getIntValue(payload, "importance")),
			Confidence: int(getIntValue(payload, "confidence")),
			IsValid:    getBoolValue(payload, "is_valid"),
			Tags:       getStringList(payload, "tags"),
		}
		if t, err := time.Parse(timeFormat, getStringValue(payload, "created_at")); err == nil {
			fact.CreatedAt = t
		}
		if t, err := time.Parse(timeFormat, getStringValue(payload, "updated_at")); err == nil {
			fact.UpdatedAt = t
		}

		facts = append(facts, fact)
	}

	return facts
}

func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getIntValue(payload map[string]*pb.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}

func getBoolValue(payload map[string]*pb.Value, key string) bool {
	if v, ok := payload[key]; ok {
		return v.GetBoolValue()
	}
	return false
}

func getStringList(payload map[string]*pb.Value, key string) []string {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.Values))
	for _, item := range list.Values {
		if s := item.GetStringValue(); s != "" {
			out = append(out, s)
		}
	}
	return out
}
