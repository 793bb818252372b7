package repo

import (
	"context"

	"github.com/tazhibayda/expired-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// fieldMatchStages selects topic custom fields by name and creation time,
// joining topics when a category filter is present.
func fieldMatchStages(q domain.FieldCountQuery) mongo.Pipeline {
	p := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"name":       q.Name,
			"created_at": bson.M{"$gte": q.From, "$lte": q.To},
		}}},
	}
	if q.CategoryID != nil {
		p = append(p,
			bson.D{{Key: "$lookup", Value: bson.M{
				"from":         "topics",
				"localField":   "owner_id",
				"foreignField": "_id",
				"as":           "topic",
			}}},
			bson.D{{Key: "$match", Value: bson.M{"topic.category_id": *q.CategoryID}}},
		)
	}
	return p
}

func (s *Store) CountTopicFieldByDay(ctx context.Context, q domain.FieldCountQuery) ([]domain.DayCount, error) {
	p := append(fieldMatchStages(q),
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$created_at"}},
			"count": bson.M{"$sum": 1},
		}}},
		bson.D{{Key: "$sort", Value: bson.M{"_id": 1}}},
	)
	cur, err := s.colTopicFields.Aggregate(ctx, p)
	if err != nil {
		return nil, err
	}
	out, err := decodeAll[domain.DayCount](ctx, cur)
	if out == nil {
		out = []domain.DayCount{}
	}
	return out, err
}

func (s *Store) CountTopicField(ctx context.Context, q domain.FieldCountQuery) (int64, error) {
	p := append(fieldMatchStages(q), bson.D{{Key: "$count", Value: "n"}})
	cur, err := s.colTopicFields.Aggregate(ctx, p)
	if err != nil {
		return 0, err
	}
	rows, err := decodeAll[struct {
		N int64 `bson:"n"`
	}](ctx, cur)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].N, nil
}
