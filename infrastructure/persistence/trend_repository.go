package persistence

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"postpilot/domain/model"
)

// TrendRepository reads trend documents written by the news subsystem.
// Only the normalized shape is consumed; the pipeline attaches it to post
// metadata and nothing else.
type TrendRepository struct {
	collection *mongo.Collection
}

func NewTrendRepository(client *mongo.Client, dbName string) *TrendRepository {
	return &TrendRepository{collection: client.Database(dbName).Collection("trends")}
}

func (r *TrendRepository) FindRecent(ctx context.Context, limit int) ([]*model.Trend, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "publishedAt", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var trends []*model.Trend
	if err := cursor.All(ctx, &trends); err != nil {
		return nil, err
	}
	return trends, nil
}
