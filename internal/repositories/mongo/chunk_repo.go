package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/relevohq/relevo/internal/models"
)

type ChunkRepository interface {
	InsertChunk(ctx context.Context, c *models.DictationChunk) error
	UpdateSTT(ctx context.Context, sessionID string, chunkIndex int64, text string, confidence float64, status string) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.DictationChunk, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}

type chunkRepo struct {
	col *mongo.Collection
}

func NewChunkRepo(db *mongo.Database) ChunkRepository {
	return &chunkRepo{col: db.Collection("dictation_chunks")}
}

func (r *chunkRepo) InsertChunk(ctx context.Context, c *models.DictationChunk) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, c)
	return err
}

func (r *chunkRepo) UpdateSTT(ctx context.Context, sessionID string, chunkIndex int64, text string, confidence float64, status string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "chunk_index": chunkIndex},
		bson.M{"$set": bson.M{
			"text":       text,
			"confidence": confidence,
			"stt_status": status,
		}},
	)
	return err
}

func (r *chunkRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.DictationChunk, error) {
	if limit <= 0 {
		limit = 500
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "chunk_index", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.DictationChunk
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chunkRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
