package member

import (
	"context"
	"errors"
	"time"

	"reunion-member-svc/src/clients"
	"reunion-member-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, models.ErrMemberNotFound
	}
	return oid, nil
}

type Repository interface {
	GetByEmail(ctx context.Context, email string) (*Member, error)
	RecordLogin(ctx context.Context, memberID string) error
	RecordFailedLogin(ctx context.Context, memberID string) error
}

type memberRepository struct {
	collection *mongo.Collection
}

func NewMemberRepository(mongoClient *clients.MongoDB, collectionName string) Repository {
	collection := mongoClient.Database.Collection(collectionName)
	return &memberRepository{collection: collection}
}

func (r *memberRepository) GetByEmail(ctx context.Context, email string) (*Member, error) {
	var member Member
	filter := bson.M{
		"email":      email,
		"deleted_at": bson.M{"$exists": false},
	}

	err := r.collection.FindOne(ctx, filter).Decode(&member)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrMemberNotFound
		}
		logrus.WithError(err).WithField("email", email).Error("Failed to get member")
		return nil, models.ErrDatabaseQuery
	}

	return &member, nil
}

func (r *memberRepository) RecordLogin(ctx context.Context, memberID string) error {
	id, err := objectID(memberID)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"last_login_at":         time.Now(),
			"failed_login_attempts": 0,
			"updated_at":            time.Now(),
		},
	}

	if _, err := r.collection.UpdateByID(ctx, id, update); err != nil {
		logrus.WithError(err).WithField("member_id", memberID).Error("Failed to record login")
		return models.ErrDatabaseUpdate
	}
	return nil
}

func (r *memberRepository) RecordFailedLogin(ctx context.Context, memberID string) error {
	id, err := objectID(memberID)
	if err != nil {
		return err
	}

	update := bson.M{
		"$inc": bson.M{"failed_login_attempts": 1},
		"$set": bson.M{
			"last_failed_login_at": time.Now(),
			"updated_at":           time.Now(),
		},
	}

	if _, err := r.collection.UpdateByID(ctx, id, update); err != nil {
		logrus.WithError(err).WithField("member_id", memberID).Error("Failed to record failed login")
		return models.ErrDatabaseUpdate
	}
	return nil
}
