package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/chamapay/chamapay-gobackend.git/internal/models"
)

type ChamaService struct {
	db *mongo.Database
}

func NewChamaService(db *mongo.Database) *ChamaService {
	return &ChamaService{db: db}
}

// Create inserts a new chama and makes the creator its admin member. The
// invite code is the short form other members join with.
func (s *ChamaService) Create(ctx context.Context, name, description string, createdBy primitive.ObjectID) (*models.Chama, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("chama name is required")
	}

	chama := &models.Chama{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		InviteCode:  strings.ToUpper(uuid.NewString()[:8]),
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
	}

	if _, err := s.db.Collection("chamas").InsertOne(ctx, chama); err != nil {
		return nil, err
	}

	member := &models.ChamaMember{
		ID:       primitive.NewObjectID(),
		ChamaID:  chama.ID,
		UserID:   createdBy,
		Role:     "admin",
		JoinedAt: time.Now(),
	}
	if _, err := s.db.Collection("chama_members").InsertOne(ctx, member); err != nil {
		return nil, err
	}

	return chama, nil
}

// Join adds the user to the chama identified by inviteCode.
func (s *ChamaService) Join(ctx context.Context, inviteCode string, userID primitive.ObjectID) (*models.Chama, error) {
	inviteCode = strings.ToUpper(strings.TrimSpace(inviteCode))
	if inviteCode == "" {
		return nil, errors.New("invite code is required")
	}

	var chama models.Chama
	if err := s.db.Collection("chamas").FindOne(ctx, bson.M{"invite_code": inviteCode}).Decode(&chama); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("chama not found for this invite code")
		}
		return nil, err
	}

	count, err := s.db.Collection("chama_members").CountDocuments(ctx, bson.M{
		"chama_id": chama.ID,
		"user_id":  userID,
	})
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("already a member of this chama")
	}

	member := &models.ChamaMember{
		ID:       primitive.NewObjectID(),
		ChamaID:  chama.ID,
		UserID:   userID,
		Role:     "member",
		JoinedAt: time.Now(),
	}
	if _, err := s.db.Collection("chama_members").InsertOne(ctx, member); err != nil {
		return nil, err
	}

	return &chama, nil
}

// ListForUser returns the chamas the user belongs to.
func (s *ChamaService) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Chama, error) {
	cur, err := s.db.Collection("chama_members").Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.ChamaMember
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}

	if len(memberships) == 0 {
		return []models.Chama{}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.ChamaID)
	}

	chamaCur, err := s.db.Collection("chamas").Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer chamaCur.Close(ctx)

	var chamas []models.Chama
	if err := chamaCur.All(ctx, &chamas); err != nil {
		return nil, err
	}

	return chamas, nil
}

// IsAdmin reports whether the user is an admin member of the chama.
func (s *ChamaService) IsAdmin(ctx context.Context, chamaID, userID primitive.ObjectID) (bool, error) {
	count, err := s.db.Collection("chama_members").CountDocuments(ctx, bson.M{
		"chama_id": chamaID,
		"user_id":  userID,
		"role":     "admin",
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
