package mongo

import (
	"context"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type avatarDoc struct {
	PublicID string `bson:"public_id"`
	URL      string `bson:"url"`
}

type userDoc struct {
	ID                  string     `bson:"_id"`
	Name                string     `bson:"name"`
	Email               string     `bson:"email"`
	PasswordHash        string     `bson:"password_hash"`
	Role                string     `bson:"role"`
	Avatar              avatarDoc  `bson:"avatar"`
	ResetTokenHash      string     `bson:"reset_token_hash,omitempty"`
	ResetTokenExpiresAt *time.Time `bson:"reset_token_expires_at,omitempty"`
	CreatedAt           time.Time  `bson:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at"`
}

func toDoc(u domain.User) userDoc {
	d := userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        domain.NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Avatar:       avatarDoc{PublicID: u.Avatar.PublicID, URL: u.Avatar.URL},
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
	if u.ResetTokenHash != "" && u.ResetTokenExpiresAt != nil {
		exp := u.ResetTokenExpiresAt.UTC()
		d.ResetTokenHash, d.ResetTokenExpiresAt = u.ResetTokenHash, &exp
	}
	return d
}

func (d userDoc) toDomain() domain.User {
	u := domain.User{
		ID:             d.ID,
		Name:           d.Name,
		Email:          d.Email,
		PasswordHash:   d.PasswordHash,
		Role:           domain.Role(d.Role),
		Avatar:         domain.Avatar{PublicID: d.Avatar.PublicID, URL: d.Avatar.URL},
		ResetTokenHash: d.ResetTokenHash,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	if d.ResetTokenExpiresAt != nil {
		exp := d.ResetTokenExpiresAt.UTC()
		u.ResetTokenExpiresAt = &exp
	}
	return u
}

type usersRepo struct {
	c *mongo.Collection
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}

	_, err := r.c.InsertOne(ctx, toDoc(u))
	return mapDuplicate(err)
}

func (r *usersRepo) findOne(ctx context.Context, filter bson.M) (domain.User, error) {
	var d userDoc
	if err := r.c.FindOne(ctx, filter).Decode(&d); err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return d.toDomain(), nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *usersRepo) GetUserByResetTokenHash(ctx context.Context, hash string, now time.Time) (domain.User, error) {
	return r.findOne(ctx, bson.M{
		"reset_token_hash":       hash,
		"reset_token_expires_at": bson.M{"$gt": now.UTC()},
	})
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	users := []domain.User{}
	for cur.Next(ctx) {
		var d userDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		users = append(users, d.toDomain())
	}
	return users, cur.Err()
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id string, p store.ProfileUpdate) (domain.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Email != nil {
		set["email"] = domain.NormalizeEmail(*p.Email)
	}
	if p.Role != nil {
		set["role"] = string(*p.Role)
	}
	if p.Avatar != nil {
		set["avatar"] = avatarDoc{PublicID: p.Avatar.PublicID, URL: p.Avatar.URL}
	}

	var d userDoc
	err := r.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		return domain.User{}, mapDuplicate(mapNotFound(err))
	}
	return d.toDomain(), nil
}

// updateOne applies update to the single document matching filter and maps
// "nothing matched" to store.ErrNotFound.
func (r *usersRepo) updateOne(ctx context.Context, filter, update bson.M) error {
	res, err := r.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC()},
	})
}

func (r *usersRepo) SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"reset_token_hash":       hash,
			"reset_token_expires_at": expiresAt.UTC(),
			"updated_at":             time.Now().UTC(),
		},
	})
}

func (r *usersRepo) ClearResetToken(ctx context.Context, id string) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"updated_at": time.Now().UTC()},
		"$unset": bson.M{"reset_token_hash": "", "reset_token_expires_at": ""},
	})
}

func (r *usersRepo) ConsumeResetToken(ctx context.Context, id, tokenHash, passwordHash string, now time.Time) error {
	return r.updateOne(ctx,
		bson.M{
			"_id":                    id,
			"reset_token_hash":       tokenHash,
			"reset_token_expires_at": bson.M{"$gt": now.UTC()},
		},
		bson.M{
			"$set":   bson.M{"password_hash": passwordHash, "updated_at": now.UTC()},
			"$unset": bson.M{"reset_token_hash": "", "reset_token_expires_at": ""},
		},
	)
}

func (r *usersRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.c.UpdateMany(ctx,
		bson.M{"reset_token_expires_at": bson.M{"$lte": now.UTC()}},
		bson.M{"$unset": bson.M{"reset_token_hash": "", "reset_token_expires_at": ""}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
