// internal/auth/repository.go
package auth

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"bioboost/internal/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser stores the user and its profile together.
func (r *Repository) CreateUser(ctx context.Context, user *models.User, profile *models.Profile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return errors.Trace(err)
		}
		if count > 0 {
			return ErrEmailTaken
		}

		if err := tx.Create(user).Error; err != nil {
			return errors.Trace(err)
		}

		profile.ID = user.ID
		if err := tx.Create(profile).Error; err != nil {
			return errors.Trace(err)
		}
		return nil
	})
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Annotatef(err, "get user by email")
	}
	return &user, nil
}

func (r *Repository) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Annotatef(err, "get profile %s", id)
	}
	return &profile, nil
}

// UpdateProfile applies column updates and returns the stored profile.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Profile, error) {
	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, errors.Annotatef(res.Error, "update profile %s", id)
		}
		if res.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
	}
	return r.GetProfile(ctx, id)
}
