package mysql

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/repository"
	"github.com/LuJie0403/openclaw-expenses/internal/infra/persistence/model"
)

// identityBindingRepository implements the domain.IdentityBindingRepository interface using GORM.
type identityBindingRepository struct {
	db *gorm.DB
}

// NewIdentityBindingRepository is the constructor for identityBindingRepository.
func NewIdentityBindingRepository(db *gorm.DB) repository.IdentityBindingRepository {
	return &identityBindingRepository{db: db}
}

// FindByProviderUser retrieves the binding for (provider, providerUserID).
func (repo *identityBindingRepository) FindByProviderUser(ctx context.Context, provider, providerUserID string) (*entity.IdentityBinding, error) {
	bindingM := &model.IdentityBindingModel{}
	err := repo.db.WithContext(ctx).
		Where("provider = ? AND provider_user_id = ?", provider, providerUserID).
		First(bindingM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrBindingNotFound
		}

		return nil, errors.Wrap(err, "failed to find identity binding")
	}

	return toIdentityBindingDomain(bindingM), nil
}

// Create inserts a new binding row.
func (repo *identityBindingRepository) Create(ctx context.Context, binding *entity.IdentityBinding) error {
	bindingM := toIdentityBindingModel(binding)
	if err := repo.db.WithContext(ctx).Create(bindingM).Error; err != nil {
		return errors.Wrap(err, "failed to create identity binding")
	}

	binding.ID = bindingM.ID
	binding.CreatedAt = bindingM.CreatedAt
	binding.UpdatedAt = bindingM.UpdatedAt

	return nil
}

// Update refreshes the profile snapshot and last-login timestamp.
func (repo *identityBindingRepository) Update(ctx context.Context, binding *entity.IdentityBinding) error {
	bindingM := toIdentityBindingModel(binding)
	if err := repo.db.WithContext(ctx).Save(bindingM).Error; err != nil {
		return errors.Wrap(err, "failed to update identity binding")
	}

	binding.UpdatedAt = bindingM.UpdatedAt

	return nil
}

func toIdentityBindingDomain(m *model.IdentityBindingModel) *entity.IdentityBinding {
	return &entity.IdentityBinding{
		ID:             m.ID,
		UserID:         m.UserID,
		Provider:       m.Provider,
		ProviderUserID: m.ProviderUserID,
		UnionID:        m.UnionID,
		Nickname:       m.Nickname,
		AvatarURL:      m.AvatarURL,
		LastLoginAt:    m.LastLoginAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toIdentityBindingModel(b *entity.IdentityBinding) *model.IdentityBindingModel {
	return &model.IdentityBindingModel{
		ID:             b.ID,
		UserID:         b.UserID,
		Provider:       b.Provider,
		ProviderUserID: b.ProviderUserID,
		UnionID:        b.UnionID,
		Nickname:       b.Nickname,
		AvatarURL:      b.AvatarURL,
		LastLoginAt:    b.LastLoginAt,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}
