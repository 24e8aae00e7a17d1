package mysql

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/repository"
	"github.com/LuJie0403/openclaw-expenses/internal/infra/persistence/model"
)

// loginSessionRepository implements the domain.LoginSessionRepository interface using GORM.
type loginSessionRepository struct {
	db *gorm.DB
}

// NewLoginSessionRepository is the constructor for loginSessionRepository.
func NewLoginSessionRepository(db *gorm.DB) repository.LoginSessionRepository {
	return &loginSessionRepository{db: db}
}

// Create inserts a new PENDING session row.
func (repo *loginSessionRepository) Create(ctx context.Context, session *entity.LoginSession) error {
	sessionM := toLoginSessionModel(session)
	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicateSession
		}

		return errors.Wrap(err, "failed to create login session")
	}

	session.CreatedAt = sessionM.CreatedAt
	session.UpdatedAt = sessionM.UpdatedAt

	return nil
}

// FindByID retrieves a session without locking it.
func (repo *loginSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.LoginSession, error) {
	return repo.findOne(ctx, repo.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate retrieves a session holding an exclusive row lock.
// MySQL keeps the SELECT ... FOR UPDATE lock until the surrounding
// transaction commits or rolls back, so concurrent exchanges serialize here.
func (repo *loginSessionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.LoginSession, error) {
	return repo.findOne(ctx, repo.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// FindByState retrieves the session addressed by a state token.
func (repo *loginSessionRepository) FindByState(ctx context.Context, state string) (*entity.LoginSession, error) {
	return repo.findOne(ctx, repo.db.WithContext(ctx).Where("state = ?", state))
}

// FindByStateNonce retrieves the session whose state starts with the nonce.
// Callers pass a validated hex nonce, so the LIKE pattern carries no
// wildcards from the outside.
func (repo *loginSessionRepository) FindByStateNonce(ctx context.Context, nonce string) (*entity.LoginSession, error) {
	return repo.findOne(ctx, repo.db.WithContext(ctx).Where("state LIKE ?", nonce+"%"))
}

// Save writes back a mutated session row.
func (repo *loginSessionRepository) Save(ctx context.Context, session *entity.LoginSession) error {
	sessionM := toLoginSessionModel(session)
	if err := repo.db.WithContext(ctx).Save(sessionM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicateSession
		}

		return errors.Wrap(err, "failed to save login session")
	}

	session.UpdatedAt = sessionM.UpdatedAt

	return nil
}

func (repo *loginSessionRepository) findOne(_ context.Context, tx *gorm.DB) (*entity.LoginSession, error) {
	sessionM := &model.LoginSessionModel{}
	if err := tx.First(sessionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to find login session")
	}

	return toLoginSessionDomain(sessionM), nil
}

func toLoginSessionDomain(m *model.LoginSessionModel) *entity.LoginSession {
	return &entity.LoginSession{
		ID:              m.ID,
		Channel:         m.Channel,
		State:           m.State,
		Status:          entity.SessionStatus(m.Status),
		UserID:          m.UserID,
		Ticket:          m.Ticket,
		TicketExpiresAt: m.TicketExpiresAt,
		ErrorCode:       m.ErrorCode,
		ErrorMessage:    m.ErrorMessage,
		ExpiresAt:       m.ExpiresAt,
		ConsumedAt:      m.ConsumedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toLoginSessionModel(s *entity.LoginSession) *model.LoginSessionModel {
	return &model.LoginSessionModel{
		ID:              s.ID,
		Channel:         s.Channel,
		State:           s.State,
		Status:          string(s.Status),
		UserID:          s.UserID,
		Ticket:          s.Ticket,
		TicketExpiresAt: s.TicketExpiresAt,
		ErrorCode:       s.ErrorCode,
		ErrorMessage:    s.ErrorMessage,
		ExpiresAt:       s.ExpiresAt,
		ConsumedAt:      s.ConsumedAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}
