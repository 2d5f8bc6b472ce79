package sqlstore

import (
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SQLStorage реализует интерфейс Storage поверх GORM (PostgreSQL или SQLite)
type SQLStorage struct {
	db  *gorm.DB
	log *zap.Logger
}

// New создает новый экземпляр storage
func New(db *gorm.DB, log *zap.Logger) *SQLStorage {
	return &SQLStorage{
		db:  db,
		log: log,
	}
}

// Ping проверяет доступность базы данных
func (s *SQLStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// --- User Methods ---

// CreateUser создает нового пользователя
func (s *SQLStorage) CreateUser(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicate(err) {
			return repository.ErrUserExists
		}
		s.log.Error("failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("created new user", zap.Int64("user_id", user.ID))
	return nil
}

// GetUserByID получает пользователя по ID
func (s *SQLStorage) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User

	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		s.log.Error("failed to get user by id", zap.Int64("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetUserByEmail получает пользователя по email
func (s *SQLStorage) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User

	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		s.log.Error("failed to get user by email", zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdateLastLogin обновляет время последнего входа
func (s *SQLStorage) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("last_login_at", at)
	if result.Error != nil {
		s.log.Error("failed to update last login", zap.Int64("user_id", id), zap.Error(result.Error))
		return fmt.Errorf("failed to update last login: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

// --- Link Methods ---

// CreateLink сохраняет ссылку и увеличивает счетчик пользователя в одной транзакции
func (s *SQLStorage) CreateLink(ctx context.Context, link *domain.Link, quota int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Условное увеличение: счетчик не может превысить квоту даже при параллельных запросах
		result := tx.Model(&domain.User{}).
			Where("id = ? AND urls_created < ?", link.UserID, quota).
			Update("urls_created", gorm.Expr("urls_created + 1"))
		if result.Error != nil {
			return fmt.Errorf("failed to reserve quota: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&domain.User{}).Where("id = ?", link.UserID).Count(&n).Error; err != nil {
				return fmt.Errorf("failed to check user: %w", err)
			}
			if n == 0 {
				return repository.ErrUserNotFound
			}
			return repository.ErrQuotaExceeded
		}

		if err := tx.Create(link).Error; err != nil {
			if isDuplicate(err) {
				return repository.ErrCodeExists
			}
			return fmt.Errorf("failed to save link: %w", err)
		}
		return nil
	})
	if err != nil {
		if isSentinel(err) {
			return err
		}
		s.log.Error("failed to create link", zap.String("short_code", link.ShortCode), zap.Int64("user_id", link.UserID), zap.Error(err))
		return err
	}

	s.log.Info("saved new link", zap.String("short_code", link.ShortCode), zap.Int64("user_id", link.UserID))
	return nil
}

// CodeExists проверяет, занят ли код (среди всех записей, включая неактивные)
func (s *SQLStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Link{}).Where("short_code = ?", code).Count(&count).Error
	if err != nil {
		s.log.Error("failed to check short code existence", zap.String("short_code", code), zap.Error(err))
		return false, fmt.Errorf("failed to check short code: %w", err)
	}

	return count > 0, nil
}

// GetActiveLinkByCode получает активную ссылку по короткому коду
func (s *SQLStorage) GetActiveLinkByCode(ctx context.Context, code string) (*domain.Link, error) {
	var link domain.Link

	err := s.db.WithContext(ctx).Where("short_code = ? AND is_active = ?", code, true).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrLinkNotFound
	}
	if err != nil {
		s.log.Error("failed to get link", zap.String("short_code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return &link, nil
}

// GetUserLink получает ссылку владельца по ID
func (s *SQLStorage) GetUserLink(ctx context.Context, id uuid.UUID, userID int64) (*domain.Link, error) {
	return s.findUserLink(ctx, "id = ? AND user_id = ?", id, userID)
}

// GetUserLinkByCode получает ссылку владельца по короткому коду
func (s *SQLStorage) GetUserLinkByCode(ctx context.Context, code string, userID int64) (*domain.Link, error) {
	return s.findUserLink(ctx, "short_code = ? AND user_id = ?", code, userID)
}

func (s *SQLStorage) findUserLink(ctx context.Context, query string, args ...interface{}) (*domain.Link, error) {
	var link domain.Link

	err := s.db.WithContext(ctx).Where(query, args...).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrLinkNotFound
	}
	if err != nil {
		s.log.Error("failed to get user link", zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return &link, nil
}

// ListUserLinks получает ссылки пользователя, новые первыми
func (s *SQLStorage) ListUserLinks(ctx context.Context, userID int64, offset, limit int) ([]*domain.Link, error) {
	var links []*domain.Link

	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("short_code ASC")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&links).Error; err != nil {
		s.log.Error("failed to list user links", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	return links, nil
}

// CountUserLinks считает ссылки пользователя
func (s *SQLStorage) CountUserLinks(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Link{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		s.log.Error("failed to count user links", zap.Int64("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

// DeleteLink удаляет ссылку вместе с кликами и возвращает слот квоты
func (s *SQLStorage) DeleteLink(ctx context.Context, id uuid.UUID, userID int64) (*domain.Link, error) {
	var link domain.Link

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrLinkNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get link: %w", err)
		}

		if err := tx.Where("link_id = ?", link.ID).Delete(&domain.Click{}).Error; err != nil {
			return fmt.Errorf("failed to delete clicks: %w", err)
		}

		result := tx.Where("id = ?", link.ID).Delete(&domain.Link{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete link: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return repository.ErrLinkNotFound
		}

		err = tx.Model(&domain.User{}).
			Where("id = ? AND urls_created > 0", userID).
			Update("urls_created", gorm.Expr("urls_created - 1")).Error
		if err != nil {
			return fmt.Errorf("failed to release quota: %w", err)
		}
		return nil
	})
	if err != nil {
		if !isSentinel(err) {
			s.log.Error("failed to delete link", zap.String("link_id", id.String()), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("deleted link", zap.String("short_code", link.ShortCode), zap.Int64("user_id", userID))
	return &link, nil
}

// DeactivateLink помечает ссылку неактивной
func (s *SQLStorage) DeactivateLink(ctx context.Context, link *domain.Link) error {
	result := s.db.WithContext(ctx).Model(&domain.Link{}).Where("id = ?", link.ID).Update("is_active", false)
	if result.Error != nil {
		s.log.Error("failed to deactivate link", zap.String("short_code", link.ShortCode), zap.Error(result.Error))
		return fmt.Errorf("failed to deactivate link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrLinkNotFound
	}

	link.IsActive = false
	return nil
}

// IncrementClicks атомарно увеличивает счетчик кликов
func (s *SQLStorage) IncrementClicks(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&domain.Link{}).Where("id = ?", id).
		UpdateColumn("clicks", gorm.Expr("clicks + 1"))
	if result.Error != nil {
		s.log.Error("failed to update click count", zap.String("link_id", id.String()), zap.Error(result.Error))
		return fmt.Errorf("failed to update click count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrLinkNotFound
	}
	return nil
}

// ListExpiredLinks получает ссылки, срок которых истек до before
func (s *SQLStorage) ListExpiredLinks(ctx context.Context, before time.Time, limit int) ([]*domain.Link, error) {
	var links []*domain.Link

	q := s.db.WithContext(ctx).Where("expires_at < ?", before).Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&links).Error; err != nil {
		s.log.Error("failed to list expired links", zap.Error(err))
		return nil, fmt.Errorf("failed to list expired links: %w", err)
	}

	return links, nil
}

// --- Click Methods ---

// AppendClick записывает событие клика
func (s *SQLStorage) AppendClick(ctx context.Context, click *domain.Click) error {
	if click.Country == "" {
		click.Country = "Unknown"
	}
	if err := s.db.WithContext(ctx).Create(click).Error; err != nil {
		s.log.Error("failed to create click record", zap.String("short_code", click.ShortCode), zap.Error(err))
		return fmt.Errorf("failed to create click record: %w", err)
	}
	return nil
}

// CountClicks считает клики по фильтру
func (s *SQLStorage) CountClicks(ctx context.Context, filter repository.ClickFilter) (int64, error) {
	if filter.ShortCodes != nil && len(filter.ShortCodes) == 0 {
		return 0, nil
	}

	q := s.db.WithContext(ctx).Model(&domain.Click{})
	if filter.LinkID != uuid.Nil {
		q = q.Where("link_id = ?", filter.LinkID)
	}
	if len(filter.ShortCodes) > 0 {
		q = q.Where("short_code IN ?", filter.ShortCodes)
	}
	if !filter.Since.IsZero() {
		q = q.Where("clicked_at >= ?", filter.Since)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		s.log.Error("failed to count clicks", zap.Error(err))
		return 0, fmt.Errorf("failed to count clicks: %w", err)
	}
	return count, nil
}

// ListClicks получает клики по коду, новые первыми
func (s *SQLStorage) ListClicks(ctx context.Context, code string, offset, limit int) ([]*domain.Click, error) {
	var clicks []*domain.Click

	q := s.db.WithContext(ctx).
		Where("short_code = ?", code).
		Order("clicked_at DESC").
		Order("id DESC")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&clicks).Error; err != nil {
		s.log.Error("failed to list clicks", zap.String("short_code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	return clicks, nil
}

// GroupClicks группирует клики ссылки по измерению
func (s *SQLStorage) GroupClicks(ctx context.Context, linkID uuid.UUID, dimension string, limit int) ([]repository.GroupCount, error) {
	var column string
	switch dimension {
	case repository.GroupByReferrer:
		column = "referrer"
	case repository.GroupByDeviceType:
		column = "device_type"
	default:
		return nil, repository.ErrUnknownDimension
	}

	q := s.db.WithContext(ctx).Model(&domain.Click{}).
		Select(column+" AS group_key, COUNT(*) AS total").
		Where("link_id = ?", linkID)
	if dimension == repository.GroupByReferrer {
		q = q.Where("referrer <> ''")
	}
	q = q.Group(column).Order("total DESC").Order("group_key ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []struct {
		GroupKey string
		Total    int64
	}
	if err := q.Scan(&rows).Error; err != nil {
		s.log.Error("failed to group clicks", zap.String("dimension", dimension), zap.Error(err))
		return nil, fmt.Errorf("failed to group clicks: %w", err)
	}

	groups := make([]repository.GroupCount, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, repository.GroupCount{Key: r.GroupKey, Count: r.Total})
	}
	return groups, nil
}

// isDuplicate распознает нарушение уникального индекса
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func isSentinel(err error) bool {
	return errors.Is(err, repository.ErrQuotaExceeded) ||
		errors.Is(err, repository.ErrCodeExists) ||
		errors.Is(err, repository.ErrUserNotFound) ||
		errors.Is(err, repository.ErrLinkNotFound)
}
