package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"user-service/internal/domain/user"
)

const (
	emailIndex       = "idx_users_email"
	phoneNumberIndex = "idx_users_phone_number"

	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	sqliteUniqueFailed   = "UNIQUE constraint failed"
	sqliteEmailColumn    = "users.email"
	sqlitePhoneNumberCol = "users.phone_number"
)

// UserRepo implements the user repository on top of GORM. It works with the
// postgres, mysql and sqlite dialects.
type UserRepo struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewUserRepo creates a new instance of UserRepo.
func NewUserRepo(db *gorm.DB, log *zap.Logger) *UserRepo {
	return &UserRepo{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
// The named unique indexes are what duplicate detection keys on.
type UserSchema struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	FirstName   string `gorm:"size:100;not null"`
	LastName    string `gorm:"size:100;not null"`
	Position    string `gorm:"size:100;not null"`
	PhoneNumber string `gorm:"size:32;not null;uniqueIndex:idx_users_phone_number"`
	Email       string `gorm:"size:255;not null;uniqueIndex:idx_users_email"`
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// AutoMigrate creates or updates the users table and its indexes.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserSchema{})
}

func toSchema(u *user.User) UserSchema {
	return UserSchema{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Position:    u.Position,
		PhoneNumber: u.PhoneNumber,
		Email:       u.Email,
	}
}

func (m UserSchema) toDomain() *user.User {
	return &user.User{
		ID:          m.ID,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Position:    m.Position,
		PhoneNumber: m.PhoneNumber,
		Email:       m.Email,
	}
}

// Create inserts a new user and returns it with its assigned ID.
func (r *UserRepo) Create(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}

	model := toSchema(u)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if dup := classifyDuplicate(err); dup != nil {
			r.log.Warn("unique constraint rejected insert", zap.String("email", u.Email), zap.Error(err))
			return nil, dup
		}
		r.log.Error("failed to create user in db", zap.Error(err), zap.String("email", u.Email))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	r.log.Debug("user created in db", zap.Int64("id", model.ID))
	return model.toDomain(), nil
}

// Update overwrites every column of an existing user.
func (r *UserRepo) Update(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}

	model := toSchema(u)
	res := r.db.WithContext(ctx).
		Model(&UserSchema{ID: u.ID}).
		Select("first_name", "last_name", "position", "phone_number", "email").
		Updates(&model)
	if err := res.Error; err != nil {
		if dup := classifyDuplicate(err); dup != nil {
			r.log.Warn("unique constraint rejected update", zap.Int64("id", u.ID), zap.Error(err))
			return nil, dup
		}
		r.log.Error("failed to update user in db", zap.Error(err), zap.Int64("id", u.ID))
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if res.RowsAffected == 0 {
		// MySQL reports changed rows, not matched rows, unless the DSN sets
		// clientFoundRows, so an unchanged row also lands here.
		exists, err := r.exists(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, user.NewNotFoundError(u.ID)
		}
	}

	r.log.Debug("user updated in db", zap.Int64("id", model.ID))
	return model.toDomain(), nil
}

func (r *UserRepo) exists(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&UserSchema{}).Where("id = ?", id).Count(&n).Error; err != nil {
		r.log.Error("failed to check user existence", zap.Error(err), zap.Int64("id", id))
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return n > 0, nil
}

// Delete removes a user by ID.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&UserSchema{}, id)
	if err := res.Error; err != nil {
		r.log.Error("failed to delete user in db", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if res.RowsAffected == 0 {
		return user.NewNotFoundError(id)
	}

	r.log.Debug("user deleted in db", zap.Int64("id", id))
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	if id <= 0 {
		return nil, user.NewNotFoundError(id)
	}

	var model UserSchema
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.NewNotFoundError(id)
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return model.toDomain(), nil
}

// GetByEmail retrieves a user by email. A missing user is (nil, nil).
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, "email", email)
}

// GetByPhoneNumber retrieves a user by phone number. A missing user is (nil, nil).
func (r *UserRepo) GetByPhoneNumber(ctx context.Context, phone string) (*user.User, error) {
	return r.findOne(ctx, "phone_number", phone)
}

func (r *UserRepo) findOne(ctx context.Context, column, value string) (*user.User, error) {
	var model UserSchema
	err := r.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.String(column, value))
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	return model.toDomain(), nil
}

// List returns one page of users. Without sort directives no ORDER BY is
// issued and the order is whatever the database yields.
func (r *UserRepo) List(ctx context.Context, q user.ListQuery) ([]user.User, error) {
	tx := r.db.WithContext(ctx).Model(&UserSchema{})
	for _, d := range q.Sort {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: string(d.Field)}, Desc: d.Desc()})
	}

	var models []UserSchema
	if err := tx.Offset(int(q.Offset())).Limit(int(q.Size)).Find(&models).Error; err != nil {
		r.log.Error("failed to list users from db", zap.Error(err), zap.Int64("page", q.Page), zap.Int64("size", q.Size))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i, m := range models {
		users[i] = *m.toDomain()
	}
	return users, nil
}

// Count returns the number of rows in the users table.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&UserSchema{}).Count(&n).Error; err != nil {
		r.log.Error("failed to count users", zap.Error(err))
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// classifyDuplicate maps a unique violation to the domain duplicate error for
// the colliding column, or returns nil when err is not a unique violation.
func classifyDuplicate(err error) error {
	var detail string

	var pgErr *pgconn.PgError
	var myErr *mysql.MySQLError
	switch {
	case errors.As(err, &pgErr):
		if pgErr.Code != pgUniqueViolation {
			return nil
		}
		detail = pgErr.ConstraintName + " " + pgErr.Message
	case errors.As(err, &myErr):
		if myErr.Number != mysqlDuplicateEntry {
			return nil
		}
		detail = myErr.Message
	default:
		detail = err.Error()
		if !strings.Contains(detail, sqliteUniqueFailed) {
			return nil
		}
	}

	switch {
	case strings.Contains(detail, emailIndex), strings.Contains(detail, sqliteEmailColumn):
		return user.ErrDuplicateEmail
	case strings.Contains(detail, phoneNumberIndex), strings.Contains(detail, sqlitePhoneNumberCol):
		return user.ErrDuplicatePhoneNumber
	}
	return nil
}
