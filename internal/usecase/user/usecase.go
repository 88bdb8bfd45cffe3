package user

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	domain "user-service/internal/domain/user"
	apperrors "user-service/pkg/errors"
	"user-service/pkg/logger"
)

// Repository defines the interface for user data access operations.
// Implementations must enforce uniqueness of email and phone number and
// report violations as domain.ErrDuplicateEmail / domain.ErrDuplicatePhoneNumber.
type Repository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)         // Insert and return the stored record
	GetByID(ctx context.Context, id int64) (*domain.User, error)              // Not found is a domain.ErrUserNotFound error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)       // Not found is (nil, nil)
	GetByPhoneNumber(ctx context.Context, phone string) (*domain.User, error) // Not found is (nil, nil)
	Update(ctx context.Context, u *domain.User) (*domain.User, error)         // Overwrite every column of an existing record
	Delete(ctx context.Context, id int64) error                               // Not found is a domain.ErrUserNotFound error
	List(ctx context.Context, q domain.ListQuery) ([]domain.User, error)      // One page in the requested order
	Count(ctx context.Context) (int64, error)                                 // Rows in the whole table
}

// EventPublisher delivers domain events after successful mutations.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// PaginationConfig holds listing defaults.
type PaginationConfig struct {
	DefaultSize int64
	MaxSize     int64
}

// Option configures a Usecase.
type Option func(*Usecase)

// WithPublisher enables event publication. A nil publisher disables it.
func WithPublisher(p EventPublisher) Option {
	return func(uc *Usecase) { uc.publisher = p }
}

// WithPagination overrides the listing defaults. Non-positive values are ignored.
func WithPagination(cfg PaginationConfig) Option {
	return func(uc *Usecase) {
		if cfg.DefaultSize > 0 {
			uc.paging.DefaultSize = cfg.DefaultSize
		}
		if cfg.MaxSize > 0 {
			uc.paging.MaxSize = cfg.MaxSize
		}
	}
}

// Usecase implements the business logic for user management operations.
// It provides a clean separation between the transport layer and data layer.
type Usecase struct {
	repo      Repository          // Repository for data access
	publisher EventPublisher      // Optional event sink
	log       *zap.Logger         // Logger for structured logging
	validate  *validator.Validate // Validator for request validation
	paging    PaginationConfig
}

// New creates a new instance of Usecase with the provided repository and logger.
func New(r Repository, log *zap.Logger, opts ...Option) *Usecase {
	uc := &Usecase{
		repo:     r,
		log:      log,
		validate: newValidator(),
		paging: PaginationConfig{
			DefaultSize: domain.DefaultPageSize,
			MaxSize:     domain.MaxPageSize,
		},
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", validatePhone)
	return v
}

// validatePhone accepts 1 to 32 characters of digits, spaces and "+-()",
// with at least one digit.
func validatePhone(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) == 0 || len(s) > 32 {
		return false
	}
	hasDigit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r == ' ' || r == '+' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return hasDigit
}

// formatValidationError converts validator.ValidationErrors into a human-readable error message.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperrors.NewValidationError("", err.Error())
	}

	var messages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
		case "email":
			messages = append(messages, fmt.Sprintf("%s must be a valid email", e.Field()))
		case "phone":
			messages = append(messages, fmt.Sprintf("%s must be a valid phone number", e.Field()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}

	field := ""
	if len(validationErrors) == 1 {
		field = validationErrors[0].Field()
	}
	return apperrors.NewValidationError(field, strings.Join(messages, ", "))
}

// storeError passes domain errors through and wraps anything else as internal.
func storeError(op string, err error) error {
	var (
		notFound *apperrors.NotFoundError
		exists   *apperrors.AlreadyExistsError
		invalid  *apperrors.ValidationError
	)
	if errors.As(err, &notFound) || errors.As(err, &exists) || errors.As(err, &invalid) {
		return err
	}
	return apperrors.NewInternalError("failed to "+op, err)
}

// CreateUser creates a new user after validating the request and checking
// email and phone number uniqueness, in that order.
func (uc *Usecase) CreateUser(ctx context.Context, in CreateUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("creating user", zap.String("email", in.Email), zap.String("phone_number", in.PhoneNumber))

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	if err := uc.ensureEmailAvailable(ctx, log, in.Email, 0); err != nil {
		return nil, err
	}
	if err := uc.ensurePhoneNumberAvailable(ctx, log, in.PhoneNumber, 0); err != nil {
		return nil, err
	}

	created, err := uc.repo.Create(ctx, &domain.User{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Position:    in.Position,
		PhoneNumber: in.PhoneNumber,
		Email:       in.Email,
	})
	if err != nil {
		err = storeError("create user", err)
		log.Error("failed to create user", zap.Error(err))
		return nil, err
	}

	uc.publish(ctx, log, domain.EventUserCreated, *created)
	return created, nil
}

// UpdateUser applies a partial update. Uniqueness is only checked for an
// email or phone number that differs from the stored one.
func (uc *Usecase) UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log).With(zap.Int64("id", in.ID))
	log.Info("updating user")

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	current, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		err = storeError("get user", err)
		log.Warn("failed to load user for update", zap.Error(err))
		return nil, err
	}

	patch := in.Patch()
	if patch.EmailChanged(*current) {
		if err := uc.ensureEmailAvailable(ctx, log, *patch.Email, in.ID); err != nil {
			return nil, err
		}
	}
	if patch.PhoneNumberChanged(*current) {
		if err := uc.ensurePhoneNumberAvailable(ctx, log, *patch.PhoneNumber, in.ID); err != nil {
			return nil, err
		}
	}

	merged := patch.Apply(*current)
	updated, err := uc.repo.Update(ctx, &merged)
	if err != nil {
		err = storeError("update user", err)
		log.Error("failed to update user", zap.Error(err))
		return nil, err
	}

	uc.publish(ctx, log, domain.EventUserUpdated, *updated)
	return updated, nil
}

// DeleteUser removes a user and returns the record as it was before deletion.
func (uc *Usecase) DeleteUser(ctx context.Context, in DeleteUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log).With(zap.Int64("id", in.ID))
	log.Info("deleting user")

	current, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		err = storeError("get user", err)
		log.Warn("failed to load user for delete", zap.Error(err))
		return nil, err
	}

	if err := uc.repo.Delete(ctx, in.ID); err != nil {
		err = storeError("delete user", err)
		log.Error("failed to delete user", zap.Error(err))
		return nil, err
	}

	uc.publish(ctx, log, domain.EventUserDeleted, *current)
	return current, nil
}

// GetUser retrieves a user by ID.
func (uc *Usecase) GetUser(ctx context.Context, in GetUserRequest) (*User, error) {
	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		err = storeError("get user", err)
		logger.WithContext(ctx, uc.log).Warn("failed to get user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}
	return u, nil
}

// ListUsers returns one page of users, sorted by the supplied directives in
// the fixed priority first_name, last_name, position. The page and the
// total count are fetched concurrently.
func (uc *Usecase) ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	page := in.Page
	if page == 0 {
		page = domain.DefaultPage
	}
	size := in.Size
	if size == 0 {
		size = uc.paging.DefaultSize
	}

	pageReq, err := domain.NewPageRequest(page, size, uc.paging.MaxSize)
	if err != nil {
		log.Warn("invalid pagination", zap.Int64("page", page), zap.Int64("size", size), zap.Error(err))
		return nil, err
	}

	sortOpts, err := parseSortOptions(in)
	if err != nil {
		log.Warn("invalid sort directive", zap.Error(err))
		return nil, err
	}

	query := domain.ListQuery{PageRequest: pageReq, Sort: sortOpts.Directives()}
	log.Info("listing users", zap.Int64("page", pageReq.Page), zap.Int64("size", pageReq.Size), zap.Int("sort_directives", len(query.Sort)))

	var (
		users []domain.User
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = uc.repo.List(gctx, query)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = uc.repo.Count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		err = storeError("list users", err)
		log.Error("failed to list users", zap.Int64("page", pageReq.Page), zap.Int64("size", pageReq.Size), zap.Error(err))
		return nil, err
	}

	// A saturated offset may be clamped by the driver; past the end is always empty.
	if users == nil || (pageReq.Offset() > 0 && pageReq.Offset() >= total) {
		users = []domain.User{}
	}

	return &ListUsersResponse{
		Users:      users,
		Pagination: domain.NewPagination(total, pageReq),
	}, nil
}

func parseSortOptions(in ListUsersRequest) (domain.SortOptions, error) {
	var (
		opts domain.SortOptions
		err  error
	)
	if opts.FirstName, err = domain.ParseSortDirection(domain.SortByFirstName, in.FirstName); err != nil {
		return opts, err
	}
	if opts.LastName, err = domain.ParseSortDirection(domain.SortByLastName, in.LastName); err != nil {
		return opts, err
	}
	if opts.Position, err = domain.ParseSortDirection(domain.SortByPosition, in.Position); err != nil {
		return opts, err
	}
	return opts, nil
}

// ensureEmailAvailable fails with domain.ErrDuplicateEmail when another user
// (any user other than selfID) holds email. The store's unique index remains
// authoritative; this check only produces a friendlier error earlier.
func (uc *Usecase) ensureEmailAvailable(ctx context.Context, log *zap.Logger, email string, selfID int64) error {
	existing, err := uc.repo.GetByEmail(ctx, email)
	if err != nil {
		log.Error("failed to check existing email", zap.String("email", email), zap.Error(err))
		return apperrors.NewInternalError("failed to validate email uniqueness", err)
	}
	if existing != nil && existing.ID != selfID {
		log.Warn("email already exists", zap.String("email", email), zap.Int64("existing_id", existing.ID))
		return domain.ErrDuplicateEmail
	}
	return nil
}

// ensurePhoneNumberAvailable is the phone number counterpart of ensureEmailAvailable.
func (uc *Usecase) ensurePhoneNumberAvailable(ctx context.Context, log *zap.Logger, phone string, selfID int64) error {
	existing, err := uc.repo.GetByPhoneNumber(ctx, phone)
	if err != nil {
		log.Error("failed to check existing phone number", zap.String("phone_number", phone), zap.Error(err))
		return apperrors.NewInternalError("failed to validate phone number uniqueness", err)
	}
	if existing != nil && existing.ID != selfID {
		log.Warn("phone number already exists", zap.String("phone_number", phone), zap.Int64("existing_id", existing.ID))
		return domain.ErrDuplicatePhoneNumber
	}
	return nil
}

// publish emits an event; failures are logged and never fail the operation.
func (uc *Usecase) publish(ctx context.Context, log *zap.Logger, t domain.EventType, u domain.User) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.Publish(ctx, domain.NewEvent(t, u)); err != nil {
		log.Warn("failed to publish event", zap.String("event_type", string(t)), zap.Int64("user_id", u.ID), zap.Error(err))
	}
}
