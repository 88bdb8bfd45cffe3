package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-service/internal/usecase/user"
	"user-service/pkg/logger"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc  user.UserUsecase
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.UserUsecase, log *zap.Logger) *UserHandler {
	return &UserHandler{uc: uc, log: log}
}

// CreateUserBody is the JSON or form body for creating a user
type CreateUserBody struct {
	FirstName   string `json:"first_name" form:"first_name"`
	LastName    string `json:"last_name" form:"last_name"`
	Position    string `json:"position" form:"position"`
	PhoneNumber string `json:"phone_number" form:"phone_number"`
	Email       string `json:"email" form:"email"`
}

// UpdateUserBody is the JSON or form body for updating a user.
// Omitted fields stay nil and are left unchanged.
type UpdateUserBody struct {
	FirstName   *string `json:"first_name" form:"first_name"`
	LastName    *string `json:"last_name" form:"last_name"`
	Position    *string `json:"position" form:"position"`
	PhoneNumber *string `json:"phone_number" form:"phone_number"`
	Email       *string `json:"email" form:"email"`
}

// ListUsersResponse is the paginated envelope returned by ListUsers
type ListUsersResponse struct {
	CurrentPage int64       `json:"current_page"`
	Data        []user.User `json:"data"`
	TotalItems  int64       `json:"total_items"`
	TotalPages  int64       `json:"total_pages"`
}

// bindBody decodes a JSON, urlencoded or multipart body. An empty body
// decodes to the zero value.
func bindBody(c *gin.Context, dst any) error {
	if err := c.ShouldBind(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ListUsers handles GET /api/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, ok := h.queryInt(c, "page")
	if !ok {
		return
	}
	size, ok := h.queryInt(c, "size")
	if !ok {
		return
	}

	req := user.ListUsersRequest{
		FirstName: c.Query("first_name"),
		LastName:  c.Query("last_name"),
		Position:  c.Query("position"),
		Page:      page,
		Size:      size,
	}

	resp, err := h.uc.ListUsers(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "ListUsers", err)
		return
	}

	c.JSON(http.StatusOK, ListUsersResponse{
		CurrentPage: resp.Pagination.CurrentPage,
		Data:        resp.Users,
		TotalItems:  resp.Pagination.TotalItems,
		TotalPages:  resp.Pagination.TotalPages,
	})
}

// GetUser handles GET /api/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	resp, err := h.uc.GetUser(c.Request.Context(), user.GetUserRequest{ID: id})
	if err != nil {
		h.fail(c, "GetUser", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateUser handles POST /api/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var body CreateUserBody
	if err := bindBody(c, &body); err != nil {
		h.invalidBody(c, err)
		return
	}

	resp, err := h.uc.CreateUser(c.Request.Context(), user.CreateUserRequest{
		FirstName:   body.FirstName,
		LastName:    body.LastName,
		Position:    body.Position,
		PhoneNumber: body.PhoneNumber,
		Email:       body.Email,
	})
	if err != nil {
		h.fail(c, "CreateUser", err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// UpdateUser handles PUT /api/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var body UpdateUserBody
	if err := bindBody(c, &body); err != nil {
		h.invalidBody(c, err)
		return
	}

	resp, err := h.uc.UpdateUser(c.Request.Context(), user.UpdateUserRequest{
		ID:          id,
		FirstName:   body.FirstName,
		LastName:    body.LastName,
		Position:    body.Position,
		PhoneNumber: body.PhoneNumber,
		Email:       body.Email,
	})
	if err != nil {
		h.fail(c, "UpdateUser", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteUser handles DELETE /api/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	resp, err := h.uc.DeleteUser(c.Request.Context(), user.DeleteUserRequest{ID: id})
	if err != nil {
		h.fail(c, "DeleteUser", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// pathID parses the :id segment; anything but a positive integer aborts
// with 400 invalid_id.
func (h *UserHandler) pathID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		logger.WithContext(c.Request.Context(), h.log).Warn("invalid user id", zap.String("id", raw))
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:   KindInvalidID,
			Message: "User ID must be a valid number",
		})
		return 0, false
	}
	return id, true
}

// queryInt reads an optional positive integer query parameter. Absent
// yields 0 so the use case applies its default.
func (h *UserHandler) queryInt(c *gin.Context, name string) (int64, bool) {
	raw, present := c.GetQuery(name)
	if !present {
		return 0, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:   KindValidation,
			Message: name + " must be a positive integer",
		})
		return 0, false
	}
	return n, true
}

func (h *UserHandler) invalidBody(c *gin.Context, err error) {
	logger.WithContext(c.Request.Context(), h.log).Warn("invalid request body", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   KindValidation,
		Message: "request body could not be decoded",
	})
}

func (h *UserHandler) fail(c *gin.Context, op string, err error) {
	status, body := ErrorFor(err)
	log := logger.WithContext(c.Request.Context(), h.log)
	if status >= http.StatusInternalServerError {
		log.Error(op+" failed", zap.Error(err))
	} else {
		log.Info(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}
