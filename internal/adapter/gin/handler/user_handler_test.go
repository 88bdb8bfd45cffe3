package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "user-service/internal/domain/user"
	usecase "user-service/internal/usecase/user"
	apperrors "user-service/pkg/errors"
)

// MockUserUsecase is a mock implementation of user.UserUsecase
type MockUserUsecase struct {
	mock.Mock
}

func (m *MockUserUsecase) CreateUser(ctx context.Context, req usecase.CreateUserRequest) (*usecase.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.User), args.Error(1)
}

func (m *MockUserUsecase) GetUser(ctx context.Context, req usecase.GetUserRequest) (*usecase.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.User), args.Error(1)
}

func (m *MockUserUsecase) UpdateUser(ctx context.Context, req usecase.UpdateUserRequest) (*usecase.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.User), args.Error(1)
}

func (m *MockUserUsecase) DeleteUser(ctx context.Context, req usecase.DeleteUserRequest) (*usecase.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.User), args.Error(1)
}

func (m *MockUserUsecase) ListUsers(ctx context.Context, req usecase.ListUsersRequest) (*usecase.ListUsersResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ListUsersResponse), args.Error(1)
}

func setupTest(t *testing.T) (*gin.Engine, *MockUserUsecase) {
	gin.SetMode(gin.TestMode)
	mockUsecase := new(MockUserUsecase)
	h := NewUserHandler(mockUsecase, zaptest.NewLogger(t))

	r := gin.New()
	r.GET("/api/users", h.ListUsers)
	r.GET("/api/users/:id", h.GetUser)
	r.POST("/api/users", h.CreateUser)
	r.PUT("/api/users/:id", h.UpdateUser)
	r.DELETE("/api/users/:id", h.DeleteUser)
	return r, mockUsecase
}

func doJSON(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

var sampleUser = &usecase.User{
	ID:          1,
	FirstName:   "John",
	LastName:    "Doe",
	Position:    "Engineer",
	PhoneNumber: "1",
	Email:       "a@x.com",
}

func TestCreateUser(t *testing.T) {
	t.Run("Success JSON", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, usecase.CreateUserRequest{
			FirstName: "John", LastName: "Doe", Position: "Engineer", PhoneNumber: "1", Email: "a@x.com",
		}).Return(sampleUser, nil)

		w := doJSON(r, http.MethodPost, "/api/users",
			`{"first_name":"John","last_name":"Doe","position":"Engineer","phone_number":"1","email":"a@x.com"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, float64(1), resp["id"])
		assert.Equal(t, "a@x.com", resp["email"])
		assert.Equal(t, "1", resp["phone_number"])
	})

	t.Run("Success urlencoded form", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, mock.MatchedBy(func(req usecase.CreateUserRequest) bool {
			return req.FirstName == "Jane" && req.Email == "j@x.com" && req.PhoneNumber == "+1 (555) 0100"
		})).Return(sampleUser, nil)

		form := url.Values{
			"first_name":   {"Jane"},
			"last_name":    {"Roe"},
			"position":     {"QA"},
			"phone_number": {"+1 (555) 0100"},
			"email":        {"j@x.com"},
		}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Success multipart form", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, mock.MatchedBy(func(req usecase.CreateUserRequest) bool {
			return req.FirstName == "Multi" && req.Email == "m@x.com"
		})).Return(sampleUser, nil)

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, v := range map[string]string{
			"first_name": "Multi", "last_name": "Part", "position": "Dev", "phone_number": "7", "email": "m@x.com",
		} {
			require.NoError(t, mw.WriteField(k, v))
		}
		require.NoError(t, mw.Close())

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/users", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		w := doJSON(r, http.MethodPost, "/api/users", "invalid json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, KindValidation, decodeError(t, w).Error)
		mockUsecase.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("Duplicate Email", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, mock.Anything).Return(nil, domain.ErrDuplicateEmail)

		w := doJSON(r, http.MethodPost, "/api/users", `{"email":"a@x.com"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, KindDuplicateEmail, resp.Error)
		assert.Equal(t, "Email already exists", resp.Message)
	})

	t.Run("Duplicate Phone Number", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, mock.Anything).Return(nil, domain.ErrDuplicatePhoneNumber)

		w := doJSON(r, http.MethodPost, "/api/users", `{"phone_number":"1"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, KindDuplicatePhoneNumber, resp.Error)
		assert.Equal(t, "Phone number already exists", resp.Message)
	})

	t.Run("Internal Error Hides Cause", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewInternalError("failed to create user", errors.New("pq: password=secret")))

		w := doJSON(r, http.MethodPost, "/api/users", `{}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, KindInternal, resp.Error)
		assert.NotContains(t, w.Body.String(), "secret")
	})
}

func TestUpdateUser(t *testing.T) {
	t.Run("Absent fields stay nil", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateUser", mock.Anything, mock.MatchedBy(func(req usecase.UpdateUserRequest) bool {
			return req.ID == 1 && req.FirstName != nil && *req.FirstName == "Johnny" &&
				req.Position != nil && *req.Position == "" &&
				req.LastName == nil && req.Email == nil && req.PhoneNumber == nil
		})).Return(sampleUser, nil)

		w := doJSON(r, http.MethodPut, "/api/users/1", `{"first_name":"Johnny","position":""}`)

		assert.Equal(t, http.StatusOK, w.Code)
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Form fields", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateUser", mock.Anything, mock.MatchedBy(func(req usecase.UpdateUserRequest) bool {
			return req.Email != nil && *req.Email == "new@x.com" && req.FirstName == nil
		})).Return(sampleUser, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/users/1", strings.NewReader("email=new%40x.com"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Empty body is an empty patch", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateUser", mock.Anything, usecase.UpdateUserRequest{ID: 3}).Return(sampleUser, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/users/3", http.NoBody)
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Invalid ID", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		for _, path := range []string{"/api/users/abc", "/api/users/0", "/api/users/-3", "/api/users/9223372036854775808"} {
			w := doJSON(r, http.MethodPut, path, `{"first_name":"X"}`)

			assert.Equal(t, http.StatusBadRequest, w.Code, path)
			assert.Equal(t, KindInvalidID, decodeError(t, w).Error, path)
		}
		mockUsecase.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
	})

	t.Run("Not Found", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateUser", mock.Anything, mock.Anything).Return(nil, domain.NewNotFoundError(42))

		w := doJSON(r, http.MethodPut, "/api/users/42", `{"first_name":"X"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, KindNotFound, resp.Error)
		assert.Equal(t, "User with ID 42 not found", resp.Message)
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("Success returns prior record", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("DeleteUser", mock.Anything, usecase.DeleteUserRequest{ID: 1}).Return(sampleUser, nil)

		w := doJSON(r, http.MethodDelete, "/api/users/1", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp usecase.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, *sampleUser, resp)
	})

	t.Run("Not Found", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("DeleteUser", mock.Anything, usecase.DeleteUserRequest{ID: 7}).Return(nil, domain.NewNotFoundError(7))

		w := doJSON(r, http.MethodDelete, "/api/users/7", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Non-positive ID", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		for _, path := range []string{"/api/users/0", "/api/users/-3"} {
			w := doJSON(r, http.MethodDelete, path, "")

			assert.Equal(t, http.StatusBadRequest, w.Code, path)
			assert.Equal(t, KindInvalidID, decodeError(t, w).Error, path)
		}
		mockUsecase.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
	})
}

func TestGetUser(t *testing.T) {
	r, mockUsecase := setupTest(t)
	mockUsecase.On("GetUser", mock.Anything, usecase.GetUserRequest{ID: 1}).Return(sampleUser, nil)

	w := doJSON(r, http.MethodGet, "/api/users/1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"first_name":"John"`)
}

func TestListUsers(t *testing.T) {
	t.Run("Envelope", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListUsers", mock.Anything, usecase.ListUsersRequest{
			FirstName: "asc", Position: "DESC", Page: 2, Size: 5,
		}).Return(&usecase.ListUsersResponse{
			Users:      []usecase.User{*sampleUser},
			Pagination: &usecase.Pagination{CurrentPage: 2, Size: 5, TotalItems: 6, TotalPages: 2},
		}, nil)

		w := doJSON(r, http.MethodGet, "/api/users?first_name=asc&position=DESC&page=2&size=5", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp ListUsersResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(2), resp.CurrentPage)
		assert.Equal(t, int64(6), resp.TotalItems)
		assert.Equal(t, int64(2), resp.TotalPages)
		assert.Len(t, resp.Data, 1)
	})

	t.Run("Empty page renders empty array", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListUsers", mock.Anything, usecase.ListUsersRequest{}).Return(&usecase.ListUsersResponse{
			Users:      []usecase.User{},
			Pagination: &usecase.Pagination{CurrentPage: 1, Size: 10},
		}, nil)

		w := doJSON(r, http.MethodGet, "/api/users", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"current_page":1,"data":[],"total_items":0,"total_pages":0}`, w.Body.String())
	})

	for _, q := range []string{"page=0", "page=-1", "page=x", "size=0", "size=abc"} {
		t.Run("Rejects "+q, func(t *testing.T) {
			r, mockUsecase := setupTest(t)

			w := doJSON(r, http.MethodGet, "/api/users?"+q, "")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, KindValidation, decodeError(t, w).Error)
			mockUsecase.AssertNotCalled(t, "ListUsers", mock.Anything, mock.Anything)
		})
	}

	t.Run("Use case validation error", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListUsers", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewValidationError("size", "must be at most 100"))

		w := doJSON(r, http.MethodGet, "/api/users?size=500", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Message, "must be at most 100")
	})
}
