package grpc

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"user-service/internal/usecase/user"
	apperrors "user-service/pkg/errors"
	"user-service/pkg/logger"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "users.v1.UserService"

// UserServiceHandler is the server API for users.v1.UserService.
type UserServiceHandler interface {
	ListUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ UserServiceHandler = (*UserServiceServer)(nil)

// UserServiceServer implements the gRPC user service. Requests and responses
// are google.protobuf.Struct values using the same field names as the HTTP API.
type UserServiceServer struct {
	uc  user.UserUsecase
	log *zap.Logger
}

// NewUserServiceServer creates a new gRPC user service server
func NewUserServiceServer(uc user.UserUsecase, log *zap.Logger) *UserServiceServer {
	return &UserServiceServer{uc: uc, log: log}
}

// RegisterUserServiceServer registers srv on s.
func RegisterUserServiceServer(s grpc.ServiceRegistrar, srv UserServiceHandler) {
	s.RegisterService(&UserServiceDesc, srv)
}

// ListUsers handles gRPC ListUsers request
func (s *UserServiceServer) ListUsers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	r := fieldReader{fields: fields}
	in := user.ListUsersRequest{
		FirstName: r.text("first_name"),
		LastName:  r.text("last_name"),
		Position:  r.text("position"),
	}
	if r.err != nil {
		return nil, r.err
	}

	var err error
	if in.Page, err = positiveField(fields, "page"); err != nil {
		return nil, err
	}
	if in.Size, err = positiveField(fields, "size"); err != nil {
		return nil, err
	}

	out, err := s.uc.ListUsers(ctx, in)
	if err != nil {
		return nil, s.toStatus(ctx, "ListUsers", err)
	}

	data := make([]any, 0, len(out.Users))
	for _, u := range out.Users {
		data = append(data, userMap(u))
	}
	return structpb.NewStruct(map[string]any{
		"current_page": out.Pagination.CurrentPage,
		"data":         data,
		"total_items":  out.Pagination.TotalItems,
		"total_pages":  out.Pagination.TotalPages,
	})
}

// GetUser handles gRPC GetUser request
func (s *UserServiceServer) GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req.GetFields())
	if err != nil {
		return nil, err
	}

	u, err := s.uc.GetUser(ctx, user.GetUserRequest{ID: id})
	if err != nil {
		return nil, s.toStatus(ctx, "GetUser", err)
	}
	return structpb.NewStruct(userMap(*u))
}

// CreateUser handles gRPC CreateUser request
func (s *UserServiceServer) CreateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := fieldReader{fields: req.GetFields()}
	in := user.CreateUserRequest{
		FirstName:   r.text("first_name"),
		LastName:    r.text("last_name"),
		Position:    r.text("position"),
		PhoneNumber: r.text("phone_number"),
		Email:       r.text("email"),
	}
	if r.err != nil {
		return nil, r.err
	}

	u, err := s.uc.CreateUser(ctx, in)
	if err != nil {
		return nil, s.toStatus(ctx, "CreateUser", err)
	}
	return structpb.NewStruct(userMap(*u))
}

// UpdateUser handles gRPC UpdateUser request. Absent fields stay unchanged.
func (s *UserServiceServer) UpdateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	id, err := idField(fields)
	if err != nil {
		return nil, err
	}

	r := fieldReader{fields: fields}
	in := user.UpdateUserRequest{
		ID:          id,
		FirstName:   r.optional("first_name"),
		LastName:    r.optional("last_name"),
		Position:    r.optional("position"),
		PhoneNumber: r.optional("phone_number"),
		Email:       r.optional("email"),
	}
	if r.err != nil {
		return nil, r.err
	}

	u, err := s.uc.UpdateUser(ctx, in)
	if err != nil {
		return nil, s.toStatus(ctx, "UpdateUser", err)
	}
	return structpb.NewStruct(userMap(*u))
}

// DeleteUser handles gRPC DeleteUser request
func (s *UserServiceServer) DeleteUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req.GetFields())
	if err != nil {
		return nil, err
	}

	u, err := s.uc.DeleteUser(ctx, user.DeleteUserRequest{ID: id})
	if err != nil {
		return nil, s.toStatus(ctx, "DeleteUser", err)
	}
	return structpb.NewStruct(userMap(*u))
}

// toStatus converts application errors to gRPC status errors. Errors without
// a status are logged and reported as Internal.
func (s *UserServiceServer) toStatus(ctx context.Context, method string, err error) error {
	var st apperrors.GRPCStatuser
	if errors.As(err, &st) {
		if st.GRPCStatus().Code() == codes.Internal {
			logger.WithContext(ctx, s.log).Error("request failed", zap.String("method", method), zap.Error(err))
		}
		return st.GRPCStatus().Err()
	}
	logger.WithContext(ctx, s.log).Error("request failed", zap.String("method", method), zap.Error(err))
	return status.Error(codes.Internal, "An internal error occurred")
}

func userMap(u user.User) map[string]any {
	return map[string]any{
		"id":           u.ID,
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"position":     u.Position,
		"phone_number": u.PhoneNumber,
		"email":        u.Email,
	}
}

// fieldReader reads string fields from a request and keeps the first
// field that holds something other than a string or null.
type fieldReader struct {
	fields map[string]*structpb.Value
	err    error
}

// optional returns nil when name is absent or null.
func (r *fieldReader) optional(name string) *string {
	v, ok := r.fields[name]
	if !ok {
		return nil
	}
	switch k := v.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return nil
	case *structpb.Value_StringValue:
		s := k.StringValue
		return &s
	}
	if r.err == nil {
		r.err = apperrors.NewValidationError(name, name+" must be a string").GRPCStatus().Err()
	}
	return nil
}

func (r *fieldReader) text(name string) string {
	if s := r.optional(name); s != nil {
		return *s
	}
	return ""
}

func idField(fields map[string]*structpb.Value) (int64, error) {
	n, ok := wholeNumber(fields["id"])
	if !ok || n < 1 {
		return 0, status.Error(codes.InvalidArgument, "User ID must be a valid number")
	}
	return n, nil
}

// positiveField returns 0 when name is absent so the default applies.
func positiveField(fields map[string]*structpb.Value, name string) (int64, error) {
	v, present := fields[name]
	if !present {
		return 0, nil
	}
	n, ok := wholeNumber(v)
	if !ok || n < 1 {
		return 0, apperrors.NewValidationError(name, fmt.Sprintf("%s must be a positive integer", name)).GRPCStatus().Err()
	}
	return n, nil
}

func wholeNumber(v *structpb.Value) (int64, bool) {
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	f := nv.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

func structHandler(call func(UserServiceHandler, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(UserServiceHandler)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// UserServiceDesc describes users.v1.UserService for grpc.Server.RegisterService.
var UserServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UserServiceHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListUsers", Handler: structHandler(UserServiceHandler.ListUsers, "ListUsers")},
		{MethodName: "GetUser", Handler: structHandler(UserServiceHandler.GetUser, "GetUser")},
		{MethodName: "CreateUser", Handler: structHandler(UserServiceHandler.CreateUser, "CreateUser")},
		{MethodName: "UpdateUser", Handler: structHandler(UserServiceHandler.UpdateUser, "UpdateUser")},
		{MethodName: "DeleteUser", Handler: structHandler(UserServiceHandler.DeleteUser, "DeleteUser")},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "users/v1/user_service.proto",
}
