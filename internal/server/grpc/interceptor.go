package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/common"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/server/receipts"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatus maps rental error kinds to gRPC status codes. Errors that already
// carry a status are returned unchanged.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, common.ErrorNotFound):
		code = codes.NotFound
	case errors.Is(err, common.ErrForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, common.ErrInvalidRange),
		errors.Is(err, models.ErrUnknownPaymentMethod),
		errors.Is(err, receipts.ErrUnsupportedFormat):
		code = codes.InvalidArgument
	case errors.Is(err, common.ErrConflict), errors.Is(err, common.ErrAlreadySettled):
		code = codes.AlreadyExists
	case errors.Is(err, common.ErrInvalidState):
		code = codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	err = ToStatus(err)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	switch code {
	case codes.OK:
		s.logger.Debug(ctx, "rpc", args...)
	case codes.Internal, codes.Unknown:
		s.logger.Error(ctx, "rpc", append(args, "error", err)...)
	default:
		s.logger.Info(ctx, "rpc", append(args, "error", err)...)
	}
	return resp, err
}

func (s *GRPCServer) recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "rpc panic", "method", info.FullMethod, "panic", fmt.Sprint(r))
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
