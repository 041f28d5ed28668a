package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/vehiclerent/internal/common"
	"github.com/dmitrijs2005/vehiclerent/internal/logging"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/server/receipts"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("error finding rental: %w", common.ErrorNotFound), codes.NotFound},
		{fmt.Errorf("%w: not your store", common.ErrForbidden), codes.PermissionDenied},
		{common.ErrInvalidRange, codes.InvalidArgument},
		{fmt.Errorf("%w %q", models.ErrUnknownPaymentMethod, "cheque"), codes.InvalidArgument},
		{receipts.ErrUnsupportedFormat, codes.InvalidArgument},
		{fmt.Errorf("%w: rental_requests_no_approved_overlap", common.ErrConflict), codes.AlreadyExists},
		{common.ErrAlreadySettled, codes.AlreadyExists},
		{fmt.Errorf("%w: rental is PENDING", common.ErrInvalidState), codes.FailedPrecondition},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{errors.New("db error: boom"), codes.Internal},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tt := range tests {
		if got := status.Code(ToStatus(tt.err)); got != tt.want {
			t.Errorf("ToStatus(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
	if ToStatus(nil) != nil {
		t.Error("ToStatus(nil) must be nil")
	}
}

func TestLoggingInterceptor_MapsErrors(t *testing.T) {
	s := NewGRPCServer("", logging.Nop{})
	info := &grpc.UnaryServerInfo{FullMethod: "/rental.Ops/Check"}

	resp, err := s.loggingInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	if err != nil || resp != "ok" {
		t.Fatalf("got (%v, %v), want (ok, nil)", resp, err)
	}

	_, err = s.loggingInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, fmt.Errorf("%w: rental is CANCELLED", common.ErrInvalidState)
	})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("code = %v, want FailedPrecondition", status.Code(err))
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	s := NewGRPCServer("", logging.Nop{})
	info := &grpc.UnaryServerInfo{FullMethod: "/rental.Ops/Check"}

	_, err := s.recoveryInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
}
