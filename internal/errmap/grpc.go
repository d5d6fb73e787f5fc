// Package errmap maps domain errors onto wire protocols (HTTP and gRPC).
package errmap

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aelexs/authgate/internal/domain"
)

// grpcMappings maps domain errors to gRPC status codes.
// Order matters: first match wins (via errors.Is).
var grpcMappings = []struct {
	err  error
	code codes.Code
}{
	{domain.ErrMissingCredential, codes.Unauthenticated},
	{domain.ErrInvalidCredential, codes.InvalidArgument},
}

// ToGRPCStatus converts a domain error to a gRPC status.
// Only the sentinel's text is sent; wrapped detail stays server-side.
func ToGRPCStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	for _, m := range grpcMappings {
		if errors.Is(err, m.err) {
			return status.New(m.code, m.err.Error())
		}
	}
	// Never expose internal error details to clients
	return status.New(codes.Internal, "internal error")
}

// ToGRPCError converts a domain error to a gRPC error (implements error interface).
func ToGRPCError(err error) error {
	return ToGRPCStatus(err).Err()
}
