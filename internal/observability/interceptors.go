package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"speech-to-data/internal/observability/metrics"
)

// UnaryServerInterceptor records and logs every unary call. m may be nil.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		observeCall(m, info.FullMethod, err, time.Since(start), "gRPC unary call")
		return resp, err
	}
}

// StreamServerInterceptor records and logs every stream once it ends. Health
// Watch streams are the only streams served.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		observeCall(m, info.FullMethod, err, time.Since(start), "gRPC stream completed")
		return err
	}
}

func observeCall(m *metrics.Metrics, method string, err error, elapsed time.Duration, msg string) {
	code := status.Code(err).String()
	if m != nil {
		m.RecordGRPC(method, code, elapsed.Seconds())
	}
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("method", method).
		Str("code", code).
		Dur("duration", elapsed).
		Msg(msg)
}
