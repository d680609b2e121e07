package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
)

func TestUnaryServerInterceptor_RecordsCode(t *testing.T) {
	m := metrics.DefaultMetrics
	method := "/test.Service/Unary"
	interceptor := UnaryServerInterceptor(m)

	before := testutil.ToFloat64(m.GRPCRequests.WithLabelValues(method, codes.Unavailable.String()))

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: method},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, status.Error(codes.Unavailable, "not capturing")
		})
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected handler error passed through, got %v", err)
	}

	after := testutil.ToFloat64(m.GRPCRequests.WithLabelValues(method, codes.Unavailable.String()))
	if after-before != 1 {
		t.Errorf("expected one Unavailable call recorded, got %v", after-before)
	}
}

func TestStreamServerInterceptor_RecordsSuccess(t *testing.T) {
	m := metrics.DefaultMetrics
	method := "/test.Service/Stream"
	interceptor := StreamServerInterceptor(m)

	before := testutil.ToFloat64(m.GRPCRequests.WithLabelValues(method, codes.OK.String()))

	called := false
	err := interceptor(nil, nil, &grpc.StreamServerInfo{FullMethod: method},
		func(srv interface{}, stream grpc.ServerStream) error {
			called = true
			return nil
		})
	if err != nil || !called {
		t.Fatalf("expected handler to run without error, err=%v called=%v", err, called)
	}

	after := testutil.ToFloat64(m.GRPCRequests.WithLabelValues(method, codes.OK.String()))
	if after-before != 1 {
		t.Errorf("expected one OK call recorded, got %v", after-before)
	}
}
