package grpcapi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

type stubBackend struct{ err error }

func (s stubBackend) Ping(context.Context) error { return s.err }

func startBufGRPC(t *testing.T, health *HealthServer) grpc_health_v1.HealthClient {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	server := NewServer(health, nil)

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Logf("grpc serve error: %v", err)
		}
	}()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.Dial()
	}
	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() {
		server.GracefulStop()
		_ = conn.Close()
		_ = listener.Close()
	})
	return grpc_health_v1.NewHealthClient(conn)
}

func TestHealthServing(t *testing.T) {
	client := startBufGRPC(t, NewHealthServer(stubBackend{}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, svc := range []string{"", ServiceName} {
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: svc})
		if err != nil {
			t.Fatalf("Check(%q) error: %v", svc, err)
		}
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			t.Fatalf("unexpected status: %s", resp.GetStatus())
		}
	}
}

func TestHealthBackendFailure(t *testing.T) {
	client := startBufGRPC(t, NewHealthServer(stubBackend{err: errors.New("boom")}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err == nil {
		t.Fatal("expected health check error")
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unavailable {
		t.Fatalf("unexpected status: %v", err)
	}
}

func TestHealthUnknownService(t *testing.T) {
	client := startBufGRPC(t, NewHealthServer(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: "archive"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
