package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type stubSecretClient struct {
	accessFn func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	calls    int
}

func (s *stubSecretClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.calls++
	return s.accessFn(ctx, req)
}

func (s *stubSecretClient) Close() error { return nil }

func TestResolveSecretFetchesRemoteAndCaches(t *testing.T) {
	client := &stubSecretClient{
		accessFn: func(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			if req.Name != "projects/demo/secrets/stripe-key/versions/latest" {
				t.Fatalf("unexpected resource name %q", req.Name)
			}
			return &secretmanagerpb.AccessSecretVersionResponse{
				Payload: &secretmanagerpb.SecretPayload{Data: []byte("sk_test_123")},
			}, nil
		},
	}

	fetcher, err := NewFetcher(context.Background(),
		WithProject("demo"),
		WithSecretManagerClient(client),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	value, err := fetcher.ResolveSecret(context.Background(), "secret://stripe-key")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if value != "sk_test_123" {
		t.Fatalf("unexpected value %q", value)
	}

	if _, err := fetcher.ResolveSecret(context.Background(), "secret://stripe-key"); err != nil {
		t.Fatalf("cached ResolveSecret returned error: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 remote call, got %d", client.calls)
	}
}

func TestResolveSecretFallsBackToLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".secrets.local")
	if err := os.WriteFile(path, []byte("secret://jwt-secret=local-value\n"), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}

	client := &stubSecretClient{
		accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return nil, status.Error(codes.PermissionDenied, "denied")
		},
	}

	fetcher, err := NewFetcher(context.Background(),
		WithProject("demo"),
		WithSecretManagerClient(client),
		WithFallbackFile(path),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	value, err := fetcher.ResolveSecret(context.Background(), "secret://jwt-secret")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if value != "local-value" {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestResolveSecretRejectsUnknownScheme(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(&stubSecretClient{accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return nil, nil
		}}),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	if _, err := fetcher.ResolveSecret(context.Background(), "vault://nope"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}
