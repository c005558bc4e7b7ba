package handlers

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/carsi-commerce/api/internal/platform/auth"
	"github.com/carsi-commerce/api/internal/platform/httpx"
	"github.com/carsi-commerce/api/internal/platform/storage"
)

const (
	maxUploadBodySize = 8 * 1024

	defaultUploadMaxSize = 5 << 20
	defaultUploadExpiry  = 15 * time.Minute
)

// Product and avatar images only. The bucket never receives arbitrary files.
var defaultAllowedUploadTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
}

// UploadSigner issues signed upload URLs for a bucket object.
type UploadSigner interface {
	SignedUploadURL(ctx context.Context, bucket, object string, opts storage.UploadOptions) (storage.SignedURLResult, error)
}

// UploadHandlers issues short-lived signed PUT URLs so clients upload images
// directly to the bucket instead of streaming them through the API.
type UploadHandlers struct {
	authn  *auth.Authenticator
	signer UploadSigner
	bucket string

	idGenerator func() string
}

// UploadOption customises upload handler behaviour.
type UploadOption func(*UploadHandlers)

// WithUploadIDGenerator overrides object name randomisation, for tests.
func WithUploadIDGenerator(gen func() string) UploadOption {
	return func(h *UploadHandlers) {
		if gen != nil {
			h.idGenerator = gen
		}
	}
}

// NewUploadHandlers constructs handlers that sign uploads into the given bucket.
func NewUploadHandlers(authn *auth.Authenticator, signer UploadSigner, bucket string, opts ...UploadOption) *UploadHandlers {
	h := &UploadHandlers{
		authn:  authn,
		signer: signer,
		bucket: strings.TrimSpace(bucket),
		idGenerator: func() string {
			return strings.ToLower(ulid.Make().String())
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /uploads endpoints onto the provided router.
func (h *UploadHandlers) Routes(r chi.Router) {
	if r == nil || h.authn == nil {
		return
	}
	r.Group(func(authed chi.Router) {
		authed.Use(h.authn.RequireAuth())
		authed.Post("/sign", h.signUpload)
	})
}

type signUploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

func (h *UploadHandlers) signUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.signer == nil || h.bucket == "" {
		httpx.WriteError(ctx, w, httpx.NewError("upload_service_unavailable", "upload service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req signUploadRequest
	if err := decodeJSONBody(r, maxUploadBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	object := h.objectName(identity.UserID, req.FileName)
	result, err := h.signer.SignedUploadURL(ctx, h.bucket, object, storage.UploadOptions{
		ContentType:         req.ContentType,
		AllowedContentTypes: defaultAllowedUploadTypes,
		MaxSize:             defaultUploadMaxSize,
		ExpiresIn:           defaultUploadExpiry,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_upload_request", "Yükleme isteği geçersiz", http.StatusBadRequest))
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"uploadUrl": result.URL,
		"method":    result.Method,
		"object":    object,
		"headers":   result.Headers,
		"expiresAt": formatTime(result.ExpiresAt),
	})
}

// objectName scopes uploads per user and randomises the name so clients can
// never overwrite each other's objects.
func (h *UploadHandlers) objectName(userID, fileName string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if len(ext) > 8 || strings.ContainsAny(ext, "/\\ ") {
		ext = ""
	}
	return fmt.Sprintf("uploads/%s/%s%s", userID, h.idGenerator(), ext)
}

var _ UploadSigner = (*storage.Client)(nil)
