// Package storage mirrors inbound message attachments into object storage.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"inkflow_backend/platform/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Mirror copies attachment URLs into a MinIO bucket so assets survive the
// platform CDN's URL expiry. A nil Mirror means storage is not configured.
type Mirror struct {
	client     *minio.Client
	bucket     string
	httpClient *http.Client
}

// NewMirror creates the asset mirror, or nil when MinIO is not configured.
func NewMirror(cfg config.StorageConfig) (*Mirror, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Mirror{
		client:     client,
		bucket:     cfg.GetMinioBucketClientAssets(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// IsConfigured reports whether mirroring is available.
func (m *Mirror) IsConfigured() bool {
	return m != nil && m.client != nil
}

// MirrorURL downloads the source URL and stores it under an org/client scoped
// object key, which it returns.
func (m *Mirror) MirrorURL(ctx context.Context, orgID, clientID uuid.UUID, srcURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("attachment download returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectKey := fmt.Sprintf("%s/%s/%s", orgID, clientID, uuid.New())
	_, err = m.client.PutObject(ctx, m.bucket, objectKey, resp.Body, resp.ContentLength, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment %s: %w", objectKey, err)
	}
	return objectKey, nil
}
