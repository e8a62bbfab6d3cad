package relay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Publisher makes a converted model reachable and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, localPath, name string) (string, error)
}

// LocalPublisher serves models from the upload directory under /uploads.
type LocalPublisher struct {
	BaseURL string
}

func (p LocalPublisher) Publish(_ context.Context, _, name string) (string, error) {
	return strings.TrimSuffix(p.BaseURL, "/") + "/uploads/" + name, nil
}

// MinioPublisher uploads models to a MinIO or S3 bucket.
type MinioPublisher struct {
	client    *minio.Client
	bucket    string
	publicURL string
	prefix    string
}

// NewMinioPublisherFromEnv initialises a publisher from MINIO_ENDPOINT,
// MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET. It returns nil, nil
// when any of them is unset. MINIO_USE_SSL and MINIO_PUBLIC_URL are
// optional.
func NewMinioPublisherFromEnv(ctx context.Context) (*MinioPublisher, error) {
	endpoint := strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	accessKey := strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	secretKey := strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY"))
	bucket := strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, nil
	}

	useSSL := strings.EqualFold(strings.TrimSpace(os.Getenv("MINIO_USE_SSL")), "true")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("relay: init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("relay: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("relay: create bucket: %w", err)
		}
	}

	publicURL := strings.TrimSpace(os.Getenv("MINIO_PUBLIC_URL"))
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}
	return &MinioPublisher{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		prefix:    "models",
	}, nil
}

// Publish uploads the file at localPath as <prefix>/<name>.
func (p *MinioPublisher) Publish(ctx context.Context, localPath, name string) (string, error) {
	if p == nil || p.client == nil {
		return "", errors.New("relay: model storage not configured")
	}
	object := path.Join(p.prefix, name)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	_, err := p.client.FPutObject(ctx, p.bucket, object, localPath, minio.PutObjectOptions{
		ContentType:  "model/gltf-binary",
		CacheControl: "public, max-age=604800",
	})
	if err != nil {
		return "", fmt.Errorf("relay: upload model: %w", err)
	}
	return p.objectURL(object), nil
}

func (p *MinioPublisher) objectURL(object string) string {
	return fmt.Sprintf("%s/%s/%s", p.publicURL, p.bucket, strings.TrimPrefix(object, "/"))
}
