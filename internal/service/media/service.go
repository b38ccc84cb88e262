package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"activity-hub/internal/config"
)

// Service resolves cover image keys to public URLs and removes an
// activity's objects once it is deleted. Uploads happen elsewhere.
type Service interface {
	PublicURL(key string) string
	ValidateKey(key string) error
	RemoveActivityObjects(ctx context.Context, activityID uuid.UUID, coverKey *string) (int, error)
}

// objectStore is the part of *minio.Client the service needs.
type objectStore interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObjects(ctx context.Context, bucket string, objectsCh <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
}

const removeTimeout = 2 * time.Minute

type service struct {
	client objectStore
	cfg    *config.Config
}

func NewService(client *minio.Client, cfg *config.Config) Service {
	if client == nil {
		return &service{cfg: cfg}
	}
	return &service{client: client, cfg: cfg}
}

// ActivityPrefix is where objects belonging to one activity live.
func ActivityPrefix(activityID uuid.UUID) string {
	return fmt.Sprintf("activities/%s/", activityID)
}

func (s *service) PublicURL(key string) string {
	scheme := "http"
	if s.cfg.MinIOPublicUseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.MinIOPublicEndpoint, s.cfg.MinIOBucket, url.PathEscape(key))
}

func (s *service) ValidateKey(key string) error {
	if key == "" || len(key) > 512 || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return errors.New("invalid cover image key")
	}
	return nil
}

// RemoveActivityObjects deletes the cover and everything under the
// activity's prefix. It returns the number of objects removed.
func (s *service) RemoveActivityObjects(ctx context.Context, activityID uuid.UUID, coverKey *string) (int, error) {
	if s.client == nil {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, removeTimeout)
	defer cancel()

	bucket := s.cfg.MinIOBucket
	objects := make(chan minio.ObjectInfo)
	produced := make(chan struct{})
	var listErr error
	sent := 0

	go func() {
		defer close(produced)
		defer close(objects)
		prefix := ActivityPrefix(activityID)
		if coverKey != nil && *coverKey != "" && !strings.HasPrefix(*coverKey, prefix) {
			select {
			case objects <- minio.ObjectInfo{Key: *coverKey}:
				sent++
			case <-ctx.Done():
				return
			}
		}
		for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if obj.Err != nil {
				listErr = obj.Err
				return
			}
			select {
			case objects <- obj:
				sent++
			case <-ctx.Done():
				return
			}
		}
	}()

	var errs []error
	for rErr := range s.client.RemoveObjects(ctx, bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("remove %s: %w", rErr.ObjectName, rErr.Err))
	}
	// RemoveObjects may return before reading every object.
	cancel()
	<-produced

	removed := sent - len(errs)
	if listErr != nil {
		errs = append(errs, fmt.Errorf("list objects: %w", listErr))
	}
	return removed, errors.Join(errs...)
}
