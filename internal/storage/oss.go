package storage

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSBucket is the subset of *oss.Bucket used here.
type OSSBucket interface {
	SignURL(objectKey string, method oss.HTTPMethod, expiredInSec int64, options ...oss.Option) (string, error)
	IsObjectExist(objectKey string, options ...oss.Option) (bool, error)
}

type OSSStore struct {
	bucket  OSSBucket
	baseURL string
}

func NewOSSStore(bucket OSSBucket, baseURL string) *OSSStore {
	return &OSSStore{
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// OSSBaseURL returns the virtual-hosted URL "https://{bucket}.{endpoint host}".
func OSSBaseURL(bucket, endpoint string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	return "https://" + bucket + "." + strings.TrimSuffix(host, "/")
}

// NewOSSClient opens a bucket, using the STS token when one is configured.
func NewOSSClient(endpoint, accessKey, secretKey, securityToken, bucketName string, timeout time.Duration) (*oss.Bucket, error) {
	opts := []oss.ClientOption{}
	if securityToken != "" {
		opts = append(opts, oss.SecurityToken(securityToken))
	}
	if timeout > 0 {
		secs := int64(math.Ceil(timeout.Seconds()))
		opts = append(opts, oss.Timeout(secs, secs))
	}

	client, err := oss.New(endpoint, accessKey, secretKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}

	bkt, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}
	return bkt, nil
}

func (s *OSSStore) IssueWriteURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("non-positive url ttl %s", ttl)
	}
	// OSS signs whole seconds; round down so the URL never outlives ttl.
	secs := int64(math.Floor(ttl.Seconds()))
	if secs < 1 {
		return "", fmt.Errorf("url ttl %s is shorter than one second", ttl)
	}

	signed, err := s.bucket.SignURL(path, oss.HTTPPut, secs, oss.ContentType(documentContentType))
	if err != nil {
		return "", fmt.Errorf("sign put %s: %w", path, err)
	}
	return signed, nil
}

func (s *OSSStore) Exists(ctx context.Context, path string) (bool, error) {
	ok, err := s.bucket.IsObjectExist(path, oss.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("head object %s: %w", path, err)
	}
	return ok, nil
}

func (s *OSSStore) ObjectURL(path string) string {
	return s.baseURL + "/" + path
}
