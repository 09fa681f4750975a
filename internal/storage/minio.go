package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"jobportal/internal/config"
)

// ErrBucketMissing 表示 Bucket 不存在且未开启自动创建。
var ErrBucketMissing = errors.New("bucket does not exist")

// Client 存放简历与企业 Logo。
// internal 用于读写；public 只用于签发浏览器可访问的预签名链接。
type Client struct {
	internal *minio.Client
	public   *minio.Client
	bucket   string
}

func parseBucketLookup(raw string) (minio.BucketLookupType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return minio.BucketLookupAuto, nil
	case "dns":
		return minio.BucketLookupDNS, nil
	case "path":
		return minio.BucketLookupPath, nil
	}
	return minio.BucketLookupAuto, fmt.Errorf("invalid minio bucket lookup %q", raw)
}

func newMinio(endpoint string, secure bool, lookup minio.BucketLookupType, cfg config.MinIOConfig) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
}

// NewClient 初始化内外两个 MinIO 客户端并确认 Bucket 可用。
// PublicEndpoint 为空时沿用内部地址签发链接。
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	lookup, err := parseBucketLookup(cfg.BucketLookup)
	if err != nil {
		return nil, err
	}

	internal, err := newMinio(cfg.Endpoint, cfg.UseSSL, lookup, cfg)
	if err != nil {
		return nil, fmt.Errorf("init internal minio client: %w", err)
	}

	public := internal
	if strings.TrimSpace(cfg.PublicEndpoint) != "" {
		u, err := url.Parse(cfg.PublicEndpoint)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid minio public endpoint %q", cfg.PublicEndpoint)
		}
		public, err = newMinio(u.Host, u.Scheme == "https", lookup, cfg)
		if err != nil {
			return nil, fmt.Errorf("init public minio client: %w", err)
		}
	}

	c := &Client{internal: internal, public: public, bucket: cfg.Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.ensureBucket(ctx, cfg.AutoCreateBucket, cfg.Region); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context, create bool, region string) error {
	err := c.Ping(ctx)
	if err == nil || !errors.Is(err, ErrBucketMissing) {
		return err
	}
	if !create {
		return fmt.Errorf("%w: %q (auto create disabled)", ErrBucketMissing, c.bucket)
	}
	if err := c.internal.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("make bucket %q: %w", c.bucket, err)
	}
	return nil
}

// Ping 检查 Bucket 是否可访问。
func (c *Client) Ping(ctx context.Context) error {
	exists, err := c.internal.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", c.bucket, err)
	}
	if !exists {
		return fmt.Errorf("%w: %q", ErrBucketMissing, c.bucket)
	}
	return nil
}

// Put 写入对象。
func (c *Client) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if _, err := c.internal.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// PresignGet 签发限时下载链接；downloadName 非空时浏览器按附件下载。
func (c *Client) PresignGet(ctx context.Context, key string, ttl time.Duration, downloadName string) (string, error) {
	var params url.Values
	if downloadName != "" {
		params = url.Values{}
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	}
	u, err := c.public.PresignedGetObject(ctx, c.bucket, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", key, err)
	}
	return u.String(), nil
}

// Remove 删除对象，对象不存在视为成功。
func (c *Client) Remove(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if err := c.internal.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil && !IsNotFound(err) {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// IsNotFound 判断错误是否表示对象不存在。
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}
