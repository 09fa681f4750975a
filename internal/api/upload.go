package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"jobportal/internal/metrics"
	"jobportal/internal/scan"
	"jobportal/internal/storage"
)

// 预签名链接的有效期。
const presignedURLTTL = 15 * time.Minute

// ObjectStorage 是 storage.Client 在 API 层用到的能力。
type ObjectStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration, downloadName string) (string, error)
	Remove(ctx context.Context, key string) error
}

var (
	resumeTypes = map[string]string{
		".pdf":  "application/pdf",
		".doc":  "application/msword",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
	logoTypes = map[string]string{
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".webp": "image/webp",
	}
)

func extSet(types map[string]string) map[string]bool {
	out := make(map[string]bool, len(types))
	for ext := range types {
		out[ext] = true
	}
	return out
}

// uploader 负责接收 multipart 文件、扫描病毒并写入对象存储。
type uploader struct {
	storage ObjectStorage
	scanner scan.Scanner
}

type uploadRule struct {
	maxBytes int64
	types    map[string]string
}

// receive 处理表单字段 file，失败时已写出响应。
func (u uploader) receive(c *gin.Context, rule uploadRule, keyFor func(ext string) string, logger *slog.Logger) (string, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		metrics.UploadRejected("missing")
		BadRequest(c, "missing file")
		return "", false
	}
	if rule.maxBytes > 0 && file.Size > rule.maxBytes {
		metrics.UploadRejected("too_large")
		BadRequest(c, "file too large")
		return "", false
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	contentType, ok := rule.types[ext]
	if !ok {
		metrics.UploadRejected("type")
		BadRequest(c, "unsupported file type")
		return "", false
	}

	ctx := c.Request.Context()
	if err := u.scanFile(ctx, file); err != nil {
		if errors.Is(err, scan.ErrInfected) {
			metrics.UploadRejected("infected")
			BadRequest(c, "malicious file detected")
			return "", false
		}
		logger.Error("scan file", slog.Any("error", err))
		Internal(c, "failed to scan file")
		return "", false
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return "", false
	}
	defer reader.Close()

	objectKey := keyFor(ext)
	if err := u.storage.Put(ctx, objectKey, reader, file.Size, contentType); err != nil {
		logger.Error("upload file", slog.String("object_key", objectKey), slog.Any("error", err))
		Internal(c, "failed to upload file")
		return "", false
	}
	return objectKey, true
}

func (u uploader) scanFile(ctx context.Context, file *multipart.FileHeader) error {
	if u.scanner == nil {
		return nil
	}
	reader, err := file.Open()
	if err != nil {
		return err
	}
	defer reader.Close()
	return u.scanner.Scan(ctx, reader)
}

// replaceObject 删除被替换的旧对象，失败只记录日志。
func (u uploader) replaceObject(ctx context.Context, oldKey, prefix string, ownerID uint, types map[string]string, logger *slog.Logger) {
	if oldKey == "" || !storage.IsOwnedKey(prefix, ownerID, oldKey, extSet(types)) {
		return
	}
	if err := u.storage.Remove(ctx, oldKey); err != nil {
		logger.Warn("delete replaced object failed", slog.String("object_key", oldKey), slog.Any("error", err))
	}
}

// isStoredResume 判断简历地址是否为本服务存储的对象键（而非外部 URL）。
func isStoredResume(ref string) bool {
	return strings.HasPrefix(ref, storage.ResumePrefix+"/")
}

// isExternalResumeURL 外部简历只接受带主机名的 http/https 链接。
func isExternalResumeURL(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Scheme, "http") || strings.EqualFold(u.Scheme, "https")
}

// acceptableResume 判断投递时填写的简历地址：外部 http(s) 链接，或本人上传的简历对象键。
func acceptableResume(ref string, applicantID uint) bool {
	if isStoredResume(ref) {
		return storage.IsOwnedKey(storage.ResumePrefix, applicantID, ref, extSet(resumeTypes))
	}
	return isExternalResumeURL(ref)
}
