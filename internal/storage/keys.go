package storage

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// 对象键前缀，按所有者分目录存放。
const (
	ResumePrefix = "resumes"
	LogoPrefix   = "company-logos"
)

const maxObjectKeyLen = 200

// ResumeKey 生成求职者简历的对象键。
func ResumeKey(userID uint, ext string) string {
	return fmt.Sprintf("%s/%d/%s%s", ResumePrefix, userID, uuid.NewString(), ext)
}

// LogoKey 生成企业 Logo 的对象键。
func LogoKey(companyID uint, ext string) string {
	return fmt.Sprintf("%s/%d/%s%s", LogoPrefix, companyID, uuid.NewString(), ext)
}

// IsOwnedKey 校验对象键属于 prefix/ownerID/ 目录，且扩展名在白名单内。
func IsOwnedKey(prefix string, ownerID uint, key string, allowedExt map[string]bool) bool {
	if key == "" || !utf8.ValidString(key) || len(key) > maxObjectKeyLen {
		return false
	}
	if !strings.HasPrefix(key, fmt.Sprintf("%s/%d/", prefix, ownerID)) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	return allowedExt[strings.ToLower(path.Ext(key))]
}
