package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"jobportal/internal/applications"
	"jobportal/internal/database"
	"jobportal/internal/jobs"
	"jobportal/internal/scan"
	"jobportal/internal/storage"
)

// SeekerHandler 提供求职者仪表盘的数据。
type SeekerHandler struct {
	db             *gorm.DB
	uploads        uploader
	logger         *slog.Logger
	maxResumeBytes int64
}

func NewSeekerHandler(db *gorm.DB, storageClient ObjectStorage, scanner scan.Scanner, logger *slog.Logger, maxResumeBytes int64) *SeekerHandler {
	return &SeekerHandler{
		db:             db,
		uploads:        uploader{storage: storageClient, scanner: scanner},
		logger:         logger,
		maxResumeBytes: maxResumeBytes,
	}
}

// GetProfile 返回当前用户的个人资料。
func (h *SeekerHandler) GetProfile(c *gin.Context) {
	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, profile)
}

type updateProfileRequest struct {
	FullName     string   `json:"full_name" binding:"required,max=120"`
	Bio          string   `json:"bio" binding:"max=2000"`
	Skills       []string `json:"skills" binding:"max=50,dive,max=60"`
	Phone        string   `json:"phone" binding:"max=40"`
	Location     string   `json:"location" binding:"max=200"`
	LinkedInURL  string   `json:"linkedin_url" binding:"omitempty,url"`
	GitHubURL    string   `json:"github_url" binding:"omitempty,url"`
	PortfolioURL string   `json:"portfolio_url" binding:"omitempty,url"`
}

// UpdateProfile 更新个人资料，返回更新后的记录。
func (h *SeekerHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req, fieldMessages{"full_name.required": "Full name is required"}) {
		return
	}
	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}

	skills := make([]string, 0, len(req.Skills))
	for _, s := range req.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}

	profile.FullName = strings.TrimSpace(req.FullName)
	profile.Bio = strings.TrimSpace(req.Bio)
	profile.Skills = skills
	profile.Phone = strings.TrimSpace(req.Phone)
	profile.Location = strings.TrimSpace(req.Location)
	profile.LinkedInURL = req.LinkedInURL
	profile.GitHubURL = req.GitHubURL
	profile.PortfolioURL = req.PortfolioURL

	if err := h.db.WithContext(c.Request.Context()).Save(&profile).Error; err != nil {
		loggerFrom(c, h.logger).Error("update profile failed", slog.Any("error", err))
		Internal(c, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ListApplications 返回当前用户的投递记录，可按状态过滤。
func (h *SeekerHandler) ListApplications(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	query := h.db.WithContext(c.Request.Context()).
		Where("applicant_id = ?", userID).
		Preload("Job").
		Preload("Job.Company").
		Order("created_at DESC").
		Order("id DESC")
	if status := strings.TrimSpace(c.Query("status")); status != "" && status != "all" {
		if !applications.IsValidStatus(status) {
			BadRequest(c, "invalid status")
			return
		}
		query = query.Where("status = ?", status)
	}

	items := make([]database.Application, 0)
	if err := query.Find(&items).Error; err != nil {
		loggerFrom(c, h.logger).Error("list applications failed", slog.Any("error", err))
		Internal(c, "failed to load applications")
		return
	}
	c.JSON(http.StatusOK, newList(items, int64(len(items))))
}

// Stats 返回求职者仪表盘统计。
func (h *SeekerHandler) Stats(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	counts, err := applicationStatusCounts(h.db.WithContext(c.Request.Context()).Where("applicant_id = ?", userID))
	var bookmarks int64
	if err == nil {
		err = h.db.WithContext(c.Request.Context()).Model(&database.Bookmark{}).
			Where("user_id = ?", userID).Count(&bookmarks).Error
	}
	if err != nil {
		loggerFrom(c, h.logger).Error("load seeker stats failed", slog.Any("error", err))
		Internal(c, "failed to load stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_applications":    counts.total,
		"pending_applications":  counts.byStatus[database.StatusPending],
		"accepted_applications": counts.byStatus[database.StatusAccepted],
		"bookmarked_jobs":       bookmarks,
	})
}

// ListBookmarks 返回收藏的职位及其企业。
func (h *SeekerHandler) ListBookmarks(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	items := make([]database.Bookmark, 0)
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Preload("Job").
		Preload("Job.Company").
		Order("created_at DESC").
		Order("id DESC").
		Find(&items).Error; err != nil {
		loggerFrom(c, h.logger).Error("list bookmarks failed", slog.Any("error", err))
		Internal(c, "failed to load bookmarks")
		return
	}
	c.JSON(http.StatusOK, newList(items, int64(len(items))))
}

// DeleteBookmark 按收藏记录 ID 删除，只能删除自己的收藏。
func (h *SeekerHandler) DeleteBookmark(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	res := h.db.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", id, userID).Delete(&database.Bookmark{})
	if res.Error != nil {
		loggerFrom(c, h.logger).Error("delete bookmark failed", slog.Any("error", res.Error))
		Internal(c, "failed to delete bookmark")
		return
	}
	if res.RowsAffected == 0 {
		NotFound(c, "bookmark not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// Recommendations 根据个人技能推荐职位。
func (h *SeekerHandler) Recommendations(c *gin.Context) {
	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}
	items, err := jobs.Recommend(c.Request.Context(), h.db, profile.Skills, jobs.RecommendLimit)
	if err != nil {
		loggerFrom(c, h.logger).Error("recommend jobs failed", slog.Any("error", err))
		Internal(c, "failed to load recommendations")
		return
	}
	c.JSON(http.StatusOK, newList(items, int64(len(items))))
}

// UploadResume 上传简历并写入个人资料。
func (h *SeekerHandler) UploadResume(c *gin.Context) {
	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}
	logger := loggerFrom(c, h.logger).With(slog.Uint64("user_id", uint64(profile.UserID)))

	rule := uploadRule{maxBytes: h.maxResumeBytes, types: resumeTypes}
	key, ok := h.uploads.receive(c, rule, func(ext string) string { return storage.ResumeKey(profile.UserID, ext) }, logger)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	oldKey := profile.ResumeURL
	if err := h.db.WithContext(ctx).Model(&profile).Update("resume_url", key).Error; err != nil {
		logger.Error("save resume key failed", slog.Any("error", err))
		_ = h.uploads.storage.Remove(ctx, key)
		Internal(c, "failed to save resume")
		return
	}
	h.uploads.replaceObject(ctx, oldKey, storage.ResumePrefix, profile.UserID, resumeTypes, logger)

	logger.Info("resume uploaded", slog.String("object_key", key))
	c.JSON(http.StatusCreated, gin.H{"resume_url": key})
}

// ResumeLink 返回自己简历的临时下载链接。
func (h *SeekerHandler) ResumeLink(c *gin.Context) {
	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}
	if profile.ResumeURL == "" {
		NotFound(c, "resume not uploaded")
		return
	}
	if !isStoredResume(profile.ResumeURL) {
		if !isExternalResumeURL(profile.ResumeURL) {
			NotFound(c, "resume not available")
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": profile.ResumeURL})
		return
	}
	if !storage.IsOwnedKey(storage.ResumePrefix, profile.UserID, profile.ResumeURL, extSet(resumeTypes)) {
		Forbidden(c, "access denied")
		return
	}

	url, err := h.uploads.storage.PresignGet(c.Request.Context(), profile.ResumeURL, presignedURLTTL, "")
	if err != nil {
		loggerFrom(c, h.logger).Error("generate presigned url", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *SeekerHandler) loadProfile(c *gin.Context) (database.Profile, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return database.Profile{}, false
	}
	var profile database.Profile
	if err := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "profile not found")
			return database.Profile{}, false
		}
		loggerFrom(c, h.logger).Error("load profile failed", slog.Any("error", err))
		Internal(c, "failed to load profile")
		return database.Profile{}, false
	}
	return profile, true
}

type statusCounts struct {
	total    int64
	byStatus map[string]int64
}

// applicationStatusCounts 对 scope 内的投递按状态分组计数。
func applicationStatusCounts(scope *gorm.DB) (statusCounts, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := scope.Model(&database.Application{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return statusCounts{}, err
	}
	out := statusCounts{byStatus: make(map[string]int64, len(rows))}
	for _, r := range rows {
		out.byStatus[r.Status] = r.Count
		out.total += r.Count
	}
	return out, nil
}
