package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"jobportal/internal/api/middleware"
	"jobportal/internal/applications"
	"jobportal/internal/database"
	"jobportal/internal/metrics"
	"jobportal/internal/notify"
	"jobportal/internal/scan"
	"jobportal/internal/storage"
)

// EmployerHandler 提供企业仪表盘的数据与操作。
type EmployerHandler struct {
	db           *gorm.DB
	notifier     *notify.Notifier
	uploads      uploader
	logger       *slog.Logger
	maxLogoBytes int64
}

func NewEmployerHandler(db *gorm.DB, notifier *notify.Notifier, storageClient ObjectStorage, scanner scan.Scanner, logger *slog.Logger, maxLogoBytes int64) *EmployerHandler {
	return &EmployerHandler{
		db:           db,
		notifier:     notifier,
		uploads:      uploader{storage: storageClient, scanner: scanner},
		logger:       logger,
		maxLogoBytes: maxLogoBytes,
	}
}

// GetCompany 返回当前企业资料。
func (h *EmployerHandler) GetCompany(c *gin.Context) {
	company, ok := h.company(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, company)
}

type updateCompanyRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=5000"`
	Industry    string `json:"industry" binding:"max=100"`
	Website     string `json:"website" binding:"omitempty,url"`
	Location    string `json:"location" binding:"max=200"`
	FoundedYear int    `json:"founded_year" binding:"omitempty,min=1800,max=2100"`
	CompanySize string `json:"company_size" binding:"max=50"`
}

// UpdateCompany 更新企业资料。
func (h *EmployerHandler) UpdateCompany(c *gin.Context) {
	var req updateCompanyRequest
	if !bindJSON(c, &req, fieldMessages{"name.required": "Company name is required"}) {
		return
	}
	company, ok := h.company(c)
	if !ok {
		return
	}

	company.Name = strings.TrimSpace(req.Name)
	company.Description = strings.TrimSpace(req.Description)
	company.Industry = strings.TrimSpace(req.Industry)
	company.Website = req.Website
	company.Location = strings.TrimSpace(req.Location)
	company.FoundedYear = req.FoundedYear
	company.CompanySize = strings.TrimSpace(req.CompanySize)

	if err := h.db.WithContext(c.Request.Context()).Save(&company).Error; err != nil {
		loggerFrom(c, h.logger).Error("update company failed", slog.Any("error", err))
		Internal(c, "failed to update company")
		return
	}
	c.JSON(http.StatusOK, company)
}

// UploadLogo 上传企业 Logo，logo_url 保存对象键。
func (h *EmployerHandler) UploadLogo(c *gin.Context) {
	company, ok := h.company(c)
	if !ok {
		return
	}
	logger := loggerFrom(c, h.logger).With(slog.Uint64("company_id", uint64(company.ID)))

	rule := uploadRule{maxBytes: h.maxLogoBytes, types: logoTypes}
	key, ok := h.uploads.receive(c, rule, func(ext string) string { return storage.LogoKey(company.ID, ext) }, logger)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	oldKey := company.LogoURL
	if err := h.db.WithContext(ctx).Model(&company).Update("logo_url", key).Error; err != nil {
		logger.Error("save logo key failed", slog.Any("error", err))
		_ = h.uploads.storage.Remove(ctx, key)
		Internal(c, "failed to save logo")
		return
	}
	h.uploads.replaceObject(ctx, oldKey, storage.LogoPrefix, company.ID, logoTypes, logger)

	url, err := h.uploads.storage.PresignGet(ctx, key, presignedURLTTL, "")
	if err != nil {
		logger.Warn("generate logo url failed", slog.Any("error", err))
	}
	c.JSON(http.StatusCreated, gin.H{"logo_url": key, "preview_url": url})
}

type employerJob struct {
	database.Job
	ApplicationCount int64 `json:"application_count"`
}

// ListJobs 返回企业全部职位（含已下架）及各自的投递数。
func (h *EmployerHandler) ListJobs(c *gin.Context) {
	company, ok := h.company(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger)

	var items []database.Job
	if err := h.db.WithContext(ctx).
		Where("company_id = ?", company.ID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&items).Error; err != nil {
		logger.Error("list company jobs failed", slog.Any("error", err))
		Internal(c, "failed to load jobs")
		return
	}

	counts := make(map[uint]int64, len(items))
	if len(items) > 0 {
		ids := make([]uint, 0, len(items))
		for _, j := range items {
			ids = append(ids, j.ID)
		}
		var rows []struct {
			JobID uint
			Count int64
		}
		if err := h.db.WithContext(ctx).Model(&database.Application{}).
			Select("job_id, COUNT(*) AS count").
			Where("job_id IN ?", ids).
			Group("job_id").
			Scan(&rows).Error; err != nil {
			logger.Error("count applications failed", slog.Any("error", err))
			Internal(c, "failed to load jobs")
			return
		}
		for _, r := range rows {
			counts[r.JobID] = r.Count
		}
	}

	out := make([]employerJob, 0, len(items))
	for _, j := range items {
		out = append(out, employerJob{Job: j, ApplicationCount: counts[j.ID]})
	}
	c.JSON(http.StatusOK, newList(out, int64(len(out))))
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetJobActive 上架或下架职位，返回更新后的记录。
func (h *EmployerHandler) SetJobActive(c *gin.Context) {
	var req setActiveRequest
	if !bindJSON(c, &req, nil) {
		return
	}
	company, ok := h.company(c)
	if !ok {
		return
	}
	jobID, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var job database.Job
	if err := h.db.WithContext(ctx).Where("id = ? AND company_id = ?", jobID, company.ID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return
		}
		loggerFrom(c, h.logger).Error("load job failed", slog.Any("error", err))
		Internal(c, "failed to update job")
		return
	}
	if err := h.db.WithContext(ctx).Model(&job).Update("is_active", *req.IsActive).Error; err != nil {
		loggerFrom(c, h.logger).Error("update job active failed", slog.Any("error", err))
		Internal(c, "failed to update job")
		return
	}
	job.IsActive = *req.IsActive
	c.JSON(http.StatusOK, job)
}

type employerApplication struct {
	database.Application
	Actions []applications.Action `json:"actions"`
}

// ListApplications 返回投递到本企业职位的申请，附带可执行操作。
func (h *EmployerHandler) ListApplications(c *gin.Context) {
	company, ok := h.company(c)
	if !ok {
		return
	}

	query := h.db.WithContext(c.Request.Context()).
		Joins("JOIN jobs ON jobs.id = applications.job_id").
		Where("jobs.company_id = ?", company.ID).
		Select("applications.*").
		Preload("Job").
		Preload("Applicant").
		Order("applications.created_at DESC").
		Order("applications.id DESC")

	if status := strings.TrimSpace(c.Query("status")); status != "" && status != "all" {
		if !applications.IsValidStatus(status) {
			BadRequest(c, "invalid status")
			return
		}
		query = query.Where("applications.status = ?", status)
	}
	if raw := strings.TrimSpace(c.Query("job_id")); raw != "" && raw != "all" {
		var jobID uint
		if _, err := fmt.Sscan(raw, &jobID); err != nil || jobID == 0 {
			BadRequest(c, "invalid job_id")
			return
		}
		query = query.Where("applications.job_id = ?", jobID)
	}

	var items []database.Application
	if err := query.Find(&items).Error; err != nil {
		loggerFrom(c, h.logger).Error("list applications failed", slog.Any("error", err))
		Internal(c, "failed to load applications")
		return
	}

	out := make([]employerApplication, 0, len(items))
	for _, a := range items {
		out = append(out, employerApplication{Application: a, Actions: applications.AvailableActions(a.Status)})
	}
	c.JSON(http.StatusOK, newList(out, int64(len(out))))
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateApplicationStatus 按生命周期推进投递状态，并通知求职者。
func (h *EmployerHandler) UpdateApplicationStatus(c *gin.Context) {
	var req updateStatusRequest
	if !bindJSON(c, &req, nil) {
		return
	}
	application, ok := h.application(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger).With(
		slog.Uint64("application_id", uint64(application.ID)),
		slog.String("from", application.Status),
		slog.String("to", req.Status),
	)

	if err := applications.Transition(application.Status, req.Status); err != nil {
		logger.Info("status transition rejected")
		Conflict(c, err.Error())
		return
	}

	// 条件更新防止并发请求重复推进同一状态。
	res := h.db.WithContext(ctx).Model(&database.Application{}).
		Where("id = ? AND status = ?", application.ID, application.Status).
		Update("status", req.Status)
	if res.Error != nil {
		logger.Error("update application status failed", slog.Any("error", res.Error))
		Internal(c, "failed to update application")
		return
	}
	if res.RowsAffected == 0 {
		Conflict(c, "application status changed concurrently")
		return
	}
	application.Status = req.Status
	metrics.ApplicationStatusChanged(req.Status)

	jobTitle := ""
	if application.Job != nil {
		jobTitle = application.Job.Title
	}
	if n := notify.StatusChanged(application.ApplicantID, application.JobID, req.Status, jobTitle); n != nil {
		if err := h.notifier.Notify(ctx, n, middleware.GetCorrelationID(c)); err != nil {
			logger.Warn("status notification failed", slog.Any("error", err))
		}
	}

	logger.Info("application status updated")
	c.JSON(http.StatusOK, employerApplication{
		Application: application,
		Actions:     applications.AvailableActions(application.Status),
	})
}

// ApplicationResumeLink 返回申请人简历的临时下载链接；外部链接原样返回。
func (h *EmployerHandler) ApplicationResumeLink(c *gin.Context) {
	application, ok := h.application(c)
	if !ok {
		return
	}
	ref := application.ResumeURL
	if ref == "" {
		NotFound(c, "resume not provided")
		return
	}
	if !isStoredResume(ref) {
		if !isExternalResumeURL(ref) {
			NotFound(c, "resume not available")
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": ref})
		return
	}
	if !storage.IsOwnedKey(storage.ResumePrefix, application.ApplicantID, ref, extSet(resumeTypes)) {
		Forbidden(c, "access denied")
		return
	}

	filename := fmt.Sprintf("application-%d%s", application.ID, path.Ext(ref))
	url, err := h.uploads.storage.PresignGet(c.Request.Context(), ref, presignedURLTTL, filename)
	if err != nil {
		if storage.IsNotFound(err) {
			NotFound(c, "resume not found")
			return
		}
		loggerFrom(c, h.logger).Error("generate presigned url", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Stats 返回企业仪表盘统计。
func (h *EmployerHandler) Stats(c *gin.Context) {
	company, ok := h.company(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var totalJobs, activeJobs int64
	err := h.db.WithContext(ctx).Model(&database.Job{}).Where("company_id = ?", company.ID).Count(&totalJobs).Error
	if err == nil {
		err = h.db.WithContext(ctx).Model(&database.Job{}).
			Where("company_id = ? AND is_active = ?", company.ID, true).Count(&activeJobs).Error
	}
	var counts statusCounts
	if err == nil {
		counts, err = applicationStatusCounts(h.db.WithContext(ctx).
			Joins("JOIN jobs ON jobs.id = applications.job_id").
			Where("jobs.company_id = ?", company.ID))
	}
	if err != nil {
		loggerFrom(c, h.logger).Error("load employer stats failed", slog.Any("error", err))
		Internal(c, "failed to load stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_jobs":         totalJobs,
		"active_jobs":        activeJobs,
		"total_applications": counts.total,
		"pending":            counts.byStatus[database.StatusPending],
		"reviewing":          counts.byStatus[database.StatusReviewing],
		"accepted":           counts.byStatus[database.StatusAccepted],
		"rejected":           counts.byStatus[database.StatusRejected],
	})
}

func (h *EmployerHandler) company(c *gin.Context) (database.Company, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return database.Company{}, false
	}
	return companyForUser(c, h.db, userID, loggerFrom(c, h.logger))
}

// application 加载属于当前企业职位的投递，其他企业的投递按不存在处理。
func (h *EmployerHandler) application(c *gin.Context) (database.Application, bool) {
	company, ok := h.company(c)
	if !ok {
		return database.Application{}, false
	}
	id, ok := idParam(c, "id")
	if !ok {
		return database.Application{}, false
	}

	var application database.Application
	err := h.db.WithContext(c.Request.Context()).
		Joins("JOIN jobs ON jobs.id = applications.job_id").
		Where("applications.id = ? AND jobs.company_id = ?", id, company.ID).
		Select("applications.*").
		Preload("Job").
		First(&application).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "application not found")
			return database.Application{}, false
		}
		loggerFrom(c, h.logger).Error("load application failed", slog.Any("error", err))
		Internal(c, "failed to load application")
		return database.Application{}, false
	}
	return application, true
}
