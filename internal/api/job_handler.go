package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"jobportal/internal/api/middleware"
	"jobportal/internal/database"
	"jobportal/internal/jobs"
	"jobportal/internal/metrics"
	"jobportal/internal/notify"
)

// 首页与详情页的列表长度。
const (
	featuredJobsLimit = 6
	similarJobsLimit  = 3
)

// JobHandler 负责职位列表、详情、收藏、投递与发布。
type JobHandler struct {
	db       *gorm.DB
	notifier *notify.Notifier
	logger   *slog.Logger
}

func NewJobHandler(db *gorm.DB, notifier *notify.Notifier, logger *slog.Logger) *JobHandler {
	return &JobHandler{db: db, notifier: notifier, logger: logger}
}

// ListJobs 按条件检索在招职位。
func (h *JobHandler) ListJobs(c *gin.Context) {
	filter := jobs.Filter{
		Search:   c.Query("search"),
		Location: c.Query("location"),
		JobType:  c.Query("job_type"),
		Salary:   c.Query("salary"),
		Category: c.Query("category"),
		Company:  c.Query("company"),
	}
	page := jobs.Page{
		Limit:  queryInt(c, "limit", jobs.DefaultLimit),
		Offset: queryInt(c, "offset", 0),
	}

	items, total, err := jobs.List(c.Request.Context(), h.db, filter, page)
	if err != nil {
		loggerFrom(c, h.logger).Error("list jobs failed", slog.Any("error", err))
		Internal(c, "failed to load jobs")
		return
	}
	c.JSON(http.StatusOK, newList(items, total))
}

// FeaturedJobs 返回首页展示的最新职位。
func (h *JobHandler) FeaturedJobs(c *gin.Context) {
	items, err := jobs.Recent(c.Request.Context(), h.db, featuredJobsLimit)
	if err != nil {
		loggerFrom(c, h.logger).Error("list featured jobs failed", slog.Any("error", err))
		Internal(c, "failed to load jobs")
		return
	}
	c.JSON(http.StatusOK, newList(items, int64(len(items))))
}

// Stats 返回首页统计数字。
func (h *JobHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	var jobCount, companyCount, applicantCount int64

	err := h.db.WithContext(ctx).Model(&database.Job{}).Where("is_active = ?", true).Count(&jobCount).Error
	if err == nil {
		err = h.db.WithContext(ctx).Model(&database.Company{}).Count(&companyCount).Error
	}
	if err == nil {
		err = h.db.WithContext(ctx).Model(&database.Profile{}).
			Where("user_type = ?", database.UserTypeApplicant).
			Count(&applicantCount).Error
	}
	if err != nil {
		loggerFrom(c, h.logger).Error("load stats failed", slog.Any("error", err))
		Internal(c, "failed to load stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":       jobCount,
		"companies":  companyCount,
		"applicants": applicantCount,
	})
}

// GetJob 返回职位详情及企业信息。
func (h *JobHandler) GetJob(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job)
}

// SimilarJobs 返回同类型的其他在招职位。
func (h *JobHandler) SimilarJobs(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	items, err := jobs.Similar(c.Request.Context(), h.db, job, similarJobsLimit)
	if err != nil {
		loggerFrom(c, h.logger).Error("list similar jobs failed", slog.Any("error", err))
		Internal(c, "failed to load jobs")
		return
	}
	c.JSON(http.StatusOK, newList(items, int64(len(items))))
}

// JobState 返回当前用户对该职位的投递与收藏状态。
func (h *JobHandler) JobState(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	jobID, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var applied, bookmarked int64
	err := h.db.WithContext(ctx).Model(&database.Application{}).
		Where("job_id = ? AND applicant_id = ?", jobID, userID).Count(&applied).Error
	if err == nil {
		err = h.db.WithContext(ctx).Model(&database.Bookmark{}).
			Where("job_id = ? AND user_id = ?", jobID, userID).Count(&bookmarked).Error
	}
	if err != nil {
		loggerFrom(c, h.logger).Error("load job state failed", slog.Any("error", err))
		Internal(c, "failed to load job state")
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": applied > 0, "bookmarked": bookmarked > 0})
}

// ToggleBookmark 收藏或取消收藏职位。
func (h *JobHandler) ToggleBookmark(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	logger := loggerFrom(c, h.logger).With(slog.Uint64("user_id", uint64(userID)), slog.Uint64("job_id", uint64(job.ID)))
	bookmarked := false
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND job_id = ?", userID, job.ID).Delete(&database.Bookmark{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		bookmarked = true
		return tx.Create(&database.Bookmark{UserID: userID, JobID: job.ID}).Error
	})
	if err != nil {
		logger.Error("toggle bookmark failed", slog.Any("error", err))
		Internal(c, "failed to update bookmark")
		return
	}

	logger.Info("bookmark toggled", slog.Bool("bookmarked", bookmarked))
	c.JSON(http.StatusOK, gin.H{"bookmarked": bookmarked})
}

type applyRequest struct {
	ResumeURL   string `json:"resume_url" binding:"omitempty,max=2048"`
	CoverLetter string `json:"cover_letter" binding:"required,min=100"`
}

var applyMessages = fieldMessages{
	"cover_letter.required": "Cover letter is required",
	"cover_letter.min":      "Cover letter should be at least 100 characters",
}

const invalidResumeURLMessage = "Please enter a valid URL"

// Apply 投递职位，并通知发布该职位的企业。
func (h *JobHandler) Apply(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req applyRequest
	if !bindJSON(c, &req, applyMessages) {
		return
	}
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	if !job.IsActive {
		Conflict(c, "job is no longer accepting applications")
		return
	}

	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger).With(slog.Uint64("user_id", uint64(userID)), slog.Uint64("job_id", uint64(job.ID)))

	resumeURL := strings.TrimSpace(req.ResumeURL)
	if resumeURL != "" && !acceptableResume(resumeURL, userID) {
		ValidationFailed(c, map[string]string{"resume_url": invalidResumeURLMessage})
		return
	}
	if resumeURL == "" {
		var profile database.Profile
		if err := h.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("load profile failed", slog.Any("error", err))
			Internal(c, "failed to submit application")
			return
		}
		resumeURL = profile.ResumeURL
	}
	if resumeURL == "" {
		ValidationFailed(c, map[string]string{"resume_url": "Resume URL is required"})
		return
	}

	application := database.Application{
		JobID:       job.ID,
		ApplicantID: userID,
		ResumeURL:   resumeURL,
		CoverLetter: strings.TrimSpace(req.CoverLetter),
		Status:      database.StatusPending,
	}
	if err := h.db.WithContext(ctx).Create(&application).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Conflict(c, "you have already applied for this job")
			return
		}
		logger.Error("create application failed", slog.Any("error", err))
		Internal(c, "failed to submit application")
		return
	}

	if job.Company != nil {
		n := notify.NewApplication(job.Company.UserID, job.ID, job.Title)
		if err := h.notifier.Notify(ctx, n, middleware.GetCorrelationID(c)); err != nil {
			logger.Warn("new application notification failed", slog.Any("error", err))
		}
	}

	metrics.ApplicationSubmitted()
	logger.Info("application submitted", slog.Uint64("application_id", uint64(application.ID)))
	c.JSON(http.StatusCreated, application)
}

type createJobRequest struct {
	Title               string     `json:"title" binding:"required,max=200"`
	Location            string     `json:"location" binding:"required,max=200"`
	SalaryRange         string     `json:"salary_range" binding:"required,max=100"`
	JobType             string     `json:"job_type" binding:"required,oneof=Full-time Part-time Contract Freelance Internship"`
	Description         string     `json:"description" binding:"required,min=100"`
	Requirements        string     `json:"requirements" binding:"required"`
	Category            string     `json:"category" binding:"max=100"`
	ExperienceLevel     string     `json:"experience_level" binding:"max=100"`
	Benefits            string     `json:"benefits"`
	RemoteOption        bool       `json:"remote_option"`
	ApplicationDeadline *time.Time `json:"application_deadline"`
}

var createJobMessages = fieldMessages{
	"title.required":        "Job title is required",
	"location.required":     "Location is required",
	"salary_range.required": "Salary range is required",
	"job_type.required":     "Job type is required",
	"description.required":  "Job description is required",
	"description.min":       "Description should be at least 100 characters",
	"requirements.required": "Requirements are required",
}

// CreateJob 发布新职位，校验失败时不会写库。
func (h *JobHandler) CreateJob(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req createJobRequest
	if !bindJSON(c, &req, createJobMessages) {
		return
	}

	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	company, ok := companyForUser(c, h.db, userID, logger)
	if !ok {
		return
	}

	job := database.Job{
		CompanyID:           company.ID,
		Title:               strings.TrimSpace(req.Title),
		Description:         req.Description,
		Requirements:        req.Requirements,
		Location:            strings.TrimSpace(req.Location),
		SalaryRange:         strings.TrimSpace(req.SalaryRange),
		JobType:             req.JobType,
		Category:            strings.TrimSpace(req.Category),
		ExperienceLevel:     strings.TrimSpace(req.ExperienceLevel),
		Benefits:            req.Benefits,
		RemoteOption:        req.RemoteOption,
		ApplicationDeadline: req.ApplicationDeadline,
		IsActive:            true,
	}
	if err := h.db.WithContext(ctx).Create(&job).Error; err != nil {
		logger.Error("create job failed", slog.Any("error", err))
		Internal(c, "failed to post job")
		return
	}
	job.Company = &company

	logger.Info("job posted", slog.Uint64("job_id", uint64(job.ID)))
	c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) loadJob(c *gin.Context) (database.Job, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return database.Job{}, false
	}
	var job database.Job
	if err := h.db.WithContext(c.Request.Context()).Preload("Company").First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return database.Job{}, false
		}
		loggerFrom(c, h.logger).Error("load job failed", slog.Any("error", err))
		Internal(c, "failed to load job")
		return database.Job{}, false
	}
	return job, true
}

// companyForUser 读取企业用户的企业资料，缺失时写 404。
func companyForUser(c *gin.Context, db *gorm.DB, userID uint, logger *slog.Logger) (database.Company, bool) {
	var company database.Company
	if err := db.WithContext(c.Request.Context()).Where("user_id = ?", userID).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "company profile not found")
			return database.Company{}, false
		}
		logger.Error("load company failed", slog.Any("error", err))
		Internal(c, "failed to load company")
		return database.Company{}, false
	}
	return company, true
}
