package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"jobportal/internal/api/middleware"
	"jobportal/internal/database"
	"jobportal/internal/notify"
)

const recentReviewsLimit = 5

// ReviewHandler 负责企业评价。
type ReviewHandler struct {
	db       *gorm.DB
	notifier *notify.Notifier
	logger   *slog.Logger
}

func NewReviewHandler(db *gorm.DB, notifier *notify.Notifier, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{db: db, notifier: notifier, logger: logger}
}

// ListReviews 返回企业最近的评价及评价人资料。
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	companyID, ok := idParam(c, "id")
	if !ok {
		return
	}

	items := make([]database.Review, 0, recentReviewsLimit)
	if err := h.db.WithContext(c.Request.Context()).
		Where("company_id = ?", companyID).
		Preload("Reviewer").
		Order("created_at DESC").
		Order("id DESC").
		Limit(recentReviewsLimit).
		Find(&items).Error; err != nil {
		loggerFrom(c, h.logger).Error("list reviews failed", slog.Any("error", err))
		Internal(c, "failed to load reviews")
		return
	}
	c.JSON(http.StatusOK, newList(items, int64(len(items))))
}

type createReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Title   string `json:"title" binding:"required,max=200"`
	Content string `json:"content" binding:"required"`
	Pros    string `json:"pros"`
	Cons    string `json:"cons"`
}

var createReviewMessages = fieldMessages{
	"rating.required":  "Please select a rating",
	"rating.min":       "Please select a rating",
	"rating.max":       "Rating must be between 1 and 5",
	"title.required":   "Title is required",
	"content.required": "Review content is required",
}

// CreateReview 提交评价并通知被评价的企业。
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	companyID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req createReviewRequest
	if !bindJSON(c, &req, createReviewMessages) {
		return
	}

	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger).With(slog.Uint64("user_id", uint64(userID)), slog.Uint64("company_id", uint64(companyID)))

	var company database.Company
	if err := h.db.WithContext(ctx).First(&company, companyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "company not found")
			return
		}
		logger.Error("load company failed", slog.Any("error", err))
		Internal(c, "failed to submit review")
		return
	}

	review := database.Review{
		CompanyID:  company.ID,
		ReviewerID: userID,
		Rating:     req.Rating,
		Title:      strings.TrimSpace(req.Title),
		Content:    strings.TrimSpace(req.Content),
		Pros:       strings.TrimSpace(req.Pros),
		Cons:       strings.TrimSpace(req.Cons),
	}
	if err := h.db.WithContext(ctx).Create(&review).Error; err != nil {
		logger.Error("create review failed", slog.Any("error", err))
		Internal(c, "failed to submit review")
		return
	}

	n := notify.NewReview(company.UserID, review.ID, review.Rating)
	if err := h.notifier.Notify(ctx, n, middleware.GetCorrelationID(c)); err != nil {
		logger.Warn("new review notification failed", slog.Any("error", err))
	}

	logger.Info("review submitted", slog.Uint64("review_id", uint64(review.ID)))
	c.JSON(http.StatusCreated, review)
}
