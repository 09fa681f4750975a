package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobportal/internal/database"
)

func TestCreateReviewNotifiesCompany(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	ada := env.applicant("Ada")
	path := fmt.Sprintf("/v1/companies/%d/reviews", acme.Company.ID)

	w := env.do(http.MethodPost, path, ada.Token, map[string]any{"rating": 0, "title": "ok", "content": "fine"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please select a rating", decode[errorBody](t, w).Fields["rating"])

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, path, acme.Token, map[string]any{
		"rating": 4, "title": "Self", "content": "praise",
	}).Code)

	w = env.do(http.MethodPost, "/v1/companies/9999/reviews", ada.Token, map[string]any{
		"rating": 4, "title": "Ghost", "content": "nobody home",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, path, ada.Token, map[string]any{
		"rating": 4, "title": " Great team ", "content": "Good mentoring", "pros": "remote",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	review := decode[database.Review](t, w)
	assert.Equal(t, "Great team", review.Title)
	assert.Equal(t, ada.UserID, review.ReviewerID)

	var n database.Notification
	require.NoError(t, env.db.Where("user_id = ?", acme.UserID).First(&n).Error)
	assert.Equal(t, database.NotificationReview, n.Type)
	assert.Equal(t, "Someone has left a 4-star review for your company.", n.Message)
	require.NotNil(t, n.RelatedID)
	assert.Equal(t, review.ID, *n.RelatedID)
}

func TestListReviewsKeepsLatestFive(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	ada := env.applicant("Ada")
	for i := 1; i <= 7; i++ {
		require.NoError(t, env.db.Create(&database.Review{
			CompanyID:  acme.Company.ID,
			ReviewerID: ada.UserID,
			Rating:     3,
			Title:      fmt.Sprintf("Review %d", i),
			Content:    "text",
		}).Error)
	}

	w := env.do(http.MethodGet, fmt.Sprintf("/v1/companies/%d/reviews", acme.Company.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[listResponse[database.Review]](t, w)
	require.Len(t, resp.Items, recentReviewsLimit)
	assert.Equal(t, "Review 7", resp.Items[0].Title)
	require.NotNil(t, resp.Items[0].Reviewer)
	assert.Equal(t, "Ada", resp.Items[0].Reviewer.FullName)
}
