package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobportal/internal/database"
)

func TestListJobsFiltersByJobType(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	env.job(acme.Company.ID, func(j *database.Job) { j.Title = "Summer Intern"; j.JobType = "Internship" })
	env.job(acme.Company.ID, func(j *database.Job) { j.Title = "Staff Engineer" })
	env.job(acme.Company.ID, func(j *database.Job) { j.Title = "Closed Intern"; j.JobType = "Internship"; j.IsActive = false })

	w := env.do(http.MethodGet, "/v1/jobs?job_type=Internship", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[listResponse[database.Job]](t, w)
	assert.EqualValues(t, 1, resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Summer Intern", resp.Items[0].Title)
	require.NotNil(t, resp.Items[0].Company)
	assert.Equal(t, "Acme", resp.Items[0].Company.Name)

	w = env.do(http.MethodGet, "/v1/jobs?search=nothing-matches", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"total":0}`, w.Body.String())
}

func TestGetJobNotFound(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/v1/jobs/999", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/v1/jobs/abc", "", nil).Code)
}

func TestToggleBookmarkTwice(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	job := env.job(acme.Company.ID, nil)
	ada := env.applicant("Ada")
	path := fmt.Sprintf("/v1/jobs/%d/bookmark", job.ID)

	w := env.do(http.MethodPost, path, ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"bookmarked":true}`, w.Body.String())

	state := env.do(http.MethodGet, fmt.Sprintf("/v1/jobs/%d/state", job.ID), ada.Token, nil)
	assert.JSONEq(t, `{"applied":false,"bookmarked":true}`, state.Body.String())

	w = env.do(http.MethodPost, path, ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bookmarked":false}`, w.Body.String())

	var count int64
	require.NoError(t, env.db.Model(&database.Bookmark{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBookmarkRequiresApplicant(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	job := env.job(acme.Company.ID, nil)

	w := env.do(http.MethodPost, fmt.Sprintf("/v1/jobs/%d/bookmark", job.ID), acme.Token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "/dashboard/employer", decode[errorBody](t, w).Redirect)
}

func TestApply(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	env.job(acme.Company.ID, nil)
	job := env.job(acme.Company.ID, func(j *database.Job) { j.Title = "Go Developer" })
	ada := env.applicant("Ada")
	path := fmt.Sprintf("/v1/jobs/%d/apply", job.ID)
	letter := strings.Repeat("I would love to join. ", 6)

	w := env.do(http.MethodPost, path, ada.Token, map[string]any{"cover_letter": "too short"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cover letter should be at least 100 characters", decode[errorBody](t, w).Fields["cover_letter"])

	w = env.do(http.MethodPost, path, ada.Token, map[string]any{"cover_letter": letter})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Resume URL is required", decode[errorBody](t, w).Fields["resume_url"])

	w = env.do(http.MethodPost, path, ada.Token, map[string]any{"cover_letter": letter, "resume_url": "https://cv.example.com/ada.pdf"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	app := decode[database.Application](t, w)
	assert.Equal(t, database.StatusPending, app.Status)

	var n database.Notification
	require.NoError(t, env.db.Where("user_id = ?", acme.UserID).First(&n).Error)
	assert.Equal(t, "New Job Application", n.Title)
	assert.Equal(t, "Someone has applied for the Go Developer position.", n.Message)
	require.NotNil(t, n.RelatedID)
	require.NotEqual(t, app.ID, job.ID)
	assert.Equal(t, job.ID, *n.RelatedID)

	w = env.do(http.MethodPost, path, ada.Token, map[string]any{"cover_letter": letter, "resume_url": "https://cv.example.com/ada.pdf"})
	assert.Equal(t, http.StatusConflict, w.Code)

	var count int64
	require.NoError(t, env.db.Model(&database.Application{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestApplyToInactiveJob(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	job := env.job(acme.Company.ID, func(j *database.Job) { j.IsActive = false })
	ada := env.applicant("Ada")

	w := env.do(http.MethodPost, fmt.Sprintf("/v1/jobs/%d/apply", job.ID), ada.Token, map[string]any{
		"cover_letter": strings.Repeat("x", 100),
		"resume_url":   "https://cv.example.com/ada.pdf",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateJobDescriptionLength(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")

	body := map[string]any{
		"title":         "Platform Engineer",
		"location":      "Lisbon",
		"salary_range":  "€70k - €90k",
		"job_type":      "Full-time",
		"description":   strings.Repeat("a", 99),
		"requirements":  "Kubernetes",
		"remote_option": true,
	}
	w := env.do(http.MethodPost, "/v1/jobs", acme.Token, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Description should be at least 100 characters", decode[errorBody](t, w).Fields["description"])
	var jobs int64
	require.NoError(t, env.db.Model(&database.Job{}).Count(&jobs).Error)
	assert.Zero(t, jobs)

	body["description"] = strings.Repeat("a", 100)
	w = env.do(http.MethodPost, "/v1/jobs", acme.Token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	job := decode[database.Job](t, w)
	assert.Equal(t, acme.Company.ID, job.CompanyID)
	assert.True(t, job.IsActive)
	assert.True(t, job.RemoteOption)

	body["job_type"] = "full-time"
	w = env.do(http.MethodPost, "/v1/jobs", acme.Token, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[errorBody](t, w).Fields, "job_type")
}

func TestCreateJobRequiresCompany(t *testing.T) {
	env := newTestEnv(t)
	ada := env.applicant("Ada")

	w := env.do(http.MethodPost, "/v1/jobs", ada.Token, map[string]any{"title": "x"})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "/dashboard/job-seeker", decode[errorBody](t, w).Redirect)
}

func TestFeaturedJobsAndStats(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	env.applicant("Ada")
	for i := 1; i <= 8; i++ {
		n := i
		env.job(acme.Company.ID, func(j *database.Job) { j.Title = fmt.Sprintf("Job %d", n) })
	}

	w := env.do(http.MethodGet, "/v1/jobs/featured", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	featured := decode[listResponse[database.Job]](t, w)
	require.Len(t, featured.Items, featuredJobsLimit)
	assert.Equal(t, "Job 8", featured.Items[0].Title)

	w = env.do(http.MethodGet, "/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jobs":8,"companies":1,"applicants":1}`, w.Body.String())
}

func TestJobState(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	job := env.job(acme.Company.ID, nil)
	ada := env.applicant("Ada")
	path := fmt.Sprintf("/v1/jobs/%d/state", job.ID)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, path, "", nil).Code)

	w := env.do(http.MethodGet, path, ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"applied":false,"bookmarked":false}`, w.Body.String())

	seedApplication(t, env, job.ID, ada.UserID, "x")
	require.NoError(t, env.db.Create(&database.Bookmark{UserID: ada.UserID, JobID: job.ID}).Error)

	w = env.do(http.MethodGet, path, ada.Token, nil)
	assert.JSONEq(t, `{"applied":true,"bookmarked":true}`, w.Body.String())
}

func TestApplyResumeURLMustBeHTTPOrOwnUpload(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	ada := env.applicant("Ada")
	bob := env.applicant("Bob")
	letter := strings.Repeat("I would love to join. ", 6)

	rejected := []string{
		"javascript:alert(document.cookie)",
		"data:text/html,<script>alert(1)</script>",
		"ftp://files.example.com/cv.pdf",
		"https://",
		"cv.example.com/ada.pdf",
		fmt.Sprintf("resumes/%d/cv.pdf", bob.UserID),
		fmt.Sprintf("resumes/%d/cv.exe", ada.UserID),
	}
	job := env.job(acme.Company.ID, nil)
	path := fmt.Sprintf("/v1/jobs/%d/apply", job.ID)
	for _, ref := range rejected {
		w := env.do(http.MethodPost, path, ada.Token, map[string]any{"cover_letter": letter, "resume_url": ref})
		require.Equal(t, http.StatusBadRequest, w.Code, ref)
		assert.Equal(t, "Please enter a valid URL", decode[errorBody](t, w).Fields["resume_url"], ref)
	}

	var count int64
	require.NoError(t, env.db.Model(&database.Application{}).Count(&count).Error)
	assert.Zero(t, count)

	accepted := []string{
		"HTTPS://cv.example.com/ada.pdf",
		"http://cv.example.com/ada.pdf",
		fmt.Sprintf("resumes/%d/cv.pdf", ada.UserID),
	}
	for _, ref := range accepted {
		job := env.job(acme.Company.ID, nil)
		w := env.do(http.MethodPost, fmt.Sprintf("/v1/jobs/%d/apply", job.ID), ada.Token, map[string]any{"cover_letter": letter, "resume_url": ref})
		require.Equal(t, http.StatusCreated, w.Code, ref+": "+w.Body.String())
		assert.Equal(t, ref, decode[database.Application](t, w).ResumeURL)
	}
}
