package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"jobportal/internal/database"
	"jobportal/internal/scan"
)

func TestUploadResumeThenApplyWithStoredResume(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	job := env.job(acme.Company.ID, nil)
	ada := env.applicant("Ada")

	w := env.upload("/v1/seeker/resume", ada.Token, "cv.exe", []byte("MZ"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.upload("/v1/seeker/resume", ada.Token, "CV.PDF", []byte("%PDF-1.7"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	key := decode[map[string]string](t, w)["resume_url"]
	assert.True(t, strings.HasPrefix(key, fmt.Sprintf("resumes/%d/", ada.UserID)))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.Equal(t, []byte("%PDF-1.7"), env.storage.uploaded[key])

	w = env.upload("/v1/seeker/resume", ada.Token, "cv.docx", []byte("docx"))
	require.Equal(t, http.StatusCreated, w.Code)
	replacement := decode[map[string]string](t, w)["resume_url"]
	assert.Equal(t, []string{key}, env.storage.deleted)

	w = env.do(http.MethodGet, "/v1/seeker/resume/link", ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://storage.invalid/"+replacement, decode[map[string]string](t, w)["url"])

	w = env.do(http.MethodPost, fmt.Sprintf("/v1/jobs/%d/apply", job.ID), ada.Token, map[string]any{
		"cover_letter": strings.Repeat("Motivated engineer. ", 6),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, replacement, decode[database.Application](t, w).ResumeURL)
}

func TestUploadResumeRejectsInfectedFile(t *testing.T) {
	env := newTestEnvWithScanner(t, fakeScanner{err: scan.ErrInfected})
	ada := env.applicant("Ada")

	w := env.upload("/v1/seeker/resume", ada.Token, "cv.pdf", []byte("X5O!P%@AP"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "malicious file detected", decode[errorBody](t, w).Error)
	assert.Empty(t, env.storage.uploaded)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ada := env.applicant("Ada")

	w := env.do(http.MethodPut, "/v1/seeker/profile", ada.Token, map[string]any{
		"full_name":  "Ada Lovelace",
		"skills":     []string{"Go", "PostgreSQL"},
		"github_url": "not a url",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[errorBody](t, w).Fields, "github_url")

	w = env.do(http.MethodPut, "/v1/seeker/profile", ada.Token, map[string]any{
		"full_name": "Ada Lovelace",
		"skills":    []string{"Go", "PostgreSQL"},
		"location":  "London",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	profile := decode[database.Profile](t, w)
	assert.Equal(t, "Ada Lovelace", profile.FullName)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, []string(profile.Skills))
	assert.Equal(t, "applicant", profile.UserType)
}

func TestRecommendationsUseSkills(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	env.job(acme.Company.ID, func(j *database.Job) { j.Title = "Rust Engineer"; j.Requirements = "Rust" })
	env.job(acme.Company.ID, func(j *database.Job) { j.Title = "Data Engineer"; j.Requirements = "PostgreSQL and dbt" })
	ada := env.applicant("Ada")
	require.NoError(t, env.db.Model(&database.Profile{}).Where("user_id = ?", ada.UserID).
		Update("skills", datatypes.JSONSlice[string]{"postgresql"}).Error)

	w := env.do(http.MethodGet, "/v1/seeker/recommendations", ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[listResponse[database.Job]](t, w)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Data Engineer", resp.Items[0].Title)
}

func TestSeekerApplicationsAndStats(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	first := env.job(acme.Company.ID, nil)
	second := env.job(acme.Company.ID, nil)
	ada := env.applicant("Ada")
	seedApplication(t, env, first.ID, ada.UserID, "x")
	accepted := seedApplication(t, env, second.ID, ada.UserID, "x")
	require.NoError(t, env.db.Model(&accepted).Update("status", database.StatusAccepted).Error)
	require.NoError(t, env.db.Create(&database.Bookmark{UserID: ada.UserID, JobID: first.ID}).Error)

	w := env.do(http.MethodGet, "/v1/seeker/applications?status=accepted", ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[listResponse[database.Application]](t, w)
	require.Len(t, resp.Items, 1)
	require.NotNil(t, resp.Items[0].Job)
	require.NotNil(t, resp.Items[0].Job.Company)
	assert.Equal(t, "Acme", resp.Items[0].Job.Company.Name)

	w = env.do(http.MethodGet, "/v1/seeker/stats", ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_applications":2,"pending_applications":1,"accepted_applications":1,"bookmarked_jobs":1}`, w.Body.String())
}

func TestDeleteBookmark(t *testing.T) {
	env := newTestEnv(t)
	acme := env.employer("Acme")
	job := env.job(acme.Company.ID, nil)
	ada := env.applicant("Ada")
	bob := env.applicant("Bob")
	bookmark := database.Bookmark{UserID: ada.UserID, JobID: job.ID}
	require.NoError(t, env.db.Create(&bookmark).Error)

	path := fmt.Sprintf("/v1/seeker/bookmarks/%d", bookmark.ID)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, path, bob.Token, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, path, ada.Token, nil).Code)

	w := env.do(http.MethodGet, "/v1/seeker/bookmarks", ada.Token, nil)
	assert.JSONEq(t, `{"items":[],"total":0}`, w.Body.String())
}
