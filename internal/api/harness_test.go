package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"jobportal/internal/auth"
	"jobportal/internal/config"
	"jobportal/internal/database"
	"jobportal/internal/health"
	"jobportal/internal/notify"
	"jobportal/internal/scan"
	"jobportal/internal/testutil"
)

const testInternalSecret = "internal-secret"

type fakeStorage struct {
	uploaded map[string][]byte
	deleted  []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (s *fakeStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, _ := io.ReadAll(r)
	s.uploaded[key] = b
	return nil
}

func (s *fakeStorage) PresignGet(_ context.Context, key string, _ time.Duration, downloadName string) (string, error) {
	url := "https://storage.invalid/" + key
	if downloadName != "" {
		url += "?download=" + downloadName
	}
	return url, nil
}

func (s *fakeStorage) Remove(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	delete(s.uploaded, key)
	return nil
}

// fakeFeed 模拟 Redis Pub/Sub。onSubscribe 在订阅生效后、快照读取前执行。
type fakeFeed struct {
	onSubscribe func(channel string, publish func(payload []byte))
}

type fakeSubscription struct {
	messages chan *redis.Message
}

func (f *fakeFeed) Subscribe(_ context.Context, channel string) (Subscription, error) {
	sub := &fakeSubscription{messages: make(chan *redis.Message, 16)}
	if f.onSubscribe != nil {
		f.onSubscribe(channel, func(payload []byte) {
			sub.messages <- &redis.Message{Channel: channel, Payload: string(payload)}
		})
	}
	return sub, nil
}

func (s *fakeSubscription) Channel(...redis.ChannelOption) <-chan *redis.Message { return s.messages }

func (s *fakeSubscription) Close() error { return nil }

type fakeScanner struct{ err error }

func (f fakeScanner) Scan(_ context.Context, r io.Reader) error {
	_, _ = io.Copy(io.Discard, r)
	return f.err
}

// testEnv 组装完整路由：sqlite、内存对象存储，Redis 指向不可达地址。
type testEnv struct {
	t       *testing.T
	db      *gorm.DB
	auth    *auth.AuthService
	storage *fakeStorage
	feed    *fakeFeed
	router  *gin.Engine
	seq     int
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithScanner(t, scan.Noop{})
}

func newTestEnvWithScanner(t *testing.T, scanner scan.Scanner) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	authService := testutil.NewAuthService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	redisClient := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := &config.Config{
		API: config.APIConfig{InternalSecret: testInternalSecret},
		Auth: config.AuthConfig{
			LoginRateLimitPerHour: 100,
			LoginLockThreshold:    5,
			LoginLockTTL:          time.Minute,
		},
		Upload: config.UploadConfig{MaxResumeBytes: 1 << 20, MaxLogoBytes: 1 << 20},
	}

	store := newFakeStorage()
	feed := &fakeFeed{}
	router := NewRouter(cfg, logger, health.NewService())
	RegisterRoutes(router, Dependencies{
		Config:      cfg,
		DB:          db,
		AuthService: authService,
		Redis:       redisClient,
		Feed:        feed,
		Notifier:    notify.NewNotifier(db, nil, logger, 0),
		Storage:     store,
		Scanner:     scanner,
		Logger:      logger,
	})

	return &testEnv{t: t, db: db, auth: authService, storage: store, feed: feed, router: router}
}

type account struct {
	UserID  uint
	Token   string
	Company *database.Company
}

func (e *testEnv) applicant(name string) account {
	e.t.Helper()
	return e.account(database.UserTypeApplicant, name)
}

func (e *testEnv) employer(name string) account {
	e.t.Helper()
	return e.account(database.UserTypeCompany, name)
}

func (e *testEnv) account(userType, name string) account {
	e.t.Helper()
	e.seq++
	user := database.User{Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com", PasswordHash: "x"}
	require.NoError(e.t, e.db.Create(&user).Error)
	require.NoError(e.t, e.db.Create(&database.Profile{UserID: user.ID, FullName: name, UserType: userType}).Error)

	acc := account{UserID: user.ID}
	if userType == database.UserTypeCompany {
		company := database.Company{UserID: user.ID, Name: name}
		require.NoError(e.t, e.db.Create(&company).Error)
		acc.Company = &company
	}
	acc.Token = testutil.AccessToken(e.t, e.auth, auth.Identity{UserID: user.ID, UserType: userType})
	return acc
}

func (e *testEnv) job(companyID uint, mutate func(*database.Job)) database.Job {
	e.t.Helper()
	e.seq++
	j := database.Job{
		CompanyID:    companyID,
		Title:        "Backend Engineer",
		Description:  strings.Repeat("d", 120),
		Requirements: "Go",
		Location:     "Remote",
		SalaryRange:  "$100k",
		JobType:      "Full-time",
		IsActive:     true,
	}
	j.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(e.seq) * time.Minute)
	if mutate != nil {
		mutate(&j)
	}
	require.NoError(e.t, e.db.Create(&j).Error)
	return j
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(path, token, filename string, content []byte) *httptest.ResponseRecorder {
	e.t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(e.t, err)
	_, err = part.Write(content)
	require.NoError(e.t, err)
	require.NoError(e.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type errorBody struct {
	Error    string            `json:"error"`
	Code     int               `json:"code"`
	Redirect string            `json:"redirect"`
	Fields   map[string]string `json:"fields"`
}
