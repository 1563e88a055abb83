package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"corncare-backend/analytics"
	"corncare-backend/auth"
	"corncare-backend/metrics"
	"corncare-backend/middleware"
	"corncare-backend/models"
	"corncare-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth struct {
	registerErr error
	loginErr    error
	lastReg     service.RegisterRequest
}

func (f *fakeAuth) Register(_ context.Context, req service.RegisterRequest) (*service.AuthResult, error) {
	f.lastReg = req
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &service.AuthResult{Token: "tok", User: models.PublicUser{ID: uuid.New(), Name: req.Name, Email: req.Email}}, nil
}

func (f *fakeAuth) Login(_ context.Context, req service.LoginRequest) (*service.AuthResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &service.AuthResult{Token: "tok", User: models.PublicUser{Email: req.Email}}, nil
}

type fakeScans struct {
	created *service.CreateScanRequest
	image   []byte
	err     error
	scans   map[uuid.UUID]*models.Scan
}

func (f *fakeScans) CreateScan(_ context.Context, req service.CreateScanRequest) (*service.CreateScanResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if req.Image != nil {
		f.image, _ = io.ReadAll(req.Image)
	}
	f.created = &req
	return &service.CreateScanResult{Scan: &models.Scan{ID: uuid.New(), UserID: req.UserID, DiseaseName: req.DiseaseName}}, nil
}

func (f *fakeScans) ListScans(_ context.Context, userID uuid.UUID) ([]*models.Scan, error) {
	out := []*models.Scan{}
	for _, s := range f.scans {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScans) GetScan(_ context.Context, userID, scanID uuid.UUID) (*models.Scan, error) {
	s, ok := f.scans[scanID]
	if !ok || s.UserID != userID {
		return nil, fmt.Errorf("%w: scan not found", service.ErrNotFound)
	}
	return s, nil
}

func (f *fakeScans) OpenImage(ctx context.Context, userID, scanID uuid.UUID) (*service.ScanImage, error) {
	if _, err := f.GetScan(ctx, userID, scanID); err != nil {
		return nil, err
	}
	return &service.ScanImage{Body: io.NopCloser(bytes.NewReader([]byte("png"))), ContentType: "image/png"}, nil
}

type fakeChats struct {
	appended  *service.AppendMessageRequest
	asked     *service.AskRequest
	askErr    error
	deleteErr error
	query     string
	listErr   error
}

func (f *fakeChats) AppendMessage(_ context.Context, req service.AppendMessageRequest) (*service.AppendMessageResult, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("%w: message and response are required", service.ErrValidation)
	}
	f.appended = &req
	return &service.AppendMessageResult{ID: uuid.New(), Messages: []models.Message{
		{Text: req.Text, IsUser: true}, {Text: req.Response},
	}}, nil
}

func (f *fakeChats) Ask(_ context.Context, req service.AskRequest) (*service.AppendMessageResult, error) {
	f.asked = &req
	if f.askErr != nil {
		return nil, f.askErr
	}
	return &service.AppendMessageResult{ID: uuid.New(), Messages: []models.Message{{Text: req.Text, IsUser: true}, {Text: "answer"}}}, nil
}

func (f *fakeChats) ListChats(context.Context, uuid.UUID) ([]service.ChatListItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []service.ChatListItem{}, nil
}

func (f *fakeChats) GetChat(_ context.Context, userID, chatID uuid.UUID) (*models.Chat, error) {
	return &models.Chat{ID: chatID, UserID: userID, Messages: []models.Message{}}, nil
}

func (f *fakeChats) PreviewRecent(context.Context, uuid.UUID) ([]analytics.Preview, error) {
	return []analytics.Preview{}, nil
}

func (f *fakeChats) Search(_ context.Context, _ uuid.UUID, query string) (*service.SearchResult, error) {
	f.query = query
	return &service.SearchResult{Query: query, Results: []analytics.SearchResult{}}, nil
}

func (f *fakeChats) Stats(context.Context, uuid.UUID) (*analytics.ChatStats, error) {
	return &analytics.ChatStats{TopKeywords: []analytics.KeywordCount{}, DailyActivity: []analytics.DayCount{}}, nil
}

func (f *fakeChats) Categorize(context.Context, uuid.UUID) (map[string]int, error) {
	return map[string]int{"treatment": 1, "general": 0}, nil
}

func (f *fakeChats) DeleteChat(context.Context, uuid.UUID, uuid.UUID) error {
	return f.deleteErr
}

func (f *fakeChats) ClearAllChats(context.Context, uuid.UUID) (int64, error) {
	return 3, nil
}

func (f *fakeChats) ExportAll(_ context.Context, userID uuid.UUID) (*service.Export, error) {
	return &service.Export{UserID: userID, Chats: []service.ExportChat{}}, nil
}

type fakeUsers struct {
	update models.ProfileUpdate
}

func (f *fakeUsers) GetProfile(_ context.Context, userID uuid.UUID) (*service.Profile, error) {
	return &service.Profile{ID: userID, Name: "Ada"}, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, userID uuid.UUID, update models.ProfileUpdate) (*service.Profile, error) {
	f.update = update
	p := &service.Profile{ID: userID, Name: "Ada"}
	if update.Name != nil {
		p.Name = *update.Name
	}
	return p, nil
}

func (f *fakeUsers) GetStats(context.Context, uuid.UUID) (*service.UserStats, error) {
	return &service.UserStats{TotalScans: 2, CommonDiseases: map[string]int{"Rust": 2}}, nil
}

type testServer struct {
	engine  *gin.Engine
	tokens  *auth.JWTManager
	auth    *fakeAuth
	scans   *fakeScans
	chats   *fakeChats
	users   *fakeUsers
	metrics *metrics.Metrics
	logBuf  *bytes.Buffer
	userID  uuid.UUID
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	tokens, err := auth.NewJWTManager("handler-secret", time.Hour)
	require.NoError(t, err)

	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	ts := &testServer{
		engine:  gin.New(),
		tokens:  tokens,
		auth:    &fakeAuth{},
		scans:   &fakeScans{scans: map[uuid.UUID]*models.Scan{}},
		chats:   &fakeChats{},
		users:   &fakeUsers{},
		metrics: metrics.New(),
		logBuf:  &buf,
		userID:  uuid.New(),
	}
	ts.token, err = tokens.Issue(ts.userID.String())
	require.NoError(t, err)

	rt := &Router{
		Auth:        NewAuthHandler(ts.auth, log),
		Scans:       NewScanHandler(ts.scans, ts.metrics, log),
		Chats:       NewChatHandler(ts.chats, ts.metrics, log),
		Users:       NewUserHandler(ts.users, log),
		Tokens:      tokens,
		AuthLimiter: middleware.NewRateLimiter(100, 100, log),
		Metrics:     ts.metrics,
		UploadsDir:  t.TempDir(),
	}
	rt.Register(ts.engine)
	return ts
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string, authed bool) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") != "" && bytes.HasPrefix(rec.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (ts *testServer) doJSON(t *testing.T, method, path string, body any, authed bool) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	return ts.do(t, method, path, r, "application/json", authed)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec, _ := ts.do(t, http.MethodGet, "/health", nil, "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.doJSON(t, http.MethodPost, "/api/auth/register", gin.H{"name": "Ada", "email": "a@b.c", "password": "pw"}, false)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"token":"tok"`)
	assert.Equal(t, "Ada", ts.auth.lastReg.Name)

	rec, env = ts.doJSON(t, http.MethodPost, "/api/auth/login", gin.H{"email": "a@b.c", "password": "pw"}, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestAuthErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
		wantMsg  string
	}{
		{"validation", fmt.Errorf("%w: name, email and password are required", service.ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR", "name, email and password are required"},
		{"conflict", fmt.Errorf("%w: user already exists", service.ErrConflict), http.StatusConflict, "CONFLICT", "user already exists"},
		{"credentials", service.ErrUnauthorized, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials"},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "SERVER_ERROR", "Server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.auth.registerErr = tt.err

			rec, env := ts.doJSON(t, http.MethodPost, "/api/auth/register", gin.H{"name": "A", "email": "a@b.c", "password": "x"}, false)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantErr, env.Error.Code)
			assert.Equal(t, tt.wantMsg, env.Error.Message)
		})
	}
}

func TestInternalErrorIsLoggedNotLeaked(t *testing.T) {
	ts := newTestServer(t)
	ts.chats.listErr = errors.New("relation chats does not exist")

	rec, env := ts.do(t, http.MethodGet, "/api/chats/user", nil, "", true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "relation")
	assert.Equal(t, "Server error", env.Error.Message)
	assert.Contains(t, ts.logBuf.String(), "relation chats does not exist")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/scans"},
		{http.MethodGet, "/api/scans/user"},
		{http.MethodGet, "/api/chats/user"},
		{http.MethodDelete, "/api/chats/clear/all"},
		{http.MethodGet, "/api/users/profile"},
	} {
		rec, env := ts.do(t, route.method, route.path, nil, "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code, route.path)
	}
}

func multipartBody(t *testing.T, fields map[string]string, filename, mime string, image []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
		h.Set("Content-Type", mime)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestCreateScan(t *testing.T) {
	ts := newTestServer(t)

	body, ct := multipartBody(t, map[string]string{
		"diseaseName": "Common Rust",
		"confidence":  "0.87",
		"prediction":  `{"label":"rust"}`,
		"notes":       "  east field ",
	}, "leaf.png", "image/png", []byte("png-bytes"))

	rec, env := ts.do(t, http.MethodPost, "/api/scans", body, ct, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"scan"`)

	req := ts.scans.created
	require.NotNil(t, req)
	assert.Equal(t, ts.userID, req.UserID)
	assert.Equal(t, "leaf.png", req.Filename)
	assert.Equal(t, "image/png", req.ContentType)
	assert.Equal(t, "Common Rust", req.DiseaseName)
	assert.Equal(t, "0.87", req.Confidence)
	require.NotNil(t, req.Notes)
	assert.Equal(t, "east field", *req.Notes)
	assert.Equal(t, "http://example.com", req.RequestBase)
	assert.Equal(t, []byte("png-bytes"), ts.scans.image)
}

func TestCreateScanMissingImagePassesNil(t *testing.T) {
	ts := newTestServer(t)
	ts.scans.err = fmt.Errorf("%w: image is required", service.ErrValidation)

	body, ct := multipartBody(t, map[string]string{"diseaseName": "x"}, "", "", nil)
	rec, env := ts.do(t, http.MethodPost, "/api/scans", body, ct, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "image is required", env.Error.Message)
}

func TestCreateScanRejectsOversizedBody(t *testing.T) {
	ts := newTestServer(t)

	big := make([]byte, service.MaxImageSize+multipartOverhead+1)
	body, ct := multipartBody(t, map[string]string{"diseaseName": "x"}, "leaf.png", "image/png", big)
	rec, env := ts.do(t, http.MethodPost, "/api/scans", body, ct, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Nil(t, ts.scans.created)
}

func TestGetScan(t *testing.T) {
	ts := newTestServer(t)
	mine := &models.Scan{ID: uuid.New(), UserID: ts.userID, DiseaseName: "Rust"}
	theirs := &models.Scan{ID: uuid.New(), UserID: uuid.New(), DiseaseName: "Blight"}
	ts.scans.scans[mine.ID] = mine
	ts.scans.scans[theirs.ID] = theirs

	rec, env := ts.do(t, http.MethodGet, "/api/scans/"+mine.ID.String(), nil, "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "Rust")

	rec, env = ts.do(t, http.MethodGet, "/api/scans/"+theirs.ID.String(), nil, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, env = ts.do(t, http.MethodGet, "/api/scans/not-a-uuid", nil, "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)

	rec, env = ts.do(t, http.MethodGet, "/api/scans/user", nil, "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Scans []models.Scan `json:"scans"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Scans, 1)
}

func TestScanImage(t *testing.T) {
	ts := newTestServer(t)
	mine := &models.Scan{ID: uuid.New(), UserID: ts.userID}
	ts.scans.scans[mine.ID] = mine

	rec, _ := ts.do(t, http.MethodGet, "/api/scans/"+mine.ID.String()+"/image", nil, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png", rec.Body.String())

	rec, env := ts.do(t, http.MethodGet, "/api/scans/"+uuid.NewString()+"/image", nil, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestAppendMessage(t *testing.T) {
	ts := newTestServer(t)
	chatID := uuid.New()

	rec, env := ts.doJSON(t, http.MethodPost, "/api/chats", gin.H{"message": "q", "response": "a", "chatId": chatID.String()}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, ts.chats.appended)
	require.NotNil(t, ts.chats.appended.ChatID)
	assert.Equal(t, chatID, *ts.chats.appended.ChatID)

	var data struct {
		Chat service.AppendMessageResult `json:"chat"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Chat.Messages, 2)

	rec, _ = ts.doJSON(t, http.MethodPost, "/api/chats", gin.H{"message": "q", "response": "a"}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, ts.chats.appended.ChatID)

	rec, env = ts.doJSON(t, http.MethodPost, "/api/chats", gin.H{"message": "q", "response": "a", "chatId": "nope"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)

	rec, env = ts.doJSON(t, http.MethodPost, "/api/chats", gin.H{"response": "a"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestAskAdvisorUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.chats.askErr = service.ErrAdvisorUnavailable

	rec, env := ts.doJSON(t, http.MethodPost, "/api/chats/ask", gin.H{"message": "rust?"}, true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "ADVISOR_UNAVAILABLE", env.Error.Code)

	ts.chats.askErr = nil
	rec, _ = ts.doJSON(t, http.MethodPost, "/api/chats/ask", gin.H{"message": "rust?"}, true)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "rust?", ts.chats.asked.Text)
}

func TestChatReadRoutes(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path    string
		wantKey string
	}{
		{"/api/chats/user", "chats"},
		{"/api/chats/recent/preview", "recentChats"},
		{"/api/chats/stats/summary", "stats"},
		{"/api/chats/search/Blight", "results"},
		{"/api/chats/export/all", "exportData"},
		{"/api/chats/topics/categories", "categories"},
		{"/api/chats/" + uuid.NewString(), "chat"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, env := ts.do(t, http.MethodGet, tt.path, nil, "", true)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var data map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(env.Data, &data))
			assert.Contains(t, data, tt.wantKey)
		})
	}
	assert.Equal(t, "Blight", ts.chats.query)
}

func TestDeleteChat(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodDelete, "/api/chats/"+uuid.NewString(), nil, "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	ts.chats.deleteErr = fmt.Errorf("%w: chat not found", service.ErrNotFound)
	rec, env = ts.do(t, http.MethodDelete, "/api/chats/"+uuid.NewString(), nil, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "chat not found", env.Error.Message)

	rec, env = ts.do(t, http.MethodDelete, "/api/chats/clear/all", nil, "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"deletedCount":3`)
}

func TestUpdateProfile(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.doJSON(t, http.MethodPut, "/api/users/profile", gin.H{
		"name":        "Grace",
		"preferences": gin.H{"darkMode": true},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), "Grace")

	u := ts.users.update
	require.NotNil(t, u.Name)
	assert.Nil(t, u.ProfileImage)
	require.NotNil(t, u.Preferences)
	require.NotNil(t, u.Preferences.DarkMode)
	assert.True(t, *u.Preferences.DarkMode)
	assert.Nil(t, u.Preferences.Language)
	assert.Nil(t, u.Preferences.Notifications)

	// an empty name is passed through and ignored by the service
	rec, _ = ts.doJSON(t, http.MethodPut, "/api/users/profile", gin.H{"name": ""}, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ts.users.update.Name)
	assert.Equal(t, "", *ts.users.update.Name)

	rec, env = ts.doJSON(t, http.MethodPut, "/api/users/profile", gin.H{"preferences": gin.H{"language": "x"}}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestUserReadRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/users/profile", nil, "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), ts.userID.String())

	rec, env = ts.do(t, http.MethodGet, "/api/users/stats", nil, "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"commonDiseases":{"Rust":2}`)
}

func TestScanMetricsCounted(t *testing.T) {
	ts := newTestServer(t)

	body, ct := multipartBody(t, map[string]string{"diseaseName": "x", "confidence": "1", "prediction": "{}"}, "a.gif", "image/gif", []byte("gif"))
	rec, _ := ts.do(t, http.MethodPost, "/api/scans", body, ct, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/metrics", nil, "", false)
	assert.Contains(t, rec.Body.String(), "corncare_scans_created_total 1")
}
