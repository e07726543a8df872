package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/crops"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/models"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/profiles"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/middleware"
)

func init() { gin.SetMode(gin.TestMode) }

// countingProfiles counts every repository call that reaches the store.
type countingProfiles struct {
	profiles.Repository
	calls atomic.Int32
}

func (c *countingProfiles) Get(ctx context.Context, id string) (*models.Profile, error) {
	c.calls.Add(1)
	return c.Repository.Get(ctx, id)
}

func (c *countingProfiles) Upsert(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	c.calls.Add(1)
	return c.Repository.Upsert(ctx, p)
}

type countingCrops struct {
	crops.Repository
	calls atomic.Int32
}

func (c *countingCrops) Insert(ctx context.Context, cr *models.Crop) (string, error) {
	c.calls.Add(1)
	return c.Repository.Insert(ctx, cr)
}

func (c *countingCrops) ListByOwner(ctx context.Context, owner string) ([]models.Crop, error) {
	c.calls.Add(1)
	return c.Repository.ListByOwner(ctx, owner)
}

type brokenCrops struct{}

func (brokenCrops) Insert(ctx context.Context, c *models.Crop) (string, error) {
	return "", errors.New("connection refused")
}

func (brokenCrops) ListByOwner(ctx context.Context, owner string) ([]models.Crop, error) {
	return nil, errors.New("connection refused")
}

type apiFixture struct {
	engine   *gin.Engine
	profiles *countingProfiles
	crops    *countingCrops
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	pr := &countingProfiles{Repository: profiles.NewMemoryRepository()}
	cr := &countingCrops{Repository: crops.NewMemoryRepository()}
	g := gin.New()
	NewAPIHandler(profiles.NewService(pr), crops.NewService(cr)).Register(g.Group("/"), middleware.HeaderResolver{})
	return &apiFixture{engine: g, profiles: pr, crops: cr}
}

func (f *apiFixture) do(method, path, uid, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set("x-user-id", uid)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestProfileScenario(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodPost, "/api/profile", "u1", `{"name":"Asha","email":"a@x.com","district":"Pune"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = f.do(http.MethodGet, "/api/profile", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, "Pune", got.District)
	require.NotNil(t, got.UpdatedAt)
	assert.False(t, got.CreatedAt.IsZero())
	assert.True(t, got.CreatedAt.Equal(*got.UpdatedAt))
}

func TestProfilePutKeepsCreatedAtAndOverwrites(t *testing.T) {
	f := newAPI(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/profile", "u1", `{"name":"Asha","email":"a@x.com","district":"Pune"}`).Code)

	var first models.Profile
	require.NoError(t, json.Unmarshal(f.do(http.MethodGet, "/api/profile", "u1", "").Body.Bytes(), &first))

	time.Sleep(5 * time.Millisecond)
	require.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/profile", "u1", `{"email":"asha@x.com"}`).Code)

	var second models.Profile
	require.NoError(t, json.Unmarshal(f.do(http.MethodGet, "/api/profile", "u1", "").Body.Bytes(), &second))
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.True(t, second.UpdatedAt.After(*first.UpdatedAt))
	assert.Equal(t, "asha@x.com", second.Email)
	assert.Empty(t, second.Name, "omitted fields are overwritten")
	assert.Empty(t, second.District)
}

func TestProfileMissingEmail(t *testing.T) {
	f := newAPI(t)
	for _, body := range []string{`{"name":"Asha"}`, `{}`, ""} {
		w := f.do(http.MethodPost, "/api/profile", "u1", body)
		require.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		require.JSONEq(t, `{"error":"email required"}`, w.Body.String())
	}
	require.Zero(t, f.profiles.calls.Load())
}

func TestProfileEmptyWhenAbsent(t *testing.T) {
	f := newAPI(t)
	w := f.do(http.MethodGet, "/api/profile", "nobody", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{}`, w.Body.String())
}

func TestMissingIdentityNeverReachesStore(t *testing.T) {
	f := newAPI(t)
	cases := []struct{ method, path, body string }{
		{http.MethodPost, "/api/profile", `{"email":"a@x.com"}`},
		{http.MethodPut, "/api/profile", `{"email":"a@x.com"}`},
		{http.MethodGet, "/api/profile", ""},
		{http.MethodPost, "/api/crops", `{"name":"Wheat"}`},
		{http.MethodGet, "/api/crops", ""},
	}
	for _, tc := range cases {
		w := f.do(tc.method, tc.path, "", tc.body)
		require.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
		require.JSONEq(t, `{"error":"Missing x-user-id"}`, w.Body.String())
	}
	require.Zero(t, f.profiles.calls.Load())
	require.Zero(t, f.crops.calls.Load())
}

func TestCropMissingName(t *testing.T) {
	f := newAPI(t)
	w := f.do(http.MethodPost, "/api/crops", "u1", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"name required"}`, w.Body.String())
	require.Zero(t, f.crops.calls.Load())

	w = f.do(http.MethodGet, "/api/crops", "u1", "")
	require.JSONEq(t, `[]`, w.Body.String())
}

func TestCropsNewestFirstAndScoped(t *testing.T) {
	f := newAPI(t)

	add := func(uid, name string) string {
		w := f.do(http.MethodPost, "/api/crops", uid, `{"name":"`+name+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var out map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.NotEmpty(t, out["id"])
		return out["id"]
	}
	idA := add("u1", "Wheat")
	idB := add("u1", "Rice")
	add("u2", "Cotton")

	w := f.do(http.MethodGet, "/api/crops", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Crop
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, idB, list[0].ID)
	assert.Equal(t, "Rice", list[0].Name)
	assert.Equal(t, idA, list[1].ID)
	for _, c := range list {
		assert.Equal(t, "u1", c.OwnerID)
		assert.False(t, c.CreatedAt.IsZero())
	}
}

func TestMalformedBody(t *testing.T) {
	f := newAPI(t)
	w := f.do(http.MethodPost, "/api/crops", "u1", `{"name":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Zero(t, f.crops.calls.Load())
}

func TestStoreFailureIs500(t *testing.T) {
	g := gin.New()
	NewAPIHandler(profiles.NewService(profiles.NewMemoryRepository()), crops.NewService(brokenCrops{})).
		Register(g.Group("/"), middleware.HeaderResolver{})

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req := httptest.NewRequest(method, "/api/crops", strings.NewReader(`{"name":"Wheat"}`))
		req.Header.Set("x-user-id", "u1")
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.JSONEq(t, `{"error":"internal error"}`, w.Body.String(), "store details stay server-side")
	}
}

func TestRateLimitKeyedPerCaller(t *testing.T) {
	g := gin.New()
	NewAPIHandler(profiles.NewService(profiles.NewMemoryRepository()), crops.NewService(crops.NewMemoryRepository())).
		Register(g.Group("/"), middleware.HeaderResolver{}, middleware.RateLimitMiddleware(0.001, 1))
	f := &apiFixture{engine: g}

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/crops", "u1", "").Code)
	require.Equal(t, http.StatusTooManyRequests, f.do(http.MethodGet, "/api/crops", "u1", "").Code)
	// same client IP, separate bucket
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/crops", "u2", "").Code)
	// identity is checked before any bucket is consumed
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/crops", "", "").Code)
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/crops", "", "").Code)
}
