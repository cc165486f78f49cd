package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geonotify/backend/internal/apiclient"
	"github.com/geonotify/backend/internal/authoring"
	"github.com/geonotify/backend/internal/config"
	"github.com/geonotify/backend/internal/models"
	"github.com/geonotify/backend/internal/notification"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

// MockClient implements apiclient.Client for testing
type MockClient struct {
	mock.Mock
}

func (m *MockClient) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *MockClient) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockClient) CreateNotification(ctx context.Context, payload *models.NotificationPayload) (*models.Notification, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockClient) UpdateNotification(ctx context.Context, id string, payload *models.NotificationPayload) (*models.Notification, error) {
	args := m.Called(ctx, id, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockClient) DeleteNotification(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockClient) ListRoles(ctx context.Context) ([]models.Role, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Role), args.Error(1)
}

// MockCache implements cache.Cache for testing
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetNotifications(ctx context.Context) ([]models.Notification, bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]models.Notification), args.Bool(1), args.Error(2)
}

func (m *MockCache) SetNotifications(ctx context.Context, notifications []models.Notification) error {
	args := m.Called(ctx, notifications)
	return args.Error(0)
}

func (m *MockCache) InvalidateNotifications(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCache) GetRoles(ctx context.Context) ([]models.Role, bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]models.Role), args.Bool(1), args.Error(2)
}

func (m *MockCache) SetRoles(ctx context.Context, roles []models.Role) error {
	args := m.Called(ctx, roles)
	return args.Error(0)
}

func (m *MockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

func setupTestHandler() (*authoring.Registry, *MockClient, *MockCache, *gin.Engine) {
	gin.SetMode(gin.TestMode)

	mockClient := new(MockClient)
	mockCache := new(MockCache)
	logger := zap.NewNop()

	registry := authoring.NewRegistry(&config.Config{DraftIdleTimeout: time.Hour}, logger,
		notification.WithClock(func() time.Time { return fixedNow }))

	handler := NewHandler(registry, mockClient, mockCache, logger)

	engine := gin.New()
	rg := engine.Group("/api/v1")
	handler.RegisterRoutes(rg)

	return registry, mockClient, mockCache, engine
}

func doJSON(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeDraft(t *testing.T, w *httptest.ResponseRecorder) models.DraftView {
	t.Helper()
	var response models.DraftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response.Data
}

func openDraft(t *testing.T, engine *gin.Engine) models.DraftView {
	t.Helper()
	w := doJSON(engine, http.MethodPost, "/api/v1/drafts", "")
	require.Equal(t, http.StatusCreated, w.Code)
	return decodeDraft(t, w)
}

const squareEvent = `{"kind":"create","features":{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,4],[0,4],[0,0]]]}}
]}}`

func storedNotification() *models.Notification {
	return &models.Notification{
		ID:        "n1",
		Title:     "Road closed",
		Message:   "Detour via Main St",
		Area:      models.NewArea(orb.MultiPolygon{{{{10, 10}, {12, 10}, {12, 12}, {10, 10}}}}),
		Roles:     []any{map[string]any{"id": "r1"}, "r2"},
		StartDate: "2026-10-01T00:00:00.000Z",
		EndDate:   "2026-10-30T00:00:00.000Z",
	}
}

func TestOpenDraft_New(t *testing.T) {
	registry, mockClient, _, engine := setupTestHandler()

	view := openDraft(t, engine)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "no_geofence", view.State)
	assert.Equal(t, models.ViewModeMap, view.ViewMode)
	assert.Equal(t, "[]", view.Area)
	assert.Equal(t, []string{}, view.Roles)
	assert.Equal(t, 1, registry.Len())
	mockClient.AssertNotCalled(t, "GetNotification")
}

func TestOpenDraft_EditExisting(t *testing.T) {
	_, mockClient, _, engine := setupTestHandler()

	mockClient.On("GetNotification", mock.Anything, "n1").Return(storedNotification(), nil)

	w := doJSON(engine, http.MethodPost, "/api/v1/drafts", `{"notificationId":"n1"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	view := decodeDraft(t, w)
	assert.Equal(t, "n1", view.NotificationID)
	assert.Equal(t, "geofenced", view.State)
	assert.Equal(t, 1, view.PolygonCount)
	assert.Equal(t, []string{"r1", "r2"}, view.Roles)
	assert.Equal(t, "10,10;12,10;12,12;10,10", view.CoordinateText)
	require.NotNil(t, view.Camera)
	assert.Equal(t, orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{12, 12}}, view.Camera.Bound)
	mockClient.AssertExpectations(t)
}

func TestOpenDraft_EditMissingNotification(t *testing.T) {
	registry, mockClient, _, engine := setupTestHandler()

	mockClient.On("GetNotification", mock.Anything, "gone").Return(nil, apiclient.ErrNotFound)

	w := doJSON(engine, http.MethodPost, "/api/v1/drafts", `{"notificationId":"gone"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, registry.Len())
}

func TestOpenDraft_EditWorldwideNotification(t *testing.T) {
	_, mockClient, _, engine := setupTestHandler()

	mockClient.On("GetNotification", mock.Anything, "n2").Return(&models.Notification{ID: "n2", Title: "All"}, nil)

	w := doJSON(engine, http.MethodPost, "/api/v1/drafts", `{"notificationId":"n2"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	view := decodeDraft(t, w)
	assert.True(t, view.SendToAll)
	assert.Equal(t, "worldwide", view.State)
	assert.Equal(t, models.ViewModeGlobe, view.ViewMode)
	assert.Empty(t, view.Area)
}

func TestGetDraft_NotFound(t *testing.T) {
	_, _, _, engine := setupTestHandler()

	w := doJSON(engine, http.MethodGet, "/api/v1/drafts/unknown", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var response models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "not_found", response.Error)
}

func TestUpdateDraft_Success(t *testing.T) {
	_, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)

	body := `{"title":"Heat wave","message":"Stay inside","roles":["r1",{"id":"r2"}],"startDate":"2026-10-20T08:00"}`
	w := doJSON(engine, http.MethodPatch, "/api/v1/drafts/"+draft.ID, body)

	require.Equal(t, http.StatusOK, w.Code)
	view := decodeDraft(t, w)
	assert.Equal(t, "Heat wave", view.Title)
	assert.Equal(t, "Stay inside", view.Message)
	assert.Equal(t, []string{"r1", "r2"}, view.Roles)
	assert.Equal(t, "2026-10-20T08:00:00.000Z", view.StartDate)
	assert.Empty(t, view.EndDate)
}

func TestUpdateDraft_TitleTooLong(t *testing.T) {
	_, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)

	body := `{"title":"` + strings.Repeat("a", 300) + `"}`
	w := doJSON(engine, http.MethodPatch, "/api/v1/drafts/"+draft.ID, body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateDraft_InvalidDate(t *testing.T) {
	_, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)

	w := doJSON(engine, http.MethodPatch, "/api/v1/drafts/"+draft.ID, `{"endDate":"soon"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDrawEvent_CreatesGeofence(t *testing.T) {
	_, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)

	w := doJSON(engine, http.MethodPost, "/api/v1/drafts/"+draft.ID+"/draw-events", squareEvent)

	require.Equal(t, http.StatusOK, w.Code)
	view := decodeDraft(t, w)
	assert.Equal(t, "geofenced", view.State)
	assert.Equal(t, 1, view.PolygonCount)
	assert.Equal(t, "[[[[0,0],[4,0],[4,4],[0,4],[0,0]]]]", view.Area)
	require.Len(t, view.Markers, 1)
	assert.InDelta(t, 2, view.Markers[0].Point.X(), 1e-9)
	assert.InDelta(t, 2, view.Markers[0].Point.Y(), 1e-9)
}

func TestDrawEvent_DegenerateRingIgnored(t *testing.T) {
	_, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)
	base := "/api/v1/drafts/" + draft.ID

	w := doJSON(engine, http.MethodPost, base+"/draw-events", `{"kind":"create","features":{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"line","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,1]]]}}
	]}}`)

	require.Equal(t, http.StatusOK, w.Code)
	view := decodeDraft(t, w)
	assert.Equal(t, "no_geofence", view.State)
	assert.Equal(t, 0, view.PolygonCount)
	assert.Equal(t, "[]", view.Area)

	require.Equal(t, http.StatusOK, doJSON(engine, http.MethodPost, base+"/draw-events", squareEvent).Code)
	view = decodeDraft(t, doJSON(engine, http.MethodGet, base, ""))
	require.Len(t, view.Features, 1)

	w = doJSON(engine, http.MethodPost, base+"/draw-events", `{"kind":"update","features":{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"`+view.Features[0]+`","properties":{},"geometry":{"type":"Polygon","coordinates":[]}}
	]}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[[[[0,0],[4,0],[4,4],[0,4],[0,0]]]]", decodeDraft(t, w).Area)
}

func TestDrawEvent_InvalidKind(t *testing.T) {
	_, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)

	w := doJSON(engine, http.MethodPost, "/api/v1/drafts/"+draft.ID+"/draw-events", `{"kind":"rotate"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendToAll_TogglesViewAndRestoresGeometry(t *testing.T) {
	_, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)
	base := "/api/v1/drafts/" + draft.ID

	require.Equal(t, http.StatusOK, doJSON(engine, http.MethodPost, base+"/draw-events", squareEvent).Code)

	w := doJSON(engine, http.MethodPut, base+"/send-to-all", `{"sendToAll":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	view := decodeDraft(t, w)
	assert.Equal(t, "worldwide", view.State)
	assert.Equal(t, models.ViewModeGlobe, view.ViewMode)
	assert.Nil(t, view.Camera)

	w = doJSON(engine, http.MethodPost, base+"/navigate", `{"direction":"next"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(engine, http.MethodPut, base+"/send-to-all", `{"sendToAll":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	view = decodeDraft(t, w)
	assert.Equal(t, "geofenced", view.State)
	assert.Equal(t, models.ViewModeMap, view.ViewMode)
	assert.Equal(t, 1, view.PolygonCount)
	assert.Equal(t, "[[[[0,0],[4,0],[4,4],[0,4],[0,0]]]]", view.Area)
}

func TestSendToAll_MissingValue(t *testing.T) {
	_, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)

	w := doJSON(engine, http.MethodPut, "/api/v1/drafts/"+draft.ID+"/send-to-all", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetCoordinates(t *testing.T) {
	_, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)
	path := "/api/v1/drafts/" + draft.ID + "/coordinates"

	w := doJSON(engine, http.MethodPut, path, `{"text":"0,0;2,0;2,2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	view := decodeDraft(t, w)
	assert.Equal(t, 1, view.PolygonCount)
	assert.Equal(t, "[[[[0,0],[2,0],[2,2],[0,0]]]]", view.Area)

	w = doJSON(engine, http.MethodPut, path, `{"text":"0,0;2,"}`)
	require.Equal(t, http.StatusOK, w.Code)
	view = decodeDraft(t, w)
	assert.Equal(t, "0,0;2,", view.CoordinateText)
	assert.Equal(t, "[[[[0,0],[2,0],[2,2],[0,0]]]]", view.Area)
}

func TestReplaceArea_MalformedClears(t *testing.T) {
	_, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)
	path := "/api/v1/drafts/" + draft.ID + "/area"

	w := doJSON(engine, http.MethodPut, path, `{"raw":"[[[[1,1],[3,1],[3,3],[1,1]]],[[[5,5],[6,5],[6,6],[5,5]]]]"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decodeDraft(t, w).PolygonCount)

	w = doJSON(engine, http.MethodPut, path, `{"raw":"not json"}`)
	require.Equal(t, http.StatusOK, w.Code)
	view := decodeDraft(t, w)
	assert.Equal(t, 0, view.PolygonCount)
	assert.Equal(t, "no_geofence", view.State)
}

func TestNavigate_Wraps(t *testing.T) {
	_, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)
	base := "/api/v1/drafts/" + draft.ID

	raw := `{"raw":"[[[[0,0],[1,0],[1,1],[0,0]]],[[[2,2],[3,2],[3,3],[2,2]]],[[[4,4],[5,4],[5,5],[4,4]]]]"}`
	require.Equal(t, http.StatusOK, doJSON(engine, http.MethodPut, base+"/area", raw).Code)

	w := doJSON(engine, http.MethodPost, base+"/navigate", `{"direction":"previous"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decodeDraft(t, w).ActiveIndex)

	w = doJSON(engine, http.MethodPost, base+"/navigate", `{"direction":"next"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeDraft(t, w).ActiveIndex)

	w = doJSON(engine, http.MethodPost, base+"/navigate", `{"direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPayload_DefaultDates(t *testing.T) {
	_, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)

	w := doJSON(engine, http.MethodGet, "/api/v1/drafts/"+draft.ID+"/payload", "")

	require.Equal(t, http.StatusOK, w.Code)
	var response map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"]
	assert.Equal(t, "2026-10-18T09:30:00.000Z", data["startDate"])
	assert.Equal(t, "2026-10-25T09:30:00.000Z", data["endDate"])
	assert.Equal(t, map[string]any{"type": "MultiPolygon", "coordinates": []any{}}, data["area"])
}

func TestSubmit_CreatesNotification(t *testing.T) {
	registry, mockClient, mockCache, engine := setupTestHandler()
	draft := openDraft(t, engine)
	base := "/api/v1/drafts/" + draft.ID

	require.Equal(t, http.StatusOK, doJSON(engine, http.MethodPatch, base, `{"title":"Flood","roles":[{"id":"r1"}]}`).Code)
	require.Equal(t, http.StatusOK, doJSON(engine, http.MethodPost, base+"/draw-events", squareEvent).Code)

	mockClient.On("CreateNotification", mock.Anything, mock.MatchedBy(func(p *models.NotificationPayload) bool {
		return p.Title == "Flood" &&
			assert.ObjectsAreEqual([]string{"r1"}, p.Roles) &&
			p.Area != nil && len(p.Area.Coordinates) == 1 &&
			p.StartDate == "2026-10-18T09:30:00.000Z" &&
			p.EndDate == "2026-10-25T09:30:00.000Z"
	})).Return(&models.Notification{ID: "created-1", Title: "Flood"}, nil)
	mockCache.On("InvalidateNotifications", mock.Anything).Return(nil)

	w := doJSON(engine, http.MethodPost, base+"/submit", "")

	require.Equal(t, http.StatusCreated, w.Code)
	var response models.NotificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "created-1", response.Data.ID)
	assert.Equal(t, 0, registry.Len())

	mockClient.AssertExpectations(t)
	mockCache.AssertExpectations(t)
}

func TestSubmit_UpdatesWorldwideWithoutArea(t *testing.T) {
	_, mockClient, mockCache, engine := setupTestHandler()

	mockClient.On("GetNotification", mock.Anything, "n1").Return(storedNotification(), nil)
	w := doJSON(engine, http.MethodPost, "/api/v1/drafts", `{"notificationId":"n1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/api/v1/drafts/" + decodeDraft(t, w).ID

	require.Equal(t, http.StatusOK, doJSON(engine, http.MethodPut, base+"/send-to-all", `{"sendToAll":true}`).Code)

	mockClient.On("UpdateNotification", mock.Anything, "n1", mock.MatchedBy(func(p *models.NotificationPayload) bool {
		return p.Area == nil &&
			p.StartDate == "2026-10-01T00:00:00.000Z" &&
			p.EndDate == "2026-10-30T00:00:00.000Z"
	})).Return(&models.Notification{ID: "n1"}, nil)
	mockCache.On("InvalidateNotifications", mock.Anything).Return(nil)

	w = doJSON(engine, http.MethodPost, base+"/submit", "")

	assert.Equal(t, http.StatusOK, w.Code)
	mockClient.AssertExpectations(t)
}

func TestSubmit_UpstreamFailureKeepsDraft(t *testing.T) {
	registry, mockClient, mockCache, engine := setupTestHandler()
	draft := openDraft(t, engine)

	mockClient.On("CreateNotification", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	w := doJSON(engine, http.MethodPost, "/api/v1/drafts/"+draft.ID+"/submit", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 1, registry.Len())
	mockCache.AssertNotCalled(t, "InvalidateNotifications", mock.Anything)
}

func TestSubmit_UpstreamRejection(t *testing.T) {
	_, mockClient, _, engine := setupTestHandler()
	draft := openDraft(t, engine)

	mockClient.On("CreateNotification", mock.Anything, mock.Anything).
		Return(nil, &apiclient.StatusError{Method: http.MethodPost, Path: "/notification", Code: http.StatusUnprocessableEntity, Body: "title required"})

	w := doJSON(engine, http.MethodPost, "/api/v1/drafts/"+draft.ID+"/submit", "")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var response models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "upstream_rejected", response.Error)
	assert.Equal(t, "title required", response.Message)
}

func TestDiscardDraft(t *testing.T) {
	registry, _, _, engine := setupTestHandler()
	draft := openDraft(t, engine)

	w := doJSON(engine, http.MethodDelete, "/api/v1/drafts/"+draft.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, registry.Len())

	w = doJSON(engine, http.MethodDelete, "/api/v1/drafts/"+draft.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListNotifications_FromCache(t *testing.T) {
	_, mockClient, mockCache, engine := setupTestHandler()

	cached := []models.Notification{{ID: "1", Title: "Test 1"}, {ID: "2", Title: "Test 2"}}
	mockCache.On("GetNotifications", mock.Anything).Return(cached, true, nil)

	w := doJSON(engine, http.MethodGet, "/api/v1/notifications", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var response models.NotificationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Data, 2)

	mockClient.AssertNotCalled(t, "ListNotifications", mock.Anything)
	mockCache.AssertExpectations(t)
}

func TestListNotifications_CacheMiss(t *testing.T) {
	_, mockClient, mockCache, engine := setupTestHandler()

	upstream := []models.Notification{{ID: "1", Title: "Test 1"}}
	mockCache.On("GetNotifications", mock.Anything).Return(nil, false, nil)
	mockClient.On("ListNotifications", mock.Anything).Return(upstream, nil)
	mockCache.On("SetNotifications", mock.Anything, upstream).Return(nil)

	w := doJSON(engine, http.MethodGet, "/api/v1/notifications", "")

	assert.Equal(t, http.StatusOK, w.Code)
	mockClient.AssertExpectations(t)
	mockCache.AssertExpectations(t)
}

func TestListNotifications_UpstreamError(t *testing.T) {
	_, mockClient, mockCache, engine := setupTestHandler()

	mockCache.On("GetNotifications", mock.Anything).Return(nil, false, nil)
	mockClient.On("ListNotifications", mock.Anything).Return(nil, errors.New("timeout"))

	w := doJSON(engine, http.MethodGet, "/api/v1/notifications", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	mockCache.AssertNotCalled(t, "SetNotifications", mock.Anything, mock.Anything)
}

func TestGetNotification(t *testing.T) {
	_, mockClient, _, engine := setupTestHandler()

	mockClient.On("GetNotification", mock.Anything, "n1").Return(storedNotification(), nil)

	w := doJSON(engine, http.MethodGet, "/api/v1/notifications/n1", "")

	require.Equal(t, http.StatusOK, w.Code)
	var response models.NotificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Road closed", response.Data.Title)
}

func TestDeleteNotification(t *testing.T) {
	_, mockClient, mockCache, engine := setupTestHandler()

	mockClient.On("DeleteNotification", mock.Anything, "n1").Return(nil)
	mockCache.On("InvalidateNotifications", mock.Anything).Return(nil)

	w := doJSON(engine, http.MethodDelete, "/api/v1/notifications/n1", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockClient.AssertExpectations(t)
	mockCache.AssertExpectations(t)
}

func TestDeleteNotification_NotFound(t *testing.T) {
	_, mockClient, mockCache, engine := setupTestHandler()

	mockClient.On("DeleteNotification", mock.Anything, "missing").Return(apiclient.ErrNotFound)

	w := doJSON(engine, http.MethodDelete, "/api/v1/notifications/missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockCache.AssertNotCalled(t, "InvalidateNotifications", mock.Anything)
}

func TestListRoles_CacheMiss(t *testing.T) {
	_, mockClient, mockCache, engine := setupTestHandler()

	roles := []models.Role{{ID: "r1", Label: "Drivers"}}
	mockCache.On("GetRoles", mock.Anything).Return(nil, false, nil)
	mockClient.On("ListRoles", mock.Anything).Return(roles, nil)
	mockCache.On("SetRoles", mock.Anything, roles).Return(nil)

	w := doJSON(engine, http.MethodGet, "/api/v1/roles", "")

	require.Equal(t, http.StatusOK, w.Code)
	var response models.RolesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, roles, response.Data)
	mockCache.AssertExpectations(t)
}

func TestListRoles_FromCache(t *testing.T) {
	_, mockClient, mockCache, engine := setupTestHandler()

	mockCache.On("GetRoles", mock.Anything).Return([]models.Role{{ID: "r1"}}, true, nil)

	w := doJSON(engine, http.MethodGet, "/api/v1/roles", "")

	assert.Equal(t, http.StatusOK, w.Code)
	mockClient.AssertNotCalled(t, "ListRoles", mock.Anything)
}
