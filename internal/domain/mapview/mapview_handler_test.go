package mapview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/location"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

type handlerFixture struct {
	*managerFixture
	mux *http.ServeMux
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	mf := newManagerFixture(t, time.Minute)
	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("Pub map API", "1.0.0"))
	NewHandler(mf.manager, mf.stats, testLogger()).RegisterRoutes(api)
	return &handlerFixture{managerFixture: mf, mux: mux}
}

func (f *handlerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *handlerFixture) openSession(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/sessions", `{"user_id":"alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.ID)
	return sess.ID
}

func TestHandler_RegionAndView(t *testing.T) {
	f := newHandlerFixture(t)
	f.stats.On("GetDistrictSummaries", mock.Anything).Return([]types.DistrictSummary{}, nil)
	f.repo.On("FetchEntities", mock.Anything, mock.Anything).Return(sohoPatches(), nil)
	id := f.openSession(t)

	body := `{"latitude":51.5133,"longitude":-0.1318,"latitude_delta":0.034,"longitude_delta":0.034}`
	rec := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/region", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var region regionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &region))
	assert.True(t, region.Accepted)
	assert.Equal(t, types.LODEntity, region.Mode)

	f.clock.Advance(100 * time.Millisecond)

	rec = f.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/view?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.False(t, view.Loading)
	assert.Equal(t, types.LODEntity, view.Mode)
	require.Len(t, view.Areas, 1)
	assert.Equal(t, 3, view.Areas[0].Total)
	assert.Len(t, view.Markers, 3)

	rec = f.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/view.geojson", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 3)

	rec = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/reload", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandler_Errors(t *testing.T) {
	f := newHandlerFixture(t)
	f.stats.On("GetDistrictSummaries", mock.Anything).Return([]types.DistrictSummary{}, nil)
	id := f.openSession(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown session", http.MethodGet, "/api/v1/sessions/nope/view", "", http.StatusNotFound},
		{"malformed body", http.MethodPost, "/api/v1/sessions/" + id + "/region", `{"latitude":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/v1/sessions/" + id + "/region", `{"zoom":3}`, http.StatusUnprocessableEntity},
		{"missing deltas", http.MethodPost, "/api/v1/sessions/" + id + "/region", `{"latitude":51.5,"longitude":-0.1}`, http.StatusUnprocessableEntity},
		{"zero deltas", http.MethodPost, "/api/v1/sessions/" + id + "/region", `{"latitude":51.5,"longitude":-0.1,"latitude_delta":0,"longitude_delta":0}`, http.StatusBadRequest},
		{"reload before region", http.MethodPost, "/api/v1/sessions/" + id + "/reload", "", http.StatusBadRequest},
		{"invalid location", http.MethodPost, "/api/v1/sessions/" + id + "/location", `{"latitude":123,"longitude":0}`, http.StatusBadRequest},
		{"unknown pub", http.MethodPost, "/api/v1/sessions/" + id + "/pubs/ghost/visited", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			var resp huma.ErrorModel
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Status)
			assert.NotEmpty(t, resp.Detail)
		})
	}

	rec := f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_LocationPermission(t *testing.T) {
	f := newHandlerFixture(t)
	f.stats.On("GetDistrictSummaries", mock.Anything).Return([]types.DistrictSummary{}, nil)
	id := f.openSession(t)

	rec := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/location", `{"latitude":51.51,"longitude":-0.13}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/location", `{"latitude":0,"longitude":0,"permission":false}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/location", `{"latitude":51.51,"longitude":-0.13}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_ToggleVisited(t *testing.T) {
	f := newHandlerFixture(t)
	f.stats.On("GetDistrictSummaries", mock.Anything).Return([]types.DistrictSummary{}, nil)
	f.repo.On("FetchEntities", mock.Anything, mock.Anything).Return(sohoPatches(), nil)
	id := f.openSession(t)

	sess, err := f.manager.Get(id)
	require.NoError(t, err)
	_, _, err = sess.Engine.OnRegionChange(sohoRegion)
	require.NoError(t, err)
	f.clock.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool { return sess.Pubs.Dataset().Len() == 3 }, time.Second, 5*time.Millisecond)

	rec := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/pubs/p1/visited?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp toggleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, toggleResponse{PubID: "p1", Flag: "visited", Value: true}, resp)

	p, ok := sess.Pubs.Dataset().Get("p1")
	require.True(t, ok)
	assert.True(t, p.Visited)
	assert.Equal(t, 33, sess.Engine.View().Areas[0].Completion)
}

func TestHandler_Districts(t *testing.T) {
	f := newHandlerFixture(t)
	f.stats.On("GetDistrictSummaries", mock.Anything).Return([]types.DistrictSummary{westminsterSummary()}, nil).Once()
	f.stats.On("GetDistrictSummaries", mock.Anything).Return(nil, errors.New("db down")).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/districts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []types.DistrictSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []types.DistrictSummary{westminsterSummary()}, got)

	rec = f.do(t, http.MethodGet, "/api/v1/districts", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_OpenSessionWithoutBody(t *testing.T) {
	f := newHandlerFixture(t)
	f.stats.On("GetDistrictSummaries", mock.Anything).Return([]types.DistrictSummary{}, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.NotEmpty(t, sess.ID)
	assert.Empty(t, sess.UserID)
}

func TestToHumaError(t *testing.T) {
	h := NewHandler(nil, nil, testLogger())
	ctx := context.Background()

	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", types.ErrNotFound), http.StatusNotFound},
		{types.ErrBadRequest, http.StatusBadRequest},
		{types.ErrInvalidRegion, http.StatusBadRequest},
		{types.ErrConflict, http.StatusConflict},
		{location.ErrPermissionDenied, http.StatusForbidden},
		{types.ErrClosed, http.StatusGone},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		var se huma.StatusError
		require.ErrorAs(t, h.toHumaError(ctx, tt.err), &se)
		assert.Equal(t, tt.want, se.GetStatus(), tt.err.Error())
	}
}
