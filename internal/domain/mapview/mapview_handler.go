package mapview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/location"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/markers"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/poi"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/search"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/statistics"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// Handler exposes map sessions over JSON.
type Handler struct {
	sessions   *Manager
	statistics statistics.Service
	logger     *slog.Logger
}

func NewHandler(sessions *Manager, stats statistics.Service, logger *slog.Logger) *Handler {
	return &Handler{sessions: sessions, statistics: stats, logger: logger}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/sessions", h.OpenSession, huma.OperationTags("sessions"), withStatus(http.StatusCreated))
	huma.Delete(api, "/api/v1/sessions/{id}", h.CloseSession, huma.OperationTags("sessions"), withStatus(http.StatusNoContent))
	huma.Post(api, "/api/v1/sessions/{id}/region", h.ReportRegion, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/sessions/{id}/reload", h.Reload, huma.OperationTags("map"), withStatus(http.StatusAccepted))
	huma.Get(api, "/api/v1/sessions/{id}/view", h.GetView, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/sessions/{id}/view.geojson", h.GetViewGeoJSON, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/sessions/{id}/search", h.Search, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/sessions/{id}/location", h.PushLocation, huma.OperationTags("location"), withStatus(http.StatusAccepted))
	huma.Post(api, "/api/v1/sessions/{id}/pubs/{pubID}/visited", h.toggle(poi.FlagVisited), huma.OperationTags("pubs"))
	huma.Post(api, "/api/v1/sessions/{id}/pubs/{pubID}/favorite", h.toggle(poi.FlagFavorite), huma.OperationTags("pubs"))
	huma.Get(api, "/api/v1/districts", h.GetDistricts, huma.OperationTags("districts"))
}

func withStatus(status int) func(o *huma.Operation) {
	return func(o *huma.Operation) {
		o.DefaultStatus = status
	}
}

// Types

type SessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type openSessionRequest struct {
	UserID string `json:"user_id,omitempty" doc:"Owner of the visited and favorite lists"`
}

type OpenSessionInput struct {
	Body *openSessionRequest `required:"false"`
}

type SessionOutput struct {
	Body *Session
}

type RegionInput struct {
	SessionIDInput
	Body types.Region
}

type regionResponse struct {
	Mode     types.LODMode `json:"mode"`
	Accepted bool          `json:"accepted"`
}

type RegionOutput struct {
	Body regionResponse
}

type ViewInput struct {
	SessionIDInput
	Wait bool `query:"wait" doc:"Wait for the initial load, bounded by the engine maximum wait"`
}

type ViewOutput struct {
	Body View
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type searchRequest struct {
	Query string `json:"query" doc:"Pub, area or district name"`
}

type SearchInput struct {
	SessionIDInput
	Body searchRequest
}

type SearchOutput struct {
	Body *search.Result
}

type locationRequest struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Heading    *float64 `json:"heading,omitempty"`
	Permission *bool    `json:"permission,omitempty"`
}

type LocationInput struct {
	SessionIDInput
	Body locationRequest
}

type ToggleInput struct {
	SessionIDInput
	PubID string `path:"pubID" doc:"Pub ID"`
	Wait  bool   `query:"wait" doc:"Wait for the id list to be saved"`
}

type toggleResponse struct {
	PubID string `json:"pub_id"`
	Flag  string `json:"flag"`
	Value bool   `json:"value"`
}

type ToggleOutput struct {
	Body toggleResponse
}

type DistrictsOutput struct {
	Body []types.DistrictSummary
}

// Handlers

func (h *Handler) OpenSession(ctx context.Context, input *OpenSessionInput) (*SessionOutput, error) {
	var userID string
	if input.Body != nil {
		userID = input.Body.UserID
	}
	sess, err := h.sessions.Open(ctx, userID)
	if err != nil {
		return nil, h.toHumaError(ctx, err)
	}
	return &SessionOutput{Body: sess}, nil
}

func (h *Handler) CloseSession(ctx context.Context, input *SessionIDInput) (*struct{}, error) {
	if err := h.sessions.Close(input.ID); err != nil {
		return nil, h.toHumaError(ctx, err)
	}
	return &struct{}{}, nil
}

func (h *Handler) ReportRegion(ctx context.Context, input *RegionInput) (*RegionOutput, error) {
	sess, err := h.session(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	mode, accepted, err := sess.Engine.OnRegionChange(input.Body)
	if err != nil {
		return nil, h.toHumaError(ctx, err)
	}
	return &RegionOutput{Body: regionResponse{Mode: mode, Accepted: accepted}}, nil
}

func (h *Handler) Reload(ctx context.Context, input *SessionIDInput) (*struct{}, error) {
	sess, err := h.session(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := sess.Engine.Reload(); err != nil {
		return nil, h.toHumaError(ctx, err)
	}
	return &struct{}{}, nil
}

// GetView renders the current frame. With ?wait=true it first waits for the initial
// load, bounded by the engine maximum wait.
func (h *Handler) GetView(ctx context.Context, input *ViewInput) (*ViewOutput, error) {
	sess, err := h.session(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if input.Wait {
		if err := sess.Engine.WaitInitialLoad(ctx); err != nil {
			return nil, h.toHumaError(ctx, err)
		}
	}
	return &ViewOutput{Body: sess.Engine.View()}, nil
}

func (h *Handler) GetViewGeoJSON(ctx context.Context, input *SessionIDInput) (*GeoJSONOutput, error) {
	sess, err := h.session(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	fc := markers.FeatureCollection(sess.Engine.View().Markers)
	body, err := json.Marshal(fc)
	if err != nil {
		return nil, h.toHumaError(ctx, fmt.Errorf("failed to encode GeoJSON: %w", err))
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: body}, nil
}

func (h *Handler) Search(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	sess, err := h.session(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	res, err := sess.Engine.Search(ctx, input.Body.Query)
	if err != nil {
		return nil, h.toHumaError(ctx, err)
	}
	return &SearchOutput{Body: res}, nil
}

func (h *Handler) PushLocation(ctx context.Context, input *LocationInput) (*struct{}, error) {
	sess, err := h.session(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	req := input.Body
	if req.Permission != nil {
		sess.Location.SetPermission(*req.Permission)
		if !*req.Permission {
			return &struct{}{}, nil
		}
	}
	err = sess.Location.Push(location.Update{
		Coordinate: types.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
		Heading:    req.Heading,
	})
	if err != nil {
		return nil, h.toHumaError(ctx, err)
	}
	return &struct{}{}, nil
}

// toggle flips a flag optimistically. With ?wait=true the response waits for the commit
// and reports the rolled back value on failure.
func (h *Handler) toggle(flag poi.Flag) func(context.Context, *ToggleInput) (*ToggleOutput, error) {
	return func(ctx context.Context, input *ToggleInput) (*ToggleOutput, error) {
		sess, err := h.session(ctx, input.ID)
		if err != nil {
			return nil, err
		}
		value, done, err := sess.Engine.Toggle(ctx, input.PubID, flag)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		if input.Wait {
			select {
			case err := <-done:
				if err != nil {
					return nil, h.toHumaError(ctx, fmt.Errorf("failed to save %s: %w", flag, err))
				}
			case <-ctx.Done():
				return nil, h.toHumaError(ctx, ctx.Err())
			}
		}
		return &ToggleOutput{Body: toggleResponse{PubID: input.PubID, Flag: string(flag), Value: value}}, nil
	}
}

func (h *Handler) GetDistricts(ctx context.Context, _ *struct{}) (*DistrictsOutput, error) {
	summaries, err := h.statistics.GetDistrictSummaries(ctx)
	if err != nil {
		return nil, h.toHumaError(ctx, err)
	}
	return &DistrictsOutput{Body: summaries}, nil
}

func (h *Handler) session(ctx context.Context, id string) (*Session, error) {
	sess, err := h.sessions.Get(id)
	if err != nil {
		return nil, h.toHumaError(ctx, err)
	}
	return sess, nil
}

// toHumaError maps domain errors onto problem responses. Server side failures are
// logged here since huma only writes them.
func (h *Handler) toHumaError(ctx context.Context, err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, types.ErrNotFound):
		return huma.Error404NotFound(msg)
	case errors.Is(err, types.ErrBadRequest), errors.Is(err, types.ErrInvalidRegion):
		return huma.Error400BadRequest(msg)
	case errors.Is(err, types.ErrConflict):
		return huma.Error409Conflict(msg)
	case errors.Is(err, location.ErrPermissionDenied):
		return huma.Error403Forbidden(msg)
	case errors.Is(err, types.ErrClosed):
		return huma.Error410Gone(msg)
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.ErrorContext(ctx, "Request timed out", slog.Any("error", err))
		return huma.Error504GatewayTimeout(msg)
	default:
		h.logger.ErrorContext(ctx, "Request failed", slog.Any("error", err))
		return huma.Error500InternalServerError(msg)
	}
}
