// Package handlers maps the HTTP surface onto the progress service.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/watch-progress/internal/platform/api"
	"github.com/example/watch-progress/internal/platform/auth"
	"github.com/example/watch-progress/internal/platform/httpserver"
	"github.com/example/watch-progress/internal/progress"
)

// updateProgressRequest uses pointers so a missing or non-numeric field is a
// client error, distinct from an interval the engine rejects.
type updateProgressRequest struct {
	Interval *struct {
		Start *float64 `json:"start"`
		End   *float64 `json:"end"`
	} `json:"interval"`
	LastPosition *float64 `json:"last_position"`
}

type updateProgressResponse struct {
	Accepted bool            `json:"accepted"`
	Progress progress.Record `json:"progress"`
}

type watchedResponse struct {
	Watched bool `json:"watched"`
}

// GetProgress handles GET /v1/progress/{video_id}
func GetProgress(svc *progress.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, videoID, ok := identify(w, r, rid)
		if !ok {
			return
		}

		rec, err := svc.Fetch(r.Context(), userID, videoID)
		if err != nil {
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, rec)
	}
}

// UpdateProgress handles POST /v1/progress/{video_id}
func UpdateProgress(svc *progress.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, videoID, ok := identify(w, r, rid)
		if !ok {
			return
		}

		var req updateProgressRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		if req.Interval == nil || req.Interval.Start == nil || req.Interval.End == nil {
			api.BadRequest(w, "INVALID_INTERVAL", "interval.start and interval.end are required numbers", rid, nil)
			return
		}

		iv := progress.Interval{Start: *req.Interval.Start, End: *req.Interval.End}
		position := iv.End
		if req.LastPosition != nil {
			position = *req.LastPosition
		}

		rec, accepted, err := svc.Apply(r.Context(), userID, videoID, iv, position)
		if err != nil {
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, updateProgressResponse{Accepted: accepted, Progress: rec})
	}
}

// ResetProgress handles DELETE /v1/progress/{video_id}
func ResetProgress(svc *progress.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, videoID, ok := identify(w, r, rid)
		if !ok {
			return
		}

		if err := svc.Reset(r.Context(), userID, videoID); err != nil {
			api.Internal(w, rid)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CheckWatched handles GET /v1/progress/{video_id}/watched?start=&end=
func CheckWatched(svc *progress.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, videoID, ok := identify(w, r, rid)
		if !ok {
			return
		}

		start, err1 := strconv.ParseFloat(r.URL.Query().Get("start"), 64)
		end, err2 := strconv.ParseFloat(r.URL.Query().Get("end"), 64)
		if err1 != nil || err2 != nil {
			api.BadRequest(w, "INVALID_RANGE", "start and end query params are required numbers", rid, nil)
			return
		}

		watched, err := svc.Watched(r.Context(), userID, videoID, start, end)
		if err != nil {
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, watchedResponse{Watched: watched})
	}
}

// identify pulls the caller identity and video id out of the request,
// writing the error response itself when either is missing.
func identify(w http.ResponseWriter, r *http.Request, rid string) (userID, videoID string, ok bool) {
	userID, found := auth.UserIDFromContext(r.Context())
	if !found || strings.TrimSpace(userID) == "" {
		api.Unauthorized(w, "AUTH_MISSING", "user identity is required", rid)
		return "", "", false
	}
	videoID = strings.TrimSpace(chi.URLParam(r, "video_id"))
	if videoID == "" {
		api.BadRequest(w, "MISSING_ID", "video_id is required", rid, nil)
		return "", "", false
	}
	return userID, videoID, true
}
