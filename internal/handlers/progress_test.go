package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/platform/auth"
	"github.com/example/watch-progress/internal/progress"
	"github.com/example/watch-progress/internal/store"
)

// setupReq builds a request with chi URL params and optional user_id in context.
func setupReq(method, url, body string, params map[string]string, userID string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID != "" {
		ctx = auth.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

func newService() *progress.Service {
	return progress.NewService(store.NewInMemoryStore(), nil, zap.NewNop())
}

func videoParams() map[string]string {
	return map[string]string{"video_id": "video-1"}
}

func TestGetProgress_CreatesEmptyRecord(t *testing.T) {
	svc := newService()
	handler := GetProgress(svc)

	req := setupReq(http.MethodGet, "/v1/progress/video-1", "", videoParams(), "user-a")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var rec progress.Record
	if err := json.NewDecoder(rr.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.UserID != "user-a" || rec.VideoID != "video-1" {
		t.Fatalf("unexpected record identity: %+v", rec)
	}
	if len(rec.Intervals) != 0 || rec.TotalWatched != 0 {
		t.Fatalf("expected empty record, got %+v", rec)
	}
}

func TestGetProgress_Unauthorized(t *testing.T) {
	handler := GetProgress(newService())

	req := setupReq(http.MethodGet, "/v1/progress/video-1", "", videoParams(), "")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestUpdateProgress_Accepted(t *testing.T) {
	handler := UpdateProgress(newService())

	body := `{"interval":{"start":0,"end":10},"last_position":10}`
	req := setupReq(http.MethodPost, "/v1/progress/video-1", body, videoParams(), "user-a")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp updateProgressResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Accepted {
		t.Fatal("expected interval accepted")
	}
	if resp.Progress.TotalWatched != 10 {
		t.Fatalf("expected total 10, got %v", resp.Progress.TotalWatched)
	}
	if resp.Progress.VideoDuration != 10 {
		t.Fatalf("expected duration seeded to 10, got %v", resp.Progress.VideoDuration)
	}
}

func TestUpdateProgress_RejectionIsNotAnError(t *testing.T) {
	svc := newService()
	handler := UpdateProgress(svc)

	seed := `{"interval":{"start":0,"end":10},"last_position":10}`
	req := setupReq(http.MethodPost, "/v1/progress/video-1", seed, videoParams(), "user-a")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("seed: expected 200, got %d", rr.Code)
	}

	// Duplicate coverage: still 200, accepted=false, record unchanged.
	req = setupReq(http.MethodPost, "/v1/progress/video-1", seed, videoParams(), "user-a")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp updateProgressResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Accepted {
		t.Fatal("expected duplicate interval rejected")
	}
	if resp.Progress.TotalWatched != 10 {
		t.Fatalf("expected total unchanged at 10, got %v", resp.Progress.TotalWatched)
	}
}

func TestUpdateProgress_MalformedInterval(t *testing.T) {
	handler := UpdateProgress(newService())

	cases := []struct {
		name string
		body string
	}{
		{"no interval", `{"last_position":10}`},
		{"missing end", `{"interval":{"start":0},"last_position":10}`},
		{"non-numeric start", `{"interval":{"start":"zero","end":10}}`},
		{"not json", `watch this`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := setupReq(http.MethodPost, "/v1/progress/video-1", tc.body, videoParams(), "user-a")
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestUpdateProgress_Unauthorized(t *testing.T) {
	handler := UpdateProgress(newService())

	body := `{"interval":{"start":0,"end":10},"last_position":10}`
	req := setupReq(http.MethodPost, "/v1/progress/video-1", body, videoParams(), "")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestResetProgress(t *testing.T) {
	st := store.NewInMemoryStore()
	svc := progress.NewService(st, nil, zap.NewNop())

	body := `{"interval":{"start":0,"end":10},"last_position":10}`
	req := setupReq(http.MethodPost, "/v1/progress/video-1", body, videoParams(), "user-a")
	rr := httptest.NewRecorder()
	UpdateProgress(svc).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("seed: expected 200, got %d", rr.Code)
	}

	req = setupReq(http.MethodDelete, "/v1/progress/video-1", "", videoParams(), "user-a")
	rr = httptest.NewRecorder()
	ResetProgress(svc).ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	if _, found, _ := st.Get(context.Background(), "user-a", "video-1"); found {
		t.Fatal("expected record deleted")
	}

	// A second reset of the now-absent record still succeeds.
	req = setupReq(http.MethodDelete, "/v1/progress/video-1", "", videoParams(), "user-a")
	rr = httptest.NewRecorder()
	ResetProgress(svc).ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on absent record, got %d", rr.Code)
	}
}

func TestCheckWatched(t *testing.T) {
	svc := newService()

	body := `{"interval":{"start":0,"end":10},"last_position":10}`
	req := setupReq(http.MethodPost, "/v1/progress/video-1", body, videoParams(), "user-a")
	rr := httptest.NewRecorder()
	UpdateProgress(svc).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("seed: expected 200, got %d", rr.Code)
	}

	handler := CheckWatched(svc)

	req = setupReq(http.MethodGet, "/v1/progress/video-1/watched?start=2&end=8", "", videoParams(), "user-a")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp watchedResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Watched {
		t.Fatal("expected [2,8] watched")
	}

	req = setupReq(http.MethodGet, "/v1/progress/video-1/watched?start=2&end=50", "", videoParams(), "user-a")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Watched {
		t.Fatal("expected [2,50] not watched")
	}
}

func TestCheckWatched_MissingParams(t *testing.T) {
	handler := CheckWatched(newService())

	req := setupReq(http.MethodGet, "/v1/progress/video-1/watched?start=2", "", videoParams(), "user-a")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
