package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

func historyRouter(env *testEnv) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/history", env.app.HistoryList)
	r.Get("/api/history/{id}", env.app.HistoryGet)
	r.Delete("/api/history/{id}", env.app.HistoryDelete)
	r.Get("/api/history/{id}/photos.zip", env.app.HistoryPhotosZip)
	return r
}

func seedRecord(t *testing.T, env *testEnv, id, userID string, keys []string) {
	t.Helper()
	err := env.history.Save(context.Background(), &domain.GenerationRecord{
		ID:          id,
		UserID:      userID,
		Lang:        domain.LangRU,
		Hint:        "кроссовки",
		ImageCount:  len(keys),
		ImageKeys:   keys,
		ResultJSON:  []byte(`{"lang": "ru"}`),
		ProductType: "sneakers",
		ElapsedMS:   1200,
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func historyRequest(t *testing.T, env *testEnv, method, target, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if userID != "" {
		req = req.WithContext(authedContext(req.Context(), userID))
	}
	rr := httptest.NewRecorder()
	historyRouter(env).ServeHTTP(rr, req)
	return rr
}

func TestHistoryListReturnsOwnEntriesOnly(t *testing.T) {
	env := newTestEnv(t)
	seedRecord(t, env, "rec-1", "user-1", nil)
	seedRecord(t, env, "rec-2", "user-2", nil)

	rr := historyRequest(t, env, http.MethodGet, "/api/history", "user-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Items []historySummaryDTO `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].ID != "rec-1" {
		t.Fatalf("items = %+v", out.Items)
	}
}

func TestHistoryListRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rr := historyRequest(t, env, http.MethodGet, "/api/history", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestHistoryGetReturnsDetail(t *testing.T) {
	env := newTestEnv(t)
	seedRecord(t, env, "rec-1", "user-1", []string{"user-1/rec-1/photo-01.jpg"})

	rr := historyRequest(t, env, http.MethodGet, "/api/history/rec-1", "user-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var detail historyDetailDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.ID != "rec-1" || len(detail.ImageKeys) != 1 {
		t.Fatalf("detail = %+v", detail)
	}
	if string(detail.Result) == "" {
		t.Fatalf("result JSON missing")
	}
}

func TestHistoryGetHidesOtherUsersEntries(t *testing.T) {
	env := newTestEnv(t)
	seedRecord(t, env, "rec-1", "user-1", nil)

	rr := historyRequest(t, env, http.MethodGet, "/api/history/rec-1", "user-2")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestHistoryDelete(t *testing.T) {
	env := newTestEnv(t)
	seedRecord(t, env, "rec-1", "user-1", nil)

	rr := historyRequest(t, env, http.MethodDelete, "/api/history/rec-1", "user-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if len(env.history.records) != 0 {
		t.Fatalf("record not deleted")
	}

	rr = historyRequest(t, env, http.MethodDelete, "/api/history/rec-1", "user-1")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rr.Code)
	}
}

func TestHistoryPhotosZipStreamsStoredPhotos(t *testing.T) {
	env := newTestEnv(t)
	keys := []string{"user-1/rec-1/photo-01.jpg", "user-1/rec-1/photo-02.png"}
	for i, key := range keys {
		if _, err := env.store.Write(context.Background(), key, []byte{0xff, byte(i)}); err != nil {
			t.Fatalf("seed photo: %v", err)
		}
	}
	seedRecord(t, env, "rec-1", "user-1", keys)

	rr := historyRequest(t, env, http.MethodGet, "/api/history/rec-1/photos.zip", "user-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type = %q", ct)
	}

	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("zip entries = %d, want 2", len(zr.File))
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["photo-01.jpg"] || !names["photo-02.png"] {
		t.Fatalf("zip names = %v", names)
	}
}

func TestHistoryPhotosZipWithoutStoredPhotos(t *testing.T) {
	env := newTestEnv(t)
	seedRecord(t, env, "rec-1", "user-1", nil)

	rr := historyRequest(t, env, http.MethodGet, "/api/history/rec-1/photos.zip", "user-1")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
