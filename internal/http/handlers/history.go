package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/pkg/zip"
)

type historySummaryDTO struct {
	ID          string      `json:"id"`
	Lang        domain.Lang `json:"lang"`
	Hint        string      `json:"hint,omitempty"`
	ImageCount  int         `json:"image_count"`
	ProductType string      `json:"product_type,omitempty"`
	Brand       string      `json:"brand,omitempty"`
	ElapsedMS   int64       `json:"elapsed_ms"`
	CreatedAt   time.Time   `json:"created_at"`
}

type historyDetailDTO struct {
	historySummaryDTO
	ImageKeys []string        `json:"image_keys"`
	Result    json.RawMessage `json:"result"`
}

func (a *App) HistoryList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	items, err := a.History.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list history failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}
	out := make([]historySummaryDTO, 0, len(items))
	for _, it := range items {
		out = append(out, historySummaryDTO{
			ID:          it.ID,
			Lang:        it.Lang,
			Hint:        it.Hint,
			ImageCount:  it.ImageCount,
			ProductType: it.ProductType,
			Brand:       it.Brand,
			ElapsedMS:   it.ElapsedMS,
			CreatedAt:   it.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}

func (a *App) HistoryGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	rec, ok := a.loadRecord(w, r, userID)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, historyDetailDTO{
		historySummaryDTO: historySummaryDTO{
			ID:          rec.ID,
			Lang:        rec.Lang,
			Hint:        rec.Hint,
			ImageCount:  rec.ImageCount,
			ProductType: rec.ProductType,
			Brand:       rec.Brand,
			ElapsedMS:   rec.ElapsedMS,
			CreatedAt:   rec.CreatedAt,
		},
		ImageKeys: rec.ImageKeys,
		Result:    json.RawMessage(rec.ResultJSON),
	})
}

func (a *App) HistoryDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.History.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "history entry not found")
			return
		}
		a.Logger.Error().Err(err).Msg("delete history failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete history")
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"ok": true})
}

// HistoryPhotosZip streams the stored photos of one history entry as a zip
// archive.
func (a *App) HistoryPhotosZip(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	rec, ok := a.loadRecord(w, r, userID)
	if !ok {
		return
	}
	if a.Store == nil || len(rec.ImageKeys) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no stored photos for this entry")
		return
	}
	assets := make([]zip.Asset, 0, len(rec.ImageKeys))
	for _, key := range rec.ImageKeys {
		data, err := a.Store.Read(r.Context(), key)
		if err != nil {
			a.Logger.Warn().Err(err).Str("key", key).Msg("failed to read stored photo")
			continue
		}
		assets = append(assets, zip.Asset{Filename: path.Base(key), Data: data})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "stored photos are unavailable")
		return
	}
	archive := zip.ArchiveAssets(assets)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="photos-`+rec.ID+`.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) loadRecord(w http.ResponseWriter, r *http.Request, userID string) (*domain.GenerationRecord, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return nil, false
	}
	rec, err := a.History.GetByID(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "history entry not found")
			return nil, false
		}
		a.Logger.Error().Err(err).Msg("load history failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return nil, false
	}
	return rec, true
}
