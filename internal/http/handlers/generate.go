package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/listing"
	"server/internal/storage"
)

// maxUploadBytes bounds the whole multipart body, not a single photo.
const maxUploadBytes = 64 << 20

// Generate handles POST /api/generate: photos in, validated listing bundle out.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}

	lang, ok := domain.ParseLang(r.FormValue("lang"))
	if !ok {
		a.error(w, http.StatusBadRequest, "invalid_input", "lang must be one of ru, kz, en")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		a.error(w, http.StatusBadRequest, "invalid_input", "no images provided")
		return
	}
	if len(files) > a.Pipeline.MaxImages() {
		a.error(w, http.StatusBadRequest, "invalid_input",
			fmt.Sprintf("too many images: %d, max %d", len(files), a.Pipeline.MaxImages()))
		return
	}

	images, err := readImages(files)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_input", "images are empty or unreadable")
		return
	}

	req := domain.GenerationRequest{
		Lang:   lang,
		Hint:   r.FormValue("hint"),
		Images: images,
	}

	result, err := a.Pipeline.Generate(r.Context(), req)
	if err != nil {
		a.writeFailure(w, err)
		return
	}

	a.recordHistory(r.Context(), userID, req, result)
	a.json(w, http.StatusOK, result.Bundle)
}

func readImages(files []*multipart.FileHeader) ([]domain.ImageInput, error) {
	images := make([]domain.ImageInput, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, errors.New("empty image upload")
		}
		images = append(images, domain.ImageInput{
			Filename: fh.Filename,
			MIME:     fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return images, nil
}

// writeFailure maps a pipeline failure onto an HTTP status. The response
// carries the safe reason only; raw prompt or model text never leaves the
// server.
func (a *App) writeFailure(w http.ResponseWriter, err error) {
	var f *listing.Failure
	if !errors.As(err, &f) {
		a.Logger.Error().Err(err).Msg("generation failed")
		a.error(w, http.StatusInternalServerError, "internal", "generation failed")
		return
	}
	a.Logger.Warn().
		Str("kind", string(f.Kind)).
		Str("stage", string(f.Stage)).
		Err(err).
		Msg("generation failed")

	switch f.Kind {
	case listing.FailInvalidInput:
		a.error(w, http.StatusBadRequest, string(f.Kind), f.Reason)
	case listing.FailRateLimited:
		a.error(w, http.StatusTooManyRequests, string(f.Kind), "model API is rate limiting, try again later")
	case listing.FailModelUnavailable:
		a.error(w, http.StatusServiceUnavailable, string(f.Kind), "model API is unavailable, try again later")
	case listing.FailModelRefused:
		a.error(w, http.StatusUnprocessableEntity, string(f.Kind), "the model declined to describe these photos")
	default:
		a.error(w, http.StatusBadGateway, string(f.Kind), "the service could not produce a valid listing")
	}
}

// recordHistory stores uploaded photos and the history row. Both are
// best-effort: a persistence failure is logged and never affects the response
// already owed to the caller.
func (a *App) recordHistory(ctx context.Context, userID string, req domain.GenerationRequest, result *listing.Result) {
	if a.History == nil {
		return
	}
	// The request context may be cancelled right after the response is
	// written; persistence gets its own deadline.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	recordID := uuid.NewString()
	keys := make([]string, 0, len(req.Images))
	if a.Store != nil {
		for i, img := range req.Images {
			key := fmt.Sprintf("%s/%s/photo-%02d%s", userID, recordID, i+1, storage.ExtForMIME(img.MIME))
			stored, err := a.Store.Write(saveCtx, key, img.Data)
			if err != nil {
				a.Logger.Warn().Err(err).Str("key", key).Msg("failed to store photo")
				continue
			}
			keys = append(keys, stored)
		}
	}

	bundleJSON, err := json.Marshal(result.Bundle)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("failed to encode bundle for history")
		return
	}
	rec := &domain.GenerationRecord{
		ID:          recordID,
		UserID:      userID,
		Lang:        result.Bundle.Lang,
		Hint:        req.Hint,
		ImageCount:  len(req.Images),
		ImageKeys:   keys,
		ResultJSON:  bundleJSON,
		ProductType: result.Bundle.Universal.ProductType,
		Brand:       derefOrEmpty(result.Bundle.Universal.Brand),
		ElapsedMS:   result.Elapsed.Milliseconds(),
	}
	if err := a.History.Save(saveCtx, rec); err != nil {
		a.Logger.Warn().Err(err).Str("record_id", recordID).Msg("failed to save generation history")
	}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
