package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"matchroom_server/helpers"

	"github.com/rs/zerolog/log"
)

// PosterURLGenerator presigns poster reads.
type PosterURLGenerator interface {
	GenerateReadURL(ctx context.Context, key string) (string, error)
}

type PosterController struct {
	Posters PosterURLGenerator
}

func NewPosterController(posters PosterURLGenerator) *PosterController {
	return &PosterController{Posters: posters}
}

// GetPresignedReadURL generates a presigned URL for reading a poster image
func (pc *PosterController) GetPresignedReadURL(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Key == "" {
		helpers.WriteError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	url, err := pc.Posters.GenerateReadURL(r.Context(), payload.Key)
	if err != nil {
		log.Warn().Err(err).Str("key", payload.Key).Msg("poster presign failed")
		helpers.WriteError(w, http.StatusBadRequest, "failed to generate poster url")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url})
}
