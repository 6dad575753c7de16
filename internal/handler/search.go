package handler

import (
	"context"
	"encoding/json"
	"net/http"
)

// PlacesSearcher is what SearchHandler needs from *search.PlacesClient.
type PlacesSearcher interface {
	Ready() error
	Autocomplete(ctx context.Context, raw map[string]any) (json.RawMessage, error)
}

// VideoSearcher is what SearchHandler needs from *search.YouTubeClient.
type VideoSearcher interface {
	Search(ctx context.Context, query, maxResults string) (json.RawMessage, error)
}

// SearchHandler serves the two autocomplete proxies.
type SearchHandler struct {
	places PlacesSearcher
	videos VideoSearcher
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(places PlacesSearcher, videos VideoSearcher) *SearchHandler {
	return &SearchHandler{places: places, videos: videos}
}

// HandlePlaces proxies address autocomplete.
//
// HTTP: POST /api/places/autocomplete
// REQUEST BODY: {"input", "includedPrimaryTypes"?, "languageCode"?, "regionCode"?}
func (h *SearchHandler) HandlePlaces(w http.ResponseWriter, r *http.Request) {
	if err := h.places.Ready(); err != nil {
		writeError(w, err)
		return
	}

	raw, err := decodeObject(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := h.places.Autocomplete(r.Context(), raw)
	if err != nil {
		writeError(w, err)
		return
	}

	writeRaw(w, http.StatusOK, body)
}

// HandleYouTube proxies song search.
//
// HTTP: GET /api/youtube/search?query=...&maxResults=...
func (h *SearchHandler) HandleYouTube(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	body, err := h.videos.Search(r.Context(), q.Get("query"), q.Get("maxResults"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeRaw(w, http.StatusOK, body)
}
