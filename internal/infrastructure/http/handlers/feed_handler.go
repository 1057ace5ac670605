package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nabolaget/vibbobridge/internal/domain"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

// TitleDisplayLength is the sensor state truncation limit, matching the
// portal widget.
const TitleDisplayLength = 50

type FeedHandler struct {
	refresher FeedRefresher
	log       zerolog.Logger
}

func NewFeedHandler(refresher FeedRefresher, log zerolog.Logger) *FeedHandler {
	return &FeedHandler{refresher: refresher, log: log}
}

type feedItemResponse struct {
	Kind          string    `json:"kind"`
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	CreatedAt     time.Time `json:"created_at"`
	ThumbsUpCount int       `json:"thumbs_up_count"`
	CommentsCount int       `json:"comments_count"`
	Body          string    `json:"body"`
	Pinned        bool      `json:"pinned,omitempty"`
	Topics        []string  `json:"topics,omitempty"`
	AuthorName    string    `json:"author_name,omitempty"`
	CategoryLabel string    `json:"category_label,omitempty"`
}

type feedResponse struct {
	// State is the sensor's primary value: the first item title, truncated.
	State            string             `json:"state"`
	Items            []feedItemResponse `json:"items"`
	OrganizationSlug string             `json:"organization_slug"`
	FetchedAt        *time.Time         `json:"fetched_at,omitempty"`
	Stale            bool               `json:"stale"`
	LastError        string             `json:"last_error,omitempty"`
	NeedsLogin       bool               `json:"needs_login,omitempty"`
}

// Get handles GET /feed, the sensor projection of the latest snapshot.
func (h *FeedHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, feedResponseFrom(h.refresher.Snapshot()))
}

// Refresh handles POST /feed/refresh: triggers an on-demand cycle and
// returns the snapshot that satisfied it. A cycle already in flight
// satisfies the request without a second fetch.
func (h *FeedHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.refresher.Refresh(r.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("on-demand refresh aborted")
		writeErr(w, http.StatusServiceUnavailable, "", "refresh did not complete")
		return
	}
	writeJSON(w, http.StatusOK, feedResponseFrom(snap))
}

func feedResponseFrom(snap domain.FeedSnapshot) feedResponse {
	resp := feedResponse{
		State:            "No Data",
		Items:            make([]feedItemResponse, 0, len(snap.Items)),
		OrganizationSlug: snap.OrgSlug,
		Stale:            snap.Stale(),
	}
	if !snap.FetchedAt.IsZero() {
		t := snap.FetchedAt
		resp.FetchedAt = &t
	}
	if snap.LastError != nil {
		resp.LastError = snap.LastError.Error()
		resp.NeedsLogin = errors.Is(snap.LastError, domerrors.ErrUnauthenticated) ||
			errors.Is(snap.LastError, domerrors.ErrRefreshFailed)
	}
	if len(snap.Items) > 0 {
		resp.State = truncateTitle(snap.Items[0].Title)
	}
	for _, it := range snap.Items {
		resp.Items = append(resp.Items, feedItemResponse{
			Kind:          string(it.Kind),
			ID:            it.ID,
			Title:         it.Title,
			Slug:          it.Slug,
			CreatedAt:     it.CreatedAt,
			ThumbsUpCount: it.ThumbsUpCount,
			CommentsCount: it.CommentsCount,
			Body:          it.Body,
			Pinned:        it.Pinned,
			Topics:        it.Topics,
			AuthorName:    it.AuthorName,
			CategoryLabel: it.CategoryLabel,
		})
	}
	return resp
}

// truncateTitle limits the sensor state to TitleDisplayLength runes with an
// ellipsis, never splitting a multi-byte character.
func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= TitleDisplayLength {
		return title
	}
	return string(runes[:TitleDisplayLength]) + "…"
}
