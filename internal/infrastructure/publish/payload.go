package publish

import (
	"time"

	"github.com/nabolaget/vibbobridge/internal/domain"
)

type itemPayload struct {
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

type snapshotEvent struct {
	OrgSlug   string        `json:"organization_slug"`
	FetchedAt time.Time     `json:"fetched_at"`
	Items     []itemPayload `json:"items"`
}

func snapshotPayload(snapshot domain.FeedSnapshot) snapshotEvent {
	ev := snapshotEvent{
		OrgSlug:   snapshot.OrgSlug,
		FetchedAt: snapshot.FetchedAt,
		Items:     make([]itemPayload, 0, len(snapshot.Items)),
	}
	for _, it := range snapshot.Items {
		ev.Items = append(ev.Items, itemPayload{
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
	return ev
}
