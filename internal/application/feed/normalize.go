package feed

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
	"github.com/nabolaget/vibbobridge/internal/domain"
)

// Normalize re-shapes raw portal entries into display-ready feed items.
// Entries keep the order the portal returned them in (already
// reverse-chronological); the normalizer never re-sorts.
//
// Entries with an unrecognized type tag are dropped silently so new portal
// item types do not break the cycle. Entries missing an id or title are
// dropped with a warning. Missing optional fields default to zero values.
func Normalize(raw *ports.RawFeed, log zerolog.Logger) []domain.FeedItem {
	if raw == nil {
		return nil
	}
	items := make([]domain.FeedItem, 0, len(raw.Entries))
	for _, e := range raw.Entries {
		kind, ok := kindForTag(e.TypeTag)
		if !ok {
			continue
		}
		if e.ID == "" || e.Title == "" {
			log.Warn().
				Str("kind", string(kind)).
				Str("id", e.ID).
				Str("slug", e.Slug).
				Msg("dropping feed entry with missing required fields")
			continue
		}
		item := domain.FeedItem{
			Kind:          kind,
			ID:            e.ID,
			Title:         e.Title,
			Slug:          e.Slug,
			CreatedAt:     e.HappenedAt,
			ThumbsUpCount: clampNonNegative(e.ThumbsUp),
			CommentsCount: clampNonNegative(e.Comments),
			Body:          e.Body,
		}
		switch kind {
		case domain.KindNews:
			item.Pinned = e.Pinned
			item.Topics = e.Topics
		case domain.KindPost:
			item.AuthorName = e.AuthorName
			item.CategoryLabel = e.Category
		}
		items = append(items, item)
	}
	return items
}

func kindForTag(tag string) (domain.ItemKind, bool) {
	switch strings.ToLower(tag) {
	case "news":
		return domain.KindNews, true
	case "post":
		return domain.KindPost, true
	default:
		return "", false
	}
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
