package domain

import "time"

// ItemKind discriminates normalized feed entries. The set is closed; raw
// entries with any other type tag are dropped during normalization.
type ItemKind string

const (
	KindNews ItemKind = "news"
	KindPost ItemKind = "post"
)

// FeedItem is one normalized activity entry. Produced fresh on every poll
// cycle and never mutated afterwards.
type FeedItem struct {
	Kind          ItemKind
	ID            string
	Title         string
	Slug          string
	CreatedAt     time.Time
	ThumbsUpCount int
	CommentsCount int
	Body          string

	// News only.
	Pinned bool
	Topics []string

	// Post only.
	AuthorName    string
	CategoryLabel string
}

// FeedSnapshot is the unit published to consumers after each poll cycle.
// Items are in the order returned by the portal (reverse-chronological).
// On a failed cycle the previous items are retained and only FetchedAt and
// LastError change.
type FeedSnapshot struct {
	Items     []FeedItem
	OrgSlug   string
	FetchedAt time.Time
	// LastError is the classified error of the most recent cycle, nil after
	// a success.
	LastError error
}

// Stale reports whether the snapshot's most recent cycle failed.
func (s FeedSnapshot) Stale() bool { return s.LastError != nil }
