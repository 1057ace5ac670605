package vibbo

import (
	"context"
	"fmt"
	"time"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

const activityStreamQuery = `query vibboActivityStream(
  $organizationId: OrganizationID!
  $limit: Int
  $filter: OrganizationActivityFilter
) {
  stream: activityInOrganization(
    organizationId: $organizationId
    limit: $limit
    filter: $filter
  ) {
    items {
      happenedAt
      item {
        __typename
        ... on News {
          id
          slug
          title
          ingress
          pinned
          topics {
            title
          }
          commentsCount
          thumbsUpCount: reactionCount(type: THUMBS_UP)
        }
        ... on Post {
          id
          slug
          title
          body
          category {
            label
          }
          updatedBy {
            firstName
          }
          commentsCount
          thumbsUpCount: reactionCount(type: THUMBS_UP)
        }
      }
    }
  }
}`

type activityItemPayload struct {
	TypeName string `json:"__typename"`
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Ingress  string `json:"ingress"`
	Body     string `json:"body"`
	Pinned   bool   `json:"pinned"`
	Topics   []struct {
		Title string `json:"title"`
	} `json:"topics"`
	Category *struct {
		Label string `json:"label"`
	} `json:"category"`
	UpdatedBy *struct {
		FirstName string `json:"firstName"`
	} `json:"updatedBy"`
	CommentsCount int `json:"commentsCount"`
	ThumbsUpCount int `json:"thumbsUpCount"`
}

type activityStreamPayload struct {
	Stream *struct {
		Items []struct {
			HappenedAt string               `json:"happenedAt"`
			Item       *activityItemPayload `json:"item"`
		} `json:"items"`
	} `json:"stream"`
}

// FetchActivity runs the organization-scoped activity query and re-shapes
// the payload into raw entries, preserving the portal's ordering.
func (c *Client) FetchActivity(ctx context.Context, token, orgID string, limit int) (*ports.RawFeed, error) {
	var payload activityStreamPayload
	_, err := c.graphql(ctx, token, "vibboActivityStream", activityStreamQuery, map[string]any{
		"organizationId": orgID,
		"limit":          limit,
		"filter":         "ALL",
	}, &payload)
	if err != nil {
		return nil, err
	}
	if payload.Stream == nil {
		return nil, fmt.Errorf("%w: no stream in response", domerrors.ErrMalformedResponse)
	}

	raw := &ports.RawFeed{Entries: make([]ports.RawEntry, 0, len(payload.Stream.Items))}
	for _, it := range payload.Stream.Items {
		if it.Item == nil {
			continue
		}
		raw.Entries = append(raw.Entries, rawEntryFrom(it.HappenedAt, it.Item))
	}
	return raw, nil
}

func rawEntryFrom(happenedAt string, item *activityItemPayload) ports.RawEntry {
	entry := ports.RawEntry{
		TypeTag:  item.TypeName,
		ID:       item.ID,
		Slug:     item.Slug,
		Title:    item.Title,
		Pinned:   item.Pinned,
		Comments: item.CommentsCount,
		ThumbsUp: item.ThumbsUpCount,
	}
	if t, err := time.Parse(time.RFC3339, happenedAt); err == nil {
		entry.HappenedAt = t
	}
	// News carries an ingress, posts a body.
	entry.Body = item.Body
	if entry.Body == "" {
		entry.Body = item.Ingress
	}
	for _, topic := range item.Topics {
		if topic.Title != "" {
			entry.Topics = append(entry.Topics, topic.Title)
		}
	}
	if item.Category != nil {
		entry.Category = item.Category.Label
	}
	if item.UpdatedBy != nil {
		entry.AuthorName = item.UpdatedBy.FirstName
	}
	return entry
}
