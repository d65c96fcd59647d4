// Package clean turns bronze documents into silver ones. It drops malformed
// records, projects survivors onto a narrow schema and never calls out.
package clean

import (
	"github.com/BerylCAtieno/youtube-medallion/internal/models"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
)

// Comments applies the comment cleaning rules in order: drop error-marked
// records, drop records whose trimmed text is empty, project, default likes.
func Comments(doc models.BronzeComments, date partition.Date) models.SilverComments {
	items := make([]models.CleanComment, 0, len(doc.Items))
	for _, c := range doc.Items {
		if c.HasError() {
			continue
		}

		text := ""
		if c.Text != nil {
			text = normalizeText(*c.Text)
		}
		if text == "" || c.CommentID == "" {
			continue
		}

		items = append(items, models.CleanComment{
			VideoID:     c.VideoID,
			CommentID:   c.CommentID,
			Author:      c.Author,
			Text:        text,
			Likes:       likes(c.Likes),
			PublishedAt: c.PublishedAt,
		})
	}

	return models.SilverComments{
		IngestDate: date,
		Rows:       len(items),
		Items:      items,
	}
}

// likes defaults an absent count to 0; a present but non-integer one becomes nil.
func likes(v any) *int64 {
	if v == nil {
		zero := int64(0)
		return &zero
	}
	return toInt(v)
}
