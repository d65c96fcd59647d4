package analyzer

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/BerylCAtieno/youtube-medallion/internal/models"
)

// FallbackSummaryLength bounds the raw content kept when a response cannot be parsed.
const FallbackSummaryLength = 200

// ParseComment decodes a comment classification. When content is not a JSON
// object it returns the neutral fallback and ok=false; it never fails.
func ParseComment(content string) (result models.CommentClassification, ok bool) {
	fields, ok := decodeObject(content)
	if !ok {
		return CommentFallback(content), false
	}

	return models.CommentClassification{
		Sentiment: sentimentLabel(fields["sentiment"]),
		Score:     number(fields["score"]),
		Emotion:   lowerString(fields["emotion"]),
		Summary:   plainString(fields["summary"]),
	}, true
}

// ParseVideo decodes a video classification with the same recovery policy as ParseComment.
func ParseVideo(content string) (result models.VideoClassification, ok bool) {
	fields, ok := decodeObject(content)
	if !ok {
		return VideoFallback(content), false
	}

	return models.VideoClassification{
		Sentiment: sentimentLabel(fields["sentiment"]),
		Emotions:  stringList(fields["emotions"]),
		Topics:    stringList(fields["topics"]),
	}, true
}

// CommentFallback is substituted for an unparseable comment classification.
func CommentFallback(content string) models.CommentClassification {
	sentiment := models.SentimentNeutral
	emotion := "neutral"
	score := 0.0
	summary := truncate(content, FallbackSummaryLength)
	return models.CommentClassification{
		Sentiment: &sentiment,
		Score:     &score,
		Emotion:   &emotion,
		Summary:   &summary,
	}
}

// VideoFallback is substituted for an unparseable video classification.
func VideoFallback(content string) models.VideoClassification {
	sentiment := models.SentimentNeutral
	summary := truncate(content, FallbackSummaryLength)
	return models.VideoClassification{
		Sentiment: &sentiment,
		Emotions:  []string{"neutral"},
		Topics:    []string{},
		Summary:   &summary,
	}
}

// decodeObject accepts a bare JSON object or one wrapped in a markdown code
// fence. Anything else, including prose around an object, is rejected.
func decodeObject(content string) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &fields); err == nil && fields != nil {
		return fields, true
	}

	stripped := extractJSON(strings.TrimSpace(content))
	if stripped == strings.TrimSpace(content) {
		return nil, false
	}
	if err := json.Unmarshal([]byte(stripped), &fields); err == nil && fields != nil {
		return fields, true
	}
	return nil, false
}

// extractJSON removes a surrounding ``` or ```json fence.
func extractJSON(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	body := strings.TrimPrefix(content, "```")
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		body = body[newline+1:]
	} else {
		return content
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func sentimentLabel(raw json.RawMessage) *string {
	label := lowerString(raw)
	if label == nil {
		return nil
	}
	switch *label {
	case models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative:
		return label
	}
	return nil
}

func plainString(raw json.RawMessage) *string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return nil
	}
	return &s
}

func lowerString(raw json.RawMessage) *string {
	s := plainString(raw)
	if s == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	if v == "" {
		return nil
	}
	return &v
}

// number accepts a JSON number or a numeric string.
func number(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	if s := plainString(raw); s != nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64); err == nil {
			return &f
		}
	}
	return nil
}

func stringList(raw json.RawMessage) []string {
	out := []string{}
	var values []any
	if len(raw) == 0 || json.Unmarshal(raw, &values) != nil {
		return out
	}
	for _, v := range values {
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
