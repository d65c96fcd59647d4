package analyzer

import (
	"strings"
	"testing"
)

func TestParseCommentValid(t *testing.T) {
	got, ok := ParseComment(`{"sentiment":"Positive","score":0.8,"emotion":"Joy","summary":"Loves it"}`)
	if !ok {
		t.Fatal("expected valid JSON to parse")
	}
	if *got.Sentiment != "positive" || *got.Score != 0.8 || *got.Emotion != "joy" || *got.Summary != "Loves it" {
		t.Fatalf("unexpected classification %+v", got)
	}
}

func TestParseCommentProseIsFallback(t *testing.T) {
	content := `Sure! {"sentiment":"positive"}`

	got, ok := ParseComment(content)
	if ok {
		t.Fatal("expected prose-wrapped JSON to be rejected")
	}
	if *got.Sentiment != "neutral" {
		t.Fatalf("expected neutral sentiment, got %q", *got.Sentiment)
	}
	if *got.Score != 0.0 {
		t.Fatalf("expected zero score, got %v", *got.Score)
	}
	if *got.Emotion != "neutral" {
		t.Fatalf("expected neutral emotion, got %q", *got.Emotion)
	}
	if *got.Summary != content {
		t.Fatalf("expected raw content as summary, got %q", *got.Summary)
	}
}

func TestParseCommentFallbackTruncates(t *testing.T) {
	content := strings.Repeat("é", 250)

	got, ok := ParseComment(content)
	if ok {
		t.Fatal("expected fallback")
	}
	if n := len([]rune(*got.Summary)); n != FallbackSummaryLength {
		t.Fatalf("expected %d runes, got %d", FallbackSummaryLength, n)
	}
}

func TestParseCommentCodeFence(t *testing.T) {
	got, ok := ParseComment("```json\n{\"sentiment\":\"negative\",\"score\":-0.5}\n```")
	if !ok {
		t.Fatal("expected fenced JSON to parse")
	}
	if *got.Sentiment != "negative" || *got.Score != -0.5 {
		t.Fatalf("unexpected classification %+v", got)
	}
	if got.Emotion != nil || got.Summary != nil {
		t.Fatalf("expected absent fields to stay nil, got %+v", got)
	}
}

func TestParseCommentLenientFields(t *testing.T) {
	got, ok := ParseComment(`{"sentiment":"mixed","score":"0.25","emotion":7}`)
	if !ok {
		t.Fatal("expected object to parse")
	}
	if got.Sentiment != nil {
		t.Fatalf("expected out-of-set sentiment to be nil, got %q", *got.Sentiment)
	}
	if got.Score == nil || *got.Score != 0.25 {
		t.Fatalf("expected numeric string score, got %v", got.Score)
	}
	if got.Emotion != nil {
		t.Fatalf("expected non-string emotion to be nil, got %v", *got.Emotion)
	}
}

func TestParseNonObjectIsFallback(t *testing.T) {
	for _, content := range []string{"", "null", `["positive"]`, `"positive"`, "{broken"} {
		if _, ok := ParseComment(content); ok {
			t.Errorf("ParseComment(%q) should fall back", content)
		}
		if _, ok := ParseVideo(content); ok {
			t.Errorf("ParseVideo(%q) should fall back", content)
		}
	}
}

func TestParseVideo(t *testing.T) {
	got, ok := ParseVideo(`{"sentiment":"neutral","emotions":["curiosity"," ",3],"topics":["sleep","health"]}`)
	if !ok {
		t.Fatal("expected valid JSON to parse")
	}
	if *got.Sentiment != "neutral" {
		t.Fatalf("unexpected sentiment %q", *got.Sentiment)
	}
	if len(got.Emotions) != 1 || got.Emotions[0] != "curiosity" {
		t.Fatalf("unexpected emotions %v", got.Emotions)
	}
	if len(got.Topics) != 2 {
		t.Fatalf("unexpected topics %v", got.Topics)
	}
	if got.Summary != nil {
		t.Fatal("summary is only set on fallback")
	}
}

func TestParseVideoFallback(t *testing.T) {
	got, ok := ParseVideo("I cannot help with that.")
	if ok {
		t.Fatal("expected fallback")
	}
	if *got.Sentiment != "neutral" || len(got.Emotions) != 1 || got.Emotions[0] != "neutral" || len(got.Topics) != 0 {
		t.Fatalf("unexpected fallback %+v", got)
	}
	if *got.Summary != "I cannot help with that." {
		t.Fatalf("unexpected summary %q", *got.Summary)
	}
}
