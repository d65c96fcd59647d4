package analyzer

import "fmt"

// Prompt is one classification request. Only the item's own text is embedded.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

const (
	commentSystemPrompt = "You are a strict JSON generator."
	videoSystemPrompt   = "Return ONLY valid JSON. No markdown. No extra text."
)

// CommentPrompt asks for {sentiment, score, emotion, summary} for one comment.
func CommentPrompt(text string) Prompt {
	user := "Analyze sentiment and emotions for this YouTube comment.\n" +
		"Return ONLY valid JSON like:\n" +
		`{"sentiment":"positive|neutral|negative","score":-1.0,"emotion":"joy|anger|sadness|fear|surprise|disgust|neutral","summary":"..."}` +
		"\n\n" +
		fmt.Sprintf("Comment: %s", text)

	return Prompt{
		System:      commentSystemPrompt,
		User:        user,
		Temperature: 0.2,
		MaxTokens:   120,
	}
}

// VideoPrompt asks for {sentiment, emotions[], topics[]} for one video title.
func VideoPrompt(title string) Prompt {
	user := fmt.Sprintf(`Classify sentiment for this YouTube video title.
Return JSON with exactly:
- sentiment: one of ["positive","neutral","negative"]
- emotions: array of up to 5 emotions
- topics: array of up to 8 topics

TITLE: %s
`, title)

	return Prompt{
		System:      videoSystemPrompt,
		User:        user,
		Temperature: 0.2,
		JSONMode:    true,
	}
}
