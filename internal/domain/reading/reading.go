// Package reading defines the results returned by the scoring API.
package reading

// Today is the daily alignment reading for one person.
type Today struct {
	Date           string   `json:"date"`
	Name           string   `json:"name"`
	MoonSign       string   `json:"moon_sign"`
	AlignmentScore float64  `json:"alignment_score"`
	ContextLines   []string `json:"context_lines"`
}

// Compatibility is the pairwise reading. Score is 0–100.
type Compatibility struct {
	Score        float64  `json:"compatibility_score"`
	SummaryLines []string `json:"summary_lines"`
}

// MoonSign is the finder result. Approximate is set when no birth time
// was supplied.
type MoonSign struct {
	MoonSign    string `json:"moon_sign"`
	Approximate bool   `json:"approximate"`
}
