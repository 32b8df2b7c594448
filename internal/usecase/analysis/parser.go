package analysis

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"reviewminer/internal/errs"
)

// extractedPainPoint mirrors the JSON shape the extraction prompt asks
// the model to produce.
type extractedPainPoint struct {
	ReviewNumber       int    `json:"review_number"`
	PainPointCategory  string `json:"pain_point_category"`
	VerbatimQuote      string `json:"verbatim_quote"`
	EmotionalIntensity string `json:"emotional_intensity"`
	ImpliedNeed        string `json:"implied_need"`
}

var (
	codeBlockPattern    = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	trailingCommaFixup  = regexp.MustCompile(`,\s*([}\]])`)
	errNoJSONInResponse = errors.New("no JSON array in response")
)

// parsePainPoints pulls a JSON array out of a model response that may
// wrap it in markdown fences or prose, repairing trailing commas when
// the first decode fails.
func parsePainPoints(response string) ([]extractedPainPoint, error) {
	jsonText := extractJSON(response)
	if jsonText == "" {
		return nil, errNoJSONInResponse
	}

	var points []extractedPainPoint
	if err := json.Unmarshal([]byte(jsonText), &points); err != nil {
		fixed := trailingCommaFixup.ReplaceAllString(jsonText, "$1")
		if err2 := json.Unmarshal([]byte(fixed), &points); err2 != nil {
			return nil, errs.Wrap(err, "decode pain points")
		}
	}
	return points, nil
}

func extractJSON(text string) string {
	for _, m := range codeBlockPattern.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimSpace(m[1])
		if strings.HasPrefix(candidate, "[") {
			return candidate
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start != -1 && end > start {
		return text[start : end+1]
	}
	return ""
}
