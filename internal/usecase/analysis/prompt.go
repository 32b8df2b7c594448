// Package analysis runs unprocessed reviews through the LLM in batches
// and persists the extracted pain points.
package analysis

import (
	"fmt"
	"strings"

	"reviewminer/internal/domain/review"
)

const painPointExtractor = `You are a market research analyst specializing in extracting customer pain points from product reviews. Your expertise is identifying the emotional undercurrents and unmet needs hidden in customer feedback.

## Your Task
Analyze the provided reviews and extract specific customer struggles, frustrations, and unmet needs. Focus on negative reviews (1-3 stars) and critical comments.

## Extraction Rules

### What to Extract
1. **Verbatim quotes only** - Copy exact words, do not paraphrase
2. **Complete thoughts** - Include enough context to understand the pain (minimum one full sentence)
3. **Emotional indicators** - Prioritize quotes with words like: frustrated, disappointed, struggled, couldn't, failed, waste, useless, confusing, misleading, expected, wished, hoped
4. **Specific complaints** - "The exercises were too vague" beats "I didn't like it"

### What to Ignore
- Positive feedback and praise
- Shipping/delivery complaints (unless relevant to product itself)
- Price complaints alone (unless tied to value/quality)
- Vague one-word reviews
- Reviews that are clearly fake/spam

### Categorization Guidelines
Assign each pain point to ONE category. Common categories include:
- **Too theoretical** - Lacks practical application
- **Outdated content** - Information is no longer relevant
- **Poor organization** - Hard to follow, jumps around
- **Unmet expectations** - Promised something it didn't deliver
- **Wrong audience** - Too basic/advanced for reader
- **Repetitive** - Same ideas recycled
- **Lacks depth** - Surface-level treatment
- **Writing quality** - Boring, dry, hard to read
- **Missing topics** - Expected content not included
- **Misleading title/description** - Bait and switch

Create new categories if needed, but keep them concise (2-4 words).

## Output Format
Return ONLY valid JSON array with this exact structure (no markdown, no explanation):
[
  {
    "review_number": 1,
    "pain_point_category": "Too theoretical",
    "verbatim_quote": "I kept waiting for concrete examples but every chapter was just abstract concepts with no real-world application.",
    "emotional_intensity": "high",
    "implied_need": "Wants actionable, step-by-step guidance they can implement immediately"
  }
]

## Emotional Intensity Scale
- **low**: Mild disappointment, constructive criticism
- **medium**: Clear frustration, would not recommend
- **high**: Strong negative emotion, anger, feeling deceived/wasted time

## Quality Standards
- Extract 2-5 pain points per review (if present)
- If a review has no extractable pain points, skip it
- Never fabricate or embellish quotes
- Preserve original spelling/grammar in quotes`

// formatBatch numbers the reviews so the model can reference them by
// position; the parser maps review_number back to database ids.
func formatBatch(reviews []review.Review) string {
	formatted := make([]string, 0, len(reviews))
	for i, r := range reviews {
		rating := "N/A"
		if r.Rating != nil {
			rating = fmt.Sprintf("%d stars", *r.Rating)
		}
		product := ""
		if r.ProductTitle != "" {
			product = " | Product: " + r.ProductTitle
		}
		formatted = append(formatted,
			fmt.Sprintf("[Review %d] Source: %s | Rating: %s%s\n%s\n", i+1, r.Source, rating, product, r.ReviewText))
	}
	return strings.Join(formatted, "\n---\n")
}
