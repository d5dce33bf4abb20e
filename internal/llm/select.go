package llm

import "strings"

// Category is the deterministic classification of a user message.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryAnalytical Category = "analytical"
	CategoryCreative   Category = "creative"
	CategoryStrategic  Category = "strategic"
)

var categoryKeywords = map[Category][]string{
	CategoryAnalytical: {
		"analytics", "metrics", "numbers", "streams", "followers",
		"engagement", "stats", "data", "growth rate",
	},
	CategoryCreative: {
		"lyrics", "songwriting", "melody", "artwork", "cover art",
		"video idea", "creative", "write a",
	},
	CategoryStrategic: {
		"strategy", "release plan", "marketing", "promotion", "budget",
		"tour", "booking", "label", "pitch",
	},
}

// Classify assigns a message to a category by keyword score. Ties and
// no-match both resolve to general for consistency.
func Classify(text string) Category {
	lowered := strings.ToLower(text)
	best := CategoryGeneral
	bestScore := 0
	// Fixed iteration order keeps the tie-break deterministic.
	for _, cat := range []Category{CategoryAnalytical, CategoryCreative, CategoryStrategic} {
		score := 0
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(lowered, kw) {
				score++
			}
		}
		if score > bestScore {
			best = cat
			bestScore = score
		} else if score == bestScore && score > 0 {
			best = CategoryGeneral
		}
	}
	return best
}

// Selection names the model a turn should use.
type Selection struct {
	Model    string
	Category Category
}

// SelectModel routes a turn to a backend model. Function-calling requests
// and any request carrying extracted or visual content always use the
// general model; analytical and strategic turns use the reasoning model when
// one is configured.
func SelectModel(generalModel, reasoningModel, userText string, needsTools, hasContent bool) Selection {
	if needsTools || hasContent {
		return Selection{Model: generalModel, Category: CategoryGeneral}
	}
	category := Classify(userText)
	switch category {
	case CategoryAnalytical, CategoryStrategic:
		if reasoningModel != "" {
			return Selection{Model: reasoningModel, Category: category}
		}
	}
	return Selection{Model: generalModel, Category: category}
}
