package analytics

import (
	"strings"

	"corncare-backend/models"
)

// GeneralCategory collects user messages that match no keyword list
const GeneralCategory = "general"

// Category is a topic with the substrings that select it
type Category struct {
	Name     string
	Keywords []string
}

// Categories is the fixed topic table, in reporting order
var Categories = []Category{
	{Name: "disease", Keywords: []string{"blight", "rust", "spot", "rot", "mildew", "fungus", "infection"}},
	{Name: "treatment", Keywords: []string{"treatment", "cure", "fungicide", "pesticide", "spray", "apply"}},
	{Name: "prevention", Keywords: []string{"prevent", "avoid", "protect", "resistant", "rotation"}},
	{Name: "fertilizer", Keywords: []string{"fertilizer", "nitrogen", "phosphorus", "potassium", "npk", "nutrient"}},
	{Name: "irrigation", Keywords: []string{"water", "irrigation", "moisture", "drought", "rain"}},
	{Name: "pest", Keywords: []string{"pest", "insect", "bug", "worm", "caterpillar", "beetle"}},
}

// Classify returns the names of every category text belongs to, or
// GeneralCategory alone when none match.
func Classify(text string) []string {
	lower := strings.ToLower(text)

	var hits []string
	for _, c := range Categories {
		for _, kw := range c.Keywords {
			if strings.Contains(lower, kw) {
				hits = append(hits, c.Name)
				break
			}
		}
	}

	if len(hits) == 0 {
		return []string{GeneralCategory}
	}
	return hits
}

// Categorize tallies the user-authored messages of every session.
// All categories are present in the result, zero or not.
func Categorize(chats []models.Chat) map[string]int {
	counts := make(map[string]int, len(Categories)+1)
	for _, c := range Categories {
		counts[c.Name] = 0
	}
	counts[GeneralCategory] = 0

	for _, chat := range chats {
		for _, msg := range chat.Messages {
			if !msg.IsUser {
				continue
			}
			for _, name := range Classify(msg.Text) {
				counts[name]++
			}
		}
	}

	return counts
}
