// Package analytics contains the stateless routines behind chat search, stats and
// topic categorisation. Every function works on the slices it is given and keeps no
// state between calls.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"corncare-backend/models"

	"github.com/google/uuid"
)

const (
	// PreviewLength is the rune cap on the last message shown in a preview
	PreviewLength = 50
	// SearchLength is the rune cap on a matching message in search results
	SearchLength = 100

	// MinKeywordLength is the rune count a word must exceed to count as a keyword
	MinKeywordLength = 3
	// TopKeywordsLimit caps the keyword ranking
	TopKeywordsLimit = 10
	// ActivityDays is how many of the most recent active days are reported
	ActivityDays = 7
	// SearchLimit caps the number of sessions a search returns
	SearchLimit = 10

	ellipsis = "..."
)

// Truncate cuts text to max runes and appends "..." when anything was removed
func Truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + ellipsis
}

// KeywordCount is one row of the keyword table
type KeywordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// DayCount is the number of messages written on a UTC calendar day
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ChatStats summarises every session of a user
type ChatStats struct {
	TotalChats             int            `json:"totalChats"`
	TotalMessages          int            `json:"totalMessages"`
	AverageMessagesPerChat float64        `json:"averageMessagesPerChat"`
	TopKeywords            []KeywordCount `json:"topKeywords"`
	DailyActivity          []DayCount     `json:"dailyActivity"`
}

// Summarize computes the stats block over all sessions
func Summarize(chats []models.Chat) ChatStats {
	total := 0
	var userTexts []string
	var stamps []time.Time

	for _, chat := range chats {
		total += len(chat.Messages)
		for _, msg := range chat.Messages {
			stamps = append(stamps, msg.Timestamp)
			if msg.IsUser {
				userTexts = append(userTexts, msg.Text)
			}
		}
	}

	return ChatStats{
		TotalChats:             len(chats),
		TotalMessages:          total,
		AverageMessagesPerChat: AverageMessages(total, len(chats)),
		TopKeywords:            TopKeywords(userTexts, TopKeywordsLimit),
		DailyActivity:          DailyActivity(stamps, ActivityDays),
	}
}

// AverageMessages returns messages per chat rounded to one decimal, 0 with no chats
func AverageMessages(messages, chats int) float64 {
	if chats <= 0 {
		return 0
	}
	return math.Round(float64(messages)/float64(chats)*10) / 10
}

// TopKeywords counts lower-cased whitespace separated words longer than
// MinKeywordLength runes. Ties keep the order in which words first appeared.
func TopKeywords(texts []string, limit int) []KeywordCount {
	counts := make(map[string]int)
	var order []string

	for _, text := range texts {
		for _, word := range strings.Fields(strings.ToLower(text)) {
			if utf8.RuneCountInString(word) <= MinKeywordLength {
				continue
			}
			if _, seen := counts[word]; !seen {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	out := make([]KeywordCount, 0, len(order))
	for _, w := range order {
		out = append(out, KeywordCount{Word: w, Count: counts[w]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DailyActivity buckets timestamps by UTC date and returns the newest days first
func DailyActivity(stamps []time.Time, days int) []DayCount {
	counts := make(map[string]int)
	for _, ts := range stamps {
		counts[ts.UTC().Format(time.DateOnly)]++
	}

	out := make([]DayCount, 0, len(counts))
	for date, n := range counts {
		out = append(out, DayCount{Date: date, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })

	if days >= 0 && len(out) > days {
		out = out[:days]
	}
	return out
}

// SearchMatch is a message that contained the query
type SearchMatch struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsUser    bool      `json:"isUser"`
}

// SearchResult groups the matches of one session
type SearchResult struct {
	ChatID    uuid.UUID     `json:"chatId"`
	CreatedAt time.Time     `json:"createdAt"`
	Matches   []SearchMatch `json:"matches"`
}

// Search does a case-insensitive substring match over every message and keeps
// at most limit sessions, in the order given.
func Search(chats []models.Chat, query string, limit int) []SearchResult {
	q := strings.ToLower(query)
	results := make([]SearchResult, 0)

	for _, chat := range chats {
		if limit >= 0 && len(results) >= limit {
			break
		}

		var matches []SearchMatch
		for _, msg := range chat.Messages {
			if !strings.Contains(strings.ToLower(msg.Text), q) {
				continue
			}
			matches = append(matches, SearchMatch{
				Text:      Truncate(msg.Text, SearchLength),
				Timestamp: msg.Timestamp,
				IsUser:    msg.IsUser,
			})
		}

		if len(matches) > 0 {
			results = append(results, SearchResult{
				ChatID:    chat.ID,
				CreatedAt: chat.CreatedAt,
				Matches:   matches,
			})
		}
	}

	return results
}

// PreviewMessage is the shortened last entry of a session
type PreviewMessage struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsUser    bool      `json:"isUser"`
}

// Preview is one row of the recent chats panel
type Preview struct {
	ChatID       uuid.UUID       `json:"chatId"`
	CreatedAt    time.Time       `json:"createdAt"`
	MessageCount int             `json:"messageCount"`
	LastMessage  *PreviewMessage `json:"lastMessage"`
}

// Previews builds preview rows for chats in the order given
func Previews(chats []models.Chat) []Preview {
	out := make([]Preview, 0, len(chats))
	for i := range chats {
		p := Preview{
			ChatID:       chats[i].ID,
			CreatedAt:    chats[i].CreatedAt,
			MessageCount: len(chats[i].Messages),
		}
		if last := chats[i].LastMessage(); last != nil {
			p.LastMessage = &PreviewMessage{
				Text:      Truncate(last.Text, PreviewLength),
				Timestamp: last.Timestamp,
				IsUser:    last.IsUser,
			}
		}
		out = append(out, p)
	}
	return out
}
