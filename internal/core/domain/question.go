package domain

import "time"

const (
	MaxQuestionTextLength = 200
	MaxChoiceTextLength   = 200

	// RecentWindow is how far back a publish date still counts as recent.
	RecentWindow = 24 * time.Hour
)

type Question struct {
	ID             int64     `json:"id"`
	Text           string    `json:"question_text"`
	PubDate        time.Time `json:"pub_date"`
	OwnerID        *int64    `json:"owner_id,omitempty"`
	AccessCodeHash string    `json:"-"`
	Choices        []Choice  `json:"choices,omitempty"`
}

type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"choice_text"`
	Votes      int64  `json:"votes"`
}

// SearchResult is the projection returned by question search.
type SearchResult struct {
	ID      int64     `json:"id"`
	Text    string    `json:"question_text"`
	PubDate time.Time `json:"pub_date"`
}

func (q *Question) IsPublished(now time.Time) bool {
	return !q.PubDate.After(now)
}

func (q *Question) WasPublishedRecently(now time.Time) bool {
	return !q.PubDate.Before(now.Add(-RecentWindow)) && !q.PubDate.After(now)
}

func (q *Question) RequiresAccessCode() bool {
	return q.AccessCodeHash != ""
}

func (q *Question) OwnedBy(accountID int64) bool {
	return q.OwnerID != nil && *q.OwnerID == accountID
}

func (q *Question) TotalVotes() int64 {
	var total int64
	for _, c := range q.Choices {
		total += c.Votes
	}
	return total
}
