package upstream

import "encoding/json"

// QuestionsRequest identifies the participant and requested difficulty.
type QuestionsRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Difficulty string `json:"difficulty"`
}

// QuestionPayload is a single multiple-choice question as delivered by the
// backend. Answer indexes into Choices.
type QuestionPayload struct {
	Text    string   `json:"question"`
	Choices []string `json:"choices"`
	Answer  int      `json:"answer"`
}

// QuestionsResponse holds a question set plus an optional time budget.
type QuestionsResponse struct {
	TotalQuestions int               `json:"total_questions"`
	TimeMinutes    int               `json:"time_minutes"`
	Questions      []QuestionPayload `json:"questions"`
}

// SubmitRequest carries an aggregate quiz result for persistence.
type SubmitRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Question       string `json:"question"`
	Answer         int    `json:"answer"` // correct count in the aggregate shape
	AgeGroup       string `json:"age_group"`
	TotalQuestions int    `json:"totalQuestions"`
	Percentage     int    `json:"percentage"`
	TimeSpent      int    `json:"timeSpent"`
	Difficulty     string `json:"difficulty"`
}

// SubmitResponse is what the backend echoes after persisting a result.
type SubmitResponse struct {
	Score      int    `json:"score"`
	Percentage int    `json:"percentage"`
	Feedback   string `json:"feedback"`
	Badge      string `json:"badge"`
	InsertedID string `json:"inserted_id"`
}

// ExplainRequest asks for a short explanation of the correct choice.
type ExplainRequest struct {
	Question     string   `json:"question"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
}

// SubmissionRecord is the authoritative, persisted result looked up by id.
type SubmissionRecord struct {
	ID             string
	Name           string
	Email          string
	Score          int
	TotalQuestions int
	Percentage     int
	TimeSpent      int
	Difficulty     string
	Date           string
}

// LeaderboardEntry is one ranked row from the backend leaderboard.
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	Name           string `json:"name"`
	Score          int    `json:"score"`
	Percentage     int    `json:"percentage"`
	TotalQuestions int    `json:"totalQuestions"`
	Difficulty     string `json:"difficulty"`
	TimeSpent      int    `json:"timeSpent"`
	Date           string `json:"date"`
}

// EmailRequest forwards a result summary for email delivery.
type EmailRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	Percentage     int    `json:"percentage"`
	Badge          string `json:"badge"`
}

// The backend is permissive about field naming (camelCase vs snake_case,
// numbers sometimes serialized as strings). Tolerance of these shapes is
// isolated here: the wire structs below accept every variant and normalize
// into the fully-typed records above.

type submissionWire struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	Score           json.Number `json:"score"`
	TotalQuestions  json.Number `json:"totalQuestions"`
	TotalQuestions2 json.Number `json:"total_questions"`
	Percentage      json.Number `json:"percentage"`
	TimeSpent       json.Number `json:"timeSpent"`
	TimeSpent2      json.Number `json:"time_spent"`
	Difficulty      string      `json:"difficulty"`
	Date            string      `json:"date"`
}

func (w submissionWire) normalize() SubmissionRecord {
	return SubmissionRecord{
		ID:             w.ID,
		Name:           w.Name,
		Email:          w.Email,
		Score:          intFrom(w.Score),
		TotalQuestions: firstInt(w.TotalQuestions, w.TotalQuestions2),
		Percentage:     intFrom(w.Percentage),
		TimeSpent:      firstInt(w.TimeSpent, w.TimeSpent2),
		Difficulty:     w.Difficulty,
		Date:           w.Date,
	}
}

type leaderboardEntryWire struct {
	Rank            json.Number `json:"rank"`
	Name            string      `json:"name"`
	Score           json.Number `json:"score"`
	Percentage      json.Number `json:"percentage"`
	TotalQuestions  json.Number `json:"totalQuestions"`
	TotalQuestions2 json.Number `json:"total_questions"`
	Difficulty      string      `json:"difficulty"`
	TimeSpent       json.Number `json:"timeSpent"`
	TimeSpent2      json.Number `json:"time_spent"`
	Date            string      `json:"date"`
}

func (w leaderboardEntryWire) normalize() LeaderboardEntry {
	return LeaderboardEntry{
		Rank:           intFrom(w.Rank),
		Name:           w.Name,
		Score:          intFrom(w.Score),
		Percentage:     intFrom(w.Percentage),
		TotalQuestions: firstInt(w.TotalQuestions, w.TotalQuestions2),
		Difficulty:     w.Difficulty,
		TimeSpent:      firstInt(w.TimeSpent, w.TimeSpent2),
		Date:           w.Date,
	}
}

func intFrom(n json.Number) int {
	if n == "" {
		return 0
	}
	v, err := n.Int64()
	if err != nil {
		if f, ferr := n.Float64(); ferr == nil {
			return int(f)
		}
		return 0
	}
	return int(v)
}

func firstInt(ns ...json.Number) int {
	for _, n := range ns {
		if n != "" {
			return intFrom(n)
		}
	}
	return 0
}
