package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// FeedbackEntry records how a generated exercise landed with the user.
// Rating is 1-5; 4 and above reads as helpful, 2 and below as unhelpful.
type FeedbackEntry struct {
	ExerciseID string
	Title      string
	Rating     int
	UpdatedAt  time.Time
}

// KnowledgeDoc is an imported knowledge-base chunk persisted alongside
// the compiled-in corpus.
type KnowledgeDoc struct {
	ID        string
	Content   string
	Source    string
	CreatedAt time.Time
}
