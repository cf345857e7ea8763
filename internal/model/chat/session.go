package chat

import "time"

// Session is one continuous chat thread between a user and the backend,
// scoped to a course. Identity is assigned by the backend when the chat
// starts; the title arrives in two phases (provisional, then finalized).
type Session struct {
	ID               string    `json:"id"`
	TopicID          string    `json:"topicId,omitempty"`
	UserID           string    `json:"userId,omitempty"`
	CourseID         string    `json:"courseId,omitempty"`
	ProvisionalTitle string    `json:"initialTitle"`
	FinalTitle       string    `json:"finalTitle,omitempty"`
	TitleFinalized   bool      `json:"isTitleFinalized"`
	LastMessageAt    time.Time `json:"lastMessageAt"`
}

// DisplayTitle prefers the finalized title once it exists.
func (s Session) DisplayTitle() string {
	if s.TitleFinalized && s.FinalTitle != "" {
		return s.FinalTitle
	}
	return s.ProvisionalTitle
}
