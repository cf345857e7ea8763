package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/edustack/coursechat/backend/internal/model/chat"
)

// StartChatRequest opens a new session around an initial question.
type StartChatRequest struct {
	UserID          string `json:"user_id"`
	CourseID        string `json:"course_id"`
	InitialQuestion string `json:"initial_question"`
}

// StartChatResult is the backend's start response: session identity, the
// provisional title, the first assistant reply, and an optional title
// finalization task handle.
type StartChatResult struct {
	SessionID        string `json:"chat_session_id"`
	TopicID          string `json:"topic_id"`
	ProvisionalTitle string `json:"topic_title"`
	Answer           string `json:"answer"`
	TitleTaskID      string `json:"title_task_id,omitempty"`
}

// TaskResult carries the finalized title when the task succeeds.
type TaskResult struct {
	NewTitle string `json:"new_title"`
}

// TaskStatus is one observation of an asynchronous backend job.
type TaskStatus struct {
	State    chat.TaskState `json:"state"`
	Result   *TaskResult    `json:"result,omitempty"`
	ErrorMsg string         `json:"error,omitempty"`
}

// StartChat provisions a session for the user's initial question.
func (c *Client) StartChat(ctx context.Context, req StartChatRequest) (StartChatResult, error) {
	var out StartChatResult
	if err := c.doJSON(ctx, http.MethodPost, "/chat/start", req, &out); err != nil {
		return StartChatResult{}, fmt.Errorf("%w: %v", ErrStartSession, err)
	}
	return out, nil
}

// AskQuestion submits a follow-up question to an existing session and
// returns the assistant's reply.
func (c *Client) AskQuestion(ctx context.Context, sessionID, text string) (string, error) {
	req := map[string]string{"chat_session_id": sessionID, "text": text}
	var out struct {
		Response string `json:"response"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/chat/question", req, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitQuestion, err)
	}
	return out.Response, nil
}

// historyEntry is the wire shape of one transcript turn. The backend tags
// assistant turns "bot".
type historyEntry struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ChatHistory fetches the authoritative transcript for a session.
func (c *Client) ChatHistory(ctx context.Context, sessionID string) ([]chat.Message, error) {
	var out []historyEntry
	if err := c.doJSON(ctx, http.MethodGet, "/chat/"+sessionID+"/history", nil, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryLoad, err)
	}

	messages := make([]chat.Message, 0, len(out))
	for _, entry := range out {
		role := chat.Role(entry.Type)
		if entry.Type == "bot" {
			role = chat.RoleAssistant
		}
		messages = append(messages, chat.Message{
			SessionID: sessionID,
			Role:      role,
			Content:   entry.Content,
		})
	}
	return messages, nil
}

// chatListEntry is the wire shape of one session list item. Older backend
// builds report the provisional title as topic_title.
type chatListEntry struct {
	ID           string `json:"id"`
	InitialTitle string `json:"initial_title"`
	TopicTitle   string `json:"topic_title"`
	FinalTitle   string `json:"final_title"`
	Timestamp    string `json:"timestamp"`
}

// ListChats fetches the session list for a (user, course) pair.
func (c *Client) ListChats(ctx context.Context, userID, courseID string) ([]chat.Session, error) {
	var out struct {
		Chats []chatListEntry `json:"chats"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/chats/"+userID+"/"+courseID, nil, &out); err != nil {
		return nil, err
	}

	sessions := make([]chat.Session, 0, len(out.Chats))
	for _, entry := range out.Chats {
		provisional := entry.InitialTitle
		if provisional == "" {
			provisional = entry.TopicTitle
		}
		session := chat.Session{
			ID:               entry.ID,
			UserID:           userID,
			CourseID:         courseID,
			ProvisionalTitle: provisional,
			FinalTitle:       entry.FinalTitle,
			TitleFinalized:   entry.FinalTitle != "",
		}
		if ts, err := time.Parse(time.RFC3339, entry.Timestamp); err == nil {
			session.LastMessageAt = ts
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// TaskStatus polls one title finalization task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (TaskStatus, error) {
	var out TaskStatus
	if err := c.doJSON(ctx, http.MethodGet, "/task/"+taskID, nil, &out); err != nil {
		return TaskStatus{}, fmt.Errorf("%w: %v", ErrTitleFinalization, err)
	}
	return out, nil
}
