package backend_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edustack/coursechat/backend/internal/backend"
	chat "github.com/edustack/coursechat/backend/internal/model/chat"
)

func TestStartChatSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/start", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		fmt.Fprint(w, `{
			"chat_session_id": "sess-1",
			"topic_id": "topic-1",
			"topic_title": "quick draft",
			"answer": "hello there",
			"title_task_id": "task-9"
		}`)
	}))
	defer srv.Close()

	client := backend.New(srv.URL)
	result, err := client.StartChat(context.Background(), backend.StartChatRequest{
		UserID: "u1", CourseID: "c1", InitialQuestion: "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "sess-1", result.SessionID)
	require.Equal(t, "topic-1", result.TopicID)
	require.Equal(t, "quick draft", result.ProvisionalTitle)
	require.Equal(t, "hello there", result.Answer)
	require.Equal(t, "task-9", result.TitleTaskID)
}

func TestStartChatNormalizesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := backend.New(srv.URL)
	_, err := client.StartChat(context.Background(), backend.StartChatRequest{CourseID: "c1"})
	require.ErrorIs(t, err, backend.ErrStartSession)

	// Transport failure (no listener) normalizes the same way.
	srv.Close()
	_, err = client.StartChat(context.Background(), backend.StartChatRequest{CourseID: "c1"})
	require.ErrorIs(t, err, backend.ErrStartSession)
}

func TestAskQuestionNormalizesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := backend.New(srv.URL)
	_, err := client.AskQuestion(context.Background(), "sess-1", "why")
	require.ErrorIs(t, err, backend.ErrSubmitQuestion)
}

func TestChatHistoryRoleMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/sess-1/history", r.URL.Path)
		fmt.Fprint(w, `[
			{"type": "user", "content": "hi"},
			{"type": "bot", "content": "hello"},
			{"type": "error", "content": "oops"}
		]`)
	}))
	defer srv.Close()

	client := backend.New(srv.URL)
	messages, err := client.ChatHistory(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, chat.RoleUser, messages[0].Role)
	require.Equal(t, chat.RoleAssistant, messages[1].Role, "backend tags assistant turns as bot")
	require.Equal(t, chat.RoleError, messages[2].Role)
	require.Equal(t, "sess-1", messages[0].SessionID)
}

func TestChatHistoryNormalizesFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := backend.New(srv.URL)
	_, err := client.ChatHistory(context.Background(), "sess-1")
	require.ErrorIs(t, err, backend.ErrHistoryLoad)
}

func TestListChatsTitleFallbackAndFinalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chats/u1/c1", r.URL.Path)
		fmt.Fprint(w, `{"chats": [
			{"id": "a", "initial_title": "draft a", "final_title": "Final A", "timestamp": "2026-03-01T10:30:00Z"},
			{"id": "b", "topic_title": "draft b", "timestamp": "2026-03-01T10:00:00Z"}
		]}`)
	}))
	defer srv.Close()

	client := backend.New(srv.URL)
	sessions, err := client.ListChats(context.Background(), "u1", "c1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	require.True(t, sessions[0].TitleFinalized)
	require.Equal(t, "Final A", sessions[0].FinalTitle)
	require.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), sessions[0].LastMessageAt)

	require.False(t, sessions[1].TitleFinalized)
	require.Equal(t, "draft b", sessions[1].ProvisionalTitle, "older builds report topic_title")
}

func TestTaskStatusParsesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/task/task-9", r.URL.Path)
		fmt.Fprint(w, `{"state": "SUCCESS", "result": {"new_title": "Algebra Basics"}}`)
	}))
	defer srv.Close()

	client := backend.New(srv.URL)
	status, err := client.TaskStatus(context.Background(), "task-9")
	require.NoError(t, err)
	require.Equal(t, chat.TaskSuccess, status.State)
	require.NotNil(t, status.Result)
	require.Equal(t, "Algebra Basics", status.Result.NewTitle)
}

func TestTaskStatusNormalizesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := backend.New(srv.URL)
	_, err := client.TaskStatus(context.Background(), "task-9")
	require.ErrorIs(t, err, backend.ErrTitleFinalization)
}

func TestSubscribeTopicTitlesDeliversFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sse/topic/topic-1", r.URL.Path)
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Type", "text/event-stream")

		fmt.Fprint(w, "data: {\"title\": \"first\"}\n\n")
		flusher.Flush()
		fmt.Fprint(w, ": heartbeat comment\n\n")
		fmt.Fprint(w, "data: {\"title\": \"second\"}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	client := backend.New(srv.URL)
	events, err := client.SubscribeTopicTitles(context.Background(), "topic-1")
	require.NoError(t, err)

	first := <-events
	require.Equal(t, "first", first.Title)
	second := <-events
	require.Equal(t, "second", second.Title)

	_, open := <-events
	require.False(t, open, "channel closes when the stream ends")
}

func TestSubscribeTopicTitlesMalformedFrameCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"title\": \"good\"}\n\n")
		fmt.Fprint(w, "data: {not json\n\n")
		fmt.Fprint(w, "data: {\"title\": \"never seen\"}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	client := backend.New(srv.URL)
	events, err := client.SubscribeTopicTitles(context.Background(), "topic-1")
	require.NoError(t, err)

	first := <-events
	require.Equal(t, "good", first.Title)

	_, open := <-events
	require.False(t, open, "malformed frame is a terminal close, no retry")
}

func TestSubscribeTopicTitlesRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := backend.New(srv.URL)
	_, err := client.SubscribeTopicTitles(context.Background(), "topic-1")
	require.Error(t, err)
}
