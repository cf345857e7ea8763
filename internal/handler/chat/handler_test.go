package chat_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edustack/coursechat/backend/internal/backend"
	chatHandler "github.com/edustack/coursechat/backend/internal/handler/chat"
	chatService "github.com/edustack/coursechat/backend/internal/service/chat"
	titleService "github.com/edustack/coursechat/backend/internal/service/title"
)

// newTestServer stands up the chat routes against a stubbed remote backend.
func newTestServer(t *testing.T, upstream http.Handler) *httptest.Server {
	t.Helper()

	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)

	b := backend.New(up.URL)
	cache := chatService.NewSessionCache(b)
	titles := titleService.NewReconciler(b, cache, titleService.WithPollInterval(time.Hour))
	t.Cleanup(titles.Close)
	svc := chatService.NewService(b, titles, cache)

	r := chi.NewRouter()
	chatHandler.New(svc, cache, titles, b).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

// startUpstream answers /chat/start without a title task, so no
// reconciliation runs during handler tests.
func startUpstream() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/start", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"chat_session_id": "sess-1",
			"topic_id":        "topic-1",
			"topic_title":     "quick draft",
			"answer":          "hello",
		})
	})
	return mux
}

func TestHandleStartCreated(t *testing.T) {
	srv := newTestServer(t, startUpstream())

	resp := postJSON(t, srv.URL+"/chat/start", `{"user_id":"u1","course_id":"c1","initial_question":"why"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var out struct {
		Session struct {
			ID           string `json:"id"`
			InitialTitle string `json:"initialTitle"`
		} `json:"session"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Session.ID != "sess-1" || out.Session.InitialTitle != "quick draft" {
		t.Fatalf("unexpected session: %+v", out.Session)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("expected seeded transcript of 2, got %d", len(out.Messages))
	}
	if out.Messages[0].Role != "user" || out.Messages[0].Content != "why" {
		t.Fatalf("first message should echo the question: %+v", out.Messages[0])
	}
	if out.Messages[1].Role != "assistant" || out.Messages[1].Content != "hello" {
		t.Fatalf("second message should carry the answer: %+v", out.Messages[1])
	}
}

func TestHandleStartValidation(t *testing.T) {
	srv := newTestServer(t, startUpstream())

	resp := postJSON(t, srv.URL+"/chat/start", `{"user_id":"u1","course_id":"","initial_question":"why"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing course should be 400, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/chat/start", `not json`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body should be 400, got %d", resp.StatusCode)
	}
}

func TestHandleStartUpstreamFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/start", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	})
	srv := newTestServer(t, mux)

	resp := postJSON(t, srv.URL+"/chat/start", `{"user_id":"u1","course_id":"c1","initial_question":"why"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("upstream failure should be 502, got %d", resp.StatusCode)
	}
}

func TestHandleQuestionErrorTaggedReplyIsOK(t *testing.T) {
	mux := startUpstream()
	mux.HandleFunc("/chat/question", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	})
	srv := newTestServer(t, mux)

	resp := postJSON(t, srv.URL+"/chat/start", `{"user_id":"u1","course_id":"c1","initial_question":"why"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start failed: %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/chat/question", `{"chat_session_id":"sess-1","text":"follow up"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("error-tagged reply should still be 200, got %d", resp.StatusCode)
	}

	var out struct {
		Role     string `json:"role"`
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Role != "error" {
		t.Fatalf("expected error-tagged reply, got role %q", out.Role)
	}
	if out.Response == "" {
		t.Fatal("error reply should carry user-facing text")
	}
}

func TestHandleQuestionUnknownSession(t *testing.T) {
	srv := newTestServer(t, startUpstream())

	resp := postJSON(t, srv.URL+"/chat/question", `{"chat_session_id":"missing","text":"hello"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session should be 404, got %d", resp.StatusCode)
	}
}

func TestHandleListServesCacheWhenRefreshFails(t *testing.T) {
	mux := startUpstream()
	mux.HandleFunc("/chats/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	})
	srv := newTestServer(t, mux)

	// Seed the cache through a successful start.
	resp := postJSON(t, srv.URL+"/chat/start", `{"user_id":"u1","course_id":"c1","initial_question":"why"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start failed: %d", resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/chats/u1/c1")
	if err != nil {
		t.Fatalf("GET chats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list should degrade to cached contents, got %d", resp.StatusCode)
	}

	var out struct {
		Chats []struct {
			ID string `json:"id"`
		} `json:"chats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Chats) != 1 || out.Chats[0].ID != "sess-1" {
		t.Fatalf("cached session should survive the failed refresh: %+v", out.Chats)
	}
}

func TestHandleTaskStatusProxies(t *testing.T) {
	mux := startUpstream()
	mux.HandleFunc("/task/task-9", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"state":  "SUCCESS",
			"result": map[string]string{"new_title": "Algebra Basics"},
		})
	})
	srv := newTestServer(t, mux)

	resp, err := http.Get(srv.URL + "/task/task-9")
	if err != nil {
		t.Fatalf("GET task: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		State  string `json:"state"`
		Result struct {
			NewTitle string `json:"new_title"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.State != "SUCCESS" || out.Result.NewTitle != "Algebra Basics" {
		t.Fatalf("unexpected task status: %+v", out)
	}
}

func TestHandleLeave(t *testing.T) {
	srv := newTestServer(t, startUpstream())

	resp := postJSON(t, srv.URL+"/chat/leave", `{}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}
