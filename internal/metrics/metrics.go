package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the chat workflow. Registered on the default registry and
// exposed through the /metrics route.
var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coursechat",
		Name:      "sessions_started_total",
		Help:      "Chat sessions successfully started.",
	})

	QuestionsAsked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coursechat",
		Name:      "questions_asked_total",
		Help:      "Questions submitted to existing sessions.",
	})

	QuestionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coursechat",
		Name:      "question_failures_total",
		Help:      "Question submissions that resolved with an error-tagged reply.",
	})

	TitlesFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coursechat",
		Name:      "titles_finalized_total",
		Help:      "Session titles that reached the finalized state.",
	})

	TitleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coursechat",
		Name:      "title_failures_total",
		Help:      "Title reconciliations that ended in the failed state.",
	})

	BackendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursechat",
		Name:      "backend_errors_total",
		Help:      "Upstream backend calls that failed, by endpoint.",
	}, []string{"endpoint"})
)
