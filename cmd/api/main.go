package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/edustack/coursechat/backend/internal/backend"
	"github.com/edustack/coursechat/backend/internal/config"
	"github.com/edustack/coursechat/backend/internal/handler"
	chatService "github.com/edustack/coursechat/backend/internal/service/chat"
	courseService "github.com/edustack/coursechat/backend/internal/service/course"
	titleService "github.com/edustack/coursechat/backend/internal/service/title"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	backendClient := backend.New(cfg.Backend.BaseURL,
		backend.WithRateLimit(cfg.Backend.RequestsPerSecond, cfg.Backend.Burst))

	sessionCache := chatService.NewSessionCache(backendClient)
	titles := titleService.NewReconciler(backendClient, sessionCache,
		titleService.WithPollInterval(cfg.Chat.TitlePollInterval))
	defer titles.Close()

	chatSvc := chatService.NewService(backendClient, titles, sessionCache,
		chatService.WithStartTimeout(cfg.Chat.StartTimeout))
	courseSvc := courseService.NewService(backendClient)

	router := handler.NewRouter(handler.Deps{
		Chat:    chatSvc,
		Cache:   sessionCache,
		Titles:  titles,
		Courses: courseSvc,
		Backend: backendClient,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("CourseChat backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
