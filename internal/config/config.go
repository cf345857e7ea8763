package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service reads.
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Chat    ChatConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Backend: backend, Chat: chat}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	return ServerConfig{Addr: ":" + port}, nil
}

// BackendConfig describes the remote AI backend connection.
type BackendConfig struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
}

func loadBackendConfig() (BackendConfig, error) {
	baseURL := strings.TrimSpace(os.Getenv("BACKEND_BASE_URL"))
	if baseURL == "" {
		return BackendConfig{}, fmt.Errorf("BACKEND_BASE_URL is required")
	}

	rps := 20.0
	if override, err := parseOptionalFloatEnv("BACKEND_RPS"); err != nil {
		return BackendConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return BackendConfig{}, fmt.Errorf("BACKEND_RPS must be positive")
		}
		rps = *override
	}

	burst := 40
	if override, err := parseOptionalIntEnv("BACKEND_BURST"); err != nil {
		return BackendConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return BackendConfig{}, fmt.Errorf("BACKEND_BURST must be at least 1")
		}
		burst = *override
	}

	return BackendConfig{BaseURL: baseURL, RequestsPerSecond: rps, Burst: burst}, nil
}

// ChatConfig describes the chat workflow knobs.
type ChatConfig struct {
	StartTimeout      time.Duration
	TitlePollInterval time.Duration
}

func loadChatConfig() (ChatConfig, error) {
	startTimeout := 30 * time.Second
	if override, err := parseOptionalIntEnv("CHAT_START_TIMEOUT_SECONDS"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ChatConfig{}, fmt.Errorf("CHAT_START_TIMEOUT_SECONDS must be at least 1")
		}
		startTimeout = time.Duration(*override) * time.Second
	}

	pollInterval := 5 * time.Second
	if override, err := parseOptionalIntEnv("TITLE_POLL_INTERVAL_SECONDS"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ChatConfig{}, fmt.Errorf("TITLE_POLL_INTERVAL_SECONDS must be at least 1")
		}
		pollInterval = time.Duration(*override) * time.Second
	}

	return ChatConfig{StartTimeout: startTimeout, TitlePollInterval: pollInterval}, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
