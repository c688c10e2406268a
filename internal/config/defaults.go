package config

import "time"

// GetDefaultConfig returns the built-in configuration for the deep-researcher stack.
// User and project files are layered on top of it by LoadConfig.
func GetDefaultConfig() Config {
	return Config{
		Project:        "deep-researcher",
		NamePrefix:     "deep-researcher",
		ComposeCommand: []string{"docker", "compose"},
		DockerCommand:  "docker",
		Overlays: OverlayConfig{
			Base: "docker-compose.yml",
			Dev:  "docker-compose.dev.yml",
		},
		Env: EnvConfig{
			Template:     ".env.example",
			Target:       ".env",
			RequiredKeys: []string{"OPENAI_API_KEY"},
			OptionalKeys: []string{"SERPER_API_KEY", "DEBUG", "LOG_LEVEL", "CACHE_BACKEND", "API_HOST", "API_PORT"},
			Placeholders: []string{"your_key_here", "your_api_key_here", "changeme"},
		},
		Directories: []string{"research_result", "research_result/cache"},
		ReportsDir:  "research_result",
		ArchiveDir:  "archives",
		Health: HealthConfig{
			Interval:     2 * time.Second,
			MaxAttempts:  30,
			ProbeTimeout: 5 * time.Second,
			Targets: []TargetConfig{
				{Name: "api", Kind: TargetKindHTTP, Address: "http://localhost:${API_PORT}/health", ExpectStatus: []int{200}},
				{Name: "frontend", Kind: TargetKindHTTP, Address: "http://localhost:${FRONTEND_PORT}/"},
			},
		},
		Services: []string{"api", "frontend"},
		Endpoints: []Endpoint{
			{Name: "API", URL: "http://localhost:${API_PORT}"},
			{Name: "API docs", URL: "http://localhost:${API_PORT}/docs"},
			{Name: "Frontend", URL: "http://localhost:${FRONTEND_PORT}"},
		},
	}
}
