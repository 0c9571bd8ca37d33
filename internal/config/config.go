package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	apperrors "stackpilot/internal/errors"
)

// Config represents the main application configuration.
// It is loaded once at startup and read-only thereafter.
type Config struct {
	Azure       AzureCredentials `json:"azure"`
	PulumiToken string           `json:"pulumi_token"`
	GitHubToken string           `json:"github_token"` // reserved for future GitOps use

	Copilot CopilotConfig `json:"copilot"`
	Deploy  DeployConfig  `json:"deploy"`
	Events  EventsConfig  `json:"events"`

	WorkspaceDir    string `json:"workspace_dir"`
	AnalysisDir     string `json:"analysis_dir"`
	StateDir        string `json:"state_dir"`
	ServerPort      int    `json:"server_port"`
	RequireAnalysis bool   `json:"require_analysis"`
}

// AzureCredentials is the structured credential bundle parsed from the
// AZURE_CREDENTIALS environment variable (a single JSON document, the format
// produced by `az ad sp create-for-rbac --sdk-auth`).
type AzureCredentials struct {
	ClientID       string `json:"clientId"`
	ClientSecret   string `json:"clientSecret"`
	TenantID       string `json:"tenantId"`
	SubscriptionID string `json:"subscriptionId"`
}

// CopilotConfig defines the connection to the Pulumi Copilot analysis service
type CopilotConfig struct {
	Endpoint string `json:"endpoint"`
	OrgID    string `json:"org_id"`
	StackURL string `json:"stack_url"`
}

// DeployConfig defines how the external provisioning tool is invoked
type DeployConfig struct {
	Tool string `json:"tool"`
}

// EventsConfig defines the optional Kafka lifecycle event stream
type EventsConfig struct {
	Enable  bool     `json:"enable"`
	Brokers []string `json:"brokers"`
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Azure:       parseAzureCredentials(os.Getenv("AZURE_CREDENTIALS")),
		PulumiToken: os.Getenv("PULUMI_ACCESS_TOKEN"),
		GitHubToken: os.Getenv("GITHUB_TOKEN"),
		Copilot: CopilotConfig{
			Endpoint: getEnv("COPILOT_ENDPOINT", "https://api.pulumi.com/api/ai/chat/preview"),
			OrgID:    getEnv("COPILOT_ORG", "talkitdoit-org"),
			StackURL: getEnv("COPILOT_STACK_URL", "https://app.pulumi.com"),
		},
		Deploy: DeployConfig{
			Tool: getEnv("DEPLOY_TOOL", "pulumi-deploy"),
		},
		Events: EventsConfig{
			Enable:  getEnvBool("KAFKA_ENABLE", false),
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		},
		WorkspaceDir:    getEnv("WORKSPACE_DIR", "."),
		AnalysisDir:     getEnv("ANALYSIS_DIR", "analysis"),
		StateDir:        getEnv("STATE_DIR", ".stackpilot"),
		ServerPort:      getEnvInt("SERVER_PORT", 8080),
		RequireAnalysis: getEnvBool("REQUIRE_ANALYSIS", false),
	}
}

// Validate checks that every required credential is present. It collects all
// problems before returning so a user can fix their environment in one pass.
// A failed validation is a startup-time fatal condition, never retried.
func (c *Config) Validate() error {
	var missing []string

	if c.Azure == (AzureCredentials{}) {
		missing = append(missing, "AZURE_CREDENTIALS")
	} else {
		for _, field := range []struct {
			name, value string
		}{
			{"AZURE_CREDENTIALS.clientId", c.Azure.ClientID},
			{"AZURE_CREDENTIALS.clientSecret", c.Azure.ClientSecret},
			{"AZURE_CREDENTIALS.tenantId", c.Azure.TenantID},
			{"AZURE_CREDENTIALS.subscriptionId", c.Azure.SubscriptionID},
		} {
			if field.value == "" {
				missing = append(missing, field.name)
			}
		}
	}

	if c.PulumiToken == "" {
		missing = append(missing, "PULUMI_ACCESS_TOKEN")
	}

	if len(missing) > 0 {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("missing required configuration: %s", strings.Join(missing, ", ")),
			missing,
		)
	}

	return nil
}

// parseAzureCredentials decodes the AZURE_CREDENTIALS JSON bundle. A missing
// or malformed value yields the zero bundle, which Validate reports.
func parseAzureCredentials(raw string) AzureCredentials {
	var creds AzureCredentials
	if raw == "" {
		return creds
	}
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return AzureCredentials{}
	}
	return creds
}

// getEnv retrieves environment variable with fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves boolean environment variable with fallback
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvInt retrieves integer environment variable with fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
