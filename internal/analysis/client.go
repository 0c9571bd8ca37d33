package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "stackpilot/internal/errors"
)

// Recognized finding categories. The report content itself is opaque; these
// are only used to group findings for display and search metadata.
const (
	CategoryBestPractices   = "best-practices"
	CategoryPotentialIssues = "potential-issues"
	CategorySecurity        = "security"
	CategoryGeneral         = "general"
)

// Report is the structured result of one analysis call. Content is stored and
// relayed verbatim, never interpreted.
type Report struct {
	Content        string    `json:"content"`
	Categories     []string  `json:"categories"`
	ConversationID string    `json:"conversationId,omitempty"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// Client talks to the Pulumi Copilot chat API
type Client struct {
	endpoint   string
	token      string
	orgID      string
	stackURL   string
	httpClient *http.Client
}

// NewClient creates an analysis client for the given Copilot endpoint
func NewClient(endpoint, token, orgID, stackURL string) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		orgID:    orgID,
		stackURL: stackURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// --- Copilot API wire format ---

type copilotRequest struct {
	Query string       `json:"query"`
	State copilotState `json:"state"`
}

type copilotState struct {
	Client copilotClientState `json:"client"`
}

type copilotClientState struct {
	CloudContext copilotCloudContext `json:"cloudContext"`
}

type copilotCloudContext struct {
	OrgID string `json:"orgId"`
	URL   string `json:"url"`
}

type copilotResponse struct {
	ConversationID string           `json:"conversationId"`
	Messages       []copilotMessage `json:"messages"`
}

type copilotMessage struct {
	Role    string `json:"role"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// Analyze sends the project's infrastructure code to the analysis service and
// returns the resulting report. Network and service failures come back as
// analysis-unavailable errors and must not alter project state; analysis is
// best-effort and optional for deployment.
func (c *Client) Analyze(ctx context.Context, projectDir string) (*Report, error) {
	mainPath := filepath.Join(projectDir, "main.go")
	code, err := os.ReadFile(mainPath)
	if err != nil {
		return nil, apperrors.NewIOError(fmt.Sprintf("failed to read %s", mainPath), err)
	}

	query := fmt.Sprintf(
		"Please analyze this Pulumi Go code for best practices and potential issues:\n\n```go\n%s\n```",
		string(code))

	payload := copilotRequest{
		Query: query,
		State: copilotState{
			Client: copilotClientState{
				CloudContext: copilotCloudContext{
					OrgID: c.orgID,
					URL:   c.stackURL,
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to marshal analysis request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build analysis request", err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewAnalysisUnavailableError("analysis service unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewAnalysisUnavailableError("failed to read analysis response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewAnalysisUnavailableError(
			fmt.Sprintf("analysis service returned status %d", resp.StatusCode), nil).
			WithDetails(map[string]interface{}{"body": truncate(string(respBody), 200)})
	}

	var parsed copilotResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperrors.NewAnalysisUnavailableError("failed to parse analysis response", err).
			WithDetails(map[string]interface{}{"body": truncate(string(respBody), 200)})
	}

	for _, msg := range parsed.Messages {
		if msg.Role == "assistant" && msg.Kind == "response" {
			return &Report{
				Content:        msg.Content,
				Categories:     categorize(msg.Content),
				ConversationID: parsed.ConversationID,
				GeneratedAt:    time.Now(),
			}, nil
		}
	}

	return nil, apperrors.NewAnalysisUnavailableError("no analysis found in response", nil)
}

// categorize maps free-form report text onto the recognized category set.
// This is display grouping only, not semantic parsing of the findings.
func categorize(content string) []string {
	lower := strings.ToLower(content)

	var categories []string
	if strings.Contains(lower, "best practice") {
		categories = append(categories, CategoryBestPractices)
	}
	if strings.Contains(lower, "issue") || strings.Contains(lower, "problem") {
		categories = append(categories, CategoryPotentialIssues)
	}
	if strings.Contains(lower, "security") || strings.Contains(lower, "vulnerab") {
		categories = append(categories, CategorySecurity)
	}
	if len(categories) == 0 {
		categories = append(categories, CategoryGeneral)
	}
	return categories
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
