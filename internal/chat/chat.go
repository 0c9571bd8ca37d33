package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"stackpilot/internal/orchestrator"
)

// IntentHandler is the orchestrator boundary the chat layer talks to
type IntentHandler interface {
	Handle(ctx context.Context, intent orchestrator.Intent) orchestrator.Response
}

// Conversation maps free-form user utterances to orchestrator intents and
// renders the results. It is purely presentational: all lifecycle rules live
// behind the IntentHandler.
type Conversation struct {
	handler IntentHandler

	mu                    sync.Mutex
	history               []string
	currentProject        string
	awaitingProjectName   bool
	awaitingDeployConfirm bool
}

// NewConversation creates a conversation over the given intent handler
func NewConversation(handler IntentHandler) *Conversation {
	return &Conversation{handler: handler}
}

// ProcessMessage handles one user message and returns the assistant's reply
func (c *Conversation) ProcessMessage(ctx context.Context, userMessage string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, "User: "+userMessage)
	lower := strings.ToLower(strings.TrimSpace(userMessage))

	var response string
	switch {
	case c.awaitingProjectName:
		response = c.createProject(ctx, userMessage)

	case c.awaitingDeployConfirm && containsAny(lower, "yes", "sure", "okay"):
		c.awaitingDeployConfirm = false
		response = c.deploy(ctx)

	case c.awaitingDeployConfirm && containsAny(lower, "no", "later", "skip"):
		c.awaitingDeployConfirm = false
		response = "Okay, I'll hold off on deployment. Just say \"deploy\" whenever you're ready."

	case strings.Contains(lower, "destroy") || strings.Contains(lower, "remove") || strings.Contains(lower, "delete"):
		response = c.destroy(ctx)

	case strings.Contains(lower, "deploy"):
		response = c.deploy(ctx)

	case strings.Contains(lower, "analy"): // analyze / analysis / analyse
		response = c.analyze(ctx)

	case strings.Contains(lower, "status"):
		result := c.handler.Handle(ctx, orchestrator.StatusIntent{})
		response = result.Message

	case strings.Contains(lower, "create") && strings.Contains(lower, "static website"):
		c.awaitingProjectName = true
		response = "What would you like to name your project? (Please provide a simple name, it will be converted to lowercase with hyphens)"

	default:
		response = c.helpText()
	}

	c.history = append(c.history, "Assistant: "+response)
	return response
}

// createProject handles the message following a create request: the project
// name. After creation an analysis runs automatically and the user is asked
// to confirm deployment, matching the guided flow of the assistant.
func (c *Conversation) createProject(ctx context.Context, rawName string) string {
	c.awaitingProjectName = false
	name := NormalizeProjectName(rawName)

	created := c.handler.Handle(ctx, orchestrator.CreateIntent{ProjectName: name})
	if created.Status != "success" {
		return "Sorry, I encountered an error while creating the project: " + created.Message
	}
	c.currentProject = name

	analyzed := c.handler.Handle(ctx, orchestrator.AnalyzeIntent{})
	c.awaitingDeployConfirm = true

	if analyzed.Status != "success" {
		return strings.Join([]string{
			fmt.Sprintf("I've created the project %q, but the code analysis failed:", name),
			analyzed.Message,
			"Would you like to proceed with deployment anyway? (yes/no)",
		}, "\n")
	}

	return strings.Join([]string{
		fmt.Sprintf("I've created a new static website project %q using the Azure Go template.", name),
		"",
		"🤖 Pulumi Copilot Analysis:",
		analyzed.Message,
		"",
		"The analysis has been saved to the analysis directory.",
		"Would you like me to proceed with deployment? (yes/no)",
	}, "\n")
}

func (c *Conversation) analyze(ctx context.Context) string {
	result := c.handler.Handle(ctx, orchestrator.AnalyzeIntent{})
	if result.Status != "success" {
		return "Sorry, the code analysis failed: " + result.Message
	}
	return "🤖 Pulumi Copilot Analysis:\n" + result.Message
}

func (c *Conversation) deploy(ctx context.Context) string {
	result := c.handler.Handle(ctx, orchestrator.DeployIntent{})
	if result.Status != "success" {
		return "Sorry, I encountered an error while deploying: " + result.Message
	}

	lines := []string{
		"I've deployed your application. Here's what happened:",
		"✨ " + result.Message,
	}
	if len(result.Outputs) > 0 {
		lines = append(lines, "", "Your endpoints:")
		keys := make([]string, 0, len(result.Outputs))
		for k := range result.Outputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("  • %s: %s", k, result.Outputs[k]))
		}
	}
	return strings.Join(lines, "\n")
}

func (c *Conversation) destroy(ctx context.Context) string {
	if c.currentProject == "" {
		return "There's no active project to destroy. Would you like to create a new static website project?"
	}

	result := c.handler.Handle(ctx, orchestrator.DestroyIntent{})
	if result.Status != "success" {
		return "Sorry, I encountered an error while destroying the application: " + result.Message
	}
	return "I've destroyed your application.\n✨ " + result.Message
}

func (c *Conversation) helpText() string {
	if c.currentProject != "" {
		return fmt.Sprintf("I can help you manage your project %q. You can ask me to:\n"+
			"  • Analyze your infrastructure code\n"+
			"  • Deploy your application\n"+
			"  • Destroy your application\n"+
			"  • Check the project status\n"+
			"Or create a new static website.", c.currentProject)
	}
	return "I can help you create and manage static websites on Azure. " +
		"Would you like me to create a simple Go app for a static website? Just let me know!"
}

// History returns a copy of the conversation transcript
func (c *Conversation) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.history))
	copy(out, c.history)
	return out
}

// NormalizeProjectName converts free-form input into a project identifier:
// lowercased, with spaces replaced by hyphens.
func NormalizeProjectName(raw string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", "-"))
}

func containsAny(s string, words ...string) bool {
	for _, word := range words {
		if strings.Contains(s, word) {
			return true
		}
	}
	return false
}

// Run drives an interactive chat session over the given reader and writer
// until EOF or an "exit" message.
func (c *Conversation) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "\n🤖 Welcome to the AI Platform Engineering Assistant!")
	fmt.Fprintln(out, "-----------------------------------------------------")
	fmt.Fprintln(out, "I can help you create and manage static websites on Azure.")
	fmt.Fprintln(out, "You can ask me to:")
	fmt.Fprintln(out, "  • Create a simple Go app for a static website")
	fmt.Fprintln(out, "  • Analyze your infrastructure code")
	fmt.Fprintln(out, "  • Deploy your application")
	fmt.Fprintln(out, "  • Destroy your application")
	fmt.Fprintln(out, "\nWhat would you like to do? (type 'exit' to quit)")
	fmt.Fprintln(out, "-----------------------------------------------------")

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "\nYou: ")
	for scanner.Scan() {
		line := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(line), "exit") {
			fmt.Fprintln(out, "\nGoodbye! Have a great day! 👋")
			return nil
		}

		response := c.ProcessMessage(ctx, line)
		fmt.Fprintf(out, "\nAssistant: %s\n", response)
		fmt.Fprint(out, "\nYou: ")
	}
	return scanner.Err()
}
