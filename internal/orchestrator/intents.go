package orchestrator

// Intent is a user-requested action mapped to one of the orchestrator's
// recognized operations. Intents are tagged variants produced by intent
// parsing and consumed by a single match over the transition rules, so
// dispatch is never stringly-typed.
type Intent interface {
	// IntentName is the lowercase operation name used in errors and events
	IntentName() string
}

// CreateIntent requests creation of a new project from the template
type CreateIntent struct {
	ProjectName string
}

// AnalyzeIntent requests an analysis of the active project's code
type AnalyzeIntent struct{}

// DeployIntent requests provisioning of the active project
type DeployIntent struct{}

// DestroyIntent requests teardown of the active project
type DestroyIntent struct{}

// StatusIntent requests a read-only snapshot of the active project
type StatusIntent struct{}

func (CreateIntent) IntentName() string  { return "create" }
func (AnalyzeIntent) IntentName() string { return "analyze" }
func (DeployIntent) IntentName() string  { return "deploy" }
func (DestroyIntent) IntentName() string { return "destroy" }
func (StatusIntent) IntentName() string  { return "status" }

// Response is the structured record returned to the chat boundary for every
// handled intent.
type Response struct {
	Status  string            `json:"status"` // "success" or "error"
	Message string            `json:"message"`
	Outputs map[string]string `json:"outputs,omitempty"`
}

func successResponse(message string) Response {
	return Response{Status: "success", Message: message}
}

func errorResponse(err error) Response {
	return Response{Status: "error", Message: err.Error()}
}
