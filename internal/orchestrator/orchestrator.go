package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"stackpilot/internal/analysis"
	apperrors "stackpilot/internal/errors"
	"stackpilot/internal/events"
	"stackpilot/internal/project"
)

// Generator materializes a project directory from the template
type Generator interface {
	Generate(name string) (string, error)
}

// Analyzer sends project code to the external analysis service
type Analyzer interface {
	Analyze(ctx context.Context, projectDir string) (*analysis.Report, error)
}

// Deployer runs the external provisioning tool against a project directory
type Deployer interface {
	Create(ctx context.Context, projectDir string) (map[string]string, error)
	Destroy(ctx context.Context, projectDir string) error
}

// ReportSink persists successful analysis reports
type ReportSink interface {
	Save(projectName string, report *analysis.Report) (string, error)
}

// Orchestrator owns the per-project lifecycle state and sequences the code
// generator, analysis client and deployment executor in response to intents.
// One intent is processed to completion before the next is accepted; the
// Deploying/Destroying markers exist to reject overlapping deploy/destroy
// calls, because the provisioning tool is not safe to invoke twice
// concurrently against the same state.
type Orchestrator struct {
	session   *project.Session
	generator Generator
	analyzer  Analyzer
	deployer  Deployer
	reports   ReportSink       // optional
	events    *events.Producer // optional

	// requireAnalysis blocks deploy from Created (unanalyzed) when set
	requireAnalysis bool

	mu sync.Mutex
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithReportSink persists every successful analysis report to the sink
func WithReportSink(sink ReportSink) Option {
	return func(o *Orchestrator) { o.reports = sink }
}

// WithEventProducer publishes lifecycle events to the producer
func WithEventProducer(producer *events.Producer) Option {
	return func(o *Orchestrator) { o.events = producer }
}

// WithRequireAnalysis makes a successful analysis a precondition for deploy
func WithRequireAnalysis(require bool) Option {
	return func(o *Orchestrator) { o.requireAnalysis = require }
}

// New creates an orchestrator over an empty session
func New(generator Generator, analyzer Analyzer, deployer Deployer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		session:   project.NewSession(),
		generator: generator,
		analyzer:  analyzer,
		deployer:  deployer,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle processes one intent and returns the structured result. Every
// rejected intent leaves state unchanged; every failure sets the project's
// last error and is relayed verbatim in the response.
func (o *Orchestrator) Handle(ctx context.Context, intent Intent) Response {
	switch it := intent.(type) {
	case CreateIntent:
		return o.handleCreate(ctx, it.ProjectName)
	case AnalyzeIntent:
		return o.handleAnalyze(ctx)
	case DeployIntent:
		return o.handleDeploy(ctx)
	case DestroyIntent:
		return o.handleDestroy(ctx)
	case StatusIntent:
		return o.handleStatus()
	default:
		return errorResponse(apperrors.NewInvalidArgumentError(
			fmt.Sprintf("unknown intent %q", intent.IntentName())))
	}
}

// Snapshot returns a read-only view of the session for the API surface
func (o *Orchestrator) Snapshot() project.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Snapshot()
}

func (o *Orchestrator) handleCreate(ctx context.Context, name string) Response {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, err := o.session.Begin(name)
	if err != nil {
		return errorResponse(err)
	}

	dir, err := o.generator.Generate(name)
	if err != nil {
		// Generation has no external side effects, so this is the one
		// failure that lands in the terminal Failed state.
		p.State = project.StateFailed
		p.LastError = err
		o.emit(ctx, events.ProjectCreateFailedEvent, name, map[string]interface{}{"error": err.Error()})
		return errorResponse(err)
	}

	p.Dir = dir
	p.State = project.StateCreated
	p.LastError = nil
	o.emit(ctx, events.ProjectCreatedEvent, name, map[string]interface{}{"dir": dir})

	return successResponse(fmt.Sprintf("Created project %q at %s", name, dir))
}

func (o *Orchestrator) handleAnalyze(ctx context.Context) Response {
	o.mu.Lock()
	defer o.mu.Unlock()

	p := o.session.Active()
	if p == nil {
		return errorResponse(apperrors.NewInvalidTransitionError(string(project.StateUninitialized), "analyze"))
	}
	if p.State != project.StateCreated {
		return errorResponse(apperrors.NewInvalidTransitionError(string(p.State), "analyze"))
	}

	report, err := o.analyzer.Analyze(ctx, p.Dir)
	if err != nil {
		// Analysis is best-effort: the failure is recorded but the
		// project stays Created so the user can retry or deploy anyway.
		p.LastError = err
		o.emit(ctx, events.AnalysisFailedEvent, p.Name, map[string]interface{}{"error": err.Error()})
		return errorResponse(err)
	}

	p.Report = report
	p.State = project.StateAnalyzed
	p.LastError = nil

	if o.reports != nil {
		if path, err := o.reports.Save(p.Name, report); err != nil {
			log.Printf("⚠️  Failed to persist analysis report for %s: %v", p.Name, err)
		} else {
			log.Printf("✅ Analysis report saved to %s", path)
		}
	}
	o.emit(ctx, events.AnalysisCompletedEvent, p.Name, map[string]interface{}{
		"categories": report.Categories,
	})

	return successResponse(report.Content)
}

func (o *Orchestrator) handleDeploy(ctx context.Context) Response {
	o.mu.Lock()

	p := o.session.Active()
	if p == nil {
		o.mu.Unlock()
		return errorResponse(apperrors.NewInvalidTransitionError(string(project.StateUninitialized), "deploy"))
	}
	if p.State.InFlight() {
		o.mu.Unlock()
		return errorResponse(apperrors.NewConflictError(
			fmt.Sprintf("project %q has a %s operation in flight", p.Name, strings.ToLower(string(p.State)))))
	}
	if p.State != project.StateCreated && p.State != project.StateAnalyzed {
		o.mu.Unlock()
		return errorResponse(apperrors.NewInvalidTransitionError(string(p.State), "deploy"))
	}
	if o.requireAnalysis && p.State == project.StateCreated {
		o.mu.Unlock()
		return errorResponse(apperrors.NewInvalidTransitionError(string(p.State), "deploy").
			WithDetails(map[string]interface{}{"reason": "a successful analysis is required before deployment"}))
	}

	// Mark the deploy in flight and release the lock for the duration of the
	// provisioning run, so concurrent deploy/destroy intents are rejected
	// with a conflict instead of racing the tool.
	previous := p.State
	p.State = project.StateDeploying
	dir, name := p.Dir, p.Name
	o.mu.Unlock()

	o.emit(ctx, events.DeployStartedEvent, name, nil)
	outputs, err := o.deployer.Create(ctx, dir)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		// The infrastructure may be partially provisioned; revert to the
		// last externally-confirmed state so a retry stays well-defined.
		p.State = previous
		p.LastError = err
		o.emit(ctx, events.DeployFailedEvent, name, map[string]interface{}{"error": err.Error()})
		return errorResponse(err)
	}

	p.State = project.StateDeployed
	p.Outputs = outputs
	p.LastError = nil
	o.emit(ctx, events.DeployCompletedEvent, name, map[string]interface{}{"outputs": outputs})

	return Response{
		Status:  "success",
		Message: fmt.Sprintf("Deployment of %q completed successfully", name),
		Outputs: outputs,
	}
}

func (o *Orchestrator) handleDestroy(ctx context.Context) Response {
	o.mu.Lock()

	p := o.session.Active()
	if p == nil {
		o.mu.Unlock()
		return errorResponse(apperrors.NewInvalidTransitionError(string(project.StateUninitialized), "destroy"))
	}
	if p.State.InFlight() {
		o.mu.Unlock()
		return errorResponse(apperrors.NewConflictError(
			fmt.Sprintf("project %q has a %s operation in flight", p.Name, strings.ToLower(string(p.State)))))
	}
	if p.State != project.StateDeployed {
		o.mu.Unlock()
		return errorResponse(apperrors.NewInvalidTransitionError(string(p.State), "destroy"))
	}

	p.State = project.StateDestroying
	dir, name := p.Dir, p.Name
	o.mu.Unlock()

	o.emit(ctx, events.DestroyStartedEvent, name, nil)
	err := o.deployer.Destroy(ctx, dir)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		p.State = project.StateDeployed
		p.LastError = err
		o.emit(ctx, events.DestroyFailedEvent, name, map[string]interface{}{"error": err.Error()})
		return errorResponse(err)
	}

	p.State = project.StateDestroyed
	p.Outputs = nil
	p.LastError = nil
	o.emit(ctx, events.DestroyCompletedEvent, name, nil)

	return successResponse(fmt.Sprintf("Project %q destroyed successfully", name))
}

func (o *Orchestrator) handleStatus() Response {
	o.mu.Lock()
	snap := o.session.Snapshot()
	o.mu.Unlock()

	if snap.Name == "" {
		return successResponse("No active project")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project %q is %s", snap.Name, snap.State)
	if snap.Analyzed {
		b.WriteString(" (analyzed)")
	}
	if snap.LastError != "" {
		fmt.Fprintf(&b, "; last error: %s", snap.LastError)
	}
	if len(snap.Outputs) > 0 {
		keys := make([]string, 0, len(snap.Outputs))
		for k := range snap.Outputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nOutputs:")
		for _, k := range keys {
			fmt.Fprintf(&b, "\n  %s: %s", k, snap.Outputs[k])
		}
	}

	return Response{Status: "success", Message: b.String(), Outputs: snap.Outputs}
}

// emit publishes a lifecycle event when an event producer is configured.
// Event delivery is best-effort and never affects lifecycle state.
func (o *Orchestrator) emit(ctx context.Context, eventType events.EventType, projectName string, data map[string]interface{}) {
	if o.events == nil || !o.events.IsConnected() {
		return
	}
	if err := o.events.ProduceLifecycleEvent(ctx, eventType, projectName, data); err != nil {
		log.Printf("⚠️  Failed to publish %s event: %v", eventType, err)
	}
}
