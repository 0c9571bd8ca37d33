package project

import (
	"time"

	"stackpilot/internal/analysis"
	apperrors "stackpilot/internal/errors"
)

// State is the current stage of a project's provisioning life
type State string

const (
	StateUninitialized State = "Uninitialized"
	StateCreated       State = "Created"
	StateAnalyzed      State = "Analyzed"
	StateDeploying     State = "Deploying"
	StateDeployed      State = "Deployed"
	StateDestroying    State = "Destroying"
	StateDestroyed     State = "Destroyed"
	StateFailed        State = "Failed"
)

// InFlight reports whether the state marks an operation that is still running
// against the provisioning tool. New deploy/destroy intents must be rejected
// while one is in flight.
func (s State) InFlight() bool {
	return s == StateDeploying || s == StateDestroying
}

// Terminal reports whether the project can be replaced by a new one.
// Destroyed is the normal terminal state; Failed is terminal too because it is
// only reached by generation failures that leave no external side effects.
func (s State) Terminal() bool {
	return s == StateDestroyed || s == StateFailed
}

// Project is the unit of work: one generated template directory plus the
// lifecycle bookkeeping around it.
type Project struct {
	Name      string            `json:"name"`
	Dir       string            `json:"dir"`
	State     State             `json:"state"`
	Report    *analysis.Report  `json:"report,omitempty"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	LastError error             `json:"-"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Session holds the single active project for one orchestrator instance.
// It is owned by the orchestrator, which serializes all access; Session itself
// performs no locking.
type Session struct {
	active *Project
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{}
}

// Begin registers a new project as the active one. It enforces the
// single-project invariant: a replacement is only allowed once the current
// project has reached a terminal state.
func (s *Session) Begin(name string) (*Project, error) {
	if s.active != nil && !s.active.State.Terminal() {
		return nil, apperrors.NewInvalidTransitionError(string(s.active.State), "create").
			WithDetails(map[string]interface{}{"active_project": s.active.Name})
	}

	p := &Project{
		Name:      name,
		State:     StateUninitialized,
		CreatedAt: time.Now(),
	}
	s.active = p
	return p, nil
}

// Active returns the current project, which may be nil. A Destroyed project
// remains inspectable here until a new one is created.
func (s *Session) Active() *Project {
	return s.active
}

// Snapshot is a read-only view of the session for status queries and the API
type Snapshot struct {
	Name      string            `json:"name,omitempty"`
	State     State             `json:"state"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	LastError string            `json:"lastError,omitempty"`
	Analyzed  bool              `json:"analyzed"`
	CreatedAt *time.Time        `json:"createdAt,omitempty"`
}

// Snapshot returns the current session state for rendering
func (s *Session) Snapshot() Snapshot {
	if s.active == nil {
		return Snapshot{State: StateUninitialized}
	}

	snap := Snapshot{
		Name:      s.active.Name,
		State:     s.active.State,
		Analyzed:  s.active.Report != nil,
		CreatedAt: &s.active.CreatedAt,
	}
	if len(s.active.Outputs) > 0 {
		snap.Outputs = make(map[string]string, len(s.active.Outputs))
		for k, v := range s.active.Outputs {
			snap.Outputs[k] = v
		}
	}
	if s.active.LastError != nil {
		snap.LastError = s.active.LastError.Error()
	}
	return snap
}
