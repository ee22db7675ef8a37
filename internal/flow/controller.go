// Package flow implements the per-route step state machine: which step a
// visitor sees, what happens on submission, and when the flow advances.
package flow

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/petrijr/formflow/internal/validate"
	"github.com/petrijr/formflow/pkg/api"
)

// Resolver persists validated step values. *resolve.Engine implements it.
type Resolver interface {
	Resolve(ctx context.Context, step api.StepForm, values map[string]any, storage api.StorageMap, state api.FlowState) (api.FlowState, error)
}

// Config describes how to construct a Controller.
type Config struct {
	Definitions api.DefinitionProvider
	States      api.StateStore
	Resolver    Resolver
	Observer    api.Observer
}

// Controller drives form flows.
type Controller struct {
	defs     api.DefinitionProvider
	states   api.StateStore
	resolver Resolver
	observer api.Observer
}

// NewController creates a Controller.
func NewController(cfg Config) *Controller {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	return &Controller{
		defs:     cfg.Definitions,
		states:   cfg.States,
		resolver: cfg.Resolver,
		observer: obs,
	}
}

// Page is the result of loading a route.
type Page struct {
	Route     string
	StepIndex int

	// Redirect is set when the current step was a redirect step. Form is
	// nil in that case.
	Redirect string

	Form *Form

	// Attributes are the flow's page attributes such as "title".
	Attributes map[string]string
}

// Form is a step prepared for rendering. Fields ends with the submit
// control and the hidden step index field.
type Form struct {
	Action   string
	Method   string
	Validate bool
	Fields   []api.Field
}

// Outcome is the result of a successful submission.
type Outcome struct {
	// Redirect is where the visitor goes next: always the flow's route.
	Redirect string

	// StepIndex is the step that the next load of the route will show,
	// before the reset rule is applied.
	StepIndex int

	// Completed is true when the last step of the flow was submitted.
	Completed bool
}

// Show returns the current step of route for session.
//
// A redirect step is consumed here: the state advances and is persisted,
// and the returned page carries the redirect target.
func (c *Controller) Show(ctx context.Context, session api.Session, route string) (*Page, error) {
	route = api.NormalizeRoute(route)

	def, err := c.defs.GetFormDefinition(ctx, route)
	if err != nil {
		return nil, err
	}
	st, err := c.loadState(ctx, session, route, def)
	if err != nil {
		return nil, err
	}

	idx := st.StepIndex
	step := def.Steps[idx]

	if step.Redirect != "" {
		st.StepIndex++
		if err := c.saveState(ctx, session, route, st); err != nil {
			return nil, err
		}
		c.observer.OnStepRedirected(ctx, route, session, idx, step.Redirect)
		return &Page{Route: route, StepIndex: idx, Redirect: step.Redirect}, nil
	}

	page := &Page{
		Route:      route,
		StepIndex:  idx,
		Form:       buildForm(route, idx, step),
		Attributes: copyAttributes(def.Page),
	}
	c.observer.OnStepRendered(ctx, route, session, idx)
	return page, nil
}

// Submit processes a POSTed step. raw holds the submitted form values,
// including the hidden step index.
//
// On success the state is advanced past the submitted step and persisted.
// On any error the stored state is left untouched, although rows written
// before the failure remain.
func (c *Controller) Submit(ctx context.Context, session api.Session, route string, raw map[string]string) (out *Outcome, err error) {
	route = api.NormalizeRoute(route)
	start := time.Now()
	idx := -1

	def, err := c.defs.GetFormDefinition(ctx, route)
	if err != nil {
		return nil, err
	}

	defer func() {
		c.observer.OnStepSubmitted(ctx, route, session, idx, err, time.Since(start))
	}()

	idx, err = stepIndex(raw, len(def.Steps))
	if err != nil {
		return nil, err
	}
	step := def.Steps[idx]

	values, err := validate.Validate(step, raw)
	if err != nil {
		return nil, err
	}

	st, err := c.loadState(ctx, session, route, def)
	if err != nil {
		return nil, err
	}

	st, err = c.resolver.Resolve(ctx, step, values, def.Storage, st)
	if err != nil {
		return nil, err
	}

	st.StepIndex = idx + 1
	if err := c.saveState(ctx, session, route, st); err != nil {
		return nil, err
	}

	out = &Outcome{Redirect: route, StepIndex: st.StepIndex}
	if st.StepIndex >= len(def.Steps) {
		out.Completed = true
		c.observer.OnFlowCompleted(ctx, route, session)
	}
	return out, nil
}

// loadState returns the stored state of route, or a fresh state when
// there is none or it points past the flow's steps.
func (c *Controller) loadState(ctx context.Context, session api.Session, route string, def api.FlowDefinition) (api.FlowState, error) {
	if len(def.Steps) == 0 {
		return api.FlowState{}, &api.DefinitionError{Route: route, Err: api.ErrInvalidDefinition}
	}

	st, err := c.states.GetFlowState(ctx, session, route)
	if errors.Is(err, api.ErrStateNotFound) {
		return api.NewFlowState(), nil
	}
	if err != nil {
		return api.FlowState{}, &api.PersistenceError{Op: "load state", Err: err}
	}

	if st.StepIndex < 0 || st.StepIndex >= len(def.Steps) {
		return api.NewFlowState(), nil
	}
	return st.Clone(), nil
}

func (c *Controller) saveState(ctx context.Context, session api.Session, route string, st api.FlowState) error {
	if err := c.states.PutFlowState(ctx, session, route, st); err != nil {
		return &api.PersistenceError{Op: "save state", Err: err}
	}
	return nil
}

func stepIndex(raw map[string]string, steps int) (int, error) {
	v, ok := raw[api.HiddenStepField]
	if !ok || v == "" {
		return 0, &api.ValidationError{Field: api.HiddenStepField, Reason: "is required"}
	}
	idx, err := strconv.Atoi(v)
	if err != nil {
		return 0, &api.ValidationError{Field: api.HiddenStepField, Reason: "is not a step index"}
	}
	if idx < 0 || idx >= steps {
		return 0, &api.ValidationError{Field: api.HiddenStepField, Reason: "is out of range"}
	}
	return idx, nil
}

func buildForm(route string, idx int, step api.StepForm) *Form {
	action := step.Action
	if action == "" {
		action = route
	}

	fields := make([]api.Field, 0, len(step.Fields)+2)
	fields = append(fields, step.Fields...)
	fields = append(fields,
		api.Field{Type: "submit", Value: api.SubmitLabel},
		api.Field{Type: "hidden", Name: api.HiddenStepField, Value: strconv.Itoa(idx)},
	)

	return &Form{
		Action:   action,
		Method:   "POST",
		Validate: true,
		Fields:   fields,
	}
}

func copyAttributes(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
