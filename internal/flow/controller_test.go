package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/formflow/internal/definition"
	"github.com/petrijr/formflow/internal/persistence"
	"github.com/petrijr/formflow/internal/resolve"
	"github.com/petrijr/formflow/pkg/api"
)

const route = "/signup"

var visitor = api.Session{ID: "visitor-1"}

func signupFlow() api.FlowDefinition {
	return api.FlowDefinition{
		Steps: []api.StepForm{
			{Fields: []api.Field{
				{Name: "email", Required: true, Storage: api.UserAttribute{Attribute: api.UserEmail}},
				{Name: "name", Storage: api.Column{Table: "leads", Column: "name"}},
			}},
			{Redirect: "/interstitial"},
			{Action: "/custom", Fields: []api.Field{
				{Name: "color", Value: "blue", Storage: api.JSONPath{Table: "leads", Column: "prefs", Path: "color"}},
			}},
		},
		Storage: api.StorageMap{Tables: map[string]api.TableStorage{
			"leads": {Associations: map[string]api.Association{
				"user_id": api.UserAssociation{Attribute: api.UserID},
			}},
		}},
		Page: map[string]string{"title": "Sign up"},
	}
}

type fixture struct {
	ctl     *Controller
	store   *persistence.InMemoryStore
	metrics *api.BasicMetrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	defs := definition.NewInMemoryProvider()
	defs.Put(route, signupFlow())

	store := persistence.NewInMemoryStore()
	metrics := &api.BasicMetrics{}
	eng := resolve.NewEngine(resolve.Config{Rows: store, Users: store, Observer: metrics})

	ctl := NewController(Config{
		Definitions: defs,
		States:      store,
		Resolver:    eng,
		Observer:    metrics,
	})
	return fixture{ctl: ctl, store: store, metrics: metrics}
}

func TestShow_FreshVisitorGetsFirstStep(t *testing.T) {
	f := newFixture(t)

	page, err := f.ctl.Show(context.Background(), visitor, "signup/")
	require.NoError(t, err)
	require.Equal(t, route, page.Route)
	require.Equal(t, 0, page.StepIndex)
	require.Equal(t, "Sign up", page.Attributes["title"])

	form := page.Form
	require.NotNil(t, form)
	require.Equal(t, route, form.Action, "action defaults to the route")
	require.Equal(t, "POST", form.Method)
	require.True(t, form.Validate)

	n := len(form.Fields)
	require.Equal(t, 4, n)
	require.Equal(t, api.Field{Type: "submit", Value: api.SubmitLabel}, form.Fields[n-2])
	require.Equal(t, api.Field{Type: "hidden", Name: api.HiddenStepField, Value: "0"}, form.Fields[n-1])

	require.Len(t, signupFlow().Steps[0].Fields, 2, "definition fields not mutated")
}

func TestShow_OutOfRangeStateResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := api.NewFlowState()
	stale.StepIndex = 7
	stale.Rows["leads"] = 42
	require.NoError(t, f.store.PutFlowState(ctx, visitor, route, stale))

	page, err := f.ctl.Show(ctx, visitor, route)
	require.NoError(t, err)
	require.Equal(t, 0, page.StepIndex)
}

func TestSubmit_RequiredFieldRejectedWithoutWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctl.Submit(ctx, visitor, route, map[string]string{
		api.HiddenStepField: "0",
		"name":              "Ada",
	})
	require.True(t, api.IsValidationError(err), "got %v", err)

	require.Equal(t, 0, f.store.RowCount("leads"))
	_, err = f.store.GetFlowState(ctx, visitor, route)
	require.ErrorIs(t, err, api.ErrStateNotFound)
	require.Equal(t, int64(1), f.metrics.Snapshot().SubmissionsFailed)
}

func TestSubmit_BadStepIndex(t *testing.T) {
	f := newFixture(t)

	for _, v := range []string{"", "x", "-1", "3"} {
		raw := map[string]string{"email": "a@b.com"}
		if v != "" {
			raw[api.HiddenStepField] = v
		}
		_, err := f.ctl.Submit(context.Background(), visitor, route, raw)
		if !api.IsValidationError(err) {
			t.Fatalf("form-id %q: expected ValidationError, got %v", v, err)
		}
	}
}

func TestSubmit_UnknownRoute(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctl.Submit(context.Background(), visitor, "/nope", map[string]string{api.HiddenStepField: "0"})
	require.True(t, api.IsDefinitionError(err))
	require.ErrorIs(t, err, api.ErrDefinitionNotFound)
}

func TestFlow_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.ctl.Submit(ctx, visitor, route, map[string]string{
		api.HiddenStepField: "0",
		"email":             "Ada@Example.com",
		"name":              "Ada",
	})
	require.NoError(t, err)
	require.Equal(t, route, out.Redirect)
	require.Equal(t, 1, out.StepIndex)
	require.False(t, out.Completed)

	st, err := f.store.GetFlowState(ctx, visitor, route)
	require.NoError(t, err)
	leadID := st.Rows["leads"]
	userID := st.User[api.UserID]
	require.NotZero(t, leadID)
	require.NotNil(t, userID)

	lead, err := f.store.SelectRow(ctx, "leads", "id", leadID)
	require.NoError(t, err)
	require.Equal(t, userID, lead["user_id"])

	// Step 1 is a redirect: consumed without collecting data.
	page, err := f.ctl.Show(ctx, visitor, route)
	require.NoError(t, err)
	require.Equal(t, "/interstitial", page.Redirect)
	require.Nil(t, page.Form)

	page, err = f.ctl.Show(ctx, visitor, route)
	require.NoError(t, err)
	require.Equal(t, 2, page.StepIndex)
	require.Equal(t, "/custom", page.Form.Action)

	out, err = f.ctl.Submit(ctx, visitor, route, map[string]string{api.HiddenStepField: "2"})
	require.NoError(t, err)
	require.True(t, out.Completed)

	lead, err = f.store.SelectRow(ctx, "leads", "id", leadID)
	require.NoError(t, err)
	require.JSONEq(t, `{"color":"blue"}`, lead["prefs"].(string))
	require.Equal(t, 1, f.store.RowCount("leads"), "later steps update the same row")

	// A completed flow restarts on the next load.
	page, err = f.ctl.Show(ctx, visitor, route)
	require.NoError(t, err)
	require.Equal(t, 0, page.StepIndex)

	snap := f.metrics.Snapshot()
	require.Equal(t, int64(1), snap.FlowsCompleted)
	require.Equal(t, int64(1), snap.StepsRedirected)
}

func TestFlow_SessionsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctl.Submit(ctx, visitor, route, map[string]string{
		api.HiddenStepField: "0",
		"email":             "a@b.com",
	})
	require.NoError(t, err)

	page, err := f.ctl.Show(ctx, api.Session{ID: "visitor-2"}, route)
	require.NoError(t, err)
	require.Equal(t, 0, page.StepIndex)
}
