package formflow_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/petrijr/formflow"
)

// Example_flowBuilder demonstrates defining a two-step flow with the
// FlowBuilder API and driving it through an in-memory bundle.
func Example_flowBuilder() {
	ctx := context.Background()

	bundle := formflow.NewInMemoryBundle(formflow.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	flow := formflow.New().
		Page("title", "Newsletter").
		Step(formflow.Input("email").Type("email").Required().ToUser(formflow.UserEmail)).
		Step(formflow.Input("list").Default("weekly").ToUser(formflow.UserListID))

	if err := bundle.Define(ctx, "/newsletter", flow.Definition()); err != nil {
		log.Fatal(err)
	}

	visitor := formflow.Session{ID: "visitor-1"}

	page, err := bundle.Show(ctx, visitor, "/newsletter")
	if err != nil {
		log.Fatal(err)
	}
	last := page.Form.Fields[len(page.Form.Fields)-1]
	fmt.Printf("step %d, hidden %s=%s\n", page.StepIndex, last.Name, last.Value)

	if _, err := bundle.Submit(ctx, visitor, "/newsletter", map[string]string{
		"form-id": "0",
		"email":   "gopher@example.com",
	}); err != nil {
		log.Fatal(err)
	}

	out, err := bundle.Submit(ctx, visitor, "/newsletter", map[string]string{"form-id": "1"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("completed: %v, redirect to %s\n", out.Completed, out.Redirect)

	// Output:
	// step 0, hidden form-id=0
	// completed: true, redirect to /newsletter
}
