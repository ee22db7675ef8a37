// Package formflow drives multi-step ("wizard") form flows for Go web
// services.
//
// A flow is a sequence of forms bound to one URL route. Each submission is
// validated, split into storage targets (relational columns, keys inside a
// JSON column, the visitor's user record), persisted, and the visitor moves
// on to the next step. Progress is tracked per visitor session and route.
//
// # Core Concepts
//
//  1. FlowDefinition
//  2. Save resolution
//  3. Bundle
//  4. FlowBuilder
//
// # FlowDefinition
//
// A FlowDefinition lists the steps of a route and a StorageMap. Every field
// of a step names where its value goes:
//
//   - Column: one relational column
//   - JSONPath: one key of a JSON object kept in a column, merged into what
//     is already stored
//   - UserAttribute: the user record; "email" creates or finds the user,
//     "list_id" subscribes that user to a mailing list
//
// A step with a Redirect sends the visitor elsewhere and is consumed
// without collecting data.
//
// The StorageMap declares associations: columns filled from data already
// known in the flow, such as the id of the user created from an email
// field or the id of a parent row.
//
// # Save resolution
//
// Associations can depend on ids produced by the very submission being
// saved. The engine therefore derives a write plan, executes it, derives
// it again from the updated state and repeats until the plan no longer
// changes. Rows are inserted once per flow and updated afterwards. Writes
// are not transactional: a failure leaves earlier writes in place and the
// visitor's state unchanged.
//
// # Bundle
//
// A Bundle wires definitions, flow state, rows and users to one set of
// backends:
//
//   - In-memory (non-durable, best for tests)
//   - SQL: SQLite, MySQL or PostgreSQL through database/sql
//
// Flow state can be moved to Redis or MongoDB through Options.States,
// definitions to a directory of YAML files through Options.Definitions.
// Bundle.Handler serves every route over HTTP.
//
// # FlowBuilder
//
// FlowBuilder is the fluent API for definitions:
//
//	formflow.New().
//	    Step(formflow.Input("email").Required().ToUser(formflow.UserEmail)).
//	    Redirect("/thanks")
//
// Definitions can equally be stored as JSON or YAML settings documents;
// see cmd/formflowd.
package formflow
