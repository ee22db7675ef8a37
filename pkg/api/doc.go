// Package api contains the core types shared by the formflow packages:
// flow definitions, flow state, the store interfaces implemented by the
// backends, typed errors and observers.
//
// Most users interact with the higher-level formflow package, which
// re-exports selected types and helpers from this package. The api package
// is intended for custom backends and integrations.
//
// # Definitions
//
// A FlowDefinition is the ordered list of StepForm values bound to one
// route plus a StorageMap. Each Field names its destination through the
// closed Storage sum type (Column, JSONPath, UserAttribute, or nil for
// "not stored"). A StorageMap declares, per table, the primary key and the
// associations (UserAssociation, RowAssociation) that copy already known
// ids into columns.
//
// Definitions are immutable for the duration of a request.
//
// # State
//
// FlowState is kept per Session and route: the current step index, the
// row id created for each table and the user attributes established so
// far. Backends store it through the StateStore interface.
//
// # Backends
//
// DefinitionProvider, StateStore, RowStore and UserStore are the only
// contact points with storage. Implementations must be safe for
// concurrent use.
//
// # Errors
//
// Failures are reported with DefinitionError, ValidationError,
// PersistenceError and UserCreationError. Use errors.As or the IsXxx
// helpers to tell them apart.
//
// # Observability
//
// The Observer interface is called by the flow controller and the
// save-resolution engine. LoggingObserver, BasicMetrics and
// CompositeObserver are ready-made implementations.
package api
