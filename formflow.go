package formflow

import (
	"github.com/petrijr/formflow/internal/flow"
	"github.com/petrijr/formflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	FlowDefinition = api.FlowDefinition
	StepForm       = api.StepForm
	Field          = api.Field
	FlowState      = api.FlowState
	Session        = api.Session

	Storage       = api.Storage
	Column        = api.Column
	JSONPath      = api.JSONPath
	UserAttribute = api.UserAttribute

	StorageMap       = api.StorageMap
	TableStorage     = api.TableStorage
	Association      = api.Association
	UserAssociation  = api.UserAssociation
	RowAssociation   = api.RowAssociation
	DefinitionSource = api.DefinitionProvider
	StateStore       = api.StateStore

	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	DefinitionError   = api.DefinitionError
	ValidationError   = api.ValidationError
	PersistenceError  = api.PersistenceError
	UserCreationError = api.UserCreationError

	Page    = flow.Page
	Form    = flow.Form
	Outcome = flow.Outcome
)

// Re-export common helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver

	IsDefinitionError   = api.IsDefinitionError
	IsValidationError   = api.IsValidationError
	IsPersistenceError  = api.IsPersistenceError
	IsUserCreationError = api.IsUserCreationError

	ErrDefinitionNotFound = api.ErrDefinitionNotFound
	ErrInvalidDefinition  = api.ErrInvalidDefinition
)

// Well-known user attributes.

const (
	UserEmail  = api.UserEmail
	UserListID = api.UserListID
	UserID     = api.UserID
)
