package persistence

import "github.com/petrijr/formflow/pkg/api"

// Persistence bundles the store interfaces so the flow controller and the
// save-resolution engine can be wired from a single value.
type Persistence struct {
	Definitions api.DefinitionProvider
	States      api.StateStore
	Rows        api.RowStore
	Users       api.UserStore
}
