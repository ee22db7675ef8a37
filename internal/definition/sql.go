package definition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/petrijr/formflow/internal/persistence"
	"github.com/petrijr/formflow/pkg/api"
)

// SQLProvider reads JSON settings documents from the table
//
//	multiform_settings(id, url UNIQUE, settings)
//
// keyed by the normalized route.
type SQLProvider struct {
	db      *sql.DB
	dialect persistence.Dialect
}

var _ api.DefinitionProvider = (*SQLProvider)(nil)

// NewSQLProvider creates the settings table if needed and returns a provider.
func NewSQLProvider(ctx context.Context, db *sql.DB, dialect persistence.Dialect) (*SQLProvider, error) {
	p := &SQLProvider{db: db, dialect: dialect}
	if err := p.initSchema(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SQLProvider) initSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS multiform_settings (
			id %s,
			url %s NOT NULL UNIQUE,
			settings TEXT NOT NULL
		)`, p.dialect.AutoIncrementPK, p.dialect.KeyText),
	)
	return err
}

func (p *SQLProvider) GetFormDefinition(ctx context.Context, route string) (api.FlowDefinition, error) {
	route = api.NormalizeRoute(route)

	row := p.db.QueryRowContext(ctx,
		"SELECT settings FROM multiform_settings WHERE url = "+p.dialect.Placeholder(1),
		route,
	)

	var settings string
	if err := row.Scan(&settings); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return api.FlowDefinition{}, &api.DefinitionError{Route: route, Err: api.ErrDefinitionNotFound}
		}
		return api.FlowDefinition{}, fmt.Errorf("load definition %q: %w", route, err)
	}

	def, err := ParseJSON([]byte(settings))
	if err != nil {
		return api.FlowDefinition{}, &api.DefinitionError{Route: route, Err: err}
	}
	return def, nil
}

// PutDefinition stores a JSON settings document for route after checking
// that it decodes.
func (p *SQLProvider) PutDefinition(ctx context.Context, route string, settings []byte) error {
	route = api.NormalizeRoute(route)
	if _, err := ParseJSON(settings); err != nil {
		return &api.DefinitionError{Route: route, Err: err}
	}

	query := p.dialect.Upsert("multiform_settings", []string{"url"}, []string{"url", "settings"})
	_, err := p.db.ExecContext(ctx, query, route, string(settings))
	return err
}
