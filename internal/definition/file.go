package definition

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/petrijr/formflow/pkg/api"
)

// indexName is the file name used for the root route.
const indexName = "index"

// FileProvider reads settings documents from a directory. The route
// /signup/business maps to signup/business.yaml (or .yml, .json) below
// the directory and / maps to index.yaml.
//
// Files are read on every call, so edits take effect without a restart.
type FileProvider struct {
	dir string
}

var _ api.DefinitionProvider = (*FileProvider)(nil)

func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

func (p *FileProvider) GetFormDefinition(ctx context.Context, route string) (api.FlowDefinition, error) {
	route = api.NormalizeRoute(route)

	base, ok := p.basePath(route)
	if !ok {
		return api.FlowDefinition{}, &api.DefinitionError{Route: route, Err: api.ErrDefinitionNotFound}
	}

	for _, ext := range []string{".yaml", ".yml", ".json"} {
		data, err := os.ReadFile(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return api.FlowDefinition{}, fmt.Errorf("load definition %q: %w", route, err)
		}

		var def api.FlowDefinition
		if ext == ".json" {
			def, err = ParseJSON(data)
		} else {
			def, err = ParseYAML(data)
		}
		if err != nil {
			return api.FlowDefinition{}, &api.DefinitionError{Route: route, Err: err}
		}
		return def, nil
	}

	return api.FlowDefinition{}, &api.DefinitionError{Route: route, Err: api.ErrDefinitionNotFound}
}

func (p *FileProvider) basePath(route string) (string, bool) {
	rel := strings.TrimPrefix(route, "/")
	if rel == "" {
		rel = indexName
	}
	for _, part := range strings.Split(rel, "/") {
		if part == "" || part == "." || part == ".." {
			return "", false
		}
	}
	return filepath.Join(p.dir, filepath.FromSlash(rel)), true
}
