package engine

import (
	"context"
	"strings"

	"github.com/nxgate/nxgate/pkg/api"
)

// modelCreated is the fixed creation timestamp reported for every model.
const modelCreated = 1626777600

// ListModels reports every routable chat alias, sorted by id.
func (e *Engine) ListModels(_ context.Context) (*api.ModelList, error) {
	entries := e.registry.Models()
	data := make([]api.Model, 0, len(entries))
	for _, m := range entries {
		data = append(data, api.Model{
			ID:                     m.ID,
			Object:                 api.ObjectModel,
			Created:                modelCreated,
			OwnedBy:                strings.Join(m.Owners, ","),
			SupportedEndpointTypes: []string{"openai"},
		})
	}
	return &api.ModelList{Data: data, Success: true}, nil
}
