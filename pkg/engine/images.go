package engine

import (
	"context"
	"regexp"
	"time"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/debug"
	"github.com/nxgate/nxgate/pkg/observability"
	"github.com/nxgate/nxgate/pkg/provider"
)

var linkPattern = regexp.MustCompile(`https?://[^\s()]+`)

// ExtractLinks returns every http(s) link in text, in order.
func ExtractLinks(text string) []string {
	return linkPattern.FindAllString(text, -1)
}

// GenerateImages runs the routed image generator n times and collects the
// links found in each textual result. Runs are sequential; the first
// failure aborts the request.
func (e *Engine) GenerateImages(ctx context.Context, req *api.ImageRequest) (*api.ImageResponse, error) {
	if apiErr := api.ValidateImageRequest(req, e.cfg.Validation); apiErr != nil {
		return nil, apiErr
	}
	model := *req.Model
	route, ok := e.registry.ResolveImage(model)
	if !ok {
		return nil, api.NewModelNotFoundError(model)
	}

	preq := &provider.ImageRequest{
		Model:          route.Upstream,
		RequestedModel: model,
		Prompt:         *req.Prompt,
		Size:           *req.Size,
	}
	name := route.Generator.Name()
	start := time.Now()

	data := make([]api.ImageData, 0, *req.N)
	for i := 0; i < *req.N; i++ {
		text, err := route.Generator.GenerateImage(ctx, preq)
		if err != nil {
			observability.ProviderRequestsTotal.WithLabelValues(name, model, "error").Inc()
			return nil, err
		}
		links := ExtractLinks(text)
		debug.Log("providers", "image generated", "provider", name, "model", model, "run", i+1, "links", len(links))
		for _, l := range links {
			data = append(data, api.ImageData{URL: l})
		}
	}
	observability.ProviderRequestsTotal.WithLabelValues(name, model, "success").Inc()
	observability.ProviderLatency.WithLabelValues(name, model).Observe(time.Since(start).Seconds())

	return &api.ImageResponse{
		Created: time.Now().Unix(),
		Data:    data,
		Model:   model,
		Prompt:  *req.Prompt,
		N:       *req.N,
	}, nil
}
