package report

import (
	"context"
	"encoding/json"
	"io"
)

// JSONRenderer writes the render request as indented JSON.
type JSONRenderer struct {
	W io.Writer
}

func (r JSONRenderer) Render(_ context.Context, req RenderRequest) error {
	enc := json.NewEncoder(r.W)
	enc.SetIndent("", "  ")
	return enc.Encode(req)
}
