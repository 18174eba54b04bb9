package source

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"github.com/elonfeng/flowrank/pkg/workflow"
)

// RawItem is one discovered workflow with its raw engagement counts.
type RawItem struct {
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
	Name       string `json:"name"` // canonical workflow name

	Views    int `json:"views"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`

	// Forum only.
	Replies      int `json:"replies,omitempty"`
	Contributors int `json:"contributors,omitempty"`
}

// Source is the interface every platform adapter implements. An error from
// Fetch aborts that platform's ingestion run.
type Source interface {
	Platform() workflow.Platform
	Fetch(ctx context.Context, country string) ([]RawItem, error)
}

// count is a non-negative integer decoded from a JSON number or a numeric
// string. Anything unparseable decodes to 0 without error.
type count int

func (c *count) UnmarshalJSON(data []byte) error {
	*c = 0
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil {
			return nil
		}
		n = int64(f)
	}
	if n < 0 {
		return nil
	}
	*c = count(n)
	return nil
}

var _ json.Unmarshaler = (*count)(nil)
