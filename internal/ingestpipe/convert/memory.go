package convert

import "context"

// MemoryClient is a deterministic fake Client for pipeline tests.
type MemoryClient struct {
	Text string
	Meta Metadata
	Err  error
}

func (m *MemoryClient) Convert(context.Context, string) (Result, error) {
	if m.Err != nil {
		return Result{}, m.Err
	}
	return Result{Text: m.Text, Metadata: m.Meta}, nil
}

var _ Client = (*MemoryClient)(nil)
