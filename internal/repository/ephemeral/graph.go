package ephemeral

import (
	"context"
	"encoding/json"
	"fmt"

	"insightboard/internal/domain"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/repositories"
)

const (
	graphPrefix = "graph:"
	quotaPrefix = "quota:"
)

// GraphKey is the KV key holding a guest session's serialized tree.
func GraphKey(session string) string { return graphPrefix + session }

// QuotaKey is the KV key holding a guest session's quota counters.
func QuotaKey(session string) string { return quotaPrefix + session }

// LoadGraph reads a session's full tree. A missing key is an empty graph.
func LoadGraph(ctx context.Context, kv repositories.KVStore, session string) (workspace.Graph, error) {
	raw, found, err := kv.Get(ctx, GraphKey(session))
	if err != nil {
		return nil, unavailable(err)
	}
	return decodeGraph(raw, found)
}

func decodeGraph(raw []byte, found bool) (workspace.Graph, error) {
	if !found || len(raw) == 0 {
		return workspace.Graph{}, nil
	}
	var g workspace.Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode guest graph: %w", err)
	}
	return g, nil
}

func encodeGraph(g workspace.Graph) ([]byte, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode guest graph: %w", err)
	}
	return raw, nil
}

// unavailable keeps domain errors from the KV driver and wraps anything else.
func unavailable(err error) error {
	if domain.IsKnown(err) {
		return err
	}
	return domain.Unavailable("guest store", err)
}
