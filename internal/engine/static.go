package engine

import "context"

// StaticProvider resolves store names against a fixed set of ready
// stores. Names outside the set resolve to nothing. Used by the CLI until
// real store integrations register themselves, and by tests.
type StaticProvider struct {
	// Ready maps store name to its native handle.
	Ready map[string]any
}

// Handles returns handles for the requested names that are ready.
func (p StaticProvider) Handles(_ context.Context, names []string) ([]StoreHandle, error) {
	out := make([]StoreHandle, 0, len(names))

	for _, name := range names {
		handle, ok := p.Ready[name]
		if !ok {
			continue
		}

		out = append(out, StoreHandle{Name: name, Handle: handle})
	}

	return out, nil
}

// NoopEngine reports success for every store without moving any data,
// passing the continuation token through unchanged. It exercises the full
// scheduling machinery when no real engine is linked in.
type NoopEngine struct{}

// Sync returns StatusOK with every requested store successful.
func (NoopEngine) Sync(_ context.Context, req Request) (Result, error) {
	successful := make([]string, len(req.Stores))
	for i, s := range req.Stores {
		successful[i] = s.Name
	}

	return Result{
		Status:         StatusOK,
		Successful:     successful,
		PersistedState: req.PersistedState,
	}, nil
}
