package protocol

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/darkroom/internal/model"
	"github.com/roach88/darkroom/internal/seal"
	"github.com/roach88/darkroom/internal/store"
)

// StateSource reports whether the unlock transition has happened.
// Implemented by seal.Manager.
type StateSource interface {
	Unlocked(ctx context.Context) (bool, error)
}

// Registry is the freeze-once protocol registry.
//
// Register appends definitions while COLLECTING. Freeze (invoked by the seal
// manager during sealing) computes the freeze hash over the ordered
// definition list and locks the set. FrozenDefinitions exposes the set only
// after UNLOCKED.
type Registry struct {
	st     *store.Store
	states StateSource

	mu sync.Mutex
}

// NewRegistry creates a registry over the given store.
func NewRegistry(st *store.Store, states StateSource) *Registry {
	return &Registry{st: st, states: states}
}

// Register appends one definition. The definition hash is computed here;
// any caller-supplied hash is ignored. Fails with ErrProtocolLocked once the
// registry is frozen.
func (r *Registry) Register(ctx context.Context, def model.ProtocolDefinition) (model.ProtocolDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Name == "" {
		return model.ProtocolDefinition{}, fmt.Errorf("register: definition name is required")
	}
	if !def.Kind.Valid() {
		return model.ProtocolDefinition{}, fmt.Errorf("register %q: unknown metric kind %q", def.Name, def.Kind)
	}

	frozen, _, err := r.st.RegistryState(ctx)
	if err != nil {
		return model.ProtocolDefinition{}, fmt.Errorf("register %q: %w", def.Name, err)
	}
	if frozen {
		return model.ProtocolDefinition{}, ErrProtocolLocked
	}

	if def.Parameters == nil {
		def.Parameters = map[string]string{}
	}
	hash, err := model.DefinitionHash(def)
	if err != nil {
		return model.ProtocolDefinition{}, fmt.Errorf("register %q: %w", def.Name, err)
	}
	def.DefinitionHash = hash

	if err := r.st.WriteDefinition(ctx, def); err != nil {
		return model.ProtocolDefinition{}, err
	}
	return def, nil
}

// Freeze computes the freeze hash over the ordered definitions and locks the
// registry. Implements seal.RegistryFreezer.
//
// Idempotent when re-invoked over identical content; a differing recompute
// returns a RegistryMismatchError.
func (r *Registry) Freeze(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs, err := r.st.ReadDefinitions(ctx)
	if err != nil {
		return "", fmt.Errorf("freeze: %w", err)
	}
	computed, err := model.FreezeHash(defs)
	if err != nil {
		return "", fmt.Errorf("freeze: %w", err)
	}

	frozen, recorded, err := r.st.RegistryState(ctx)
	if err != nil {
		return "", fmt.Errorf("freeze: %w", err)
	}
	if frozen {
		if recorded != computed {
			return "", &RegistryMismatchError{Recorded: recorded, Computed: computed}
		}
		return recorded, nil
	}

	if err := r.st.FreezeRegistry(ctx, computed); err != nil {
		return "", err
	}
	return computed, nil
}

// Definitions returns the current definition list in registration order.
// Available in any state: definitions are pre-committed methodology, not
// collected content.
func (r *Registry) Definitions(ctx context.Context) ([]model.ProtocolDefinition, error) {
	return r.st.ReadDefinitions(ctx)
}

// FrozenDefinitions returns the frozen set together with its freeze hash.
// Only available after UNLOCKED; before that it fails with
// seal.ErrSealedAccessDenied.
func (r *Registry) FrozenDefinitions(ctx context.Context) ([]model.ProtocolDefinition, string, error) {
	frozen, freezeHash, err := r.st.RegistryState(ctx)
	if err != nil {
		return nil, "", err
	}
	if !frozen {
		return nil, "", ErrRegistryNotFrozen
	}

	unlocked, err := r.states.Unlocked(ctx)
	if err != nil {
		return nil, "", err
	}
	if !unlocked {
		return nil, "", seal.ErrSealedAccessDenied
	}

	defs, err := r.st.ReadDefinitions(ctx)
	if err != nil {
		return nil, "", err
	}
	return defs, freezeHash, nil
}
