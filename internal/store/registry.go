package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/darkroom/internal/model"
)

// WriteDefinition appends a protocol definition at the next position.
// Registration order matters: it participates in the freeze hash.
func (s *Store) WriteDefinition(ctx context.Context, def model.ProtocolDefinition) error {
	params, err := model.MarshalCanonical(def.Parameters)
	if err != nil {
		return fmt.Errorf("write definition %q: %w", def.Name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO protocol_definitions (position, name, metric_kind, parameters, definition_hash)
		VALUES ((SELECT COALESCE(MAX(position), 0) + 1 FROM protocol_definitions), ?, ?, ?, ?)
	`,
		def.Name,
		string(def.Kind),
		string(params),
		def.DefinitionHash,
	)
	if err != nil {
		return fmt.Errorf("write definition %q: %w", def.Name, err)
	}
	return nil
}

// ReadDefinitions returns all protocol definitions in registration order.
// Definitions are pre-committed methodology, not collected content, so this
// is never gated; the unlocked-only frozen view lives in the registry type.
func (s *Store) ReadDefinitions(ctx context.Context) ([]model.ProtocolDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, metric_kind, parameters, definition_hash
		FROM protocol_definitions
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	defer rows.Close()

	defs := []model.ProtocolDefinition{}
	for rows.Next() {
		var (
			def    model.ProtocolDefinition
			kind   string
			params string
		)
		if err := rows.Scan(&def.Name, &kind, &params, &def.DefinitionHash); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		def.Kind = model.MetricKind(kind)
		def.Parameters = map[string]string{}
		if err := json.Unmarshal([]byte(params), &def.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal parameters for %q: %w", def.Name, err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return defs, nil
}

// RegistryState returns whether the registry is frozen and its freeze hash.
func (s *Store) RegistryState(ctx context.Context) (frozen bool, freezeHash string, err error) {
	var frozenInt int
	err = s.db.QueryRowContext(ctx, `
		SELECT frozen, freeze_hash FROM registry_state WHERE id = 1
	`).Scan(&frozenInt, &freezeHash)
	if err != nil {
		return false, "", fmt.Errorf("read registry state: %w", err)
	}
	return frozenInt != 0, freezeHash, nil
}

// FreezeRegistry records the frozen flag and freeze hash. The caller (the
// registry type) is responsible for the idempotence/mismatch semantics.
func (s *Store) FreezeRegistry(ctx context.Context, freezeHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE registry_state SET frozen = 1, freeze_hash = ? WHERE id = 1
	`, freezeHash)
	if err != nil {
		return fmt.Errorf("freeze registry: %w", err)
	}
	return nil
}
