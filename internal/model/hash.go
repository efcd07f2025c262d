package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for algorithm migration without ambiguity.
const (
	DomainSnapshot = "darkroom/snapshot/v1"
	DomainProtocol = "darkroom/protocol/v1"
	DomainRegistry = "darkroom/registry/v1"
)

// GenesisHash is the previous_hash of the first snapshot in a chain.
const GenesisHash = ""

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash computes the content hash of a snapshot payload chained onto
// previousHash. Identical payloads at different chain positions hash
// differently, which is what makes the chain tamper-evident.
func SnapshotHash(payload SnapshotPayload, previousHash string) (string, error) {
	canonical, err := CanonicalPayload(payload)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: %w", err)
	}
	obj := map[string]any{
		"previous_hash": previousHash,
		"payload":       string(canonical),
	}
	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: %w", err)
	}
	return hashWithDomain(DomainSnapshot, data), nil
}

// DefinitionHash computes the content-addressed identity of one protocol
// definition. The stored DefinitionHash field is excluded, everything else
// participates.
func DefinitionHash(def ProtocolDefinition) (string, error) {
	obj := map[string]any{
		"name":        def.Name,
		"metric_kind": string(def.Kind),
		"parameters":  def.Parameters,
	}
	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DefinitionHash: %w", err)
	}
	return hashWithDomain(DomainProtocol, data), nil
}

// FreezeHash computes the registry freeze hash over the ordered definition
// list. Recomputed and compared at unlock time.
func FreezeHash(defs []ProtocolDefinition) (string, error) {
	arr := make([]any, len(defs))
	for i, def := range defs {
		hash, err := DefinitionHash(def)
		if err != nil {
			return "", fmt.Errorf("FreezeHash: definition %q: %w", def.Name, err)
		}
		arr[i] = map[string]any{
			"name":            def.Name,
			"definition_hash": hash,
		}
	}
	data, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("FreezeHash: %w", err)
	}
	return hashWithDomain(DomainRegistry, data), nil
}

// CanonicalPayload converts a snapshot payload to canonical JSON bytes.
// Timestamps are carried as RFC 3339 UTC strings so the payload contains no
// floats and no timezone drift.
func CanonicalPayload(p SnapshotPayload) ([]byte, error) {
	tasks := make([]any, len(p.Tasks))
	for i, t := range p.Tasks {
		tags := t.Tags
		if tags == nil {
			tags = []string{}
		}
		tasks[i] = map[string]any{
			"id":                t.ID,
			"title":             t.Title,
			"agent":             t.Agent,
			"tags":              tags,
			"status":            t.Status,
			"upvote_count":      t.UpvoteCount,
			"comment_count":     t.CommentCount,
			"deliverable_count": t.DeliverableCount,
			"merged_count":      t.MergedCount,
			"created_at":        canonicalTime(t.CreatedAt),
		}
	}
	comments := make([]any, len(p.Comments))
	for i, c := range p.Comments {
		comments[i] = map[string]any{
			"id":         c.ID,
			"task_id":    c.TaskID,
			"author":     c.Author,
			"body":       c.Body,
			"created_at": canonicalTime(c.CreatedAt),
		}
	}
	return MarshalCanonical(map[string]any{
		"schema_version": SchemaVersion,
		"tasks":          tasks,
		"comments":       comments,
	})
}

func canonicalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
