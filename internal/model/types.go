package model

import "time"

// Version constants for the record schema and collector.
const (
	// SchemaVersion is the snapshot payload schema version.
	SchemaVersion = "1"

	// CollectorVersion is the Darkroom collector version.
	CollectorVersion = "0.1.0"
)

// Task is one collaboration-platform task as captured in a snapshot.
// Immutable once stored; a later snapshot may carry updated counts for the
// same ID.
type Task struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Agent            string    `json:"agent"`
	Tags             []string  `json:"tags"`
	Status           string    `json:"status"`
	UpvoteCount      int       `json:"upvote_count"`
	CommentCount     int       `json:"comment_count"`
	DeliverableCount int       `json:"deliverable_count"`
	MergedCount      int       `json:"merged_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// Comment is one comment on a task. Immutable.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotPayload is the full content of one collection pull.
type SnapshotPayload struct {
	Tasks    []Task    `json:"tasks"`
	Comments []Comment `json:"comments"`
}

// Snapshot is one hash-chained capture of collected data.
//
// ContentHash = SHA-256(domain, PreviousHash, canonical(payload)).
// The first snapshot in a chain has PreviousHash == GenesisHash.
type Snapshot struct {
	Seq          int64           `json:"seq"`
	CollectedAt  time.Time       `json:"collected_at"`
	ContentHash  string          `json:"content_hash"`
	PreviousHash string          `json:"previous_hash"`
	Payload      SnapshotPayload `json:"payload"`
}

// SnapshotMeta is the seal-exempt view of a snapshot: chain position and
// activity volume, never content.
type SnapshotMeta struct {
	Seq          int64     `json:"seq"`
	CollectedAt  time.Time `json:"collected_at"`
	ContentHash  string    `json:"content_hash"`
	PreviousHash string    `json:"previous_hash"`
	TaskCount    int       `json:"task_count"`
	CommentCount int       `json:"comment_count"`
	SoftFailures int       `json:"soft_failures"`
}

// TaskMetrics is the count-only row the structural engine reads. Written at
// append time so structural analysis never opens a payload.
type TaskMetrics struct {
	SnapshotSeq      int64     `json:"snapshot_seq"`
	TaskID           string    `json:"task_id"`
	Status           string    `json:"status"`
	CommentCount     int       `json:"comment_count"`
	DeliverableCount int       `json:"deliverable_count"`
	MergedCount      int       `json:"merged_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// MetricKind identifies one of the five pre-registered semantic metrics.
type MetricKind string

const (
	MetricSemanticNovelty        MetricKind = "semantic_novelty"
	MetricConceptualSynthesis    MetricKind = "conceptual_synthesis"
	MetricTemporalDynamics       MetricKind = "temporal_dynamics"
	MetricCollaborativeEmergence MetricKind = "collaborative_emergence"
	MetricSurprise               MetricKind = "surprise"
)

// MetricKinds lists every valid kind in canonical registration order.
var MetricKinds = []MetricKind{
	MetricSemanticNovelty,
	MetricConceptualSynthesis,
	MetricTemporalDynamics,
	MetricCollaborativeEmergence,
	MetricSurprise,
}

// Valid reports whether k names a known metric kind.
func (k MetricKind) Valid() bool {
	for _, known := range MetricKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ProtocolDefinition is one pre-committed analysis metric definition.
//
// Parameters are carried as decimal strings rather than floats because the
// canonical JSON used for DefinitionHash forbids floats.
type ProtocolDefinition struct {
	Name           string            `json:"name"`
	Kind           MetricKind        `json:"metric_kind"`
	Parameters     map[string]string `json:"parameters"`
	DefinitionHash string            `json:"definition_hash"`
}

// SealRecord is the single record created at seal time. At most one exists.
type SealRecord struct {
	CreatedAt          time.Time `json:"created_at"`
	TargetUnlockAt     time.Time `json:"target_unlock_at"`
	ChainHashAtSeal    string    `json:"chain_hash_at_seal"`
	ProtocolFreezeHash string    `json:"protocol_freeze_hash"`

	// SealedPrefixSeq is the highest snapshot seq covered by the seal.
	// Snapshots appended afterwards extend the chain but form an
	// unanalyzed tail.
	SealedPrefixSeq int64 `json:"sealed_prefix_seq"`

	// UnlockedAt is zero until the one-way unlock transition succeeds.
	UnlockedAt time.Time `json:"unlocked_at,omitempty"`
}

// Unlocked reports whether the unlock transition has happened.
func (r SealRecord) Unlocked() bool {
	return !r.UnlockedAt.IsZero()
}

// AnalysisResult is one metric's output within a run.
type AnalysisResult struct {
	Kind           MetricKind     `json:"metric_kind"`
	DefinitionHash string         `json:"definition_hash"`
	Payload        map[string]any `json:"payload"`
}

// AnalysisRun is one immutable execution of every frozen protocol.
// Re-running analysis appends a new run; nothing is recomputed in place.
type AnalysisRun struct {
	RunID              string           `json:"run_id"`
	ExecutedAt         time.Time        `json:"executed_at"`
	ProtocolFreezeHash string           `json:"protocol_freeze_hash"`
	Results            []AnalysisResult `json:"results"`
}
