// Package entity defines the closed set of entity kinds tracked by the
// sync engine, their parent/child hierarchy, and the typed payloads that
// application code hands to the mutation queue.
package entity

import (
	"encoding/json"
	"fmt"
)

// Kind identifies one of the tracked entity types.
type Kind string

const (
	KindSchema         Kind = "schema"
	KindWorkoutDay     Kind = "workoutDay"
	KindExercise       Kind = "exercise"
	KindWorkoutSession Kind = "workoutSession"
	KindExerciseLog    Kind = "exerciseLog"
	KindSetLog         Kind = "setLog"
)

// Hierarchy lists every kind in parent-before-child order. Push and pull
// both walk kinds in this order so that a parent's identifier mapping
// exists before any entity that references it is processed.
var Hierarchy = []Kind{
	KindSchema,
	KindWorkoutDay,
	KindExercise,
	KindWorkoutSession,
	KindExerciseLog,
	KindSetLog,
}

var hierarchyOrder = func() map[Kind]int {
	m := make(map[Kind]int, len(Hierarchy))
	for i, k := range Hierarchy {
		m[k] = i
	}
	return m
}()

// Order returns the kind's position in Hierarchy. Unknown kinds sort last.
func (k Kind) Order() int {
	if i, ok := hierarchyOrder[k]; ok {
		return i
	}
	return len(Hierarchy)
}

// Valid reports whether k is one of the tracked kinds.
func (k Kind) Valid() bool {
	_, ok := hierarchyOrder[k]
	return ok
}

// Collection returns the remote collection name used in RPC operation
// names, e.g. "schemas" for KindSchema.
func (k Kind) Collection() string {
	return string(k) + "s"
}

// RefFields returns the payload field names that hold identifiers of other
// entities this kind references. Values in these fields are local ids on
// the device and must be translated to remote ids before a push (and back
// again when a remote snapshot is materialized locally).
func (k Kind) RefFields() []string {
	switch k {
	case KindSchema:
		return nil
	case KindWorkoutDay:
		return []string{"schemaId"}
	case KindExercise:
		return []string{"dayId"}
	case KindWorkoutSession:
		return []string{"schemaId", "dayId"}
	case KindExerciseLog:
		return []string{"sessionId", "exerciseId"}
	case KindSetLog:
		return []string{"exerciseLogId"}
	}
	return nil
}

// Op is a mutation operation recorded in the queue.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Order returns the attempt order within a kind: creates before updates
// before deletes.
func (o Op) Order() int {
	switch o {
	case OpCreate:
		return 0
	case OpUpdate:
		return 1
	case OpDelete:
		return 2
	}
	return 3
}

// Valid reports whether o is a known operation.
func (o Op) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Payload is the typed form of a queue item's payload. Each tracked kind
// has exactly one payload variant; DecodePayload is the exhaustive decoder.
type Payload interface {
	PayloadKind() Kind
}

// SchemaPayload describes a workout schema, the root of the plan tree.
type SchemaPayload struct {
	Name      string `json:"name"`
	Notes     string `json:"notes,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}

// WorkoutDayPayload describes one day within a schema.
type WorkoutDayPayload struct {
	SchemaID  string `json:"schemaId"`
	Name      string `json:"name"`
	Position  int    `json:"position,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}

// ExercisePayload describes a planned exercise within a workout day.
type ExercisePayload struct {
	DayID     string  `json:"dayId"`
	Name      string  `json:"name"`
	Sets      int     `json:"sets,omitempty"`
	Reps      int     `json:"reps,omitempty"`
	WeightKg  float64 `json:"weightKg,omitempty"`
	Position  int     `json:"position,omitempty"`
	UpdatedAt int64   `json:"updatedAt"`
}

// WorkoutSessionPayload describes a performed session of a schema day.
type WorkoutSessionPayload struct {
	SchemaID  string `json:"schemaId"`
	DayID     string `json:"dayId"`
	StartedAt int64  `json:"startedAt"`
	EndedAt   int64  `json:"endedAt,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}

// ExerciseLogPayload describes one exercise performed during a session.
type ExerciseLogPayload struct {
	SessionID  string `json:"sessionId"`
	ExerciseID string `json:"exerciseId"`
	Notes      string `json:"notes,omitempty"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// SetLogPayload describes one set performed for an exercise log.
type SetLogPayload struct {
	ExerciseLogID string  `json:"exerciseLogId"`
	SetNumber     int     `json:"setNumber"`
	Reps          int     `json:"reps"`
	WeightKg      float64 `json:"weightKg"`
	RPE           float64 `json:"rpe,omitempty"`
	UpdatedAt     int64   `json:"updatedAt"`
}

func (SchemaPayload) PayloadKind() Kind         { return KindSchema }
func (WorkoutDayPayload) PayloadKind() Kind     { return KindWorkoutDay }
func (ExercisePayload) PayloadKind() Kind       { return KindExercise }
func (WorkoutSessionPayload) PayloadKind() Kind { return KindWorkoutSession }
func (ExerciseLogPayload) PayloadKind() Kind    { return KindExerciseLog }
func (SetLogPayload) PayloadKind() Kind         { return KindSetLog }

// Fields flattens a typed payload into the key-value map shape used on the
// wire and in persisted queue items.
func Fields(p Payload) (map[string]any, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.PayloadKind(), err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("flatten %s payload: %w", p.PayloadKind(), err)
	}
	return m, nil
}

// DecodePayload parses raw JSON into the payload variant for the given
// kind. The switch is exhaustive over the tracked kinds.
func DecodePayload(k Kind, raw []byte) (Payload, error) {
	decode := func(p Payload) (Payload, error) {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", k, err)
		}
		return p, nil
	}
	switch k {
	case KindSchema:
		return decode(&SchemaPayload{})
	case KindWorkoutDay:
		return decode(&WorkoutDayPayload{})
	case KindExercise:
		return decode(&ExercisePayload{})
	case KindWorkoutSession:
		return decode(&WorkoutSessionPayload{})
	case KindExerciseLog:
		return decode(&ExerciseLogPayload{})
	case KindSetLog:
		return decode(&SetLogPayload{})
	}
	return nil, fmt.Errorf("unknown entity kind %q", k)
}
