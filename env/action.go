package env

import "github.com/signalsfoundry/grid-simulator/model"

// ActionKind tags the variant of an Action.
type ActionKind int

const (
	// ActionNone leaves the entity and the environment untouched.
	ActionNone ActionKind = iota
	// ActionMove relocates the entity's footprint.
	ActionMove
	// ActionMutate records that the entity changed its own internal state;
	// the change itself has already been applied by the entity and has no
	// spatial effect.
	ActionMutate
	// ActionSpawn introduces a new entity, visible from the next generation.
	ActionSpawn
	// ActionRemove retires the entity from the environment.
	ActionRemove
)

// String returns the kind as a lower-case label, suitable for logs and
// metric label values.
func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionMove:
		return "move"
	case ActionMutate:
		return "mutate"
	case ActionSpawn:
		return "spawn"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Action is the tagged result of a reaction. The zero value is None. Build
// actions with the constructors below rather than filling the struct
// directly.
type Action struct {
	Kind ActionKind

	// To is the destination footprint of a Move.
	To model.Footprint

	// Child and ChildFootprint describe the entity introduced by a Spawn.
	Child          Entity
	ChildFootprint model.Footprint
}

// None returns the action that does nothing.
func None() Action {
	return Action{Kind: ActionNone}
}

// MoveTo returns the action that relocates the entity to the given
// footprint.
func MoveTo(to model.Footprint) Action {
	return Action{Kind: ActionMove, To: to}
}

// Mutated returns the action that records an already-applied internal state
// change.
func Mutated() Action {
	return Action{Kind: ActionMutate}
}

// SpawnChild returns the action that introduces child at the given footprint
// starting from the next generation.
func SpawnChild(child Entity, at model.Footprint) Action {
	return Action{Kind: ActionSpawn, Child: child, ChildFootprint: at}
}

// Remove returns the action that retires the entity at commit time. Its
// identity is never reused.
func Remove() Action {
	return Action{Kind: ActionRemove}
}

// ScheduledAction pairs an action with the identity of the entity that
// produced it. The scheduler collects these in identity-issuance order
// before handing them to Commit.
type ScheduledAction struct {
	Entity model.EntityID
	Action Action
}
