package model

// EntityID is a unique, stable token identifying an entity for the length of
// a simulation run. IDs are issued monotonically by the environment starting
// at 1 and are never reused after the entity is removed; the zero value is
// reserved as "no entity".
type EntityID int64

// NoEntity is the zero EntityID, never issued to a live entity.
const NoEntity EntityID = 0

// Valid reports whether the ID could have been issued by an environment.
func (id EntityID) Valid() bool {
	return id > 0
}
