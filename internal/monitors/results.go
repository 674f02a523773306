package monitors

import "github.com/banshee-data/semlog/internal/individual"

// Entity is the annotated object handle every result refers to.
type Entity = individual.Entity

// ContactResult announces a contact begin.
type ContactResult struct {
	Self                *Entity
	Other               *Entity
	Time                float64
	OtherIsContactShape bool
}

// ContactEnd announces a contact end at Time.
type ContactEnd struct {
	Self  *Entity
	Other *Entity
	Time  float64
}

// SupportedByResult announces that Supported started resting on Supporting.
// PairID is pairing.Cantor(Supported.ID, Supporting.ID).
type SupportedByResult struct {
	Supported  *Entity
	Supporting *Entity
	Time       float64
	PairID     uint64
}

// SupportedByEnd carries both orderings of the pair id since the emitter
// does not know which side was supported.
type SupportedByEnd struct {
	PairID1 uint64
	PairID2 uint64
	Time    float64
}

// BoneContact is a single bone touching Other.
type BoneContact struct {
	Other *Entity
	Bone  string
	Time  float64
}

// GraspResult announces a grasp begin.
type GraspResult struct {
	Self      *Entity
	Other     *Entity
	Time      float64
	GraspType string
}

// GraspEnd announces a grasp end at Time.
type GraspEnd struct {
	Self  *Entity
	Other *Entity
	Time  float64
}

// ReachResult carries the three instants that bound a reach and a
// pre-grasp: reach [ReachStart, ContactTime], pre-grasp [ContactTime, GraspTime].
type ReachResult struct {
	Self        *Entity
	Other       *Entity
	ReachStart  float64
	ContactTime float64
	GraspTime   float64
}

// ManipulationResult is a finished slide, pick-up, transport or put-down.
type ManipulationResult struct {
	Self  *Entity
	Other *Entity
	Start float64
	End   float64
}

// Container manipulation types.
const (
	ContainerOpen  = "Open"
	ContainerClose = "Close"
)

// ContainerResult is a finished open or close of Container.
type ContainerResult struct {
	Self      *Entity
	Container *Entity
	Start     float64
	End       float64
	Type      string
}

// SlicingBegin announces that PerformedBy started cutting ObjectActedOn with
// DeviceUsed.
type SlicingBegin struct {
	PerformedBy   *Entity
	DeviceUsed    *Entity
	ObjectActedOn *Entity
	Time          float64
}

// SlicingEnd finishes the current slice. Output is nil when the cut failed.
type SlicingEnd struct {
	PerformedBy   *Entity
	DeviceUsed    *Entity
	ObjectActedOn *Entity
	Output        *Entity
	Time          float64
	Success       bool
}
