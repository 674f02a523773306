package events

import (
	"sort"

	"github.com/banshee-data/semlog/internal/individual"
)

// Kind names the type of a semantic event.
type Kind string

// Event kinds.
const (
	KindContact            Kind = "Contact"
	KindManipulatorContact Kind = "ManipulatorContact"
	KindGrasp              Kind = "Grasp"
	KindSupportedBy        Kind = "SupportedBy"
	KindReach              Kind = "Reach"
	KindPreGrasp           Kind = "PreGrasp"
	KindSlide              Kind = "Slide"
	KindPickUp             Kind = "PickUp"
	KindTransport          Kind = "Transport"
	KindPutDown            Kind = "PutDown"
	KindContainer          Kind = "Container"
	KindSlicing            Kind = "Slicing"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{
	KindContact, KindManipulatorContact, KindSupportedBy, KindReach, KindPreGrasp, KindGrasp,
	KindSlide, KindPickUp, KindTransport, KindPutDown, KindContainer, KindSlicing,
}

var owlClasses = map[Kind]string{
	KindContact:            "TouchingSituation",
	KindManipulatorContact: "TouchingSituation",
	KindGrasp:              "GraspingSomething",
	KindSupportedBy:        "SupportedBySituation",
	KindReach:              "ReachingForSomething",
	KindPreGrasp:           "PreGraspSituation",
	KindSlide:              "SlidingSituation",
	KindPickUp:             "PickUpSituation",
	KindTransport:          "TransportingSituation",
	KindPutDown:            "PutDownSituation",
	KindContainer:          "ContainerManipulation",
	KindSlicing:            "SlicingSomething",
}

// OWLClass returns the ontology class for k, or "" for an unknown kind.
func OWLClass(k Kind) string { return owlClasses[k] }

// Participant roles. They double as the OWL object property names.
const (
	RoleInContact      = "inContact"
	RoleIsSupported    = "isSupported"
	RoleIsSupporting   = "isSupporting"
	RolePerformedBy    = "performedBy"
	RoleObjectActedOn  = "objectActedOn"
	RoleDeviceUsed     = "deviceUsed"
	RoleOutputsCreated = "outputsCreated"
)

// Property keys.
const (
	PropGraspType      = "grasp_type"
	PropContainerType  = "container_type"
	PropTaskSuccess    = "task_success"
	PropOutputsCreated = "outputs_created"
)

// Participant is one role-tagged entity of an event.
type Participant struct {
	Role     string `json:"role"`
	EntityID uint64 `json:"entity_id"`
	SemID    string `json:"sem_id"`
	Name     string `json:"name"`
	Class    string `json:"class"`
}

// NewParticipant snapshots e under role.
func NewParticipant(role string, e *individual.Entity) Participant {
	return Participant{Role: role, EntityID: e.ID, SemID: e.SemID, Name: e.Name(), Class: e.Class}
}

// Event is a finished semantic event. Events are values; handlers never
// modify one after it was delivered.
type Event struct {
	ID           string            `json:"id"`
	Kind         Kind              `json:"kind"`
	Start        float64           `json:"start"`
	End          float64           `json:"end"`
	PairID       uint64            `json:"pair_id"`
	Participants []Participant     `json:"participants"`
	EpisodeID    string            `json:"episode_id"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// Duration returns End - Start.
func (e Event) Duration() float64 { return e.End - e.Start }

// OWLClass returns the ontology class of the event.
func (e Event) OWLClass() string { return OWLClass(e.Kind) }

// Participant returns the first participant with role.
func (e Event) Participant(role string) (Participant, bool) {
	for _, p := range e.Participants {
		if p.Role == role {
			return p, true
		}
	}
	return Participant{}, false
}

// SortByStart orders events by start time, then end time, then kind.
func SortByStart(evs []Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		a, b := evs[i], evs[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Kind < b.Kind
	})
}
