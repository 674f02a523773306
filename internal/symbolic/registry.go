package symbolic

import "github.com/banshee-data/semlog/internal/monitors"

// Registry lists the monitors of one episode. Bone monitors are reached
// through their manipulator.
type Registry struct {
	Contacts      []*monitors.ContactMonitor
	Manipulators  []*monitors.ManipulatorMonitor
	Reaches       []*monitors.ReachAndPreGraspMonitor
	PickAndPlaces []*monitors.PickAndPlaceMonitor
	Containers    []*monitors.ContainerMonitor
	Blades        []*monitors.SlicingBlade
}

// Len returns the number of registered monitors.
func (r *Registry) Len() int {
	return len(r.Contacts) + len(r.Manipulators) + len(r.Reaches) +
		len(r.PickAndPlaces) + len(r.Containers) + len(r.Blades)
}
