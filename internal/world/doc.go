// Package world is the simulation host the monitors observe: actors with an
// attachment hierarchy, collision shapes whose geometry is a tagged variant
// (box, sphere, mesh, bone), overlap bookkeeping with begin/end callbacks,
// static constraint links and grasp joints.
//
// Dependency rule: world never imports the monitors; monitors find each
// other through Shape.Component.
package world
