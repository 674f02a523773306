package monitors

import (
	"fmt"

	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/world"
)

// GraspHelper holds a grasped item against the hand with a stiff
// spring-damper constraint. It is a physical aid only and never affects
// event detection.
type GraspHelper struct {
	world *world.World
	hand  *world.Actor
	cfg   GraspHelperConfig

	constraint  *world.Constraint
	item        *world.Actor
	prevMass    float64
	prevGravity bool
}

// NewGraspHelper checks that hand has the configured bone.
func NewGraspHelper(w *world.World, hand *world.Actor, cfg GraspHelperConfig) (*GraspHelper, error) {
	if w == nil || hand == nil {
		return nil, fmt.Errorf("grasp helper: %w", ErrNoBones)
	}
	if !hand.HasBone(cfg.Bone) {
		return nil, fmt.Errorf("grasp helper on %s: %q: %w", hand.Name, cfg.Bone, ErrBoneNotFound)
	}
	return &GraspHelper{world: w, hand: hand, cfg: cfg}, nil
}

// Start attaches item to the hand bone.
func (h *GraspHelper) Start(item *world.Actor) {
	if h.constraint != nil {
		monitoring.Warnf("[%.4f] grasp helper %s: already holding %s, ignoring %s",
			h.world.Now(), h.hand.Name, h.item, item)
		return
	}
	c, err := h.world.Constrain("grasp-helper", h.hand, h.cfg.Bone, item, world.ConstraintParams{
		Limit:           h.cfg.Limit,
		Stiffness:       h.cfg.Stiffness,
		Damping:         h.cfg.Damping,
		ContactDistance: h.cfg.ContactDistance,
	})
	if err != nil {
		monitoring.Errorf("[%.4f] grasp helper %s: %v", h.world.Now(), h.hand.Name, err)
		return
	}
	h.constraint = c
	h.item = item
	h.prevMass = item.MassScale
	h.prevGravity = item.GravityEnabled
	item.MassScale = h.cfg.ItemMassScale
	if h.cfg.DisableGravity {
		item.GravityEnabled = false
	}
}

// Stop releases the constraint and restores the item's physics settings.
func (h *GraspHelper) Stop() {
	if h.constraint == nil {
		return
	}
	h.world.Release(h.constraint)
	h.item.MassScale = h.prevMass
	h.item.GravityEnabled = h.prevGravity
	h.constraint = nil
	h.item = nil
}

// IsActive reports whether an item is held.
func (h *GraspHelper) IsActive() bool { return h.constraint != nil }

// Item returns the held item, or nil.
func (h *GraspHelper) Item() *world.Actor { return h.item }
