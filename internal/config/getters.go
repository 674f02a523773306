package config

import "fmt"

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	nonNegative := map[string]*float64{
		"contact_concatenate_window":  c.ContactConcatenateWindow,
		"contact_flush_delay":         c.ContactFlushDelay,
		"bone_concatenate_window":     c.BoneConcatenateWindow,
		"grasp_concatenate_window":    c.GraspConcatenateWindow,
		"manipulator_contact_window":  c.ManipulatorContactWindow,
		"manipulator_flush_delay":     c.ManipulatorFlushDelay,
		"reach_contact_window":        c.ReachContactWindow,
		"reach_flush_delay":           c.ReachFlushDelay,
		"reach_min_movement":          c.ReachMinMovement,
		"supported_by_max_vert_speed": c.SupportedByMaxVertSpeed,
		"min_slide_dist_xy":           c.MinSlideDistXY,
		"min_slide_duration":          c.MinSlideDuration,
		"container_min_distance":      c.ContainerMinDistance,
		"contact_event_min":           c.ContactEventMin,
		"grasp_event_min":             c.GraspEventMin,
		"supported_by_event_min":      c.SupportedByEventMin,
		"reach_event_min":             c.ReachEventMin,
		"pre_grasp_event_min":         c.PreGraspEventMin,
	}
	for name, v := range nonNegative {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", name, *v)
		}
	}

	positive := map[string]*float64{
		"supported_by_update_rate":        c.SupportedByUpdateRate,
		"bone_flush_multiplier":           c.BoneFlushMultiplier,
		"reach_sphere_radius":             c.ReachSphereRadius,
		"reach_update_rate":               c.ReachUpdateRate,
		"pick_place_update_rate":          c.PickPlaceUpdateRate,
		"recent_movement_buffer_duration": c.RecentMovementBufferDuration,
		"put_down_backtrack_duration":     c.PutDownBacktrackDuration,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	if c.BoneFlushMultiplier != nil && *c.BoneFlushMultiplier < 1 {
		return fmt.Errorf("bone_flush_multiplier must be at least 1, got %f", *c.BoneFlushMultiplier)
	}

	if c.InputAxisThreshold != nil {
		if *c.InputAxisThreshold < 0 || *c.InputAxisThreshold > 1 {
			return fmt.Errorf("input_axis_threshold must be between 0 and 1, got %f", *c.InputAxisThreshold)
		}
	}

	if c.RecentMovementBufferSize != nil && *c.RecentMovementBufferSize <= 0 {
		return fmt.Errorf("recent_movement_buffer_size must be positive, got %d", *c.RecentMovementBufferSize)
	}

	if c.GetMinPickUpHeight() > c.GetMaxPickUpHeight() {
		return fmt.Errorf("min_pick_up_height (%f) exceeds max_pick_up_height (%f)",
			c.GetMinPickUpHeight(), c.GetMaxPickUpHeight())
	}
	if c.GetMinPutDownHeight() > c.GetMaxPutDownHeight() {
		return fmt.Errorf("min_put_down_height (%f) exceeds max_put_down_height (%f)",
			c.GetMinPutDownHeight(), c.GetMaxPutDownHeight())
	}

	return nil
}

// GetContactConcatenateWindow returns the contact jitter window.
func (c *TuningConfig) GetContactConcatenateWindow() float64 {
	return floatOr(c.ContactConcatenateWindow, 0.21)
}

// GetContactFlushDelay returns the epsilon added to the contact window.
func (c *TuningConfig) GetContactFlushDelay() float64 {
	return floatOr(c.ContactFlushDelay, 0.05)
}

// GetSupportedByEnabled returns whether contact monitors poll supported-by.
func (c *TuningConfig) GetSupportedByEnabled() bool {
	if c.SupportedByEnabled == nil {
		return true
	}
	return *c.SupportedByEnabled
}

// GetSupportedByUpdateRate returns the supported-by polling interval.
func (c *TuningConfig) GetSupportedByUpdateRate() float64 {
	return floatOr(c.SupportedByUpdateRate, 0.11)
}

// GetSupportedByMaxVertSpeed returns the relative vertical speed threshold.
func (c *TuningConfig) GetSupportedByMaxVertSpeed() float64 {
	return floatOr(c.SupportedByMaxVertSpeed, 0.5)
}

// GetBoneConcatenateWindow returns the per-bone jitter window.
func (c *TuningConfig) GetBoneConcatenateWindow() float64 {
	return floatOr(c.BoneConcatenateWindow, 0.11)
}

// GetBoneFlushMultiplier returns the factor applied to the bone window to
// get its flush delay.
func (c *TuningConfig) GetBoneFlushMultiplier() float64 {
	return floatOr(c.BoneFlushMultiplier, 1.1)
}

// GetGraspConcatenateWindow returns the manipulator grasp jitter window.
func (c *TuningConfig) GetGraspConcatenateWindow() float64 {
	return floatOr(c.GraspConcatenateWindow, 0.42)
}

// GetManipulatorContactWindow returns the manipulator contact jitter window.
func (c *TuningConfig) GetManipulatorContactWindow() float64 {
	return floatOr(c.ManipulatorContactWindow, 0.22)
}

// GetManipulatorFlushDelay returns the epsilon added to manipulator windows.
func (c *TuningConfig) GetManipulatorFlushDelay() float64 {
	return floatOr(c.ManipulatorFlushDelay, 0.05)
}

// GetInputAxisThreshold returns the input value at which grasp detection
// resumes.
func (c *TuningConfig) GetInputAxisThreshold() float64 {
	return floatOr(c.InputAxisThreshold, 0.3)
}

// GetGraspHelperEnabled returns whether the grasp-assist constraint is used.
func (c *TuningConfig) GetGraspHelperEnabled() bool {
	if c.GraspHelperEnabled == nil {
		return false
	}
	return *c.GraspHelperEnabled
}

// GetGraspHelperBone returns the hand bone the grasp constraint attaches to.
func (c *TuningConfig) GetGraspHelperBone() string {
	if c.GraspHelperBone == nil {
		return "palm"
	}
	return *c.GraspHelperBone
}

// GetGraspHelperLimit returns the linear limit of the grasp constraint.
func (c *TuningConfig) GetGraspHelperLimit() float64 {
	return floatOr(c.GraspHelperLimit, 0.1)
}

// GetGraspHelperStiffness returns the grasp constraint stiffness.
func (c *TuningConfig) GetGraspHelperStiffness() float64 {
	return floatOr(c.GraspHelperStiffness, 500)
}

// GetGraspHelperDamping returns the grasp constraint damping.
func (c *TuningConfig) GetGraspHelperDamping() float64 {
	return floatOr(c.GraspHelperDamping, 5)
}

// GetGraspHelperContactDist returns the grasp constraint contact distance.
func (c *TuningConfig) GetGraspHelperContactDist() float64 {
	return floatOr(c.GraspHelperContactDist, 1)
}

// GetGraspHelperItemMassScale returns the mass scale applied to a held item.
func (c *TuningConfig) GetGraspHelperItemMassScale() float64 {
	return floatOr(c.GraspHelperItemMassScale, 0.1)
}

// GetGraspHelperDisableGravity returns whether gravity is disabled on a held item.
func (c *TuningConfig) GetGraspHelperDisableGravity() bool {
	if c.GraspHelperDisableGravity == nil {
		return true
	}
	return *c.GraspHelperDisableGravity
}

// GetReachSphereRadius returns the reach capture sphere radius.
func (c *TuningConfig) GetReachSphereRadius() float64 {
	return floatOr(c.ReachSphereRadius, 30)
}

// GetReachUpdateRate returns the reach distance polling interval.
func (c *TuningConfig) GetReachUpdateRate() float64 {
	return floatOr(c.ReachUpdateRate, 0.037)
}

// GetReachMinMovement returns the distance noise floor for reach tracking.
func (c *TuningConfig) GetReachMinMovement() float64 {
	return floatOr(c.ReachMinMovement, 2.5)
}

// GetReachContactWindow returns the reach monitor's contact jitter window.
func (c *TuningConfig) GetReachContactWindow() float64 {
	return floatOr(c.ReachContactWindow, 0.4)
}

// GetReachFlushDelay returns the epsilon added to the reach contact window.
func (c *TuningConfig) GetReachFlushDelay() float64 {
	return floatOr(c.ReachFlushDelay, 0.05)
}

// GetPickPlaceUpdateRate returns the pick-and-place polling interval.
func (c *TuningConfig) GetPickPlaceUpdateRate() float64 {
	return floatOr(c.PickPlaceUpdateRate, 0.05)
}

// GetMinSlideDistXY returns the minimum horizontal slide distance.
func (c *TuningConfig) GetMinSlideDistXY() float64 { return floatOr(c.MinSlideDistXY, 9) }

// GetMinSlideDuration returns the minimum slide duration.
func (c *TuningConfig) GetMinSlideDuration() float64 { return floatOr(c.MinSlideDuration, 0.9) }

// GetMaxPickUpDistXY returns the horizontal drift that ends a pick-up.
func (c *TuningConfig) GetMaxPickUpDistXY() float64 { return floatOr(c.MaxPickUpDistXY, 9) }

// GetMinPickUpHeight returns the rise that counts as lift-off.
func (c *TuningConfig) GetMinPickUpHeight() float64 { return floatOr(c.MinPickUpHeight, 3) }

// GetMaxPickUpHeight returns the rise above lift-off that ends a pick-up.
func (c *TuningConfig) GetMaxPickUpHeight() float64 { return floatOr(c.MaxPickUpHeight, 12) }

// GetRecentMovementBufferSize returns the movement buffer capacity.
func (c *TuningConfig) GetRecentMovementBufferSize() int {
	if c.RecentMovementBufferSize == nil {
		return 256
	}
	return *c.RecentMovementBufferSize
}

// GetRecentMovementBufferDuration returns the movement buffer time span.
func (c *TuningConfig) GetRecentMovementBufferDuration() float64 {
	return floatOr(c.RecentMovementBufferDuration, 3.3)
}

// GetPutDownBacktrackDuration returns how far back a put-down is searched.
func (c *TuningConfig) GetPutDownBacktrackDuration() float64 {
	return floatOr(c.PutDownBacktrackDuration, 1.5)
}

// GetMinPutDownHeight returns the drop that confirms a put-down.
func (c *TuningConfig) GetMinPutDownHeight() float64 { return floatOr(c.MinPutDownHeight, 2) }

// GetMaxPutDownHeight returns the height that marks the put-down start.
func (c *TuningConfig) GetMaxPutDownHeight() float64 { return floatOr(c.MaxPutDownHeight, 8) }

// GetMaxPutDownDistXY returns the horizontal distance that marks the put-down start.
func (c *TuningConfig) GetMaxPutDownDistXY() float64 { return floatOr(c.MaxPutDownDistXY, 9) }

// GetContainerMinDistance returns the distance change that counts as open/close.
func (c *TuningConfig) GetContainerMinDistance() float64 {
	return floatOr(c.ContainerMinDistance, 5)
}

// GetContactEventMin returns the minimum contact event duration.
func (c *TuningConfig) GetContactEventMin() float64 { return floatOr(c.ContactEventMin, 0) }

// GetGraspEventMin returns the minimum grasp event duration.
func (c *TuningConfig) GetGraspEventMin() float64 { return floatOr(c.GraspEventMin, 0) }

// GetSupportedByEventMin returns the minimum supported-by event duration.
func (c *TuningConfig) GetSupportedByEventMin() float64 {
	return floatOr(c.SupportedByEventMin, 0)
}

// GetReachEventMin returns the minimum reach event duration.
func (c *TuningConfig) GetReachEventMin() float64 { return floatOr(c.ReachEventMin, 0.15) }

// GetPreGraspEventMin returns the minimum pre-grasp event duration.
func (c *TuningConfig) GetPreGraspEventMin() float64 { return floatOr(c.PreGraspEventMin, 0.15) }
