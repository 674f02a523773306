package monitors

import "github.com/banshee-data/semlog/internal/config"

// ContactConfig tunes a ContactMonitor.
type ContactConfig struct {
	ConcatenateWindow float64
	FlushDelay        float64 // added to the window

	LogSupportedBy          bool
	SupportedByUpdateRate   float64
	SupportedByMaxVertSpeed float64
}

// DefaultContactConfig returns the built-in contact tuning.
func DefaultContactConfig() ContactConfig {
	return ContactConfigFromTuning(config.EmptyTuningConfig())
}

// ContactConfigFromTuning extracts the contact tuning from cfg.
func ContactConfigFromTuning(cfg *config.TuningConfig) ContactConfig {
	return ContactConfig{
		ConcatenateWindow:       cfg.GetContactConcatenateWindow(),
		FlushDelay:              cfg.GetContactFlushDelay(),
		LogSupportedBy:          cfg.GetSupportedByEnabled(),
		SupportedByUpdateRate:   cfg.GetSupportedByUpdateRate(),
		SupportedByMaxVertSpeed: cfg.GetSupportedByMaxVertSpeed(),
	}
}

// BoneConfig tunes a BoneContactMonitor. Both channels share the window.
type BoneConfig struct {
	ConcatenateWindow float64
	FlushMultiplier   float64
}

// DefaultBoneConfig returns the built-in bone tuning.
func DefaultBoneConfig() BoneConfig {
	return BoneConfigFromTuning(config.EmptyTuningConfig())
}

// BoneConfigFromTuning extracts the bone tuning from cfg.
func BoneConfigFromTuning(cfg *config.TuningConfig) BoneConfig {
	return BoneConfig{
		ConcatenateWindow: cfg.GetBoneConcatenateWindow(),
		FlushMultiplier:   cfg.GetBoneFlushMultiplier(),
	}
}

// GraspHelperConfig tunes the grasp-assist constraint.
type GraspHelperConfig struct {
	Enabled         bool
	Bone            string
	Limit           float64
	Stiffness       float64
	Damping         float64
	ContactDistance float64
	ItemMassScale   float64
	DisableGravity  bool
}

// ManipulatorConfig tunes a ManipulatorMonitor.
type ManipulatorConfig struct {
	GraspWindow   float64
	ContactWindow float64
	FlushDelay    float64 // added to both windows

	// AutoPauseOnInput pauses grasp detection while the input axis is below
	// InputAxisThreshold.
	AutoPauseOnInput   bool
	InputAxisThreshold float64
	GraspType          string

	Helper GraspHelperConfig
}

// DefaultManipulatorConfig returns the built-in manipulator tuning.
func DefaultManipulatorConfig() ManipulatorConfig {
	return ManipulatorConfigFromTuning(config.EmptyTuningConfig())
}

// ManipulatorConfigFromTuning extracts the manipulator tuning from cfg.
func ManipulatorConfigFromTuning(cfg *config.TuningConfig) ManipulatorConfig {
	return ManipulatorConfig{
		GraspWindow:        cfg.GetGraspConcatenateWindow(),
		ContactWindow:      cfg.GetManipulatorContactWindow(),
		FlushDelay:         cfg.GetManipulatorFlushDelay(),
		InputAxisThreshold: cfg.GetInputAxisThreshold(),
		GraspType:          DefaultGraspType,
		Helper: GraspHelperConfig{
			Enabled:         cfg.GetGraspHelperEnabled(),
			Bone:            cfg.GetGraspHelperBone(),
			Limit:           cfg.GetGraspHelperLimit(),
			Stiffness:       cfg.GetGraspHelperStiffness(),
			Damping:         cfg.GetGraspHelperDamping(),
			ContactDistance: cfg.GetGraspHelperContactDist(),
			ItemMassScale:   cfg.GetGraspHelperItemMassScale(),
			DisableGravity:  cfg.GetGraspHelperDisableGravity(),
		},
	}
}

// ReachConfig tunes a ReachAndPreGraspMonitor.
type ReachConfig struct {
	SphereRadius  float64
	UpdateRate    float64
	MinMovement   float64 // distance changes below this are noise
	ContactWindow float64
	FlushDelay    float64 // added to the contact window
}

// DefaultReachConfig returns the built-in reach tuning.
func DefaultReachConfig() ReachConfig {
	return ReachConfigFromTuning(config.EmptyTuningConfig())
}

// ReachConfigFromTuning extracts the reach tuning from cfg.
func ReachConfigFromTuning(cfg *config.TuningConfig) ReachConfig {
	return ReachConfig{
		SphereRadius:  cfg.GetReachSphereRadius(),
		UpdateRate:    cfg.GetReachUpdateRate(),
		MinMovement:   cfg.GetReachMinMovement(),
		ContactWindow: cfg.GetReachContactWindow(),
		FlushDelay:    cfg.GetReachFlushDelay(),
	}
}

// PickPlaceConfig tunes a PickAndPlaceMonitor. Distances are centimetres.
type PickPlaceConfig struct {
	UpdateRate float64

	MinSlideDistXY   float64
	MinSlideDuration float64

	MaxPickUpDistXY float64
	MinPickUpHeight float64
	MaxPickUpHeight float64

	RecentMovementBufferSize         int
	RecentMovementBufferDuration     float64
	PutDownMovementBacktrackDuration float64

	MinPutDownHeight float64
	MaxPutDownHeight float64
	MaxPutDownDistXY float64
}

// DefaultPickPlaceConfig returns the built-in pick-and-place tuning.
func DefaultPickPlaceConfig() PickPlaceConfig {
	return PickPlaceConfigFromTuning(config.EmptyTuningConfig())
}

// PickPlaceConfigFromTuning extracts the pick-and-place tuning from cfg.
func PickPlaceConfigFromTuning(cfg *config.TuningConfig) PickPlaceConfig {
	return PickPlaceConfig{
		UpdateRate:                       cfg.GetPickPlaceUpdateRate(),
		MinSlideDistXY:                   cfg.GetMinSlideDistXY(),
		MinSlideDuration:                 cfg.GetMinSlideDuration(),
		MaxPickUpDistXY:                  cfg.GetMaxPickUpDistXY(),
		MinPickUpHeight:                  cfg.GetMinPickUpHeight(),
		MaxPickUpHeight:                  cfg.GetMaxPickUpHeight(),
		RecentMovementBufferSize:         cfg.GetRecentMovementBufferSize(),
		RecentMovementBufferDuration:     cfg.GetRecentMovementBufferDuration(),
		PutDownMovementBacktrackDuration: cfg.GetPutDownBacktrackDuration(),
		MinPutDownHeight:                 cfg.GetMinPutDownHeight(),
		MaxPutDownHeight:                 cfg.GetMaxPutDownHeight(),
		MaxPutDownDistXY:                 cfg.GetMaxPutDownDistXY(),
	}
}

// ContainerConfig tunes a ContainerMonitor.
type ContainerConfig struct {
	MinDistance float64
}

// DefaultContainerConfig returns the built-in container tuning.
func DefaultContainerConfig() ContainerConfig {
	return ContainerConfigFromTuning(config.EmptyTuningConfig())
}

// ContainerConfigFromTuning extracts the container tuning from cfg.
func ContainerConfigFromTuning(cfg *config.TuningConfig) ContainerConfig {
	return ContainerConfig{MinDistance: cfg.GetContainerMinDistance()}
}
