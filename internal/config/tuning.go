package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// ErrUnsupportedFormat is returned for tuning files that are neither JSON
// nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// TuningConfig holds every monitor and event-handler tunable. Times are in
// simulation seconds and distances in centimetres. Unset fields fall back to
// the defaults returned by the Get* methods, so partial files are safe.
type TuningConfig struct {
	// Contact monitor
	ContactConcatenateWindow *float64 `json:"contact_concatenate_window,omitempty" yaml:"contact_concatenate_window,omitempty"`
	ContactFlushDelay        *float64 `json:"contact_flush_delay,omitempty" yaml:"contact_flush_delay,omitempty"` // added to the window
	SupportedByEnabled       *bool    `json:"supported_by_enabled,omitempty" yaml:"supported_by_enabled,omitempty"`
	SupportedByUpdateRate    *float64 `json:"supported_by_update_rate,omitempty" yaml:"supported_by_update_rate,omitempty"`
	SupportedByMaxVertSpeed  *float64 `json:"supported_by_max_vert_speed,omitempty" yaml:"supported_by_max_vert_speed,omitempty"`

	// Bone contact monitor
	BoneConcatenateWindow *float64 `json:"bone_concatenate_window,omitempty" yaml:"bone_concatenate_window,omitempty"`
	BoneFlushMultiplier   *float64 `json:"bone_flush_multiplier,omitempty" yaml:"bone_flush_multiplier,omitempty"` // flush delay = window * multiplier

	// Manipulator monitor
	GraspConcatenateWindow    *float64 `json:"grasp_concatenate_window,omitempty" yaml:"grasp_concatenate_window,omitempty"`
	ManipulatorContactWindow  *float64 `json:"manipulator_contact_window,omitempty" yaml:"manipulator_contact_window,omitempty"`
	ManipulatorFlushDelay     *float64 `json:"manipulator_flush_delay,omitempty" yaml:"manipulator_flush_delay,omitempty"`
	InputAxisThreshold        *float64 `json:"input_axis_threshold,omitempty" yaml:"input_axis_threshold,omitempty"`
	GraspHelperEnabled        *bool    `json:"grasp_helper_enabled,omitempty" yaml:"grasp_helper_enabled,omitempty"`
	GraspHelperBone           *string  `json:"grasp_helper_bone,omitempty" yaml:"grasp_helper_bone,omitempty"`
	GraspHelperLimit          *float64 `json:"grasp_helper_limit,omitempty" yaml:"grasp_helper_limit,omitempty"`
	GraspHelperStiffness      *float64 `json:"grasp_helper_stiffness,omitempty" yaml:"grasp_helper_stiffness,omitempty"`
	GraspHelperDamping        *float64 `json:"grasp_helper_damping,omitempty" yaml:"grasp_helper_damping,omitempty"`
	GraspHelperContactDist    *float64 `json:"grasp_helper_contact_distance,omitempty" yaml:"grasp_helper_contact_distance,omitempty"`
	GraspHelperItemMassScale  *float64 `json:"grasp_helper_item_mass_scale,omitempty" yaml:"grasp_helper_item_mass_scale,omitempty"`
	GraspHelperDisableGravity *bool    `json:"grasp_helper_disable_gravity,omitempty" yaml:"grasp_helper_disable_gravity,omitempty"`

	// Reach and pre-grasp monitor
	ReachSphereRadius  *float64 `json:"reach_sphere_radius,omitempty" yaml:"reach_sphere_radius,omitempty"`
	ReachUpdateRate    *float64 `json:"reach_update_rate,omitempty" yaml:"reach_update_rate,omitempty"`
	ReachMinMovement   *float64 `json:"reach_min_movement,omitempty" yaml:"reach_min_movement,omitempty"`
	ReachContactWindow *float64 `json:"reach_contact_window,omitempty" yaml:"reach_contact_window,omitempty"`
	ReachFlushDelay    *float64 `json:"reach_flush_delay,omitempty" yaml:"reach_flush_delay,omitempty"`

	// Pick-and-place monitor
	PickPlaceUpdateRate          *float64 `json:"pick_place_update_rate,omitempty" yaml:"pick_place_update_rate,omitempty"`
	MinSlideDistXY               *float64 `json:"min_slide_dist_xy,omitempty" yaml:"min_slide_dist_xy,omitempty"`
	MinSlideDuration             *float64 `json:"min_slide_duration,omitempty" yaml:"min_slide_duration,omitempty"`
	MaxPickUpDistXY              *float64 `json:"max_pick_up_dist_xy,omitempty" yaml:"max_pick_up_dist_xy,omitempty"`
	MinPickUpHeight              *float64 `json:"min_pick_up_height,omitempty" yaml:"min_pick_up_height,omitempty"`
	MaxPickUpHeight              *float64 `json:"max_pick_up_height,omitempty" yaml:"max_pick_up_height,omitempty"`
	RecentMovementBufferSize     *int     `json:"recent_movement_buffer_size,omitempty" yaml:"recent_movement_buffer_size,omitempty"`
	RecentMovementBufferDuration *float64 `json:"recent_movement_buffer_duration,omitempty" yaml:"recent_movement_buffer_duration,omitempty"`
	PutDownBacktrackDuration     *float64 `json:"put_down_backtrack_duration,omitempty" yaml:"put_down_backtrack_duration,omitempty"`
	MinPutDownHeight             *float64 `json:"min_put_down_height,omitempty" yaml:"min_put_down_height,omitempty"`
	MaxPutDownHeight             *float64 `json:"max_put_down_height,omitempty" yaml:"max_put_down_height,omitempty"`
	MaxPutDownDistXY             *float64 `json:"max_put_down_dist_xy,omitempty" yaml:"max_put_down_dist_xy,omitempty"`

	// Container monitor
	ContainerMinDistance *float64 `json:"container_min_distance,omitempty" yaml:"container_min_distance,omitempty"`

	// Event handlers (events this short or shorter are dropped)
	ContactEventMin     *float64 `json:"contact_event_min,omitempty" yaml:"contact_event_min,omitempty"`
	GraspEventMin       *float64 `json:"grasp_event_min,omitempty" yaml:"grasp_event_min,omitempty"`
	SupportedByEventMin *float64 `json:"supported_by_event_min,omitempty" yaml:"supported_by_event_min,omitempty"`
	ReachEventMin       *float64 `json:"reach_event_min,omitempty" yaml:"reach_event_min,omitempty"`
	PreGraspEventMin    *float64 `json:"pre_grasp_event_min,omitempty" yaml:"pre_grasp_event_min,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to the
// value its getter falls back to.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		ContactConcatenateWindow: ptrFloat64(e.GetContactConcatenateWindow()),
		ContactFlushDelay:        ptrFloat64(e.GetContactFlushDelay()),
		SupportedByEnabled:       ptrBool(e.GetSupportedByEnabled()),
		SupportedByUpdateRate:    ptrFloat64(e.GetSupportedByUpdateRate()),
		SupportedByMaxVertSpeed:  ptrFloat64(e.GetSupportedByMaxVertSpeed()),

		BoneConcatenateWindow: ptrFloat64(e.GetBoneConcatenateWindow()),
		BoneFlushMultiplier:   ptrFloat64(e.GetBoneFlushMultiplier()),

		GraspConcatenateWindow:    ptrFloat64(e.GetGraspConcatenateWindow()),
		ManipulatorContactWindow:  ptrFloat64(e.GetManipulatorContactWindow()),
		ManipulatorFlushDelay:     ptrFloat64(e.GetManipulatorFlushDelay()),
		InputAxisThreshold:        ptrFloat64(e.GetInputAxisThreshold()),
		GraspHelperEnabled:        ptrBool(e.GetGraspHelperEnabled()),
		GraspHelperBone:           ptrString(e.GetGraspHelperBone()),
		GraspHelperLimit:          ptrFloat64(e.GetGraspHelperLimit()),
		GraspHelperStiffness:      ptrFloat64(e.GetGraspHelperStiffness()),
		GraspHelperDamping:        ptrFloat64(e.GetGraspHelperDamping()),
		GraspHelperContactDist:    ptrFloat64(e.GetGraspHelperContactDist()),
		GraspHelperItemMassScale:  ptrFloat64(e.GetGraspHelperItemMassScale()),
		GraspHelperDisableGravity: ptrBool(e.GetGraspHelperDisableGravity()),

		ReachSphereRadius:  ptrFloat64(e.GetReachSphereRadius()),
		ReachUpdateRate:    ptrFloat64(e.GetReachUpdateRate()),
		ReachMinMovement:   ptrFloat64(e.GetReachMinMovement()),
		ReachContactWindow: ptrFloat64(e.GetReachContactWindow()),
		ReachFlushDelay:    ptrFloat64(e.GetReachFlushDelay()),

		PickPlaceUpdateRate:          ptrFloat64(e.GetPickPlaceUpdateRate()),
		MinSlideDistXY:               ptrFloat64(e.GetMinSlideDistXY()),
		MinSlideDuration:             ptrFloat64(e.GetMinSlideDuration()),
		MaxPickUpDistXY:              ptrFloat64(e.GetMaxPickUpDistXY()),
		MinPickUpHeight:              ptrFloat64(e.GetMinPickUpHeight()),
		MaxPickUpHeight:              ptrFloat64(e.GetMaxPickUpHeight()),
		RecentMovementBufferSize:     ptrInt(e.GetRecentMovementBufferSize()),
		RecentMovementBufferDuration: ptrFloat64(e.GetRecentMovementBufferDuration()),
		PutDownBacktrackDuration:     ptrFloat64(e.GetPutDownBacktrackDuration()),
		MinPutDownHeight:             ptrFloat64(e.GetMinPutDownHeight()),
		MaxPutDownHeight:             ptrFloat64(e.GetMaxPutDownHeight()),
		MaxPutDownDistXY:             ptrFloat64(e.GetMaxPutDownDistXY()),

		ContainerMinDistance: ptrFloat64(e.GetContainerMinDistance()),

		ContactEventMin:     ptrFloat64(e.GetContactEventMin()),
		GraspEventMin:       ptrFloat64(e.GetGraspEventMin()),
		SupportedByEventMin: ptrFloat64(e.GetSupportedByEventMin()),
		ReachEventMin:       ptrFloat64(e.GetReachEventMin()),
		PreGraspEventMin:    ptrFloat64(e.GetPreGraspEventMin()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The file is validated to ensure it has a known extension and is under the
// max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q: %w", ext, ErrUnsupportedFormat)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseTuningConfig(data, ext)
}

// ParseTuningConfig decodes data according to ext (".json", ".yaml" or
// ".yml") and validates the result.
func ParseTuningConfig(data []byte, ext string) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}
