package monitors

import "errors"

// Setup failures returned by Init. The monitor stays un-started.
var (
	ErrNotAnnotated         = errors.New("owner is not annotated")
	ErrNoGeometry           = errors.New("shape has no contact geometry")
	ErrBoneNotFound         = errors.New("bone not found")
	ErrNoBones              = errors.New("no bone monitors")
	ErrNoSiblingManipulator = errors.New("no sibling manipulator monitor")
)
