// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"fmt"

	"grimm.is/netcapture/internal/errors"
)

// Stage names the attach step that failed.
type Stage string

const (
	StageLink   Stage = "link"
	StageLoad   Stage = "load"
	StageAttach Stage = "attach"
	StageStart  Stage = "start"
)

// AttachError reports a failed attach. It is always fatal to the module
// requesting the capture.
type AttachError struct {
	Interface string
	Stage     Stage
	Err       error
}

func newAttachError(iface string, stage Stage, cause error) *AttachError {
	return &AttachError{
		Interface: iface,
		Stage:     stage,
		Err:       errors.Attr(errors.Fatalf(cause, "%s stage failed", stage), "interface", iface),
	}
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("failed to attach capture to %s: %v", e.Interface, e.Err)
}

func (e *AttachError) Unwrap() error {
	return e.Err
}
