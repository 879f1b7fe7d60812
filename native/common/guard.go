package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module, or a single action within it, has been
// halted by the operator.
type PauseView interface {
	IsPaused(module, action string) bool
}

// Guard rejects the call when the module-wide switch or the per-action switch
// is engaged. A nil view means pausing is not configured and everything runs.
func Guard(p PauseView, module, action string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module, "") || (action != "" && p.IsPaused(module, action)) {
		return ErrModulePaused
	}
	return nil
}
