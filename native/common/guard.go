package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module has been halted by governance.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the calling operation when the module is paused. A nil view
// means pausing is not wired and every operation proceeds.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
