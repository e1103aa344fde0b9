package extract

import "github.com/doculab/extract/internal/native"

// Capabilities reports which extraction tiers the host can run. Detection
// happens once at startup; a tier absent here is skipped without attempt.
type Capabilities struct {
	NativeAutomation bool
}

// Detect probes the host for the native automation bridge.
func Detect(launcher native.Launcher) Capabilities {
	return Capabilities{
		NativeAutomation: launcher != nil && launcher.Available(),
	}
}
