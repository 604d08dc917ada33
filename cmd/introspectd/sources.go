// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

package main

import (
	"github.com/introspect-app/introspect/internal/engine"
)

// platformSources returns the OS capture hooks available on this build.
// Hook integrations (keyboard, pointer, window watcher) are platform
// builds that implement engine.Source and register here; the core daemon
// runs without them, accepting events only through the engine's Sink
// methods.
func platformSources() []engine.Source {
	return nil
}
