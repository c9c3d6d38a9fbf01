package pipette

import _ "embed"

// Version is the release of this module, as printed by `pipette version`.
//
//go:embed VERSION
var Version string
