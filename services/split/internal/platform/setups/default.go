//go:build !crkbd_rev4_1 && !pico_bench

package setups

import "splitlink-go/services/split/internal/linkcfg"

// Without a board tag the build targets the production keyboard.
const SelectedRevision = linkcfg.Rev4_1

var _ = linkcfg.Supported{}[SelectedRevision]

var Selected = Crkbd41()
