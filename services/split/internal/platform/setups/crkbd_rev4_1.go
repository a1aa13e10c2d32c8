//go:build crkbd_rev4_1

package setups

import "splitlink-go/services/split/internal/linkcfg"

const SelectedRevision = linkcfg.Rev4_1

var _ = linkcfg.Supported{}[SelectedRevision]

var Selected = Crkbd41()
