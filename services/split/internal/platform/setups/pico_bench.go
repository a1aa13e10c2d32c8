//go:build pico_bench

package setups

import "splitlink-go/services/split/internal/linkcfg"

const SelectedRevision = linkcfg.RevPicoBench

var _ = linkcfg.Supported{}[SelectedRevision]

var Selected = PicoBench()
