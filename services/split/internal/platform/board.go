// Package platform binds the link driver to real or simulated pins.
package platform

import "splitlink-go/services/split/internal/linkdrv"

// Board is what the split service needs from the hardware.
type Board struct {
	Pins     linkdrv.PinFactory
	Critical linkdrv.Critical
}
