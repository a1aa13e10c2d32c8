//go:build !rp2040

package linkport

import (
	"context"

	"splitlink-go/errcode"
	"splitlink-go/types"

	"tinygo.org/x/drivers"
)

// DefaultDial has no UART to open on a host build.
func DefaultDial(_ context.Context, p types.LinkProfile) (drivers.UART, error) {
	return nil, &errcode.E{C: errcode.Unsupported, Op: "dial", Msg: p.Driver}
}
