//go:build rp2040

package linkport

import (
	"context"
	"machine"

	"splitlink-go/errcode"
	"splitlink-go/types"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"
)

// DefaultDial configures the profile's UART instance on its pins.
func DefaultDial(_ context.Context, p types.LinkProfile) (drivers.UART, error) {
	var hw *uartx.UART
	switch p.Driver {
	case "uart0":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return nil, &errcode.E{C: errcode.UnknownDriver, Op: "dial", Msg: p.Driver}
	}
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: p.Baud,
		TX:       machine.Pin(p.TX),
		RX:       machine.Pin(p.RX),
	}); err != nil {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "dial", Msg: p.Driver, Err: err}
	}
	return hw, nil
}
