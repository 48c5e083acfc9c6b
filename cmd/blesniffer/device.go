package main

import (
	"fmt"

	serial "github.com/daedaluz/goserial"
)

// openDevice opens path as a raw-mode UART at baud, grounded on the pack's
// goserial Port (Daedaluz-goserial): Open, then MakeRaw to strip
// line-discipline processing, then a Termios2/SetCustomSpeed round-trip to
// set an arbitrary baud rate the legacy Bxxx constants don't necessarily
// cover.
func openDevice(path string, baud int) (*serial.Port, error) {
	port, err := serial.Open(path, nil)
	if err != nil {
		return nil, fmt.Errorf("blesniffer: open %s: %w", path, err)
	}

	if err := port.MakeRaw(); err != nil {
		port.Close()
		return nil, fmt.Errorf("blesniffer: set raw mode on %s: %w", path, err)
	}

	attrs, err := port.GetAttr2()
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("blesniffer: get termios2 on %s: %w", path, err)
	}
	attrs.SetCustomSpeed(uint32(baud))
	if err := port.SetAttr2(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, fmt.Errorf("blesniffer: set baud %d on %s: %w", baud, path, err)
	}

	return port, nil
}
