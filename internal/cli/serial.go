package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"
)

// Serve opens the serial port and processes command frames until ctx is
// cancelled or the port fails. Bytes outside <...> frames are discarded,
// so line endings and throttle keep-alive noise are tolerated.
func Serve(ctx context.Context, portName string, ctrl Controller) error {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("cli: open %s: %w", portName, err)
	}
	slog.Info("cli: serial command channel listening", "port", portName)

	go func() {
		<-ctx.Done()
		port.Close()
	}()

	err = ServeStream(port, ctrl)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ServeStream runs the frame scanner against any byte stream.
func ServeStream(rw io.ReadWriter, ctrl Controller) error {
	buf := make([]byte, 64)
	var frame []byte
	inFrame := false
	for {
		n, err := rw.Read(buf)
		for _, c := range buf[:n] {
			switch {
			case c == '<':
				frame = frame[:0]
				inFrame = true
			case c == '>' && inFrame:
				inFrame = false
				reply := Execute(ctrl, string(frame))
				if _, werr := io.WriteString(rw, reply+"\n"); werr != nil {
					return fmt.Errorf("cli: write reply: %w", werr)
				}
			case inFrame:
				if len(frame) < 256 {
					frame = append(frame, c)
				} else {
					// Runaway frame, drop it.
					inFrame = false
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("cli: read: %w", err)
		}
	}
}
