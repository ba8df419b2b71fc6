package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/metrics"
)

// OpenSerial opens the ground-station serial port, 8N1.
func OpenSerial(portName string, baudRate int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", portName, err)
	}
	return port, nil
}

// ReadSentences reads newline-terminated stick sentences from r and calls fn
// for each one that decodes. Lines that do not start with '$' or fail to
// decode are counted and skipped. It returns nil at EOF.
func ReadSentences(ctx context.Context, r io.Reader, source string, fn func(line string, in flight.RawInput)) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "$") {
			in, derr := Decode(line)
			if derr != nil {
				metrics.StickErrors.WithLabelValues(source).Inc()
				slog.Debug("link: bad stick sentence", "source", source, "line", line, "err", derr)
			} else {
				metrics.StickFrames.WithLabelValues(source).Inc()
				fn(line, in)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%s read: %w", source, err)
		}
	}
}

// SerialSource feeds a Latest store from the serial line.
type SerialSource struct {
	PortName string
	BaudRate int
	Latest   *Latest
}

// Run reads until ctx is cancelled or the port fails.
func (s *SerialSource) Run(ctx context.Context) error {
	port, err := OpenSerial(s.PortName, s.BaudRate)
	if err != nil {
		return err
	}
	defer port.Close()
	slog.Info("link: serial stick source open", "port", s.PortName, "baud", s.BaudRate)

	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer stop()

	return ReadSentences(ctx, port, "serial", func(_ string, in flight.RawInput) {
		s.Latest.Put(in)
	})
}

// MQTTSource feeds a Latest store from the sticks topic.
type MQTTSource struct {
	Topic  string
	Latest *Latest
}

// Subscribe registers the handler with a connected client.
func (s *MQTTSource) Subscribe(client mqtt.Client) error {
	token := client.Subscribe(s.Topic, 0, s.Handle)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.Topic, err)
	}
	slog.Info("link: subscribed to sticks", "topic", s.Topic)
	return nil
}

// Handle is the MQTT message callback.
func (s *MQTTSource) Handle(_ mqtt.Client, msg mqtt.Message) {
	in, err := Decode(string(msg.Payload()))
	if err != nil {
		metrics.StickErrors.WithLabelValues("mqtt").Inc()
		slog.Debug("link: bad stick payload", "topic", msg.Topic(), "err", err)
		return
	}
	metrics.StickFrames.WithLabelValues("mqtt").Inc()
	s.Latest.Put(in)
}
