package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/link"
)

// RunStickProducer opens the ground-station serial port, validates $PSTK
// sentences and republishes them on the sticks topic.
func RunStickProducer() error {
	cfg := config.Get()
	if cfg.StickSerialPort == "" {
		return fmt.Errorf("stick producer: STICK_SERIAL_PORT is not set")
	}
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("stick producer: MQTT_BROKER is not set")
	}

	// ---- 1) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDSticks)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	slog.Info("sticks: connected to MQTT broker", "broker", cfg.MQTTBroker)

	// ---- 2) Open ground-station serial port ----
	port, err := link.OpenSerial(cfg.StickSerialPort, cfg.StickBaudRate)
	if err != nil {
		return err
	}
	defer port.Close()
	slog.Info("sticks: serial port opened", "port", cfg.StickSerialPort, "baud", cfg.StickBaudRate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	context.AfterFunc(ctx, func() { port.Close() })

	// ---- 3) Forward every valid sentence ----
	err = link.ReadSentences(ctx, port, "serial", forwardSticks(client, cfg.TopicSticks))
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// forwardSticks republishes the canonical encoding of each decoded frame.
func forwardSticks(client mqtt.Client, topic string) func(string, flight.RawInput) {
	return func(_ string, in flight.RawInput) {
		token := client.Publish(topic, 0, false, link.Encode(in))
		token.Wait()
		if token.Error() != nil {
			slog.Warn("sticks: publish failed", "topic", topic, "err", token.Error())
		}
	}
}
