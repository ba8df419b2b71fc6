package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

func formatFrame(f telemetry.Frame) string {
	inv := " "
	if f.Inverted {
		inv = "I"
	}
	return fmt.Sprintf(
		"[FRAME] t=%7.2f %-18s %-8s %s tilt=%6.1f thrust=%6.2f  ROLL=%7.2f PITCH=%7.2f YAW=%7.2f  alt=%7.2f",
		f.Time, f.Regime, f.Mode, inv, f.TiltDeg, f.Thrust,
		f.Pose.Roll, f.Pose.Pitch, f.Pose.Yaw, f.Position.Y(),
	)
}

func formatEvent(e telemetry.EventMessage) string {
	if e.From != e.To {
		return fmt.Sprintf("[EVENT] t=%7.2f %-17s %s -> %s (mode=%s tilt=%.1f)", e.Time, e.Kind, e.From, e.To, e.Mode, e.TiltDeg)
	}
	return fmt.Sprintf("[EVENT] t=%7.2f %-17s %s (mode=%s tilt=%.1f inverted=%t)", e.Time, e.Kind, e.To, e.Mode, e.TiltDeg, e.Inverted)
}

// RunConsoleMQTT prints telemetry frames and controller events until
// interrupted.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	slog.Info("console: connected to MQTT broker", "broker", cfg.MQTTBroker)

	// Subscribe to frames
	frameToken := client.Subscribe(cfg.TopicTelemetry, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f telemetry.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			slog.Warn("console: frame unmarshal error", "err", err)
			return
		}
		fmt.Println(formatFrame(f))
	})
	frameToken.Wait()
	if frameToken.Error() != nil {
		return frameToken.Error()
	}
	slog.Info("console: subscribed", "topic", cfg.TopicTelemetry)

	// Subscribe to events
	eventToken := client.Subscribe(cfg.TopicEvents, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var e telemetry.EventMessage
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			slog.Warn("console: event unmarshal error", "err", err)
			return
		}
		fmt.Println(formatEvent(e))
	})
	eventToken.Wait()
	if eventToken.Error() != nil {
		return eventToken.Error()
	}
	slog.Info("console: subscribed", "topic", cfg.TopicEvents)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	slog.Info("console: shutting down")
	return nil
}
