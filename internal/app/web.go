package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/flight_computer/internal/config"
)

const (
	wsSendBuffer   = 32
	wsWriteTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served from the same host or a dev server
	},
}

// Dashboard keeps the last telemetry frame and fans frames and events out
// to websocket clients.
type Dashboard struct {
	staticDir string

	mu        sync.RWMutex
	lastFrame json.RawMessage
	clients   map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// wsEnvelope tags each pushed message with its kind.
type wsEnvelope struct {
	Type string          `json:"type"` // frame or event
	Data json.RawMessage `json:"data"`
}

// NewDashboard serves the page in staticDir at /. An empty staticDir
// serves the API and stream only.
func NewDashboard(staticDir string) *Dashboard {
	return &Dashboard{staticDir: staticDir, clients: make(map[*wsClient]struct{})}
}

// UpdateFrame stores a telemetry frame and pushes it to every client.
func (d *Dashboard) UpdateFrame(payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("frame is not valid JSON")
	}
	frame := append(json.RawMessage(nil), payload...)
	d.mu.Lock()
	d.lastFrame = frame
	d.mu.Unlock()
	d.broadcast("frame", frame)
	return nil
}

// PushEvent forwards a controller event to every client.
func (d *Dashboard) PushEvent(payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("event is not valid JSON")
	}
	d.broadcast("event", append(json.RawMessage(nil), payload...))
	return nil
}

func (d *Dashboard) broadcast(kind string, data json.RawMessage) {
	msg, err := json.Marshal(wsEnvelope{Type: kind, Data: data})
	if err != nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for c := range d.clients {
		select {
		case c.send <- msg:
		default:
			// slow client, skip this message
		}
	}
}

// Handler serves /api/telemetry, /ws and the static dashboard.
func (d *Dashboard) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/telemetry", d.handleTelemetry)
	mux.HandleFunc("/ws", d.handleWS)
	if d.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(d.staticDir)))
	}
	return mux
}

func (d *Dashboard) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	d.mu.RLock()
	frame := d.lastFrame
	d.mu.RUnlock()

	if frame == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(frame); err != nil {
		slog.Warn("web: write error", "err", err)
	}
}

func (d *Dashboard) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("web: websocket upgrade error", "err", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	done := make(chan struct{})
	go c.writeLoop(done)

	d.mu.Lock()
	d.clients[c] = struct{}{}
	last := d.lastFrame
	d.mu.Unlock()
	slog.Debug("web: websocket client connected", "remote", r.RemoteAddr)

	if last != nil {
		if msg, err := json.Marshal(wsEnvelope{Type: "frame", Data: last}); err == nil {
			select {
			case c.send <- msg:
			default:
				// already behind; the next frame replaces it
			}
		}
	}

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	d.mu.Lock()
	delete(d.clients, c)
	d.mu.Unlock()
	close(done)
	conn.Close()
	slog.Debug("web: websocket client gone", "remote", r.RemoteAddr)
}

func (c *wsClient) writeLoop(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

// Clients returns the number of connected websocket clients.
func (d *Dashboard) Clients() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}

// RunWeb subscribes to telemetry and events and serves the dashboard.
func RunWeb() error {
	cfg := config.Get()
	dash := NewDashboard("web")

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	slog.Info("web: connected to MQTT broker", "broker", cfg.MQTTBroker)

	// 2) Frames and events feed the dashboard
	subs := map[string]func([]byte) error{
		cfg.TopicTelemetry: dash.UpdateFrame,
		cfg.TopicEvents:    dash.PushEvent,
	}
	for topic, fn := range subs {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := fn(msg.Payload()); err != nil {
				slog.Warn("web: bad payload", "topic", msg.Topic(), "err", err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		slog.Info("web: subscribed", "topic", topic)
	}

	// 3) HTTP
	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	slog.Info("web: listening", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           dash.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
