// Command groundstation is the companion desktop/laptop tool: it republishes
// the vehicle's telemetry stream to MQTT, serves a live WebSocket console,
// and uploads tuning profiles over the debug serial link.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/sunsetTH/Flight-Controller/drivers/hostserial"
	"github.com/sunsetTH/Flight-Controller/internal/prefs"
)

var (
	portFlag   = flag.String("port", "", "debug serial port (e.g. /dev/ttyACM0, COM5)")
	baudFlag   = flag.Int("baud", 115200, "serial baud rate")
	brokerFlag = flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	httpFlag   = flag.String("http", ":8088", "address to serve the live console on")
	profileFlag = flag.String("profile", "", "YAML preference profile to upload, if set")
)

const (
	topicComputed = "flightcore/computed"
	topicMotors   = "flightcore/motors"
	topicBattery  = "flightcore/battery"
)

func main() {
	flag.Parse()

	if *portFlag == "" {
		ports, err := hostserial.List()
		if err != nil {
			log.Fatalf("groundstation: list serial ports: %v", err)
		}
		log.Printf("groundstation: no -port given; available ports: %v", ports)
		return
	}

	port, err := hostserial.Open(*portFlag, *baudFlag)
	if err != nil {
		log.Fatalf("groundstation: open %s: %v", *portFlag, err)
	}
	defer port.Close()

	if *profileFlag != "" {
		if err := uploadProfile(port, *profileFlag); err != nil {
			log.Fatalf("groundstation: upload profile: %v", err)
		}
		log.Printf("groundstation: profile %s uploaded and acknowledged", *profileFlag)
		return
	}

	client := connectMQTT(*brokerFlag)
	defer client.Disconnect(250)

	hub := newConsoleHub()
	go hub.run()

	http.HandleFunc("/ws", hub.serveWS)
	go func() {
		log.Printf("groundstation: live console on %s/ws", *httpFlag)
		if err := http.ListenAndServe(*httpFlag, nil); err != nil {
			log.Printf("groundstation: http server error: %v", err)
		}
	}()

	pollPackets(port, client, hub)
}

func connectMQTT(broker string) mqtt.Client {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID("flightcore-groundstation")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("groundstation: mqtt connect failed, continuing without it: %v", token.Error())
	}
	return client
}

// uploadProfile reads a YAML preference profile, encodes it into the wire
// blob, and drives the checksum-verified upload command over the serial
// link, waiting for the controller's ACK/NACK byte.
func uploadProfile(port *hostserial.Port, filename string) error {
	prof, err := prefs.LoadProfile(filename)
	if err != nil {
		return err
	}
	blob := prefs.Encode(prefs.FromProfile(prof))

	const cmdUploadPrefs = 0x19
	if _, err := port.Write([]byte{cmdUploadPrefs}); err != nil {
		return err
	}
	if _, err := port.Write(blob); err != nil {
		return err
	}

	ack, err := port.ReadByteTimeout(2 * time.Second)
	if err != nil {
		return err
	}
	if ack != 0x06 {
		return errUploadRejected
	}
	return nil
}

var errUploadRejected = uploadRejectedError{}

type uploadRejectedError struct{}

func (uploadRejectedError) Error() string { return "groundstation: controller rejected the upload" }

// pollPackets drains the telemetry stream one byte at a time, republishing
// each decoded packet to both MQTT and the WebSocket hub.
func pollPackets(port *hostserial.Port, client mqtt.Client, hub *consoleHub) {
	for {
		tag, ok := port.TryReadByte()
		if !ok {
			time.Sleep(2 * time.Millisecond)
			continue
		}
		payload, topic, err := readTelemetryPacket(port, tag)
		if err != nil {
			continue
		}
		if client.IsConnected() {
			client.Publish(topic, 0, false, payload)
		}
		hub.broadcast(payload)
	}
}

// readTelemetryPacket reads the fixed-size body for a given packet tag and
// re-encodes it as JSON for MQTT/WebSocket consumers.
func readTelemetryPacket(port *hostserial.Port, tag byte) ([]byte, string, error) {
	var n int
	var topic string
	switch tag {
	case 4: // PacketComputed
		n, topic = 24, topicComputed
	case 5: // PacketMotorOutputs
		n, topic = 8, topicMotors
	case 1: // PacketRadioBattery
		n, topic = 18, topicBattery
	default:
		return nil, "", errUnknownPacket
	}
	body := make([]byte, n)
	for i := range body {
		b, err := port.ReadByteTimeout(50 * time.Millisecond)
		if err != nil {
			return nil, "", err
		}
		body[i] = b
	}
	payload, err := json.Marshal(map[string]any{"tag": tag, "body": body})
	return payload, topic, err
}

var errUnknownPacket = unknownPacketError{}

type unknownPacketError struct{}

func (unknownPacketError) Error() string { return "groundstation: unrecognized telemetry tag" }

// consoleHub fans out telemetry payloads to every connected WebSocket
// client, the same upgrade-then-broadcast shape as the teacher ecosystem's
// register-debug console.
type consoleHub struct {
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]bool
	register chan *websocket.Conn
	broadcastCh chan []byte
}

func newConsoleHub() *consoleHub {
	return &consoleHub{
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:     make(map[*websocket.Conn]bool),
		register:    make(chan *websocket.Conn),
		broadcastCh: make(chan []byte, 16),
	}
}

func (h *consoleHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("groundstation: websocket upgrade error: %v", err)
		return
	}
	h.register <- conn
}

func (h *consoleHub) broadcast(payload []byte) {
	select {
	case h.broadcastCh <- payload:
	default:
	}
}

func (h *consoleHub) run() {
	for {
		select {
		case conn := <-h.register:
			h.clients[conn] = true
		case payload := <-h.broadcastCh:
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
		}
	}
}
