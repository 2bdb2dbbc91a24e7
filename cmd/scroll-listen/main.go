package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// envelope mirrors the daemon's WS frame: {type, ts, data}.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type sample struct {
	Raw         int32    `json:"raw"`
	Out         int32    `json:"out"`
	ElapsedMS   int64    `json:"elapsed_ms"`
	Fallback    bool     `json:"fallback"`
	Velocity    *float64 `json:"velocity"`
	Saturated   bool     `json:"saturated"`
	Sensitivity float64  `json:"sensitivity"`
}

type snapshot struct {
	SessionID   string  `json:"session_id"`
	Batches     uint64  `json:"batches"`
	Transformed uint64  `json:"transformed"`
	Dropped     uint64  `json:"dropped"`
	Passed      uint64  `json:"passed"`
	Fallbacks   uint64  `json:"fallbacks"`
	Last        *sample `json:"last_sample,omitempty"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3002/ws", "anxious-scroll telemetry websocket URL")
		raw   = flag.Bool("raw", false, "Print frames as received instead of formatted lines")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Guards concurrent writes (pings vs. close).
	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	// The server pings every 20s; answering extends our read deadline too.
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if *raw {
				fmt.Println(string(message))
				continue
			}
			fmt.Println(formatMessage(message))
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// formatMessage renders one telemetry frame as a single line.
func formatMessage(message []byte) string {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return "[TEXT] " + string(message)
	}

	switch env.Type {
	case "state_init":
		var s snapshot
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return "[STATE] " + string(env.Data)
		}
		line := fmt.Sprintf("[STATE] session=%s batches=%d transformed=%d dropped=%d passed=%d fallbacks=%d",
			s.SessionID, s.Batches, s.Transformed, s.Dropped, s.Passed, s.Fallbacks)
		if s.Last != nil {
			line += " last: " + formatSample(*s.Last)
		}
		return line

	case "scroll_sample":
		var s sample
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return "[SCROLL] " + string(env.Data)
		}
		return "[SCROLL] " + formatSample(s)

	default:
		return fmt.Sprintf("[%s] %s", env.Type, string(env.Data))
	}
}

func formatSample(s sample) string {
	vel := "sat"
	if s.Velocity != nil {
		vel = fmt.Sprintf("%.3f", *s.Velocity)
	}
	line := fmt.Sprintf("%d -> %d (dt=%dms v=%s sens=%.3f)", s.Raw, s.Out, s.ElapsedMS, vel, s.Sensitivity)
	if s.Fallback {
		line += " fallback"
	}
	return line
}
