package main

// Standalone development server that simulates the live audio endpoint.
// Run it and point live.endpoint at ws://localhost:8090/live to exercise
// a full session without real credentials.

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type inboundMessage struct {
	Setup *struct {
		Model string `json:"model"`
	} `json:"setup,omitempty"`
	RealtimeInput *struct {
		MediaChunks []struct {
			MimeType string `json:"mimeType"`
			Data     string `json:"data"`
		} `json:"mediaChunks"`
	} `json:"realtimeInput,omitempty"`
}

func liveHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("session opened from %s", r.RemoteAddr)

	framesReceived := 0
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("session closed: %v (received %d frames)", err, framesReceived)
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("undecodable message: %v", err)
			continue
		}

		if msg.Setup != nil {
			log.Printf("setup received: model=%s", msg.Setup.Model)
			continue
		}

		if msg.RealtimeInput == nil {
			continue
		}

		framesReceived += len(msg.RealtimeInput.MediaChunks)

		// Every 20 frames, pretend the user finished a sentence and
		// answer with a transcribed turn plus a short audio reply.
		if framesReceived%20 != 0 {
			continue
		}

		replies := []map[string]any{
			{"serverContent": map[string]any{
				"inputTranscription": map[string]string{"text": "Tell me about relativity. "},
			}},
			{"serverContent": map[string]any{
				"outputTranscription": map[string]string{"text": "Time slows down as you approach the speed of light. "},
			}},
			{"serverContent": map[string]any{
				"modelTurn": map[string]any{
					"parts": []map[string]any{
						{"inlineData": map[string]string{
							"mimeType": "audio/pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString(make([]byte, 24000*2)), // 1s of silence
						}},
					},
				},
			}},
			{"serverContent": map[string]any{"turnComplete": true}},
		}

		for _, reply := range replies {
			if err := conn.WriteJSON(reply); err != nil {
				log.Printf("write failed: %v", err)
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	flag.Parse()

	http.HandleFunc("/live", liveHandler)

	log.Printf("test live server listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
