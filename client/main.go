// Interactive demo client. Type commands at the prompt:
//
//	lobby
//	create <name> <drawing|poker> <playerName>
//	join <roomId> <playerName>
//	start
//	chat <text>
//	draw <x> <y>
//	line <x> <y>
//	fold | check | call | raise <amount> | allin
//	leave
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type envelope struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId,omitempty"`
	PlayerID string          `json:"playerId,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func send(c *websocket.Conn, msgType, roomID string, data interface{}) error {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = b
	}
	env := envelope{Type: msgType, RoomID: roomID, Data: raw}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, b)
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	playerID := uuid.New().String()
	var roomID string
	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			var env envelope
			if err := json.Unmarshal(message, &env); err != nil {
				log.Printf("Bad envelope: %s", message)
				continue
			}
			if env.Type == "room-state" && env.RoomID != "" {
				roomID = env.RoomID
			}
			log.Printf("<- %s %s", env.Type, string(env.Data))
		}
	}()

	// Heartbeat loop
	go func() {
		ticker := time.NewTicker(25 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				send(c, "heartbeat", "", nil)
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	prompt := func() { fmt.Print("> ") }
	prompt()

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			prompt()
			continue
		}

		switch fields[0] {
		case "lobby":
			send(c, "subscribe-lobby", "", nil)
		case "create":
			if len(fields) < 4 {
				log.Println("usage: create <name> <drawing|poker> <playerName>")
				break
			}
			send(c, "create-room", "", map[string]interface{}{
				"name":       fields[1],
				"gameType":   fields[2],
				"playerId":   playerID,
				"playerName": fields[3],
			})
		case "join":
			if len(fields) < 3 {
				log.Println("usage: join <roomId> <playerName>")
				break
			}
			roomID = fields[1]
			send(c, "join", roomID, map[string]string{
				"playerId":   playerID,
				"playerName": fields[2],
			})
		case "start":
			send(c, "start-game", roomID, nil)
		case "chat":
			send(c, "chat", roomID, map[string]string{
				"text": strings.Join(fields[1:], " "),
			})
		case "draw", "line":
			if len(fields) < 3 {
				log.Println("usage: draw|line <x> <y>")
				break
			}
			x, _ := strconv.Atoi(fields[1])
			y, _ := strconv.Atoi(fields[2])
			cmd := "start"
			if fields[0] == "line" {
				cmd = "move"
			}
			send(c, "game-action", roomID, map[string]interface{}{
				"kind": "draw", "cmd": cmd, "x": x, "y": y,
			})
		case "fold", "check", "call", "allin":
			move := fields[0]
			if move == "allin" {
				move = "all-in"
			}
			send(c, "game-action", roomID, map[string]string{
				"kind": "poker-action", "action": move,
			})
		case "raise":
			if len(fields) < 2 {
				log.Println("usage: raise <amount>")
				break
			}
			amount, _ := strconv.ParseInt(fields[1], 10, 64)
			send(c, "game-action", roomID, map[string]interface{}{
				"kind": "poker-action", "action": "raise", "amount": amount,
			})
		case "leave":
			send(c, "leave-room", roomID, nil)
			roomID = ""
		case "quit", "exit":
			c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		default:
			log.Printf("unknown command %q", fields[0])
		}
		prompt()

		select {
		case <-interrupt:
			return
		case <-done:
			return
		default:
		}
	}
}
