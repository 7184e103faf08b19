// Package main provides a CLI client that runs research requests through the
// ingress WebSocket server and renders the resulting threads.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Message types
const (
	TypeHello        = "hello"
	TypeHelloAck     = "hello_ack"
	TypeResearch     = "research"
	TypeCancel       = "cancel"
	TypeThreadPost   = "thread_post"
	TypeThreadUpdate = "thread_update"
	TypeResearchDone = "research_done"
	TypeError        = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

// HelloMessage is sent to establish connection.
type HelloMessage struct {
	BaseMessage
	APIKey     string            `json:"api_key,omitempty"`
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// ResearchMessage starts a request.
type ResearchMessage struct {
	BaseMessage
	Mode  string `json:"mode,omitempty"`
	Input string `json:"input"`
}

// ThreadMessage is a thread_post or thread_update.
type ThreadMessage struct {
	BaseMessage
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id,omitempty"`
	Text      string `json:"text"`
}

// ResearchDoneMessage reports the end of a request.
type ResearchDoneMessage struct {
	BaseMessage
	ThreadID string `json:"thread_id,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// ErrorMessage represents an error from the server.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client represents a WebSocket client.
type Client struct {
	conn     *websocket.Conn
	channel  string
	renderer *Renderer
	done     chan struct{}
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn:     conn,
		renderer: NewRenderer(os.Stdout),
		done:     make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// SendHello sends a hello message and waits for hello_ack.
func (c *Client) SendHello(apiKey, channel string) error {
	msg := HelloMessage{
		BaseMessage: BaseMessage{
			Type:    TypeHello,
			Ts:      time.Now().UnixMilli(),
			Channel: channel,
		},
		APIKey: apiKey,
		ClientMeta: map[string]string{
			"client": "research-cli",
		},
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}

	if base.Type == TypeError {
		var errMsg ErrorMessage
		json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}

	if base.Type != TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}

	c.channel = base.Channel
	return nil
}

// SendResearch starts a request in mode for input and returns its request id.
func (c *Client) SendResearch(mode, input string) (string, error) {
	msg := ResearchMessage{
		BaseMessage: BaseMessage{
			Type:      TypeResearch,
			Ts:        time.Now().UnixMilli(),
			RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
		},
		Mode:  mode,
		Input: input,
	}
	return msg.RequestID, c.conn.WriteJSON(msg)
}

// SendCancel cancels requestID, or every request of the channel when empty.
func (c *Client) SendCancel(requestID string) error {
	return c.conn.WriteJSON(BaseMessage{
		Type:      TypeCancel,
		Ts:        time.Now().UnixMilli(),
		RequestID: requestID,
	})
}

// ReadMessages reads and renders messages from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			if err := c.renderer.Handle(data); err != nil {
				log.Printf("Unmarshal error: %v", err)
			}
		}
	}
}

const commandHelp = "Commands: /draft <topic>, /verify <claim>, /cancel, /quit"

// parseCommand maps an input line to a request mode and its input. Plain text
// runs a full research request.
func parseCommand(line string) (mode, input string) {
	for _, m := range []string{"draft", "verify"} {
		if rest, ok := strings.CutPrefix(line, "/"+m+" "); ok {
			return m, strings.TrimSpace(rest)
		}
	}
	return "research", line
}

func main() {
	addr := flag.String("addr", "ws://localhost:8090/ws", "WebSocket server address")
	apiKey := flag.String("api-key", "", "API key for authentication")
	channel := flag.String("channel", "", "Channel to join (a new one is assigned when empty)")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	fmt.Println("Connected. Sending hello...")

	if err := client.SendHello(*apiKey, *channel); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	fmt.Printf("Joined channel: %s\n", client.channel)
	fmt.Println("\nType a research topic and press Enter.")
	fmt.Println(commandHelp)
	fmt.Println()

	go client.ReadMessages()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			switch input {
			case "/quit":
				fmt.Println("Bye!")
				return
			case "/cancel":
				if err := client.SendCancel(""); err != nil {
					log.Printf("Send error: %v", err)
				}
				continue
			}

			mode, text := parseCommand(input)
			requestID, err := client.SendResearch(mode, text)
			if err != nil {
				log.Printf("Send error: %v", err)
				continue
			}

			fmt.Printf("Request %s sent, waiting for the thread...\n", requestID)
		}
	}
}
