// Package main is a load generator for the conversation WebSocket endpoint.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the run results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	MessagesSent         int64
	EventsReceived       int64
	ServerErrors         int64
	Errors               int64
}

type envelope struct {
	OK      bool            `json:"ok"`
	Kind    string          `json:"kind"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type event struct {
	Type string `json:"type"`
}

var metrics Metrics

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	email := flag.String("email", "", "Email of a participant in the conversation")
	password := flag.String("password", "password123", "Participant password")
	conversation := flag.Uint("conversation", 0, "Conversation ID to join")
	clients := flag.Int("clients", 20, "Number of concurrent sockets")
	duration := flag.Duration("duration", 30*time.Second, "Run duration")
	interval := flag.Duration("interval", 5*time.Second, "Delay between messages per client")
	flag.Parse()

	if *email == "" || *conversation == 0 {
		fmt.Fprintln(os.Stderr, "usage: chatload -email <participant email> -conversation <id> [-clients N] [-duration D]")
		os.Exit(2)
	}

	log.Printf("Target: %s conversation=%d clients=%d duration=%v", *host, *conversation, *clients, *duration)

	token, err := login(*host, *email, *password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, token, *conversation, i, *interval, stop, &wg)
		// Tickets are single use; stagger issuance.
		time.Sleep(50 * time.Millisecond)
	}

	select {
	case <-time.After(*duration):
		log.Println("Duration reached")
	case <-interrupt:
		log.Println("Interrupted")
	}

	close(stop)
	wg.Wait()
	printMetrics()
}

// call posts to the API and decodes the success envelope into dst.
func call(host, path, token string, body, dst interface{}) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s%s", host, path), &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("status %d: %w", resp.StatusCode, err)
	}
	if !env.OK {
		return fmt.Errorf("%s: %s", env.Kind, env.Message)
	}
	return json.Unmarshal(env.Data, dst)
}

func login(host, email, password string) (string, error) {
	var session struct {
		Token string `json:"token"`
	}
	if err := call(host, "/api/auth/login", "", map[string]string{"email": email, "password": password}, &session); err != nil {
		return "", err
	}
	if session.Token == "" {
		return "", errors.New("empty token")
	}
	return session.Token, nil
}

func getTicket(host, token string) (string, error) {
	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := call(host, "/api/ws/ticket", token, nil, &result); err != nil {
		return "", err
	}
	return result.Ticket, nil
}

func runClient(host, token string, conversationID uint, id int, interval time.Duration, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	ticket, err := getTicket(host, token)
	if err != nil {
		log.Printf("client %d: ticket: %v", id, err)
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws/chat", RawQuery: "ticket=" + ticket}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		log.Printf("client %d: dial: %v", id, err)
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		return
	}
	defer func() { _ = c.Close() }()
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	go func() {
		for {
			var ev event
			if err := c.ReadJSON(&ev); err != nil {
				return
			}
			atomic.AddInt64(&metrics.EventsReceived, 1)
			if ev.Type == "error" {
				atomic.AddInt64(&metrics.ServerErrors, 1)
			}
		}
	}()

	if err := c.WriteJSON(map[string]interface{}{"type": "join", "conversation_id": conversationID}); err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			frame := map[string]interface{}{
				"type":            "message",
				"conversation_id": conversationID,
				"body":            fmt.Sprintf("Load test message from client %d", id),
			}
			if err := c.WriteJSON(frame); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				return
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

func printMetrics() {
	log.Println("Results")
	log.Printf("Connections attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Messages sent: %d", atomic.LoadInt64(&metrics.MessagesSent))
	log.Printf("Events received: %d", atomic.LoadInt64(&metrics.EventsReceived))
	log.Printf("Server error events: %d", atomic.LoadInt64(&metrics.ServerErrors))
	log.Printf("Client errors: %d", atomic.LoadInt64(&metrics.Errors))
}
