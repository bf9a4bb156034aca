package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"chatlink/auth"
	"chatlink/client"
	"chatlink/domain"
	"chatlink/domain/event"
	"chatlink/gateway"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the connection lifecycle: token, REST snapshots, the live
// WebSocket, and the interactive send loop.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	self := domain.Identity(config.Identity)
	counterpart := domain.Identity(config.Counterpart)

	// The token would normally come from the external authenticator;
	// minting it locally keeps the dev loop self-contained.
	token, err := auth.NewTokens(config.TokenSecret, 24*time.Hour).Generate(self)
	if err != nil {
		return exitConfig, fmt.Errorf("token error: %w", err)
	}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := client.NewSyncState(self)

	// 3. REST snapshots: conversation list, then the open conversation.
	if err := fetchConversations(config, token, state); err != nil {
		return exitRuntime, err
	}
	renderConversations(state.Conversations())

	history, err := fetchHistory(config, token, counterpart)
	if err != nil {
		return exitRuntime, err
	}
	state.OpenConversation(counterpart, history)
	for _, message := range state.Messages() {
		printMessage(self, message)
	}

	// Opening a conversation marks it read, like the reference UI.
	if err := markRead(config, token, counterpart); err != nil {
		log.Warn("mark-read failed", "error", err)
	}

	// 4. Live connection.
	wsURL := "ws" + strings.TrimPrefix(config.ServerURL, "http") + "/ws?token=" + token
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = ws.Close()
	}()

	color.Green.Printf(">>> Connected as %s, talking to %s (Ctrl+C to quit)\n", self, counterpart)

	go receiveLoop(ctx, ws, state, self)

	// 5. Interactive send loop: one line, one message.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := sendFrame(ws, "send-message", gateway.SendMessagePayload{
				Receiver:  string(counterpart),
				Body:      line,
				Timestamp: time.Now(),
			}); err != nil {
				return exitRuntime, fmt.Errorf("send failed: %w", err)
			}
		}
	}
}

// receiveLoop folds pushed frames into the local mirror and renders
// them as they arrive.
func receiveLoop(ctx context.Context, ws *websocket.Conn, state *client.SyncState, self domain.Identity) {
	for {
		var frame struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := ws.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				color.Red.Println("connection lost")
			}
			return
		}

		evt, err := gateway.DecodeEvent(frame.Type, frame.Payload)
		if err != nil {
			continue
		}

		switch e := evt.(type) {
		case event.PresenceSnapshot:
			state.ApplyPresenceSnapshot(e.Online)
		case event.PresenceChanged:
			state.ApplyPresence(e)
			if e.Online {
				color.Green.Printf("* %s is online\n", e.Identity)
			} else {
				color.Gray.Printf("* %s went offline\n", e.Identity)
			}
		case event.TypingStarted:
			state.ApplyTypingStarted(e)
			color.Gray.Printf("* %s is typing…\n", e.From)
		case event.TypingStopped:
			state.ApplyTypingStopped(e)
		case event.MessageDelivered:
			state.ApplyDelivered(e)
			if e.Message.Counterpart(self) == state.Open() {
				printMessage(self, e.Message)
			}
		case event.ReadCompleted:
			state.ApplyReadCompleted(e)
		case event.SendFailed:
			color.Red.Printf("! send failed: %s\n", e.Reason)
		}
	}
}

func printMessage(self domain.Identity, message domain.Message) {
	stamp := message.CreatedAt.Local().Format(time.TimeOnly)
	if message.Sender == self {
		color.Cyan.Printf("[%s] me: %s\n", stamp, message.Body)
	} else {
		color.Yellow.Printf("[%s] %s: %s\n", stamp, message.Sender, message.Body)
	}
}

func renderConversations(summaries []domain.ConversationSummary) {
	if len(summaries) == 0 {
		color.Gray.Println("No conversations yet")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Counterpart", "Last message", "From", "At", "Unread"})
	for _, s := range summaries {
		table.Append([]string{
			string(s.Counterpart),
			s.LastMessage.Body,
			string(s.LastMessage.Sender),
			s.LastMessage.CreatedAt.Local().Format(time.DateTime),
			fmt.Sprintf("%d", s.UnreadCount),
		})
	}
	table.Render()
}

func fetchConversations(config Config, token string, state *client.SyncState) error {
	var body struct {
		Conversations []gateway.SummaryPayload `json:"conversations"`
	}
	if err := getJSON(config.ServerURL+"/api/conversations", token, &body); err != nil {
		return fmt.Errorf("fetching conversations: %w", err)
	}
	state.SetConversations(lo.Map(body.Conversations, func(p gateway.SummaryPayload, _ int) domain.ConversationSummary {
		return domain.ConversationSummary{
			Counterpart: domain.Identity(p.Counterpart),
			LastMessage: domain.LastMessage{
				Body:      p.LastMessage.Body,
				CreatedAt: p.LastMessage.CreatedAt,
				Sender:    domain.Identity(p.LastMessage.Sender),
			},
			UnreadCount: p.UnreadCount,
		}
	}))
	return nil
}

func fetchHistory(config Config, token string, counterpart domain.Identity) ([]domain.Message, error) {
	var body struct {
		Messages []gateway.MessagePayload `json:"messages"`
	}
	url := fmt.Sprintf("%s/api/messages/%s", config.ServerURL, counterpart)
	if err := getJSON(url, token, &body); err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}

	var history []domain.Message
	for _, p := range body.Messages {
		evt, err := gateway.DecodeEvent("message-delivered", mustMarshal(p))
		if err != nil {
			return nil, err
		}
		history = append(history, evt.(event.MessageDelivered).Message)
	}
	return history, nil
}

func markRead(config Config, token string, counterpart domain.Identity) error {
	url := fmt.Sprintf("%s/api/messages/%s/read", config.ServerURL, counterpart)
	request, err := http.NewRequest(http.MethodPut, url, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", "Bearer "+token)
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("mark-read status %d", response.StatusCode)
	}
	return nil
}

func getJSON(url, token string, out any) error {
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", "Bearer "+token)
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", response.StatusCode)
	}
	return json.NewDecoder(response.Body).Decode(out)
}

func sendFrame(ws *websocket.Conn, frameType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ws.WriteJSON(gateway.Inbound{Type: frameType, Payload: raw})
}

func mustMarshal(v any) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
