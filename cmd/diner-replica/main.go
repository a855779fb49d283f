// Command diner-replica is a terminal stand-in for the portal chat widget.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	serverFlag  string
	tokenFlag   string
	sessionFlag string
	userFlag    int64
	httpFlag    bool
	voiceFlag   string
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    *int64 `json:"user_id"`
}

type frame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Response  string          `json:"response,omitempty"`
	Code      int             `json:"code,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "diner-replica",
		Short: "Chat with the concierge from a terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionFlag == "" {
				sessionFlag = uuid.NewString()
			}
			switch {
			case voiceFlag != "":
				return runVoice(voiceFlag)
			case httpFlag:
				return runHTTP(os.Stdin)
			default:
				if tokenFlag == "" {
					return fmt.Errorf("--token is required for the websocket mode")
				}
				return runWebsocket(os.Stdin)
			}
		},
	}
	rootCmd.Flags().StringVarP(&serverFlag, "server", "s", "http://localhost:8080", "Concierge base URL")
	rootCmd.Flags().StringVarP(&tokenFlag, "token", "t", "", "Portal-signed JWT for the websocket mode")
	rootCmd.Flags().StringVar(&sessionFlag, "session", "", "Session id (random when empty)")
	rootCmd.Flags().Int64VarP(&userFlag, "user", "u", 0, "User id sent with --http and --voice")
	rootCmd.Flags().BoolVar(&httpFlag, "http", false, "Use POST /chat instead of the websocket")
	rootCmd.Flags().StringVar(&voiceFlag, "voice", "", "Send an audio file to the voice endpoint and exit")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func prompt(in io.Reader, send func(text string) error) error {
	reader := bufio.NewReader(in)
	fmt.Printf("Session %s. Type 'exit' to quit.\n", sessionFlag)
	for {
		fmt.Print("> ")
		text, err := reader.ReadString('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "exit" {
			return nil
		}
		if text == "" {
			continue
		}
		if err := send(text); err != nil {
			return err
		}
	}
}

func userID() *int64 {
	if userFlag <= 0 {
		return nil
	}
	return &userFlag
}

func runHTTP(in io.Reader) error {
	client := &http.Client{Timeout: 90 * time.Second}
	return prompt(in, func(text string) error {
		body, err := json.Marshal(chatRequest{Message: text, SessionID: sessionFlag, UserID: userID()})
		if err != nil {
			return err
		}
		resp, err := client.Post(serverFlag+"/chat", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		var out map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			fmt.Printf("[%d] %v\n", resp.StatusCode, out["message"])
			return nil
		}
		fmt.Printf("concierge: %v\n", out["response"])
		return nil
	})
}

func runWebsocket(in io.Reader) error {
	wsURL, err := websocketURL(serverFlag)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+tokenFlag)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer conn.Close()

	go func() {
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				fmt.Println("connection closed:", err)
				return
			}
			switch f.Type {
			case "reply":
				fmt.Printf("\nconcierge: %s\n> ", f.Response)
			case "error":
				fmt.Printf("\n[%d] %s\n> ", f.Code, f.Message)
			case "event":
				fmt.Printf("\n(event) %s\n> ", f.Event)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("Shutting down...")
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		os.Exit(0)
	}()

	return prompt(in, func(text string) error {
		return conn.WriteJSON(frame{Type: "message", SessionID: sessionFlag, Message: text})
	})
}

func websocketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func runVoice(path string) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}
	fmt.Printf("Loaded audio file: %s (%d bytes)\n", path, len(audio))

	endpoint := fmt.Sprintf("%s/api/v1/chat/voice?session_id=%s", serverFlag, url.QueryEscape(sessionFlag))
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeFor(path))
	if id := userID(); id != nil {
		req.Header.Set("X-User-ID", strconv.FormatInt(*id, 10))
	}

	client := &http.Client{Timeout: 90 * time.Second}
	startTime := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	fmt.Printf("Request completed in %v\n", time.Since(startTime))

	var out struct {
		SessionID  string `json:"session_id"`
		Transcript string `json:"transcript"`
		Response   string `json:"response"`
		Audio      []byte `json:"audio"`
		Message    string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("voice request failed with status %d: %s", resp.StatusCode, out.Message)
	}

	fmt.Printf("you said: %s\nconcierge: %s\n", out.Transcript, out.Response)
	if len(out.Audio) > 0 {
		replyPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".reply.mp3"
		if err := os.WriteFile(replyPath, out.Audio, 0o644); err != nil {
			return err
		}
		fmt.Printf("spoken reply saved to %s\n", replyPath)
	}
	return nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}
