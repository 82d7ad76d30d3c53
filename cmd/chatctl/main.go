// Package main implements the chatctl CLI for manual operations against the
// chattrace HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the chattrace HTTP server
	serverURL string
	// conversationID groups turns of the same conversation
	conversationID string
	// userID attributes turns to a user
	userID string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "CLI for chattrace HTTP server operations",
	Long: `chatctl is a command-line interface for interacting with the chattrace HTTP server.
It provides commands for sending chat turns, rating traced turns, and checking server health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "chattrace server URL")
	chatCmd.Flags().StringVar(&conversationID, "conversation", "", "conversation ID grouping related turns")
	chatCmd.Flags().StringVar(&userID, "user", "", "user ID attributed to the turn")
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(healthCmd)
}

// chatCmd sends one chat turn
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a chat message and print the reply",
	Long: `Send a chat message to the chattrace server and print the assistant's reply.
The message is read from the argument, or from stdin when the argument is "-".

Examples:
  # Send a message
  chatctl chat "what is the capital of France?"

  # Send from stdin
  echo "summarize this" | chatctl chat -

  # Group turns into a conversation
  chatctl chat --conversation conv-42 --user alice "and its population?"`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

// feedbackCmd rates a traced turn
var feedbackCmd = &cobra.Command{
	Use:   "feedback <trace-id> <value>",
	Short: "Rate a previous traced turn",
	Long: `Record a feedback score against the trace of a previous turn.
The trace ID is printed by the chat command; the value is a number,
conventionally 0 (bad) to 1 (good).

Examples:
  # Mark a turn as helpful
  chatctl feedback 0af7651916cd43dd8448eb211c80319c 1

  # Mark a turn as wrong, with a comment
  chatctl feedback 0af7651916cd43dd8448eb211c80319c 0 --comment "made up the date"`,
	Args: cobra.ExactArgs(2),
	RunE: runFeedback,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check chattrace server health",
	Long: `Check the health status of the chattrace HTTP server.

Examples:
  # Check health
  chatctl health

  # Check health on a different server
  chatctl health --server http://localhost:9090`,
	RunE: runHealth,
}

var feedbackComment string

func init() {
	feedbackCmd.Flags().StringVar(&feedbackComment, "comment", "", "free-form comment attached to the score")
}

// chatMessage matches internal/chat Message
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest matches internal/chat Request
type chatRequest struct {
	ConversationID string        `json:"conversation_id,omitempty"`
	UserID         string        `json:"user_id,omitempty"`
	Messages       []chatMessage `json:"messages"`
}

// chatResponse matches internal/chat Response
type chatResponse struct {
	TraceID string      `json:"trace_id"`
	Message chatMessage `json:"message"`
	Model   string      `json:"model"`
}

// feedbackRequest matches internal/chat Feedback
type feedbackRequest struct {
	TraceID string  `json:"trace_id"`
	Value   float64 `json:"value"`
	Comment string  `json:"comment,omitempty"`
}

// healthResponse matches internal/server HealthResponse
type healthResponse struct {
	Status string `json:"status"`
}

// runChat handles the chat command
func runChat(cmd *cobra.Command, args []string) error {
	message := args[0]
	if message == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		message = strings.TrimSpace(string(content))
	}
	if message == "" {
		return fmt.Errorf("no message to send")
	}

	reqBody := chatRequest{
		ConversationID: conversationID,
		UserID:         userID,
		Messages:       []chatMessage{{Role: "user", Content: message}},
	}

	var resp chatResponse
	if err := postJSON(serverURL+"/v1/chat", reqBody, &resp, 2*time.Minute); err != nil {
		return err
	}

	fmt.Println(resp.Message.Content)
	if resp.TraceID != "" {
		fmt.Fprintf(os.Stderr, "[chatctl] trace: %s\n", resp.TraceID)
	}
	return nil
}

// runFeedback handles the feedback command
func runFeedback(cmd *cobra.Command, args []string) error {
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid feedback value %q: %w", args[1], err)
	}

	reqBody := feedbackRequest{
		TraceID: args[0],
		Value:   value,
		Comment: feedbackComment,
	}

	if err := postJSON(serverURL+"/v1/feedback", reqBody, nil, 30*time.Second); err != nil {
		return err
	}

	fmt.Println("Feedback recorded")
	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", health.Status)
	fmt.Printf("Server URL: %s\n", serverURL)

	return nil
}

// postJSON posts a JSON body and decodes the response into out when non-nil.
func postJSON(url string, body, out any, timeout time.Duration) error {
	reqJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: timeout,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
