package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Client is a minimal Bot API client: long polling plus the handful of
// methods the bot calls. No webhooks.
type Client struct {
	token      string
	apiBase    string
	httpClient *http.Client
}

// NewClient creates the client. apiBase overrides the Bot API host, ""
// selects the production endpoint.
func NewClient(token, apiBase string) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Client{
		token:   token,
		apiBase: apiBase,
		// Long poll requests hold the connection open for the poll
		// timeout, the client timeout must exceed it.
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
}

// call posts params as JSON and decodes the result payload into out.
func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("сериализация параметров %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("создание запроса %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("вызов %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("чтение ответа %s: %w", method, err)
	}

	var envelope struct {
		apiResponse
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("разбор ответа %s: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("ошибка Telegram API в %s: код %d, %s", method, envelope.ErrorCode, envelope.Description)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("разбор результата %s: %w", method, err)
		}
	}
	return nil
}

// GetMe verifies the token and returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long polls for updates after offset. timeout is the server
// hold time in seconds.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	params := map[string]interface{}{
		"offset":          offset,
		"timeout":         timeout,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends text to the chat, optionally with an inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboardMarkup) (*Message, error) {
	params := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if keyboard != nil {
		params["reply_markup"] = keyboard
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessageText rewrites an already sent message, dropping any keyboard
// it carried.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	params := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	return c.call(ctx, "editMessageText", params, nil)
}

// AnswerCallbackQuery acknowledges a button press so the client stops
// showing the progress indicator.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	params := map[string]interface{}{
		"callback_query_id": callbackID,
	}
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// SendChatAction shows "typing..." while a reply is being generated.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	params := map[string]interface{}{
		"chat_id": chatID,
		"action":  action,
	}
	return c.call(ctx, "sendChatAction", params, nil)
}
