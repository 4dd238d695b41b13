package telegram

import (
	"bytes"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// BotAPI is a direct Telegram Bot API client, used for methods the bot
// framework does not cover and for out-of-band admin notifications.
type BotAPI struct {
	token  string
	client *resty.Client
}

// NewBotAPI creates a new direct Telegram Bot API client.
func NewBotAPI(token string) *BotAPI {
	return &BotAPI{
		token:  token,
		client: resty.New().SetBaseURL("https://api.telegram.org/bot" + token),
	}
}

// WithBaseURL points the client at a self-hosted Bot API server instead of
// api.telegram.org. The bot token path segment is appended the same way.
func (b *BotAPI) WithBaseURL(url string) *BotAPI {
	b.client.SetBaseURL(url + "/bot" + b.token)
	return b
}

// Call makes a raw API call to the Telegram Bot API.
func (b *BotAPI) Call(method string, params map[string]interface{}) (string, error) {
	resp, err := b.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(params).
		Post("/" + method)
	if err != nil {
		return "", fmt.Errorf("telegram API call %s failed: %w", method, err)
	}
	return resp.String(), nil
}

// SendMessage sends a text message.
func (b *BotAPI) SendMessage(chatID string, text string, replyMarkup interface{}) (string, error) {
	params := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if replyMarkup != nil {
		params["reply_markup"] = replyMarkup
	}
	return b.Call("sendMessage", params)
}

// EditMessageText edits a message's text.
func (b *BotAPI) EditMessageText(chatID string, messageID int, text string, replyMarkup interface{}) (string, error) {
	params := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if replyMarkup != nil {
		params["reply_markup"] = replyMarkup
	}
	return b.Call("editMessageText", params)
}

// DeleteMessage deletes a message.
func (b *BotAPI) DeleteMessage(chatID string, messageID int) (string, error) {
	return b.Call("deleteMessage", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
	})
}

// GetChatMember gets a chat member's status, used for join-channel checks.
func (b *BotAPI) GetChatMember(chatID, userID string) (string, error) {
	return b.Call("getChatMember", map[string]interface{}{
		"chat_id": chatID,
		"user_id": userID,
	})
}

// AnswerCallbackQuery answers an inline callback query.
func (b *BotAPI) AnswerCallbackQuery(callbackQueryID, text string, showAlert bool) (string, error) {
	return b.Call("answerCallbackQuery", map[string]interface{}{
		"callback_query_id": callbackQueryID,
		"text":              text,
		"show_alert":        showAlert,
	})
}

// SendPhoto sends a photo by URL or file_id.
func (b *BotAPI) SendPhoto(chatID, photo, caption string) (string, error) {
	return b.Call("sendPhoto", map[string]interface{}{
		"chat_id":    chatID,
		"photo":      photo,
		"caption":    caption,
		"parse_mode": "HTML",
	})
}

// SendDocument sends a document from memory.
func (b *BotAPI) SendDocument(chatID string, fileData []byte, filename, caption string) (string, error) {
	resp, err := b.client.R().
		SetFileReader("document", filename, bytes.NewReader(fileData)).
		SetFormData(map[string]string{
			"chat_id":    chatID,
			"caption":    caption,
			"parse_mode": "HTML",
		}).
		Post("/sendDocument")
	if err != nil {
		return "", err
	}
	return resp.String(), nil
}

// SetWebhook sets the webhook URL.
func (b *BotAPI) SetWebhook(url string) (string, error) {
	return b.Call("setWebhook", map[string]interface{}{
		"url": url,
	})
}
