// Package notify sends staff notifications to a Telegram chat.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bakehouse/ordering/internal/domain"
)

const DefaultTelegramURL = "https://api.telegram.org"

type Telegram struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
}

func NewTelegram(baseURL, token, chatID string, client *http.Client) *Telegram {
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	return &Telegram{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		chatID:     chatID,
		httpClient: client,
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send posts a Markdown message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if t.token == "" || t.chatID == "" {
		return fmt.Errorf("telegram credentials not configured")
	}

	data, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text, ParseMode: "Markdown"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

// markdownEscaper escapes the characters legacy Markdown treats as entity markers.
var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return escapeMarkdown(s)
}

func InvoiceMessage(e domain.InvoiceReceivedEvent) string {
	supplier := e.SupplierName
	if supplier == "" {
		supplier = "Neznámý"
	}
	amount := "N/A"
	if !e.TotalAmount.IsZero() {
		amount = e.TotalAmount.String() + " Kč"
	}

	var b strings.Builder
	b.WriteString("🧾 *Nová faktura přijata!*\n\n")
	fmt.Fprintf(&b, "📦 Dodavatel: %s\n", escapeMarkdown(supplier))
	fmt.Fprintf(&b, "📄 Číslo faktury: %s\n", orNA(e.InvoiceNumber))
	fmt.Fprintf(&b, "💰 Částka: %s\n", amount)
	fmt.Fprintf(&b, "📅 Datum: %s\n", orNA(e.InvoiceDate))
	fmt.Fprintf(&b, "📊 Počet položek: %d\n", e.ItemsCount)
	if e.Unmapped > 0 {
		fmt.Fprintf(&b, "❓ Nenamapované kódy: %d\n", e.Unmapped)
	}
	b.WriteString("\n✅ Připraveno ke zpracování")
	return b.String()
}

func OrderMessage(e domain.OrderCreatedEvent, customer string) string {
	if customer == "" {
		customer = e.UserID
	}

	var b strings.Builder
	b.WriteString("🛒 *Nová objednávka!*\n\n")
	fmt.Fprintf(&b, "👤 Zákazník: %s\n", escapeMarkdown(customer))
	fmt.Fprintf(&b, "📅 Datum dodání: %s\n", orNA(e.Date))
	fmt.Fprintf(&b, "📊 Počet položek: %d\n", len(e.Items))
	fmt.Fprintf(&b, "💰 Částka: %s Kč", e.Total.StringFixed(2))
	return b.String()
}
