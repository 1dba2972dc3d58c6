package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification carries the context of a validated arbitrage opportunity.
type Notification struct {
	Pool           string
	Timestamp      time.Time
	PoolPrice      decimal.Decimal
	ReferencePrice decimal.Decimal
	DivergencePct  decimal.Decimal
	NetProfitUSD   decimal.Decimal
	ROIPct         decimal.Decimal
	TradeSizeETH   decimal.Decimal
	Direction      string
	Channels       []string
	Warnings       []string
}

// Notifier delivers opportunity alerts.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram alert sender.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify posts the rendered opportunity through the sendMessage endpoint.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("pool", note.Pool).
		Str("direction", note.Direction).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("opportunity alert delivered (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Aerodrome Arbitrage Alert]\n")
	builder.WriteString(fmt.Sprintf("Pool: %s\n", note.Pool))
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", note.Timestamp.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Aerodrome: $%s\n", note.PoolPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Binance: $%s\n", note.ReferencePrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Divergence: %s%%\n", note.DivergencePct.StringFixed(3)))
	builder.WriteString(fmt.Sprintf("Direction: %s\n", note.Direction))
	builder.WriteString(fmt.Sprintf("Net profit: $%s on %s ETH (ROI %s%%)\n",
		note.NetProfitUSD.StringFixed(2), note.TradeSizeETH.String(), note.ROIPct.StringFixed(3)))
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if len(note.Warnings) > 0 {
		builder.WriteString(fmt.Sprintf("Warnings: %s\n", strings.Join(note.Warnings, "; ")))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
