// Package telegram sends run summaries via the Telegram Bot API.
// It formats the newest scanned date's gappers into a MarkdownV2 message and
// delivers it with retry logic.
package telegram

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Traderyo93/gapdash/internal/models"
	"github.com/Traderyo93/gapdash/internal/pipeline"
)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	topN           int
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration, topN int) (*Client, error) {
	return NewClientWithEndpoint(botToken, chatID, tgbotapi.APIEndpoint, &http.Client{Timeout: 30 * time.Second},
		maxRetries, retryDelayBase, topN)
}

// NewClientWithEndpoint creates a client against a custom Bot API endpoint
// (format "https://host/bot%s/%s").
func NewClientWithEndpoint(botToken, chatID, endpoint string, httpClient *http.Client, maxRetries int, retryDelayBase time.Duration, topN int) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	if topN <= 0 {
		topN = 10
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		topN:           topN,
	}, nil
}

// SendRunSummary sends the gappers of the newest scanned date in report.
// Reports without qualified events are not sent.
func (c *Client) SendRunSummary(report *pipeline.RunReport) error {
	latest, ok := report.Latest()
	if !ok {
		return nil
	}
	return c.send(formatSummary(latest, report, c.topN))
}

func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatSummary lists the top gappers of one date, largest gap first.
func formatSummary(result pipeline.DateResult, report *pipeline.RunReport, topN int) string {
	events := append([]models.GapEvent(nil), result.Qualified...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].GapPct > events[j].GapPct
	})

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Gappers for %s*\n", escapeMarkdownV2(result.Date))
	fmt.Fprintf(&b, "%s\n\n", escapeMarkdownV2(fmt.Sprintf("%d qualified of %d candidates", len(events), result.Candidates)))

	for i, e := range events {
		if i == topN {
			fmt.Fprintf(&b, "%s\n", escapeMarkdownV2(fmt.Sprintf("... and %d more", len(events)-topN)))
			break
		}
		direction := "📈"
		if e.OpenToClosePct < 0 {
			direction = "📉"
		}
		fmt.Fprintf(&b, "%d\\. *%s* gap *%s*\n", i+1,
			escapeMarkdownV2(e.Ticker), escapeMarkdownV2(fmt.Sprintf("+%.1f%%", e.GapPct)))
		fmt.Fprintf(&b, "   %s O→C %s, HOD %s at %s\n", direction,
			escapeMarkdownV2(fmt.Sprintf("%+.1f%%", e.OpenToClosePct)),
			escapeMarkdownV2(fmt.Sprintf("%+.1f%%", e.Extrema.HighOfDayPct)),
			escapeMarkdownV2(e.Extrema.HodTime))
	}

	if report != nil && report.Dashboard != nil {
		s := report.Dashboard.Summary
		fmt.Fprintf(&b, "\n%s\n", escapeMarkdownV2(fmt.Sprintf("History: %d gappers, avg gap %.1f%%, avg O-to-C %.1f%%",
			s.TotalGappers, s.AvgGapPct, s.AvgOpenToClose)))
	}
	if report != nil && len(report.Errors) > 0 {
		fmt.Fprintf(&b, "⚠️ %s\n", escapeMarkdownV2(fmt.Sprintf("%d dates failed to scan", len(report.Errors))))
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
