// Package notify delivers reminder messages to external webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"eventcal/internal/dateutil"
	"eventcal/internal/model"
)

var (
	ErrNoReminder = errors.New("notify: event has no reminder to send")
	ErrEmptyURL   = errors.New("notify: webhook URL is empty")
)

// Notifier delivers one reminder. A nil error means the remote end accepted
// it. Implementations must not retry; the scheduler retries on its next cycle.
type Notifier interface {
	Notify(ctx context.Context, url string, ev model.Event) error
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, url string, ev model.Event) error

func (f Func) Notify(ctx context.Context, url string, ev model.Event) error {
	return f(ctx, url, ev)
}

// WeComNotifier posts markdown messages to a WeCom group robot webhook.
type WeComNotifier struct {
	client *resty.Client
	lang   Language
}

// NewWeComNotifier builds a notifier with the given per-request timeout and
// message language ("en-US" or "zh-CN").
func NewWeComNotifier(timeout time.Duration, lang string) *WeComNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(0)
	return &WeComNotifier{client: c, lang: ParseLanguage(lang)}
}

type markdownBody struct {
	Content string `json:"content"`
}

type wecomPayload struct {
	MsgType  string       `json:"msgtype"`
	Markdown markdownBody `json:"markdown"`
}

// Notify sends ev's reminder. Any transport error or non-2xx status is a
// delivery failure.
func (n *WeComNotifier) Notify(ctx context.Context, url string, ev model.Event) error {
	if url == "" {
		return ErrEmptyURL
	}
	if ev.Reminder == "" {
		return ErrNoReminder
	}

	payload := wecomPayload{
		MsgType:  "markdown",
		Markdown: markdownBody{Content: Message(n.lang, ev)},
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(&payload).
		Post(url)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("webhook failed with status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// Message renders the markdown body for ev in lang.
func Message(lang Language, ev model.Event) string {
	s := stringsFor(lang)
	when := ev.Reminder
	if t, err := dateutil.ParseDateTime(ev.Reminder); err == nil {
		when = FormatReminder(lang, t)
	}
	desc := ev.Description
	if desc == "" {
		desc = "-"
	}
	return strings.Join([]string{
		"### " + fmt.Sprintf(s.title, ev.Title),
		"> **" + s.time + "**: " + when,
		"> **" + s.desc + "**: " + desc,
	}, "\n\n")
}
