package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sheetledger/internal/recurring"

	"github.com/google/uuid"
)

// ErrMalformed marks a message body that can never be handled.
var ErrMalformed = errors.New("malformed message")

// PostingMessage is one auto-posted transaction.
type PostingMessage struct {
	RuleID     int    `json:"rule_id"`
	Note       string `json:"note"`
	Currency   string `json:"currency"`
	Amount     string `json:"amount_original"`
	AmountHome string `json:"amount_home"`
	Settled    bool   `json:"settled"`
	Degraded   bool   `json:"degraded"`
}

// ReportMessage announces the outcome of a recurring-rule run.
type ReportMessage struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Period    string           `json:"period"`
	Evaluated int              `json:"evaluated"`
	Settled   int              `json:"settled"`
	Failed    int              `json:"failed"`
	Postings  []PostingMessage `json:"postings"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewReportMessage summarizes rep for sessionID.
func NewReportMessage(sessionID string, rep recurring.Report) *ReportMessage {
	msg := &ReportMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Period:    rep.Period.String(),
		Evaluated: rep.Evaluated,
		Settled:   rep.Settled,
		Failed:    rep.Failed(),
		Postings:  make([]PostingMessage, 0, len(rep.Posted)),
		Timestamp: time.Now(),
	}
	for _, p := range rep.Posted {
		msg.Postings = append(msg.Postings, PostingMessage{
			RuleID:     p.RuleID,
			Note:       p.Transaction.Note,
			Currency:   p.Transaction.Currency,
			Amount:     p.Transaction.AmountOriginal.String(),
			AmountHome: p.Transaction.AmountHome.String(),
			Settled:    p.Settled,
			Degraded:   p.Degraded,
		})
	}
	return msg
}

func (m *ReportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportMessageFromJSON(data []byte) (*ReportMessage, error) {
	var msg ReportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &msg, nil
}

// Publisher sends recurring-run reports.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// ReportNotifier publishes run reports under one routing key.
type ReportNotifier struct {
	pub        Publisher
	routingKey string
}

func NewReportNotifier(pub Publisher, routingKey string) *ReportNotifier {
	return &ReportNotifier{pub: pub, routingKey: routingKey}
}

func (n *ReportNotifier) NotifyRecurring(ctx context.Context, sessionID string, rep recurring.Report) error {
	body, err := NewReportMessage(sessionID, rep).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return n.pub.Publish(ctx, n.routingKey, body)
}

// ConsumeReports decodes report messages from the client's queue.
func (c *Client) ConsumeReports(ctx context.Context, handler func(*ReportMessage) error) error {
	return c.Consume(ctx, func(body []byte) error {
		msg, err := ReportMessageFromJSON(body)
		if err != nil {
			return err
		}
		return handler(msg)
	})
}
