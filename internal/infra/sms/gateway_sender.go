// internal/infra/sms/gateway_sender.go
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"hall_maintenance_service/internal/domain/delivery"
	"hall_maintenance_service/internal/domain/hall"
)

// GatewaySender implements the delivery.Sender interface for the SMS
// channel by posting to an HTTP SMS gateway.
type GatewaySender struct {
	client *http.Client
	url    string
	token  string
	from   string
}

type smsRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

func NewGatewaySender(url, token, from string) *GatewaySender {
	return &GatewaySender{
		// The caller supplies a per-attempt ctx timeout; this is a backstop.
		client: &http.Client{Timeout: 30 * time.Second},
		url:    url,
		token:  token,
		from:   from,
	}
}

// Send posts the message to the gateway. 4xx responses are permanent
// failures (bad number, rejected sender); 5xx and transport errors are
// transient.
func (s *GatewaySender) Send(ctx context.Context, contact *hall.Contact, message string) error {
	if !contact.Phone.Valid || contact.Phone.String == "" {
		return delivery.NewPermanent("contact has no phone number", nil)
	}

	payload, err := json.Marshal(smsRequest{From: s.from, To: contact.Phone.String, Message: message})
	if err != nil {
		return delivery.NewPermanent("failed to encode sms payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return delivery.NewPermanent("failed to build sms request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return delivery.NewTransient("sms gateway request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return delivery.NewPermanent(fmt.Sprintf("sms gateway rejected message (status %d)", resp.StatusCode), nil)
	default:
		return delivery.NewTransient(fmt.Sprintf("sms gateway error (status %d)", resp.StatusCode), nil)
	}
}
