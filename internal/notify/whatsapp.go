package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MetaWhatsAppSender posts text messages to the WhatsApp Cloud API.
// Target.Address is the group's WhatsApp id.
type MetaWhatsAppSender struct {
	baseURL    string
	token      string
	phoneID    string
	httpClient *http.Client
}

func NewMetaWhatsAppSender(baseURL, token, phoneID string) *MetaWhatsAppSender {
	return &MetaWhatsAppSender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		phoneID:    phoneID,
		httpClient: &http.Client{},
	}
}

func (s *MetaWhatsAppSender) Channel() Channel {
	return ChannelWhatsApp
}

type metaTextMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             metaText `json:"text"`
}

type metaText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

func (s *MetaWhatsAppSender) Send(ctx context.Context, target Target, msg Message) error {
	if target.Address == "" {
		return fmt.Errorf("%w: group %q has no WhatsApp id", ErrNoAddress, target.Name)
	}

	body, err := json.Marshal(metaTextMessage{
		MessagingProduct: "whatsapp",
		To:               target.Address,
		Type:             "text",
		Text: metaText{
			Body:       msg.Text,
			PreviewURL: msg.Link != "",
		},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("whatsapp api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
