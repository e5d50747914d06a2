package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"screentime/internal/config"
)

// Sensor is one named state pushed to the state sink.
type Sensor struct {
	Entity     string         `json:"entity"`
	State      any            `json:"state"`
	Unit       string         `json:"unit,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// HomeAssistantSink sets entity states through the Home Assistant REST API.
type HomeAssistantSink struct {
	cfg    config.HomeAssistantConfig
	client *http.Client
	now    func() time.Time
}

func NewHomeAssistant(cfg config.HomeAssistantConfig) *HomeAssistantSink {
	return &HomeAssistantSink{cfg: cfg, client: newHTTPClient(cfg.Timeout), now: time.Now}
}

func (s *HomeAssistantSink) Name() string { return "homeassistant" }

func (s *HomeAssistantSink) Publish(ctx context.Context, sensor Sensor) error {
	if strings.TrimSpace(s.cfg.Token) == "" || strings.TrimSpace(s.cfg.URL) == "" {
		return ErrNotConfigured
	}
	attrs := make(map[string]any, len(sensor.Attributes)+3)
	for k, v := range sensor.Attributes {
		attrs[k] = v
	}
	if sensor.Unit != "" {
		attrs["unit_of_measurement"] = sensor.Unit
	}
	attrs["state_class"] = "measurement"
	attrs["last_updated"] = s.now().Format(time.RFC3339)

	body, err := json.Marshal(map[string]any{"state": sensor.State, "attributes": attrs})
	if err != nil {
		return err
	}
	endpoint := strings.TrimRight(s.cfg.URL, "/") + "/api/states/" + sensor.Entity
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Sink: s.Name() + " " + sensor.Entity, Code: resp.StatusCode, Body: snippet(b, 100)}
	}
	return nil
}
