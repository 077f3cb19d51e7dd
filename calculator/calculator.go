// Package calculator is a typed RPC client for the external difficulty and
// performance Calculator service; the math itself is delegated, never
// computed here. The score pipeline and the beatmap-attribute endpoint are
// the only consumers.
package calculator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/aquareto/aquareto-server/common/config"
)

// Request mirrors the documented JSON body for both /performance and
// /difficulty: `{beatmap_id, beatmap_file, checksum, accuracy, combo, mods,
// statistics, ruleset}`.
type Request struct {
	BeatmapId   uint              `json:"beatmap_id"`
	BeatmapFile []byte            `json:"beatmap_file,omitempty"`
	Checksum    string            `json:"checksum"`
	Accuracy    float64           `json:"accuracy"`
	Combo       int               `json:"combo"`
	Mods        []string          `json:"mods"`
	Statistics  map[string]int    `json:"statistics"`
	Ruleset     int               `json:"ruleset"`
}

// Attributes is the typed union response keyed by ruleset; each ruleset
// implementation only sets the fields it understands, the rest stay at
// their zero value.
type Attributes struct {
	Ruleset           int     `json:"ruleset"`
	StarRating        float64 `json:"star_rating"`
	PP                float64 `json:"pp,omitempty"`
	AimDifficulty     float64 `json:"aim_difficulty,omitempty"`
	SpeedDifficulty   float64 `json:"speed_difficulty,omitempty"`
	FlashlightRating  float64 `json:"flashlight_rating,omitempty"`
	StaminaDifficulty float64 `json:"stamina_difficulty,omitempty"`
	GreatHitWindow    float64 `json:"great_hit_window,omitempty"`
	MaxCombo          int     `json:"max_combo,omitempty"`
	// Supported reports whether this ruleset's calculator implementation
	// could compute a result at all; false means the caller should fall
	// back to score.FallbackPP when config.PPFallbackEnabled.
	Supported bool `json:"supported"`
}

// Client is a pooled HTTP client bound to config.CalculatorBaseURL.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewFromConfig builds a Client using process-wide configuration.
func NewFromConfig() *Client {
	return &Client{
		http:    &http.Client{Timeout: time.Duration(config.CalculatorTimeoutSeconds) * time.Second},
		baseURL: config.CalculatorBaseURL,
	}
}

func (c *Client) post(ctx context.Context, path string, req Request) (*Attributes, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal calculator request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build calculator request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "calculator request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotImplemented {
		return &Attributes{Ruleset: req.Ruleset, Supported: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("calculator returned status %d", resp.StatusCode)
	}

	var attrs Attributes
	if err := json.NewDecoder(resp.Body).Decode(&attrs); err != nil {
		return nil, errors.Wrap(err, "decode calculator response")
	}
	attrs.Supported = true
	return &attrs, nil
}

// Performance requests pp + difficulty attributes for a completed play.
func (c *Client) Performance(ctx context.Context, req Request) (*Attributes, error) {
	attrs, err := c.post(ctx, "/performance", req)
	return attrs, errors.Wrap(err, "calculator performance request")
}

// Difficulty requests difficulty-only attributes (no accuracy/combo
// required), used by the beatmap-attributes endpoint.
func (c *Client) Difficulty(ctx context.Context, req Request) (*Attributes, error) {
	attrs, err := c.post(ctx, "/difficulty", req)
	return attrs, errors.Wrap(err, "calculator difficulty request")
}
