package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
	"github.com/mwvgroup/pittgoogle-user/internal/features"
)

const classifyPath = "/v1/classify"

// Remote sends the features table to an inference sidecar that hosts the
// model family's runtime.
type Remote struct {
	model   *Model
	url     string
	classes int
	client  *http.Client
}

type classifyRequest struct {
	Model         string         `json:"model"`
	Family        string         `json:"family"`
	Device        string         `json:"device"`
	Digest        string         `json:"digest"`
	Deterministic bool           `json:"deterministic"`
	Rows          []features.Row `json:"rows"`
}

type classifyResponse struct {
	Probabilities json.RawMessage `json:"probabilities"`
	Aux           map[string]any  `json:"aux"`
}

// NewRemote returns a classifier for model served at baseURL. classes is
// the number of probabilities the model emits.
func NewRemote(model *Model, baseURL string, classes int, client *http.Client) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Remote{
		model:   model,
		url:     strings.TrimRight(baseURL, "/") + classifyPath,
		classes: classes,
		client:  client,
	}
}

// Name returns the model family.
func (r *Remote) Name() string {
	return r.model.Family
}

// Model returns the model reference.
func (r *Remote) Model() *Model {
	return r.model
}

// Classify runs inference over t.
func (r *Remote) Classify(ctx context.Context, t *features.Table) (*Prediction, error) {
	if t == nil || t.Len() == 0 {
		return nil, fmt.Errorf("%w: empty light curve", events.ErrClassificationUnavailable)
	}
	art, err := r.model.Artifact()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(classifyRequest{
		Model:         art.Path,
		Family:        r.model.Family,
		Device:        r.model.Device,
		Digest:        art.Digest,
		Deterministic: true,
		Rows:          t.Rows,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode request: %v", events.ErrClassificationUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", events.ErrClassificationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: inference request failed: %v", events.ErrClassificationUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read inference response: %v", events.ErrClassificationUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: inference returned %d: %s", events.ErrClassificationUnavailable, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out classifyResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: invalid inference response: %v", events.ErrClassificationUnavailable, err)
	}
	probs, err := flatten(out.Probabilities)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid probabilities: %v", events.ErrClassificationUnavailable, err)
	}
	if err := checkProbabilities(probs, r.classes); err != nil {
		return nil, err
	}
	return &Prediction{Probabilities: probs, Aux: out.Aux}, nil
}

// flatten reads a JSON number array of any nesting depth in row-major order.
func flatten(raw json.RawMessage) ([]float64, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing probabilities")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	var out []float64
	var walk func(any) error
	walk = func(v any) error {
		switch x := v.(type) {
		case float64:
			out = append(out, x)
		case []any:
			for _, item := range x {
				if err := walk(item); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("unexpected value %v", v)
		}
		return nil
	}
	if err := walk(v); err != nil {
		return nil, err
	}
	return out, nil
}
