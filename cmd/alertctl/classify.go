package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwvgroup/pittgoogle-user/internal/classifier"
	"github.com/mwvgroup/pittgoogle-user/internal/config"
	"github.com/mwvgroup/pittgoogle-user/internal/decoder"
	"github.com/mwvgroup/pittgoogle-user/internal/events"
	"github.com/mwvgroup/pittgoogle-user/internal/features"
	"github.com/mwvgroup/pittgoogle-user/internal/processor"
	"github.com/mwvgroup/pittgoogle-user/internal/schemamap"
	"github.com/mwvgroup/pittgoogle-user/internal/taxonomy"
)

// classifyOutput is what classify prints.
type classifyOutput struct {
	Message    *events.OutgoingMessage `json:"message"`
	Attributes map[string]string       `json:"attributes"`
	Topic      string                  `json:"topic"`
	Table      string                  `json:"table"`
	Row        map[string]any          `json:"row"`
	Features   *features.Table         `json:"features"`
}

func classifyCmd(v *viper.Viper) *cobra.Command {
	var (
		stub        string
		attrs       map[string]string
		publishTime string
	)

	cmd := &cobra.Command{
		Use:   "classify FILE",
		Short: "Run the classification pipeline locally",
		Long: `Decode the alert in FILE, classify it and print the outgoing record,
its attributes and the table row as JSON. Nothing is stored or published.

FILE is a raw Avro alert or a push envelope as printed by 'alertctl envelope'.
With --stub the model is replaced by fixed probabilities; otherwise the
inference sidecar at --inference-url is called.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read alert: %w", err)
			}
			msg, err := readMessage(data, attrs, publishTime)
			if err != nil {
				return err
			}

			cfg := &config.Config{
				Survey:        v.GetString("survey"),
				Classifier:    v.GetString("classifier"),
				ModelDir:      v.GetString("model-dir"),
				InferenceURL:  v.GetString("inference-url"),
				BrokerVersion: v.GetString("broker-version"),
				TestID:        v.GetString("testid"),
			}
			out, err := classifyLocal(cmd.Context(), cfg, stub, msg)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().String("survey", "elasticc", "survey the alert comes from")
	cmd.Flags().String("classifier", "supernnova", "deployment profile ("+strings.Join(config.Profiles(), ", ")+")")
	cmd.Flags().String("model-dir", "models", "directory holding the model artifacts")
	cmd.Flags().String("inference-url", "http://localhost:8501", "base URL of the inference sidecar")
	cmd.Flags().String("broker-version", "v0.6", "broker version recorded in the output")
	cmd.Flags().String("testid", config.NoTestID, "test id appended to resource names")
	for _, name := range []string{"survey", "classifier", "model-dir", "inference-url", "broker-version", "testid"} {
		_ = v.BindPFlag(name, cmd.Flags().Lookup(name))
	}

	cmd.Flags().StringVar(&stub, "stub", "", "comma-separated probabilities to use instead of the model")
	cmd.Flags().StringToStringVar(&attrs, "attr", nil, "message attribute as key=value, for raw alerts")
	cmd.Flags().StringVar(&publishTime, "publish-time", "", "RFC3339 publish time for raw alerts (default: now)")
	return cmd
}

// readMessage accepts either a push envelope or raw alert bytes.
func readMessage(data []byte, attrs map[string]string, publishTime string) (*events.PushMessage, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return events.ParseEnvelope(trimmed)
	}
	env, err := buildEnvelope(data, attrs, publishTime, "local")
	if err != nil {
		return nil, err
	}
	msg := env.Message
	msg.PublishTime, err = events.ParsePublishTime(msg.PublishTimeRaw)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ParseStub parses comma-separated probabilities.
func ParseStub(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	probs := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid stub probability %q: %w", p, err)
		}
		probs = append(probs, f)
	}
	return probs, nil
}

func classifyLocal(ctx context.Context, cfg *config.Config, stub string, msg *events.PushMessage) (*classifyOutput, error) {
	profile, err := cfg.Profile()
	if err != nil {
		return nil, err
	}
	names, err := cfg.Names()
	if err != nil {
		return nil, err
	}
	m, err := schemamap.Load(cfg.Survey)
	if err != nil {
		return nil, err
	}
	dec, err := decoder.New(m)
	if err != nil {
		return nil, err
	}
	policy, err := features.PolicyFor(m)
	if err != nil {
		return nil, err
	}
	mapping, err := taxonomy.Lookup(profile.Taxonomy)
	if err != nil {
		return nil, err
	}

	model := classifier.NewModel(cfg.ModelPath(profile), profile.Module)
	var clf classifier.Classifier
	if stub != "" {
		probs, err := ParseStub(stub)
		if err != nil {
			return nil, err
		}
		if clf, err = classifier.NewStatic("stub", probs); err != nil {
			return nil, err
		}
	} else {
		clf = classifier.NewRemote(model, cfg.InferenceURL, profile.Classes, &http.Client{Timeout: time.Minute})
	}

	sink := &captureSink{}
	proc, err := processor.New(processor.Deps{
		Decoder:    dec,
		SchemaMap:  m,
		Policy:     policy,
		Classifier: clf,
		Taxonomy:   mapping,
		Classes:    profile.Classes,
		Table:      sink,
		Publisher:  sink,
	}, processor.Settings{
		Module:           profile.Module,
		Table:            names.Table,
		Topic:            names.Topic,
		ClassifierName:   profile.ClassifierName,
		ClassifierParams: model.Path,
		BrokerVersion:    cfg.BrokerVersion,
	})
	if err != nil {
		return nil, err
	}

	out, err := proc.Process(ctx, msg)
	if err != nil {
		return nil, err
	}

	alertTable, err := features.Format(out.Alert, policy)
	if err != nil {
		return nil, err
	}
	return &classifyOutput{
		Message:    out.Message,
		Attributes: out.Publication.Attributes,
		Topic:      out.Publication.Topic,
		Table:      names.Table,
		Row:        out.Row.Values(),
		Features:   alertTable,
	}, nil
}

// captureSink stands in for both sinks and keeps what it was given.
type captureSink struct {
	rows         []*events.ClassificationRow
	publications []*events.Publication
}

func (s *captureSink) Insert(_ context.Context, _ string, row *events.ClassificationRow) error {
	s.rows = append(s.rows, row)
	return nil
}

func (s *captureSink) Publish(_ context.Context, pub *events.Publication) error {
	s.publications = append(s.publications, pub)
	return nil
}
