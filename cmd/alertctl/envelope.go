package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
	"github.com/mwvgroup/pittgoogle-user/internal/processor"
)

func envelopeCmd() *cobra.Command {
	var (
		attrs       map[string]string
		publishTime string
		messageID   string
	)

	cmd := &cobra.Command{
		Use:   "envelope FILE",
		Short: "Wrap a raw alert into a Pub/Sub push envelope",
		Long: `Read the Avro alert in FILE and print the JSON body Pub/Sub would POST to
the service. kafka.timestamp defaults to the publish time.

  alertctl envelope alert.avro --attr schema=elasticc | curl -d @- localhost:8080/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read alert: %w", err)
			}
			env, err := buildEnvelope(data, attrs, publishTime, messageID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(env)
		},
	}

	cmd.Flags().StringToStringVar(&attrs, "attr", nil, "message attribute as key=value (repeatable)")
	cmd.Flags().StringVar(&publishTime, "publish-time", "", "RFC3339 publish time (default: now)")
	cmd.Flags().StringVar(&messageID, "message-id", "", "message id (default: random)")
	return cmd
}

// buildEnvelope wraps data the way a push subscription delivers it.
func buildEnvelope(data []byte, attrs map[string]string, publishTime, messageID string) (*events.PushEnvelope, error) {
	ts := time.Now().UTC()
	if publishTime != "" {
		var err error
		if ts, err = events.ParsePublishTime(publishTime); err != nil {
			return nil, err
		}
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	attributes := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		attributes[k] = v
	}
	if _, ok := attributes[processor.KafkaTimestampAttr]; !ok {
		attributes[processor.KafkaTimestampAttr] = strconv.FormatInt(ts.UnixMilli(), 10)
	}

	return &events.PushEnvelope{
		Message: &events.PushMessage{
			Data:           data,
			Attributes:     attributes,
			MessageID:      messageID,
			PublishTimeRaw: ts.Format(time.RFC3339Nano),
		},
		Subscription: "projects/local/subscriptions/alertctl",
	}, nil
}
