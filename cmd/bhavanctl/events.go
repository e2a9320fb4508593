package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/bhavan/backend/internal/infrastructure/event"
	"github.com/bhavan/backend/internal/infrastructure/messaging"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect domain events forwarded to Kafka",
	}
	cmd.AddCommand(a.eventsTailCmd(), a.eventsTopicsCmd())
	return cmd
}

func (a *app) eventsTopicsCmd() *cobra.Command {
	var prefix string
	return withTopicPrefix(&cobra.Command{
		Use:   "topics",
		Short: "List the topic of every known event type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, t := range knownEventTypes() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-32s %s\n", t, messaging.TopicName(prefix, t))
			}
			return nil
		},
	}, &prefix)
}

func (a *app) eventsTailCmd() *cobra.Command {
	var (
		brokers []string
		group   string
		prefix  string
	)
	cmd := &cobra.Command{
		Use:   "tail [event-type...]",
		Short: "Print forwarded events as they arrive",
		Long: `Join a consumer group and print forwarded domain events until interrupted.
Without arguments every known event type is followed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(brokers) == 0 {
				brokers = a.v.GetStringSlice("kafka-brokers")
			}
			types := args
			if len(types) == 0 {
				types = knownEventTypes()
			}
			topics := make([]string, len(types))
			for i, t := range types {
				topics[i] = messaging.TopicName(prefix, t)
			}

			serializer := event.NewEventSerializer()
			event.RegisterAllEvents(serializer)
			consumer, err := messaging.NewKafkaConsumer(brokers, group, topics, serializer)
			if err != nil {
				return err
			}
			defer func() { _ = consumer.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return tailEvents(ctx, cmd, consumer, a.jsonOutput(), a.logger())
		},
	}
	cmd.Flags().StringSliceVar(&brokers, "brokers", nil, "Kafka brokers (or BHAVANCTL_KAFKA_BROKERS)")
	cmd.Flags().StringVar(&group, "group", "bhavanctl-tail", "Consumer group id")
	return withTopicPrefix(cmd, &prefix)
}

func withTopicPrefix(cmd *cobra.Command, prefix *string) *cobra.Command {
	cmd.Flags().StringVar(prefix, "topic-prefix", messaging.DefaultTopicPrefix, "Topic prefix used by the forwarder")
	return cmd
}

// eventRunner is the part of messaging.KafkaConsumer tail drives
type eventRunner interface {
	Run(ctx context.Context, fn func(messaging.Delivery) error, onError func(kafka.Message, error)) error
}

func tailEvents(ctx context.Context, cmd *cobra.Command, consumer eventRunner, asJSON bool, log *zap.Logger) error {
	out := cmd.OutOrStdout()
	return consumer.Run(ctx, func(d messaging.Delivery) error {
		if asJSON {
			payload, err := json.Marshal(d.Event)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "{\"topic\":%q,\"offset\":%d,\"event\":%s}\n", d.Topic, d.Offset, payload)
			return err
		}
		_, err := fmt.Fprintf(out, "%s  %-28s %s/%s  %s@%d\n",
			d.Event.OccurredAt().Local().Format("15:04:05"),
			d.Event.EventType(),
			d.Event.AggregateType(),
			d.Event.AggregateID(),
			d.Topic, d.Offset,
		)
		return err
	}, func(msg kafka.Message, err error) {
		log.Warn("Skipping undecodable event",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	})
}

func knownEventTypes() []string {
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	return serializer.RegisteredTypes()
}
