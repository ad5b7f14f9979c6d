package main

import (
	"fmt"

	kafkaadapter "github.com/couchcryptid/groundwater-etl/internal/adapter/kafka"
	"github.com/couchcryptid/groundwater-etl/internal/config"
	"github.com/spf13/cobra"
)

func newPublishCmd() *cobra.Command {
	var (
		createTopic bool
		partitions  int
	)
	cmd := &cobra.Command{
		Use:   "publish FILE",
		Short: "Publish upload rows to the source topic",
		Long: `Publishes every CSV row as a flat JSON message keyed by siteCode.
Brokers and topic come from KAFKA_BROKERS and KAFKA_SOURCE_TOPIC.`,
		Example: `  ingest publish data/mock/groundwater_sample.csv --create-topic`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if partitions < 1 {
				return fmt.Errorf("partitions must be >= 1, got %d", partitions)
			}

			rows, err := readUpload(args[0])
			if err != nil {
				return err
			}

			if createTopic {
				if err := kafkaadapter.CreateTopics(cfg.KafkaBrokers[0], partitions, cfg.KafkaSourceTopic, cfg.KafkaSinkTopic); err != nil {
					return err
				}
			}

			producer := kafkaadapter.NewRowProducer(cfg.KafkaBrokers, cfg.KafkaSourceTopic)
			defer producer.Close()

			if err := producer.PublishRows(cmd.Context(), rows); err != nil {
				return err
			}
			cmd.Printf("published %d rows to %s\n", len(rows), cfg.KafkaSourceTopic)
			return nil
		},
	}

	cmd.Flags().BoolVar(&createTopic, "create-topic", false, "create the source and sink topics first")
	cmd.Flags().IntVar(&partitions, "partitions", 1, "partition count for --create-topic")
	return cmd
}
