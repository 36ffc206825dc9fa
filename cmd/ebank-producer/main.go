// ebank-producer publishes payment events to the transactions topic for
// local smoke testing. Events come from a JSON file (one object per
// line) and are keyed by IBAN, so events of one account stay on one
// partition.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"ebank/internal/config"
	applog "ebank/internal/log"
	"ebank/internal/stream"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo}).WithComponent(applog.ComponentStream)

	file := flag.String("file", "", "path to a file with one payment event JSON object per line")
	flag.Parse()
	if *file == "" {
		logger.Error("missing -file argument")
		os.Exit(1)
	}

	cfg := config.Load()

	producer := stream.NewKafkaProducer(stream.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})
	defer producer.Close()

	f, err := os.Open(*file)
	if err != nil {
		logger.Error("open events file", applog.FieldError, err)
		os.Exit(1)
	}
	defer f.Close()

	ctx := context.Background()
	published := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		// Only the key is needed here; the aggregator validates the rest.
		var event struct {
			IBAN string `json:"iban"`
		}
		if err := json.Unmarshal(line, &event); err != nil || event.IBAN == "" {
			logger.Warn("skipping line without iban", applog.FieldError, err)
			continue
		}

		if err := producer.Publish(ctx, []byte(event.IBAN), append([]byte(nil), line...)); err != nil {
			logger.Error("publish event", applog.FieldIBAN, event.IBAN, applog.FieldError, err)
			os.Exit(1)
		}
		published++
	}
	if err := scanner.Err(); err != nil {
		logger.Error("read events file", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("events published", "count", published, applog.FieldTopic, cfg.KafkaTopic)
}
