// Command genmock generates a synthetic CMIP6 ensemble whose climate
// sensitivities are known, for the ETL and integration test suites. It
// writes the field messages as JSON lines and the estimates the real domain
// package derives from them, and can publish the messages to Kafka.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/cmip6_fields.jsonl \
//	  -expected-out data/mock/expected_estimates.json \
//	  -brokers localhost:9092 -topic cmip6-run-fields
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
	"github.com/couchcryptid/climate-ecs-etl/internal/mockdata"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	opts := mockdata.DefaultOptions()

	out := flag.String("out", "", "output path for the field message fixture (JSON lines)")
	expectedOut := flag.String("expected-out", "", "output path for the expected estimates (JSON)")
	brokers := flag.String("brokers", "", "comma-separated Kafka brokers to publish to (optional)")
	topic := flag.String("topic", "cmip6-run-fields", "Kafka topic to publish to")
	flag.IntVar(&opts.Years, "years", opts.Years, "years per run")
	flag.IntVar(&opts.ChunkYears, "chunk-years", opts.ChunkYears, "years per message")
	flag.IntVar(&opts.StepsPerYear, "steps-per-year", opts.StepsPerYear, "time steps per year (12 monthly, 1 annual)")
	flag.BoolVar(&opts.Fluxes, "fluxes", false, "emit rsdt/rsut/rlut instead of a net imbalance")
	flag.Parse()

	if *out == "" && *brokers == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out or -brokers")
	}

	// Set a fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	msgs, err := mockdata.Messages(opts)
	if err != nil {
		return err
	}
	log.Printf("generated %d messages for %d models", len(msgs), len(opts.Models))

	if *out != "" {
		if err := writeLines(*out, msgs); err != nil {
			return fmt.Errorf("writing fixture: %w", err)
		}
		log.Printf("wrote fixture: %s", *out)
	}

	if *expectedOut != "" {
		estimates, err := expected(msgs, opts)
		if err != nil {
			return err
		}
		if err := writeJSON(*expectedOut, estimates); err != nil {
			return fmt.Errorf("writing expected estimates: %w", err)
		}
		log.Printf("wrote expected estimates: %s", *expectedOut)
		printStats(estimates, opts)
	}

	if *brokers != "" {
		if err := publish(strings.Split(*brokers, ","), *topic, msgs); err != nil {
			return fmt.Errorf("publishing: %w", err)
		}
		log.Printf("published %d messages to %s", len(msgs), *topic)
	}
	return nil
}

// expected runs the messages through the same reduction and estimation the
// service applies.
func expected(msgs []domain.FieldMessage, opts mockdata.Options) ([]domain.Estimate, error) {
	ens := make(domain.Ensemble)
	for _, msg := range msgs {
		series, err := domain.ToRunSeries(msg, domain.Reducer{})
		if err != nil {
			return nil, fmt.Errorf("reduce %s: %w", mockdata.Key(msg), err)
		}
		ens.Put(series.SourceID, series.ExperimentID, series.VariableID, series.YearOffset, series.Values)
	}

	cfg := domain.GregoryConfig{
		Reference:   opts.Reference,
		Forced:      opts.Forced,
		WindowYears: opts.Years,
		Doublings:   opts.Doublings,
	}
	estimates := make([]domain.Estimate, 0, len(opts.Models))
	for _, model := range ens.Models() {
		est, err := domain.EstimateModel(model, ens[model], cfg)
		if err != nil {
			return nil, err
		}
		estimates = append(estimates, est)
	}
	return estimates, nil
}

func publish(brokers []string, topic string, msgs []domain.FieldMessage) error {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchBytes:   50e6,
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := w.WriteMessages(ctx, kafkago.Message{
			Key:     []byte(mockdata.Key(msg)),
			Value:   data,
			Headers: []kafkago.Header{{Key: "producer", Value: []byte("genmock")}},
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeLines(path string, msgs []domain.FieldMessage) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, msg := range msgs {
		if err := enc.Encode(msg); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(estimates []domain.Estimate, opts mockdata.Options) {
	want := make(map[domain.ModelID]float64, len(opts.Models))
	for _, m := range opts.Models {
		want[m.ID] = m.Sensitivity
	}
	fmt.Println()
	fmt.Printf("%-16s %8s %8s\n", "model", "ecs", "target")
	for _, est := range estimates {
		fmt.Printf("%-16s %8.3f %8.3f\n", est.SourceID, est.Sensitivity, want[est.SourceID])
	}
}
