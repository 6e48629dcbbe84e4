//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"agritrust/pkg/platform/audit"
	"agritrust/pkg/platform/audit/publishers/kafka"
	"agritrust/pkg/testutil/containers"
)

func TestPublisherRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	broker := containers.NewRedpandaContainer(t)

	publisher, err := kafka.New(ctx, broker.Brokers, "agritrust.audit")
	if err != nil {
		t.Fatalf("create publisher: %v", err)
	}
	defer publisher.Close()

	seq := uint64(3)
	sent := audit.Event{
		ID:          uuid.New(),
		Category:    audit.CategoryCompliance,
		Action:      string(audit.EventPracticeLogged),
		Actor:       "farmer-a",
		Subject:     "farmer-a",
		Sequence:    &seq,
		Detail:      "Cover Cropping",
		LogicalTime: 12,
		Timestamp:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := publisher.Emit(ctx, sent); err != nil {
		t.Fatalf("emit: %v", err)
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics("agritrust.audit"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		t.Fatalf("create consumer: %v", err)
	}
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	if err := fetches.Err(); err != nil {
		t.Fatalf("poll: %v", err)
	}

	records := fetches.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if string(records[0].Key) != "farmer-a" {
		t.Fatalf("expected record keyed by subject, got %q", records[0].Key)
	}

	var got audit.Event
	if err := json.Unmarshal(records[0].Value, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != sent.ID || got.Action != sent.Action || got.Sequence == nil || *got.Sequence != seq {
		t.Fatalf("event mismatch: got %+v", got)
	}
}
