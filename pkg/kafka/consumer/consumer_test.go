// pkg/kafka/consumer/consumer_test.go
package consumer

import (
	"context"
	"testing"

	"github.com/IBM/sarama"

	pkgkafka "github.com/YaganovValera/purchase-pipeline/pkg/kafka"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
)

// Проверяем applyDefaults и validate.
func TestConfigDefaultsAndValidate(t *testing.T) {
	cases := []struct {
		name       string
		input      Config
		wantErr    bool
		wantOffset string
	}{
		{"empty", Config{}, true, "earliest"},
		{"noGroup", Config{Brokers: []string{"b1"}}, true, "earliest"},
		{"ok", Config{Brokers: []string{"b1"}, GroupID: "g"}, false, "earliest"},
		{"latest", Config{Brokers: []string{"b1"}, GroupID: "g", InitialOffset: "latest"}, false, "latest"},
		{"badOffset", Config{Brokers: []string{"b1"}, GroupID: "g", InitialOffset: "newest"}, true, "newest"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := c.input
			cfg.applyDefaults()
			if cfg.InitialOffset != c.wantOffset {
				t.Errorf("InitialOffset = %q; want %q", cfg.InitialOffset, c.wantOffset)
			}
			if cfg.Version == "" {
				t.Error("Version default not applied")
			}
			err := cfg.validate()
			if (err != nil) != c.wantErr {
				t.Errorf("validate() error = %v; wantErr=%v", err, c.wantErr)
			}
		})
	}
}

// Проверяем, что New отрабатывает ошибку валидации до Sarama.
func TestNew_InvalidConfig(t *testing.T) {
	log, _ := logger.New(logger.Config{Level: "debug", DevMode: true})
	if _, err := New(context.Background(), Config{}, log); err == nil {
		t.Fatal("Expected error for empty Config, got nil")
	}
}

func TestNew_InvalidVersion(t *testing.T) {
	log, _ := logger.New(logger.Config{Level: "debug", DevMode: true})
	cfg := Config{Brokers: []string{"b1"}, GroupID: "g", Version: "not-a-version"}
	if _, err := New(context.Background(), cfg, log); err == nil {
		t.Fatal("Expected error for invalid Version, got nil")
	}
}

// -----------------------------------------------------------------------------
// ConsumeClaim: offset-дисциплина по вердиктам
// -----------------------------------------------------------------------------

type fakeSession struct {
	ctx     context.Context
	marked  []int64
	commits int
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string           { return "member" }
func (s *fakeSession) GenerationID() int32        { return 1 }
func (s *fakeSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {
	s.marked = append(s.marked, offset)
}
func (s *fakeSession) Commit() { s.commits++ }
func (s *fakeSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {}
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.MarkOffset(msg.Topic, msg.Partition, msg.Offset+1, metadata)
}
func (s *fakeSession) Context() context.Context { return s.ctx }

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "purchases.v1" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func newClaim(offsets ...int64) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(offsets))
	for _, off := range offsets {
		ch <- &sarama.ConsumerMessage{Topic: "purchases.v1", Partition: 0, Offset: off, Value: []byte("{}")}
	}
	close(ch)
	return &fakeClaim{msgs: ch}
}

func newClaimHandler(t *testing.T, verdicts ...pkgkafka.Verdict) *consumerGroupHandler {
	t.Helper()
	log, _ := logger.New(logger.Config{Level: "debug", DevMode: true})
	i := 0
	return &consumerGroupHandler{
		log: log,
		handler: func(ctx context.Context, msg *pkgkafka.Message) pkgkafka.Verdict {
			v := verdicts[i%len(verdicts)]
			i++
			return v
		},
	}
}

// Ack: offset коммитится на каждое сообщение.
func TestConsumeClaim_AckCommitsEachMessage(t *testing.T) {
	sess := &fakeSession{ctx: context.Background()}
	h := newClaimHandler(t, pkgkafka.Ack)

	if err := h.ConsumeClaim(sess, newClaim(10, 11, 12)); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}
	if sess.commits != 3 {
		t.Errorf("commits = %d; want 3 (one per message)", sess.commits)
	}
	if len(sess.marked) != 3 || sess.marked[2] != 13 {
		t.Errorf("marked = %v; want offsets advanced past each message", sess.marked)
	}
}

// Skip эквивалентен Ack для offset'а: раздел двигается дальше.
func TestConsumeClaim_SkipCommits(t *testing.T) {
	sess := &fakeSession{ctx: context.Background()}
	h := newClaimHandler(t, pkgkafka.Ack, pkgkafka.Skip, pkgkafka.Ack)

	if err := h.ConsumeClaim(sess, newClaim(5, 6, 7)); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}
	if sess.commits != 3 {
		t.Errorf("commits = %d; want 3 (poison committed too)", sess.commits)
	}
}

// Retry: сессия завершается, offset НЕ закоммичен, хвост не тронут.
func TestConsumeClaim_RetryStopsWithoutCommit(t *testing.T) {
	sess := &fakeSession{ctx: context.Background()}
	h := newClaimHandler(t, pkgkafka.Retry)

	err := h.ConsumeClaim(sess, newClaim(20, 21))
	if err == nil {
		t.Fatal("expected session error for Retry verdict")
	}
	if sess.commits != 0 {
		t.Errorf("commits = %d; retry must withhold the commit", sess.commits)
	}
	if len(sess.marked) != 0 {
		t.Errorf("marked = %v; retry must not mark the offset", sess.marked)
	}
}

// Ack перед Retry остаётся закоммиченным: передоставка начнётся с Retry-сообщения.
func TestConsumeClaim_AckThenRetry(t *testing.T) {
	sess := &fakeSession{ctx: context.Background()}
	h := newClaimHandler(t, pkgkafka.Ack, pkgkafka.Retry)

	if err := h.ConsumeClaim(sess, newClaim(30, 31)); err == nil {
		t.Fatal("expected session error for Retry verdict")
	}
	if sess.commits != 1 {
		t.Errorf("commits = %d; want 1 (first message stays committed)", sess.commits)
	}
	if len(sess.marked) != 1 || sess.marked[0] != 31 {
		t.Errorf("marked = %v; want exactly [31]", sess.marked)
	}
}
