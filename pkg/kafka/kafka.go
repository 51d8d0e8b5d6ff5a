package kafka

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const (
	LoanEventsTopic    = "loan-events"
	StatsConsumerGroup = "stats-group"
)

// Loan lifecycle event types published by the workflow engine.
const (
	EventLoanRequested = "LOAN_REQUESTED"
	EventLoanIssued    = "LOAN_ISSUED"
	EventLoanRejected  = "LOAN_REJECTED"
	EventLoanCancelled = "LOAN_CANCELLED"
	EventLoanReturned  = "LOAN_RETURNED"
)

// EventLoan is the wire format shared by producer and stats consumer.
type EventLoan struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"eventType"`
	LoanUid   string    `json:"loanUid"`
	MemberUid string    `json:"memberUid"`
	BookUid   string    `json:"bookUid"`
	Fine      float64   `json:"fine"`
}

type Config struct {
	Addrs []string `envconfig:"KAFKA_ADDRS" default:"localhost:9092"`
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

func NewConsumer(cfg Config, group string) (sarama.ConsumerGroup, error) {
	defaultCfg := sarama.NewConfig()
	defaultCfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	return sarama.NewConsumerGroup(cfg.Addrs, group, defaultCfg)
}

// Consume runs the consumer-group session loop until ctx is cancelled.
func Consume(ctx context.Context, consumer sarama.ConsumerGroup, handler sarama.ConsumerGroupHandler, log *zap.Logger, topics ...string) {
	for {
		if err := consumer.Consume(ctx, topics, handler); err != nil {
			log.Error("consumer.Consume", zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}
