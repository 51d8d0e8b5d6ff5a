package service

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/openshelf/library-service/library/internal/model"
	"github.com/openshelf/library-service/library/internal/repository"
	cb "github.com/openshelf/library-service/pkg/circuit_breaker"
	"github.com/openshelf/library-service/pkg/kafka"
	"go.uber.org/zap"
)

type Service struct {
	log      *zap.Logger
	repo     repository.Repository
	policy   PolicyProvider
	producer sarama.SyncProducer
	breaker  cb.CircuitBreaker
	now      func() time.Time
}

type Option func(*Service)

// WithProducer enables publishing of loan lifecycle events.
func WithProducer(producer sarama.SyncProducer) Option {
	return func(s *Service) {
		s.producer = producer
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo repository.Repository, policy PolicyProvider, log *zap.Logger, ops ...Option) *Service {
	s := &Service{
		log:     log,
		repo:    repo,
		policy:  policy,
		breaker: cb.New(20, 30*time.Second, 0.5, 5),
		now:     time.Now,
	}
	for _, op := range ops {
		op(s)
	}
	return s
}

// publish ships a lifecycle event to the stats topic. Best effort: a
// broker failure is logged and never rolls back the committed transition.
func (s *Service) publish(eventType string, loan model.Loan) {
	if s.producer == nil {
		return
	}
	ev := kafka.EventLoan{
		Timestamp: s.now().UTC(),
		EventType: eventType,
		LoanUid:   loan.LoanUid,
		MemberUid: loan.MemberUid,
		BookUid:   loan.BookUid,
		Fine:      loan.Fine,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("publish marshal", zap.Error(err))
		return
	}
	msg := &sarama.ProducerMessage{Topic: kafka.LoanEventsTopic, Value: sarama.StringEncoder(data)}
	if err := s.breaker.Call(func() error {
		_, _, err := s.producer.SendMessage(msg)
		return err
	}); err != nil {
		s.log.Error("publish loan event", zap.String("eventType", eventType), zap.Error(err))
	}
}
