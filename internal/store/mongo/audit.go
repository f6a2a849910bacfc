package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// AuditSink implements ports.AuditSink against a dedicated audit
// collection plus a counters collection holding the auto-incrementing id
// sequence, the conventional Mongo sequence-counter idiom (§4.9).
//
// Emit is fire-and-forget: it hands the record to a bounded channel and
// a single background goroutine writes it, so a slow or down database
// never blocks an orchestrator loop. On overflow the event being emitted
// is dropped and logged; writes already queued are kept.
type AuditSink struct {
	audit    *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
	log      *slog.Logger

	queue chan queuedRecord
	done  chan struct{}
}

type queuedRecord struct {
	ticketID *domain.TicketID
	userID   *string
	event    domain.AuditEvent
}

type auditDoc struct {
	ID        int64    `bson:"_id"`
	Timestamp int64    `bson:"timestamp"`
	EventType string   `bson:"eventType"`
	TicketID  *string  `bson:"ticketId,omitempty"`
	UserID    *string  `bson:"userId,omitempty"`
	Event     bson.Raw `bson:"event"`
}

// NewAuditSink builds an AuditSink and starts its background writer.
// Callers must call Close to drain in-flight writes on shutdown.
func NewAuditSink(client *mongo.Client, dbName string, log *slog.Logger) *AuditSink {
	s := &AuditSink{
		audit:    client.Database(dbName).Collection("audit"),
		counters: client.Database(dbName).Collection("counters"),
		now:      time.Now,
		log:      log,
		queue:    make(chan queuedRecord, 1000),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// EnsureIndexes creates the audit collection's indices.
func (s *AuditSink) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "ticketId", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "eventType", Value: 1}, {Key: "timestamp", Value: 1}}},
	}
	_, err := s.audit.Indexes().CreateMany(ctx, models)
	return err
}

func (s *AuditSink) run() {
	for rec := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.write(ctx, rec); err != nil {
			s.log.Warn("audit write failed", "error", err, "event_type", rec.event.EventType())
		}
		cancel()
	}
	close(s.done)
}

func (s *AuditSink) write(ctx context.Context, rec queuedRecord) error {
	id, err := s.nextID(ctx)
	if err != nil {
		return fmt.Errorf("allocate audit id: %w", err)
	}

	eventJSON, err := json.Marshal(rec.event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	eventBSON, err := bsonMarshalJSON(json.RawMessage(eventJSON))
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	var ticketIDStr *string
	if rec.ticketID != nil {
		s := string(*rec.ticketID)
		ticketIDStr = &s
	}

	doc := auditDoc{
		ID:        id,
		Timestamp: s.now().UTC().Unix(),
		EventType: rec.event.EventType(),
		TicketID:  ticketIDStr,
		UserID:    rec.userID,
		Event:     eventBSON,
	}
	_, err = s.audit.InsertOne(ctx, doc)
	return err
}

func (s *AuditSink) nextID(ctx context.Context) (int64, error) {
	var result struct {
		Value int64 `bson:"value"`
	}
	err := s.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": "audit_id"},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&result)
	if err != nil {
		return 0, err
	}
	return result.Value, nil
}

// Emit enqueues the event for asynchronous persistence. It never blocks
// and never returns an error to the caller (§4.9).
func (s *AuditSink) Emit(ctx context.Context, ticketID *domain.TicketID, userID *string, event domain.AuditEvent) {
	select {
	case s.queue <- queuedRecord{ticketID: ticketID, userID: userID, event: event}:
	default:
		s.log.Warn("audit queue full, dropping event", "event_type", event.EventType())
	}
}

func (s *AuditSink) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	query := bson.M{}
	if filter.EventType != "" {
		query["eventType"] = filter.EventType
	}
	if filter.TicketID != "" {
		ticketID := string(filter.TicketID)
		query["ticketId"] = ticketID
	}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	if filter.Since != nil || filter.Until != nil {
		ts := bson.M{}
		if filter.Since != nil {
			ts["$gte"] = filter.Since.UTC().Unix()
		}
		if filter.Until != nil {
			ts["$lte"] = filter.Until.UTC().Unix()
		}
		query["timestamp"] = ts
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.audit.Find(ctx, query, opts)
	if err != nil {
		return nil, domain.WrapDatabase(err)
	}
	defer cursor.Close(ctx)

	var docs []auditDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.WrapDatabase(err)
	}

	records := make([]domain.AuditRecord, 0, len(docs))
	for _, doc := range docs {
		var eventJSON json.RawMessage
		if err := bsonUnmarshalJSON(doc.Event, &eventJSON); err != nil {
			return nil, fmt.Errorf("unmarshal audit event %d: %w", doc.ID, err)
		}
		event, err := domain.UnmarshalAuditEvent(doc.EventType, eventJSON)
		if err != nil {
			return nil, fmt.Errorf("unmarshal audit event %d: %w", doc.ID, err)
		}
		var ticketID *domain.TicketID
		if doc.TicketID != nil {
			tid := domain.TicketID(*doc.TicketID)
			ticketID = &tid
		}
		records = append(records, domain.AuditRecord{
			ID:        doc.ID,
			Timestamp: time.Unix(doc.Timestamp, 0).UTC(),
			EventType: doc.EventType,
			TicketID:  ticketID,
			UserID:    doc.UserID,
			Event:     event,
		})
	}
	return records, nil
}

// Close drains the write queue and stops the background goroutine.
func (s *AuditSink) Close() {
	close(s.queue)
	<-s.done
}
