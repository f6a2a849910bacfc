// Package mongo implements the TicketStore, Catalog and audit ports
// (SPEC_FULL.md §4.1, §4.2, §4.9) on top of go.mongodb.org/mongo-driver,
// grounded on the teacher's internal/repository/mongo/repository.go.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// TicketStore wraps a *mongo.Collection holding ticket documents.
type TicketStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

type ticketDoc struct {
	ID           string          `bson:"_id"`
	CreatedAt    int64           `bson:"createdAt"`
	UpdatedAt    int64           `bson:"updatedAt"`
	CreatedBy    string          `bson:"createdBy"`
	Priority     uint16          `bson:"priority"`
	QueryContext bson.Raw        `bson:"queryContext"`
	DestPath     string          `bson:"destPath"`
	OutputConstr bson.Raw        `bson:"outputConstraints,omitempty"`
	RetryCount   uint32          `bson:"retryCount"`
	StateType    string          `bson:"stateType"`
	State        bson.Raw        `bson:"state"`
}

// Connect dials MongoDB. Callers typically pass
// options.Client().Monitor(otelmongo.NewMonitor()) as extra.
func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return client, nil
}

// NewTicketStore builds a TicketStore over the given collection.
func NewTicketStore(client *mongo.Client, dbName, collectionName string) *TicketStore {
	return &TicketStore{
		collection: client.Database(dbName).Collection(collectionName),
		now:        time.Now,
	}
}

// EnsureIndexes creates the indices SPEC_FULL.md §6 names for the
// tickets collection.
func (s *TicketStore) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "priority", Value: -1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
		{Keys: bson.D{{Key: "stateType", Value: 1}}},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (s *TicketStore) Create(ctx context.Context, req domain.CreateTicketRequest) (domain.Ticket, error) {
	now := s.now().UTC()
	t := domain.Ticket{
		ID:                domain.TicketID(uuid.NewString()),
		CreatedAt:         now,
		UpdatedAt:         now,
		CreatedBy:         req.CreatedBy,
		Priority:          req.Priority,
		QueryContext:      req.QueryContext,
		DestPath:          req.DestPath,
		OutputConstraints: req.OutputConstraints,
		RetryCount:        0,
		State:             domain.StatePending{},
	}
	doc, err := toTicketDoc(t)
	if err != nil {
		return domain.Ticket{}, err
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Ticket{}, fmt.Errorf("create ticket: %w", domain.ErrAlreadyExists)
		}
		return domain.Ticket{}, domain.WrapDatabase(err)
	}
	return t, nil
}

func (s *TicketStore) Get(ctx context.Context, id domain.TicketID) (domain.Ticket, error) {
	var doc ticketDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Ticket{}, &domain.NotFoundError{ID: string(id)}
		}
		return domain.Ticket{}, domain.WrapDatabase(err)
	}
	return fromTicketDoc(doc)
}

func (s *TicketStore) List(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	query := ticketQuery(filter)

	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "createdAt", Value: 1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, domain.WrapDatabase(err)
	}
	defer cursor.Close(ctx)

	var docs []ticketDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.WrapDatabase(err)
	}

	tickets := make([]domain.Ticket, 0, len(docs))
	for _, doc := range docs {
		t, err := fromTicketDoc(doc)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func (s *TicketStore) Count(ctx context.Context, filter domain.TicketFilter) (int64, error) {
	query := ticketQuery(filter)
	count, err := s.collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, domain.WrapDatabase(err)
	}
	return count, nil
}

func ticketQuery(filter domain.TicketFilter) bson.M {
	query := bson.M{}
	if filter.StateType != "" {
		query["stateType"] = filter.StateType
	}
	if filter.CreatedBy != "" {
		query["createdBy"] = filter.CreatedBy
	}
	return query
}

func (s *TicketStore) UpdateState(ctx context.Context, id domain.TicketID, newState domain.TicketState) (domain.Ticket, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	if newState.StateType() == "cancelled" && !domain.CanCancel(current.State) {
		return domain.Ticket{}, &domain.InvalidStateError{
			TicketID:     id,
			CurrentState: current.State.StateType(),
			Operation:    "cancel",
		}
	}

	stateJSON, err := domain.MarshalTicketState(newState)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("marshal new state: %w", err)
	}
	stateBSON, err := bsonMarshalJSON(json.RawMessage(stateJSON))
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("marshal new state: %w", err)
	}
	now := s.now().UTC()
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$set": bson.M{
			"stateType": newState.StateType(),
			"state":     stateBSON,
			"updatedAt": now.Unix(),
		}},
	)
	if err != nil {
		return domain.Ticket{}, domain.WrapDatabase(err)
	}
	if res.MatchedCount == 0 {
		return domain.Ticket{}, &domain.NotFoundError{ID: string(id)}
	}
	current.State = newState
	current.UpdatedAt = now
	return current, nil
}

func (s *TicketStore) IncrementRetryCount(ctx context.Context, id domain.TicketID) (domain.Ticket, error) {
	now := s.now().UTC()
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{
			"$inc": bson.M{"retryCount": 1},
			"$set": bson.M{"updatedAt": now.Unix()},
		},
	)
	if err != nil {
		return domain.Ticket{}, domain.WrapDatabase(err)
	}
	if res.MatchedCount == 0 {
		return domain.Ticket{}, &domain.NotFoundError{ID: string(id)}
	}
	return s.Get(ctx, id)
}

func (s *TicketStore) Delete(ctx context.Context, id domain.TicketID) (domain.Ticket, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return domain.Ticket{}, domain.WrapDatabase(err)
	}
	if res.DeletedCount == 0 {
		return domain.Ticket{}, &domain.NotFoundError{ID: string(id)}
	}
	return t, nil
}

func toTicketDoc(t domain.Ticket) (ticketDoc, error) {
	qcJSON, err := bsonMarshalJSON(t.QueryContext)
	if err != nil {
		return ticketDoc{}, fmt.Errorf("marshal query context: %w", err)
	}
	var outputConstr bson.Raw
	if t.OutputConstraints != nil {
		raw, err := bsonMarshalJSON(t.OutputConstraints)
		if err != nil {
			return ticketDoc{}, fmt.Errorf("marshal output constraints: %w", err)
		}
		outputConstr = raw
	}
	stateJSON, err := domain.MarshalTicketState(t.State)
	if err != nil {
		return ticketDoc{}, fmt.Errorf("marshal state: %w", err)
	}
	stateBSON, err := bsonMarshalJSON(json.RawMessage(stateJSON))
	if err != nil {
		return ticketDoc{}, fmt.Errorf("marshal state: %w", err)
	}

	return ticketDoc{
		ID:           string(t.ID),
		CreatedAt:    t.CreatedAt.Unix(),
		UpdatedAt:    t.UpdatedAt.Unix(),
		CreatedBy:    t.CreatedBy,
		Priority:     t.Priority,
		QueryContext: qcJSON,
		DestPath:     t.DestPath,
		OutputConstr: outputConstr,
		RetryCount:   t.RetryCount,
		StateType:    t.State.StateType(),
		State:        stateBSON,
	}, nil
}

func fromTicketDoc(doc ticketDoc) (domain.Ticket, error) {
	var qc domain.QueryContext
	if err := bsonUnmarshalJSON(doc.QueryContext, &qc); err != nil {
		return domain.Ticket{}, fmt.Errorf("unmarshal query context: %w", err)
	}
	var outputConstr *domain.OutputConstraints
	if len(doc.OutputConstr) > 0 {
		var oc domain.OutputConstraints
		if err := bsonUnmarshalJSON(doc.OutputConstr, &oc); err != nil {
			return domain.Ticket{}, fmt.Errorf("unmarshal output constraints: %w", err)
		}
		outputConstr = &oc
	}
	var stateJSON json.RawMessage
	if err := bsonUnmarshalJSON(doc.State, &stateJSON); err != nil {
		return domain.Ticket{}, fmt.Errorf("unmarshal state: %w", err)
	}
	state, err := domain.UnmarshalTicketState(stateJSON)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("unmarshal state: %w", err)
	}

	return domain.Ticket{
		ID:                domain.TicketID(doc.ID),
		CreatedAt:         time.Unix(doc.CreatedAt, 0).UTC(),
		UpdatedAt:         time.Unix(doc.UpdatedAt, 0).UTC(),
		CreatedBy:         doc.CreatedBy,
		Priority:          doc.Priority,
		QueryContext:      qc,
		DestPath:          doc.DestPath,
		OutputConstraints: outputConstr,
		RetryCount:        doc.RetryCount,
		State:             state,
	}, nil
}
