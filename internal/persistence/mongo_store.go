package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/formflow/pkg/api"
)

// MongoStateStore is a StateStore backed by a MongoDB collection with one
// document per session and route.
type MongoStateStore struct {
	coll *mongo.Collection
}

// Ensure it implements StateStore.
var _ api.StateStore = (*MongoStateStore)(nil)

// NewMongoStateStore creates a Mongo-backed state store.
// dbName defaults to "formflow" if empty, collName defaults to "flow_states".
func NewMongoStateStore(client *mongo.Client, dbName, collName string) *MongoStateStore {
	if dbName == "" {
		dbName = "formflow"
	}
	if collName == "" {
		collName = "flow_states"
	}

	return &MongoStateStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoStateDoc struct {
	ID        string `bson:"_id"`
	Session   string `bson:"session_id"`
	Route     string `bson:"route"`
	State     []byte `bson:"state"`
	UpdatedAt int64  `bson:"updated_at"`
}

func mongoStateID(session, route string) string {
	return session + "|" + route
}

func (s *MongoStateStore) GetFlowState(ctx context.Context, session api.Session, route string) (api.FlowState, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc mongoStateDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": mongoStateID(session.ID, route)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return api.FlowState{}, ErrStateNotFound
		}
		return api.FlowState{}, err
	}
	return DecodeState(doc.State)
}

func (s *MongoStateStore) PutFlowState(ctx context.Context, session api.Session, route string, state api.FlowState) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := EncodeState(state)
	if err != nil {
		return err
	}

	doc := mongoStateDoc{
		ID:        mongoStateID(session.ID, route),
		Session:   session.ID,
		Route:     route,
		State:     data,
		UpdatedAt: time.Now().Unix(),
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}
