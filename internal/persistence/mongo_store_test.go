package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/formflow/internal/testutil"
	"github.com/petrijr/formflow/pkg/api"
)

type MongoDBStoreTestSuite struct {
	suite.Suite
	endpoint string
	store    *MongoStateStore
	client   *mongo.Client
	dbName   string
	collName string
}

func TestMongoDBTestSuite(t *testing.T) {
	testsuite := new(MongoDBStoreTestSuite)
	testsuite.endpoint = testutil.GetMongoURI(t)
	newTestMongoStore(t, testsuite)
	suite.Run(t, testsuite)
}

func (m *MongoDBStoreTestSuite) SetupTest() {
	coll := m.client.Database(m.dbName).Collection(m.collName)
	m.NoError(coll.Drop(context.Background()))
}

func newTestMongoStore(t *testing.T, ts *MongoDBStoreTestSuite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(ts.endpoint))
	if err != nil {
		t.Fatalf("mongo.Connect failed: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Disconnect(context.Background())
	})
	ts.client = client

	ts.dbName = "formflow_test"
	ts.collName = "flow_states_test"

	ts.store = NewMongoStateStore(client, ts.dbName, ts.collName)
}

func (m *MongoDBStoreTestSuite) TestMongoStateStore_PutGetOverwrite() {
	ctx := context.Background()
	sess := api.Session{ID: "visitor-1"}

	_, err := m.store.GetFlowState(ctx, sess, "/signup")
	m.True(errors.Is(err, ErrStateNotFound), "expected ErrStateNotFound, got %v", err)

	st := api.NewFlowState()
	st.StepIndex = 1
	st.Rows["leads"] = 4
	m.NoError(m.store.PutFlowState(ctx, sess, "/signup", st))

	st.StepIndex = 2
	st.User[api.UserID] = int64(12)
	m.NoError(m.store.PutFlowState(ctx, sess, "/signup", st))

	got, err := m.store.GetFlowState(ctx, sess, "/signup")
	m.NoError(err)
	m.Equal(2, got.StepIndex)
	m.Equal(int64(4), got.Rows["leads"])
	m.Equal(int64(12), got.User[api.UserID])

	n, err := m.client.Database(m.dbName).Collection(m.collName).CountDocuments(ctx, map[string]any{})
	m.NoError(err)
	m.Equal(int64(1), n, "upsert keeps one document per session and route")
}
