package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoNode is the BSON shape of a node document.
type mongoNode struct {
	NID        string     `bson:"nid"`
	UID        string     `bson:"uid"`
	Title      string     `bson:"title"`
	Body       string     `bson:"body"`
	Type       string     `bson:"type"`
	Disabled   bool       `bson:"disabled"`
	InTrash    bool       `bson:"in_trash"`
	CreatedAt  time.Time  `bson:"created_at"`
	ModifiedAt time.Time  `bson:"modified_at"`
	InTrashAt  *time.Time `bson:"in_trash_at,omitempty"`
}

type mongoUserState struct {
	Tenant         string   `bson:"tenant"`
	RecentSearch   []string `bson:"recent_search"`
	RecentMentions []string `bson:"recent_mentions"`
}

// MongoStore implements NodeStore on MongoDB. The networked deployment
// alternative to SQLite; behavior is identical.
type MongoStore struct {
	client *mongo.Client
	nodes  *mongo.Collection
	users  *mongo.Collection
}

var _ NodeStore = (*MongoStore)(nil)

// NewMongoStore connects and ensures indexes.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client: client,
		nodes:  db.Collection("nodes"),
		users:  db.Collection("user_state"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.nodes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "uid", Value: 1}, {Key: "nid", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "uid", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create node indexes: %w", err)
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create user state index: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func fromMongo(m *mongoNode) *Node {
	return &Node{
		NID:        m.NID,
		UID:        m.UID,
		Title:      m.Title,
		Body:       m.Body,
		Type:       m.Type,
		Disabled:   m.Disabled,
		InTrash:    m.InTrash,
		CreatedAt:  m.CreatedAt,
		ModifiedAt: m.ModifiedAt,
		InTrashAt:  m.InTrashAt,
	}
}

func toMongo(n *Node) *mongoNode {
	return &mongoNode{
		NID:        n.NID,
		UID:        n.UID,
		Title:      n.Title,
		Body:       n.Body,
		Type:       n.Type,
		Disabled:   n.Disabled,
		InTrash:    n.InTrash,
		CreatedAt:  n.CreatedAt,
		ModifiedAt: n.ModifiedAt,
		InTrashAt:  n.InTrashAt,
	}
}

// FindByIDs batch-fetches the tenant's nodes among nids.
func (s *MongoStore) FindByIDs(ctx context.Context, tenant string, nids []string) ([]*Node, error) {
	if len(nids) == 0 {
		return nil, nil
	}
	cursor, err := s.nodes.Find(ctx, bson.M{"uid": tenant, "nid": bson.M{"$in": nids}})
	if err != nil {
		return nil, fmt.Errorf("find nodes by ids: %w", err)
	}
	defer cursor.Close(ctx)

	var raw []*mongoNode
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	nodes := make([]*Node, len(raw))
	for i, m := range raw {
		nodes[i] = fromMongo(m)
	}
	return nodes, nil
}

// FindOne returns the tenant's node or ErrNodeNotExist.
func (s *MongoStore) FindOne(ctx context.Context, tenant, nid string) (*Node, error) {
	var m mongoNode
	err := s.nodes.FindOne(ctx, bson.M{"uid": tenant, "nid": nid}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotExist, nid)
	}
	if err != nil {
		return nil, fmt.Errorf("find node %s: %w", nid, err)
	}
	return fromMongo(&m), nil
}

// GetRecentState reads a user's recency lists; missing state means empty
// lists, not an error.
func (s *MongoStore) GetRecentState(ctx context.Context, tenant string) (*RecentState, error) {
	var st mongoUserState
	err := s.users.FindOne(ctx, bson.M{"tenant": tenant}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &RecentState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recent state: %w", err)
	}
	return &RecentState{RecentSearch: st.RecentSearch, RecentMentions: st.RecentMentions}, nil
}

// UpdateRecentState writes a user's recency lists whole. Last writer wins.
func (s *MongoStore) UpdateRecentState(ctx context.Context, tenant string, state *RecentState) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{"tenant": tenant},
		bson.M{"$set": bson.M{
			"recent_search":   emptyAsList(state.RecentSearch),
			"recent_mentions": emptyAsList(state.RecentMentions),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("write recent state: %w", err)
	}
	return nil
}

// Insert creates a node record.
func (s *MongoStore) Insert(ctx context.Context, n *Node) error {
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.ModifiedAt.IsZero() {
		n.ModifiedAt = now
	}
	if n.Type == "" {
		n.Type = TypeMarkdown
	}
	if _, err := s.nodes.InsertOne(ctx, toMongo(n)); err != nil {
		return fmt.Errorf("insert node %s: %w", n.NID, err)
	}
	return nil
}

// Update rewrites a node's content fields and bumps modified_at.
func (s *MongoStore) Update(ctx context.Context, n *Node) error {
	n.ModifiedAt = time.Now().UTC()
	res, err := s.nodes.UpdateOne(ctx,
		bson.M{"uid": n.UID, "nid": n.NID},
		bson.M{"$set": bson.M{
			"title":       n.Title,
			"body":        n.Body,
			"type":        n.Type,
			"modified_at": n.ModifiedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update node %s: %w", n.NID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotExist, n.NID)
	}
	return nil
}

// SetTrash flips the trash flag and stamps in_trash_at on entry.
func (s *MongoStore) SetTrash(ctx context.Context, tenant, nid string, inTrash bool) error {
	update := bson.M{"$set": bson.M{"in_trash": inTrash, "in_trash_at": nil}}
	if inTrash {
		update = bson.M{"$set": bson.M{"in_trash": true, "in_trash_at": time.Now().UTC()}}
	}
	res, err := s.nodes.UpdateOne(ctx, bson.M{"uid": tenant, "nid": nid}, update)
	if err != nil {
		return fmt.Errorf("set trash on node %s: %w", nid, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotExist, nid)
	}
	return nil
}

// Delete removes a node record permanently.
func (s *MongoStore) Delete(ctx context.Context, tenant, nid string) error {
	res, err := s.nodes.DeleteOne(ctx, bson.M{"uid": tenant, "nid": nid})
	if err != nil {
		return fmt.Errorf("delete node %s: %w", nid, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotExist, nid)
	}
	return nil
}
