package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/RenukaPawar658/marketplace/internal/db"
	"github.com/RenukaPawar658/marketplace/internal/models"
)

const (
	listingsCollection = "listings"
	countersCollection = "counters"
	listingSequenceKey = "listings"
)

// listingDocument is the BSON shape of a listing. Prices are kept as decimal
// strings so no precision is lost on 256-bit amounts.
type listingDocument struct {
	ID            int64     `bson:"_id"`
	AssetContract string    `bson:"asset_contract"`
	AssetID       string    `bson:"asset_id"`
	Seller        string    `bson:"seller"`
	Price         string    `bson:"price"`
	Status        string    `bson:"status"`
	CreatedAt     time.Time `bson:"created_at"`
}

func toDocument(l *models.Listing) listingDocument {
	price := "0"
	if l.Price != nil {
		price = l.Price.String()
	}
	return listingDocument{
		ID:            int64(l.ID),
		AssetContract: l.AssetContract.String(),
		AssetID:       l.AssetID,
		Seller:        l.Seller.String(),
		Price:         price,
		Status:        string(l.Status),
		CreatedAt:     l.CreatedAt,
	}
}

func (d listingDocument) toListing() (*models.Listing, error) {
	price, ok := new(big.Int).SetString(d.Price, 10)
	if !ok {
		return nil, fmt.Errorf("listing %d has malformed price %q", d.ID, d.Price)
	}
	return &models.Listing{
		ID:            uint64(d.ID),
		AssetContract: models.Address(d.AssetContract),
		AssetID:       d.AssetID,
		Seller:        models.Address(d.Seller),
		Price:         price,
		Status:        models.ListingStatus(d.Status),
		CreatedAt:     d.CreatedAt,
	}, nil
}

// MongoStore persists listings in MongoDB. Transactions need a replica set.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore creates a store on top of database.
func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{client: database.Client(), db: database}
}

// EnsureIndexes creates the collections and the partial unique index that backs
// the one-active-listing-per-asset rule.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	for _, name := range []string{listingsCollection, countersCollection} {
		err := s.db.CreateCollection(ctx, name)
		if err != nil && !isNamespaceExists(err) {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "asset_contract", Value: 1}, {Key: "asset_id", Value: 1}},
			Options: options.Index().
				SetName("active_asset").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(models.ListingStatusActive)}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("status_id"),
		},
	}
	if _, err := s.db.Collection(listingsCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create listing indexes: %w", err)
	}
	return nil
}

func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && ce.Code == 48
}

func (s *MongoStore) FindByID(ctx context.Context, id uint64) (*models.Listing, error) {
	return s.findOne(ctx, bson.M{"_id": int64(id)})
}

func (s *MongoStore) FindActiveByAsset(ctx context.Context, asset models.AssetKey) (*models.Listing, error) {
	return s.findOne(ctx, bson.M{
		"asset_contract": asset.Contract.String(),
		"asset_id":       asset.AssetID,
		"status":         string(models.ListingStatusActive),
	})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Listing, error) {
	var doc listingDocument
	err := s.db.Collection(listingsCollection).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding listing: %w", err)
	}
	return doc.toListing()
}

func (s *MongoStore) ListActive(ctx context.Context) ([]*models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(listingsCollection).Find(ctx, bson.M{"status": string(models.ListingStatusActive)}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing active listings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding active listings: %w", err)
	}
	out := make([]*models.Listing, 0, len(docs))
	for _, d := range docs {
		l, err := d.toListing()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// WithTx runs fn inside a MongoDB multi-document transaction. fn is executed
// exactly once: it may call external systems, so the callback-retrying
// Session.WithTransaction helper is not used. Only the commit is retried.
func (s *MongoStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx ListingTx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	if err := sess.StartTransaction(); err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	sctx := mongo.NewSessionContext(ctx, sess)

	if err := fn(sctx, &mongoTx{db: s.db}); err != nil {
		if abortErr := sess.AbortTransaction(context.Background()); abortErr != nil {
			return fmt.Errorf("%w (abort also failed: %v)", err, abortErr)
		}
		return err
	}

	if err := db.Try(func() error { return sess.CommitTransaction(sctx) }); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", ErrActiveListingExists, err)
		}
		return fmt.Errorf("failed to commit listing transaction: %w", err)
	}
	return nil
}

type mongoTx struct {
	db *mongo.Database
}

func (tx *mongoTx) NextID(ctx context.Context) (uint64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := tx.db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": listingSequenceKey},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate listing id: %w", err)
	}
	return uint64(counter.Seq), nil
}

func (tx *mongoTx) Insert(ctx context.Context, listing *models.Listing) error {
	_, err := tx.db.Collection(listingsCollection).InsertOne(ctx, toDocument(listing))
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrActiveListingExists, listing.Asset())
		}
		return fmt.Errorf("failed to insert listing %d: %w", listing.ID, err)
	}
	return nil
}

func (tx *mongoTx) Clear(ctx context.Context, id uint64) error {
	cleared := toDocument(models.ClearedListing(id))
	result, err := tx.db.Collection(listingsCollection).ReplaceOne(ctx,
		bson.M{"_id": int64(id), "status": string(models.ListingStatusActive)},
		cleared,
	)
	if err != nil {
		return fmt.Errorf("failed to clear listing %d: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: listing %d", ErrNotFound, id)
	}
	return nil
}

func (tx *mongoTx) Restore(ctx context.Context, listing *models.Listing) error {
	if !listing.IsActive() {
		return fmt.Errorf("listing %d must be restored as active", listing.ID)
	}
	result, err := tx.db.Collection(listingsCollection).ReplaceOne(ctx,
		bson.M{"_id": int64(listing.ID), "status": bson.M{"$ne": string(models.ListingStatusActive)}},
		toDocument(listing),
	)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrActiveListingExists, listing.Asset())
		}
		return fmt.Errorf("failed to restore listing %d: %w", listing.ID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: listing %d is not cleared", ErrNotFound, listing.ID)
	}
	return nil
}
