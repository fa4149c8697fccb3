package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/repository"
)

var _ repository.Store = (*MongoDBRepository)(nil)

const (
	collProducts     = "products"
	collSuppliers    = "suppliers"
	collBatches      = "batches"
	collTransactions = "transactions"
	collDrafts       = "purchase_orders"
	collReports      = "daily_reports"
)

// MongoDBRepository implements repository.Store on top of MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewMongoDBRepository connects, verifies the connection and ensures indexes.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	r := &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	openDraft := options.Index().
		SetName("uniq_open_draft").
		SetUnique(true).
		SetPartialFilterExpression(bson.M{"status": string(models.DraftStatusDraft)})

	indexes := map[string][]mongo.IndexModel{
		collSuppliers: {{
			Keys:    bson.D{{Key: "category_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		collBatches: {{
			Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "expiry_date", Value: 1}},
		}},
		collTransactions: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		// At most one open draft per product.
		collDrafts: {{
			Keys:    bson.D{{Key: "product_id", Value: 1}},
			Options: openDraft,
		}},
	}

	for coll, specs := range indexes {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// GetProduct loads one catalog entry.
func (r *MongoDBRepository) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var doc productDoc
	err := r.db.Collection(collProducts).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, fmt.Errorf("product %s: %w", id, models.ErrUnknownProduct)
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to find product %s: %w", id, err)
	}
	return doc.model(), nil
}

// ListProducts returns the catalog ordered by id.
func (r *MongoDBRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	cur, err := r.db.Collection(collProducts).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	out := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// UpsertProduct inserts or replaces a catalog entry.
func (r *MongoDBRepository) UpsertProduct(ctx context.Context, product models.Product) error {
	doc := newProductDoc(product)
	_, err := r.db.Collection(collProducts).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", product.ID, err)
	}
	return nil
}

// SupplierForCategory resolves the supplier registered for a category, case-insensitively.
func (r *MongoDBRepository) SupplierForCategory(ctx context.Context, category string) (models.Supplier, error) {
	var doc supplierDoc
	err := r.db.Collection(collSuppliers).FindOne(ctx, bson.M{"category_key": categoryKey(category)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Supplier{}, fmt.Errorf("category %q: %w", category, models.ErrSupplierNotFound)
	}
	if err != nil {
		return models.Supplier{}, fmt.Errorf("failed to find supplier for %s: %w", category, err)
	}
	return doc.model(), nil
}

// ListSuppliers returns the whole directory.
func (r *MongoDBRepository) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	cur, err := r.db.Collection(collSuppliers).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "category", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	var docs []supplierDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode suppliers: %w", err)
	}

	out := make([]models.Supplier, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// UpsertSupplier registers the supplier of a category, replacing any previous one.
func (r *MongoDBRepository) UpsertSupplier(ctx context.Context, supplier models.Supplier) error {
	doc := newSupplierDoc(supplier)
	_, err := r.db.Collection(collSuppliers).ReplaceOne(ctx, bson.M{"category_key": doc.CategoryKey}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert supplier %s: %w", supplier.Name, err)
	}
	return nil
}

// LoadBatches returns every stored batch, exhausted ones included.
func (r *MongoDBRepository) LoadBatches(ctx context.Context) ([]models.Batch, error) {
	cur, err := r.db.Collection(collBatches).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	var docs []batchDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode batches: %w", err)
	}

	out := make([]models.Batch, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// RecordRestock stores a new batch and its restock transaction in one session transaction.
func (r *MongoDBRepository) RecordRestock(ctx context.Context, batch models.Batch, tx models.Transaction) error {
	return r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.db.Collection(collBatches).InsertOne(sc, newBatchDoc(batch)); err != nil {
			return fmt.Errorf("insert batch %d: %w", batch.ID, err)
		}
		if _, err := r.db.Collection(collTransactions).InsertOne(sc, newTransactionDoc(tx)); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
		return nil
	})
}

// RecordConsumption writes the remaining quantities of the touched batches and
// the transaction in one session transaction.
func (r *MongoDBRepository) RecordConsumption(ctx context.Context, allocations []models.Allocation, tx models.Transaction) error {
	return r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		batches := r.db.Collection(collBatches)
		for _, a := range allocations {
			res, err := batches.UpdateOne(sc, bson.M{"_id": a.BatchID}, bson.M{"$set": bson.M{"quantity": a.Remaining}})
			if err != nil {
				return fmt.Errorf("update batch %d: %w", a.BatchID, err)
			}
			if res.MatchedCount == 0 {
				return fmt.Errorf("batch %d: %w", a.BatchID, models.ErrUnknownBatch)
			}
		}
		if _, err := r.db.Collection(collTransactions).InsertOne(sc, newTransactionDoc(tx)); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
		return nil
	})
}

// ListTransactions returns matching transactions, newest first.
func (r *MongoDBRepository) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = string(filter.Type)
	}
	if filter.ProductID != "" {
		query["product_id"] = filter.ProductID
	}
	if !filter.Since.IsZero() {
		query["created_at"] = bson.M{"$gte": filter.Since}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := r.db.Collection(collTransactions).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	var docs []transactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	out := make([]models.Transaction, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// CreateDraft inserts a draft; the partial unique index rejects a second open draft.
func (r *MongoDBRepository) CreateDraft(ctx context.Context, draft models.PurchaseOrderDraft) error {
	_, err := r.db.Collection(collDrafts).InsertOne(ctx, newDraftDoc(draft))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("product %s: %w", draft.ProductID, models.ErrDuplicateDraft)
	}
	if err != nil {
		return fmt.Errorf("failed to insert draft: %w", err)
	}
	return nil
}

// HasOpenDraft reports whether the product has a draft in status draft.
func (r *MongoDBRepository) HasOpenDraft(ctx context.Context, productID string) (bool, error) {
	n, err := r.db.Collection(collDrafts).CountDocuments(ctx, bson.M{
		"product_id": productID,
		"status":     string(models.DraftStatusDraft),
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count drafts: %w", err)
	}
	return n > 0, nil
}

// ListDrafts returns drafts newest first, optionally filtered by status.
func (r *MongoDBRepository) ListDrafts(ctx context.Context, status models.DraftStatus) ([]models.PurchaseOrderDraft, error) {
	query := bson.M{}
	if status != "" {
		query["status"] = string(status)
	}

	cur, err := r.db.Collection(collDrafts).Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	var docs []draftDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode drafts: %w", err)
	}

	out := make([]models.PurchaseOrderDraft, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// UpdateDraftStatus advances a draft along draft -> sent -> received. The
// update is conditional on the previous status so concurrent callers cannot
// skip a step.
func (r *MongoDBRepository) UpdateDraftStatus(ctx context.Context, id string, status models.DraftStatus, at time.Time) (models.PurchaseOrderDraft, error) {
	coll := r.db.Collection(collDrafts)

	var current draftDoc
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&current)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.PurchaseOrderDraft{}, fmt.Errorf("draft %s: %w", id, models.ErrDraftNotFound)
	}
	if err != nil {
		return models.PurchaseOrderDraft{}, fmt.Errorf("failed to find draft %s: %w", id, err)
	}

	from := models.DraftStatus(current.Status)
	if !from.CanTransitionTo(status) {
		return models.PurchaseOrderDraft{}, fmt.Errorf("draft %s %s -> %s: %w", id, from, status, models.ErrInvalidDraftTransition)
	}

	var updated draftDoc
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.PurchaseOrderDraft{}, fmt.Errorf("draft %s changed concurrently: %w", id, models.ErrInvalidDraftTransition)
	}
	if err != nil {
		return models.PurchaseOrderDraft{}, fmt.Errorf("failed to update draft %s: %w", id, err)
	}
	return updated.model(), nil
}

// SaveDailyReport saves a daily report to the database.
func (r *MongoDBRepository) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	_, err := r.db.Collection(collReports).InsertOne(ctx, newReportDoc(report))
	if err != nil {
		return fmt.Errorf("failed to insert daily report: %w", err)
	}
	return nil
}

// ListDailyReports returns the latest reports first.
func (r *MongoDBRepository) ListDailyReports(ctx context.Context, limit int) ([]models.DailyReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.db.Collection(collReports).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily reports: %w", err)
	}
	var docs []reportDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode daily reports: %w", err)
	}

	out := make([]models.DailyReport, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil {
		r.logger.Error("mongodb transaction aborted", zap.Error(err))
		return err
	}
	return nil
}

func categoryKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
