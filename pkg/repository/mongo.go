package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

const (
	productsCollection      = "products"
	promoCodesCollection    = "promo_codes"
	auditLogsCollection     = "audit_logs"
	notificationsCollection = "notifications"
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	return &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoRepository) Database() *mongo.Database {
	return m.database
}

// EnsureIndexes creates the indexes the repositories rely on. It is safe to
// call on every start.
func (m *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		promoCodesCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		productsCollection: {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		auditLogsCollection: {
			{Keys: bson.D{{Key: "entity_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		notificationsCollection: {
			{Keys: bson.D{{Key: "read", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
	for name, idx := range indexes {
		if _, err := m.database.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (m *MongoRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	collection := m.database.Collection(auditLogsCollection)
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.CreatedAt = time.Now()
	_, err := collection.InsertOne(ctx, log)
	return err
}

func (m *MongoRepository) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*models.AuditLog, error) {
	collection := m.database.Collection(auditLogsCollection)

	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*models.AuditLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

// mongoErr maps driver errors onto apperr kinds.
func mongoErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound("%s not found", what)
	case mongo.IsDuplicateKeyError(err):
		return apperr.Wrap(apperr.KindConflict, what+" already exists", err)
	default:
		return apperr.Persistence("mongo: "+what, err)
	}
}

type ProductRepository struct {
	coll *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(productsCollection)}
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mongoErr(err, "product "+id)
	}
	return &p, nil
}

func (r *ProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, int64, error) {
	filter = filter.Normalize()
	query := productQuery(filter)

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, mongoErr(err, "products")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64((filter.Page - 1) * filter.PageSize)).
		SetLimit(int64(filter.PageSize))
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, mongoErr(err, "products")
	}
	defer cursor.Close(ctx)

	products := []*models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, mongoErr(err, "products")
	}
	return products, total, nil
}

func productQuery(f models.ProductFilter) bson.M {
	q := bson.M{}
	if f.Category != "" {
		q["category"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(f.Category) + "$", Options: "i"}
	}
	if f.Query != "" {
		q["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Query), Options: "i"}
	}
	price := bson.M{}
	if f.MinPrice > 0 {
		price["$gte"] = f.MinPrice
	}
	if f.MaxPrice > 0 {
		price["$lte"] = f.MaxPrice
	}
	if len(price) > 0 {
		q["price"] = price
	}
	if f.InStockOnly {
		q["$expr"] = bson.M{"$gt": bson.A{
			bson.M{"$sum": bson.M{"$map": bson.M{
				"input": bson.M{"$objectToArray": "$stock"},
				"as":    "s",
				"in":    "$$s.v",
			}}},
			0,
		}}
	}
	return q
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	_, err := r.coll.InsertOne(ctx, p)
	return mongoErr(err, "product "+p.ID)
}

func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return mongoErr(err, "product "+p.ID)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("product %s not found", p.ID)
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mongoErr(err, "product "+id)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("product %s not found", id)
	}
	return nil
}

// PromoCodeRepository stores promo codes. Documents written by older releases
// are migrated to the current schema the first time they are read.
type PromoCodeRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func NewPromoCodeRepository(db *mongo.Database, logger *zap.Logger) *PromoCodeRepository {
	return &PromoCodeRepository{coll: db.Collection(promoCodesCollection), logger: logger.Named("promo-repo")}
}

func (r *PromoCodeRepository) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	code = models.NormalizeCode(code)
	return r.findOne(ctx, bson.M{"code": code}, "promo code "+code)
}

func (r *PromoCodeRepository) Get(ctx context.Context, id string) (*models.PromoCode, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "promo code "+id)
}

func (r *PromoCodeRepository) findOne(ctx context.Context, filter bson.M, what string) (*models.PromoCode, error) {
	var rec models.PromoCodeRecord
	if err := r.coll.FindOne(ctx, filter).Decode(&rec); err != nil {
		return nil, mongoErr(err, what)
	}
	p := rec.Normalize()
	if rec.SchemaVersion < models.PromoSchemaVersion {
		r.migrate(ctx, &rec, p)
	}
	return p, nil
}

// migrate rewrites a legacy document in the current shape. A failure leaves
// the old document in place; it is normalized again on the next read. The
// replace only applies while used_count is unchanged since the read, so a
// concurrent IncrementUsage is never overwritten.
func (r *PromoCodeRepository) migrate(ctx context.Context, old *models.PromoCodeRecord, p *models.PromoCode) {
	filter := migrationFilter(old)
	res, err := r.coll.ReplaceOne(ctx, filter, models.NewPromoCodeRecord(p))
	if err != nil {
		r.logger.Warn("Failed to migrate promo code", zap.String("id", old.ID), zap.Error(err))
		return
	}
	if res.MatchedCount == 0 {
		r.logger.Info("Promo code changed during migration, retrying on next read", zap.String("id", old.ID))
		return
	}
	r.logger.Info("Promo code migrated",
		zap.String("id", old.ID),
		zap.Int("from_version", old.SchemaVersion),
		zap.Int("to_version", models.PromoSchemaVersion))
}

func migrationFilter(old *models.PromoCodeRecord) bson.M {
	filter := bson.M{"_id": old.ID, "schema_version": bson.M{"$lt": models.PromoSchemaVersion}}
	if old.SchemaVersion == 0 {
		filter["schema_version"] = bson.M{"$exists": false}
	}
	if old.UsedCount == 0 {
		filter["used_count"] = bson.M{"$in": bson.A{0, nil}}
	} else {
		filter["used_count"] = old.UsedCount
	}
	return filter
}

func (r *PromoCodeRepository) List(ctx context.Context) ([]*models.PromoCode, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, mongoErr(err, "promo codes")
	}
	defer cursor.Close(ctx)

	var records []*models.PromoCodeRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, mongoErr(err, "promo codes")
	}
	out := make([]*models.PromoCode, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Normalize())
	}
	return out, nil
}

func (r *PromoCodeRepository) Create(ctx context.Context, p *models.PromoCode) error {
	_, err := r.coll.InsertOne(ctx, models.NewPromoCodeRecord(p))
	return mongoErr(err, "promo code "+p.Code)
}

// Update sets the admin-editable fields. Usage counters are never touched.
func (r *PromoCodeRepository) Update(ctx context.Context, p *models.PromoCode) error {
	rec := models.NewPromoCodeRecord(p)
	set := bson.M{
		"schema_version": models.PromoSchemaVersion,
		"code":           rec.Code,
		"kind":           rec.Kind,
		"value":          rec.Value,
		"max_amount":     rec.MaxAmount,
		"active":         rec.Active,
		"expires_at":     rec.ExpiresAt,
		"login_required": rec.LoginRequired,
		"per_user_limit": rec.PerUserLimit,
		"scope":          rec.Scope,
		"product_ids":    rec.ProductIDs,
		"updated_at":     rec.UpdatedAt,
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": set})
	if err != nil {
		return mongoErr(err, "promo code "+p.Code)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("promo code %s not found", p.ID)
	}
	return nil
}

func (r *PromoCodeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mongoErr(err, "promo code "+id)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("promo code %s not found", id)
	}
	return nil
}

// IncrementUsage adds one use to the global counter and, for a known user,
// to that user's slot. Each write is a single atomic update.
func (r *PromoCodeRepository) IncrementUsage(ctx context.Context, codeID, userID string) error {
	if userID == "" {
		return r.inc(ctx, bson.M{"_id": codeID}, bson.M{"$inc": bson.M{"used_count": 1}}, codeID)
	}

	for attempt := 0; attempt < 2; attempt++ {
		res, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": codeID, "usage.user_id": userID},
			bson.M{"$inc": bson.M{"used_count": 1, "usage.$.count": 1}})
		if err != nil {
			return mongoErr(err, "promo code "+codeID)
		}
		if res.MatchedCount > 0 {
			return nil
		}

		res, err = r.coll.UpdateOne(ctx,
			bson.M{"_id": codeID, "usage.user_id": bson.M{"$ne": userID}},
			bson.M{
				"$inc":  bson.M{"used_count": 1},
				"$push": bson.M{"usage": models.UserUsage{UserID: userID, Count: 1}},
			})
		if err != nil {
			return mongoErr(err, "promo code "+codeID)
		}
		if res.MatchedCount > 0 {
			return nil
		}
		// Another writer created the user's slot between the two updates.
	}
	return apperr.NotFound("promo code %s not found", codeID)
}

func (r *PromoCodeRepository) inc(ctx context.Context, filter, update bson.M, codeID string) error {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return mongoErr(err, "promo code "+codeID)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("promo code %s not found", codeID)
	}
	return nil
}

type NotificationRepository struct {
	coll *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{coll: db.Collection(notificationsCollection)}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := r.coll.InsertOne(ctx, n)
	return mongoErr(err, "notification "+n.ID)
}

func (r *NotificationRepository) ListNotifications(ctx context.Context, unreadOnly bool, limit int64) ([]*models.Notification, error) {
	filter := bson.M{}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoErr(err, "notifications")
	}
	defer cursor.Close(ctx)

	list := []*models.Notification{}
	if err := cursor.All(ctx, &list); err != nil {
		return nil, mongoErr(err, "notifications")
	}
	return list, nil
}

func (r *NotificationRepository) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return mongoErr(err, "notification "+id)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("notification %s not found", id)
	}
	return nil
}
