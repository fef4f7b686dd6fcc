package booking

import (
	"context"
	"errors"
	"time"

	"agenda-backend/internal/db"
	"agenda-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	client *mongo.Client
	cols   *db.Collections
}

func NewMongoRepository(client *mongo.Client, cols *db.Collections) *MongoRepository {
	return &MongoRepository{client: client, cols: cols}
}

// meetingDocument carries the derived "active" flag backing the partial unique index.
type meetingDocument struct {
	models.Meeting `bson:",inline"`
	Active         bool `bson:"active"`
}

type settingsDocument struct {
	ID              string `bson:"_id"`
	models.Settings `bson:",inline"`
}

func (r *MongoRepository) ListAvailabilityRules(ctx context.Context) ([]models.AvailabilityRule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "dayOfWeek", Value: 1}, {Key: "startTime", Value: 1}})
	cursor, err := r.cols.AvailabilityRules.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.AvailabilityRule, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) ListBlockedDates(ctx context.Context, from, to string) ([]models.BlockedDate, error) {
	rng := bson.M{}
	if from != "" {
		rng["$gte"] = from
	}
	if to != "" {
		rng["$lte"] = to
	}
	filter := bson.M{}
	if len(rng) > 0 {
		filter["date"] = rng
	}

	cursor, err := r.cols.BlockedDates.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.BlockedDate, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) ListMeetings(ctx context.Context, date string, statuses []models.MeetingStatus) ([]models.Meeting, error) {
	filter := bson.M{"date": date}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	return r.findMeetings(ctx, filter, options.Find().SetSort(bson.D{{Key: "time", Value: 1}}))
}

func (r *MongoRepository) findMeetings(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Meeting, error) {
	cursor, err := r.cols.Meetings.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.Meeting, 0)
	for cursor.Next(ctx) {
		var doc meetingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		items = append(items, doc.Meeting)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) GetSettings(ctx context.Context) (models.Settings, error) {
	var doc settingsDocument
	if err := r.cols.Settings.FindOne(ctx, bson.M{"_id": models.SettingsSingleID}).Decode(&doc); err != nil {
		return models.Settings{}, notFound(err)
	}
	return doc.Settings, nil
}

func (r *MongoRepository) GetService(ctx context.Context, id string) (models.Service, error) {
	var service models.Service
	if err := r.cols.Services.FindOne(ctx, bson.M{"_id": id}).Decode(&service); err != nil {
		return models.Service{}, notFound(err)
	}
	return service, nil
}

func (r *MongoRepository) GetMeeting(ctx context.Context, id string) (models.Meeting, error) {
	var doc meetingDocument
	if err := r.cols.Meetings.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return models.Meeting{}, notFound(err)
	}
	return doc.Meeting, nil
}

func (r *MongoRepository) InsertMeeting(ctx context.Context, meeting models.Meeting) (models.Meeting, error) {
	doc := meetingDocument{Meeting: meeting, Active: IsActive(meeting.Status)}
	if _, err := r.cols.Meetings.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Meeting{}, ErrSlotNoLongerAvailable
		}
		return models.Meeting{}, err
	}
	return meeting, nil
}

func (r *MongoRepository) UpdateMeetingStatus(ctx context.Context, id string, from, to models.MeetingStatus, at time.Time) (models.Meeting, error) {
	update := bson.M{
		"$set": bson.M{
			"status":    to,
			"active":    IsActive(to),
			"updatedAt": at,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc meetingDocument
	err := r.cols.Meetings.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := r.GetMeeting(ctx, id); getErr != nil {
			return models.Meeting{}, getErr
		}
		return models.Meeting{}, ErrStatusChanged
	}
	if err != nil {
		return models.Meeting{}, err
	}
	return doc.Meeting, nil
}

// WithDateLock runs fn inside a multi-document transaction that first bumps a per-date
// lock document. Concurrent reservations for the same date write the same document, so
// all but one abort with a transient write conflict; WithTransaction re-runs fn, whose
// re-check then sees the committed meeting.
func (r *MongoRepository) WithDateLock(ctx context.Context, date string, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		_, err := r.cols.DateLocks.UpdateOne(sc,
			bson.M{"_id": date},
			bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"lockedAt": time.Now()}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return nil, err
		}
		return nil, fn(sc)
	})
	return err
}

func (r *MongoRepository) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	cursor, err := r.cols.Services.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.Service, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) CreateService(ctx context.Context, service models.Service) error {
	_, err := r.cols.Services.InsertOne(ctx, service)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *MongoRepository) UpdateService(ctx context.Context, service models.Service) (models.Service, error) {
	update := bson.M{
		"$set": bson.M{
			"name":            service.Name,
			"slug":            service.Slug,
			"description":     service.Description,
			"category":        service.Category,
			"durationMinutes": service.DurationMinutes,
			"price":           service.Price,
			"active":          service.Active,
			"color":           service.Color,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Service
	err := r.cols.Services.FindOneAndUpdate(ctx, bson.M{"_id": service.ID}, update, opts).Decode(&updated)
	if mongo.IsDuplicateKeyError(err) {
		return models.Service{}, ErrDuplicate
	}
	if err != nil {
		return models.Service{}, notFound(err)
	}
	return updated, nil
}

func (r *MongoRepository) DeleteService(ctx context.Context, id string) error {
	return deleteByID(ctx, r.cols.Services, id)
}

func (r *MongoRepository) CreateAvailabilityRule(ctx context.Context, rule models.AvailabilityRule) error {
	_, err := r.cols.AvailabilityRules.InsertOne(ctx, rule)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *MongoRepository) UpdateAvailabilityRule(ctx context.Context, rule models.AvailabilityRule) (models.AvailabilityRule, error) {
	update := bson.M{
		"$set": bson.M{
			"dayOfWeek": rule.DayOfWeek,
			"startTime": rule.StartTime,
			"endTime":   rule.EndTime,
			"active":    rule.Active,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.AvailabilityRule
	if err := r.cols.AvailabilityRules.FindOneAndUpdate(ctx, bson.M{"_id": rule.ID}, update, opts).Decode(&updated); err != nil {
		return models.AvailabilityRule{}, notFound(err)
	}
	return updated, nil
}

func (r *MongoRepository) DeleteAvailabilityRule(ctx context.Context, id string) error {
	return deleteByID(ctx, r.cols.AvailabilityRules, id)
}

func (r *MongoRepository) GetBlockedDate(ctx context.Context, id string) (models.BlockedDate, error) {
	var blocked models.BlockedDate
	if err := r.cols.BlockedDates.FindOne(ctx, bson.M{"_id": id}).Decode(&blocked); err != nil {
		return models.BlockedDate{}, notFound(err)
	}
	return blocked, nil
}

func (r *MongoRepository) CreateBlockedDates(ctx context.Context, dates []models.BlockedDate) (int, error) {
	inserted := 0
	for _, d := range dates {
		if _, err := r.cols.BlockedDates.InsertOne(ctx, d); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (r *MongoRepository) DeleteBlockedDate(ctx context.Context, id string) error {
	return deleteByID(ctx, r.cols.BlockedDates, id)
}

func (r *MongoRepository) SaveSettings(ctx context.Context, settings models.Settings) error {
	doc := settingsDocument{ID: models.SettingsSingleID, Settings: settings}
	_, err := r.cols.Settings.ReplaceOne(ctx, bson.M{"_id": models.SettingsSingleID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *MongoRepository) ListMeetingsAdmin(ctx context.Context, filter MeetingFilter, limit, offset int64) ([]models.Meeting, int64, error) {
	query := bson.M{}
	if filter.Date != "" {
		query["date"] = filter.Date
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}).
		SetLimit(limit).
		SetSkip(offset)

	items, err := r.findMeetings(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := r.cols.Meetings.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *MongoRepository) DeleteMeeting(ctx context.Context, id string) error {
	return deleteByID(ctx, r.cols.Meetings, id)
}

func (r *MongoRepository) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	if err := r.cols.Users.FindOne(ctx, bson.M{"username": username}).Decode(&user); err != nil {
		return models.User{}, notFound(err)
	}
	return user, nil
}

func (r *MongoRepository) CreateUser(ctx context.Context, user models.User) error {
	_, err := r.cols.Users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func deleteByID(ctx context.Context, col *mongo.Collection, id string) error {
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
