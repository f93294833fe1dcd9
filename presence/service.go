package presence

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/bumpspot/server/apperr"
	"github.com/bumpspot/server/cache"
	"github.com/bumpspot/server/config"
	"github.com/bumpspot/server/feed"
	"github.com/bumpspot/server/model"
	"github.com/bumpspot/server/relation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventChannel is the pub/sub channel presence lifecycle events go out on.
const EventChannel = "presence"

const popularZKey = "popular:places"
const popularTop = 50

// Event is the payload published on EventChannel.
type Event struct {
	Type      string `json:"type"` // checkin_created | checkin_expired
	CheckInID int64  `json:"checkin_id"`
	SubjectID int64  `json:"subject_id"`
	PlaceID   int64  `json:"place_id"`
}

// Record is one check-in hydrated with its place and subject profile.
type Record struct {
	model.CheckIn
	Place   model.Place          `json:"place"`
	Subject model.ProfileSummary `json:"subject"`
}

// PlaceGroup is the active check-ins at one place.
type PlaceGroup struct {
	Place    model.Place `json:"place"`
	CheckIns []Record    `json:"check_ins"`
}

// PlacePopularity is one row of the popular-places ranking.
type PlacePopularity struct {
	Place       model.Place `json:"place"`
	ActiveCount int64       `json:"active_count"`
}

// Fields is the mutable subset of a check-in. Nil pointers leave the
// current value alone; ClearExpiry removes the expiry entirely.
type Fields struct {
	Activity    *string
	Privacy     *string
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// Service is the check-in lifecycle engine.
type Service struct {
	db         *gorm.DB
	cache      cache.Cache
	pubsub     cache.PubSub
	relations  *relation.Service
	feed       *feed.Service
	defaultTTL time.Duration
	logger     *zap.Logger
}

// NewService creates the presence engine. Pubsub and feed may be nil.
func NewService(db *gorm.DB, c cache.Cache, ps cache.PubSub, rel *relation.Service, fd *feed.Service, cfg config.PresenceConfig, logger *zap.Logger) *Service {
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Service{
		db:         db,
		cache:      c,
		pubsub:     ps,
		relations:  rel,
		feed:       fd,
		defaultTTL: ttl,
		logger:     logger,
	}
}

// CheckIn declares that subject is at place. A nil ttl applies the
// default lifetime; an explicit ttl must be positive.
func (svc *Service) CheckIn(ctx context.Context, subjectID, placeID int64, activity, privacy string, ttl *time.Duration) (*Record, error) {
	if subjectID <= 0 || placeID <= 0 {
		return nil, apperr.Validation("subject and place are required")
	}
	if privacy == "" {
		privacy = model.PrivacyPublic
	}
	if !model.ValidPrivacy(privacy) {
		return nil, apperr.Validation("privacy must be public, friends or private")
	}
	lifetime := svc.defaultTTL
	if ttl != nil {
		if *ttl <= 0 {
			return nil, apperr.Validation("ttl must be positive")
		}
		lifetime = *ttl
	}

	var place model.Place
	if err := svc.db.WithContext(ctx).First(&place, placeID).Error; err != nil {
		return nil, apperr.FromStore(err, "place not found")
	}

	expires := time.Now().Add(lifetime)
	ci := &model.CheckIn{
		SubjectID: subjectID,
		PlaceID:   placeID,
		Activity:  activity,
		Privacy:   privacy,
		ExpiresAt: &expires,
	}
	if err := svc.db.WithContext(ctx).Create(ci).Error; err != nil {
		return nil, apperr.Store(err)
	}

	svc.publish(ctx, Event{Type: "checkin_created", CheckInID: ci.ID, SubjectID: subjectID, PlaceID: placeID})
	svc.feed.Record(feed.Entry{
		ActorID: subjectID,
		Verb:    model.VerbCheckedIn,
		Detail:  map[string]interface{}{"place_id": placeID, "activity": activity},
	})
	return svc.hydrateOne(ctx, ci)
}

// ListActive returns live check-ins visible to the viewer, newest first.
// Public rows are always visible, friends rows only to accepted friends
// of the subject (and the subject), private rows to the subject alone.
func (svc *Service) ListActive(ctx context.Context, viewerID int64) ([]Record, error) {
	friendIDs, err := svc.relations.FriendIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if len(friendIDs) == 0 {
		friendIDs = []int64{-1} // keep the IN clause well-formed
	}

	now := time.Now()
	var rows []model.CheckIn
	err = svc.db.WithContext(ctx).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("privacy = ? OR subject_id = ? OR (privacy = ? AND subject_id IN ?)",
			model.PrivacyPublic, viewerID, model.PrivacyFriends, friendIDs).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Store(err)
	}
	return svc.hydrate(ctx, rows)
}

// GroupByPlace folds ListActive into per-place groups. Place order is
// first-seen over the newest-first scan; within a group the fetch order
// is preserved. Every active record lands in exactly one group.
func (svc *Service) GroupByPlace(ctx context.Context, viewerID int64) ([]PlaceGroup, error) {
	records, err := svc.ListActive(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	index := make(map[int64]int)
	groups := make([]PlaceGroup, 0)
	for _, rec := range records {
		i, ok := index[rec.PlaceID]
		if !ok {
			i = len(groups)
			index[rec.PlaceID] = i
			groups = append(groups, PlaceGroup{Place: rec.Place})
		}
		groups[i].CheckIns = append(groups[i].CheckIns, rec)
	}
	return groups, nil
}

// Update merges the given fields into the check-in. Owner only, and
// only while the check-in is still live: expiry is one-way, an ended
// check-in can never be edited back into the active set.
func (svc *Service) Update(ctx context.Context, id, subjectID int64, fields Fields) (*Record, error) {
	ci, err := svc.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ci.SubjectID != subjectID {
		return nil, apperr.NotAuthorized("not your check-in")
	}
	if !ci.Active(time.Now()) {
		return nil, apperr.NotFound("check-in has ended")
	}

	if fields.Activity != nil {
		ci.Activity = *fields.Activity
	}
	if fields.Privacy != nil {
		if !model.ValidPrivacy(*fields.Privacy) {
			return nil, apperr.Validation("privacy must be public, friends or private")
		}
		ci.Privacy = *fields.Privacy
	}
	if fields.ClearExpiry {
		ci.ExpiresAt = nil
	} else if fields.ExpiresAt != nil {
		ci.ExpiresAt = fields.ExpiresAt
	}

	if err := svc.db.WithContext(ctx).Save(ci).Error; err != nil {
		return nil, apperr.Store(err)
	}
	return svc.hydrateOne(ctx, ci)
}

// Expire soft-deletes the check-in by stamping its expiry to now. The
// row stays in history but drops out of every active-set query.
func (svc *Service) Expire(ctx context.Context, id, subjectID int64) (*Record, error) {
	ci, err := svc.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ci.SubjectID != subjectID {
		return nil, apperr.NotAuthorized("not your check-in")
	}

	now := time.Now()
	ci.ExpiresAt = &now
	if err := svc.db.WithContext(ctx).Save(ci).Error; err != nil {
		return nil, apperr.Store(err)
	}

	svc.publish(ctx, Event{Type: "checkin_expired", CheckInID: ci.ID, SubjectID: ci.SubjectID, PlaceID: ci.PlaceID})
	svc.feed.Record(feed.Entry{
		ActorID: subjectID,
		Verb:    model.VerbCheckInEnded,
		Detail:  map[string]interface{}{"place_id": ci.PlaceID},
	})
	return svc.hydrateOne(ctx, ci)
}

// History returns all of the subject's own check-ins, expired included,
// newest first.
func (svc *Service) History(ctx context.Context, subjectID int64, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var rows []model.CheckIn
	err := svc.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Store(err)
	}
	return svc.hydrate(ctx, rows)
}

// RefreshPopular rebuilds the popular-places sorted set from the active
// public check-in counts. Called periodically via a poller attachment.
func (svc *Service) RefreshPopular(ctx context.Context) error {
	type row struct {
		PlaceID int64
		Total   int64
	}
	var counts []row
	err := svc.db.WithContext(ctx).
		Model(&model.CheckIn{}).
		Select("place_id, COUNT(*) AS total").
		Where("privacy = ?", model.PrivacyPublic).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Group("place_id").
		Order("total DESC").
		Limit(popularTop).
		Scan(&counts).Error
	if err != nil {
		return apperr.Store(err)
	}

	if err := svc.cache.ZClear(ctx, popularZKey); err != nil {
		return err
	}
	for _, c := range counts {
		_ = svc.cache.ZAdd(ctx, popularZKey, float64(c.Total), strconv.FormatInt(c.PlaceID, 10))
	}
	return nil
}

// Popular returns the busiest places by active public check-ins,
// cache-first with a DB fallback that also reseeds the cache.
func (svc *Service) Popular(ctx context.Context, limit int) ([]PlacePopularity, error) {
	if limit <= 0 || limit > popularTop {
		limit = 10
	}

	members, err := svc.cache.ZRevRange(ctx, popularZKey, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		out := make([]PlacePopularity, 0, len(members))
		ids := make([]int64, 0, len(members))
		scores := make(map[int64]int64, len(members))
		for _, m := range members {
			placeID, perr := strconv.ParseInt(m, 10, 64)
			if perr != nil {
				continue
			}
			score, _ := svc.cache.ZScore(ctx, popularZKey, m)
			ids = append(ids, placeID)
			scores[placeID] = int64(score)
		}
		var places []model.Place
		if err := svc.db.WithContext(ctx).Where("id IN ?", ids).Find(&places).Error; err != nil {
			return nil, apperr.Store(err)
		}
		byID := make(map[int64]model.Place, len(places))
		for _, p := range places {
			byID[p.ID] = p
		}
		for _, id := range ids {
			if p, ok := byID[id]; ok {
				out = append(out, PlacePopularity{Place: p, ActiveCount: scores[id]})
			}
		}
		return out, nil
	}

	// Cache empty or unavailable: rebuild and re-read.
	if err := svc.RefreshPopular(ctx); err != nil {
		return nil, err
	}
	members, err = svc.cache.ZRevRange(ctx, popularZKey, 0, int64(limit-1))
	if err != nil {
		return nil, apperr.Store(err)
	}
	out := make([]PlacePopularity, 0, len(members))
	for _, m := range members {
		placeID, perr := strconv.ParseInt(m, 10, 64)
		if perr != nil {
			continue
		}
		var place model.Place
		if err := svc.db.WithContext(ctx).First(&place, placeID).Error; err != nil {
			continue
		}
		score, _ := svc.cache.ZScore(ctx, popularZKey, m)
		out = append(out, PlacePopularity{Place: place, ActiveCount: int64(score)})
	}
	return out, nil
}

func (svc *Service) get(ctx context.Context, id int64) (*model.CheckIn, error) {
	var ci model.CheckIn
	if err := svc.db.WithContext(ctx).First(&ci, id).Error; err != nil {
		return nil, apperr.FromStore(err, "check-in not found")
	}
	return &ci, nil
}

func (svc *Service) publish(ctx context.Context, ev Event) {
	if svc.pubsub == nil {
		return
	}
	payload, _ := json.Marshal(ev)
	if err := svc.pubsub.Publish(ctx, EventChannel, string(payload)); err != nil {
		svc.logger.Warn("presence event publish failed", zap.Error(err))
	}
}

func (svc *Service) hydrateOne(ctx context.Context, ci *model.CheckIn) (*Record, error) {
	records, err := svc.hydrate(ctx, []model.CheckIn{*ci})
	if err != nil {
		return nil, err
	}
	return &records[0], nil
}

// hydrate joins places and subject profiles onto the raw rows with one
// IN query each, preserving row order.
func (svc *Service) hydrate(ctx context.Context, rows []model.CheckIn) ([]Record, error) {
	if len(rows) == 0 {
		return []Record{}, nil
	}

	placeIDs := make([]int64, 0, len(rows))
	subjectIDs := make([]int64, 0, len(rows))
	for _, r := range rows {
		placeIDs = append(placeIDs, r.PlaceID)
		subjectIDs = append(subjectIDs, r.SubjectID)
	}

	var places []model.Place
	if err := svc.db.WithContext(ctx).Where("id IN ?", placeIDs).Find(&places).Error; err != nil {
		return nil, apperr.Store(err)
	}
	placeByID := make(map[int64]model.Place, len(places))
	for _, p := range places {
		placeByID[p.ID] = p
	}

	var profiles []model.Profile
	if err := svc.db.WithContext(ctx).Where("id IN ?", subjectIDs).Find(&profiles).Error; err != nil {
		return nil, apperr.Store(err)
	}
	profileByID := make(map[int64]model.ProfileSummary, len(profiles))
	for _, p := range profiles {
		profileByID[p.ID] = p.Summary()
	}

	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = Record{
			CheckIn: r,
			Place:   placeByID[r.PlaceID],
			Subject: profileByID[r.SubjectID],
		}
	}
	return out, nil
}
