package relation

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/bumpspot/server/apperr"
	"github.com/bumpspot/server/config"
	"github.com/bumpspot/server/feed"
	"github.com/bumpspot/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const searchLimit = 20

// Edge is one relationship row hydrated with the counterpart's profile.
type Edge struct {
	model.Relationship
	Counterpart model.ProfileSummary `json:"counterpart"`
}

// Partitions is the three-way split of a user's relationships. The sets
// are disjoint: accepted edges are symmetric, pending edges are keyed by
// which side of the request the user is on.
type Partitions struct {
	Accepted        []Edge `json:"accepted"`
	PendingReceived []Edge `json:"pending_received"`
	PendingSent     []Edge `json:"pending_sent"`
}

// Service is the relationship lifecycle engine.
type Service struct {
	db       *gorm.DB
	feed     *feed.Service
	minChars int
	logger   *zap.Logger
}

// NewService creates the relationship engine. The feed may be nil.
func NewService(db *gorm.DB, fd *feed.Service, cfg config.SocialConfig, logger *zap.Logger) *Service {
	minChars := cfg.SearchMinChars
	if minChars <= 0 {
		minChars = 3
	}
	return &Service{db: db, feed: fd, minChars: minChars, logger: logger}
}

// Propose creates a pending edge directed requester → recipient. The
// unique index on the normalized pair key rejects a second edge between
// the same two users regardless of direction, so the duplicate check is
// the insert itself.
func (svc *Service) Propose(ctx context.Context, requesterID, recipientID int64) (*model.Relationship, error) {
	if requesterID <= 0 || recipientID <= 0 {
		return nil, apperr.Validation("requester and recipient are required")
	}
	if requesterID == recipientID {
		return nil, apperr.Validation("cannot send a request to yourself")
	}

	var recipient model.Profile
	if err := svc.db.WithContext(ctx).First(&recipient, recipientID).Error; err != nil {
		return nil, apperr.FromStore(err, "recipient not found")
	}

	rel := model.NewRelationship(requesterID, recipientID)
	if err := svc.db.WithContext(ctx).Create(rel).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.DuplicateRelationship("a relationship between these users already exists")
		}
		return nil, apperr.Store(err)
	}

	svc.feed.Record(feed.Entry{
		ActorID:  requesterID,
		TargetID: recipientID,
		Verb:     model.VerbRequestSent,
	})
	svc.logger.Debug("relationship proposed",
		zap.Int64("requester", requesterID),
		zap.Int64("recipient", recipientID))
	return rel, nil
}

// Accept transitions a pending edge to accepted. Only the recipient of
// the request may do this, and only while the edge is still pending.
func (svc *Service) Accept(ctx context.Context, id, actorID int64) (*model.Relationship, error) {
	rel, err := svc.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID != rel.RecipientID {
		return nil, apperr.NotAuthorized("only the recipient can accept a request")
	}
	if rel.Status != model.RelationPending {
		return nil, apperr.NotAuthorized("request is no longer pending")
	}

	rel.Status = model.RelationAccepted
	if err := svc.db.WithContext(ctx).Save(rel).Error; err != nil {
		return nil, apperr.Store(err)
	}

	svc.feed.Record(feed.Entry{
		ActorID:  actorID,
		TargetID: rel.RequesterID,
		Verb:     model.VerbBecameFriends,
	})
	return rel, nil
}

// Remove deletes the edge outright. Either party may call it at any
// stage; it covers decline, cancel and unfriend. A later Propose between
// the same pair starts from scratch.
func (svc *Service) Remove(ctx context.Context, id, actorID int64) error {
	rel, err := svc.get(ctx, id)
	if err != nil {
		return err
	}
	if !rel.Involves(actorID) {
		return apperr.NotAuthorized("not a party to this relationship")
	}

	if err := svc.db.WithContext(ctx).Delete(&model.Relationship{}, id).Error; err != nil {
		return apperr.Store(err)
	}

	if rel.Status == model.RelationAccepted {
		svc.feed.Record(feed.Entry{
			ActorID:  actorID,
			TargetID: rel.CounterpartID(actorID),
			Verb:     model.VerbUnfriended,
		})
	}
	return nil
}

// SetHopeToBump flips the hope-to-bump flag. The flag belongs to the
// edge's original requester, not to whichever side is asking.
func (svc *Service) SetHopeToBump(ctx context.Context, id, actorID int64, value bool) (*model.Relationship, error) {
	rel, err := svc.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID != rel.RequesterID {
		return nil, apperr.NotAuthorized("only the original requester owns this flag")
	}

	rel.HopeToBump = value
	if err := svc.db.WithContext(ctx).Save(rel).Error; err != nil {
		return nil, apperr.Store(err)
	}
	return rel, nil
}

// List returns the user's relationships split into accepted, pending
// received and pending sent, each hydrated with the counterpart profile.
func (svc *Service) List(ctx context.Context, userID int64) (*Partitions, error) {
	if userID <= 0 {
		return nil, apperr.Validation("user is required")
	}

	var rows []model.Relationship
	err := svc.db.WithContext(ctx).
		Where("requester_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Store(err)
	}

	summaries, err := svc.counterpartSummaries(ctx, rows, userID)
	if err != nil {
		return nil, err
	}

	out := &Partitions{
		Accepted:        []Edge{},
		PendingReceived: []Edge{},
		PendingSent:     []Edge{},
	}
	for _, r := range rows {
		e := Edge{Relationship: r, Counterpart: summaries[r.CounterpartID(userID)]}
		switch {
		case r.Status == model.RelationAccepted:
			out.Accepted = append(out.Accepted, e)
		case r.RecipientID == userID:
			out.PendingReceived = append(out.PendingReceived, e)
		default:
			out.PendingSent = append(out.PendingSent, e)
		}
	}
	return out, nil
}

// SearchCandidates matches handles case-insensitively by substring.
// Queries shorter than the configured minimum return an empty result
// without touching the database; the caller is always excluded.
func (svc *Service) SearchCandidates(ctx context.Context, query string, excludingID int64) ([]model.ProfileSummary, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < svc.minChars {
		return []model.ProfileSummary{}, nil
	}

	var profiles []model.Profile
	err := svc.db.WithContext(ctx).
		Where("LOWER(handle) LIKE ?", "%"+strings.ToLower(query)+"%").
		Where("id <> ?", excludingID).
		Order("handle ASC").
		Limit(searchLimit).
		Find(&profiles).Error
	if err != nil {
		return nil, apperr.Store(err)
	}

	out := make([]model.ProfileSummary, len(profiles))
	for i, p := range profiles {
		out[i] = p.Summary()
	}
	return out, nil
}

// FriendIDs returns the IDs of users with an accepted edge to userID.
// Used by the presence engine for friends-only visibility.
func (svc *Service) FriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	var rows []model.Relationship
	err := svc.db.WithContext(ctx).
		Where("(requester_id = ? OR recipient_id = ?) AND status = ?",
			userID, userID, model.RelationAccepted).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Store(err)
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.CounterpartID(userID)
	}
	return ids, nil
}

func (svc *Service) get(ctx context.Context, id int64) (*model.Relationship, error) {
	var rel model.Relationship
	if err := svc.db.WithContext(ctx).First(&rel, id).Error; err != nil {
		return nil, apperr.FromStore(err, "relationship not found")
	}
	return &rel, nil
}

func (svc *Service) counterpartSummaries(ctx context.Context, rows []model.Relationship, userID int64) (map[int64]model.ProfileSummary, error) {
	if len(rows) == 0 {
		return map[int64]model.ProfileSummary{}, nil
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.CounterpartID(userID))
	}
	var profiles []model.Profile
	if err := svc.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, apperr.Store(err)
	}
	out := make(map[int64]model.ProfileSummary, len(profiles))
	for _, p := range profiles {
		out[p.ID] = p.Summary()
	}
	return out, nil
}
