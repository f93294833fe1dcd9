package relation

import (
	"context"
	"testing"

	"github.com/bumpspot/server/apperr"
	"github.com/bumpspot/server/config"
	"github.com/bumpspot/server/model"
	"github.com/bumpspot/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func nopLogger() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

func newService(t *testing.T) (*Service, *gorm.DB) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db, nil, config.SocialConfig{SearchMinChars: 3}, nopLogger())
	return svc, db
}

func createProfile(t *testing.T, db *gorm.DB, handle string) int64 {
	t.Helper()
	p := &model.Profile{Handle: handle, DisplayName: handle, PasswordHash: "x", Status: 1}
	require.NoError(t, db.Create(p).Error)
	return p.ID
}

// ---- Propose ----

func TestPropose_CreatesPending(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")

	rel, err := svc.Propose(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, model.RelationPending, rel.Status)
	assert.Equal(t, a, rel.RequesterID)
	assert.Equal(t, b, rel.RecipientID)
}

func TestPropose_DuplicateSameDirection(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")

	_, err := svc.Propose(context.Background(), a, b)
	require.NoError(t, err)

	_, err = svc.Propose(context.Background(), a, b)
	assert.Equal(t, apperr.KindDuplicateRelationship, apperr.KindOf(err))
}

func TestPropose_DuplicateReverseDirection(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")

	_, err := svc.Propose(context.Background(), a, b)
	require.NoError(t, err)

	// The pair is unordered: B proposing back must also fail.
	_, err = svc.Propose(context.Background(), b, a)
	assert.Equal(t, apperr.KindDuplicateRelationship, apperr.KindOf(err))
}

func TestPropose_SelfRejected(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")

	_, err := svc.Propose(context.Background(), a, a)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestPropose_UnknownRecipient(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")

	_, err := svc.Propose(context.Background(), a, 9999)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

// ---- Accept ----

func TestAccept_ByRecipient(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")

	rel, err := svc.Propose(context.Background(), a, b)
	require.NoError(t, err)

	accepted, err := svc.Accept(context.Background(), rel.ID, b)
	require.NoError(t, err)
	assert.Equal(t, model.RelationAccepted, accepted.Status)
	assert.False(t, accepted.UpdatedAt.Before(accepted.CreatedAt))
}

func TestAccept_ByRequesterDenied(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")

	rel, err := svc.Propose(context.Background(), a, b)
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), rel.ID, a)
	assert.Equal(t, apperr.KindNotAuthorized, apperr.KindOf(err))
}

func TestAccept_AlreadyAccepted(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")

	rel, _ := svc.Propose(context.Background(), a, b)
	_, err := svc.Accept(context.Background(), rel.ID, b)
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), rel.ID, b)
	assert.Equal(t, apperr.KindNotAuthorized, apperr.KindOf(err))
}

func TestAccept_NotFound(t *testing.T) {
	svc, db := newService(t)
	b := createProfile(t, db, "bob")

	_, err := svc.Accept(context.Background(), 404, b)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

// ---- Remove ----

func TestRemove_ThenProposeSucceeds(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")

	rel, err := svc.Propose(context.Background(), a, b)
	require.NoError(t, err)
	require.NoError(t, svc.Remove(context.Background(), rel.ID, b))

	// The row is fully gone, not soft-deleted: a fresh proposal between
	// the same pair must succeed.
	_, err = svc.Propose(context.Background(), b, a)
	assert.NoError(t, err)
}

func TestRemove_EitherPartyFromAccepted(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")

	rel, _ := svc.Propose(context.Background(), a, b)
	_, err := svc.Accept(context.Background(), rel.ID, b)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(context.Background(), rel.ID, a))

	var count int64
	db.Model(&model.Relationship{}).Count(&count)
	assert.Zero(t, count)
}

func TestRemove_StrangerDenied(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")
	c := createProfile(t, db, "carol")

	rel, _ := svc.Propose(context.Background(), a, b)
	err := svc.Remove(context.Background(), rel.ID, c)
	assert.Equal(t, apperr.KindNotAuthorized, apperr.KindOf(err))
}

// ---- SetHopeToBump ----

func TestSetHopeToBump_RequesterOnly(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")

	rel, _ := svc.Propose(context.Background(), a, b)
	_, err := svc.Accept(context.Background(), rel.ID, b)
	require.NoError(t, err)

	updated, err := svc.SetHopeToBump(context.Background(), rel.ID, a, true)
	require.NoError(t, err)
	assert.True(t, updated.HopeToBump)

	// The flag belongs to the requester; the recipient cannot touch it.
	_, err = svc.SetHopeToBump(context.Background(), rel.ID, b, false)
	assert.Equal(t, apperr.KindNotAuthorized, apperr.KindOf(err))
}

// ---- List ----

func TestList_PartitionsScenario(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")

	rel, err := svc.Propose(context.Background(), a, b)
	require.NoError(t, err)

	// A proposed to B: pending for both, in opposite partitions.
	aParts, err := svc.List(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, aParts.PendingSent, 1)
	assert.Empty(t, aParts.PendingReceived)
	assert.Empty(t, aParts.Accepted)
	assert.Equal(t, "bob", aParts.PendingSent[0].Counterpart.Handle)

	bParts, err := svc.List(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, bParts.PendingReceived, 1)
	assert.Empty(t, bParts.PendingSent)
	assert.Empty(t, bParts.Accepted)
	assert.Equal(t, "alice", bParts.PendingReceived[0].Counterpart.Handle)

	// After acceptance the edge is symmetric.
	_, err = svc.Accept(context.Background(), rel.ID, b)
	require.NoError(t, err)

	aParts, _ = svc.List(context.Background(), a)
	bParts, _ = svc.List(context.Background(), b)
	require.Len(t, aParts.Accepted, 1)
	require.Len(t, bParts.Accepted, 1)
	assert.Empty(t, aParts.PendingSent)
	assert.Empty(t, bParts.PendingReceived)
}

// ---- SearchCandidates ----

func TestSearchCandidates_ShortQuerySkipsStore(t *testing.T) {
	svc, db := newService(t)
	createProfile(t, db, "abcuser")

	// Close the underlying connection: a short query must still return
	// an empty result because it never reaches the database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	results, err := svc.SearchCandidates(context.Background(), "ab", 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchCandidates_MatchesAndExcludesCaller(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "abcalice")
	createProfile(t, db, "abcbob")
	createProfile(t, db, "carol")

	results, err := svc.SearchCandidates(context.Background(), "abc", a)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "abcbob", results[0].Handle)
}

func TestSearchCandidates_CaseInsensitive(t *testing.T) {
	svc, db := newService(t)
	createProfile(t, db, "CoffeeFan")

	results, err := svc.SearchCandidates(context.Background(), "coffee", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "CoffeeFan", results[0].Handle)
}

// ---- FriendIDs ----

func TestFriendIDs_OnlyAccepted(t *testing.T) {
	svc, db := newService(t)
	a := createProfile(t, db, "alice")
	b := createProfile(t, db, "bob")
	c := createProfile(t, db, "carol")

	rel, _ := svc.Propose(context.Background(), a, b)
	_, err := svc.Accept(context.Background(), rel.ID, b)
	require.NoError(t, err)
	_, err = svc.Propose(context.Background(), c, a) // still pending
	require.NoError(t, err)

	ids, err := svc.FriendIDs(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, []int64{b}, ids)
}
