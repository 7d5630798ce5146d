package classify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/grouper/internal/classify"
)

func TestDispatcher_SendsOnlyUnknownLabels(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := classify.NewMockPublisher(ctrl)
	cache := classify.NewMockCache(ctrl)
	tracker := classify.NewMockTracker(ctrl)
	userID := uuid.New()

	cache.EXPECT().
		LookupBatch(gomock.Any(), []string{"Bus ticket", "Coffee", "Misc Item"}).
		Return(map[string]string{"Coffee": "Food"}, nil)

	var recorded classify.Request

	tracker.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r classify.Request) error {
		recorded = r
		return nil
	})

	var published classify.MatchRequest

	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req classify.MatchRequest) error {
		published = req
		return nil
	})

	d := classify.NewDispatcher(publisher, cache, classify.NewMockApplier(ctrl), classify.WithTracker(tracker))

	res, err := d.Dispatch(context.Background(), userID,
		[]string{" Coffee", "Bus ticket", "Misc Item", "Coffee", ""},
		[]string{"Transport", "Food"},
	)
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.NotEmpty(t, res.CorrelationID)
	assert.Equal(t, []string{"Bus ticket", "Misc Item"}, res.Sent)

	assert.Equal(t, res.CorrelationID, published.CorrelationID)
	assert.Equal(t, userID.String(), published.UserID)
	assert.Equal(t, []string{"Bus ticket", "Misc Item"}, published.Labels)
	assert.Equal(t, []string{"Food", "Transport"}, published.KnownCategoryLabels)
	assert.Contains(t, published.Prompt, "- Misc Item")
	assert.NotContains(t, published.Prompt, "- Coffee")

	assert.Equal(t, res.CorrelationID, recorded.CorrelationID)
	assert.Equal(t, classify.StatusPending, recorded.Status)
	assert.Equal(t, 2, recorded.Labels)
	assert.Equal(t, classify.Fingerprint([]string{"Food", "Transport"}), recorded.Fingerprint)
}

func TestDispatcher_AllKnownWithUnchangedCategoriesAppliesLocally(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := classify.NewMockCache(ctrl)
	applier := classify.NewMockApplier(ctrl)
	tracker := classify.NewMockTracker(ctrl)
	userID := uuid.New()
	categories := []string{"Food"}

	cache.EXPECT().LookupBatch(gomock.Any(), []string{"Coffee"}).Return(map[string]string{"Coffee": "Food"}, nil)
	tracker.EXPECT().LastFingerprint(gomock.Any(), userID).Return(classify.Fingerprint(categories), true, nil)
	applier.EXPECT().Apply(gomock.Any(), userID).Return(&classify.ApplyResult{Assigned: 1}, nil)

	d := classify.NewDispatcher(classify.NewMockPublisher(ctrl), cache, applier, classify.WithTracker(tracker))

	res, err := d.Dispatch(context.Background(), userID, []string{"Coffee"}, categories)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.CorrelationID)
	assert.Equal(t, 1, res.Applied.Assigned)
}

func TestDispatcher_AllKnownWithChangedCategoriesSendsEmptyRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := classify.NewMockPublisher(ctrl)
	cache := classify.NewMockCache(ctrl)
	tracker := classify.NewMockTracker(ctrl)
	userID := uuid.New()

	cache.EXPECT().LookupBatch(gomock.Any(), []string{"Coffee"}).Return(map[string]string{"Coffee": "Food"}, nil)
	tracker.EXPECT().LastFingerprint(gomock.Any(), userID).Return(classify.Fingerprint([]string{"Food"}), true, nil)
	tracker.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req classify.MatchRequest) error {
		assert.Empty(t, req.Labels)
		assert.Equal(t, []string{"Drinks", "Food"}, req.KnownCategoryLabels)
		return nil
	})

	d := classify.NewDispatcher(publisher, cache, classify.NewMockApplier(ctrl), classify.WithTracker(tracker))

	res, err := d.Dispatch(context.Background(), userID, []string{"Coffee"}, []string{"Food", "Drinks"})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Empty(t, res.Sent)
}

func TestDispatcher_UnreadableFingerprintSendsRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := classify.NewMockPublisher(ctrl)
	cache := classify.NewMockCache(ctrl)
	tracker := classify.NewMockTracker(ctrl)
	userID := uuid.New()

	cache.EXPECT().LookupBatch(gomock.Any(), []string{"Coffee"}).Return(map[string]string{"Coffee": "Food"}, nil)
	tracker.EXPECT().LastFingerprint(gomock.Any(), userID).Return("", false, errors.New("connection reset"))
	tracker.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	d := classify.NewDispatcher(publisher, cache, classify.NewMockApplier(ctrl), classify.WithTracker(tracker))

	res, err := d.Dispatch(context.Background(), userID, []string{"Coffee"}, []string{"Food"})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.NotEmpty(t, res.CorrelationID)
}

func TestDispatcher_WithoutTrackerAllKnownSkips(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := classify.NewMockCache(ctrl)
	applier := classify.NewMockApplier(ctrl)
	userID := uuid.New()

	cache.EXPECT().LookupBatch(gomock.Any(), []string{}).Return(map[string]string{}, nil)
	applier.EXPECT().Apply(gomock.Any(), userID).Return(nil, classify.ErrNoTransactions)

	d := classify.NewDispatcher(classify.NewMockPublisher(ctrl), cache, applier)

	_, err := d.Dispatch(context.Background(), userID, nil, []string{"Food"})
	assert.ErrorIs(t, err, classify.ErrNoTransactions)
}

func TestDispatcher_TransportFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := classify.NewMockPublisher(ctrl)
	cache := classify.NewMockCache(ctrl)
	tracker := classify.NewMockTracker(ctrl)
	userID := uuid.New()
	transportErr := errors.New("503 server busy")

	cache.EXPECT().LookupBatch(gomock.Any(), gomock.Any()).Return(map[string]string{}, nil)
	tracker.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(transportErr).Times(1)
	tracker.EXPECT().Resolve(gomock.Any(), gomock.Any(), classify.StatusFailed, transportErr.Error()).Return(nil)

	d := classify.NewDispatcher(publisher, cache, classify.NewMockApplier(ctrl), classify.WithTracker(tracker))

	res, err := d.Dispatch(context.Background(), userID, []string{"Coffee"}, []string{"Food"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, classify.ErrDispatchTransport)
	assert.ErrorIs(t, err, transportErr)
}

func TestDispatcher_CancelledBeforePublish(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := classify.NewMockCache(ctrl)
	cache.EXPECT().LookupBatch(gomock.Any(), gomock.Any()).Return(map[string]string{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := classify.NewDispatcher(classify.NewMockPublisher(ctrl), cache, classify.NewMockApplier(ctrl))

	_, err := d.Dispatch(ctx, uuid.New(), []string{"Coffee"}, []string{"Food"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatcher_CorrelationIDsAreUnique(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := classify.NewMockPublisher(ctrl)
	cache := classify.NewMockCache(ctrl)

	cache.EXPECT().LookupBatch(gomock.Any(), gomock.Any()).Return(map[string]string{}, nil).AnyTimes()
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	d := classify.NewDispatcher(publisher, cache, classify.NewMockApplier(ctrl))
	userID := uuid.New()
	seen := map[string]bool{}

	for range 50 {
		res, err := d.Dispatch(context.Background(), userID, []string{"Coffee"}, []string{"Food"})
		require.NoError(t, err)
		assert.False(t, seen[res.CorrelationID])
		seen[res.CorrelationID] = true
	}
}

func TestDispatcher_RejectsNilUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := classify.NewDispatcher(classify.NewMockPublisher(ctrl), classify.NewMockCache(ctrl), classify.NewMockApplier(ctrl))

	_, err := d.Dispatch(context.Background(), uuid.Nil, []string{"Coffee"}, nil)
	assert.ErrorIs(t, err, classify.ErrInvalidMessage)
}

func TestFingerprint_IgnoresOrderAndWhitespace(t *testing.T) {
	assert.Equal(t,
		classify.Fingerprint([]string{"Food", "Transport"}),
		classify.Fingerprint([]string{" Transport", "Food", "Food"}),
	)
	assert.NotEqual(t, classify.Fingerprint([]string{"Food"}), classify.Fingerprint([]string{"Food", "Rent"}))
}
