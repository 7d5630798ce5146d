package category_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/grouper/internal/category"
)

func TestService_Create(t *testing.T) {
	userID := uuid.New()

	type testCase struct {
		name      string
		params    category.CreateParams
		setupMock func(m *category.MockRepository)
		wantLabel string
		wantErr   error
	}

	tests := []testCase{
		{
			name:   "TrimsLabel",
			params: category.CreateParams{Label: "  Food "},
			setupMock: func(m *category.MockRepository) {
				m.EXPECT().CreateCategory(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantLabel: "Food",
		},
		{
			name:    "EmptyLabel",
			params:  category.CreateParams{Label: "   "},
			wantErr: category.ErrEmptyLabel,
		},
		{
			name:   "Duplicate",
			params: category.CreateParams{Label: "Food"},
			setupMock: func(m *category.MockRepository) {
				m.EXPECT().CreateCategory(gomock.Any(), gomock.Any()).Return(category.ErrDuplicateLabel)
			},
			wantErr: category.ErrDuplicateLabel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := category.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := category.NewService(repo)
			got, err := svc.Create(context.Background(), userID, tt.params)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.Equal(t, userID, got.UserID)
		})
	}
}

func TestService_CreateDefaults_SkipsExisting(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := category.NewMockRepository(ctrl)
	svc := category.NewService(repo)

	var created []string

	repo.EXPECT().
		CreateCategory(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c *category.Category) error {
			if c.Label == "Food" {
				return category.ErrDuplicateLabel
			}

			created = append(created, c.Label)

			return nil
		}).
		Times(len(category.Defaults))

	require.NoError(t, svc.CreateDefaults(context.Background(), uuid.New()))
	assert.Len(t, created, len(category.Defaults)-1)
	assert.NotContains(t, created, "Food")
}

func TestService_CreateDefaults_StopsOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := category.NewMockRepository(ctrl)
	svc := category.NewService(repo)

	repo.EXPECT().CreateCategory(gomock.Any(), gomock.Any()).Return(errors.New("db error"))

	assert.Error(t, svc.CreateDefaults(context.Background(), uuid.New()))
}

func TestService_Labels(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := category.NewMockRepository(ctrl)
	svc := category.NewService(repo)
	userID := uuid.New()

	repo.EXPECT().ListCategories(gomock.Any(), userID).Return([]*category.Category{
		{Label: "Food"},
		{Label: "Transport"},
	}, nil)

	got, err := svc.Labels(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "Transport"}, got)
}
