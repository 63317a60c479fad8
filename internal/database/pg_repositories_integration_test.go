package database_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"storyforge"
	"storyforge/internal/database"
	"storyforge/internal/interfaces"
	"storyforge/internal/models"
	"storyforge/pkg/migration"
)

// RepositoryIntegrationSuite runs the repositories against a real PostgreSQL
// in a container. Skipped in short mode.
type RepositoryIntegrationSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool

	templateRepo interfaces.TemplateRepository
	storyRepo    interfaces.StoryRepository
	sceneRepo    interfaces.SceneRepository
	choiceRepo   interfaces.ChoiceRepository
	txRunner     interfaces.TxRunner

	templateID   uuid.UUID
	choicePoints []models.ChoicePoint
}

func TestRepositoryIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(RepositoryIntegrationSuite))
}

func (s *RepositoryIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("storyforge_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.pool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err)

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: "migrations",
		MigrationsFS:   storyforge.MigrationsFS,
	}, s.pool)
	require.NoError(s.T(), migrator.Up(s.ctx))

	logger := zap.NewNop()
	s.templateRepo = database.NewPgTemplateRepository(logger)
	s.storyRepo = database.NewPgStoryRepository(logger)
	s.sceneRepo = database.NewPgSceneRepository(logger)
	s.choiceRepo = database.NewPgChoiceRepository(logger)
	s.txRunner = database.NewTransactionHelper(s.pool, logger)

	s.seedTemplate()
}

func (s *RepositoryIntegrationSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *RepositoryIntegrationSuite) seedTemplate() {
	s.templateID = uuid.New()
	s.choicePoints = []models.ChoicePoint{
		{
			ID:          uuid.New(),
			SceneNumber: 2,
			PromptText:  "Open the letter?",
			Options: []models.ChoiceOption{
				{ID: "a", Text: "Open it"},
				{ID: "b", Text: "Burn it"},
			},
		},
	}
	raw, err := json.Marshal(s.choicePoints)
	require.NoError(s.T(), err)

	_, err = s.pool.Exec(s.ctx,
		`INSERT INTO novel_templates (id, title, synopsis, total_scenes, choice_points)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.templateID, "Letters from the Lighthouse", "A keeper and a secret.", 6, raw)
	require.NoError(s.T(), err)
}

func (s *RepositoryIntegrationSuite) newStory(userID uuid.UUID) *models.StoryInstance {
	story := &models.StoryInstance{
		ID:           uuid.New(),
		UserID:       userID,
		TemplateID:   s.templateID,
		Title:        "Letters from the Lighthouse",
		CurrentScene: 1,
		Status:       models.StatusInProgress,
	}
	require.NoError(s.T(), s.storyRepo.Create(s.ctx, s.pool, story))
	return story
}

func (s *RepositoryIntegrationSuite) TestTemplateRoundTrip() {
	tmpl, err := s.templateRepo.GetByID(s.ctx, s.pool, s.templateID)
	s.Require().NoError(err)
	s.Equal("Letters from the Lighthouse", tmpl.Title)
	s.Require().Len(tmpl.ChoicePoints, 1)
	s.Equal(s.choicePoints[0].ID, tmpl.ChoicePoints[0].ID)

	_, err = s.templateRepo.GetByID(s.ctx, s.pool, uuid.New())
	s.ErrorIs(err, models.ErrTemplateNotFound)
}

func (s *RepositoryIntegrationSuite) TestSceneWriteOnce() {
	story := s.newStory(uuid.New())

	scene := &models.StoryScene{
		ID: uuid.New(), StoryID: story.ID, SceneNumber: 1,
		Content: "The lamp went out at midnight.", WordCount: 6,
	}
	inserted, err := s.sceneRepo.CreateIfAbsent(s.ctx, s.pool, scene)
	s.Require().NoError(err)
	s.True(inserted)

	// Second insert for the same position is silently skipped.
	dupe := &models.StoryScene{
		ID: uuid.New(), StoryID: story.ID, SceneNumber: 1,
		Content: "A different draft.", WordCount: 3,
	}
	inserted, err = s.sceneRepo.CreateIfAbsent(s.ctx, s.pool, dupe)
	s.Require().NoError(err)
	s.False(inserted)

	got, err := s.sceneRepo.GetByStoryAndNumber(s.ctx, s.pool, story.ID, 1)
	s.Require().NoError(err)
	s.Equal("The lamp went out at midnight.", got.Content)
}

func (s *RepositoryIntegrationSuite) TestChoiceWriteOnce() {
	story := s.newStory(uuid.New())
	cpID := s.choicePoints[0].ID

	err := s.choiceRepo.Create(s.ctx, s.pool, &models.StoryChoice{
		ID: uuid.New(), StoryID: story.ID, ChoicePointID: cpID, SelectedOption: 0,
	})
	s.Require().NoError(err)

	err = s.choiceRepo.Create(s.ctx, s.pool, &models.StoryChoice{
		ID: uuid.New(), StoryID: story.ID, ChoicePointID: cpID, SelectedOption: 1,
	})
	s.ErrorIs(err, models.ErrChoiceAlreadyMade)
}

func (s *RepositoryIntegrationSuite) TestBranchUniqueness() {
	userID := uuid.New()
	parent := s.newStory(userID)
	atScene, option := 2, 1

	makeBranch := func() *models.StoryInstance {
		return &models.StoryInstance{
			ID: uuid.New(), UserID: userID, TemplateID: s.templateID,
			Title: "fork", CurrentScene: 3, Status: models.StatusInProgress,
			BranchedFromStoryID: &parent.ID,
			BranchedAtScene:     &atScene,
			BranchedOption:      &option,
		}
	}
	s.Require().NoError(s.storyRepo.Create(s.ctx, s.pool, makeBranch()))

	err := s.storyRepo.Create(s.ctx, s.pool, makeBranch())
	s.ErrorIs(err, models.ErrBranchExists)

	found, err := s.storyRepo.FindBranch(s.ctx, s.pool, userID, parent.ID, atScene, option)
	s.Require().NoError(err)
	s.True(found.IsBranch())

	_, err = s.storyRepo.FindBranch(s.ctx, s.pool, userID, parent.ID, atScene, 0)
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *RepositoryIntegrationSuite) TestCopyPrefixAndChoices() {
	userID := uuid.New()
	parent := s.newStory(userID)
	for i := 1; i <= 3; i++ {
		_, err := s.sceneRepo.CreateIfAbsent(s.ctx, s.pool, &models.StoryScene{
			ID: uuid.New(), StoryID: parent.ID, SceneNumber: i,
			Content: "scene content", WordCount: 2,
		})
		s.Require().NoError(err)
	}
	s.Require().NoError(s.choiceRepo.Create(s.ctx, s.pool, &models.StoryChoice{
		ID: uuid.New(), StoryID: parent.ID, ChoicePointID: s.choicePoints[0].ID, SelectedOption: 0,
	}))

	atScene, option := 2, 1
	branch := &models.StoryInstance{
		ID: uuid.New(), UserID: userID, TemplateID: s.templateID,
		Title: "fork", CurrentScene: 3, Status: models.StatusInProgress,
		BranchedFromStoryID: &parent.ID,
		BranchedAtScene:     &atScene,
		BranchedOption:      &option,
	}

	err := s.txRunner.WithinTx(s.ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		if err := s.storyRepo.Create(ctx, tx, branch); err != nil {
			return err
		}
		copied, err := s.sceneRepo.CopyPrefix(ctx, tx, parent.ID, branch.ID, 2)
		if err != nil {
			return err
		}
		s.Equal(int64(2), copied)
		return nil
	})
	s.Require().NoError(err)

	scenes, err := s.sceneRepo.ListRange(s.ctx, s.pool, branch.ID, 1, 10)
	s.Require().NoError(err)
	s.Len(scenes, 2)
}

func (s *RepositoryIntegrationSuite) TestAdvanceProgressGuard() {
	story := s.newStory(uuid.New())

	ok, err := s.storyRepo.AdvanceProgress(s.ctx, s.pool, story.ID, 3, models.StatusInProgress)
	s.Require().NoError(err)
	s.True(ok)

	// Moving backward is refused by the UPDATE guard.
	ok, err = s.storyRepo.AdvanceProgress(s.ctx, s.pool, story.ID, 2, models.StatusInProgress)
	s.Require().NoError(err)
	s.False(ok)

	got, err := s.storyRepo.GetByID(s.ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Equal(3, got.CurrentScene)
}

func (s *RepositoryIntegrationSuite) TestDeleteBranchedParentOrphansLineage() {
	userID := uuid.New()
	parent := s.newStory(userID)
	atScene, option := 2, 1
	branch := &models.StoryInstance{
		ID: uuid.New(), UserID: userID, TemplateID: s.templateID,
		Title: "fork", CurrentScene: 3, Status: models.StatusInProgress,
		BranchedFromStoryID: &parent.ID,
		BranchedAtScene:     &atScene,
		BranchedOption:      &option,
	}
	s.Require().NoError(s.storyRepo.Create(s.ctx, s.pool, branch))

	// Deleting a forked parent must succeed; the referential action only
	// clears the parent reference on the branch.
	s.Require().NoError(s.storyRepo.Delete(s.ctx, s.pool, parent.ID, userID))

	orphan, err := s.storyRepo.GetByID(s.ctx, s.pool, branch.ID)
	s.Require().NoError(err)
	s.Nil(orphan.BranchedFromStoryID)
	s.Require().NotNil(orphan.BranchedAtScene)
	s.Equal(atScene, *orphan.BranchedAtScene)
	s.Require().NotNil(orphan.BranchedOption)
	s.Equal(option, *orphan.BranchedOption)
	s.True(orphan.IsBranch())
}

func (s *RepositoryIntegrationSuite) TestDeleteCascades() {
	userID := uuid.New()
	story := s.newStory(userID)
	_, err := s.sceneRepo.CreateIfAbsent(s.ctx, s.pool, &models.StoryScene{
		ID: uuid.New(), StoryID: story.ID, SceneNumber: 1, Content: "gone soon", WordCount: 2,
	})
	s.Require().NoError(err)

	s.Require().NoError(s.storyRepo.Delete(s.ctx, s.pool, story.ID, userID))

	_, err = s.storyRepo.GetByID(s.ctx, s.pool, story.ID)
	s.ErrorIs(err, models.ErrStoryNotFound)
	_, err = s.sceneRepo.GetByStoryAndNumber(s.ctx, s.pool, story.ID, 1)
	s.ErrorIs(err, models.ErrSceneNotFound)
}
