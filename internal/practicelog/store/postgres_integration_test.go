//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"agritrust/internal/practicelog/models"
	"agritrust/internal/practicelog/store"
	"agritrust/pkg/domain"
	"agritrust/pkg/platform/sentinel"
	"agritrust/pkg/testutil/containers"
)

type PostgresLogSuite struct {
	suite.Suite

	ctx      context.Context
	postgres *containers.PostgresContainer
	store    *store.PostgresLog
}

func TestPostgresLogSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLogSuite))
}

func (s *PostgresLogSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.NewPostgresContainer(s.T())
	s.postgres.Exec(s.T(), store.Schema)
	s.store = store.NewPostgresLog(s.postgres.DB)
}

func (s *PostgresLogSuite) SetupTest() {
	s.postgres.Exec(s.T(), `TRUNCATE practice_log_entries; TRUNCATE practice_log_settings`)
	s.Require().NoError(s.store.EnsureSettings(s.ctx, models.Settings{
		Owner:     "owner-1",
		Moderator: "moderator-1",
	}))
}

func (s *PostgresLogSuite) append(farmer domain.Principal, practiceType string) uint64 {
	s.T().Helper()
	entry, err := models.NewPracticeLogEntry(farmer, practiceType, "Soil Health", "details", "", 1)
	s.Require().NoError(err)
	seq, err := s.store.Append(s.ctx, entry)
	s.Require().NoError(err)
	return seq
}

func (s *PostgresLogSuite) TestAppend() {
	s.Run("sequences are dense per farmer", func() {
		s.Equal(uint64(0), s.append("farmer-a", "Cover Cropping"))
		s.Equal(uint64(1), s.append("farmer-a", "No-Till"))
		s.Equal(uint64(0), s.append("farmer-b", "Composting"))
	})

	s.Run("concurrent appends stay dense", func() {
		const writers = 20
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				entry, err := models.NewPracticeLogEntry("farmer-c", "Mulching", "Soil Health", "details", "", 1)
				s.Require().NoError(err)
				_, err = s.store.Append(s.ctx, entry)
				s.Require().NoError(err)
			}()
		}
		wg.Wait()

		count, err := s.store.Count(s.ctx, "farmer-c")
		s.Require().NoError(err)
		s.Equal(uint64(writers), count)

		// every sequence in [0, writers) must exist
		for seq := uint64(0); seq < writers; seq++ {
			_, err := s.store.Find(s.ctx, "farmer-c", seq)
			s.Require().NoError(err)
		}
	})
}

func (s *PostgresLogSuite) TestFind() {
	seq := s.append("farmer-a", "Cover Cropping")

	entry, err := s.store.Find(s.ctx, "farmer-a", seq)
	s.Require().NoError(err)
	s.Equal("Cover Cropping", entry.PracticeType)
	s.Equal(models.ModerationPending, entry.Status)

	_, err = s.store.Find(s.ctx, "farmer-a", 99)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresLogSuite) TestExecute() {
	s.Run("persists a moderation decision", func() {
		seq := s.append("farmer-a", "Cover Cropping")
		_, err := s.store.Execute(s.ctx, "farmer-a", seq,
			func(e *models.PracticeLogEntry) error { return e.CanModerate() },
			func(e *models.PracticeLogEntry) { e.ApplyModeration(models.ModerationApproved, "confirmed", 9) },
		)
		s.Require().NoError(err)

		entry, err := s.store.Find(s.ctx, "farmer-a", seq)
		s.Require().NoError(err)
		s.Equal(models.ModerationApproved, entry.Status)
		s.Equal("confirmed", entry.ModerationNotes)
		s.Require().NotNil(entry.ModeratedAt)
		s.Equal(uint64(9), *entry.ModeratedAt)
	})

	s.Run("rolls back on validation failure", func() {
		seq := s.append("farmer-b", "No-Till")
		_, err := s.store.Execute(s.ctx, "farmer-b", seq,
			func(e *models.PracticeLogEntry) error { return e.CanModerate() },
			func(e *models.PracticeLogEntry) { e.ApplyModeration(models.ModerationApproved, "", 9) },
		)
		s.Require().NoError(err)

		_, err = s.store.Execute(s.ctx, "farmer-b", seq,
			func(e *models.PracticeLogEntry) error { return e.CanModerate() },
			func(e *models.PracticeLogEntry) { e.ApplyModeration(models.ModerationRejected, "", 10) },
		)
		s.Require().Error(err)

		entry, err := s.store.Find(s.ctx, "farmer-b", seq)
		s.Require().NoError(err)
		s.Equal(models.ModerationApproved, entry.Status)
	})
}

func (s *PostgresLogSuite) TestUpdateSettings() {
	updated, err := s.store.UpdateSettings(s.ctx,
		func(models.Settings) error { return nil },
		func(st *models.Settings) { st.Moderator = "moderator-2" },
	)
	s.Require().NoError(err)
	s.Equal(domain.Principal("moderator-2"), updated.Moderator)

	settings, err := s.store.Settings(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.Principal("moderator-2"), settings.Moderator)
}
