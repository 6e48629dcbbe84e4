package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"agritrust/internal/ledger"
	"agritrust/internal/practicelog/models"
	"agritrust/internal/practicelog/service"
	"agritrust/internal/practicelog/store"
	registrymodels "agritrust/internal/registry/models"
	registryservice "agritrust/internal/registry/service"
	registrystore "agritrust/internal/registry/store"
	"agritrust/pkg/domain"
	dErrors "agritrust/pkg/domain-errors"
	"agritrust/pkg/platform/audit"
	"agritrust/pkg/platform/audit/publisher"
	auditmemory "agritrust/pkg/platform/audit/store/memory"
)

const (
	owner     = domain.Principal("owner-1")
	moderator = domain.Principal("moderator-1")
	farmerA   = domain.Principal("farmer-a")
	farmerB   = domain.Principal("farmer-b")
	stranger  = domain.Principal("stranger-1")
)

// fakeVerificationSource stands in for the registry.
type fakeVerificationSource struct {
	verified map[domain.Principal]bool
}

func (f *fakeVerificationSource) IsVerified(_ context.Context, principal domain.Principal) (bool, error) {
	return f.verified[principal], nil
}

type PracticeLogServiceSuite struct {
	suite.Suite

	ctx        context.Context
	entries    *store.InMemory
	source     *fakeVerificationSource
	auditStore *auditmemory.InMemoryStore
	svc        *service.Service
}

func TestPracticeLogServiceSuite(t *testing.T) {
	suite.Run(t, new(PracticeLogServiceSuite))
}

func (s *PracticeLogServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.entries = store.NewInMemory(models.Settings{
		Owner:     owner,
		Moderator: moderator,
	})
	s.source = &fakeVerificationSource{verified: map[domain.Principal]bool{
		farmerA: true,
		farmerB: true,
	}}
	s.auditStore = auditmemory.NewInMemoryStore()
	s.svc = service.New(s.entries, s.source, ledger.NewLogicalClock(),
		service.WithAuditSink(publisher.NewPublisher(s.auditStore)),
	)
}

func (s *PracticeLogServiceSuite) log(farmer domain.Principal, practiceType string) uint64 {
	s.T().Helper()
	seq, err := s.svc.Log(s.ctx, farmer, practiceType, "Soil Health", "details", "")
	s.Require().NoError(err)
	return seq
}

func (s *PracticeLogServiceSuite) TestLog() {
	s.Run("assigns dense sequence numbers per farmer", func() {
		s.Equal(uint64(0), s.log(farmerA, "Cover Cropping"))
		s.Equal(uint64(1), s.log(farmerA, "No-Till"))
		s.Equal(uint64(0), s.log(farmerB, "Composting"))
		s.Equal(uint64(2), s.log(farmerA, "Crop Rotation"))

		count, err := s.svc.GetLogCount(s.ctx, farmerA)
		s.Require().NoError(err)
		s.Equal(uint64(3), count)
	})

	s.Run("rejects unverified callers", func() {
		_, err := s.svc.Log(s.ctx, stranger, "Cover Cropping", "Soil Health", "details", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeLogNotVerified))

		count, err := s.svc.GetLogCount(s.ctx, stranger)
		s.Require().NoError(err)
		s.Zero(count)
	})

	s.Run("rejects empty content", func() {
		_, err := s.svc.Log(s.ctx, farmerA, "", "Soil Health", "details", "")
		s.True(dErrors.HasCode(err, dErrors.CodeLogInvalidInput))

		_, err = s.svc.Log(s.ctx, farmerA, "Cover Cropping", "", "details", "")
		s.True(dErrors.HasCode(err, dErrors.CodeLogInvalidInput))

		_, err = s.svc.Log(s.ctx, farmerA, "Cover Cropping", "Soil Health", "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeLogInvalidInput))
	})

	s.Run("new entries start pending", func() {
		seq := s.log(farmerA, "Cover Cropping")
		entry, err := s.svc.GetEntry(s.ctx, farmerA, seq)
		s.Require().NoError(err)
		s.Require().NotNil(entry)
		s.Equal(models.ModerationPending, entry.Status)
		s.Nil(entry.ModeratedAt)
	})

	s.Run("emits an audit event", func() {
		seq := s.log(farmerB, "Agroforestry")
		events, err := s.auditStore.ListBySubject(s.ctx, farmerB)
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		last := events[len(events)-1]
		s.Equal(string(audit.EventPracticeLogged), last.Action)
		s.Require().NotNil(last.Sequence)
		s.Equal(seq, *last.Sequence)
	})
}

func (s *PracticeLogServiceSuite) TestModerate() {
	s.Run("only the moderator may moderate", func() {
		seq := s.log(farmerA, "Cover Cropping")
		_, err := s.svc.Moderate(s.ctx, farmerA, farmerA, seq, "approved", "")
		s.True(dErrors.HasCode(err, dErrors.CodeLogNotAuthorized))

		entry, err := s.svc.GetEntry(s.ctx, farmerA, seq)
		s.Require().NoError(err)
		s.Equal(models.ModerationPending, entry.Status)
	})

	s.Run("missing entry ranks before invalid status", func() {
		_, err := s.svc.Moderate(s.ctx, moderator, farmerA, 99, "bogus", "")
		s.True(dErrors.HasCode(err, dErrors.CodeLogNotFound))
	})

	s.Run("rejects a non-terminal decision", func() {
		seq := s.log(farmerA, "Cover Cropping")
		_, err := s.svc.Moderate(s.ctx, moderator, farmerA, seq, "pending", "")
		s.True(dErrors.HasCode(err, dErrors.CodeLogInvalidInput))

		_, err = s.svc.Moderate(s.ctx, moderator, farmerA, seq, "maybe", "")
		s.True(dErrors.HasCode(err, dErrors.CodeLogInvalidInput))
	})

	s.Run("approves and records notes", func() {
		seq := s.log(farmerA, "Cover Cropping")
		ok, err := s.svc.Moderate(s.ctx, moderator, farmerA, seq, "approved", "verified on site")
		s.Require().NoError(err)
		s.True(ok)

		entry, err := s.svc.GetEntry(s.ctx, farmerA, seq)
		s.Require().NoError(err)
		s.Equal(models.ModerationApproved, entry.Status)
		s.Equal("verified on site", entry.ModerationNotes)
		s.Require().NotNil(entry.ModeratedAt)
		s.Greater(*entry.ModeratedAt, entry.LoggedAt)
	})

	s.Run("moderation is terminal", func() {
		seq := s.log(farmerA, "Cover Cropping")
		_, err := s.svc.Moderate(s.ctx, moderator, farmerA, seq, "rejected", "no evidence")
		s.Require().NoError(err)

		_, err = s.svc.Moderate(s.ctx, moderator, farmerA, seq, "approved", "")
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyModerated))

		entry, err := s.svc.GetEntry(s.ctx, farmerA, seq)
		s.Require().NoError(err)
		s.Equal(models.ModerationRejected, entry.Status)
	})
}

func (s *PracticeLogServiceSuite) TestUpdate() {
	s.Run("replaces details of a pending entry", func() {
		seq := s.log(farmerA, "Cover Cropping")
		ok, err := s.svc.Update(s.ctx, farmerA, seq, "Planted winter rye on the north field", "hash-2")
		s.Require().NoError(err)
		s.True(ok)

		entry, err := s.svc.GetEntry(s.ctx, farmerA, seq)
		s.Require().NoError(err)
		s.Equal("Planted winter rye on the north field", entry.Details)
		s.Equal("hash-2", entry.EvidenceHash)
		s.Equal(models.ModerationPending, entry.Status)
	})

	s.Run("update is scoped to the caller's own log", func() {
		seq := s.log(farmerA, "Cover Cropping")
		// farmerB has no entry at farmerA's sequence.
		_, err := s.svc.Update(s.ctx, farmerB, seq, "tampered", "")
		s.True(dErrors.HasCode(err, dErrors.CodeLogNotFound))
	})

	s.Run("rejects updates after moderation", func() {
		seq := s.log(farmerA, "Cover Cropping")
		_, err := s.svc.Moderate(s.ctx, moderator, farmerA, seq, "approved", "")
		s.Require().NoError(err)

		_, err = s.svc.Update(s.ctx, farmerA, seq, "revised", "")
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyModerated))
	})
}

func (s *PracticeLogServiceSuite) TestRoleManagement() {
	s.Run("owner reassigns the moderator", func() {
		ok, err := s.svc.SetModerator(s.ctx, owner, domain.Principal("moderator-2"))
		s.Require().NoError(err)
		s.True(ok)

		seq := s.log(farmerA, "Cover Cropping")
		_, err = s.svc.Moderate(s.ctx, moderator, farmerA, seq, "approved", "")
		s.True(dErrors.HasCode(err, dErrors.CodeLogNotAuthorized))

		_, err = s.svc.Moderate(s.ctx, domain.Principal("moderator-2"), farmerA, seq, "approved", "")
		s.Require().NoError(err)
	})

	s.Run("non-owner cannot reassign roles", func() {
		_, err := s.svc.SetModerator(s.ctx, moderator, stranger)
		s.True(dErrors.HasCode(err, dErrors.CodeLogNotAuthorized))

		_, err = s.svc.TransferOwnership(s.ctx, stranger, stranger)
		s.True(dErrors.HasCode(err, dErrors.CodeLogNotAuthorized))
	})

	s.Run("nil principals are rejected", func() {
		_, err := s.svc.SetModerator(s.ctx, owner, "")
		s.True(dErrors.HasCode(err, dErrors.CodeLogInvalidInput))

		_, err = s.svc.TransferOwnership(s.ctx, owner, "")
		s.True(dErrors.HasCode(err, dErrors.CodeLogInvalidInput))
	})

	s.Run("ownership transfer moves control", func() {
		ok, err := s.svc.TransferOwnership(s.ctx, owner, domain.Principal("owner-2"))
		s.Require().NoError(err)
		s.True(ok)

		_, err = s.svc.SetModerator(s.ctx, owner, stranger)
		s.True(dErrors.HasCode(err, dErrors.CodeLogNotAuthorized))

		current, err := s.svc.GetOwner(s.ctx)
		s.Require().NoError(err)
		s.Equal(domain.Principal("owner-2"), current)
	})
}

func (s *PracticeLogServiceSuite) TestReads() {
	s.Run("missing entry reads as nil without error", func() {
		entry, err := s.svc.GetEntry(s.ctx, farmerA, 0)
		s.Require().NoError(err)
		s.Nil(entry)
	})

	s.Run("count for an unknown farmer is zero", func() {
		count, err := s.svc.GetLogCount(s.ctx, stranger)
		s.Require().NoError(err)
		s.Zero(count)
	})

	s.Run("moderator is readable", func() {
		current, err := s.svc.GetModerator(s.ctx)
		s.Require().NoError(err)
		s.Equal(moderator, current)
	})
}

// TestEndToEnd wires the real registry as the verification source and walks
// a farmer through the full lifecycle.
func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	clock := ledger.NewLogicalClock()
	bank := ledger.NewInMemoryLedger(map[domain.Principal]uint64{
		farmerA: 1000,
	})

	registry := registryservice.New(
		registrystore.NewInMemory(registrymodels.Settings{
			Owner:           owner,
			Verifier:        domain.Principal("verifier-1"),
			RegistrationFee: 50,
		}),
		bank, clock, domain.Principal("registry-account"),
	)
	logs := service.New(
		store.NewInMemory(models.Settings{Owner: owner, Moderator: moderator}),
		registry, clock,
	)

	// Unregistered farmers cannot log.
	_, err := logs.Log(ctx, farmerA, "Cover Cropping", "Soil Health", "Planted rye", "")
	if !dErrors.HasCode(err, dErrors.CodeLogNotVerified) {
		t.Fatalf("expected not-verified error before registration, got %v", err)
	}

	id, err := registry.Register(ctx, farmerA, "Alice", "Iowa", 120.5, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first farmer id 1, got %d", id)
	}

	// Pending farmers still cannot log.
	_, err = logs.Log(ctx, farmerA, "Cover Cropping", "Soil Health", "Planted rye", "")
	if !dErrors.HasCode(err, dErrors.CodeLogNotVerified) {
		t.Fatalf("expected not-verified error while pending, got %v", err)
	}

	if _, err := registry.Verify(ctx, domain.Principal("verifier-1"), farmerA, "verified"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	seq, err := logs.Log(ctx, farmerA, "Cover Cropping", "Soil Health", "Planted rye", "")
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if seq != 0 {
		t.Fatalf("expected first sequence 0, got %d", seq)
	}

	if _, err := logs.Moderate(ctx, moderator, farmerA, seq, "approved", "confirmed"); err != nil {
		t.Fatalf("moderate: %v", err)
	}

	entry, err := logs.GetEntry(ctx, farmerA, seq)
	if err != nil || entry == nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Status != models.ModerationApproved {
		t.Fatalf("expected approved entry, got %s", entry.Status)
	}
}
