//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"agritrust/internal/registry/cache"
	"agritrust/pkg/testutil/containers"
)

type VerificationCacheSuite struct {
	suite.Suite

	ctx   context.Context
	redis *containers.RedisContainer
	cache *cache.VerificationCache
}

func TestVerificationCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(VerificationCacheSuite))
}

func (s *VerificationCacheSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = cache.New(s.redis.Client, time.Minute)
}

func (s *VerificationCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *VerificationCacheSuite) TestGetSet() {
	s.Run("missing key is a miss", func() {
		_, found, err := s.cache.Get(s.ctx, "farmer-a")
		s.Require().NoError(err)
		s.False(found)
	})

	s.Run("round trips both values", func() {
		s.Require().NoError(s.cache.Set(s.ctx, "farmer-a", true))
		verified, found, err := s.cache.Get(s.ctx, "farmer-a")
		s.Require().NoError(err)
		s.True(found)
		s.True(verified)

		s.Require().NoError(s.cache.Set(s.ctx, "farmer-b", false))
		verified, found, err = s.cache.Get(s.ctx, "farmer-b")
		s.Require().NoError(err)
		s.True(found)
		s.False(verified)
	})
}

func (s *VerificationCacheSuite) TestInvalidate() {
	s.Require().NoError(s.cache.Set(s.ctx, "farmer-a", true))
	s.Require().NoError(s.cache.Invalidate(s.ctx, "farmer-a"))

	_, found, err := s.cache.Get(s.ctx, "farmer-a")
	s.Require().NoError(err)
	s.False(found)
}

func (s *VerificationCacheSuite) TestExpiry() {
	short := cache.New(s.redis.Client, 50*time.Millisecond)
	s.Require().NoError(short.Set(s.ctx, "farmer-a", true))

	time.Sleep(100 * time.Millisecond)

	_, found, err := short.Get(s.ctx, "farmer-a")
	s.Require().NoError(err)
	s.False(found)
}
