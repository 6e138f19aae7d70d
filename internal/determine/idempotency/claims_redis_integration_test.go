//go:build integration

package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"licenseiq/internal/determine/idempotency"
	platformredis "licenseiq/internal/platform/redis"
	"licenseiq/pkg/platform/sentinel"
	"licenseiq/pkg/testutil/containers"
)

type RedisClaimsSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	claims *idempotency.RedisClaims
}

func TestRedisClaimsSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisClaimsSuite))
}

func (s *RedisClaimsSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.claims = idempotency.NewRedisClaims(&platformredis.Client{Client: s.redis.Client})
}

func (s *RedisClaimsSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisClaimsSuite) TestAcquireIsExclusive() {
	ctx := context.Background()

	s.Require().NoError(s.claims.Acquire(ctx, "acme", "key-1", time.Minute))

	err := s.claims.Acquire(ctx, "acme", "key-1", time.Minute)
	s.ErrorIs(err, sentinel.ErrClaimHeld, "held claim must not be reacquired")
}

func (s *RedisClaimsSuite) TestReleaseFreesClaim() {
	ctx := context.Background()

	s.Require().NoError(s.claims.Acquire(ctx, "acme", "key-1", time.Minute))
	s.Require().NoError(s.claims.Release(ctx, "acme", "key-1"))

	s.NoError(s.claims.Acquire(ctx, "acme", "key-1", time.Minute), "released claim must be reacquirable")
}

func (s *RedisClaimsSuite) TestAbandonedClaimExpires() {
	ctx := context.Background()

	s.Require().NoError(s.claims.Acquire(ctx, "acme", "key-1", 50*time.Millisecond))

	time.Sleep(100 * time.Millisecond)

	s.NoError(s.claims.Acquire(ctx, "acme", "key-1", time.Minute), "expired claim must be reacquirable")
}

func (s *RedisClaimsSuite) TestClaimsAreTenantScoped() {
	ctx := context.Background()

	s.Require().NoError(s.claims.Acquire(ctx, "acme", "key-1", time.Minute))

	s.NoError(s.claims.Acquire(ctx, "globex", "key-1", time.Minute),
		"same key under a different tenant is a distinct claim")
}
