//go:build integration

package redis_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	lockredis "github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/lock/redis"
)

type RedisLockerSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcredis.RedisContainer
	client    *goredis.Client
}

func (s *RedisLockerSuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.container, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	s.Require().NoError(err, "failed to start redis container")

	host, err := s.container.Host(s.ctx)
	s.Require().NoError(err)
	port, err := s.container.MappedPort(s.ctx, "6379/tcp")
	s.Require().NoError(err)

	s.client = goredis.NewClient(&goredis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	s.Require().NoError(s.client.Ping(s.ctx).Err())
}

func (s *RedisLockerSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *RedisLockerSuite) TestMutualExclusion() {
	locker := lockredis.NewLocker(s.client, "test", 5*time.Second, zap.NewNop())

	var (
		wg      sync.WaitGroup
		holders atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(s.ctx, "project:p1")
			if err != nil {
				return
			}
			n := holders.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(10 * time.Millisecond)
			holders.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	s.Equal(int32(1), maxSeen.Load())
	s.Equal(int64(0), s.client.Exists(s.ctx, "test:lock:project:p1").Val())
}

func (s *RedisLockerSuite) TestLockWaitsForContext() {
	locker := lockredis.NewLocker(s.client, "test", 5*time.Second, zap.NewNop())

	unlock, err := locker.Lock(s.ctx, "project:p2")
	s.Require().NoError(err)
	defer unlock()

	ctx, cancel := context.WithTimeout(s.ctx, 100*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "project:p2")
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *RedisLockerSuite) TestLeaseExpires() {
	locker := lockredis.NewLocker(s.client, "test", 200*time.Millisecond, zap.NewNop())

	_, err := locker.Lock(s.ctx, "project:p3")
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()

	unlock, err := locker.Lock(ctx, "project:p3")
	s.Require().NoError(err)
	unlock()
}

func TestRedisLockerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	suite.Run(t, new(RedisLockerSuite))
}
