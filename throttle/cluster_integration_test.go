package throttle

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testRedisClient    *redis.Client
	testRedisContainer testcontainers.Container
	skipClusterTests   bool
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		}
		testRedisContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()

	if containerErr != nil {
		fmt.Printf("Docker not available, throttle cluster tests will be skipped: %v\n", containerErr)
		skipClusterTests = true
	} else {
		host, err := testRedisContainer.Host(ctx)
		if err != nil {
			fmt.Printf("Failed to get container host: %v\n", err)
			skipClusterTests = true
		} else {
			port, err := testRedisContainer.MappedPort(ctx, "6379")
			if err != nil {
				fmt.Printf("Failed to get container port: %v\n", err)
				skipClusterTests = true
			} else {
				testRedisClient = redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
				if err := testRedisClient.Ping(ctx).Err(); err != nil {
					fmt.Printf("Failed to ping redis: %v\n", err)
					skipClusterTests = true
				}
			}
		}
	}

	code := m.Run()

	if testRedisClient != nil {
		_ = testRedisClient.Close()
	}
	if testRedisContainer != nil {
		_ = testRedisContainer.Terminate(ctx)
	}

	os.Exit(code)
}

func getClusterRedis(t *testing.T) *redis.Client {
	t.Helper()
	if skipClusterTests {
		t.Skip("Docker not available, skipping throttle cluster integration test")
	}
	require.NoError(t, testRedisClient.FlushDB(context.Background()).Err())
	return testRedisClient
}

func TestRedisClusterBackoffHalvesSharedBudget(t *testing.T) {
	rdb := getClusterRedis(t)
	cluster := NewRedisCluster(rdb, RedisClusterOptions{Floor: 10, Ceiling: 100, Step: 5})
	ctx := context.Background()

	assert.Equal(t, float64(100), cluster.CurrentBudget(ctx, "groq", 100))
	cluster.Backoff(ctx, "groq")
	assert.Equal(t, float64(50), cluster.CurrentBudget(ctx, "groq", 100))
	cluster.Backoff(ctx, "groq")
	assert.Equal(t, float64(25), cluster.CurrentBudget(ctx, "groq", 100))
}

func TestRedisClusterBackoffClampsToFloor(t *testing.T) {
	rdb := getClusterRedis(t)
	cluster := NewRedisCluster(rdb, RedisClusterOptions{Floor: 20, Ceiling: 100, Step: 5})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		cluster.Backoff(ctx, "groq")
	}
	assert.Equal(t, float64(20), cluster.CurrentBudget(ctx, "groq", 100))
}

func TestRedisClusterProbeClampsToCeiling(t *testing.T) {
	rdb := getClusterRedis(t)
	cluster := NewRedisCluster(rdb, RedisClusterOptions{Floor: 10, Ceiling: 60, Step: 20})
	ctx := context.Background()

	cluster.Backoff(ctx, "groq") // establishes a value below ceiling to grow from
	for i := 0; i < 10; i++ {
		cluster.Probe(ctx, "groq")
	}
	assert.Equal(t, float64(60), cluster.CurrentBudget(ctx, "groq", 100))
}

func TestRedisClusterProvidersAreIndependent(t *testing.T) {
	rdb := getClusterRedis(t)
	cluster := NewRedisCluster(rdb, RedisClusterOptions{Floor: 10, Ceiling: 100, Step: 5})
	ctx := context.Background()

	cluster.Backoff(ctx, "groq")
	assert.Equal(t, float64(100), cluster.CurrentBudget(ctx, "anthropic", 100))
}

func TestRedisClusterCurrentBudgetFallsBackWhenUnset(t *testing.T) {
	rdb := getClusterRedis(t)
	cluster := NewRedisCluster(rdb, RedisClusterOptions{Floor: 10, Ceiling: 100, Step: 5})
	ctx := context.Background()

	assert.Equal(t, float64(42), cluster.CurrentBudget(ctx, "never-touched-but-fallback", 42))
}
