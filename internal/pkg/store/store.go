package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nasuf/dictation-studio-service/internal/pkg/env"
)

// Three logically separate Redis databases: user entitlement/profile data,
// content resources (channels, transcripts) and revoked-token markers.
// They must never share key space.
const (
	userDB     = 0
	resourceDB = 1
	tokenDB    = 2
)

var (
	userClient     *redis.Client
	resourceClient *redis.Client
	tokenClient    *redis.Client
	ctx            = context.Background()
)

// Setup initializes the three Redis clients. Called once at startup;
// the clients live for the process lifetime.
func Setup() {
	host := env.GetEnv("REDIS_HOST", "localhost")
	port := env.GetEnv("REDIS_PORT", "6379")
	password := env.GetEnv("REDIS_PASSWORD", "")

	newClient := func(db int) *redis.Client {
		return redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", host, port),
			Password: password,
			DB:       db,
		})
	}

	userClient = newClient(userDB)
	resourceClient = newClient(resourceDB)
	tokenClient = newClient(tokenDB)

	if _, err := userClient.Ping(ctx).Result(); err != nil {
		logrus.Warnf("Could not connect to Redis at %s:%s: %v", host, port, err)
	} else {
		logrus.Infof("Connected to Redis at %s:%s", host, port)
	}
}

// UserClient returns the client for the user database.
func UserClient() *redis.Client {
	if userClient == nil {
		Setup()
	}
	return userClient
}

// ResourceClient returns the client for the content database.
func ResourceClient() *redis.Client {
	if resourceClient == nil {
		Setup()
	}
	return resourceClient
}

// TokenClient returns the client for the revoked-token database.
func TokenClient() *redis.Client {
	if tokenClient == nil {
		Setup()
	}
	return tokenClient
}

// Shutdown closes all clients on graceful termination.
func Shutdown() {
	for _, c := range []*redis.Client{userClient, resourceClient, tokenClient} {
		if c != nil {
			_ = c.Close()
		}
	}
}
