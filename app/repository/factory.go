package repository

import (
	"sync"

	"github.com/redis/go-redis/v9"
)

// Repositories bundles all repository instances.
type Repositories struct {
	User    UserRepository
	Channel ChannelRepository
	Video   VideoRepository
}

// NewRepositories creates all repositories over the two store handles.
func NewRepositories(userClient, resourceClient *redis.Client) *Repositories {
	return &Repositories{
		User:    NewUserRepository(userClient),
		Channel: NewChannelRepository(resourceClient),
		Video:   NewVideoRepository(resourceClient),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	userClient     *redis.Client
	resourceClient *redis.Client
	repos          *Repositories
	once           sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(userClient, resourceClient *redis.Client) *Factory {
	return &Factory{
		userClient:     userClient,
		resourceClient: resourceClient,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.userClient, f.resourceClient)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetChannelRepository returns the channel repository instance
func (f *Factory) GetChannelRepository() ChannelRepository {
	return f.GetRepositories().Channel
}

// GetVideoRepository returns the video repository instance
func (f *Factory) GetVideoRepository() VideoRepository {
	return f.GetRepositories().Video
}

var globalFactory *Factory

// InitGlobalFactory wires the global factory used by the controllers.
func InitGlobalFactory(userClient, resourceClient *redis.Client) {
	globalFactory = NewFactory(userClient, resourceClient)
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("repository factory not initialized")
	}
	return globalFactory
}
