package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/brandflow/internal/config"
	"github.com/fyrsmithlabs/brandflow/internal/logging"
)

type fakeCollections struct {
	exists      map[string]bool
	existsErrs  []error
	createErr   error
	created     []*qdrant.CreateCollection
	existsCalls int
	healthErr   error
	closed      bool
}

func (f *fakeCollections) HealthCheck(context.Context) (*qdrant.HealthCheckReply, error) {
	return &qdrant.HealthCheckReply{}, f.healthErr
}

func (f *fakeCollections) CollectionExists(_ context.Context, name string) (bool, error) {
	f.existsCalls++
	if len(f.existsErrs) > 0 {
		err := f.existsErrs[0]
		f.existsErrs = f.existsErrs[1:]
		return false, err
	}
	return f.exists[name], nil
}

func (f *fakeCollections) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.created = append(f.created, req)
	return f.createErr
}

func (f *fakeCollections) Close() error {
	f.closed = true
	return nil
}

func testManager(f *fakeCollections) *CollectionManager {
	m := newCollectionManager(f, 1536, logging.NewNop())
	m.backoff = time.Millisecond
	return m
}

func TestCollectionManager_EnsureCreatesOnce(t *testing.T) {
	f := &fakeCollections{exists: map[string]bool{}}
	m := testManager(f)
	ctx := context.Background()

	require.NoError(t, m.Ensure(ctx, "vs_hrc"))
	require.NoError(t, m.Ensure(ctx, "vs_hrc"))

	require.Len(t, f.created, 1)
	assert.Equal(t, "vs_hrc", f.created[0].CollectionName)
	assert.Equal(t, 1, f.existsCalls)
}

func TestCollectionManager_EnsureExisting(t *testing.T) {
	f := &fakeCollections{exists: map[string]bool{"vs_ebbinge": true}}
	m := testManager(f)

	require.NoError(t, m.Ensure(context.Background(), "vs_ebbinge"))
	assert.Empty(t, f.created)
}

func TestCollectionManager_AlreadyExistsRace(t *testing.T) {
	f := &fakeCollections{exists: map[string]bool{}, createErr: status.Error(codes.AlreadyExists, "exists")}
	m := testManager(f)

	assert.NoError(t, m.Ensure(context.Background(), "vs_race"))
}

func TestCollectionManager_RetriesTransient(t *testing.T) {
	f := &fakeCollections{
		exists:     map[string]bool{"vs_x": true},
		existsErrs: []error{status.Error(codes.Unavailable, "down"), status.Error(codes.Unavailable, "down")},
	}
	m := testManager(f)

	require.NoError(t, m.Ensure(context.Background(), "vs_x"))
	assert.Equal(t, 3, f.existsCalls)
}

func TestCollectionManager_PermanentError(t *testing.T) {
	f := &fakeCollections{existsErrs: []error{status.Error(codes.PermissionDenied, "no")}}
	m := testManager(f)

	err := m.Ensure(context.Background(), "vs_x")
	require.Error(t, err)
	assert.Equal(t, 1, f.existsCalls)
}

func TestCollectionManager_HealthAndClose(t *testing.T) {
	f := &fakeCollections{healthErr: status.Error(codes.Unavailable, "down")}
	m := testManager(f)

	assert.Error(t, m.Health(context.Background()))
	require.NoError(t, m.Close())
	assert.True(t, f.closed)
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"unavailable", status.Error(codes.Unavailable, "x"), true},
		{"deadline exceeded", status.Error(codes.DeadlineExceeded, "x"), true},
		{"aborted", status.Error(codes.Aborted, "x"), true},
		{"resource exhausted", status.Error(codes.ResourceExhausted, "x"), true},
		{"not found", status.Error(codes.NotFound, "x"), false},
		{"already exists", status.Error(codes.AlreadyExists, "x"), false},
		{"non-grpc error", assert.AnError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientError(tt.err))
		})
	}
}

func TestNewCollectionManager_InvalidURL(t *testing.T) {
	_, err := NewCollectionManager(config.QdrantConfig{URL: "not a url"}, nil)
	assert.Error(t, err)
}

func TestQdrantStore_HealthWithoutManager(t *testing.T) {
	s, err := NewQdrantStore(config.QdrantConfig{URL: "http://localhost:6333"}, letterEmbedder{}, nil)
	require.NoError(t, err)
	assert.NoError(t, s.Health(context.Background()))
	assert.NoError(t, s.Close())
}

func TestCollectionManager_ExistsCachesPositive(t *testing.T) {
	f := &fakeCollections{exists: map[string]bool{"vs_a": true}}
	m := testManager(f)
	ctx := context.Background()

	ok, err := m.Exists(ctx, "vs_b")
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < 2; i++ {
		ok, err = m.Exists(ctx, "vs_a")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 2, f.existsCalls)
}
