package retrieval

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/brandflow/internal/config"
	"github.com/fyrsmithlabs/brandflow/internal/logging"
)

const (
	maxMessageSize = 50 * 1024 * 1024
	requestTimeout = 30 * time.Second
	retryAttempts  = 3
)

// collectionAPI is the part of *qdrant.Client used for collection management.
type collectionAPI interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	Close() error
}

// CollectionManager creates corpus collections in Qdrant over gRPC.
// langchaingo only reads and writes points, so collections are provisioned
// here before the first write.
type CollectionManager struct {
	client     collectionAPI
	vectorSize uint64
	logger     *logging.Logger
	backoff    time.Duration

	mu    sync.Mutex
	known map[string]bool
}

// NewCollectionManager connects to the gRPC port of the host in cfg.URL.
func NewCollectionManager(cfg config.QdrantConfig, logger *logging.Logger) (*CollectionManager, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant url %q: %w", cfg.URL, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: qdrant url %q has no host", ErrInvalidConfig, cfg.URL)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	qcfg := &qdrant.Config{
		Host:   u.Hostname(),
		Port:   cfg.GRPCPort,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey.Value(),
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxMessageSize),
				grpc.MaxCallSendMsgSize(maxMessageSize),
			),
		},
	}
	if !cfg.UseTLS {
		qcfg.GrpcOptions = append(qcfg.GrpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return newCollectionManager(client, cfg.VectorSize, logger), nil
}

func newCollectionManager(client collectionAPI, vectorSize uint64, logger *logging.Logger) *CollectionManager {
	return &CollectionManager{
		client:     client,
		vectorSize: vectorSize,
		logger:     logger.Named("qdrant"),
		backoff:    time.Second,
		known:      make(map[string]bool),
	}
}

// Health checks the gRPC connection.
func (m *CollectionManager) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if _, err := m.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// Ensure creates the corpus collection when it does not exist. Known
// collections are cached for the life of the manager.
func (m *CollectionManager) Ensure(ctx context.Context, corpus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.known[corpus] {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var exists bool
	err := m.retry(ctx, func() error {
		var err error
		exists, err = m.client.CollectionExists(ctx, corpus)
		return err
	})
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", corpus, err)
	}

	if !exists {
		err = m.retry(ctx, func() error {
			return m.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: corpus,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     m.vectorSize,
					Distance: qdrant.Distance_Cosine,
				}),
			})
		})
		// A concurrent writer may have created it first.
		if status.Code(err) == codes.AlreadyExists {
			err = nil
		}
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", corpus, err)
		}
		m.logger.Info(ctx, "created collection", zap.String("corpus", corpus), zap.Uint64("vector_size", m.vectorSize))
	}

	m.known[corpus] = true
	return nil
}

// Exists reports whether the corpus collection exists. Positive answers are
// cached like created collections.
func (m *CollectionManager) Exists(ctx context.Context, corpus string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.known[corpus] {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var exists bool
	err := m.retry(ctx, func() error {
		var err error
		exists, err = m.client.CollectionExists(ctx, corpus)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", corpus, err)
	}
	if exists {
		m.known[corpus] = true
	}
	return exists, nil
}

// Close closes the gRPC connection.
func (m *CollectionManager) Close() error {
	return m.client.Close()
}

// retry runs operation, retrying transient gRPC failures with exponential
// backoff.
func (m *CollectionManager) retry(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := m.backoff

	for attempt := 0; attempt <= retryAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransientError(err) || attempt == retryAttempts {
			break
		}

		m.logger.Debug(ctx, "retrying operation after transient error",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled: %w", ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return lastErr
}

// isTransientError reports gRPC failures worth retrying.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
