package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/hrchat/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// AskMethod is the unary RPC carrying google.protobuf.Struct request and
// response messages shaped like the JSON API.
const AskMethod = "/hr.v1.AnswerService/Ask"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GRPCConfig holds configuration for the gRPC client.
type GRPCConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGRPCConfig returns default configuration for addr.
func DefaultGRPCConfig(addr string) GRPCConfig {
	return GRPCConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GRPCClient talks to the answer service over gRPC.
type GRPCClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	logger  *slog.Logger
}

// NewGRPCClient connects to the answer service and waits until the channel is ready.
func NewGRPCClient(cfg GRPCConfig, logger *slog.Logger) (*GRPCClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to answer service at %s: %w", cfg.Address, err)
	}

	// Force a connection attempt during startup so we fail fast on bad endpoints.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("answer service at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to answer service", "address", cfg.Address)
	return &GRPCClient{conn: conn, timeout: cfg.RequestTimeout, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Ask invokes AskMethod. Any RPC or decoding failure wraps domain.ErrServiceFailure.
func (c *GRPCClient) Ask(ctx context.Context, question string) (domain.Answer, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := structpb.NewStruct(map[string]any{"question": question})
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: encode request: %v", domain.ErrServiceFailure, err)
	}
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, AskMethod, req, resp); err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %v", domain.ErrServiceFailure, err)
	}

	ans, err := answerFromStruct(resp)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %w", domain.ErrServiceFailure, err)
	}
	return ans, nil
}

func answerFromStruct(s *structpb.Struct) (domain.Answer, error) {
	fields := s.GetFields()
	if msg := fields["error"].GetStringValue(); msg != "" {
		return domain.Answer{}, fmt.Errorf("%w: %s", errRemote, msg)
	}
	v, ok := fields["answer"]
	if !ok {
		return domain.Answer{}, errMissingAnswer
	}
	if _, isString := v.GetKind().(*structpb.Value_StringValue); !isString {
		return domain.Answer{}, errMissingAnswer
	}

	links := []domain.Link{}
	for _, item := range fields["links"].GetListValue().GetValues() {
		l := item.GetStructValue().GetFields()
		links = append(links, domain.Link{
			Title: l["file_title"].GetStringValue(),
			URL:   l["attachment_url"].GetStringValue(),
		})
	}
	return domain.Answer{Text: v.GetStringValue(), Links: links}, nil
}

// Close closes the gRPC connection.
func (c *GRPCClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}
