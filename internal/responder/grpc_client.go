package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// Wire names of the reply service.
const (
	ServiceName    = "honeypot.reply.v1.ReplyService"
	GenerateMethod = "/" + ServiceName + "/Generate"
)

var errConnectionShutdown = errors.New("connection shutdown")

// GrpcClientConfig holds configuration for the gRPC reply client.
type GrpcClientConfig struct {
	Address          string
	Persona          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcClientConfig returns default configuration.
func DefaultGrpcClientConfig() GrpcClientConfig {
	return GrpcClientConfig{
		Address:          "localhost:50051",
		Persona:          DefaultPersona,
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   8 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcClient asks a remote generative model to phrase replies. Messages are
// google.protobuf.Struct values so no generated stubs are needed.
type GrpcClient struct {
	conn   *grpc.ClientConn
	cfg    GrpcClientConfig
	logger *slog.Logger
}

// NewGrpcClient connects to the reply service and waits until it is ready.
func NewGrpcClient(cfg GrpcClientConfig, logger *slog.Logger) (*GrpcClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = withDefaults(cfg)

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
		return nil, fmt.Errorf("create reply client for %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("reply service at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to reply service", "address", cfg.Address)
	return NewGrpcClientWithConn(conn, cfg, logger), nil
}

// NewGrpcClientWithConn wraps an existing connection. The client owns conn.
func NewGrpcClientWithConn(conn *grpc.ClientConn, cfg GrpcClientConfig, logger *slog.Logger) *GrpcClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrpcClient{conn: conn, cfg: withDefaults(cfg), logger: logger}
}

func withDefaults(cfg GrpcClientConfig) GrpcClientConfig {
	def := DefaultGrpcClientConfig()
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.Persona == "" {
		cfg.Persona = def.Persona
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.KeepaliveTime <= 0 {
		cfg.KeepaliveTime = def.KeepaliveTime
	}
	if cfg.KeepaliveTimeout <= 0 {
		cfg.KeepaliveTimeout = def.KeepaliveTimeout
	}
	return cfg
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
			return fmt.Errorf("connection state did not change from %s", state)
		}
	}
}

// Close closes the gRPC connection.
func (c *GrpcClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// Reply asks the model for a reply. Any error, timeout or empty answer
// yields the request fallback.
func (c *GrpcClient) Reply(ctx context.Context, req Request) string {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	text, err := c.generate(ctx, req)
	if err != nil {
		c.logger.Warn("Reply generation failed, using fallback",
			"session_id", req.SessionID,
			"error", err,
		)
		return req.fallback()
	}
	return text
}

func (c *GrpcClient) generate(ctx context.Context, req Request) (string, error) {
	persona := req.Persona
	if persona == "" {
		persona = c.cfg.Persona
	}

	history := make([]any, 0, historyWindow)
	for _, m := range recentHistory(req.History) {
		history = append(history, map[string]any{
			"role":    chatRole(m.Role),
			"content": m.Text,
		})
	}

	in, err := structpb.NewStruct(map[string]any{
		"session_id": req.SessionID,
		"persona":    persona,
		"goal_hint":  req.GoalHint,
		"history":    history,
	})
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, GenerateMethod, in, out); err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	text := strings.TrimSpace(out.GetFields()["reply"].GetStringValue())
	if text == "" {
		return "", errors.New("generate: empty reply")
	}
	return text, nil
}
