package provider

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// executeMethod is the fully-qualified gRPC method every remote provider
// service exposes. Requests and responses are schemaless structpb
// payloads rather than a generated per-provider message type, so one
// adapter covers every provider speaking the protocol; the normalized
// field conventions the assessor relies on are enforced by the remote
// service, not the wire schema.
const executeMethod = "/elile.provider.v1.ProviderService/Execute"

// GRPCAdapter is an Adapter backed by a remote provider service over
// gRPC. It is the production counterpart of MockAdapter: same interface,
// with transport, TLS identity, and deadline handling layered in.
type GRPCAdapter struct {
	id      string
	checks  []CheckType
	conn    *grpc.ClientConn
	health  grpc_health_v1.HealthClient
	timeout time.Duration
}

// GRPCAdapterConfig configures one remote provider connection.
type GRPCAdapterConfig struct {
	ProviderID string
	Target     string
	Checks     []CheckType
	// TLS, when non-nil, secures the connection (typically the SPIFFE
	// workload TLS config); nil dials plaintext for local development.
	TLS *tls.Config
	// Timeout bounds each Execute call; zero means 30s.
	Timeout time.Duration
}

// NewGRPCAdapter dials the remote provider service. The connection is
// lazy: dialing errors surface on the first call, not here.
func NewGRPCAdapter(cfg GRPCAdapterConfig) (*GRPCAdapter, error) {
	if cfg.ProviderID == "" || cfg.Target == "" {
		return nil, fmt.Errorf("grpc adapter: provider id and target are required")
	}
	creds := insecure.NewCredentials()
	if cfg.TLS != nil {
		creds = credentials.NewTLS(cfg.TLS)
	}
	conn, err := grpc.NewClient(cfg.Target, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("grpc adapter %s: %w", cfg.ProviderID, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GRPCAdapter{
		id:      cfg.ProviderID,
		checks:  cfg.Checks,
		conn:    conn,
		health:  grpc_health_v1.NewHealthClient(conn),
		timeout: timeout,
	}, nil
}

func (g *GRPCAdapter) ID() string                   { return g.id }
func (g *GRPCAdapter) SupportedChecks() []CheckType { return g.checks }

// Execute sends one check request and maps the remote outcome onto the
// adapter error vocabulary so RequestRouter's retry/fallback
// classification works identically for remote and in-process providers.
func (g *GRPCAdapter) Execute(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	fields := map[string]interface{}{
		"query_id":   req.QueryID,
		"check_type": string(req.CheckType),
	}
	for k, v := range req.Params {
		fields["param_"+k] = v
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("grpc adapter %s: encode request: %w", g.id, err)
	}

	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, executeMethod, in, out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, g.id, err)
	}

	result := out.AsMap()
	if code, _ := result["error_code"].(string); code != "" {
		return nil, g.mapErrorCode(code)
	}

	normalized, err := json.Marshal(result["normalized_data"])
	if err != nil {
		return nil, fmt.Errorf("grpc adapter %s: decode normalized payload: %w", g.id, err)
	}
	raw, _ := json.Marshal(result["raw_data"])
	cost, _ := result["cost_usd"].(float64)

	return &Response{
		QueryID:        req.QueryID,
		RawData:        raw,
		NormalizedData: normalized,
		CostUSD:        cost,
		FetchedAt:      time.Now(),
	}, nil
}

// mapErrorCode translates the wire-level error vocabulary into the
// typed sentinels RequestRouter classifies on.
func (g *GRPCAdapter) mapErrorCode(code string) error {
	switch code {
	case "RATE_LIMITED":
		return fmt.Errorf("%w: %s", ErrRateLimited, g.id)
	case "NOT_FOUND":
		return fmt.Errorf("%w: %s", ErrNotFound, g.id)
	case "INVALID_SUBJECT", "AUTH_FAILURE":
		return fmt.Errorf("%w: %s: %s", ErrUnsupportedCheck, g.id, code)
	default:
		return fmt.Errorf("%w: %s: %s", ErrProviderUnavailable, g.id, code)
	}
}

// HealthCheck queries the standard gRPC health service.
func (g *GRPCAdapter) HealthCheck(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := g.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return HealthStatus{Healthy: false, Detail: err.Error()}
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return HealthStatus{Healthy: false, Detail: resp.GetStatus().String()}
	}
	return HealthStatus{Healthy: true}
}

// Close releases the underlying connection.
func (g *GRPCAdapter) Close() error { return g.conn.Close() }
