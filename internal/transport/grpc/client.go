package transportgrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// TokenServiceClient calls vetflow.auth.v1.TokenService.
type TokenServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewTokenServiceClient wraps an established connection.
func NewTokenServiceClient(cc grpc.ClientConnInterface) *TokenServiceClient {
	return &TokenServiceClient{cc: cc}
}

// VerifyToken asks the server whether raw is an accepted access token.
func (c *TokenServiceClient) VerifyToken(ctx context.Context, raw string, opts ...grpc.CallOption) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, VerifyTokenMethod, wrapperspb.String(raw), out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// EffectivePermissions returns the roles and permissions of the bearer of raw.
func (c *TokenServiceClient) EffectivePermissions(ctx context.Context, raw string, opts ...grpc.CallOption) (map[string]any, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+raw)
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EffectivePermissionsMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
