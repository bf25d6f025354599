package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// tokenExpirySkew is how long before its expiry a JWT access token is
// refreshed proactively.
const tokenExpirySkew = 30 * time.Second

var timeNow = time.Now

// Tokens is the credential pair presented to the remote content API.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// GRPCTargetReserver reserves upload targets through the remote content API.
type GRPCTargetReserver struct {
	endpointURL string
	timeout     time.Duration
	conn        *grpc.ClientConn

	mu     sync.Mutex
	tokens Tokens

	refresh func(ctx context.Context, refreshToken string) (Tokens, error)
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

// tokenExpiresSoon reports whether token is a JWT whose exp claim falls
// within tokenExpirySkew. Opaque tokens never expire from the client's view.
func tokenExpiresSoon(token string) bool {
	if token == "" {
		return false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return timeNow().Add(tokenExpirySkew).After(claims.ExpiresAt.Time)
}

func (s *GRPCTargetReserver) currentTokens() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *GRPCTargetReserver) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if method == common.MethodRefreshToken {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	used := s.currentTokens()
	if used.RefreshToken != "" && tokenExpiresSoon(used.AccessToken) {
		if fresh, err := s.refreshTokens(ctx, used); err == nil {
			used = fresh
		}
	}

	err := invoker(withAccessToken(ctx, used.AccessToken), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	fresh, err := s.refreshTokens(ctx, used)
	if err != nil {
		return err
	}

	return invoker(withAccessToken(ctx, fresh.AccessToken), method, req, reply, cc, opts...)
}

// refreshTokens exchanges the refresh token once per expired access token:
// concurrent callers that observed the same stale token share the result.
func (s *GRPCTargetReserver) refreshTokens(ctx context.Context, used Tokens) (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens.AccessToken != used.AccessToken {
		return s.tokens, nil
	}
	if s.tokens.RefreshToken == "" {
		return Tokens{}, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}

	fresh, err := s.refresh(ctx, s.tokens.RefreshToken)
	if err != nil {
		return Tokens{}, err
	}
	s.tokens = fresh

	return fresh, nil
}

func (s *GRPCTargetReserver) callRefresh(ctx context.Context, refreshToken string) (Tokens, error) {
	in, err := toStruct(refreshRequestWire{RefreshToken: refreshToken})
	if err != nil {
		return Tokens{}, err
	}

	out := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, common.MethodRefreshToken, in, out); err != nil {
		return Tokens{}, err
	}

	var resp refreshResponseWire
	if err := fromStruct(out, &resp); err != nil {
		return Tokens{}, err
	}

	return Tokens(resp), nil
}

// NewGRPCTargetReserver connects lazily to endpointURL. Extra dial options are
// appended after the defaults (plaintext transport, token interceptor).
func NewGRPCTargetReserver(endpointURL string, tokens Tokens, timeout time.Duration, opts ...grpc.DialOption) (*GRPCTargetReserver, error) {
	c := &GRPCTargetReserver{endpointURL: endpointURL, tokens: tokens, timeout: timeout}
	c.refresh = c.callRefresh

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	return c, nil
}

func (s *GRPCTargetReserver) ReserveTargets(ctx context.Context, req models.ReserveRequest) (*models.ReserveResponse, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	in, err := toStruct(newReserveRequestWire(req))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	out := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, common.MethodReserveTargets, in, out); err != nil {
		return nil, s.mapError(err)
	}

	var resp reserveResponseWire
	if err := fromStruct(out, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return resp.toModel()
}

// Tokens returns the credentials currently in use, including refreshed ones.
func (s *GRPCTargetReserver) Tokens() Tokens {
	return s.currentTokens()
}

func (s *GRPCTargetReserver) Close() error {
	return s.conn.Close()
}

func (s *GRPCTargetReserver) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
