// Package grpcserver authenticates inbound gRPC calls with bearer tokens.
//
// The interceptors validate the "authorization" metadata with any
// TokenValidator, optionally enforce an authz.Policy, and store the caller as
// a propagation.InboundPrincipal. A gRPC handler can then call a downstream
// service with the caller's own token:
//
//	server := grpc.NewServer(
//	    grpc.UnaryInterceptor(grpcserver.UnaryServerInterceptor(validator,
//	        grpcserver.WithExemptMethods("/grpc.health.v1.Health/Check"),
//	    )),
//	)
//
//	func (s *service) Get(ctx context.Context, req *pb.GetRequest) (*pb.GetResponse, error) {
//	    body, err := s.relay.Fetch(ctx, relay.StrategyPropagation, "/data")
//	    ...
//	}
package grpcserver
