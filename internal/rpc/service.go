package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ScoreRequest scores one capture.
type ScoreRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Letter    string `json:"letter,omitempty"`
	Image     []byte `json:"image"` // encoded image or data URI bytes
	Overlay   bool   `json:"overlay,omitempty"`
}

// ScoreResponse carries the scores of a capture.
type ScoreResponse struct {
	SessionID string `json:"session_id"`
	Letter    string `json:"letter"`
	Alignment int32  `json:"alignment"`
	Form      int32  `json:"form"`
	Overall   int32  `json:"overall"`
	Grade     string `json:"grade"`
	Feedback  string `json:"feedback"`
	Supported bool   `json:"supported"`
	Duplicate bool   `json:"duplicate"`
	Overlay   string `json:"overlay,omitempty"`
}

type LettersRequest struct{}

type LettersResponse struct {
	Alphabet  []string `json:"alphabet"`
	Supported []string `json:"supported"`
}

// ScorerServer is the server API for the Scorer service.
type ScorerServer interface {
	Score(context.Context, *ScoreRequest) (*ScoreResponse, error)
	Letters(context.Context, *LettersRequest) (*LettersResponse, error)
}

// ScorerServiceDesc describes the Scorer service for grpc.Server.RegisterService.
var ScorerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScorerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Score", Handler: scoreHandler},
		{MethodName: "Letters", Handler: lettersHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "handwriting/v1/scorer",
}

// RegisterScorerServer registers srv on s.
func RegisterScorerServer(s grpc.ServiceRegistrar, srv ScorerServer) {
	s.RegisterService(&ScorerServiceDesc, srv)
}

func scoreHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ScoreRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScorerServer).Score(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ScoreMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScorerServer).Score(ctx, req.(*ScoreRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func lettersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LettersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScorerServer).Letters(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LettersMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScorerServer).Letters(ctx, req.(*LettersRequest))
	}
	return interceptor(ctx, in, info, handler)
}
