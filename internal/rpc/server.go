package rpc

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/analysis"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/config"
	apperrors "github.com/GriffinCanCode/handwriting-tutor/platform/internal/errors"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/practice"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/trace"
)

// Service implements ScorerServer on top of a practice manager.
type Service struct {
	mgr           *practice.Manager
	maxImageBytes int
}

// NewService creates the Scorer implementation. Images over cfg.MaxImageBytes are
// rejected before decoding.
func NewService(mgr *practice.Manager, cfg *config.Config) *Service {
	return &Service{mgr: mgr, maxImageBytes: cfg.MaxImageBytes}
}

// Score submits the capture to the practice session named in the request.
func (s *Service) Score(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error) {
	if s.maxImageBytes > 0 && len(req.Image) > s.maxImageBytes {
		return nil, apperrors.Newf(apperrors.ImageTooLarge, "image exceeds %d bytes", s.maxImageBytes).
			WithMetadata("limit", strconv.Itoa(s.maxImageBytes))
	}
	out, err := s.mgr.Submit(ctx, practice.Capture{
		SessionID: req.SessionID,
		Letter:    req.Letter,
		Image:     req.Image,
		Overlay:   req.Overlay,
	})
	if err != nil {
		return nil, err
	}
	return &ScoreResponse{
		SessionID: out.SessionID,
		Letter:    out.Letter,
		Alignment: int32(out.Score.Alignment),
		Form:      int32(out.Score.Form),
		Overall:   int32(out.Score.Overall),
		Grade:     out.Score.Grade().String(),
		Feedback:  out.Score.Feedback(),
		Supported: out.Supported,
		Duplicate: out.Duplicate,
		Overlay:   out.Overlay,
	}, nil
}

// Letters lists the alphabet and the letters with templates.
func (s *Service) Letters(context.Context, *LettersRequest) (*LettersResponse, error) {
	return &LettersResponse{
		Alphabet:  strings.Split(analysis.Alphabet, ""),
		Supported: analysis.SupportedLetters(),
	}, nil
}

// NewServer creates a gRPC server with srv registered behind the trace and error
// interceptors.
func NewServer(srv ScorerServer, cfg *config.Config, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor(), errorInterceptor),
		grpc.MaxRecvMsgSize(MaxRequestBytes(cfg.MaxImageBytes)),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: DefaultKeepaliveTime / 2}),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterScorerServer(s, srv)
	return s
}

// MaxRequestBytes is the largest Score message that can carry maxImageBytes of image.
// The JSON codec sends the image as base64, a third larger than the raw bytes.
func MaxRequestBytes(maxImageBytes int) int {
	return (maxImageBytes+2)/3*4 + messageSlack
}

// errorInterceptor turns handler errors into statuses carrying ErrorInfo. Statuses
// produced elsewhere pass through.
func errorInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}
	var appErr *apperrors.AppError
	if _, isStatus := status.FromError(err); isStatus && !errors.As(err, &appErr) {
		return nil, err
	}
	return nil, apperrors.From(err).GRPCStatus().Err()
}
