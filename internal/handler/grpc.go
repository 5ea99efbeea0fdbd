package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cm8me/shortener/internal/generator"
	"github.com/cm8me/shortener/internal/model"
	"github.com/cm8me/shortener/internal/proto"
	"github.com/cm8me/shortener/internal/service"
	"github.com/cm8me/shortener/internal/storage"
)

// ShortenerGRPCServer exposes URLService over gRPC. Authentication of
// Shorten is done by middleware.GRPCAuthMiddleware.
type ShortenerGRPCServer struct {
	urlService URLService
}

var _ proto.ShortenerServer = (*ShortenerGRPCServer)(nil)

func NewShortenerGRPCServer(urlService URLService) *ShortenerGRPCServer {
	return &ShortenerGRPCServer{
		urlService: urlService,
	}
}

func (s *ShortenerGRPCServer) Shorten(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "url is required")
	}

	shortURL, err := s.urlService.ShortenURL(ctx, req.GetValue())
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			return nil, status.Error(codes.InvalidArgument, "invalid url")
		}
		log.Error().Err(err).Str("url", req.GetValue()).Msg("Failed to shorten URL")
		return nil, status.Error(codes.Internal, "failed to shorten url")
	}

	return wrapperspb.String(shortURL), nil
}

func (s *ShortenerGRPCServer) ShortenBareHost(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	shortURL, err := s.urlService.ShortenBareHost(ctx, req.GetValue())
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to shorten url")
	}

	return wrapperspb.String(shortURL), nil
}

func (s *ShortenerGRPCServer) Resolve(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "slug is required")
	}
	if !generator.IsSlug(req.GetValue()) {
		return nil, status.Error(codes.NotFound, "url not found")
	}

	target, err := s.urlService.GetOriginalURL(ctx, req.GetValue())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "url not found")
		}
		return nil, status.Errorf(codes.Internal, "failed to resolve slug: %v", err)
	}

	return wrapperspb.String(target), nil
}

func (s *ShortenerGRPCServer) List(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	page, err := s.urlService.ListKeys(ctx, req.GetValue())
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCursor) {
			return nil, status.Error(codes.InvalidArgument, "invalid cursor")
		}
		return nil, status.Errorf(codes.Internal, "failed to list keys: %v", err)
	}

	out, err := pageToStruct(page)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode page: %v", err)
	}

	return out, nil
}

// pageToStruct mirrors the JSON shape of GET /keys/list.
func pageToStruct(page model.ListPage) (*structpb.Struct, error) {
	keys := make([]interface{}, 0, len(page.Keys))
	for _, k := range page.Keys {
		key := map[string]interface{}{"name": k.Name}
		if len(k.Metadata) > 0 {
			meta := make(map[string]interface{}, len(k.Metadata))
			for mk, mv := range k.Metadata {
				meta[mk] = mv
			}
			key["metadata"] = meta
		}
		keys = append(keys, key)
	}

	fields := map[string]interface{}{
		"keys":          keys,
		"list_complete": page.ListComplete,
	}
	if page.Cursor != "" {
		fields["cursor"] = page.Cursor
	}

	return structpb.NewStruct(fields)
}
