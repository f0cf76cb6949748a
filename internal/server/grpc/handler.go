package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func (s *GRPCServer) Clean(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.maintenance.Clean(ctx); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) PurgeBatch(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "batch id is required")
	}
	n, err := s.store.PurgeBatch(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return wrapperspb.Int64(n), nil
}

func (s *GRPCServer) NextSequence(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	v, err := s.sequence.Next(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return wrapperspb.Int64(v), nil
}

func (s *GRPCServer) ReadCurrent(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "logical id is required")
	}
	e, err := s.store.FindEntryByID(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	out, err := entryToStruct(e)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

// toStatus maps engine errors onto gRPC codes. Internal details are logged
// but not sent to the caller.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrCapacityExceeded):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(ctx, "admin request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

// entryToStruct renders an entry as a JSON-like struct. Binary content is
// base64 encoded.
func entryToStruct(e models.Entry) (*structpb.Struct, error) {
	k := e.Identity()
	m := map[string]any{
		"key":       k.RecordKey(),
		"logicalId": k.LogicalID(),
		"kind":      string(e.Kind()),
	}

	switch v := e.(type) {
	case *models.TombstoneEntry:
		m["deleted"] = formatTime(v.Deleted)
	case *models.ContentEntry:
		m["title"] = v.Title
		m["lastUpdated"] = formatTime(v.LastUpdated)
		if v.AuthorName != "" || v.AuthorURI != "" {
			m["author"] = map[string]any{"name": v.AuthorName, "uri": v.AuthorURI}
		}
		if len(v.Tags) > 0 {
			tags := make([]any, 0, len(v.Tags))
			for _, t := range v.Tags {
				tags = append(tags, map[string]any{"term": t.Term, "scheme": t.Scheme, "label": t.Label})
			}
			m["tags"] = tags
		}
		if v.Resource != nil {
			m["resourceType"] = v.Resource.ResourceType()
			res, err := resourceValue(v.Resource)
			if err != nil {
				return nil, err
			}
			m["resource"] = res
		}
	}

	return structpb.NewStruct(m)
}

func resourceValue(r models.Resource) (any, error) {
	switch v := r.(type) {
	case *models.Binary:
		out := map[string]any{"contentType": v.ContentType}
		if len(v.Content) > 0 {
			out["content"] = v.Content
		}
		if v.Digest != "" {
			out["digest"] = v.Digest
		}
		return out, nil
	case *models.Generic:
		var body any
		if len(v.Body) == 0 {
			return nil, nil
		}
		if err := json.Unmarshal(v.Body, &body); err != nil {
			return nil, fmt.Errorf("%w: resource body: %w", common.ErrMapping, err)
		}
		return body, nil
	default:
		return nil, fmt.Errorf("%w: unknown resource %T", common.ErrMapping, r)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
