// Package operations exposes recorded item mutations through the standard
// google.longrunning Operations surface.
package operations

import (
	"context"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"go.einride.tech/aip/resourcename"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/plantworks/manufacturing/internal/errors"
	"github.com/plantworks/manufacturing/internal/operation"
	"github.com/plantworks/manufacturing/internal/storage/cursor"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// Server serves the Operations API over the in-process registry.
type Server struct {
	longrunningpb.UnimplementedOperationsServer

	registry *operation.Registry
}

// NewServer wires an Operations server over a registry.
func NewServer(registry *operation.Registry) *Server {
	return &Server{registry: registry}
}

// GetOperation returns one operation by name.
func (s *Server) GetOperation(ctx context.Context, req *longrunningpb.GetOperationRequest) (*longrunningpb.Operation, error) {
	id, err := parseOperationName(req.GetName())
	if err != nil {
		return nil, err
	}

	record, err := s.registry.Get(id)
	if err != nil {
		return nil, errors.HandleError(err)
	}
	return toProto(record)
}

// ListOperations returns one page of recorded operations.
func (s *Server) ListOperations(ctx context.Context, req *longrunningpb.ListOperationsRequest) (*longrunningpb.ListOperationsResponse, error) {
	pageSize := int(req.GetPageSize())
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	offset := 0
	if token := req.GetPageToken(); token != "" {
		c, err := cursor.Decode(token)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "invalid page token")
		}
		offset = c.Offset
	}

	records := s.registry.List()
	if offset > len(records) {
		offset = len(records)
	}
	end := offset + pageSize
	if end > len(records) {
		end = len(records)
	}

	resp := &longrunningpb.ListOperationsResponse{
		Operations: make([]*longrunningpb.Operation, 0, end-offset),
	}
	for _, record := range records[offset:end] {
		op, err := toProto(record)
		if err != nil {
			return nil, err
		}
		resp.Operations = append(resp.Operations, op)
	}
	if end < len(records) {
		token, err := cursor.Encode(cursor.New(end, "", ""))
		if err != nil {
			return nil, status.Error(codes.Internal, "encode page token")
		}
		resp.NextPageToken = token
	}
	return resp, nil
}

// WaitOperation returns the operation once it is done. Mutations complete
// synchronously here, so a known operation is returned immediately.
func (s *Server) WaitOperation(ctx context.Context, req *longrunningpb.WaitOperationRequest) (*longrunningpb.Operation, error) {
	id, err := parseOperationName(req.GetName())
	if err != nil {
		return nil, err
	}

	record, err := s.registry.Get(id)
	if err != nil {
		return nil, errors.HandleError(err)
	}
	return toProto(record)
}

// DeleteOperation removes an operation record.
func (s *Server) DeleteOperation(ctx context.Context, req *longrunningpb.DeleteOperationRequest) (*emptypb.Empty, error) {
	id, err := parseOperationName(req.GetName())
	if err != nil {
		return nil, err
	}

	if err := s.registry.Delete(id); err != nil {
		return nil, errors.HandleError(err)
	}
	return &emptypb.Empty{}, nil
}

// CancelOperation rejects cancelation because recorded operations are
// already terminal.
func (s *Server) CancelOperation(ctx context.Context, req *longrunningpb.CancelOperationRequest) (*emptypb.Empty, error) {
	id, err := parseOperationName(req.GetName())
	if err != nil {
		return nil, err
	}

	if _, err := s.registry.Get(id); err != nil {
		return nil, errors.HandleError(err)
	}
	return nil, status.Error(codes.FailedPrecondition, "operation has already completed")
}

func parseOperationName(name string) (string, error) {
	var id string
	if err := resourcename.Sscan(name, "operations/{operation}", &id); err != nil || id == "" {
		return "", status.Error(codes.InvalidArgument, "invalid operation name")
	}
	return id, nil
}

// OperationName formats the resource name for an operation id.
func OperationName(id string) string {
	return resourcename.Sprint("operations/{operation}", id)
}

func toProto(record operation.Record) (*longrunningpb.Operation, error) {
	metadataFields := map[string]any{
		"item_id":     record.Metadata.ItemID,
		"verb":        record.Metadata.Verb,
		"create_time": record.Metadata.CreateTime.UTC().Format(time.RFC3339Nano),
	}
	if record.Metadata.Item != nil {
		metadataFields["item"] = record.Metadata.Item
	}
	metadata, err := structpb.NewStruct(metadataFields)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode operation metadata")
	}
	metadataAny, err := anypb.New(metadata)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode operation metadata")
	}

	op := &longrunningpb.Operation{
		Name:     OperationName(record.ID),
		Metadata: metadataAny,
		Done:     record.Done,
	}
	if !record.Done {
		return op, nil
	}

	if record.Err != nil {
		op.Result = &longrunningpb.Operation_Error{
			Error: status.Convert(errors.HandleError(record.Err)).Proto(),
		}
		return op, nil
	}

	response, err := structpb.NewStruct(record.Response)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode operation response")
	}
	responseAny, err := anypb.New(response)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode operation response")
	}
	op.Result = &longrunningpb.Operation_Response{Response: responseAny}
	return op, nil
}
