// Package admin declares the read-only administration service shared by
// the gRPC server and client. Messages are well-known protobuf types so no
// code generation is involved.
package admin

import (
	"context"
	"roomchat/domain"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName     = "roomchat.admin.v1.AdminService"
	ListRoomsMethod = "/" + ServiceName + "/ListRooms"
)

type AdminServiceServer interface {
	ListRooms(ctx context.Context, in *emptypb.Empty) (*structpb.ListValue, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListRooms", Handler: listRoomsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "roomchat/admin/v1/admin.proto",
}

func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func listRoomsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).ListRooms(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListRoomsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServiceServer).ListRooms(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func ToPbRoomStats(stats domain.RoomStats) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"id":          structpb.NewStringValue(stats.Room.ID.String()),
		"name":        structpb.NewStringValue(stats.Room.Name),
		"members":     structpb.NewNumberValue(float64(stats.Members)),
		"published":   structpb.NewNumberValue(float64(stats.Published)),
		"subscribers": structpb.NewNumberValue(float64(stats.Subscribers)),
	}})
}

func FromPbRoomStats(v *structpb.Value) domain.RoomStats {
	fields := v.GetStructValue().GetFields()
	return domain.RoomStats{
		Room: domain.RoomDescriptor{
			ID:   domain.RoomID(fields["id"].GetStringValue()),
			Name: fields["name"].GetStringValue(),
		},
		Members:     int64(fields["members"].GetNumberValue()),
		Published:   uint64(fields["published"].GetNumberValue()),
		Subscribers: int(fields["subscribers"].GetNumberValue()),
	}
}
