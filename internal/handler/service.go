package handler

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "clinic.v1.ScheduleService"

type ScheduleServiceServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	CreateAppointment(context.Context, *CreateAppointmentRequest) (*AppointmentResponse, error)
	GetAppointment(context.Context, *GetAppointmentRequest) (*AppointmentResponse, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	CancelAppointment(context.Context, *CancelAppointmentRequest) (*AppointmentResponse, error)
	CompleteAppointment(context.Context, *CompleteAppointmentRequest) (*AppointmentResponse, error)
	MarkNoShow(context.Context, *MarkNoShowRequest) (*AppointmentResponse, error)
	UpdateAppointment(context.Context, *UpdateAppointmentRequest) (*AppointmentResponse, error)
	DeleteAppointment(context.Context, *DeleteAppointmentRequest) (*DeleteAppointmentResponse, error)
	GetStats(context.Context, *GetStatsRequest) (*StatsResponse, error)
	GetAvailableSlots(context.Context, *GetAvailableSlotsRequest) (*GetAvailableSlotsResponse, error)
}

var _ ScheduleServiceServer = (*Handler)(nil)

// unary builds the method table entry protoc would otherwise generate.
func unary[Req, Resp any](name string, call func(ScheduleServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(ScheduleServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScheduleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", ScheduleServiceServer.Register),
		unary("Login", ScheduleServiceServer.Login),
		unary("CreateAppointment", ScheduleServiceServer.CreateAppointment),
		unary("GetAppointment", ScheduleServiceServer.GetAppointment),
		unary("ListAppointments", ScheduleServiceServer.ListAppointments),
		unary("CancelAppointment", ScheduleServiceServer.CancelAppointment),
		unary("CompleteAppointment", ScheduleServiceServer.CompleteAppointment),
		unary("MarkNoShow", ScheduleServiceServer.MarkNoShow),
		unary("UpdateAppointment", ScheduleServiceServer.UpdateAppointment),
		unary("DeleteAppointment", ScheduleServiceServer.DeleteAppointment),
		unary("GetStats", ScheduleServiceServer.GetStats),
		unary("GetAvailableSlots", ScheduleServiceServer.GetAvailableSlots),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterScheduleServiceServer(s grpc.ServiceRegistrar, srv ScheduleServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
