package grpcserver

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// LoggingUnary logs one line per call with the caller, the addressed CV and
// the resulting code. Client-side codes log at Warn, server faults at Error.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		call := &callInfo{}
		resp, err := next(context.WithValue(ctx, callInfoKey, call), req)
		code := status.Code(err)

		ce := log.Check(levelFor(code), "grpc")
		if ce == nil {
			return resp, err
		}
		var remote string
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}
		cvID := cvIDOf(req)
		if cvID == "" {
			cvID = cvIDOf(resp)
		}

		// metadata only, never payloads
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remote),
		}
		if call.userID != "" {
			fields = append(fields, zap.String("user_id", call.userID))
		}
		if cvID != "" {
			fields = append(fields, zap.String("cv_id", cvID))
		}
		if err != nil {
			fields = append(fields, zap.String("error", status.Convert(err).Message()))
		}
		ce.Write(fields...)
		return resp, err
	}
}

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
					zap.String("cv_id", cvIDOf(req)),
				)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}

func levelFor(code codes.Code) zapcore.Level {
	switch code {
	case codes.OK:
		return zapcore.InfoLevel
	case codes.NotFound, codes.AlreadyExists, codes.FailedPrecondition,
		codes.InvalidArgument, codes.Unauthenticated, codes.Canceled, codes.DeadlineExceeded:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// cvIDOf reads the "cvId" field of a Struct message.
func cvIDOf(msg any) string {
	s, ok := msg.(*structpb.Struct)
	if !ok || s == nil {
		return ""
	}
	return s.GetFields()["cvId"].GetStringValue()
}
