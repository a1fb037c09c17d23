// Package grpcweb translates gRPC-Web calls from browsers (HTTP/1.1) into
// native gRPC calls against the schedule service.
package grpcweb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"clinic-scheduler/internal/handler"
	"clinic-scheduler/internal/middleware"
)

const (
	contentType  = "application/grpc-web+json"
	maxBodyBytes = 1 << 20

	flagData    byte = 0x00
	flagTrailer byte = 0x80
)

var (
	errShortFrame = errors.New("body too short")
	errIncomplete = errors.New("incomplete frame")
)

type Bridge struct {
	conn *grpc.ClientConn
	log  zerolog.Logger
}

// New dials the gRPC server at addr (e.g. "localhost:50051").
func New(addr string, log zerolog.Logger) (*Bridge, error) {
	conn, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("grpcweb dial: %w", err)
	}
	return NewFromConn(conn, log), nil
}

// NewFromConn bridges onto an existing connection. Close closes conn.
func NewFromConn(conn *grpc.ClientConn, log zerolog.Logger) *Bridge {
	return &Bridge{conn: conn, log: log.With().Str("component", "grpcweb").Logger()}
}

func (b *Bridge) Close() error { return b.conn.Close() }

// Mount routes every schedule service method through the bridge.
func (b *Bridge) Mount(e *echo.Echo) {
	e.POST("/"+handler.ServiceName+"/:method", b.Handle)
}

func (b *Bridge) Handle(c echo.Context) error {
	r := c.Request()
	w := c.Response()
	if !strings.HasPrefix(r.Header.Get(echo.HeaderContentType), contentType) {
		return c.String(http.StatusUnsupportedMediaType, "expected "+contentType)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, codes.Internal, "read body failed")
		return nil
	}
	payload, err := readFrame(body)
	if err != nil {
		writeError(w, codes.InvalidArgument, err.Error())
		return nil
	}

	// forward metadata
	md := metadata.MD{}
	if vals := r.Header.Values("Authorization"); len(vals) > 0 {
		md.Set("authorization", vals...)
	}
	md.Set(middleware.ClientAddrKey, c.RealIP())
	ctx := metadata.NewOutgoingContext(r.Context(), md)

	method := "/" + handler.ServiceName + "/" + c.Param("method")
	b.log.Debug().Str("method", method).Msg("grpc-web forward")

	// pass the JSON payload through untouched
	resp := &rawMsg{}
	err = b.conn.Invoke(ctx, method, &rawMsg{data: payload}, resp, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		st := status.Convert(err)
		b.log.Debug().Str("method", method).Str("code", st.Code().String()).Msg(st.Message())
		writeError(w, st.Code(), st.Message())
		return nil
	}
	writeSuccess(w, resp.data)
	return nil
}

// rawMsg wraps already-encoded JSON bytes.
type rawMsg struct{ data []byte }

// rawCodec passes bytes through but announces the json content-subtype so
// the server decodes with the schedule service codec.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	return v.(*rawMsg).data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	m := v.(*rawMsg)
	m.data = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return handler.CodecName }

// grpc-web frame: 1-byte flag + 4-byte big-endian length + message
func readFrame(body []byte) ([]byte, error) {
	if len(body) < 5 {
		return nil, errShortFrame
	}
	n := binary.BigEndian.Uint32(body[1:5])
	if uint64(n)+5 > uint64(len(body)) {
		return nil, errIncomplete
	}
	return body[5 : 5+n], nil
}

func frame(flag byte, data []byte) []byte {
	f := make([]byte, 5+len(data))
	f[0] = flag
	binary.BigEndian.PutUint32(f[1:5], uint32(len(data)))
	copy(f[5:], data)
	return f
}

func writeError(w http.ResponseWriter, code codes.Code, msg string) {
	w.Header().Set(echo.HeaderContentType, contentType)
	w.WriteHeader(http.StatusOK)
	msg = strings.NewReplacer("\r", " ", "\n", " ").Replace(msg)
	trailer := fmt.Sprintf("grpc-status:%d\r\ngrpc-message:%s\r\n", code, msg)
	w.Write(frame(flagTrailer, []byte(trailer)))
}

func writeSuccess(w http.ResponseWriter, data []byte) {
	w.Header().Set(echo.HeaderContentType, contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(frame(flagData, data))
	w.Write(frame(flagTrailer, []byte("grpc-status:0\r\n")))
}
