package dispatch

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/drasi-project/e2e-test-framework/internal/proto"
)

// fakeDispatchService implements just enough of DispatchService's
// ProcessResults RPC, registered by hand against grpc.Server the same way
// a protoc-generated _grpc.pb.go would, to exercise the json-codec wire
// path end to end without a protoc step.
type fakeDispatchService struct {
	received []proto.ChangeEventBatch
}

func (s *fakeDispatchService) processResults(ctx context.Context, dec func(interface{}) error) (interface{}, error) {
	var req proto.ChangeEventBatch
	if err := dec(&req); err != nil {
		return nil, err
	}
	s.received = append(s.received, req)
	return &proto.DispatchAck{Accepted: len(req.Events)}, nil
}

func newFakeDispatchServer(t *testing.T, svc *fakeDispatchService) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: proto.DispatchServiceName,
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "ProcessResults",
				Handler: func(_ interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
					return svc.processResults(ctx, dec)
				},
			},
		},
	}, svc)

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)
	return lis
}

func TestGRPCDispatcherUnarySendsBatch(t *testing.T) {
	svc := &fakeDispatchService{}
	lis := newFakeDispatchServer(t, svc)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	defer conn.Close()

	d := &GRPCDispatcher{cfg: GRPCConfig{SourceId: "src1", Timeout: time.Second}, conn: conn}

	if err := d.Dispatch(context.Background(), testEvents(3)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(svc.received) != 1 {
		t.Fatalf("expected 1 received batch, got %d", len(svc.received))
	}
	if len(svc.received[0].Events) != 3 {
		t.Fatalf("expected 3 events in the batch, got %d", len(svc.received[0].Events))
	}
	if svc.received[0].SourceId != "src1" {
		t.Fatalf("expected source id src1, got %s", svc.received[0].SourceId)
	}
}
