package grpcserver_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/booking"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/grpcserver"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/store/memstore"
)

type client struct {
	conn *grpc.ClientConn
}

func (c client) call(t *testing.T, md metadata.MD, method string, req map[string]any) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(req)
	require.NoError(t, err)
	out := &structpb.Struct{}
	ctx := metadata.NewOutgoingContext(context.Background(), md)
	err = c.conn.Invoke(ctx, "/"+grpcserver.ServiceName+"/"+method, in, out)
	return out, err
}

// setup serves the pipeline over an in-memory listener. The calendar is
// absent, so every slot lookup reports a missing configuration.
func setup(t *testing.T) (client, *memstore.Store) {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := memstore.New()
	svc := pipeline.NewService(store, store, pipeline.DefaultCatalog(), log)
	coord := booking.New(svc, store, nil, booking.NewLocalLocker(time.Second), log)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	grpcserver.Register(gs, grpcserver.NewServer(svc, coord, log))
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return client{conn: conn}, store
}

func seed(t *testing.T, store *memstore.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateApplicant(ctx, &pipeline.Applicant{ID: "ada", Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, store.CreateApplication(ctx, &pipeline.Application{
		ID:          "app-1",
		ApplicantID: "ada",
		Team:        "Electric",
		Status:      pipeline.StatusSubmitted,
	}))
}

var (
	ada     = metadata.Pairs("x-user-id", "ada")
	captain = metadata.Pairs("x-user-id", "cap", "x-user-role", "team_captain", "x-user-team", "Electric")
)

func TestGetPhase(t *testing.T) {
	c, _ := setup(t)
	out, err := c.call(t, ada, "GetPhase", nil)
	require.NoError(t, err)
	assert.Equal(t, "OPEN", out.Fields["phase"].GetStringValue())
}

func TestMissingIdentity(t *testing.T) {
	c, _ := setup(t)
	_, err := c.call(t, metadata.MD{}, "GetPhase", nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUpdateStatusAndView(t *testing.T) {
	c, store := setup(t)
	seed(t, store)

	out, err := c.call(t, captain, "UpdateStatus", map[string]any{
		"applicationId": "app-1",
		"status":        "INTERVIEW",
		"systems":       []any{"Battery"},
	})
	require.NoError(t, err)
	assert.False(t, out.Fields["fullyRejected"].GetBoolValue())
	app := out.Fields["application"].GetStructValue()
	assert.Equal(t, "INTERVIEW", app.Fields["displayStatus"].GetStringValue())

	// The applicant still sees SUBMITTED in phase OPEN.
	out, err = c.call(t, ada, "GetApplication", map[string]any{"applicationId": "app-1"})
	require.NoError(t, err)
	assert.Equal(t, "SUBMITTED", out.Fields["displayStatus"].GetStringValue())

	out, err = c.call(t, captain, "ListApplications", map[string]any{"team": "Electric"})
	require.NoError(t, err)
	assert.Len(t, out.Fields["applications"].GetListValue().GetValues(), 1)
}

func TestAvailableSlots_ConfigMissing(t *testing.T) {
	c, store := setup(t)
	seed(t, store)
	_, err := c.call(t, captain, "UpdateStatus", map[string]any{
		"applicationId": "app-1", "status": "INTERVIEW", "systems": []any{"Battery"},
	})
	require.NoError(t, err)

	out, err := c.call(t, captain, "GetAvailableSlots", map[string]any{"applicationId": "app-1", "system": "Battery"})
	require.NoError(t, err)
	assert.True(t, out.Fields["configMissing"].GetBoolValue())
	assert.Empty(t, out.Fields["slots"].GetListValue().GetValues())
}

func TestErrorCodes(t *testing.T) {
	c, store := setup(t)
	seed(t, store)
	lead := metadata.Pairs("x-user-id", "l", "x-user-role", "system_lead", "x-user-team", "Electric")

	cases := []struct {
		name   string
		md     metadata.MD
		method string
		req    map[string]any
		want   codes.Code
	}{
		{"not found", captain, "GetApplication", map[string]any{"applicationId": "nope"}, codes.NotFound},
		{"denied", ada, "ListApplications", map[string]any{"team": "Electric"}, codes.PermissionDenied},
		{"invalid", captain, "UpdateStatus", map[string]any{"applicationId": "app-1", "status": "BOGUS"}, codes.InvalidArgument},
		{"misconfigured actor", lead, "UpdateStatus",
			map[string]any{"applicationId": "app-1", "status": "REJECTED", "systems": []any{"Battery"}}, codes.FailedPrecondition},
		{"bad timestamp", ada, "BookSlot", map[string]any{"applicationId": "app-1", "system": "Battery", "slotStart": "soon"}, codes.InvalidArgument},
		{"lead rejects outside own system", metadata.Pairs("x-user-id", "l", "x-user-role", "system_lead", "x-user-team", "Electric", "x-user-system", "Battery"),
			"RejectFromSystems", map[string]any{"applicationId": "app-1", "systems": []any{"Powertrain"}}, codes.PermissionDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.call(t, tc.md, tc.method, tc.req)
			assert.Equal(t, tc.want, status.Code(err), err)
		})
	}
}

func TestRejectSelectAndOutcome(t *testing.T) {
	c, store := setup(t)
	ctx := context.Background()
	require.NoError(t, store.CreateApplicant(ctx, &pipeline.Applicant{ID: "ada", Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, store.CreateApplication(ctx, &pipeline.Application{
		ID:          "app-2",
		ApplicantID: "ada",
		Team:        "Solar",
		Status:      pipeline.StatusSubmitted,
	}))
	require.NoError(t, store.SetPhase(ctx, pipeline.PhaseReleaseInterviews))
	solarCap := metadata.Pairs("x-user-id", "scap", "x-user-role", "team_captain", "x-user-team", "Solar")

	_, err := c.call(t, solarCap, "UpdateStatus", map[string]any{
		"applicationId": "app-2", "status": "INTERVIEW", "systems": []any{"Array", "Strategy"},
	})
	require.NoError(t, err)

	out, err := c.call(t, ada, "SelectSystem", map[string]any{"applicationId": "app-2", "system": "Array"})
	require.NoError(t, err)
	assert.Equal(t, "Array", out.Fields["application"].GetStructValue().Fields["selectedSystem"].GetStringValue())
	assert.False(t, out.Fields["needsSystemSelection"].GetBoolValue())

	_, err = c.call(t, solarCap, "RecordOutcome", map[string]any{
		"applicationId": "app-2", "system": "Array", "status": "COMPLETED",
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "outcome needs a SCHEDULED offer")

	out, err = c.call(t, solarCap, "RejectFromSystems", map[string]any{
		"applicationId": "app-2", "systems": []any{"Strategy"},
	})
	require.NoError(t, err)
	assert.False(t, out.Fields["fullyRejected"].GetBoolValue())

	out, err = c.call(t, solarCap, "RejectFromSystems", map[string]any{
		"applicationId": "app-2", "systems": []any{"Array"},
	})
	require.NoError(t, err)
	assert.True(t, out.Fields["fullyRejected"].GetBoolValue())
	assert.Equal(t, "REJECTED", out.Fields["application"].GetStructValue().Fields["displayStatus"].GetStringValue())
}

func TestUnknownMethod(t *testing.T) {
	c, _ := setup(t)
	_, err := c.call(t, ada, "Dance", nil)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
