package service

import (
	"testing"

	"github.com/smilecare/gateway/internal/domain/tool"
	"github.com/smilecare/gateway/internal/domain/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	guest   = valueobject.Guest()
	admin   = valueobject.NewCaller(1, valueobject.RoleAdmin, 0, "Ada Admin")
	dentist = valueobject.NewCaller(2, valueobject.RoleDentist, 7, "Dr. Lee")
	member  = valueobject.NewCaller(3, valueobject.RoleNone, 0, "Front Desk")
)

func newTestGate() *AuthorizationGate {
	return NewAuthorizationGate(tool.NewDentalCatalog())
}

func deniedReason(t *testing.T, err error) string {
	t.Helper()
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	return denied.Reason
}

func TestAuthorize_GuestDeniedForEveryNonGuestTool(t *testing.T) {
	gate := newTestGate()
	for _, d := range tool.NewDentalCatalog().Declarations() {
		_, err := gate.Authorize(d.Name, guest)
		if d.Auth == tool.AuthGuest {
			assert.NoError(t, err, d.Name)
			continue
		}
		assert.Equal(t, ReasonAuthRequired, deniedReason(t, err), d.Name)
	}
}

func TestAuthorize_AdminOnly(t *testing.T) {
	gate := newTestGate()

	_, err := gate.Authorize("get_revenue_report", dentist)
	assert.Equal(t, ReasonPermissionDenied, deniedReason(t, err))

	grant, err := gate.Authorize("get_revenue_report", admin)
	require.NoError(t, err)
	assert.False(t, grant.Scoped())
}

func TestAuthorize_DentistPersonal(t *testing.T) {
	gate := newTestGate()

	_, err := gate.Authorize("get_my_schedule", admin)
	assert.Contains(t, deniedReason(t, err), "get_dentist_schedule")

	_, err = gate.Authorize("get_my_schedule", member)
	assert.Contains(t, deniedReason(t, err), "only available to dentists")

	grant, err := gate.Authorize("get_my_schedule", dentist)
	require.NoError(t, err)
	assert.True(t, grant.Scoped())
	assert.Equal(t, int64(7), grant.ScopeID())
}

func TestAuthorize_RoleScopedOverridesForgedDentistID(t *testing.T) {
	gate := newTestGate()

	grant, err := gate.Authorize("get_all_patients", dentist)
	require.NoError(t, err)

	req := grant.Request(map[string]interface{}{tool.ScopeArg: int64(99), "status": "active"})
	assert.Equal(t, "get_all_patients", req.Tool())
	assert.Equal(t, int64(7), req.Args()[tool.ScopeArg])
	assert.Equal(t, "active", req.Args()["status"])

	// Without any dentist id the scope is still injected.
	req = grant.Request(map[string]interface{}{})
	assert.Equal(t, int64(7), req.Args()[tool.ScopeArg])
}

func TestAuthorize_RoleScopedAdminPassesThrough(t *testing.T) {
	grant, err := newTestGate().Authorize("search_patients", admin)
	require.NoError(t, err)

	req := grant.Request(map[string]interface{}{tool.ScopeArg: int64(99)})
	assert.Equal(t, int64(99), req.Args()[tool.ScopeArg])

	req = grant.Request(map[string]interface{}{})
	assert.NotContains(t, req.Args(), tool.ScopeArg)
}

func TestAuthorize_RoleScopedWithoutClinicRole(t *testing.T) {
	_, err := newTestGate().Authorize("search_patients", member)
	assert.Equal(t, ReasonPermissionDenied, deniedReason(t, err))
}

func TestAuthorize_AuthenticatedAndUnknown(t *testing.T) {
	gate := newTestGate()

	_, err := gate.Authorize("check_availability", member)
	assert.NoError(t, err)

	_, err = gate.Authorize("drop_tables", admin)
	assert.Contains(t, deniedReason(t, err), "unknown tool")
}

func TestQueryRequest_ZeroValueIsInvalid(t *testing.T) {
	assert.False(t, QueryRequest{}.Valid())

	grant, _ := newTestGate().Authorize("list_treatments", guest)
	assert.True(t, grant.Request(nil).Valid())
}

func TestRedactArgs(t *testing.T) {
	args := map[string]interface{}{"patientName": "Jane Doe", "dentistNames": []string{"Dr. Who"}, "limit": int64(5)}
	red := RedactArgs(args)

	assert.Equal(t, RedactionMarker, red["patientName"])
	assert.Equal(t, RedactionMarker, red["dentistNames"])
	assert.Equal(t, int64(5), red["limit"])
	assert.Equal(t, "Jane Doe", args["patientName"], "input must not be modified")
}
