package loyalty_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loyalty-engine/loyalty"
)

func TestActorFor(t *testing.T) {
	admin, err := loyalty.ActorFor(loyalty.Operator{ID: "op-1", Role: loyalty.RoleAdmin}, "")
	require.NoError(t, err)
	assert.Equal(t, loyalty.Admin{ID: "op-1"}, admin)

	emp, err := loyalty.ActorFor(loyalty.Operator{ID: "op-2", Role: loyalty.RoleStationEmployee, StationID: "st-1"}, "")
	require.NoError(t, err)
	assert.Equal(t, loyalty.StationEmployee{ID: "op-2", StationID: "st-1"}, emp)

	_, err = loyalty.ActorFor(loyalty.Operator{ID: "op-3", Role: loyalty.RoleClientWeb}, "")
	assert.ErrorIs(t, err, loyalty.ErrInvalidArgument, "web clients must name their account")

	web, err := loyalty.ActorFor(loyalty.Operator{ID: "op-3", Role: loyalty.RoleClientWeb}, "c-1")
	require.NoError(t, err)
	assert.Equal(t, loyalty.RoleClientWeb, web.Role())
}

func TestPermits(t *testing.T) {
	admin := loyalty.Admin{ID: "op-1"}
	emp := loyalty.StationEmployee{ID: "op-2", StationID: "st-1"}
	web := loyalty.ClientWeb{ID: "op-3", ClientID: "c-1"}

	tests := []struct {
		op                 loyalty.Operation
		admin, employee, w bool
	}{
		{loyalty.OpManageRules, true, false, false},
		{loyalty.OpManageCatalog, true, false, false},
		{loyalty.OpManageStations, true, false, false},
		{loyalty.OpManageOperators, true, false, false},
		{loyalty.OpAdjustBalance, true, false, false},
		{loyalty.OpViewReports, true, false, false},
		{loyalty.OpRegisterClient, true, true, false},
		{loyalty.OpManageCards, true, true, false},
		{loyalty.OpRecordPurchase, true, true, false},
		{loyalty.OpViewClient, true, true, true},
		{loyalty.OpViewCatalog, true, true, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.admin, loyalty.Permits(admin, tt.op), "admin %s", tt.op)
		assert.Equal(t, tt.employee, loyalty.Permits(emp, tt.op), "employee %s", tt.op)
		assert.Equal(t, tt.w, loyalty.Permits(web, tt.op), "web %s", tt.op)
	}
}

func TestScopeChecks(t *testing.T) {
	admin := loyalty.Admin{ID: "op-1"}
	emp := loyalty.StationEmployee{ID: "op-2", StationID: "st-1"}
	web := loyalty.ClientWeb{ID: "op-3", ClientID: "c-1"}

	assert.True(t, loyalty.CanRecordAt(admin, "st-2"))
	assert.True(t, loyalty.CanRecordAt(emp, "st-1"))
	assert.False(t, loyalty.CanRecordAt(emp, "st-2"), "employees only ring up at their own station")
	assert.False(t, loyalty.CanRecordAt(web, "st-1"))

	assert.True(t, loyalty.CanAccessClient(admin, "c-2"))
	assert.True(t, loyalty.CanAccessClient(emp, "c-2"))
	assert.True(t, loyalty.CanAccessClient(web, "c-1"))
	assert.False(t, loyalty.CanAccessClient(web, "c-2"))
}
