/*
access.go - Who may do what

PURPOSE:
  Maps the three back-office roles onto the operations of this package. The
  checks are pure functions over an Actor; authentication happens upstream.

ROLES:
  Admin            everything
  StationEmployee  record purchases at its own station, look up and enroll
                   clients, issue cards, read the catalog and active rule
  ClientWeb        read its own account, card and history, plus the catalog
                   and active rule
*/
package loyalty

// Actor is the authenticated caller. The set of implementations is closed.
type Actor interface {
	actor()
	Role() Role
}

type Admin struct {
	ID OperatorID
}

type StationEmployee struct {
	ID        OperatorID
	StationID StationID
}

type ClientWeb struct {
	ID       OperatorID
	ClientID ClientID
}

func (Admin) actor()           {}
func (StationEmployee) actor() {}
func (ClientWeb) actor()       {}

func (Admin) Role() Role           { return RoleAdmin }
func (StationEmployee) Role() Role { return RoleStationEmployee }
func (ClientWeb) Role() Role       { return RoleClientWeb }

// ActorFor builds the Actor of a registered operator. A web client must name
// the account it acts for.
func ActorFor(op Operator, clientID ClientID) (Actor, error) {
	switch op.Role {
	case RoleAdmin:
		return Admin{ID: op.ID}, nil
	case RoleStationEmployee:
		return StationEmployee{ID: op.ID, StationID: op.StationID}, nil
	case RoleClientWeb:
		if clientID == "" {
			return nil, invalid("client", "required for web clients")
		}
		return ClientWeb{ID: op.ID, ClientID: clientID}, nil
	}
	return nil, invalid("role", "unknown role "+string(op.Role))
}

type Operation string

const (
	OpManageRules     Operation = "manage_rules"
	OpManageCatalog   Operation = "manage_catalog"
	OpManageStations  Operation = "manage_stations"
	OpManageOperators Operation = "manage_operators"
	OpAdjustBalance   Operation = "adjust_balance"
	OpViewReports     Operation = "view_reports"
	OpRegisterClient  Operation = "register_client"
	OpManageCards     Operation = "manage_cards"
	OpRecordPurchase  Operation = "record_purchase"
	OpViewClient      Operation = "view_client"
	OpViewCatalog     Operation = "view_catalog"
)

// Permits reports whether the actor's role allows op at all. Scope checks
// (which station, which client) are CanRecordAt and CanAccessClient.
func Permits(a Actor, op Operation) bool {
	switch a.(type) {
	case Admin:
		return true
	case StationEmployee:
		switch op {
		case OpRegisterClient, OpManageCards, OpRecordPurchase, OpViewClient, OpViewCatalog:
			return true
		}
	case ClientWeb:
		switch op {
		case OpViewClient, OpViewCatalog:
			return true
		}
	}
	return false
}

// CanRecordAt reports whether the actor may record a purchase at station.
func CanRecordAt(a Actor, station StationID) bool {
	switch v := a.(type) {
	case Admin:
		return true
	case StationEmployee:
		return v.StationID == station
	}
	return false
}

// CanAccessClient reports whether the actor may read the client's account.
func CanAccessClient(a Actor, client ClientID) bool {
	switch v := a.(type) {
	case Admin, StationEmployee:
		return true
	case ClientWeb:
		return v.ClientID == client
	}
	return false
}
