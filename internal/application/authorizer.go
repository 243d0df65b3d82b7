package application

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/internal/domain/entity"
	"github.com/oksasatya/account-service/internal/domain/errs"
)

type Action string

const (
	ActionCreate         Action = "create"
	ActionRead           Action = "read"
	ActionUpdate         Action = "update"
	ActionDelete         Action = "delete"
	ActionList           Action = "list"
	ActionApprove        Action = "approve"
	ActionBlock          Action = "block"
	ActionGrantRoles     Action = "grant_roles"
	ActionChangePassword Action = "change_password"
	ActionHistory        Action = "history"
	ActionExport         Action = "export"
)

// Authorizer checks a requester against the account access policy.
// With Enforced false a missing requester is allowed and every such
// decision is logged, so running without authentication stays visible.
type Authorizer struct {
	Enforced bool
	Logger   *logrus.Logger
}

func NewAuthorizer(enforced bool, logger *logrus.Logger) *Authorizer {
	return &Authorizer{Enforced: enforced, Logger: logger}
}

type rule struct {
	roles     []string
	owner     bool
	denyOwner bool
}

var policy = map[Action]rule{
	ActionCreate:         {roles: []string{entity.RolePlatformAccountRW, entity.RolePlatformAdmin}},
	ActionRead:           {roles: []string{entity.RolePlatformAccountRO, entity.RolePlatformAdmin}, owner: true},
	ActionUpdate:         {roles: []string{entity.RolePlatformAccountRW, entity.RolePlatformAdmin}, owner: true},
	ActionChangePassword: {roles: []string{entity.RolePlatformAccountRW, entity.RolePlatformAdmin}, owner: true},
	ActionDelete:         {roles: []string{entity.RolePlatformAccountRW, entity.RolePlatformAdmin}, denyOwner: true},
	ActionList:           {roles: []string{entity.RolePlatformAccountRO, entity.RolePlatformAdmin}},
	ActionApprove:        {roles: []string{entity.RolePlatformAccountRW, entity.RolePlatformAdmin}},
	ActionBlock:          {roles: []string{entity.RolePlatformAccountRW, entity.RolePlatformAdmin}},
	ActionGrantRoles:     {roles: []string{entity.RolePlatformAccountRW, entity.RolePlatformAdmin}},
	ActionHistory:        {roles: []string{entity.RolePlatformAccountRO, entity.RolePlatformAdmin}},
	ActionExport:         {roles: []string{entity.RolePlatformAdmin}},
}

// Authorize decides whether req may perform action on the account targetID.
// targetID is empty for collection-level actions.
func (a *Authorizer) Authorize(req *Requester, action Action, targetID string) error {
	if req == nil {
		if a.Enforced {
			return a.deny(req, action, targetID, "missing requester")
		}
		a.log().WithFields(logrus.Fields{"action": action, "target_id": targetID}).
			Warn("authorization not enforced, allowing anonymous request")
		return nil
	}
	r, ok := policy[action]
	if !ok {
		return a.deny(req, action, targetID, "unknown action")
	}
	isOwner := targetID != "" && req.ID == targetID
	if r.denyOwner && isOwner {
		return a.deny(req, action, targetID, "action not allowed on own account")
	}
	if req.HasAnyRole(r.roles...) || (r.owner && isOwner) {
		return nil
	}
	return a.deny(req, action, targetID, "missing role")
}

// AuthorizeRoleAssignment rejects privileged roles unless req is a platform admin.
func (a *Authorizer) AuthorizeRoleAssignment(req *Requester, targetID string, roles []string) error {
	if !entity.AnyPrivileged(roles) {
		return nil
	}
	if req == nil && !a.Enforced {
		a.log().WithFields(logrus.Fields{"target_id": targetID, "roles": roles}).
			Warn("authorization not enforced, allowing privileged role assignment")
		return nil
	}
	if !req.HasAnyRole(entity.RolePlatformAdmin) {
		return a.deny(req, ActionGrantRoles, targetID, "only platform admin can assign privileged roles")
	}
	a.log().WithFields(logrus.Fields{"requester_id": req.ID, "target_id": targetID, "roles": roles}).
		Info("privileged roles assigned")
	return nil
}

func (a *Authorizer) deny(req *Requester, action Action, targetID, reason string) error {
	fields := logrus.Fields{"action": action, "target_id": targetID, "reason": reason}
	if req != nil {
		fields["requester_id"] = req.ID
		fields["requester_roles"] = req.Roles
	}
	a.log().WithFields(fields).Warn("forbidden")
	return fmt.Errorf("%w: %s", errs.ErrForbidden, reason)
}

func (a *Authorizer) log() *logrus.Logger {
	if a.Logger == nil {
		return logrus.StandardLogger()
	}
	return a.Logger
}
