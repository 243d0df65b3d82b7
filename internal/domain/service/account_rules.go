package service

import "github.com/oksasatya/account-service/internal/domain/entity"

// CanApprove holds for accounts that are neither approved, blocked nor deleted.
func CanApprove(a *entity.Account) bool {
	return !a.Approved() && !a.IsBlocked() && !a.IsDeleted()
}

func CanBlock(a *entity.Account) bool {
	return !a.IsBlocked() && !a.IsDeleted()
}

func CanGrantRoles(a *entity.Account) bool {
	return !a.IsBlocked() && !a.IsDeleted()
}
