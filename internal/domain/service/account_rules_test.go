package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oksasatya/account-service/internal/domain/entity"
)

func fresh() *entity.Account {
	a := entity.CreateAccount("acc-1", "Ann", "a@x.io", "h", nil, nil)
	a.MarkCommitted()
	return a
}

func TestRules(t *testing.T) {
	a := fresh()
	assert.True(t, CanApprove(a))
	assert.True(t, CanBlock(a))
	assert.True(t, CanGrantRoles(a))

	a.Approve()
	assert.False(t, CanApprove(a))
	assert.True(t, CanBlock(a))

	b := fresh()
	b.Block()
	assert.False(t, CanApprove(b))
	assert.False(t, CanBlock(b))
	assert.False(t, CanGrantRoles(b))

	d := fresh()
	d.Delete()
	assert.False(t, CanApprove(d))
	assert.False(t, CanBlock(d))
	assert.False(t, CanGrantRoles(d))
}
