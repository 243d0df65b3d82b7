package validation

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,pwd"`
	Roles    []string `json:"roles" binding:"omitempty,dive,role"`
}

func TestToDetailsUsesJSONNamesAndCustomTags(t *testing.T) {
	Init()
	err := binding.Validator.ValidateStruct(&sample{Email: "nope", Password: "short", Roles: []string{"ROLE_USER", "ROLE_GOD"}})
	require.Error(t, err)

	d := ToDetails(err)
	assert.Equal(t, "must be a valid email", d["email"])
	assert.Equal(t, "must be between 8 and 72 characters long", d["password"])
	assert.Contains(t, d["roles[1]"], "ROLE_PLATFORM_ADMIN")
	assert.NotContains(t, d, "roles[0]")
}

func TestToDetailsAcceptsValidInput(t *testing.T) {
	Init()
	err := binding.Validator.ValidateStruct(&sample{Email: "a@b.io", Password: "long-enough", Roles: []string{"ROLE_USER"}})
	assert.NoError(t, err)
	assert.Nil(t, ToDetails(nil))
}
