package chat

import (
	"github.com/go-playground/validator/v10"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/user"
)

var (
	oneRoleTag  = "allroles_one"
	oneRoleText = "invalid role"
)

func init() {
	_ = core.Validate.RegisterValidation(oneRoleTag, oneRoleValidation)
	core.RegisterCustomTranslation(oneRoleTag, oneRoleText)
}

// oneRoleValidation checks that a single role is one of user.AllRoles
func oneRoleValidation(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	for _, r := range user.AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
