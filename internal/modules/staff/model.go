// README: Staff directory records; one Employee type tagged with a role.
package staff

import "brigade/internal/types"

type Role string

const (
	RoleStaff   Role = "staff"
	RoleChef    Role = "chef"
	RoleManager Role = "manager"
)

type Restaurant struct {
	ID   types.ID
	Name string
}

// Employee.Duty names the preparation stage the employee is assigned to.
type Employee struct {
	ID           types.ID
	RestaurantID types.ID
	Name         string
	Role         Role
	Duty         string
}
