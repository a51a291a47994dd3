package model

// Role 岗位方向，题目与进度都按岗位划分
type Role string

const (
	RoleSDE Role = "sde"
	RoleDA  Role = "da"
	RoleFD  Role = "fd"
	RoleBD  Role = "bd"
)

const (
	MinLevel = 1
	MaxLevel = 10
)

// swagger:model RoleInfo
type RoleInfo struct {
	ID   Role   `json:"id"`
	Name string `json:"name"`
}

var Roles = []RoleInfo{
	{ID: RoleSDE, Name: "Software Engineer"},
	{ID: RoleDA, Name: "Data Analyst"},
	{ID: RoleFD, Name: "Frontend Developer"},
	{ID: RoleBD, Name: "Backend Developer"},
}

func (r Role) Valid() bool {
	for _, info := range Roles {
		if info.ID == r {
			return true
		}
	}
	return false
}

func (r Role) DisplayName() string {
	for _, info := range Roles {
		if info.ID == r {
			return info.Name
		}
	}
	return string(r)
}

func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}
