package models

// UserRole represents the many-to-many relationship between users and roles.
// When a user or role is deleted, its assignments are removed (CASCADE).
type UserRole struct {
	// UserID is the ID of the user in this mapping.
	UserID uint64 `gorm:"primaryKey;column:user_id"`
	// RoleID is the ID of the role in this mapping.
	RoleID uint64 `gorm:"primaryKey;column:role_id"`
	// User is the associated user (loaded via foreign key).
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// Role is the associated role (loaded via foreign key).
	Role Role `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the database table name for the UserRole model.
func (UserRole) TableName() string {
	return "user_roles"
}
