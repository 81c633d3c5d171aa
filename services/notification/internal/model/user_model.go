package model

// UserModel reads the display name from the users table owned by the auth
// service.
type UserModel struct {
	ID   string `gorm:"column:id;type:uuid;primaryKey"`
	Name string `gorm:"column:name;type:varchar(100);not null"`
}

func (UserModel) TableName() string {
	return "users"
}
