package entity

// User is a marketplace account as stored in the user directory
type User struct {
	Id         string  `json:"id" gorm:"column:id;primaryKey"`
	Name       string  `json:"name" gorm:"column:name"`
	Username   string  `json:"username" gorm:"column:username"`
	Avatar     string  `json:"avatar" gorm:"column:avatar"`
	SellerName *string `json:"sellerName" gorm:"column:seller_name"`
	CreatedAt  int64   `json:"createdAt" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt  int64   `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// Profile is the lightweight public view of a user
type Profile struct {
	Id         UserRef `json:"id"`
	Name       string  `json:"name"`
	Username   string  `json:"username"`
	Avatar     string  `json:"avatar"`
	SellerName string  `json:"sellerName,omitempty"`
}

// ToProfile converts User to Profile
func (u *User) ToProfile() *Profile {
	p := &Profile{
		Id:       UserRef(u.Id),
		Name:     u.Name,
		Username: u.Username,
		Avatar:   u.Avatar,
	}
	if u.SellerName != nil {
		p.SellerName = *u.SellerName
	}
	return p
}

// UnknownProfile is shown in place of a participant the directory no longer knows
func UnknownProfile(ref UserRef) *Profile {
	return &Profile{Id: ref, Name: "Unknown user"}
}
