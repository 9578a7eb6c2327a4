package model

import "time"

// Contact is the data structure for a person that we know.
type Contact struct {
	Id             int64     `json:"id"              db:"id"`
	Name           string    `json:"name"            db:"name"`
	SureName       string    `json:"sure_name"       db:"sure_name"`
	Email          string    `json:"email"           db:"email"`
	PhoneNumber    string    `json:"phone_number"    db:"phone_number"`
	Birthday       string    `json:"birthday"        db:"birthday"`
	AdditionalData string    `json:"additional_data" db:"additional_data"`
	UserId         *int64    `json:"-"               db:"user_id"`
	CreatedAt      time.Time `json:"-"               db:"created_at"`
	UpdatedAt      time.Time `json:"-"               db:"updated_at"`
}

// ContactRequest is the body accepted when creating or replacing a contact. The birthday is
// free text and not interpreted by the service.
type ContactRequest struct {
	Name           string `json:"name"            binding:"required,min=3,max=16"`
	SureName       string `json:"sure_name"       binding:"required,min=3,max=16"`
	Email          string `json:"email"           binding:"required,email"`
	PhoneNumber    string `json:"phone_number"    binding:"required,min=9,max=16"`
	Birthday       string `json:"birthday"`
	AdditionalData string `json:"additional_data"`
}

// User is an account that can sign in and manage contacts.
type User struct {
	Id           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	Password     string    `db:"password"`
	Avatar       *string   `db:"avatar"`
	RefreshToken *string   `db:"refresh_token"`
	Confirmed    bool      `db:"confirmed"`
	CreatedAt    time.Time `db:"created_at"`
}

// UserResponse is the public view of a user. It never carries credentials.
type UserResponse struct {
	Id       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

// NewUserResponse strips the private fields of a user.
func NewUserResponse(u *User) UserResponse {
	resp := UserResponse{Id: u.Id, Username: u.Username, Email: u.Email}
	if u.Avatar != nil {
		resp.Avatar = *u.Avatar
	}
	return resp
}

// SignupRequest is the registration body.
type SignupRequest struct {
	Username string `json:"username" binding:"required,min=5,max=12"`
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=8"`
}

// SignupResponse is returned after a successful registration.
type SignupResponse struct {
	User   UserResponse `json:"user"`
	Detail string       `json:"detail"`
}

// LoginForm is the form encoded login body. Username carries the email address.
type LoginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

// EmailRequest asks for a new confirmation email.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TokenPair is handed out on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
