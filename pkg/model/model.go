package model

// Contact is the data structure for a person that we know, as exchanged with the REST API.
type Contact struct {
	Id             int64  `json:"id"`
	Name           string `json:"name"`
	SureName       string `json:"sure_name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	Birthday       string `json:"birthday"`
	AdditionalData string `json:"additional_data"`
}

// TokenPair is the body returned by the login and refresh endpoints.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Error is the body of every non-2xx response. Validation failures carry a list in Detail.
type Error struct {
	Detail any `json:"detail"`
}
