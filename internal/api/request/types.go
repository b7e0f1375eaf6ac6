package request

// CreateGuestRequest is the request body for creating a guest player
type CreateGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the request body for registering a player
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateRoomRequest is the request body for creating a room. Omitted fields
// take the default room configuration.
type CreateRoomRequest struct {
	Minutes   *int `json:"minutes,omitempty"`
	Buffer    *int `json:"buffer,omitempty"`
	Increment *int `json:"increment,omitempty"`
}

// SecondsRequest carries the caller's locally observed remaining seconds
type SecondsRequest struct {
	Seconds *int `json:"seconds"`
}

// SetTimeRequest is the request body for correcting a player's time
type SetTimeRequest struct {
	PlayerID string `json:"player_id"`
	Seconds  *int   `json:"seconds"`
}
