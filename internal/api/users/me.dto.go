package users

type UserDTO struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Lastname     string `json:"lastname,omitempty"`
	Role         string `json:"role"`
	AuthProvider string `json:"auth_provider"`
}

type CreditsDTO struct {
	Balance int64 `json:"balance"`
}

type CapabilitiesDTO struct {
	CanPurchaseCredits bool `json:"can_purchase_credits"`
	CanConsumeCredits  bool `json:"can_consume_credits"`
}

type MeResponse struct {
	User         UserDTO         `json:"user"`
	Credits      CreditsDTO      `json:"credits"`
	Capabilities CapabilitiesDTO `json:"capabilities"`
}
