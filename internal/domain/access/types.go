package access

type Action string

const (
	ActionPurchaseCredits Action = "credits:purchase"
	ActionConsumeCredits  Action = "credits:consume"
)
