package response_models

type SubscriptionSnapshot struct {
	PlanID   string `json:"PlanID"`
	Status   string `json:"Status"`
	StartsAt int64  `json:"StartsAt"`
	EndsAt   int64  `json:"EndsAt"`
}

type ProfileResponse struct {
	MemberID      string                `json:"member_id"`
	Name          string                `json:"name"`
	Email         string                `json:"email"`
	MinuteBalance int64                 `json:"minute_balance"`
	Subscription  *SubscriptionSnapshot `json:"subscription,omitempty"`
}
