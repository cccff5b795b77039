package enums

// NotificationKind classifies customer-facing notification requests.
type NotificationKind string

const (
	NotificationKindRewardUnlocked NotificationKind = "reward_unlocked"
	NotificationKindRewardRedeemed NotificationKind = "reward_redeemed"
)

var notificationKinds = set[NotificationKind]{NotificationKindRewardUnlocked, NotificationKindRewardRedeemed}

func (n NotificationKind) IsValid() bool {
	return notificationKinds.has(n)
}

func ParseNotificationKind(value string) (NotificationKind, error) {
	return notificationKinds.parse("notification kind", value)
}
