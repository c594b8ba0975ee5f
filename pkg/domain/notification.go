package domain

// NotificationKind distinguishes reward toasts from failure alerts.
type NotificationKind string

// Notification kinds.
const (
	NoticeShovel           NotificationKind = "reward_shovel"
	NoticeShovelAndPickaxe NotificationKind = "reward_shovel_pickaxe"
	NoticeItemDrop         NotificationKind = "reward_item"
	AlertPermission        NotificationKind = "alert_permission"
	AlertPersistence       NotificationKind = "alert_persistence"
	AlertLocation          NotificationKind = "alert_location"
)

// Notification is a user-visible toast or alert.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
}

// IsAlert reports whether the notification describes a failure.
func (n Notification) IsAlert() bool {
	switch n.Kind {
	case AlertPermission, AlertPersistence, AlertLocation:
		return true
	default:
		return false
	}
}
