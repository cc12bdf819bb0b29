package model

// EmergencyThreshold is the command code at which a command becomes an
// emergency. The flag is derived, never set directly.
const EmergencyThreshold = 9000

type Device struct {
	ID            int64
	Name          string
	APIKey        string
	Active        bool
	IPAddress     string
	WifiSignal    *int
	BatteryStatus string
	DeviceTime    string
	LastSeenAt    int64
	CreatedAt     int64
}

type Person struct {
	ID        string
	FullName  string
	Email     string
	Notes     string
	CreatedAt int64
}

type Tag struct {
	UID         string
	OwnerID     string
	Allowed     bool
	Description string
	CreatedAt   int64
	LastUsedAt  int64
}

// TagRequest is a pending register/revoke request raised by a device and
// resolved later by an operator.
type TagRequest struct {
	ID          string
	Kind        string // "register" or "revoke"
	DeviceID    int64
	TagUID      string
	Description string
	Reason      string
	Status      string
	CreatedAt   int64
}

type Command struct {
	ID        int64
	DeviceID  int64
	Code      int
	Params    [4]int
	Note      string
	CreatedAt int64
}

// Emergency reports whether the command code crosses the emergency
// threshold. Queue entries snapshot this at enqueue time.
func (c Command) Emergency() bool {
	return c.Code >= EmergencyThreshold
}

type QueueStatus string

const (
	StatusQueued       QueueStatus = "queued"
	StatusDelivered    QueueStatus = "delivered"
	StatusAcknowledged QueueStatus = "acknowledged"
	StatusExpired      QueueStatus = "expired"
	StatusCancelled    QueueStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s QueueStatus) Terminal() bool {
	return s == StatusAcknowledged || s == StatusExpired || s == StatusCancelled
}

type QueueEntry struct {
	ID             int64
	CommandID      int64
	DeviceID       int64
	Status         QueueStatus
	Emergency      bool
	EnqueuedAt     int64
	ExpiresAt      int64
	DeliveredAt    int64
	AcknowledgedAt int64
	Metadata       map[string]string
}

type AuditEntry struct {
	ID        string
	DeviceID  int64
	CommandID int64
	QueueID   int64
	Status    string
	Details   string
	CreatedAt int64
}

type AccessLogEntry struct {
	ID        string
	DeviceID  int64
	TagUID    string
	Owner     string
	Granted   bool
	Details   string
	CreatedAt int64
}

type SyslogEntry struct {
	ID         string
	Severity   int
	Facility   string
	Host       string
	Tag        string
	Message    string
	Priority   int
	IP         string
	DeviceTime string
	CreatedAt  int64
}
