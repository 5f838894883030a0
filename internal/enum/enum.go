package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending    = "PENDING"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
)

const (
	DeliveryPending   = "PENDING"
	DeliveryDelivered = "DELIVERED"
)

// ── Classification enums (CHECK constrained in DB) ──

const (
	OrderTypeIndividual = "INDIVIDUAL"
	OrderTypeGroup      = "GROUP"
)

const (
	PaymentModeCash         = "CASH"
	PaymentModeMpesa        = "MPESA"
	PaymentModeBankTransfer = "BANK_TRANSFER"
)

const (
	StaffRoleAdmin = "ADMIN"
	StaffRoleStaff = "STAFF"
)
