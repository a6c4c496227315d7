package constants

// Redis key prefixes. User data lives in DB 0, resource data (channels,
// content) in DB 1 and revoked tokens in DB 2 - the prefixes keep the
// namespaces distinct even if the DBs are ever collapsed into one.
const (
	UserPrefix         = "user:"
	ChannelPrefix      = "channel:"
	ContentPrefix      = "content:"
	RevokedTokenPrefix = "revoked-token:"

	ZPayOrderPrefix        = "zpay_order:"
	ZPayUserOrdersPrefix   = "user_zpay_orders:"
	ZPayCallbackLockPrefix = "zpay_callback_lock:"
	FailedUpdatePrefix     = "failed_update:"
)

// Plan names.
const (
	PlanFree    = "Free"
	PlanBasic   = "Basic"
	PlanPro     = "Pro"
	PlanPremium = "Premium"
)

// User roles.
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// Visibility values for channels and videos.
const (
	VisibilityPublic = "public"
	VisibilityHidden = "hidden"
	VisibilityAll    = "all"
)

// LanguageAll disables the language filter on channel listings.
const LanguageAll = "all"
