package models

// Ключи, под которыми auth middleware кладет данные в gin.Context.
const (
	CtxKeyUserID     = "user_id"
	CtxKeyRoles      = "user_roles"
	CtxKeyAccessUUID = "access_uuid"
)
