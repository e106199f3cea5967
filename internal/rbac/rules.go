package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"progress:write",
		"quiz:view",
		"quiz:generate",
		"exam:view-available",
	},
	"teacher": {
		"progress:view-all",
		"quiz:view",
		"users:bulk_upsert",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}
