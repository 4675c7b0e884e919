package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:view",
		"attempt:start",
		"attempt:answer",
		"attempt:submit",
		"result:view-own",
		"progress:view-own",
		"user:change_password",
	},
	"teacher": {
		"quiz:view",
		"quiz:create",
		"quiz:update",
		"result:view-all",
		"result:grade",
		"weights:view",
		"weights:set",
		"progress:view-all",
		"users:list",
		"users:bulk_upsert",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
