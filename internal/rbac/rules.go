package rbac

// Default policy for the three platform roles. Learners work their own
// attempts; teachers author quizzes and grade; admins do everything.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"user:change_password",
	},
	"teacher": {
		"quiz:view",
		"quiz:create",
		"subject:create",
		"subject:enroll",
		"attempt:view-all",
		"attempt:grade",
		"users:bulk_upsert",
		"users:list",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
