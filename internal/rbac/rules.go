package rbac

const (
	PermActivityView   = "activity:view"
	PermActivityManage = "activity:manage"
	PermCourseView     = "course:view"
	PermCourseManage   = "course:manage"
	PermProgressSave   = "progress:save"
	PermDashboardView  = "dashboard:view"
	PermUsersManage    = "users:manage"
	PermUsersList      = "users:list"
	PermChangePassword = "user:change_password"
	PermEventsView     = "events:view"
)

// RolePermissions is the default policy. "resource:*" grants every action on resource.
var RolePermissions = map[string][]string{
	"student": {
		PermActivityView,
		PermCourseView,
		PermProgressSave,
		PermDashboardView,
		PermChangePassword,
	},
	"teacher": {
		"activity:*",
		"course:*",
		PermProgressSave,
		PermDashboardView,
		PermChangePassword,
		PermUsersList,
	},
	"admin": {
		"*", // everything
	},
}
