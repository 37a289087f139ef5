package shared

// Core permission names used by the HTTP surface.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermGroupsView = "groups.view"
	PermGroupsEdit = "groups.edit"

	PermPermissionsView = "permissions.view"
	PermPermissionsEdit = "permissions.edit"

	PermTweetsWrite = "tweets.write"
)

// CoreScopes lists every permission the core surface checks.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermGroupsView,
		PermGroupsEdit,
		PermPermissionsView,
		PermPermissionsEdit,
		PermTweetsWrite,
	}
}
