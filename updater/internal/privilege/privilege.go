// Package privilege checks that the privileged side runs as LocalSystem or
// an elevated administrator and enables the token privileges needed to
// create processes with another user's primary token.
package privilege

const (
	AssignPrimaryToken = "SeAssignPrimaryTokenPrivilege"
	IncreaseQuota      = "SeIncreaseQuotaPrivilege"
)

// BridgePrivileges are enabled before a user token is turned into a process.
var BridgePrivileges = []string{AssignPrimaryToken, IncreaseQuota}
