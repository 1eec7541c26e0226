// internal/audit/derive.go
// Derivation of the api_request action and resource fields from the HTTP
// method and path.
package audit

import "strings"

var resourceBySegment = map[string]string{
	"tenants":    "tenant",
	"users":      "user",
	"snapshots":  "snapshot",
	"backups":    "backup",
	"cluster":    "cluster",
	"operations": "operation",
	"auth":       "auth",
	"policies":   "policy",
}

// ResourceForPath classifies a request path by its first recognized
// segment. Matching is on whole segments, so "/api/v1/users-admin" is
// unknown, not user.
func ResourceForPath(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if r, ok := resourceBySegment[seg]; ok {
			return r
		}
	}
	return "unknown"
}

// ActionForRequest maps an HTTP method to an audit action. Login and
// register posts keep their own names.
func ActionForRequest(method, path string) string {
	switch method {
	case "GET":
		return "read"
	case "POST":
		if hasSegment(path, "login") {
			return "login"
		}
		if hasSegment(path, "register") {
			return "register"
		}
		return "create"
	case "PUT":
		return "update"
	case "PATCH":
		return "modify"
	case "DELETE":
		return "delete"
	}
	return strings.ToLower(method)
}

func hasSegment(path, want string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == want {
			return true
		}
	}
	return false
}
