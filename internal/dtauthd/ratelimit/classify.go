package ratelimit

import (
	"net/http"
	"strings"
)

// rule matches a request against one endpoint class. Rules are evaluated in
// order; the first match wins.
type rule struct {
	class Class
	match func(method, path string) bool
}

// classificationRules is the fixed, ordered endpoint classification table.
// More specific rules come first: the device-confirm rule must precede the
// device-init rule because both share the /auth/device prefix.
var classificationRules = []rule{
	{
		class: ClassBatchWrite,
		match: func(method, path string) bool {
			return hasAPIPrefix(path, "/activity") && strings.HasSuffix(path, "/batch")
		},
	},
	{
		class: ClassSingleWrite,
		match: func(method, path string) bool {
			return hasAPIPrefix(path, "/activity") && method == http.MethodPost
		},
	},
	{
		class: ClassRead,
		match: func(method, path string) bool {
			return hasAPIPrefix(path, "/activity") && method == http.MethodGet
		},
	},
	{
		class: ClassProjectRead,
		match: func(method, path string) bool {
			return hasAPIPrefix(path, "/projects")
		},
	},
	{
		class: ClassOverviewRead,
		match: func(method, path string) bool {
			return hasAPIPrefix(path, "/overview")
		},
	},
	{
		class: ClassDeviceConfirm,
		match: func(method, path string) bool {
			return hasAPIPrefix(path, "/auth/device/confirm")
		},
	},
	{
		class: ClassDeviceInit,
		match: func(method, path string) bool {
			return hasAPIPrefix(path, "/auth/device")
		},
	},
}

// hasAPIPrefix reports whether path starts with the given suffix under either
// the versioned or unversioned API root.
func hasAPIPrefix(path, suffix string) bool {
	return strings.HasPrefix(path, "/api/v1"+suffix) ||
		strings.HasPrefix(path, "/api"+suffix)
}

// Classify maps a request method and path onto an endpoint class. Unmatched
// requests fall into ClassDefault.
func Classify(method, path string) Class {
	for _, r := range classificationRules {
		if r.match(method, path) {
			return r.class
		}
	}
	return ClassDefault
}
