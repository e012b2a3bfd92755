package session

import (
	"github.com/goliatone/go-router"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns helper functions for session-aware templates.
//
// In templates:
//
//	{% if current_user %}
//	{% if is_volunteer(current_user) %}
//	{% if is_organization(current_user) %}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"is_volunteer":     isVolunteer,
		"is_organization":  isOrganization,
	}
}

// TemplateHelpersWithUser returns the helpers with a specific user injected
// as current_user, for hosts that build global view data once per request.
func TemplateHelpersWithUser(user *User) map[string]any {
	helpers := TemplateHelpers()
	helpers[TemplateUserKey] = user
	return helpers
}

// MergeTemplateData overlays session data from the router context onto the
// request-specific view context: the guard's current user wins over any
// stale value the caller passed.
func MergeTemplateData(ctx router.Context, data router.ViewContext) router.ViewContext {
	if data == nil {
		data = router.ViewContext{}
	}

	if user, ok := FromRouterContext(ctx, TemplateUserKey); ok {
		data[TemplateUserKey] = user
	}

	return data
}

func isAuthenticated(user any) bool {
	u, ok := user.(*User)
	return ok && u != nil
}

func isVolunteer(user any) bool {
	u, ok := user.(*User)
	return ok && u != nil && u.IsVolunteer
}

func isOrganization(user any) bool {
	u, ok := user.(*User)
	return ok && u != nil && u.IsOrganization
}
