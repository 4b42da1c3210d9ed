// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityCron                        // x-cron-secret + x-cron-timestamp required
	SecurityUser                        // Supabase session bearer token required
)

// EndpointSecurityConfig maps route paths to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Operational - Public
	"/healthz": SecurityPublic,
	"/metrics": SecurityPublic,

	// Scheduled jobs - Cron gate
	"/functions/v1/expire-invites":      SecurityCron,
	"/functions/v1/rfp-reminders":       SecurityCron,
	"/functions/v1/expire-negotiations": SecurityCron,
	"/functions/v1/retry-failed-emails": SecurityCron,

	// User actions - Bearer token
	"/functions/v1/dispatch-rfp":         SecurityUser,
	"/functions/v1/update-invite-status": SecurityUser,
	"/functions/v1/request-negotiation":  SecurityUser,
	"/functions/v1/respond-negotiation":  SecurityUser,
	"/functions/v1/cancel-negotiation":   SecurityUser,
}

// GetSecurityLevel returns the security level for a given route path
func GetSecurityLevel(path string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[path]; exists {
		return level
	}
	// Default to user authentication for unknown endpoints
	return SecurityUser
}
