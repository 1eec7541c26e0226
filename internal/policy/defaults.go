// internal/policy/defaults.go
package policy

// Defaults are the policies seeded at startup.
func Defaults() []*Policy {
	return []*Policy{
		{
			ID:          "prevent-default-tenant-deletion",
			Name:        "Prevent Default Tenant Deletion",
			Description: "Prevents deletion of the default tenant",
			Resource:    "tenant",
			Action:      ActionDeny,
			Priority:    100,
			Enabled:     true,
			Conditions: []Condition{
				{Field: "tenant_id", Operator: "eq", Value: "default"},
				{Field: "operation", Operator: "eq", Value: "delete"},
			},
		},
		{
			ID:          "prevent-self-deletion",
			Name:        "Prevent Self Deletion",
			Description: "Users cannot delete themselves",
			Resource:    "user",
			Action:      ActionDeny,
			Priority:    95,
			Enabled:     true,
			Conditions: []Condition{
				{Field: "operation", Operator: "eq", Value: "delete"},
				{Field: "target_user_id", Operator: "eq", Value: "${user_id}"},
			},
		},
		{
			ID:          "require-admin-tenant-create",
			Name:        "Require Admin for Tenant Creation",
			Description: "Only admins can create new tenants",
			Resource:    "tenant",
			Action:      ActionDeny,
			Priority:    90,
			Enabled:     true,
			Conditions: []Condition{
				{Field: "operation", Operator: "eq", Value: "create"},
				{Field: "role", Operator: "ne", Value: "Admin"},
			},
		},
		{
			ID:          "rate-limit-expensive-ops",
			Name:        "Rate Limit Expensive Operations",
			Description: "Limit snapshot and backup operations",
			Resource:    "operation",
			Action:      ActionDeny,
			Priority:    80,
			Enabled:     true,
			Conditions: []Condition{
				{Field: "operation_type", Operator: "in", Value: []string{"snapshot", "backup", "restore"}},
				{Field: "recent_operations", Operator: "gt", Value: 5},
			},
		},
		{
			ID:          "warn-large-operations",
			Name:        "Warn on Large Operations",
			Description: "Warn when operations affect more than 10000 records",
			Resource:    "operation",
			Action:      ActionWarn,
			Priority:    50,
			Enabled:     true,
			Conditions: []Condition{
				{Field: "record_count", Operator: "gt", Value: 10000},
			},
		},
	}
}

// Seed registers the default policies into store.
func Seed(store Store) error {
	for _, p := range Defaults() {
		if err := store.Register(p); err != nil {
			return err
		}
	}
	return nil
}
