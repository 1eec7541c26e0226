// internal/policy/policy.go
// Declarative policy rules: resource-scoped, priority-ordered, with a
// closed condition grammar.
package policy

// Action is a policy verdict kind.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
	ActionWarn  Action = "warn"
)

// Condition is one field comparison. Conditions within a policy are ANDed.
// Value may be a literal or the template form "${user_id}"/"${tenant_id}",
// resolved from the evaluation context at match time.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"` // eq, ne, gt, lt, contains, in
	Value    any    `json:"value"`
}

// Policy is a declarative rule. Bodies are immutable once registered.
type Policy struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Resource    string      `json:"resource"` // tenant, user, operation, auth, ...
	Action      Action      `json:"action"`
	Priority    int         `json:"priority"` // higher evaluated first
	Enabled     bool        `json:"enabled"`
	Conditions  []Condition `json:"conditions"`
}

// Context carries everything the engine may inspect for one admission
// decision. The engine knows nothing about HTTP; the pipeline fills
// Attributes from routing params and body fields before evaluation.
type Context struct {
	Resource   string         `json:"resource"`
	Operation  string         `json:"operation"`
	UserID     string         `json:"user_id"`
	TenantID   string         `json:"tenant_id"`
	Role       string         `json:"role"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Result is the engine's verdict.
type Result struct {
	Allowed  bool   `json:"allowed"`
	Action   Action `json:"action"`
	PolicyID string `json:"policy_id,omitempty"`
	Message  string `json:"message"`
}
