package api

// DecisionResponse is a yes/no answer for composite checks.
type DecisionResponse struct {
	Allowed bool `json:"allowed" description:"Whether the user may act"`
}
