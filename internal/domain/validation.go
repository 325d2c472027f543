package domain

// ValidationResult carries the outcome of a profile validation pass.
// Errors block persistence; warnings are advisory and never do.
type ValidationResult struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// IsValid reports whether the profile may be saved.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}
