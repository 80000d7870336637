package model

// Credential is one broker login the engine trades on behalf of.
// Active is the only mutable lifecycle flag; a deactivated credential stays
// deactivated until the next external reset.
type Credential struct {
	ID          string
	AccessToken string
	APIKey      string
	Balance     float64
	Active      bool
}
