package model

// Asset is the underlying chosen for the trading day.
type Asset struct {
	ID    string
	Name  string
	Token string
}
