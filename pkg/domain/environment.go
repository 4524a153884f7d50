package domain

import "fmt"

// Environment selects the MH deployment the pipeline talks to. The wire code
// ("00" test, "01" production) travels in every document and envelope.
type Environment string

const (
	EnvTest       Environment = "test"
	EnvProduction Environment = "production"
)

// ParseEnvironment validates and returns an Environment.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvTest, EnvProduction:
		return Environment(s), nil
	default:
		return "", fmt.Errorf("unknown MH environment: %q", s)
	}
}

// AmbienteCode returns the wire code the MH expects in documents and envelopes.
func (e Environment) AmbienteCode() string {
	if e == EnvProduction {
		return "01"
	}
	return "00"
}

func (e Environment) String() string { return string(e) }
