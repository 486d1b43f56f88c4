package config

import (
	"os"

	"carnet/pkg/validate"
)

// Server captures process level configuration.
type Server struct {
	Addr string
	// DatabaseURL selects the postgres store; empty means in-memory.
	DatabaseURL string
	// ExportBOM prefixes CSV exports with a UTF-8 byte-order mark so
	// spreadsheet tools detect the encoding.
	ExportBOM bool
	// PhonePolicy selects the phone numbering rule.
	PhonePolicy validate.PhonePolicy
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CARNET_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	exportBOM := os.Getenv("CSV_EXPORT_BOM") != "false"

	policy, err := validate.ParsePhonePolicy(os.Getenv("PHONE_POLICY"))
	if err != nil {
		policy = validate.PhoneInternational
	}

	return Server{
		Addr:        addr,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ExportBOM:   exportBOM,
		PhonePolicy: policy,
	}
}
