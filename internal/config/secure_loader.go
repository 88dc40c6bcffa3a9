package config

import (
	"fmt"
	"strings"

	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

// CredentialPrefix marks a configured secret as a reference into the credential store.
const CredentialPrefix = "@credential:"

// CredentialStore is the read side of security.CredentialManager.
type CredentialStore interface {
	Get(name string) (string, error)
}

// WarehouseCredentialName is the store key used when no explicit reference is configured.
func WarehouseCredentialName(w models.Warehouse) string {
	return fmt.Sprintf("warehouse-%s-%s", w.Driver, w.Username)
}

// ResolveWarehousePassword fills cfg.Warehouse.Password. A literal value (from
// the file or TICKETSTAR_WAREHOUSE_PASSWORD) wins; an "@credential:name"
// reference or an empty value is looked up in the store.
func ResolveWarehousePassword(cfg *models.Config, store CredentialStore) error {
	w := &cfg.Warehouse
	if w.Driver == DriverPostgres {
		return nil // credentials travel in the DSN
	}

	name := ""
	switch {
	case strings.HasPrefix(w.Password, CredentialPrefix):
		name = strings.TrimPrefix(w.Password, CredentialPrefix)
	case w.Password == "":
		name = WarehouseCredentialName(*w)
	default:
		return nil
	}

	if store == nil {
		return errors.ConfigError("warehouse password is not configured", "warehouse.password")
	}

	password, err := store.Get(name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigMissing, "failed to retrieve warehouse password").
			WithContext("credential", name).
			WithSuggestions(
				"Set TICKETSTAR_WAREHOUSE_PASSWORD",
				"Run 'ticketstar init' to store the password",
			)
	}
	w.Password = password
	return nil
}
