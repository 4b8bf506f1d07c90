// Package frontend publishes the deployed service address and interface
// description to files consumed by the frontend build. Purely
// operational: nothing here affects market semantics.
package frontend

import (
	"encoding/json"
	"fmt"
	"os"

	"gamekey-market-api/internal/config"
)

const serviceName = "GameKeyMarket"

// Operation describes one public API operation.
type Operation struct {
	Name   string `json:"name"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

// InterfaceDescription is the static description of the public surface,
// the service's equivalent of a published ABI.
var InterfaceDescription = []Operation{
	{Name: "listGameKey", Method: "POST", Path: "/api/v1/listings"},
	{Name: "updateListing", Method: "PUT", Path: "/api/v1/listings/{game_id}"},
	{Name: "cancelListing", Method: "DELETE", Path: "/api/v1/listings/{game_id}"},
	{Name: "getListings", Method: "GET", Path: "/api/v1/listings"},
	{Name: "buyGameKey", Method: "POST", Path: "/api/v1/purchases"},
	{Name: "getGamesBought", Method: "GET", Path: "/api/v1/purchases"},
	{Name: "getBalance", Method: "GET", Path: "/api/v1/balance"},
	{Name: "withdraw", Method: "POST", Path: "/api/v1/withdrawals"},
}

// Export writes the service address into the contracts file (merged per
// environment, appended only if absent) and the interface description
// into the ABI file. No-op unless UPDATE_FRONTEND is set.
func Export(cfg config.FrontendConfig, environment, address string) error {
	if !cfg.Update {
		return nil
	}

	if cfg.ContractsFile != "" {
		if err := updateAddresses(cfg.ContractsFile, environment, address); err != nil {
			return fmt.Errorf("failed to update contracts file: %w", err)
		}
	}
	if cfg.AbiFile != "" {
		if err := writeInterface(cfg.AbiFile); err != nil {
			return fmt.Errorf("failed to write interface file: %w", err)
		}
	}
	return nil
}

func updateAddresses(path, environment, address string) error {
	addresses := make(map[string]map[string][]string)

	raw, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(raw, &addresses); err != nil {
			return fmt.Errorf("invalid contents in %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	env, ok := addresses[environment]
	if !ok {
		env = make(map[string][]string)
		addresses[environment] = env
	}

	for _, existing := range env[serviceName] {
		if existing == address {
			return nil
		}
	}
	env[serviceName] = append(env[serviceName], address)

	data, err := json.Marshal(addresses)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeInterface(path string) error {
	data, err := json.Marshal(InterfaceDescription)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
