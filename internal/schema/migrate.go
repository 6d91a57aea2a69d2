package schema

import "fmt"

// Migration renames keys of one earlier contract version to the keys of the
// version that followed it.
type Migration struct {
	From    string
	To      string
	Renames map[string]string
}

// migrations is ordered oldest first. Each entry upgrades one version step.
var migrations = []Migration{
	{
		From: "v0",
		To:   "v1",
		Renames: map[string]string{
			"clinic":       "clinic_name",
			"veterinarian": "vet_name",
			"pet_name":     "patient_name",
			"chip_id":      "microchip_id",
			"owner":        "owner_name",
			"phone":        "owner_phone",
			"date":         "document_date",
			"visit_reason": "reason_for_visit",
			"treatment":    "treatment_plan",
			"vaccines":     "vaccinations",
			"lab_results":  "lab_result",
			"diagnostics":  "diagnosis",
		},
	},
}

// MigrateKey maps key from payload version from to the contract's version.
// A key the contract does not define after migration yields ErrUnknownKey.
func (c *Contract) MigrateKey(from, key string) (string, error) {
	version := from
	for version != c.Version {
		m, ok := migrationFrom(version)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownVersion, from)
		}
		if renamed, ok := m.Renames[key]; ok {
			key = renamed
		}
		version = m.To
	}
	if !c.Has(key) {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return key, nil
}

func migrationFrom(version string) (Migration, bool) {
	for _, m := range migrations {
		if m.From == version {
			return m, true
		}
	}
	return Migration{}, false
}
