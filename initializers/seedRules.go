package initializers

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	model "github.com/mkestrel/LedgerGuard/models"
)

// SeedRules loads the declarative rule table from db/rules.json into the
// matching_rules table. Seeding runs only against an empty table: after
// first startup the rules are admin-owned and must not be overwritten.
func SeedRules() error {
	var count int64
	if err := DB.Model(&model.MatchingRule{}).Count(&count).Error; err != nil {
		return fmt.Errorf("error counting matching rules: %w", err)
	}
	if count > 0 {
		log.Printf("Rule table already seeded (%d rules), skipping", count)
		return nil
	}

	path := os.Getenv("RULES_FILE")
	if path == "" {
		path = "db/rules.json"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading rules file %s: %w", path, err)
	}

	var rules []model.MatchingRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return fmt.Errorf("malformed rules file %s: %w", path, err)
	}
	if len(rules) == 0 {
		return fmt.Errorf("rules file %s contains no rules", path)
	}

	for i := range rules {
		if rules[i].ID == "" {
			return fmt.Errorf("rule at index %d in %s has no id", i, path)
		}
	}

	if err := DB.Create(&rules).Error; err != nil {
		return fmt.Errorf("error seeding matching rules: %w", err)
	}

	log.Printf("Seeded %d matching rules from %s", len(rules), path)
	return nil
}
