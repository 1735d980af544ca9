package schema

import (
	"fmt"

	surrealdb "github.com/surrealdb/surrealdb.go"
)

// Definitions returns the table definitions, one statement group per table
func Definitions() []string {
	return []string{
		// One row per analysis run
		`DEFINE TABLE runs SCHEMAFULL;
		 DEFINE FIELD run_id ON runs TYPE string;
		 DEFINE FIELD files ON runs TYPE array<string>;
		 DEFINE FIELD violations ON runs TYPE object;
		 DEFINE FIELD suppressed ON runs TYPE array<string>;
		 DEFINE FIELD errors ON runs TYPE array<string>;
		 DEFINE FIELD created_at ON runs TYPE datetime DEFAULT time::now();
		 DEFINE INDEX run_id ON runs FIELDS run_id UNIQUE;`,

		// Functions with their computed metric values
		`DEFINE TABLE functions SCHEMAFULL;
		 DEFINE FIELD run_id ON functions TYPE string;
		 DEFINE FIELD name ON functions TYPE string;
		 DEFINE FIELD file ON functions TYPE string;
		 DEFINE FIELD line ON functions TYPE int;
		 DEFINE FIELD params ON functions TYPE array<string>;
		 DEFINE FIELD callees ON functions TYPE array<string>;
		 DEFINE FIELD metrics ON functions FLEXIBLE TYPE object;
		 DEFINE FIELD created_at ON functions TYPE datetime DEFAULT time::now();
		 DEFINE INDEX func_run ON functions FIELDS run_id;
		 DEFINE INDEX func_name ON functions FIELDS name;
		 DEFINE INDEX func_file ON functions FIELDS file;`,

		// One row per (function, metric) evaluation
		`DEFINE TABLE metric_results SCHEMAFULL;
		 DEFINE FIELD run_id ON metric_results TYPE string;
		 DEFINE FIELD function ON metric_results TYPE string;
		 DEFINE FIELD file ON metric_results TYPE string;
		 DEFINE FIELD line ON metric_results TYPE int;
		 DEFINE FIELD metric ON metric_results TYPE string;
		 DEFINE FIELD value ON metric_results TYPE int;
		 DEFINE FIELD min ON metric_results TYPE int;
		 DEFINE FIELD max ON metric_results TYPE int;
		 DEFINE FIELD verdict ON metric_results TYPE string ASSERT $value IN ["pass", "fail", "error"];
		 DEFINE FIELD error ON metric_results TYPE option<string>;
		 DEFINE FIELD lines ON metric_results TYPE array<int>;
		 DEFINE INDEX result_run ON metric_results FIELDS run_id;
		 DEFINE INDEX result_metric ON metric_results FIELDS metric, verdict;`,

		// Extraction conditions such as missing lambdas
		`DEFINE TABLE conditions SCHEMAFULL;
		 DEFINE FIELD run_id ON conditions TYPE string;
		 DEFINE FIELD kind ON conditions TYPE string;
		 DEFINE FIELD function ON conditions TYPE string;
		 DEFINE FIELD file ON conditions TYPE string;
		 DEFINE FIELD line ON conditions TYPE int;
		 DEFINE FIELD message ON conditions TYPE string;
		 DEFINE INDEX condition_run ON conditions FIELDS run_id;`,
	}
}

// InitializeSchema sets up the tables and indexes for metric reports
func InitializeSchema(db *surrealdb.DB) error {
	for _, schema := range Definitions() {
		if _, err := surrealdb.Query[any](db, schema, map[string]interface{}{}); err != nil {
			return fmt.Errorf("schema initialization error: %w", err)
		}
	}
	return nil
}
