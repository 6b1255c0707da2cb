package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/guregu/null/v5"

	"github.com/pgtelemetry/collector/explain"
	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

// MaxPlansPerCycle - Upper bound of EXPLAINs issued per instance and cycle
const MaxPlansPerCycle = 10

// PlanCollector runs EXPLAIN for currently running queries and feeds the
// resulting plan fingerprints to the instance's regression cache.
type PlanCollector struct {
	db                *sql.DB
	logger            *util.Logger
	cache             *state.PlanRegressionCache
	normalizer        *util.NormalizedQueryCache
	timeout           time.Duration
	connectedDatabase string
}

func NewPlanCollector(db *sql.DB, logger *util.Logger, cache *state.PlanRegressionCache, normalizer *util.NormalizedQueryCache, timeout time.Duration, connectedDatabase string) *PlanCollector {
	return &PlanCollector{
		db:                db,
		logger:            logger,
		cache:             cache,
		normalizer:        normalizer,
		timeout:           timeout,
		connectedDatabase: connectedDatabase,
	}
}

// PlanIdentity - Cache key for a query: its database plus query ID, or the
// normalized text when no query ID is known
func PlanIdentity(databaseName string, queryID null.Int, queryText string, normalizer *util.NormalizedQueryCache) string {
	if queryID.Valid {
		return databaseName + "/" + strconv.FormatInt(queryID.Int64, 10)
	}
	return databaseName + "/" + normalizer.Normalize(queryText)
}

// Collect explains up to MaxPlansPerCycle distinct queries. Each EXPLAIN runs
// in its own read-only transaction with a statement timeout. Failures are
// returned as warnings, they never fail the cycle.
func (c *PlanCollector) Collect(ctx context.Context, caps state.Capabilities, queries []state.IndividualQuery, collectedAt time.Time) (plans []state.ExecutionPlan, changes []state.PlanChangeEvent, warnings []string) {
	seen := make(map[string]bool)

	for _, query := range queries {
		if len(seen) >= MaxPlansPerCycle {
			break
		}
		if ctx.Err() != nil {
			warnings = append(warnings, fmt.Sprintf("plan collection cancelled: %s", ctx.Err()))
			return
		}
		if !query.QueryText.Valid || query.QueryText.String == "" {
			continue
		}

		databaseName := query.DatabaseName.String
		identity := PlanIdentity(databaseName, query.QueryID, query.QueryText.String, c.normalizer)
		if seen[identity] {
			continue
		}
		seen[identity] = true

		if databaseName != c.connectedDatabase {
			c.logger.PrintVerbose("Skipping plan for query in database %s, connected to %s", databaseName, c.connectedDatabase)
			continue
		}

		explainSQL, err := explainStatement(query.QueryText.String, caps)
		if err != nil {
			c.logger.PrintVerbose("Skipping plan for %s: %s", identity, err)
			warnings = append(warnings, fmt.Sprintf("plan skipped for %s: %s", identity, err))
			continue
		}

		output, err := c.runExplain(ctx, explainSQL)
		if err != nil {
			c.logger.PrintWarning("Failed to collect plan for %s: %s", identity, err)
			warnings = append(warnings, fmt.Sprintf("plan skipped for %s: %s", identity, err))
			continue
		}

		parsed, err := explain.Parse(output)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("plan skipped for %s: %s", identity, err))
			continue
		}

		fingerprint := state.PlanFingerprint{
			Hash:       explain.Fingerprint(parsed.Plan),
			Cost:       parsed.Plan.TotalCost,
			ObservedAt: collectedAt,
		}
		previous, regressed := c.cache.Observe(identity, fingerprint)
		if regressed {
			c.logger.PrintInfo("Plan changed for %s (cost %.2f -> %.2f)", identity, previous.Cost, fingerprint.Cost)
			changes = append(changes, state.PlanChangeEvent{
				QueryIdentity: identity,
				QueryID:       query.QueryID,
				DatabaseName:  query.DatabaseName,
				PreviousHash:  previous.Hash,
				NewHash:       fingerprint.Hash,
				PreviousCost:  previous.Cost,
				NewCost:       fingerprint.Cost,
				DetectedAt:    collectedAt,
			})
		}

		plans = append(plans, state.ExecutionPlan{
			QueryID:             query.QueryID,
			QueryText:           query.QueryText,
			DatabaseName:        query.DatabaseName,
			Plan:                output,
			PlanHash:            null.StringFrom(fingerprint.Hash),
			TotalCost:           null.FloatFrom(fingerprint.Cost),
			PlanningTimeMs:      null.FloatFromPtr(parsed.PlanningTime),
			ExecutionTimeMs:     null.FloatFromPtr(parsed.ExecutionTime),
			CollectionTimestamp: null.StringFrom(collectedAt.UTC().Format(time.RFC3339)),
		})
	}

	return
}

func explainStatement(queryText string, caps state.Capabilities) (string, error) {
	err := explain.IsSafeToExplain(queryText, QueryMarkerSQL)
	if err != nil {
		return "", err
	}

	if explain.HasParameterRefs(queryText) {
		if caps.Version < state.PostgresVersion16 {
			return "", fmt.Errorf("query has bind parameters, generic plans require PostgreSQL %d or newer", state.PostgresVersion16)
		}
		return "EXPLAIN (GENERIC_PLAN, FORMAT JSON) " + queryText, nil
	}

	return "EXPLAIN (FORMAT JSON) " + queryText, nil
}

func (c *PlanCollector) runExplain(ctx context.Context, explainSQL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, classifyError("explain", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, QueryMarkerSQL+fmt.Sprintf("SET LOCAL statement_timeout = %d", c.timeout.Milliseconds()))
	if err != nil {
		return nil, classifyError("explain", err)
	}

	var output string
	err = tx.QueryRowContext(ctx, QueryMarkerSQL+explainSQL).Scan(&output)
	if err != nil {
		return nil, classifyError("explain", err)
	}

	return []byte(output), nil
}
