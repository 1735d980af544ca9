package db

import (
	"context"
	"fmt"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"
	"go.uber.org/zap"

	"github.com/TFMV/hismetrics/schema"
	"github.com/TFMV/hismetrics/types"
)

type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

type SurrealDB struct {
	db     *surrealdb.DB
	config Config
	logger *zap.Logger
}

func NewSurrealDB(config Config, logger *zap.Logger) (*SurrealDB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := surrealdb.New(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SurrealDB{
		db:     db,
		config: config,
		logger: logger,
	}, nil
}

func (s *SurrealDB) Initialize(ctx context.Context) error {
	if err := s.db.Use(s.config.Namespace, s.config.Database); err != nil {
		return fmt.Errorf("failed to set namespace/database: %w", err)
	}

	authData := &surrealdb.Auth{
		Username: s.config.Username,
		Password: s.config.Password,
	}
	token, err := s.db.SignIn(authData)
	if err != nil {
		return fmt.Errorf("failed to sign in: %w", err)
	}

	if err := s.db.Authenticate(token); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	if err := schema.InitializeSchema(s.db); err != nil {
		return err
	}
	s.logger.Debug("database initialized",
		zap.String("namespace", s.config.Namespace),
		zap.String("database", s.config.Database))
	return nil
}

func (s *SurrealDB) StoreAnalysis(ctx context.Context, report types.AnalysisReport) error {
	rows := Rows(report)

	if _, err := surrealdb.Create[RunRow](s.db, models.Table("runs"), rows.Run); err != nil {
		return fmt.Errorf("error storing run %s: %v", report.RunID, err)
	}

	for _, fn := range rows.Functions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := surrealdb.Create[FunctionRow](s.db, models.Table("functions"), fn); err != nil {
			return fmt.Errorf("error storing function %s: %v", fn.Name, err)
		}
	}

	for _, res := range rows.Results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := surrealdb.Create[MetricRow](s.db, models.Table("metric_results"), res); err != nil {
			return fmt.Errorf("error storing %s of %s: %v", res.Metric, res.Function, err)
		}
	}

	for _, c := range rows.Conditions {
		if _, err := surrealdb.Create[ConditionRow](s.db, models.Table("conditions"), c); err != nil {
			return fmt.Errorf("error storing condition of %s: %v", c.Function, err)
		}
	}

	s.logger.Info("stored analysis",
		zap.String("run_id", report.RunID),
		zap.Int("functions", len(rows.Functions)),
		zap.Int("results", len(rows.Results)))
	return nil
}
