package analysisapi

import (
	"strconv"

	"MarginSight/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AnalysisService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewAnalysisService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &AnalysisService{config: cfg, pool: pool}
}

func (s *AnalysisService) Name() string {
	return "analysis"
}

func (s *AnalysisService) Start() error {
	port := "7143"
	if s.config != nil {
		switch v := s.config["port"].(type) {
		case string:
			if v != "" {
				port = v
			}
		case int:
			if v > 0 {
				port = strconv.Itoa(v)
			}
		case float64:
			if v > 0 {
				port = strconv.Itoa(int(v))
			}
		}
	}
	go StartAnalysisService(s.pool, port)
	return nil
}

func (s *AnalysisService) Stop() error {
	return nil
}
