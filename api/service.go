package api

import (
	"fmt"

	"ConstructaSaas/internal/serviceiface"
)

type GatewayService struct {
	config map[string]interface{}
}

func NewGatewayService(cfg map[string]interface{}) serviceiface.Service {
	return &GatewayService{config: cfg}
}

func (s *GatewayService) Name() string {
	return "gateway"
}

func (s *GatewayService) Start() error {
	port := ""
	var targets []string
	if s.config != nil {
		if p, ok := s.config["port"]; ok {
			port = fmt.Sprintf("%v", p)
		}
		if raw, ok := s.config["ledger_targets"].([]interface{}); ok {
			for _, t := range raw {
				if str, ok := t.(string); ok && str != "" {
					targets = append(targets, str)
				}
			}
		}
	}
	go StartGateway(port, targets)
	return nil
}

func (s *GatewayService) Stop() error {
	return nil
}
