package services

import (
	"context"
	"errors"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/repository"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/shopspring/decimal"
)

type CatalogService struct {
	services ServiceStore
	upstream UpstreamClient
	markup   decimal.Decimal
}

// NewCatalogService prices synced services at ceil(upstream cost * markup) credits.
func NewCatalogService(services ServiceStore, upstream UpstreamClient, markup decimal.Decimal) *CatalogService {
	if !markup.IsPositive() {
		markup = decimal.NewFromInt(1)
	}
	return &CatalogService{
		services: services,
		upstream: upstream,
		markup:   markup,
	}
}

// GetAvailableService fails with ErrServiceUnavailable for unknown and disabled services alike.
func (s *CatalogService) GetAvailableService(ctx context.Context, serviceID string) (*model.Service, error) {
	if serviceID == "" {
		return nil, ErrServiceUnavailable
	}
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return nil, ErrServiceUnavailable
		}
		return nil, err
	}
	if !svc.Available || svc.PricePerUse <= 0 {
		return nil, ErrServiceUnavailable
	}
	return svc, nil
}

func (s *CatalogService) UpsertFromUpstream(ctx context.Context, entries []model.CatalogEntry) (int64, error) {
	valid := make([]model.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Code == "" || e.PricePerUse <= 0 || !e.Server.Valid() {
			logger.Warn("skipping catalog entry", "code", e.Code, "server", e.Server, "price", e.PricePerUse)
			continue
		}
		valid = append(valid, e)
	}
	return s.services.UpsertByCode(ctx, valid)
}

// SyncFromUpstream pulls the service list of server and upserts it.
func (s *CatalogService) SyncFromUpstream(ctx context.Context, server model.Server) (int64, error) {
	if s.upstream == nil || !s.upstream.HasServer(server) {
		return 0, ErrInvalidServer
	}
	items, err := s.upstream.ListServices(ctx, server)
	if err != nil {
		return 0, err
	}

	entries := make([]model.CatalogEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, model.CatalogEntry{
			Code:        it.Code,
			Name:        it.Name,
			PricePerUse: s.Price(it.Cost),
			Server:      server,
			Available:   it.Count > 0,
		})
	}

	n, err := s.UpsertFromUpstream(ctx, entries)
	if err != nil {
		return 0, err
	}
	logger.Info("catalog synced", "server", server, "fetched", len(items), "upserted", n)
	return n, nil
}

// Price converts an upstream cost to credits, never below one.
func (s *CatalogService) Price(cost decimal.Decimal) int64 {
	p := cost.Mul(s.markup).Ceil().IntPart()
	if p < 1 {
		return 1
	}
	return p
}

func (s *CatalogService) CreateService(ctx context.Context, svc *model.Service) (*model.Service, error) {
	if svc.Code == "" || svc.Name == "" || svc.PricePerUse <= 0 {
		return nil, ErrInvalidInput
	}
	if svc.AssignedServer == "" {
		svc.AssignedServer = model.ServerOne
	}
	if !svc.AssignedServer.Valid() {
		return nil, ErrInvalidServer
	}
	return s.services.Create(ctx, svc)
}

func (s *CatalogService) UpdateService(ctx context.Context, serviceID string, upd model.ServiceUpdate) (*model.Service, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	return s.services.Update(ctx, serviceID, upd)
}
