// Package app wires configuration into a running battle service.
package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/memed/arena/internal/contract"
	"github.com/memed/arena/internal/metrics"
	"github.com/memed/arena/internal/services"
	"github.com/memed/arena/internal/wallet"
	"github.com/memed/arena/pkg/config"
	"github.com/memed/arena/pkg/logger"
	"github.com/memed/arena/pkg/ratelimit"
)

// App holds the long-lived components shared by the entrypoints.
type App struct {
	Config    *config.Config
	Client    *contract.Client
	Service   *services.BattleService
	Refresher *services.Refresher
	Limits    *ratelimit.Manager
	Metrics   *metrics.Metrics
}

// Build dials the chain, resolves the wallet and assembles the service.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	fee, _ := cfg.CreationFee()
	minSupply, _ := cfg.MinSupplyWei()

	limits := ratelimit.NewManager(ratelimit.Limits{
		RPCPerSecond:   cfg.Refresh.RPCRatePerSec,
		UploadsPerMin:  cfg.Server.UploadsPerMin,
		CommentsPerMin: cfg.Server.CommentsPerMin,
	})

	signer, source, err := wallet.Load(cfg.Wallet)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	opts := contract.Options{
		BattleAddress:  common.HexToAddress(cfg.Chain.BattleAddress),
		FactoryAddress: common.HexToAddress(cfg.Chain.FactoryAddress),
		Signer:         signer,
	}
	if l := limits.Get(ratelimit.RPCRead); l != nil {
		opts.Limiter = l
	}
	if cfg.Chain.ChainID > 0 {
		opts.ChainID = big.NewInt(cfg.Chain.ChainID)
	}
	client, err := contract.Dial(ctx, cfg.Chain.RPCURL, opts)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	svc := services.NewBattleService(client, client, services.Options{
		CacheTTL:         cfg.Cache.TTL,
		CreationFee:      fee,
		MinSupply:        minSupply,
		LeaderboardLimit: cfg.Battle.LeaderboardLimit,
		Metrics:          m,
	})
	refresher, err := services.NewRefresher(svc, cfg.Refresh.Policy, cfg.Refresh.Interval)
	if err != nil {
		svc.Close()
		client.Close()
		return nil, err
	}

	fields := logrus.Fields{
		"rpc":    cfg.Chain.RPCURL,
		"battle": cfg.Chain.BattleAddress,
		"wallet": string(source),
	}
	if addr, ok := client.Account(); ok {
		fields["account"] = addr.Hex()
	}
	logger.WithFields(fields).Info("battle service ready")

	return &App{
		Config:    cfg,
		Client:    client,
		Service:   svc,
		Refresher: refresher,
		Limits:    limits,
		Metrics:   m,
	}, nil
}

// Close releases the service and the RPC connection.
func (a *App) Close() {
	a.Service.Close()
	a.Client.Close()
}
