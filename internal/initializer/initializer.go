package initializer

import (
	"time"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/lagrangedao/go-computing-market/conf"
	"github.com/lagrangedao/go-computing-market/internal/gateway"
	"github.com/lagrangedao/go-computing-market/internal/market"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
	"golang.org/x/xerrors"
)

// Node is everything a market process needs once the repo is loaded.
type Node struct {
	Config  *conf.MarketNode
	Store   *store.Store
	Market  *market.Market
	Settler gateway.Settler
}

func (n *Node) Close() error {
	return n.Store.Close()
}

// ProjectInit loads <repo>/config.toml, opens the ledger and instantiates the
// market from the [Market] section the first time the ledger is used.
func ProjectInit(repo string) (*Node, error) {
	if err := conf.InitConfig(repo); err != nil {
		return nil, err
	}
	cfg := conf.GetConfig()

	st, err := store.OpenOrInit(cfg.DB.Path)
	if err != nil {
		return nil, xerrors.Errorf("opening ledger %s: %w", cfg.DB.Path, err)
	}

	m := market.NewMarket(st, gateway.HexAddresses{})
	if err = ensureInitialized(m, cfg, time.Now()); err != nil {
		st.Close()
		return nil, err
	}

	return &Node{
		Config:  cfg,
		Store:   st,
		Market:  m,
		Settler: newSettler(cfg),
	}, nil
}

func ensureInitialized(m *market.Market, cfg *conf.MarketNode, now time.Time) error {
	current, err := m.GetConfig()
	if err == nil {
		if !isSameAddress(current.Admin, cfg.Market.Admin) {
			logs.GetLogger().Warnf("ledger admin %s differs from configured admin %s, keeping the ledger value",
				current.Admin, cfg.Market.Admin)
		}
		return nil
	}
	if !xerrors.Is(err, market.ErrNotInitialized) {
		return err
	}

	resp, err := m.InitMarket(now, models.InitMarketReq{
		Admin:               cfg.Market.Admin,
		CommunityPool:       cfg.Market.CommunityPool,
		CommunityFeePercent: cfg.Market.CommunityFeePercent,
		DefaultJobTimeout:   cfg.Market.DefaultJobTimeout,
		HeartbeatTimeout:    cfg.Market.HeartbeatTimeout,
		Denom:               cfg.Market.Denom,
	})
	if err != nil {
		return xerrors.Errorf("initializing market: %w", err)
	}
	admin, _ := resp.Attribute("admin")
	logs.GetLogger().Infof("market initialized, admin: %s", admin)
	return nil
}

func isSameAddress(a, b string) bool {
	ca, err := gateway.HexAddresses{}.ValidateAddress(a)
	if err != nil {
		return false
	}
	cb, err := gateway.HexAddresses{}.ValidateAddress(b)
	return err == nil && ca == cb
}

func newSettler(cfg *conf.MarketNode) gateway.Settler {
	if cfg.Redis.Url == "" {
		logs.GetLogger().Warn("no redis configured, transfers are only logged")
		return gateway.LogSettler{}
	}
	return gateway.NewCelerySettler(gateway.NewCeleryService(cfg.Redis.Url, cfg.Redis.Password))
}
