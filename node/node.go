package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Thorstarter/thorstarter-terra/core/rawdb"
	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/Thorstarter/thorstarter-terra/host"
	"github.com/Thorstarter/thorstarter-terra/log"
	"github.com/Thorstarter/thorstarter-terra/metrics"
	"github.com/Thorstarter/thorstarter-terra/rpc"
	"github.com/Thorstarter/thorstarter-terra/sale"
	"github.com/Thorstarter/thorstarter-terra/treasury"
)

// shutdownTimeout bounds the graceful stop of each HTTP server.
const shutdownTimeout = 5 * time.Second

// Node is the sale daemon. It owns the store and every subsystem built on
// it.
type Node struct {
	config *Config
	log    *log.Logger

	// Subsystems.
	db      rawdb.KeyValueStore
	oracle  *treasury.StaticOracle
	exec    *host.Executor
	rpc     *rpc.Server
	metrics *metrics.Metrics

	rpcServer     *http.Server
	metricsServer *http.Server
	rpcAddr       net.Addr
	metricsAddr   net.Addr

	mu      sync.Mutex
	running bool
	stopped bool
	stop    chan struct{}
}

// New opens the store and builds the subsystems. On a fresh store it
// instantiates the sale for the configured owner and stocks the token
// reserve. Network services start with Start.
func New(config *Config, logger *log.Logger) (*Node, error) {
	if config == nil {
		c := DefaultConfig()
		config = &c
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	opts, err := config.SaleOptions()
	if err != nil {
		return nil, err
	}
	oracleCfg, err := config.OracleConfig()
	if err != nil {
		return nil, err
	}

	n := &Node{
		config:  config,
		log:     logger.Module("node"),
		metrics: metrics.New(metrics.DefaultConfig()),
		stop:    make(chan struct{}),
	}
	if n.db, err = openDB(config); err != nil {
		return nil, err
	}
	if err := n.build(opts, oracleCfg, logger); err != nil {
		n.db.Close()
		return nil, err
	}
	return n, nil
}

func openDB(config *Config) (rawdb.KeyValueStore, error) {
	if config.DB == DBMemory {
		return rawdb.NewMemoryDB(), nil
	}
	if err := os.MkdirAll(config.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("init datadir: %w", err)
	}
	db, err := rawdb.OpenSQLite(config.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return db, nil
}

func (n *Node) build(opts sale.Options, oracleCfg treasury.StaticOracleConfig, logger *log.Logger) error {
	contract, err := sale.New(opts)
	if err != nil {
		return fmt.Errorf("init contract: %w", err)
	}
	if n.oracle, err = treasury.NewStaticOracle(oracleCfg); err != nil {
		return fmt.Errorf("init tax oracle: %w", err)
	}
	n.exec, err = host.NewExecutor(n.db, contract, host.Config{
		Address:      n.config.SaleAddress,
		Oracle:       n.oracle,
		TaxCollector: n.config.TaxCollector,
		Metrics:      n.metrics,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("init executor: %w", err)
	}
	if err := n.bootstrap(opts.Codec); err != nil {
		n.exec.Close()
		return err
	}
	n.rpc, err = rpc.NewServer(n.exec, n.exec.Feed(), rpc.Config{
		RequireSignatures: n.config.RequireSignatures,
		Codec:             opts.Codec,
		Metrics:           n.metrics,
		Logger:            logger,
	})
	if err != nil {
		n.exec.Close()
		return fmt.Errorf("init rpc: %w", err)
	}
	return nil
}

// bootstrap instantiates the sale and stocks the token reserve once. A
// store that already holds a sale is left alone.
func (n *Node) bootstrap(codec types.AddressCodec) error {
	if n.config.Owner == "" {
		return nil
	}
	ctx := context.Background()
	_, err := n.exec.Query(ctx, &sale.QueryMsg{State: &struct{}{}})
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, sale.ErrNotInstantiated):
		return fmt.Errorf("read sale state: %w", err)
	}
	owner, err := codec.Canonicalize(n.config.Owner)
	if err != nil {
		return err
	}
	if _, err := n.exec.Instantiate(ctx, owner, sale.InstantiateMsg{}); err != nil {
		return fmt.Errorf("instantiate sale: %w", err)
	}
	reserve, err := types.ParseAmount(n.config.TokenReserve)
	if err != nil || reserve.IsZero() {
		return err
	}
	token, err := codec.Canonicalize(n.config.Token)
	if err != nil {
		return err
	}
	return n.exec.Fund(n.exec.Address(), nil, token, reserve)
}

// Start opens the listeners and serves JSON-RPC and metrics.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running || n.stopped {
		return errors.New("node already running or stopped")
	}

	ln, err := net.Listen("tcp", n.config.RPCAddr)
	if err != nil {
		return fmt.Errorf("listen rpc: %w", err)
	}
	n.rpcAddr = ln.Addr()
	n.rpcServer = &http.Server{Handler: n.rpc.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go n.serve("rpc", n.rpcServer, ln)

	if n.config.MetricsAddr != "" {
		mln, err := net.Listen("tcp", n.config.MetricsAddr)
		if err != nil {
			n.rpcServer.Close()
			return fmt.Errorf("listen metrics: %w", err)
		}
		n.metricsAddr = mln.Addr()
		mux := http.NewServeMux()
		mux.Handle(n.metrics.Path(), n.metrics.Handler())
		n.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go n.serve("metrics", n.metricsServer, mln)
	}

	n.running = true
	n.log.Info("node started", "rpc", n.rpcAddr.String(), "sale", n.exec.Address(), "db", n.config.DB)
	return nil
}

func (n *Node) serve(name string, srv *http.Server, ln net.Listener) {
	n.log.Info("server listening", "server", name, "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		n.log.Error("server failed", "server", name, "err", err)
	}
}

// Stop shuts the servers down, then the executor, then the store. A node
// that was never started only releases its store.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stopped {
		return nil
	}
	n.log.Info("stopping node")

	var errs []error
	if n.running {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown.
		n.rpc.Close()
		if err := n.rpcServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("rpc server: %w", err))
		}
		if n.metricsServer != nil {
			if err := n.metricsServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server: %w", err))
			}
		}
	}
	n.exec.Close()
	if err := n.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	n.running = false
	n.stopped = true
	close(n.stop)
	n.log.Info("node stopped")
	return errors.Join(errs...)
}

// Wait blocks until the node is stopped.
func (n *Node) Wait() {
	<-n.stop
}

// Executor returns the sale executor.
func (n *Node) Executor() *host.Executor {
	return n.exec
}

// Oracle returns the tax schedule, which the operator may change at
// runtime.
func (n *Node) Oracle() *treasury.StaticOracle {
	return n.oracle
}

// Config returns the node configuration.
func (n *Node) Config() *Config {
	return n.config
}

// RPCAddr returns the bound JSON-RPC address once started.
func (n *Node) RPCAddr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.rpcAddr == nil {
		return ""
	}
	return n.rpcAddr.String()
}

// MetricsAddr returns the bound metrics address, or "" when disabled.
func (n *Node) MetricsAddr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.metricsAddr == nil {
		return ""
	}
	return n.metricsAddr.String()
}

// Running reports whether the node is currently running.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}
