package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	memoryadapter "github.com/atvirokodosprendimai/agentledger/internal/adapters/db/memory"
	sqliteadapter "github.com/atvirokodosprendimai/agentledger/internal/adapters/db/sqlite"
	httpadapter "github.com/atvirokodosprendimai/agentledger/internal/adapters/http"
	rpcadapter "github.com/atvirokodosprendimai/agentledger/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/agentledger/internal/application"
	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v3"
)

const memoryDBPath = ":memory:"

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "agentledger",
		Usage: "Agent identity, reputation and treasury ledger server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			configCommand(),
			agentsCommand(),
			feedbackCommand(),
			treasuryCommand(),
			eventsCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

type serverOptions struct {
	addr            string
	rpcSocket       string
	dbPath          string
	gatewayKey      string
	admin           string
	operators       []string
	followsIdentity bool
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP and JSON-RPC servers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address", Sources: cli.EnvVars("AGENTLEDGER_ADDR")},
			&cli.StringFlag{Name: "rpc-socket", Value: defaultSocket, Usage: "JSON-RPC unix socket path", Sources: cli.EnvVars("AGENTLEDGER_RPC_SOCKET")},
			&cli.StringFlag{Name: "db-path", Value: "agentledger.db", Usage: "SQLite database path, or :memory: for a volatile store", Sources: cli.EnvVars("AGENTLEDGER_DB_PATH")},
			&cli.StringFlag{Name: "gateway-key", Usage: "shared key the gateway must present; empty disables the check", Sources: cli.EnvVars("AGENTLEDGER_GATEWAY_KEY")},
			&cli.StringFlag{Name: "admin", Usage: "ledger admin address allowed to manage operators", Sources: cli.EnvVars("AGENTLEDGER_ADMIN")},
			&cli.StringSliceFlag{Name: "operator", Usage: "treasury operator address granted at startup (repeatable)", Sources: cli.EnvVars("AGENTLEDGER_OPERATORS")},
			&cli.BoolFlag{Name: "treasury-follows-identity", Usage: "re-point an agent's treasury account when its identity changes owner", Sources: cli.EnvVars("AGENTLEDGER_TREASURY_FOLLOWS_IDENTITY")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServer(ctx, serverOptions{
				addr:            c.String("addr"),
				rpcSocket:       c.String("rpc-socket"),
				dbPath:          c.String("db-path"),
				gatewayKey:      c.String("gateway-key"),
				admin:           c.String("admin"),
				operators:       c.StringSlice("operator"),
				followsIdentity: c.Bool("treasury-follows-identity"),
			})
		},
	}
}

func ledgerConfig(opts serverOptions) (application.Config, error) {
	cfg := application.Config{GatewayKey: opts.gatewayKey, OwnershipPolicy: domain.OwnershipDecoupled}
	if opts.followsIdentity {
		cfg.OwnershipPolicy = domain.OwnershipFollowIdentity
	}
	if raw := strings.TrimSpace(opts.admin); raw != "" {
		addr, err := parseAddress("admin", raw)
		if err != nil {
			return cfg, err
		}
		cfg.Admin = addr
	}
	for _, raw := range opts.operators {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		addr, err := parseAddress("operator", raw)
		if err != nil {
			return cfg, err
		}
		cfg.Operators = append(cfg.Operators, addr)
	}
	return cfg, nil
}

func openStore(ctx context.Context, dbPath string) (domain.LedgerStore, error) {
	if dbPath == memoryDBPath {
		log.Printf("using in-memory ledger store; state is lost on exit")
		return memoryadapter.New(), nil
	}
	db, err := sqliteadapter.Open(dbPath)
	if err != nil {
		return nil, err
	}
	version, err := sqliteadapter.RunMigrations(ctx, db)
	if err != nil {
		return nil, err
	}
	log.Printf("sqlite store %s at schema version %d", dbPath, version)
	return sqliteadapter.NewLedgerStore(db), nil
}

func runServer(ctx context.Context, opts serverOptions) error {
	cfg, err := ledgerConfig(opts)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, opts.dbPath)
	if err != nil {
		return err
	}

	ledger, err := application.NewLedger(store, cfg)
	if err != nil {
		return err
	}
	if err := ledger.Bootstrap(ctx); err != nil {
		return err
	}
	if cfg.GatewayKey == "" {
		log.Printf("gateway key not set; adapters accept unauthenticated calls")
	}
	log.Printf("treasury ownership policy: %s", ledger.OwnershipPolicy())

	router := httpadapter.NewRouter(ledger)
	srv := &http.Server{Addr: opts.addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(opts.rpcSocket, ledger)
	if err != nil {
		return err
	}

	defer func() {
		_ = rpcSrv.Close()
	}()
	log.Printf("json-rpc listening on unix://%s", opts.rpcSocket)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func parseAddress(name, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: %q is not a hex address", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}
}

// clientAction loads the client config, runs call and renders its result
// either as JSON or through render.
func clientAction[T any](call func(ctx context.Context, c *cli.Command, cfg cliConfig, out *T) error, render func(T)) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		var out T
		if err := call(ctx, c, cfg, &out); err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(out)
		}
		render(out)
		return nil
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Client configuration",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Store transport, gateway key and caller address",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Usage: "uds or http"},
					&cli.StringFlag{Name: "server", Usage: "HTTP server URL"},
					&cli.StringFlag{Name: "socket", Usage: "JSON-RPC unix socket path"},
					&cli.StringFlag{Name: "gateway-key", Usage: "shared gateway key"},
					&cli.StringFlag{Name: "caller", Usage: "address calls are made as"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if c.IsSet("transport") {
						t := c.String("transport")
						if t != "uds" && t != "http" {
							return fmt.Errorf("transport must be uds or http, got %q", t)
						}
						cfg.Transport = t
					}
					if c.IsSet("server") {
						cfg.Server = c.String("server")
					}
					if c.IsSet("socket") {
						cfg.Socket = c.String("socket")
					}
					if c.IsSet("gateway-key") {
						cfg.GatewayKey = c.String("gateway-key")
					}
					if c.IsSet("caller") {
						addr, err := parseAddress("caller", c.String("caller"))
						if err != nil {
							return err
						}
						cfg.Caller = addr.Hex()
					}
					if err := saveConfig(cfg); err != nil {
						return err
					}
					printKV([][2]string{
						{"transport", cfg.Transport},
						{"server", cfg.Server},
						{"socket", cfg.Socket},
						{"caller", cfg.Caller},
					})
					return nil
				},
			},
		},
	}
}

func agentsCommand() *cli.Command {
	return &cli.Command{
		Name:  "agents",
		Usage: "Identity registry commands",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Register an agent owned by the configured caller",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "did", Required: true},
					&cli.StringFlag{Name: "role", Required: true},
					&cli.StringFlag{Name: "public-key", Required: true, Usage: "0x-prefixed hex"},
					jsonFlag(),
				},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.AgentIdentity) error {
					return doAgentRegister(ctx, cfg, c.String("did"), c.String("role"), c.String("public-key"), out)
				}, printAgent),
			},
			{
				Name:  "show",
				Usage: "Show an agent identity",
				Flags: []cli.Flag{&cli.Uint64Flag{Name: "id", Required: true}, jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.AgentIdentity) error {
					return doAgentGet(ctx, cfg, c.Uint64("id"), out)
				}, printAgent),
			},
			{
				Name:  "lookup",
				Usage: "Resolve a DID to an agent id",
				Flags: []cli.Flag{&cli.StringFlag{Name: "did", Required: true}, jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *lookupResult) error {
					return doAgentLookup(ctx, cfg, c.String("did"), out)
				}, func(out lookupResult) {
					printKV([][2]string{{"id", formatUint(out.ID)}, {"did", out.DID}})
				}),
			},
			{
				Name:  "registered",
				Usage: "Check whether a DID has been registered",
				Flags: []cli.Flag{&cli.StringFlag{Name: "did", Required: true}, jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *registeredResult) error {
					return doAgentRegistered(ctx, cfg, c.String("did"), out)
				}, func(out registeredResult) {
					printKV([][2]string{{"did", out.DID}, {"registered", strconv.FormatBool(out.Registered)}})
				}),
			},
			{
				Name:  "deactivate",
				Usage: "Deactivate an agent",
				Flags: []cli.Flag{&cli.Uint64Flag{Name: "id", Required: true}, jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.AgentIdentity) error {
					return doAgentSetActive(ctx, cfg, c.Uint64("id"), false, out)
				}, printAgent),
			},
			{
				Name:  "reactivate",
				Usage: "Reactivate an agent",
				Flags: []cli.Flag{&cli.Uint64Flag{Name: "id", Required: true}, jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.AgentIdentity) error {
					return doAgentSetActive(ctx, cfg, c.Uint64("id"), true, out)
				}, printAgent),
			},
			{
				Name:  "transfer",
				Usage: "Transfer agent ownership",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "id", Required: true},
					&cli.StringFlag{Name: "owner", Required: true, Usage: "new owner address"},
					jsonFlag(),
				},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.AgentIdentity) error {
					return doAgentTransfer(ctx, cfg, c.Uint64("id"), c.String("owner"), out)
				}, printAgent),
			},
		},
	}
}

type registeredResult struct {
	DID        string `json:"did"`
	Registered bool   `json:"registered"`
}

type lookupResult struct {
	ID  uint64 `json:"id"`
	DID string `json:"did"`
}

type feedbackList struct {
	AgentID     uint64   `json:"agent_id"`
	FeedbackIDs []uint64 `json:"feedback_ids"`
}

func feedbackCommand() *cli.Command {
	return &cli.Command{
		Name:  "feedback",
		Usage: "Reputation registry commands",
		Commands: []*cli.Command{
			{
				Name:  "submit",
				Usage: "Submit feedback about an agent",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "agent-id", Required: true},
					&cli.StringFlag{Name: "kind", Required: true, Usage: "positive, negative, neutral or report"},
					&cli.IntFlag{Name: "score", Required: true, Usage: "-10..10"},
					&cli.StringFlag{Name: "comment"},
					&cli.StringFlag{Name: "ref", Usage: "external reference"},
					jsonFlag(),
				},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.FeedbackRecord) error {
					return doFeedbackSubmit(ctx, cfg, map[string]any{
						"agent_id":           c.Uint64("agent-id"),
						"kind":               c.String("kind"),
						"score":              c.Int("score"),
						"comment":            c.String("comment"),
						"external_reference": c.String("ref"),
					}, out)
				}, printFeedback),
			},
			{
				Name:  "show",
				Usage: "Show a feedback record",
				Flags: []cli.Flag{&cli.Uint64Flag{Name: "id", Required: true}, jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.FeedbackRecord) error {
					return doFeedbackGet(ctx, cfg, c.Uint64("id"), out)
				}, printFeedback),
			},
			{
				Name:  "list",
				Usage: "List feedback ids for an agent",
				Flags: []cli.Flag{&cli.Uint64Flag{Name: "agent-id", Required: true}, jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *feedbackList) error {
					return doFeedbackList(ctx, cfg, c.Uint64("agent-id"), out)
				}, func(out feedbackList) {
					printKV([][2]string{{"agent_id", formatUint(out.AgentID)}, {"feedback_ids", formatIDs(out.FeedbackIDs)}})
				}),
			},
			{
				Name:  "summary",
				Usage: "Show an agent's reputation summary",
				Flags: []cli.Flag{&cli.Uint64Flag{Name: "agent-id", Required: true}, jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.ReputationSummary) error {
					return doReputationSummary(ctx, cfg, c.Uint64("agent-id"), out)
				}, printSummary),
			},
		},
	}
}

type balanceResult struct {
	AccountID uint64        `json:"account_id"`
	Balance   domain.Amount `json:"balance"`
}

type paymentList struct {
	AccountID  uint64   `json:"account_id"`
	PaymentIDs []uint64 `json:"payment_ids"`
}

type agentAccount struct {
	AgentID   uint64 `json:"agent_id"`
	AccountID uint64 `json:"account_id"`
}

type operatorList struct {
	Operators []common.Address `json:"operators"`
}

func treasuryCommand() *cli.Command {
	accountID := func() cli.Flag { return &cli.Uint64Flag{Name: "account", Required: true, Usage: "account id"} }

	return &cli.Command{
		Name:  "treasury",
		Usage: "Treasury ledger commands",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create the treasury account for an agent",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "agent-id", Required: true},
					&cli.StringFlag{Name: "owner", Usage: "account owner; defaults to the caller"},
					jsonFlag(),
				},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.TreasuryAccount) error {
					return doAccountCreate(ctx, cfg, c.Uint64("agent-id"), c.String("owner"), out)
				}, printAccount),
			},
			{
				Name:  "show",
				Usage: "Show an account, by id or by agent",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "account", Usage: "account id"},
					&cli.Uint64Flag{Name: "agent-id"},
					jsonFlag(),
				},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.TreasuryAccount) error {
					id := c.Uint64("account")
					if !c.IsSet("account") {
						if !c.IsSet("agent-id") {
							return fmt.Errorf("one of --account or --agent-id is required")
						}
						var link agentAccount
						if err := doAccountForAgent(ctx, cfg, c.Uint64("agent-id"), &link); err != nil {
							return err
						}
						if link.AccountID == 0 {
							return fmt.Errorf("agent %d has no treasury account", link.AgentID)
						}
						id = link.AccountID
					}
					return doAccountGet(ctx, cfg, id, out)
				}, printAccount),
			},
			{
				Name:  "balance",
				Usage: "Show an account balance",
				Flags: []cli.Flag{accountID(), jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *balanceResult) error {
					return doAccountBalance(ctx, cfg, c.Uint64("account"), out)
				}, func(out balanceResult) {
					printKV([][2]string{{"account_id", formatUint(out.AccountID)}, {"balance", out.Balance.String()}})
				}),
			},
			{
				Name:  "fund",
				Usage: "Credit an account from outside the ledger",
				Flags: []cli.Flag{accountID(), &cli.StringFlag{Name: "amount", Required: true}, jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.TreasuryAccount) error {
					return doAccountFund(ctx, cfg, c.Uint64("account"), c.String("amount"), out)
				}, printAccount),
			},
			{
				Name:  "transfer",
				Usage: "Pay from one account to another",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "from", Required: true},
					&cli.Uint64Flag{Name: "to", Required: true},
					&cli.StringFlag{Name: "amount", Required: true},
					&cli.StringFlag{Name: "purpose"},
					&cli.StringFlag{Name: "receipt-hash"},
					jsonFlag(),
				},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.PaymentRecord) error {
					return doTransfer(ctx, cfg, map[string]any{
						"from_account_id": c.Uint64("from"),
						"to_account_id":   c.Uint64("to"),
						"amount":          c.String("amount"),
						"purpose":         c.String("purpose"),
						"receipt_hash":    c.String("receipt-hash"),
					}, out)
				}, printPayment),
			},
			{
				Name:  "withdraw",
				Usage: "Withdraw from an account to an external address",
				Flags: []cli.Flag{
					accountID(),
					&cli.StringFlag{Name: "to", Required: true, Usage: "recipient address"},
					&cli.StringFlag{Name: "amount", Required: true},
					jsonFlag(),
				},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.TreasuryAccount) error {
					return doAccountWithdraw(ctx, cfg, c.Uint64("account"), c.String("to"), c.String("amount"), out)
				}, printAccount),
			},
			{
				Name:  "payments",
				Usage: "List payment ids touching an account",
				Flags: []cli.Flag{accountID(), jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *paymentList) error {
					return doAccountPayments(ctx, cfg, c.Uint64("account"), out)
				}, func(out paymentList) {
					printKV([][2]string{{"account_id", formatUint(out.AccountID)}, {"payment_ids", formatIDs(out.PaymentIDs)}})
				}),
			},
			{
				Name:  "payment",
				Usage: "Show a payment record",
				Flags: []cli.Flag{&cli.Uint64Flag{Name: "id", Required: true}, jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.PaymentRecord) error {
					return doPaymentGet(ctx, cfg, c.Uint64("id"), out)
				}, printPayment),
			},
			{
				Name:  "owner",
				Usage: "Hand account custody to a new owner",
				Flags: []cli.Flag{accountID(), &cli.StringFlag{Name: "owner", Required: true}, jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.TreasuryAccount) error {
					return doAccountSetOwner(ctx, cfg, c.Uint64("account"), c.String("owner"), out)
				}, printAccount),
			},
			{
				Name:  "deactivate",
				Usage: "Stop an account from sending or receiving payments",
				Flags: []cli.Flag{accountID(), jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.TreasuryAccount) error {
					return doAccountSetActive(ctx, cfg, c.Uint64("account"), false, out)
				}, printAccount),
			},
			{
				Name:  "reactivate",
				Usage: "Reactivate an account",
				Flags: []cli.Flag{accountID(), jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.TreasuryAccount) error {
					return doAccountSetActive(ctx, cfg, c.Uint64("account"), true, out)
				}, printAccount),
			},
			{
				Name:  "operators",
				Usage: "List, grant or revoke treasury operators",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "grant", Usage: "address to grant"},
					&cli.StringFlag{Name: "revoke", Usage: "address to revoke"},
					jsonFlag(),
				},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *operatorList) error {
					if addr := c.String("grant"); addr != "" {
						if err := doOperatorSet(ctx, cfg, addr, true, nil); err != nil {
							return err
						}
					}
					if addr := c.String("revoke"); addr != "" {
						if err := doOperatorSet(ctx, cfg, addr, false, nil); err != nil {
							return err
						}
					}
					return doOperatorsList(ctx, cfg, out)
				}, func(out operatorList) {
					printOperators(out.Operators)
				}),
			},
			{
				Name:  "totals",
				Usage: "Show ledger-wide totals",
				Flags: []cli.Flag{jsonFlag()},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *domain.LedgerTotals) error {
					return doTotals(ctx, cfg, out)
				}, printTotals),
			},
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Ledger event log",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List events after a sequence number",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "after"},
					&cli.IntFlag{Name: "limit", Value: 200},
					jsonFlag(),
				},
				Action: clientAction(func(ctx context.Context, c *cli.Command, cfg cliConfig, out *[]domain.Event) error {
					return doEventsList(ctx, cfg, c.Uint64("after"), c.Int("limit"), out)
				}, printEvents),
			},
			{
				Name:  "follow",
				Usage: "Stream events over the HTTP websocket",
				Flags: []cli.Flag{&cli.Uint64Flag{Name: "after"}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
					defer stop()
					return followEvents(ctx, cfg, c.Uint64("after"), c.Bool("json"))
				},
			},
		},
	}
}
