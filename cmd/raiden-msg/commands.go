package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/raiden-network/raiden-libs-go/pkg/config"
	"github.com/raiden-network/raiden-libs-go/pkg/logger"
	"github.com/raiden-network/raiden-libs-go/pkg/messages"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence"
	"github.com/raiden-network/raiden-libs-go/pkg/server"
	"github.com/raiden-network/raiden-libs-go/pkg/transport"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// DecodeOutput is printed by the decode command
type DecodeOutput struct {
	Type      messages.MessageType `json:"type"`
	ChainID   string               `json:"chain_id"`
	Key       string               `json:"key"`
	Canonical string               `json:"canonical"`
	Payload   messages.Payload     `json:"payload"`
}

// SignerOutput describes one signature field of a message
type SignerOutput struct {
	Field   string `json:"field"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("debug")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

// readInput reads the file named by the first argument, or stdin
func readInput(c *cli.Context) ([]byte, error) {
	path := c.Args().First()
	if path == "" || path == "-" {
		reader := c.App.Reader
		if reader == nil {
			reader = os.Stdin
		}
		return io.ReadAll(reader)
	}
	return os.ReadFile(path)
}

func readMessage(c *cli.Context) (messages.Message, error) {
	data, err := readInput(c)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	return messages.DeserializeBytes(data)
}

func printJSON(c *cli.Context, v any) error {
	encoder := json.NewEncoder(c.App.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func runDecode(c *cli.Context) error {
	msg, err := readMessage(c)
	if err != nil {
		return err
	}

	canonical, err := msg.SerializeBin()
	if err != nil {
		return fmt.Errorf("failed to encode canonical bytes: %w", err)
	}
	key, err := persistence.MessageKey(msg)
	if err != nil {
		return err
	}

	return printJSON(c, DecodeOutput{
		Type:      msg.Type(),
		ChainID:   msg.ChainID().Dec(),
		Key:       key,
		Canonical: hexutil.Encode(canonical),
		Payload:   msg.SerializeData(),
	})
}

// recoverSigners lists every signature field in name order. Empty fields are skipped.
func recoverSigners(msg messages.Message) []SignerOutput {
	domains := messages.Domains(msg)
	names := make([]string, 0, len(domains))
	for name, d := range domains {
		if d.Signature() != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]SignerOutput, 0, len(names))
	for _, name := range names {
		addr, err := messages.RecoverSigner(domains[name])
		if err != nil {
			out = append(out, SignerOutput{Field: name, Error: err.Error()})
			continue
		}
		out = append(out, SignerOutput{Field: name, Address: addr.Hex()})
	}
	return out
}

func runRecover(c *cli.Context) error {
	msg, err := readMessage(c)
	if err != nil {
		return err
	}
	signers := recoverSigners(msg)
	if len(signers) == 0 {
		return fmt.Errorf("%s carries no signature", msg.Type())
	}
	return printJSON(c, signers)
}

func runKeygen(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	generator, err := newKeyGenerator(c.Context, config.SignerBackend(c.String("signer")), c.String("aws-region"), c.String("environment"), l)
	if err != nil {
		return err
	}
	key, err := generator.GenerateKey(c.Context, c.String("key-name"), c.String("alias"))
	if err != nil {
		return err
	}
	return printJSON(c, key)
}

func runAddress(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	s, err := newSigner(c.Context, signerConfig(c), l)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, s.GetAddress().Hex())
	return err
}

// signingDomain picks the domain the sign command signs
func signingDomain(msg messages.Message) (messages.SigningDomain, error) {
	switch m := msg.(type) {
	case *messages.MonitorRequest:
		return m.RewardProofDomain(), nil
	case messages.SigningDomain:
		return m, nil
	default:
		return nil, fmt.Errorf("%s cannot be signed", msg.Type())
	}
}

func runSign(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	msg, err := readMessage(c)
	if err != nil {
		return err
	}
	domain, err := signingDomain(msg)
	if err != nil {
		return err
	}

	s, err := newSigner(c.Context, signerConfig(c), l)
	if err != nil {
		return err
	}
	if err := messages.Sign(c.Context, s, domain); err != nil {
		return fmt.Errorf("failed to sign %s: %w", msg.Type(), err)
	}
	l.Sugar().Debugw("Signed message", "type", msg.Type(), "signer", s.GetAddress().Hex())

	data, err := msg.SerializeFull()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(data))
	return err
}

func runSend(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	msg, err := readMessage(c)
	if err != nil {
		return err
	}

	client := transport.NewClient(c.String("server-url"), l)
	resp, err := client.SendMessage(c.Context, msg)
	if err != nil {
		return err
	}
	return printJSON(c, resp)
}

func parseServiceConfig(c *cli.Context) *config.ServiceConfig {
	return &config.ServiceConfig{
		Port:            c.Int("port"),
		ChainID:         config.ChainId(c.Uint64("chain-id")),
		PersistenceType: config.PersistenceType(c.String("persistence")),
		DataPath:        c.String("data-path"),
		Redis: config.RedisConfig{
			Address:   c.String("redis-address"),
			Password:  c.String("redis-password"),
			DB:        c.Int("redis-db"),
			KeyPrefix: c.String("redis-key-prefix"),
		},
		RequireSignatures: c.Bool("require-signatures"),
		RateLimit:         c.Float64("rate-limit"),
		RateBurst:         c.Int("rate-burst"),
		Debug:             c.Bool("debug"),
	}
}

func runServe(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg := parseServiceConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	l.Sugar().Infow("Using chain", "name", cfg.ChainName, "chain_id", cfg.ChainID)

	store, err := newStore(cfg, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Sugar().Errorw("Failed to close message store", "error", err)
		}
	}()

	srv := server.NewServer(cfg, store, l)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Sugar().Infow("Message service running",
		"address", srv.Addr(),
		"persistence", cfg.PersistenceType,
	)
	<-ctx.Done()

	l.Sugar().Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultRequestTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
