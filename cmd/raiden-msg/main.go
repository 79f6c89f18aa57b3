package main

import (
	"fmt"
	"log"
	"os"

	"github.com/raiden-network/raiden-libs-go/pkg/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func signerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "signer",
			Usage:   "Signing backend: private-key or aws-kms",
			Value:   string(config.SignerBackendPrivateKey),
			EnvVars: []string{config.EnvSignerBackend},
		},
		&cli.StringFlag{
			Name:    "private-key",
			Usage:   "Hex encoded secp256k1 private key",
			EnvVars: []string{config.EnvPrivateKey},
		},
		&cli.StringFlag{
			Name:    "kms-key-id",
			Usage:   "AWS KMS key id or ARN of an ECC_SECG_P256K1 key",
			EnvVars: []string{config.EnvKMSKeyID},
		},
		&cli.StringFlag{
			Name:    "aws-region",
			Usage:   "AWS region override",
			EnvVars: []string{config.EnvAWSRegion},
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "raiden-msg",
		Usage: "Inspect, sign and exchange payment-channel service messages",
		Description: `Works with the transport form of BalanceProof, FeeInfo, PathsRequest,
PathsReply and MonitorRequest messages.

Message arguments are file paths; "-" or no argument reads standard input.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvDebug},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "decode",
				Usage:     "Validate a message and print its canonical form",
				ArgsUsage: "[file]",
				Action:    runDecode,
			},
			{
				Name:      "recover",
				Usage:     "Print the address behind every signature of a message",
				ArgsUsage: "[file]",
				Action:    runRecover,
			},
			{
				Name:  "keygen",
				Usage: "Create a new signing key",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "signer",
						Usage:   "Where the key is created: private-key (local) or aws-kms",
						Value:   string(config.SignerBackendPrivateKey),
						EnvVars: []string{config.EnvSignerBackend},
					},
					&cli.StringFlag{
						Name:  "key-name",
						Usage: "Name tag of the key",
						Value: "raiden-msg",
					},
					&cli.StringFlag{
						Name:  "alias",
						Usage: "KMS alias to create for the key",
					},
					&cli.StringFlag{
						Name:  "environment",
						Usage: "Environment tag of KMS keys",
						Value: "development",
					},
					&cli.StringFlag{
						Name:    "aws-region",
						Usage:   "AWS region override",
						EnvVars: []string{config.EnvAWSRegion},
					},
				},
				Action: runKeygen,
			},
			{
				Name:   "address",
				Usage:  "Print the address of the configured signer",
				Flags:  signerFlags(),
				Action: runAddress,
			},
			{
				Name:      "sign",
				Usage:     "Sign a message and print its transport form",
				ArgsUsage: "[file]",
				Description: `Signs the signature field of single-domain messages. For a MonitorRequest,
whose balance proof is already signed, the reward proof is signed.`,
				Flags:  signerFlags(),
				Action: runSign,
			},
			{
				Name:      "send",
				Usage:     "Submit a message to a message service",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "server-url",
						Usage:   "Base URL of the message service",
						Value:   fmt.Sprintf("http://localhost:%d", config.DefaultPort),
						EnvVars: []string{config.EnvServerURL},
					},
				},
				Action: runSend,
			},
			{
				Name:   "serve",
				Usage:  "Run the message service",
				Flags:  serveFlags(),
				Action: runServe,
			},
		},
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Value:   config.DefaultPort,
			Usage:   "HTTP server port",
			EnvVars: []string{config.EnvPort},
		},
		&cli.Uint64Flag{
			Name:     "chain-id",
			Aliases:  []string{"chain"},
			Usage:    fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
			EnvVars:  []string{config.EnvChainID},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "persistence",
			Usage:   "Message store: memory, badger or redis",
			Value:   string(config.PersistenceTypeMemory),
			EnvVars: []string{config.EnvPersistenceType},
		},
		&cli.StringFlag{
			Name:    "data-path",
			Usage:   "Badger data directory",
			EnvVars: []string{config.EnvDataPath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis server address (host:port)",
			EnvVars: []string{config.EnvRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{config.EnvRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database number",
			EnvVars: []string{config.EnvRedisDB},
		},
		&cli.StringFlag{
			Name:    "redis-key-prefix",
			Usage:   "Prefix for every Redis key",
			Value:   config.DefaultRedisKeyPrefix,
			EnvVars: []string{config.EnvRedisKeyPrefix},
		},
		&cli.BoolFlag{
			Name:    "require-signatures",
			Usage:   "Reject messages without a recoverable signature",
			EnvVars: []string{config.EnvRequireSignatures},
		},
		&cli.Float64Flag{
			Name:    "rate-limit",
			Usage:   "Accepted requests per second, 0 disables limiting",
			Value:   config.DefaultRateLimit,
			EnvVars: []string{config.EnvRateLimit},
		},
		&cli.IntFlag{
			Name:    "rate-burst",
			Usage:   "Request burst size",
			Value:   config.DefaultRateBurst,
			EnvVars: []string{config.EnvRateBurst},
		},
	}
}
