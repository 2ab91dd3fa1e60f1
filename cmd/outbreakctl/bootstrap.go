package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/spf13/cobra"
)

// SSMClient is the subset of the SSM API used by bootstrap.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

func newSSMClient(ctx context.Context, region, endpoint string) (SSMClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config (region=%s): %w", region, err)
	}
	return ssm.NewFromConfig(cfg, func(o *ssm.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// ssmOperationTimeout bounds each SSM call.
const ssmOperationTimeout = 15 * time.Second

// tokenByteLength is 256 bits, hex-encoded to 64 characters.
const tokenByteLength = 32

// secretSpec is one SecureString the service reads through a *_SSM_PARAM
// pointer.
type secretSpec struct {
	Name   string // parameter leaf name
	EnvVar string // variable the loader populates
	// Generate creates the value when the operator does not supply one.
	Generate bool
	// Optional secrets are skipped when no value is available.
	Optional bool
}

var bootstrapSecrets = []secretSpec{
	{Name: "database_url", EnvVar: "DATABASE_URL"},
	{Name: "auth_jwt_secret", EnvVar: "AUTH_JWT_SECRET", Generate: true},
	{Name: "openai_api_key", EnvVar: "OPENAI_API_KEY", Optional: true},
	{Name: "firebase_credentials", EnvVar: "FIREBASE_CREDENTIALS", Optional: true},
}

// ssmPath returns /{env}/outbreakwatch/{name}.
func ssmPath(env, name string) string {
	return fmt.Sprintf("/%s/outbreakwatch/%s", env, name)
}

// generateSecureToken returns 32 random bytes as lowercase hex.
func generateSecureToken() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secure token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// secretWriter writes SecureString parameters without ever logging values.
type secretWriter struct {
	client SSMClient
	logger *slog.Logger
}

func (w *secretWriter) exists(ctx context.Context, path string) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, ssmOperationTimeout)
	defer cancel()

	_, err := w.client.GetParameter(opCtx, &ssm.GetParameterInput{
		Name:           aws.String(path),
		WithDecryption: aws.Bool(false),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking SSM parameter %q: %w", path, err)
	}
	return true, nil
}

func (w *secretWriter) put(ctx context.Context, path, value string, overwrite bool) error {
	if value == "" {
		return fmt.Errorf("SSM parameter value must not be empty for path %q", path)
	}
	opCtx, cancel := context.WithTimeout(ctx, ssmOperationTimeout)
	defer cancel()

	_, err := w.client.PutParameter(opCtx, &ssm.PutParameterInput{
		Name:      aws.String(path),
		Value:     aws.String(value),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(overwrite),
	})
	if err != nil {
		var alreadyExists *ssmtypes.ParameterAlreadyExists
		if errors.As(err, &alreadyExists) {
			return fmt.Errorf("SSM parameter %q already exists: %w", path, err)
		}
		return fmt.Errorf("writing SSM parameter %q: %w", path, err)
	}
	w.logger.Info("SSM parameter written", "path", path, "value_length", len(value))
	return nil
}

func (c *cli) bootstrapCmd() *cobra.Command {
	var (
		env       string
		overwrite bool
		region    string
		endpoint  string
	)
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Seed the service secrets in SSM Parameter Store",
		Long: "Writes DATABASE_URL, OPENAI_API_KEY and FIREBASE_CREDENTIALS from the current " +
			"environment as SecureString parameters, generating AUTH_JWT_SECRET. Existing " +
			"parameters are kept unless --overwrite is given. Prints the *_SSM_PARAM pointers " +
			"to set on the service.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch env {
			case "dev", "staging", "prod":
			default:
				return fmt.Errorf("--env must be dev, staging or prod, got %q", env)
			}
			ctx := cmd.Context()

			client, err := c.newSSM(ctx, region, endpoint)
			if err != nil {
				return err
			}
			return c.bootstrap(ctx, &secretWriter{client: client, logger: c.logger}, env, overwrite)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "target environment (dev, staging, prod)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace parameters that already exist")
	cmd.Flags().StringVar(&region, "region", "us-east-1", "AWS region")
	cmd.Flags().StringVar(&endpoint, "endpoint-url", "", "SSM endpoint override (LocalStack)")
	_ = cmd.MarkFlagRequired("env")
	return cmd
}

func (c *cli) bootstrap(ctx context.Context, w *secretWriter, env string, overwrite bool) error {
	var pointers []string
	for _, spec := range bootstrapSecrets {
		path := ssmPath(env, spec.Name)

		exists, err := w.exists(ctx, path)
		if err != nil {
			return err
		}
		if exists && !overwrite {
			fmt.Fprintf(c.out, "kept     %s\n", path)
			pointers = append(pointers, spec.EnvVar+"_SSM_PARAM="+path)
			continue
		}

		value, _ := c.lookupEnv(spec.EnvVar)
		if value == "" && spec.Generate {
			if value, err = generateSecureToken(); err != nil {
				return err
			}
		}
		if value == "" {
			if spec.Optional {
				fmt.Fprintf(c.out, "skipped  %s (%s not set)\n", path, spec.EnvVar)
				continue
			}
			return fmt.Errorf("%s must be set to seed %s", spec.EnvVar, path)
		}

		if err := w.put(ctx, path, value, overwrite); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "written  %s\n", path)
		pointers = append(pointers, spec.EnvVar+"_SSM_PARAM="+path)
	}

	fmt.Fprintln(c.out, "\nset on the service:")
	for _, p := range pointers {
		fmt.Fprintln(c.out, "  "+p)
	}
	return nil
}
